// Package cmd implements the command-line interface for kvr. It provides a
// hierarchical command structure for working with a log file directly.
//
// The package is organized into several subpackages:
//
//   - kv: Commands for key-value operations (insert, update, put, get, range, history, perf)
//   - logfile: Commands for whole log files (verify, stats, backup, restore)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// All engine options are available as flags and as environment variables with the
// prefix KVR_ (e.g. KVR_PATH, KVR_RETAIN_HISTORY). Variables in .env and .env.local are
// loaded as well.
//
// See kvr -help for a list of all commands.
package cmd
