/*
Package backup implements the backup container for kvr log files.

A backup is a stream that starts with a fixed header followed by the log bytes,
optionally compressed:

	"KVRBAK\x00\x00" | version (1 byte) | compression (1 byte) | payload

The payload is the log copied verbatim (no compaction, no re-encoding), compressed with
one of None, Snappy, LZ4 or Zstd. Restoring a backup therefore reproduces the original
log byte for byte.

Usage:

	n, err := backup.Write(out, logFile, backup.Zstd)
	...
	n, err = backup.Restore(newLog, in)

Both functions stream; neither buffers the whole log in memory.
*/
package backup
