// Package common holds the configuration and logging setup shared by the kvr command line tools.
//
// Logging goes through the dragonboat logger facade (github.com/lni/dragonboat/v4/logger):
// packages get their logger with logger.GetLogger(name), InitLoggers installs the kvr
// formatter and sets the level. Lines look like
//
//	2025/01/02 15:04:05 INFO  | db     | replayed 3 records of /data/kvr.log ...
package common
