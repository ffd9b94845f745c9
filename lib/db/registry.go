package db

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// openLogs holds the absolute paths of all log files owned by an engine of this process.
// Other processes are not coordinated with.
var openLogs = xsync.NewMapOf[string, struct{}]()

// acquireLog registers path as owned. It fails with ErrAlreadyOpen if another engine owns it.
//
// Thread-safety: This function is thread-safe.
func acquireLog(path string) error {
	if _, loaded := openLogs.LoadOrStore(path, struct{}{}); loaded {
		return ErrAlreadyOpen
	}
	return nil
}

// releaseLog removes path from the registry.
func releaseLog(path string) {
	openLogs.Delete(path)
}
