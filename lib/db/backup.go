package db

import (
	"fmt"
	"io"
	"os"

	"github.com/ValentinKolb/kvr/lib/backup"
)

// Backup writes the log, as far as it has been written so far, into a backup container on w.
// It returns the number of log bytes copied.
//
// The log is copied byte for byte; a backup restored to a new file opens into the same
// state as this engine.
//
// Thread-safety: This method is thread-safe. It holds the read lock while copying, so
// mutations wait until the copy is complete.
func (e *Engine[K, V]) Backup(w io.Writer, c backup.Compression) (int64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	f, err := os.Open(e.path)
	if err != nil {
		return 0, fmt.Errorf("backup %s: %w", e.path, err)
	}
	defer func() { _ = f.Close() }()

	size := e.logSize.Load()
	n, err := backup.Write(w, io.NewSectionReader(f, 0, size), c)
	if err != nil {
		return n, fmt.Errorf("backup %s: %w", e.path, err)
	}
	if n != size {
		return n, fmt.Errorf("backup %s: copied %d of %d bytes", e.path, n, size)
	}

	log.Infof("backed up %d bytes of %s (%s)", n, e.path, c)
	return n, nil
}
