package db

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/kvr/lib/record"
	"github.com/ValentinKolb/kvr/lib/revision"
	"github.com/tarantool/go-option"
)

// --------------------------------------------------------------------------
// Mutations
// --------------------------------------------------------------------------

// Insert creates key with the given value and revision.
// The new entry has no previous revision.
//
// The record is appended to the log before the in-memory state changes: if the
// append fails, the engine is unchanged and the error is a *WriteError. Insert fails
// with ErrKeyExists if the key already has a current entry; nothing is written then.
//
// Thread-safety: This method is thread-safe. Of two concurrent inserts of the same
// key exactly one succeeds.
func (e *Engine[K, V]) Insert(key K, value V, rev revision.Revision) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.writableLocked("insert"); err != nil {
		return err
	}

	if _, ok := e.current.Get(currentItem[K, V]{key: key}); ok {
		e.metrics.conflictExists.Inc()
		return ErrKeyExists
	}

	rec := record.Record[K, V]{
		Key: key,
		Entry: record.ValueEntry[V]{
			Revision: rev,
			PrevRev:  option.None[revision.Revision](),
			Value:    value,
		},
	}

	if err := e.appendLocked("insert", rec); err != nil {
		return err
	}

	e.current.ReplaceOrInsert(currentItem[K, V]{key: key, entry: rec.Entry})
	e.metrics.inserts.Inc()
	return nil
}

// Update replaces the current entry of key if its revision equals expectedPrev
// (compare and swap). The new entry links back to expectedPrev.
//
// Update fails with ErrKeyDoesNotExist if the key has no current entry and with
// ErrPrevRevMismatch if the current revision differs from expectedPrev. With history
// retention the replaced entry is moved into the historical index.
// Like Insert, the record is appended before memory is touched.
//
// The engine does not check that rev is newer than expectedPrev; the caller owns
// revision assignment.
//
// Thread-safety: This method is thread-safe. Of two concurrent updates with the same
// expectedPrev at most one succeeds.
func (e *Engine[K, V]) Update(key K, value V, rev, expectedPrev revision.Revision) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.writableLocked("update"); err != nil {
		return err
	}

	old, ok := e.current.Get(currentItem[K, V]{key: key})
	if !ok {
		e.metrics.conflictMissing.Inc()
		return ErrKeyDoesNotExist
	}
	if old.entry.Revision != expectedPrev {
		e.metrics.conflictMismatch.Inc()
		return fmt.Errorf("%w: expected %s, current %s", ErrPrevRevMismatch, expectedPrev, old.entry.Revision)
	}

	rec := record.Record[K, V]{
		Key: key,
		Entry: record.ValueEntry[V]{
			Revision: rev,
			PrevRev:  option.Some(expectedPrev),
			Value:    value,
		},
	}

	if err := e.appendLocked("update", rec); err != nil {
		return err
	}

	if e.opts.RetainHistory {
		k, v := record.Record[K, V]{Key: key, Entry: old.entry}.Historical()
		e.history.ReplaceOrInsert(historyItem[K, V]{key: k, value: v})
	}
	e.current.ReplaceOrInsert(currentItem[K, V]{key: key, entry: rec.Entry})
	e.metrics.updates.Inc()
	return nil
}

// --------------------------------------------------------------------------
// Helper Functions
// --------------------------------------------------------------------------

// writableLocked returns the error a write must fail with, if any.
// The caller must hold the write lock.
func (e *Engine[K, V]) writableLocked(op string) error {
	if e.closed {
		return ErrClosed
	}
	if e.writeErr != nil {
		return &WriteError{Op: op, Kind: ErrIO, Err: fmt.Errorf("engine is read-only after a failed append: %w", e.writeErr)}
	}
	return nil
}

// appendLocked encodes rec and appends it to the log.
// A failed write or sync poisons the engine. The caller must hold the write lock.
func (e *Engine[K, V]) appendLocked(op string, rec record.Record[K, V]) error {
	start := time.Now()

	if n := e.codec.SizeOf(rec); cap(e.scratch) < n {
		e.scratch = make([]byte, 0, n)
	}
	data, err := e.codec.Append(e.scratch[:0], rec)
	if err != nil {
		return &WriteError{Op: op, Kind: ErrSerialization, Err: err}
	}
	e.scratch = data

	if _, err := e.file.Write(data); err != nil {
		return e.poisonLocked(op, err)
	}
	if e.opts.SyncWrites {
		if err := e.file.Sync(); err != nil {
			return e.poisonLocked(op, err)
		}
	}

	e.logSize.Add(int64(len(data)))
	e.metrics.appendDuration.UpdateDuration(start)
	return nil
}

func (e *Engine[K, V]) poisonLocked(op string, err error) error {
	e.writeErr = err
	e.metrics.writeErrors.Inc()
	log.Errorf("append to %s failed, engine is read-only from now on: %v", e.path, err)
	return &WriteError{Op: op, Kind: ErrIO, Err: err}
}
