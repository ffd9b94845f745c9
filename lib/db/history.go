package db

import (
	"errors"
	"fmt"
	"slices"

	"github.com/ValentinKolb/kvr/lib/record"
	"github.com/ValentinKolb/kvr/lib/revision"
)

// --------------------------------------------------------------------------
// Historical Reads
// --------------------------------------------------------------------------

// At returns the entry key had at exactly revision rev.
// Without history retention only the current entry can be found.
//
// Thread-safety: This method is thread-safe.
func (e *Engine[K, V]) At(key K, rev revision.Revision) (record.ValueEntry[V], bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lookupLocked(key, rev)
}

// Revisions returns every known entry of key in ascending revision order.
// The current entry is part of the result exactly once. The result is empty if
// the key does not exist and holds at most the current entry without history retention.
//
// Thread-safety: This method is thread-safe.
func (e *Engine[K, V]) Revisions(key K) []record.ValueEntry[V] {
	e.mu.RLock()
	defer e.mu.RUnlock()

	entries := e.historicalLocked(key)

	cur, ok := e.current.Get(currentItem[K, V]{key: key})
	if !ok {
		return entries
	}

	i, found := slices.BinarySearchFunc(entries, cur.entry.Revision, func(v record.ValueEntry[V], r revision.Revision) int {
		return v.Revision.Compare(r)
	})
	if !found {
		entries = slices.Insert(entries, i, cur.entry)
	}
	return entries
}

// Lineage follows the previous revision links from the current entry of key back to
// its genesis entry and returns the entries newest first.
//
// It fails with ErrHistoryDisabled without history retention, with ErrKeyDoesNotExist
// for unknown keys and with ErrBrokenLineage if a link points to an unknown revision
// or the links form a cycle.
//
// Thread-safety: This method is thread-safe.
func (e *Engine[K, V]) Lineage(key K) ([]record.ValueEntry[V], error) {
	if !e.opts.RetainHistory {
		return nil, ErrHistoryDisabled
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	cur, ok := e.current.Get(currentItem[K, V]{key: key})
	if !ok {
		return nil, ErrKeyDoesNotExist
	}
	return e.lineageLocked(key, cur.entry)
}

// CheckLineage validates the revision chains of all keys: every chain must reach a
// genesis entry, and every historical entry of a key must be part of its chain.
// A second entry that links to the same previous revision (a fork) breaks the latter.
// All violations are returned joined; each of them matches ErrBrokenLineage.
//
// Thread-safety: This method is thread-safe. It holds the read lock for the whole check.
func (e *Engine[K, V]) CheckLineage() error {
	if !e.opts.RetainHistory {
		return ErrHistoryDisabled
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	var errs []error

	e.current.Ascend(func(item currentItem[K, V]) bool {
		chain, err := e.lineageLocked(item.key, item.entry)
		if err != nil {
			errs = append(errs, err)
			return true
		}

		known := len(e.historicalLocked(item.key))
		if _, ok := e.history.Get(historyItem[K, V]{key: record.KeyAtRevision[K]{Key: item.key, Revision: item.entry.Revision}}); !ok {
			known++
		}
		if known != len(chain) {
			errs = append(errs, fmt.Errorf("%w: key %v has %d entries, but only %d are on its lineage",
				ErrBrokenLineage, item.key, known, len(chain)))
		}
		return true
	})

	// historical entries must always belong to an existing key
	var last *K
	e.history.Ascend(func(item historyItem[K, V]) bool {
		if last != nil && *last == item.key.Key {
			return true
		}
		k := item.key.Key
		last = &k
		if _, ok := e.current.Get(currentItem[K, V]{key: k}); !ok {
			errs = append(errs, fmt.Errorf("%w: historical entries for unknown key %v", ErrBrokenLineage, k))
		}
		return true
	})

	return errors.Join(errs...)
}

// --------------------------------------------------------------------------
// Helper Functions
// --------------------------------------------------------------------------

// lookupLocked finds the entry of key at rev in the historical or the current index.
func (e *Engine[K, V]) lookupLocked(key K, rev revision.Revision) (record.ValueEntry[V], bool) {
	if item, ok := e.history.Get(historyItem[K, V]{key: record.KeyAtRevision[K]{Key: key, Revision: rev}}); ok {
		return item.value.Entry(rev), true
	}
	if item, ok := e.current.Get(currentItem[K, V]{key: key}); ok && item.entry.Revision == rev {
		return item.entry, true
	}
	return record.ValueEntry[V]{}, false
}

// historicalLocked returns all historical entries of key in ascending revision order.
func (e *Engine[K, V]) historicalLocked(key K) []record.ValueEntry[V] {
	var entries []record.ValueEntry[V]
	e.history.AscendGreaterOrEqual(historyItem[K, V]{key: record.KeyAtRevision[K]{Key: key, Revision: revision.Zero}}, func(item historyItem[K, V]) bool {
		if item.key.Key != key {
			return false
		}
		entries = append(entries, item.value.Entry(item.key.Revision))
		return true
	})
	return entries
}

func (e *Engine[K, V]) lineageLocked(key K, head record.ValueEntry[V]) ([]record.ValueEntry[V], error) {
	chain := []record.ValueEntry[V]{head}
	seen := map[revision.Revision]struct{}{head.Revision: {}}

	entry := head
	for {
		prev, ok := entry.PrevRev.Get()
		if !ok {
			return chain, nil
		}
		if _, dup := seen[prev]; dup {
			return nil, fmt.Errorf("%w: key %v: cycle at revision %s", ErrBrokenLineage, key, prev)
		}
		next, ok := e.lookupLocked(key, prev)
		if !ok {
			return nil, fmt.Errorf("%w: key %v: revision %s links to unknown revision %s", ErrBrokenLineage, key, entry.Revision, prev)
		}
		seen[prev] = struct{}{}
		chain = append(chain, next)
		entry = next
	}
}
