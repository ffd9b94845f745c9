package db

import (
	"iter"

	"github.com/ValentinKolb/kvr/lib/record"
)

// --------------------------------------------------------------------------
// Bounds
// --------------------------------------------------------------------------

type boundKind uint8

const (
	unbounded boundKind = iota
	included
	excluded
)

// Bound is one end of a key range.
type Bound[K comparable] struct {
	kind boundKind
	key  K
}

// Unbounded returns a bound that does not limit the range.
func Unbounded[K comparable]() Bound[K] { return Bound[K]{kind: unbounded} }

// Included returns a bound that limits the range to key, key itself included.
func Included[K comparable](key K) Bound[K] { return Bound[K]{kind: included, key: key} }

// Excluded returns a bound that limits the range to key, key itself excluded.
func Excluded[K comparable](key K) Bound[K] { return Bound[K]{kind: excluded, key: key} }

// belowUpper reports whether key lies on the inner side of b taken as an upper bound
func (b Bound[K]) belowUpper(key K, cmp func(a, b K) int) bool {
	switch b.kind {
	case included:
		return cmp(key, b.key) <= 0
	case excluded:
		return cmp(key, b.key) < 0
	default:
		return true
	}
}

// --------------------------------------------------------------------------
// Reads
// --------------------------------------------------------------------------

// Get returns the current entry of key.
//
// Thread-safety: This method is thread-safe. It remains usable after Close.
func (e *Engine[K, V]) Get(key K) (record.ValueEntry[V], bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	item, ok := e.current.Get(currentItem[K, V]{key: key})
	return item.entry, ok
}

// Len returns the number of keys.
func (e *Engine[K, V]) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current.Len()
}

// HistoryLen returns the number of entries in the historical index (0 without retention).
func (e *Engine[K, V]) HistoryLen() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.history.Len()
}

// Range returns the current entries with keys between lower and upper in ascending key order.
//
// The range reflects the state of the engine at the time Range is called: it iterates a
// copy-on-write snapshot of the index, so writes that happen during the iteration are
// not visible and are not blocked by it.
//
// Thread-safety: This method is thread-safe. The returned sequence may be iterated
// repeatedly and from any goroutine.
func (e *Engine[K, V]) Range(lower, upper Bound[K]) iter.Seq2[K, record.ValueEntry[V]] {
	// Clone updates the copy-on-write state of the source tree and needs the exclusive lock
	e.mu.Lock()
	snapshot := e.current.Clone()
	e.mu.Unlock()

	return func(yield func(K, record.ValueEntry[V]) bool) {
		visit := func(item currentItem[K, V]) bool {
			if !upper.belowUpper(item.key, e.cmp) {
				return false
			}
			if lower.kind == excluded && e.cmp(item.key, lower.key) == 0 {
				return true
			}
			return yield(item.key, item.entry)
		}

		if lower.kind == unbounded {
			snapshot.Ascend(visit)
			return
		}
		snapshot.AscendGreaterOrEqual(currentItem[K, V]{key: lower.key}, visit)
	}
}

// All returns every current entry in ascending key order.
// It is Range(Unbounded, Unbounded).
func (e *Engine[K, V]) All() iter.Seq2[K, record.ValueEntry[V]] {
	return e.Range(Unbounded[K](), Unbounded[K]())
}
