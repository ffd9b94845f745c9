package record

import (
	"fmt"

	"github.com/ValentinKolb/kvr/lib/revision"
	"github.com/tarantool/go-option"
)

// --------------------------------------------------------------------------
// Record Model
// --------------------------------------------------------------------------

// ValueEntry is the state of a key after one write: the value, the revision of the
// write and the revision it replaced (None for the first write of a key).
type ValueEntry[V comparable] struct {
	Revision revision.Revision
	PrevRev  option.Generic[revision.Revision]
	Value    V
}

// IsGenesis reports whether the entry is the first write of its key.
func (e ValueEntry[V]) IsGenesis() bool {
	return !e.PrevRev.IsSome()
}

// Equal reports whether two entries hold the same revision, link and value.
func (e ValueEntry[V]) Equal(o ValueEntry[V]) bool {
	return e.Revision == o.Revision && e.Value == o.Value && samePrev(e.PrevRev, o.PrevRev)
}

func (e ValueEntry[V]) String() string {
	prev := "none"
	if p, ok := e.PrevRev.Get(); ok {
		prev = p.String()
	}
	return fmt.Sprintf("ValueEntry{Revision: %s, PrevRev: %s, Value: %v}", e.Revision, prev, e.Value)
}

// Record is the unit that is appended to the log: one key with the entry written for it.
// One record corresponds to exactly one write.
type Record[K, V comparable] struct {
	Key   K
	Entry ValueEntry[V]
}

// Equal reports whether two records are identical.
func (r Record[K, V]) Equal(o Record[K, V]) bool {
	return r.Key == o.Key && r.Entry.Equal(o.Entry)
}

// KeyAtRevision addresses one historical write of a key.
// The historical index orders it by key first and revision second.
type KeyAtRevision[K comparable] struct {
	Key      K
	Revision revision.Revision
}

// HistoricalValue is what the historical index stores for a KeyAtRevision.
// The revision itself is part of the index key and therefore not repeated.
type HistoricalValue[V comparable] struct {
	PrevRev option.Generic[revision.Revision]
	Value   V
}

// Historical splits a record into its historical index key and value.
func (r Record[K, V]) Historical() (KeyAtRevision[K], HistoricalValue[V]) {
	return KeyAtRevision[K]{Key: r.Key, Revision: r.Entry.Revision},
		HistoricalValue[V]{PrevRev: r.Entry.PrevRev, Value: r.Entry.Value}
}

// Entry rebuilds the full ValueEntry from a historical index key and value.
func (h HistoricalValue[V]) Entry(rev revision.Revision) ValueEntry[V] {
	return ValueEntry[V]{Revision: rev, PrevRev: h.PrevRev, Value: h.Value}
}

// samePrev compares two optional revisions.
func samePrev(a, b option.Generic[revision.Revision]) bool {
	av, aok := a.Get()
	bv, bok := b.Get()
	return aok == bok && av == bv
}
