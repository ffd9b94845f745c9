package testing

import (
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/kvr/lib/db"
	"github.com/ValentinKolb/kvr/lib/record"
	"github.com/ValentinKolb/kvr/lib/revision"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// Engine is the engine type the suite runs against
type Engine = db.Engine[uint64, uint32]

// EngineFactory opens the engine for the log file at path.
// Calling it twice with the same path (after closing the first engine) must reopen the same log
// with the same configuration.
type EngineFactory func(path string) (*Engine, error)

// RunEngineTests runs the behavioral test suite against engines created by factory.
func RunEngineTests(t *testing.T, name string, factory EngineFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Insert&Get", func(t *testing.T) {
			testInsertGet(t, factory)
		})

		t.Run("InsertExclusivity", func(t *testing.T) {
			testInsertExclusivity(t, factory)
		})

		t.Run("CompareAndSwap", func(t *testing.T) {
			testCompareAndSwap(t, factory)
		})

		t.Run("Range", func(t *testing.T) {
			testRange(t, factory)
		})

		t.Run("RangeSnapshot", func(t *testing.T) {
			testRangeSnapshot(t, factory)
		})

		t.Run("Scenario", func(t *testing.T) {
			testScenario(t, factory)
		})

		t.Run("RecoveryIdempotence", func(t *testing.T) {
			testRecoveryIdempotence(t, factory)
		})

		t.Run("WriteOrderDeterminism", func(t *testing.T) {
			testWriteOrderDeterminism(t, factory)
		})

		t.Run("History", func(t *testing.T) {
			testHistory(t, factory)
		})

		t.Run("ConcurrentInsert", func(t *testing.T) {
			testConcurrentInsert(t, factory)
		})

		t.Run("ConcurrentUpdate", func(t *testing.T) {
			testConcurrentUpdate(t, factory)
		})

		t.Run("Close", func(t *testing.T) {
			testClose(t, factory)
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// open creates an engine for a new log in a temporary directory
func open(t testing.TB, factory EngineFactory) (*Engine, string) {
	path := filepath.Join(t.TempDir(), "kvr.log")
	return reopen(t, factory, path), path
}

// reopen opens the log at path and closes the engine when the test ends
func reopen(t testing.TB, factory EngineFactory, path string) *Engine {
	e, err := factory(path)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = e.Close()
	})
	return e
}

// requireHistory skips the test if the engine does not retain history
func requireHistory(t testing.TB, e *Engine) {
	if !e.RetainsHistory() {
		t.Skip("history retention disabled")
	}
}

// revisions returns n strictly increasing revisions
func revisions(t testing.TB, n int) []revision.Revision {
	gen := revision.NewGenerator()
	revs := make([]revision.Revision, n)
	for i := range revs {
		rev, err := gen.Next()
		require.NoError(t, err)
		revs[i] = rev
	}
	return revs
}

// snapshot collects all current entries of the engine
func snapshot(e *Engine) map[uint64]record.ValueEntry[uint32] {
	state := make(map[uint64]record.ValueEntry[uint32])
	for k, v := range e.All() {
		state[k] = v
	}
	return state
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testInsertGet(t *testing.T, factory EngineFactory) {
	e, _ := open(t, factory)
	revs := revisions(t, 2)

	_, ok := e.Get(1)
	assert.False(t, ok, "empty engine must not contain keys")

	require.NoError(t, e.Insert(1, 10, revs[0]))
	require.NoError(t, e.Insert(2, 20, revs[1]))

	entry, ok := e.Get(1)
	require.True(t, ok)
	assert.Equal(t, uint32(10), entry.Value)
	assert.Equal(t, revs[0], entry.Revision)
	assert.True(t, entry.IsGenesis())

	assert.Equal(t, 2, e.Len())

	at, ok := e.At(2, revs[1])
	require.True(t, ok)
	assert.Equal(t, uint32(20), at.Value)

	_, ok = e.At(2, revs[0])
	assert.False(t, ok)
}

func testInsertExclusivity(t *testing.T, factory EngineFactory) {
	e, _ := open(t, factory)
	revs := revisions(t, 2)

	require.NoError(t, e.Insert(7, 1, revs[0]))
	size := e.LogSize()

	err := e.Insert(7, 2, revs[1])
	require.ErrorIs(t, err, db.ErrKeyExists)

	entry, ok := e.Get(7)
	require.True(t, ok)
	assert.Equal(t, uint32(1), entry.Value, "a rejected insert must not change the entry")
	assert.Equal(t, revs[0], entry.Revision)
	assert.Equal(t, size, e.LogSize(), "a rejected insert must not append")
}

func testCompareAndSwap(t *testing.T, factory EngineFactory) {
	e, _ := open(t, factory)
	revs := revisions(t, 5)

	err := e.Update(1, 1, revs[0], revs[0])
	require.ErrorIs(t, err, db.ErrKeyDoesNotExist)

	require.NoError(t, e.Insert(1, 1, revs[0]))
	require.NoError(t, e.Update(1, 2, revs[1], revs[0]))

	// stale expected revision
	size := e.LogSize()
	err = e.Update(1, 3, revs[2], revs[0])
	require.ErrorIs(t, err, db.ErrPrevRevMismatch)
	assert.Equal(t, size, e.LogSize())

	entry, ok := e.Get(1)
	require.True(t, ok)
	assert.Equal(t, uint32(2), entry.Value)
	assert.Equal(t, revs[1], entry.Revision)
	prev, ok := entry.PrevRev.Get()
	require.True(t, ok)
	assert.Equal(t, revs[0], prev)

	require.NoError(t, e.Update(1, 3, revs[2], revs[1]))
	entry, _ = e.Get(1)
	assert.Equal(t, uint32(3), entry.Value)
}

func testRange(t *testing.T, factory EngineFactory) {
	e, _ := open(t, factory)
	revs := revisions(t, 10)

	// insert in an order that differs from the key order
	keys := []uint64{50, 10, 90, 30, 70, 20, 80, 40, 60, 0}
	for i, k := range keys {
		require.NoError(t, e.Insert(k, uint32(k), revs[i]))
	}

	collect := func(lower, upper db.Bound[uint64]) []uint64 {
		var out []uint64
		for k, v := range e.Range(lower, upper) {
			assert.Equal(t, uint32(k), v.Value)
			out = append(out, k)
		}
		return out
	}

	assert.Equal(t, []uint64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90}, collect(db.Unbounded[uint64](), db.Unbounded[uint64]()))
	assert.Equal(t, []uint64{20, 30, 40}, collect(db.Included[uint64](20), db.Included[uint64](40)))
	assert.Equal(t, []uint64{30}, collect(db.Excluded[uint64](20), db.Excluded[uint64](40)))
	assert.Equal(t, []uint64{20, 30}, collect(db.Included[uint64](15), db.Excluded[uint64](40)))
	assert.Equal(t, []uint64{0, 10}, collect(db.Unbounded[uint64](), db.Excluded[uint64](20)))
	assert.Equal(t, []uint64{80, 90}, collect(db.Excluded[uint64](70), db.Unbounded[uint64]()))
	assert.Empty(t, collect(db.Included[uint64](41), db.Included[uint64](49)))
	assert.Empty(t, collect(db.Included[uint64](60), db.Included[uint64](50)))
	assert.Empty(t, collect(db.Excluded[uint64](50), db.Excluded[uint64](50)))

	// early termination
	var first []uint64
	for k := range e.All() {
		first = append(first, k)
		if len(first) == 3 {
			break
		}
	}
	assert.Equal(t, []uint64{0, 10, 20}, first)
}

func testRangeSnapshot(t *testing.T, factory EngineFactory) {
	e, _ := open(t, factory)
	revs := revisions(t, 4)

	require.NoError(t, e.Insert(1, 1, revs[0]))
	require.NoError(t, e.Insert(2, 2, revs[1]))

	seq := e.All()

	// writes after Range are not visible in the returned sequence
	require.NoError(t, e.Insert(3, 3, revs[2]))
	require.NoError(t, e.Update(1, 10, revs[3], revs[0]))

	got := make(map[uint64]uint32)
	for k, v := range seq {
		got[k] = v.Value
		// writing while iterating must not block
		_ = e.Insert(k+100, v.Value, revision.New())
	}
	assert.Equal(t, map[uint64]uint32{1: 1, 2: 2}, got)
}

func testScenario(t *testing.T, factory EngineFactory) {
	e, path := open(t, factory)
	revs := revisions(t, 3)
	r1, r2, r3 := revs[0], revs[1], revs[2]

	require.NoError(t, e.Insert(1, 10, r1))
	require.ErrorIs(t, e.Insert(1, 99, r2), db.ErrKeyExists)
	require.NoError(t, e.Update(1, 20, r3, r1))

	entry, ok := e.Get(1)
	require.True(t, ok)
	assert.Equal(t, uint32(20), entry.Value)
	assert.Equal(t, r3, entry.Revision)
	prev, ok := entry.PrevRev.Get()
	require.True(t, ok)
	assert.Equal(t, r1, prev)

	before := snapshot(e)
	require.NoError(t, e.Close())

	reopened := reopen(t, factory, path)
	assert.Equal(t, before, snapshot(reopened))

	if reopened.RetainsHistory() {
		all := reopened.Revisions(1)
		require.Len(t, all, 2)
		assert.Equal(t, r1, all[0].Revision)
		assert.Equal(t, uint32(10), all[0].Value)
		assert.Equal(t, r3, all[1].Revision)

		_, ok := reopened.At(1, r1)
		assert.True(t, ok)
		_, ok = reopened.At(1, r2)
		assert.False(t, ok, "a rejected insert must leave no trace")
	}
}

func testRecoveryIdempotence(t *testing.T, factory EngineFactory) {
	e, path := open(t, factory)
	revs := revisions(t, 300)

	next := 0
	for k := uint64(0); k < 100; k++ {
		require.NoError(t, e.Insert(k, uint32(k), revs[next]))
		next++
	}
	for k := uint64(0); k < 100; k += 2 {
		cur, _ := e.Get(k)
		require.NoError(t, e.Update(k, cur.Value+1000, revs[next], cur.Revision))
		next++
	}

	digest, err := e.Digest()
	require.NoError(t, err)
	size := e.LogSize()
	historyLen := e.HistoryLen()
	require.NoError(t, e.Close())

	for i := 0; i < 3; i++ {
		reopened, err := factory(path)
		require.NoError(t, err)

		again, err := reopened.Digest()
		require.NoError(t, err)
		assert.Equal(t, digest, again, "reopen %d changed the digest", i)
		assert.Equal(t, size, reopened.LogSize())
		if reopened.RetainsHistory() {
			// recovery keeps every record, the live engine only the superseded ones
			assert.Equal(t, historyLen+reopened.Len(), reopened.HistoryLen())
		}
		require.NoError(t, reopened.Close())
	}
}

func testWriteOrderDeterminism(t *testing.T, factory EngineFactory) {
	revs := revisions(t, 4)

	build := func(ops func(e *Engine)) uint64 {
		e, _ := open(t, factory)
		ops(e)
		d, err := e.Digest()
		require.NoError(t, err)
		return d
	}

	a := build(func(e *Engine) {
		require.NoError(t, e.Insert(1, 1, revs[0]))
		require.NoError(t, e.Insert(2, 2, revs[1]))
		require.NoError(t, e.Update(1, 3, revs[2], revs[0]))
	})
	b := build(func(e *Engine) {
		require.NoError(t, e.Insert(2, 2, revs[1]))
		require.NoError(t, e.Insert(1, 1, revs[0]))
		require.NoError(t, e.Update(1, 3, revs[2], revs[0]))
	})
	c := build(func(e *Engine) {
		require.NoError(t, e.Insert(1, 1, revs[0]))
		require.NoError(t, e.Insert(2, 2, revs[1]))
		require.NoError(t, e.Update(1, 4, revs[3], revs[0]))
	})

	assert.Equal(t, a, b, "same final state must give the same digest")
	assert.NotEqual(t, a, c)
}

func testHistory(t *testing.T, factory EngineFactory) {
	e, path := open(t, factory)
	requireHistory(t, e)
	revs := revisions(t, 5)

	require.NoError(t, e.Insert(1, 100, revs[0]))
	for i := 1; i < 4; i++ {
		require.NoError(t, e.Update(1, uint32(100+i), revs[i], revs[i-1]))
	}
	require.NoError(t, e.Insert(2, 200, revs[4]))

	check := func(e *Engine) {
		for i := 0; i < 4; i++ {
			entry, ok := e.At(1, revs[i])
			require.True(t, ok, "revision %d", i)
			assert.Equal(t, uint32(100+i), entry.Value)
		}

		all := e.Revisions(1)
		require.Len(t, all, 4)
		for i, entry := range all {
			assert.Equal(t, revs[i], entry.Revision)
		}

		lineage, err := e.Lineage(1)
		require.NoError(t, err)
		require.Len(t, lineage, 4)
		for i, entry := range lineage {
			assert.Equal(t, revs[3-i], entry.Revision, "lineage is newest first")
		}
		assert.True(t, lineage[3].IsGenesis())

		lineage, err = e.Lineage(2)
		require.NoError(t, err)
		assert.Len(t, lineage, 1)

		_, err = e.Lineage(3)
		assert.ErrorIs(t, err, db.ErrKeyDoesNotExist)

		assert.NoError(t, e.CheckLineage())
	}

	check(e)
	require.NoError(t, e.Close())
	check(reopen(t, factory, path))
}

func testConcurrentInsert(t *testing.T, factory EngineFactory) {
	e, path := open(t, factory)

	const writers = 16
	const keys = 64

	var wins atomic.Int64
	var g errgroup.Group
	for w := 0; w < writers; w++ {
		g.Go(func() error {
			for k := uint64(0); k < keys; k++ {
				err := e.Insert(k, uint32(w), revision.New())
				switch {
				case err == nil:
					wins.Add(1)
				case errors.Is(err, db.ErrKeyExists):
				default:
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int64(keys), wins.Load(), "exactly one insert per key must win")
	assert.Equal(t, keys, e.Len())

	before := snapshot(e)
	require.NoError(t, e.Close())
	assert.Equal(t, before, snapshot(reopen(t, factory, path)))
}

func testConcurrentUpdate(t *testing.T, factory EngineFactory) {
	e, path := open(t, factory)
	gen := revision.NewGenerator()

	first, err := gen.Next()
	require.NoError(t, err)
	require.NoError(t, e.Insert(1, 0, first))

	const writers = 8
	const rounds = 50

	var wins atomic.Int64
	var g errgroup.Group
	for w := 0; w < writers; w++ {
		g.Go(func() error {
			for i := 0; i < rounds; i++ {
				cur, _ := e.Get(1)
				rev, err := gen.Next()
				if err != nil {
					return err
				}
				err = e.Update(1, cur.Value+1, rev, cur.Revision)
				switch {
				case err == nil:
					wins.Add(1)
				case errors.Is(err, db.ErrPrevRevMismatch):
				default:
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	entry, _ := e.Get(1)
	assert.Equal(t, uint32(wins.Load()), entry.Value, "every successful swap must build on the previous one")

	require.NoError(t, e.Close())
	reopened := reopen(t, factory, path)
	again, _ := reopened.Get(1)
	assert.Equal(t, entry, again)
	if reopened.RetainsHistory() {
		lineage, err := reopened.Lineage(1)
		require.NoError(t, err)
		assert.Len(t, lineage, int(wins.Load())+1)
		assert.NoError(t, reopened.CheckLineage())
	}
}

func testClose(t *testing.T, factory EngineFactory) {
	e, path := open(t, factory)
	revs := revisions(t, 3)

	require.NoError(t, e.Insert(1, 1, revs[0]))
	require.NoError(t, e.Close())
	require.NoError(t, e.Close(), "close must be idempotent")

	assert.ErrorIs(t, e.Insert(2, 2, revs[1]), db.ErrClosed)
	assert.ErrorIs(t, e.Update(1, 2, revs[2], revs[0]), db.ErrClosed)

	// reads keep working on the in-memory state
	entry, ok := e.Get(1)
	require.True(t, ok)
	assert.Equal(t, uint32(1), entry.Value)

	// the log is released and can be opened again
	reopened := reopen(t, factory, path)
	assert.Equal(t, 1, reopened.Len())
}
