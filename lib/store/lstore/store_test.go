package lstore

import (
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/kvr/lib/codec"
	"github.com/ValentinKolb/kvr/lib/db"
	"github.com/ValentinKolb/kvr/lib/revision"
	"github.com/ValentinKolb/kvr/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func openEngine(t *testing.T, path string) *db.Engine[uint64, uint64] {
	e, err := db.Open[uint64, uint64](path, codec.Uint64, codec.Uint64, &db.Options{RetainHistory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func newStore(t *testing.T) (store.IStore[uint64, uint64], *db.Engine[uint64, uint64]) {
	e := openEngine(t, filepath.Join(t.TempDir(), "kvr.log"))
	return NewLocalStore[uint64, uint64](e), e
}

func requireCode(t *testing.T, err error, code store.RetCode) {
	t.Helper()
	var storeErr *store.Error
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, code, storeErr.Code, storeErr.Error())
}

func TestCreateSwapGet(t *testing.T) {
	s, _ := newStore(t)

	r1, err := s.Create(1, 10)
	require.NoError(t, err)

	_, err = s.Create(1, 11)
	requireCode(t, err, store.RetCKeyExists)
	assert.ErrorIs(t, err, db.ErrKeyExists)

	r2, err := s.Swap(1, 20, r1)
	require.NoError(t, err)
	assert.Equal(t, 1, r2.Compare(r1))

	_, err = s.Swap(1, 30, r1)
	requireCode(t, err, store.RetCConflict)

	_, err = s.Swap(2, 30, r1)
	requireCode(t, err, store.RetCNotFound)

	entry, ok, err := s.Get(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(20), entry.Value)
	assert.Equal(t, r2, entry.Revision)

	_, ok, err = s.Get(2)
	require.NoError(t, err)
	assert.False(t, ok)

	history, err := s.History(1)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, r2, history[0].Revision)
	assert.Equal(t, r1, history[1].Revision)
}

func TestPut(t *testing.T) {
	s, _ := newStore(t)

	r1, err := s.Put(1, 1)
	require.NoError(t, err)
	r2, err := s.Put(1, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, r2.Compare(r1))

	entry, _, _ := s.Get(1)
	assert.Equal(t, uint64(2), entry.Value)
	prev, ok := entry.PrevRev.Get()
	require.True(t, ok)
	assert.Equal(t, r1, prev)
}

// racingEngine loses every update against a concurrent writer
type racingEngine struct {
	*db.Engine[uint64, uint64]
	updates int
}

func (e *racingEngine) Update(uint64, uint64, revision.Revision, revision.Revision) error {
	e.updates++
	return db.ErrPrevRevMismatch
}

func TestPutGivesUp(t *testing.T) {
	e := &racingEngine{Engine: openEngine(t, filepath.Join(t.TempDir(), "kvr.log"))}
	require.NoError(t, e.Insert(1, 1, revision.New()))

	s := NewLocalStore[uint64, uint64](e)
	_, err := s.Put(1, 2)
	requireCode(t, err, store.RetCConflict)
	assert.ErrorIs(t, err, db.ErrPrevRevMismatch)
	assert.Equal(t, MaxPutAttempts, e.updates)

	entry, _, _ := s.Get(1)
	assert.Equal(t, uint64(1), entry.Value)
}

func TestConcurrentPutConverges(t *testing.T) {
	s, e := newStore(t)

	const writers = 8
	const puts = 50

	var conflicts atomic.Int64
	var g errgroup.Group
	for w := 0; w < writers; w++ {
		g.Go(func() error {
			for i := 0; i < puts; i++ {
				_, err := s.Put(7, uint64(w*puts+i))
				var storeErr *store.Error
				if errors.As(err, &storeErr) && storeErr.Code == store.RetCConflict {
					conflicts.Add(1)
					continue
				}
				if err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	// every successful put is one link of the lineage
	history, err := s.History(7)
	require.NoError(t, err)
	assert.Equal(t, writers*puts-int(conflicts.Load()), len(history))
	assert.NoError(t, e.CheckLineage())
}

func TestRevisionsContinueAfterReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kvr.log")
	e := openEngine(t, path)

	// a revision far in the future, written by someone else
	future := revision.FromUint128(codec.Uint128{Hi: ^uint64(0) >> 1})
	require.NoError(t, e.Insert(1, 1, future))
	require.NoError(t, e.Close())

	e = openEngine(t, path)
	s := NewLocalStore[uint64, uint64](e)

	rev, err := s.Put(1, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, rev.Compare(future))
}

func TestClosedEngine(t *testing.T) {
	s, e := newStore(t)
	require.NoError(t, e.Close())

	_, err := s.Create(1, 1)
	requireCode(t, err, store.RetCUnavailable)

	_, err = s.Put(1, 1)
	requireCode(t, err, store.RetCUnavailable)
}

func TestHistoryDisabled(t *testing.T) {
	e, err := db.Open[uint64, uint64](filepath.Join(t.TempDir(), "kvr.log"), codec.Uint64, codec.Uint64, nil)
	require.NoError(t, err)
	defer e.Close()

	s := NewLocalStore[uint64, uint64](e)
	_, err = s.Create(1, 1)
	require.NoError(t, err)

	_, err = s.History(1)
	requireCode(t, err, store.RetCUnsupportedOperation)
}
