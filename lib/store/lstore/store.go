package lstore

import (
	"errors"
	"fmt"

	"github.com/ValentinKolb/kvr/lib/db"
	"github.com/ValentinKolb/kvr/lib/record"
	"github.com/ValentinKolb/kvr/lib/revision"
	"github.com/ValentinKolb/kvr/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("store")

// MaxPutAttempts is the number of optimistic attempts Put makes before it gives up.
const MaxPutAttempts = 16

type storeImpl[K, V comparable] struct {
	engine store.Engine[K, V]
	gen    *revision.Generator
}

// NewLocalStore creates a new local store on top of engine.
// This store implementation is not distributed and only works on a single node.
//
// The revision generator continues after the highest revision found in the engine, so
// revisions handed out by the store are always greater than the ones already in the log.
func NewLocalStore[K, V comparable](engine store.Engine[K, V]) store.IStore[K, V] {
	gen := revision.NewGenerator()
	for _, entry := range engine.All() {
		gen.Observe(entry.Revision)
	}

	return &storeImpl[K, V]{
		engine: engine,
		gen:    gen,
	}
}

// nextRevision returns a new revision.
//
// Thread-safety: This method is thread-safe since the generator is.
func (s *storeImpl[K, V]) nextRevision() (revision.Revision, error) {
	rev, err := s.gen.Next()
	if err != nil {
		storeErr := store.NewError(store.RetCInternalError, "failed to generate revision")
		storeErr.Cause = err
		return revision.Zero, storeErr
	}
	return rev, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl[K, V]) Create(key K, value V) (revision.Revision, error) {
	rev, err := s.nextRevision()
	if err != nil {
		return revision.Zero, err
	}
	if err := s.engine.Insert(key, value, rev); err != nil {
		return revision.Zero, store.FromEngineError(err)
	}
	return rev, nil
}

func (s *storeImpl[K, V]) Swap(key K, value V, expected revision.Revision) (revision.Revision, error) {
	rev, err := s.nextRevision()
	if err != nil {
		return revision.Zero, err
	}
	if err := s.engine.Update(key, value, rev, expected); err != nil {
		return revision.Zero, store.FromEngineError(err)
	}
	return rev, nil
}

func (s *storeImpl[K, V]) Put(key K, value V) (revision.Revision, error) {
	var lastErr error

	for attempt := 1; attempt <= MaxPutAttempts; attempt++ {
		rev, err := s.nextRevision()
		if err != nil {
			return revision.Zero, err
		}

		if cur, ok := s.engine.Get(key); ok {
			err = s.engine.Update(key, value, rev, cur.Revision)
		} else {
			err = s.engine.Insert(key, value, rev)
		}

		switch {
		case err == nil:
			if attempt > 1 {
				log.Debugf("put of key %v succeeded after %d attempts", key, attempt)
			}
			return rev, nil
		case errors.Is(err, db.ErrPrevRevMismatch), errors.Is(err, db.ErrKeyExists):
			// another writer came first, read again
			lastErr = err
		default:
			return revision.Zero, store.FromEngineError(err)
		}
	}

	log.Warningf("put of key %v gave up after %d attempts", key, MaxPutAttempts)
	storeErr := store.NewError(store.RetCConflict, fmt.Sprintf("key changed concurrently during %d attempts", MaxPutAttempts))
	storeErr.Cause = lastErr
	return revision.Zero, storeErr
}

func (s *storeImpl[K, V]) Get(key K) (record.ValueEntry[V], bool, error) {
	entry, ok := s.engine.Get(key)
	return entry, ok, nil
}

func (s *storeImpl[K, V]) History(key K) ([]record.ValueEntry[V], error) {
	entries, err := s.engine.Lineage(key)
	if err != nil {
		return nil, store.FromEngineError(err)
	}
	return entries, nil
}
