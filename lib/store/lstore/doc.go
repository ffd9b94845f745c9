// Package lstore implements a local, single-node key-value store based on the
// store.IStore interface. It provides a thin wrapper around a db.Engine with automatic
// revision management.
//
// Key Features:
//   - Persistent storage through the append-only log of the engine
//   - Automatic revisions from a revision.Generator
//   - Put with bounded optimistic retries on top of the engine's compare-and-swap
//   - Thread-safe operations for concurrent access
//
// Implementation Details:
//
//   - Revision Management: The store owns a generator that hands out strictly increasing
//     revisions. On creation it observes every current revision of the engine, so new
//     revisions sort after everything already in the log even if the clock went backwards
//     between two runs.
//
//   - Put: Reads the current revision and swaps (or inserts, if the key is missing).
//     If another writer changed the key in between, Put reads again, up to MaxPutAttempts
//     times, and then fails with store.RetCConflict.
//
// Thread Safety:
//
//	All operations in the local store are thread-safe. The engine serializes writes, the
//	generator is guarded by its own lock.
//
// Usage Example:
//
//	engine, err := db.Open[uint64, uint64]("data.log", codec.Uint64, codec.Uint64, nil)
//	s := lstore.NewLocalStore[uint64, uint64](engine)
//
//	rev, err := s.Create(1, 10)
//	rev, err = s.Swap(1, 20, rev)
//	entry, ok, err := s.Get(1)
package lstore
