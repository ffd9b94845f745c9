// Package store provides a high-level interface for revisioned key-value storage with
// automatic revision assignment and unified error handling.
// It serves as an abstraction layer over the db.Engine, which expects the caller to
// choose a revision for every write.
//
// The package focuses on:
//   - A unified interface (IStore) for create, compare-and-swap and put operations
//   - Standardized error reporting with return codes
//
// Key Components:
//
//   - IStore Interface: The core abstraction. Every write returns the revision it created,
//     which is the token for the next compare-and-swap (Swap) on the same key.
//
//   - Engine Interface: The subset of db.Engine a store needs. Any *db.Engine satisfies it.
//
//   - Error System: A structured error reporting mechanism using typed return codes and
//     descriptive messages. Errors wrap the engine error that caused them, so both
//     err.(*store.Error).Code and errors.Is(err, db.ErrKeyExists) can be used.
//
// Implementations:
//
//	- Local Store (lstore): Uses a db.Engine of the same process and a revision.Generator
//	  for strictly increasing revisions.
//	  Available in the "github.com/ValentinKolb/kvr/lib/store/lstore" package.
package store
