// Package db provides the storage engine of kvr: an in-memory index of the latest entry
// per key, backed by an append-only log file that is replayed on startup.
//
// The engine is generic over fixed-width key and value types. Each of them needs a codec
// (see package codec) that encodes the type into exactly Size() bytes and owns a magic
// sentinel value, which is used for the log header and for the self check at Open.
//
// Key Components:
//
//   - Engine: Owns the log file, the current index (key → latest ValueEntry) and the
//     optional historical index (key at revision → superseded entry). Both indexes are
//     google/btree B-trees ordered by the key codec.
//
//   - Recovery: Open replays the log in file order. The last record of a key defines its
//     current entry. Every record must decode; a truncated or corrupt tail fails the whole
//     open with an *InitError instead of being skipped.
//
//   - Mutations: Insert creates a key, Update replaces it with compare-and-swap semantics
//     on the previous revision. Each write appends one record to the log before the
//     in-memory state is changed.
//
//   - Queries: Get, Range and All read the current index; At, Revisions, Lineage and
//     CheckLineage read the historical index.
//
//   - Digest, Backup and WriteMetrics: helpers for verification, backups (see package
//     backup) and monitoring.
//
// Note on Revisions:
//   - Revisions are chosen by the caller. The engine stores them and compares them for
//     equality during Update, but never checks that they increase. Package store provides
//     a layer that assigns revisions automatically.
//   - Each entry links to the revision it replaced. Following these links from the current
//     entry leads back to the entry that created the key (see Lineage).
//
// Note on Failures:
//   - Logical outcomes (ErrKeyExists, ErrKeyDoesNotExist, ErrPrevRevMismatch) leave the log
//     untouched.
//   - If an append fails, the engine reports a *WriteError of kind ErrIO and refuses all
//     further writes. Reads keep working. Reopening the log runs recovery, which either
//     succeeds or reports the partial record.
//
// Note on Concurrency:
//   - Mutations are serialized by one lock that is held for the check, the append and the
//     in-memory commit. The order of records in the log is therefore the order of writes.
//   - Reads share the lock. Range iterates a copy-on-write snapshot and holds no lock
//     while the caller consumes it.
//   - A log file can only be owned by one engine per process (ErrAlreadyOpen).
//     Coordination between processes is not provided.
//
// Related Packages:
//
// The testing package (github.com/ValentinKolb/kvr/lib/db/testing) contains the behavioral
// test suite every engine configuration must pass. The store package
// (github.com/ValentinKolb/kvr/lib/store) builds a key-value store with automatic revisions
// on top of the engine.
package db
