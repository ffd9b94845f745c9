package store

import (
	"errors"
	"fmt"
	"iter"

	"github.com/ValentinKolb/kvr/lib/db"
	"github.com/ValentinKolb/kvr/lib/record"
	"github.com/ValentinKolb/kvr/lib/revision"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// Engine is the part of a db.Engine the store builds on.
type Engine[K, V comparable] interface {
	Insert(key K, value V, rev revision.Revision) error
	Update(key K, value V, rev, expectedPrev revision.Revision) error
	Get(key K) (record.ValueEntry[V], bool)
	Lineage(key K) ([]record.ValueEntry[V], error)
	All() iter.Seq2[K, record.ValueEntry[V]]
}

// IStore is the generic interface for interacting with a revisioned key–value store.
// Revisions are assigned by the store; every successful write returns the revision it created.
// All errors returned by an IStore are of type *Error.
type IStore[K, V comparable] interface {
	// Create inserts a new key. It fails with RetCKeyExists if the key already exists.
	Create(key K, value V) (rev revision.Revision, err error)
	// Swap replaces the value of a key if its current revision equals expected.
	// It fails with RetCNotFound if the key does not exist and with RetCConflict if the
	// revision does not match.
	Swap(key K, value V, expected revision.Revision) (rev revision.Revision, err error)
	// Put inserts or replaces a key, no matter its current revision.
	// Concurrent writers are resolved by retrying; RetCConflict is returned if the key
	// keeps changing.
	Put(key K, value V) (rev revision.Revision, err error)
	// Get returns the current entry of a key. The boolean return value indicates whether the key was found.
	Get(key K) (entry record.ValueEntry[V], loaded bool, err error)
	// History returns all entries of a key, newest first.
	// It fails with RetCUnsupportedOperation if the engine does not retain history.
	History(key K) (entries []record.ValueEntry[V], err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode),
// an error message and the engine error that caused it.
type Error struct {
	Code  RetCode // The return code
	Msg   string  // The error message.
	Cause error   // The underlying engine error, if any.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("KVStoreError (code %s): %s", e.Code, e.Msg)
}

// Unwrap returns the underlying engine error, so errors.Is(err, db.ErrKeyExists) works.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// FromEngineError converts a non-nil error returned by the engine into an *Error.
func FromEngineError(err error) *Error {
	code := RetCInternalError
	switch {
	case errors.Is(err, db.ErrKeyExists):
		code = RetCKeyExists
	case errors.Is(err, db.ErrKeyDoesNotExist):
		code = RetCNotFound
	case errors.Is(err, db.ErrPrevRevMismatch):
		code = RetCConflict
	case errors.Is(err, db.ErrHistoryDisabled):
		code = RetCUnsupportedOperation
	case errors.Is(err, db.ErrClosed), errors.Is(err, db.ErrIO):
		code = RetCUnavailable
	case errors.Is(err, db.ErrSerialization):
		code = RetCInvalidOperation
	}

	return &Error{Code: code, Msg: err.Error(), Cause: err}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by underlying database.
	RetCInvalidOperation                    // 3: Invalid operation.
	RetCKeyExists                           // 4: The key already exists.
	RetCNotFound                            // 5: The key does not exist.
	RetCConflict                            // 6: The expected revision did not match.
	RetCUnavailable                         // 7: The engine no longer accepts writes.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCKeyExists:
		return "KeyExists"
	case RetCNotFound:
		return "NotFound"
	case RetCConflict:
		return "Conflict"
	case RetCUnavailable:
		return "Unavailable"
	default:
		return "Unknown"
	}
}
