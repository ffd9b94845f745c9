package db

import (
	"errors"
	"fmt"

	"github.com/ValentinKolb/kvr/lib/record"
)

// --------------------------------------------------------------------------
// Logical outcomes
// --------------------------------------------------------------------------

// These errors are ordinary results of a call, not signs of a broken engine.
var (
	ErrKeyExists       = errors.New("key already exists")
	ErrKeyDoesNotExist = errors.New("key does not exist")
	ErrPrevRevMismatch = errors.New("expected previous revision does not match the current revision")
	ErrClosed          = errors.New("engine is closed")
	ErrAlreadyOpen     = errors.New("log file is already in use by another engine of this process")
	ErrHistoryDisabled = errors.New("historical entries are not retained by this engine")
	ErrBrokenLineage   = errors.New("revision lineage is broken")
)

// --------------------------------------------------------------------------
// Initialization errors
// --------------------------------------------------------------------------

// Kinds of an InitError. Match them with errors.Is.
var (
	ErrCodec         = errors.New("codec self check failed")
	ErrOpenFile      = errors.New("failed to open log file")
	ErrReadFile      = errors.New("failed to read log file")
	ErrWriteHeader   = errors.New("failed to write log header")
	ErrDecodeMagic   = errors.New("failed to decode log header")
	ErrMagicMismatch = record.ErrMagicMismatch
	ErrDecodeRecord  = errors.New("failed to decode record")
)

// InitError is returned by Open. Initialization errors are always fatal: there is no
// retry and no partial recovery.
type InitError struct {
	Kind   error  // one of ErrCodec, ErrOpenFile, ErrReadFile, ErrWriteHeader, ErrDecodeMagic, ErrMagicMismatch, ErrDecodeRecord
	Path   string // the log file
	Offset int64  // byte offset of the failing record (only for ErrDecodeRecord)
	Err    error  // the underlying cause
}

func (e *InitError) Error() string {
	if e.Kind == ErrDecodeRecord {
		return fmt.Sprintf("open %s: %v at offset %d: %v", e.Path, e.Kind, e.Offset, e.Err)
	}
	return fmt.Sprintf("open %s: %v: %v", e.Path, e.Kind, e.Err)
}

func (e *InitError) Is(target error) bool { return target == e.Kind }

func (e *InitError) Unwrap() error { return e.Err }

// --------------------------------------------------------------------------
// Write errors
// --------------------------------------------------------------------------

// Kinds of a WriteError. Match them with errors.Is.
var (
	ErrSerialization = errors.New("failed to encode record")
	ErrIO            = errors.New("failed to append record to log")
)

// WriteError is returned by Insert and Update if the record could not be encoded or appended.
//
// After an ErrIO the engine refuses all further writes, because the failed append
// may have left a partial record at the end of the log. Reopening the engine runs
// recovery, which reports such a record as ErrDecodeRecord.
type WriteError struct {
	Op   string // "insert" or "update"
	Kind error  // ErrSerialization or ErrIO
	Err  error  // the underlying cause
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *WriteError) Is(target error) bool { return target == e.Kind }

func (e *WriteError) Unwrap() error { return e.Err }
