package db

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/kvr/lib/codec"
	"github.com/ValentinKolb/kvr/lib/record"
	"github.com/google/btree"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("db")

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	defaultReadBufferSize = 1024 * 1024 // 1 MB read buffer during recovery
	defaultBTreeDegree    = 32
	logFileMode           = 0o644
)

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// Options configures an engine. They are fixed for the lifetime of the engine.
type Options struct {
	RetainHistory  bool // keep every replayed and superseded entry in the historical index
	SkipHeader     bool // neither write nor verify the magic header record (headerless logs)
	SyncWrites     bool // fsync the log after every append
	ReadBufferSize int  // size of the read buffer used by recovery (0 = 1 MB)
	BTreeDegree    int  // degree of the index b-trees (0 = 32)
}

// DefaultOptions returns the default engine options:
// header enabled, no history, no fsync per write.
func DefaultOptions() *Options {
	return &Options{
		ReadBufferSize: defaultReadBufferSize,
		BTreeDegree:    defaultBTreeDegree,
	}
}

func (o Options) withDefaults() Options {
	if o.ReadBufferSize <= 0 {
		o.ReadBufferSize = defaultReadBufferSize
	}
	if o.BTreeDegree < 2 {
		o.BTreeDegree = defaultBTreeDegree
	}
	return o
}

// --------------------------------------------------------------------------
// Index items
// --------------------------------------------------------------------------

// currentItem is an element of the current index
type currentItem[K, V comparable] struct {
	key   K
	entry record.ValueEntry[V]
}

// historyItem is an element of the historical index
type historyItem[K, V comparable] struct {
	key   record.KeyAtRevision[K]
	value record.HistoricalValue[V]
}

// logFile is the part of *os.File the engine appends to
type logFile interface {
	io.Writer
	Sync() error
	Close() error
}

// --------------------------------------------------------------------------
// Engine
// --------------------------------------------------------------------------

// Engine is an in-memory index of the latest entry per key, backed by an append-only log.
//
// The engine owns its log file, its current index and its historical index exclusively.
// Mutations (Insert, Update) are serialized by an internal lock that covers the whole
// check, append and commit sequence, so the order of records in the log is the order
// in which writes happened. Reads may run concurrently with each other.
type Engine[K, V comparable] struct {
	mu sync.RWMutex

	path  string
	opts  Options
	codec record.Codec[K, V]
	cmp   func(a, b K) int

	current *btree.BTreeG[currentItem[K, V]]
	history *btree.BTreeG[historyItem[K, V]]

	file     logFile
	scratch  []byte       // encode buffer, only used while holding mu
	logSize  atomic.Int64 // bytes of valid records in the log
	writeErr error        // first append failure, makes the engine read-only
	closed   bool

	metrics *engineMetrics
}

// Open opens (or creates) the log at path and replays it into memory.
//
// The file is opened for reading and appending and created if it does not exist;
// there is no separate create mode. A new file receives the magic header record,
// an existing file must start with it (unless opts.SkipHeader is set). Every
// following record is replayed in file order, the last record of a key defines its
// current entry. Any error is returned as *InitError.
//
// Thread-safety: Open is thread-safe. Opening the same path twice in one process
// fails with ErrAlreadyOpen until the first engine is closed.
func Open[K, V comparable](path string, keys codec.KeyCodec[K], values codec.Codec[V], opts *Options) (*Engine[K, V], error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &InitError{Kind: ErrOpenFile, Path: path, Err: err}
	}

	if err := acquireLog(abs); err != nil {
		return nil, err
	}

	e, err := openEngine(abs, keys, values, opts.withDefaults())
	if err != nil {
		releaseLog(abs)
		return nil, err
	}

	return e, nil
}

func openEngine[K, V comparable](path string, keys codec.KeyCodec[K], values codec.Codec[V], opts Options) (*Engine[K, V], error) {
	// make sure both codecs can represent their own sentinel before trusting them with data
	if err := codec.VerifyMagic[K](keys); err != nil {
		return nil, &InitError{Kind: ErrCodec, Path: path, Err: err}
	}
	if err := codec.VerifyMagic[V](values); err != nil {
		return nil, &InitError{Kind: ErrCodec, Path: path, Err: err}
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND|os.O_CREATE, logFileMode)
	if err != nil {
		return nil, &InitError{Kind: ErrOpenFile, Path: path, Err: err}
	}

	e := &Engine[K, V]{
		path:  path,
		opts:  opts,
		codec: record.NewCodec(keys, values),
		cmp:   keys.Compare,
		file:  f,
	}

	e.current = btree.NewG[currentItem[K, V]](opts.BTreeDegree, func(a, b currentItem[K, V]) bool {
		return e.cmp(a.key, b.key) < 0
	})
	e.history = btree.NewG[historyItem[K, V]](opts.BTreeDegree, func(a, b historyItem[K, V]) bool {
		if c := e.cmp(a.key.Key, b.key.Key); c != 0 {
			return c < 0
		}
		return a.key.Revision.Compare(b.key.Revision) < 0
	})
	e.metrics = newEngineMetrics(path, e)

	if err := e.replayLog(f); err != nil {
		_ = f.Close()
		return nil, err
	}

	return e, nil
}

// Path returns the absolute path of the log file.
func (e *Engine[K, V]) Path() string {
	return e.path
}

// RetainsHistory reports whether the engine keeps a historical index.
func (e *Engine[K, V]) RetainsHistory() bool {
	return e.opts.RetainHistory
}

// LogSize returns the number of bytes of valid records in the log, including the header.
func (e *Engine[K, V]) LogSize() int64 {
	return e.logSize.Load()
}

// Close syncs and closes the log file. The in-memory indexes stay readable,
// all writes fail with ErrClosed. Closing a closed engine is a no-op.
//
// Thread-safety: This method is thread-safe. It waits for running mutations.
func (e *Engine[K, V]) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	defer releaseLog(e.path)

	var syncErr error
	if e.writeErr == nil {
		syncErr = e.file.Sync()
	}
	closeErr := e.file.Close()

	log.Debugf("closed %s (%d keys, %d bytes)", e.path, e.current.Len(), e.logSize.Load())
	return errors.Join(syncErr, closeErr)
}
