package db

import (
	"bufio"
	"errors"
	"io"
	"os"
	"time"

	"github.com/ValentinKolb/kvr/lib/record"
)

// --------------------------------------------------------------------------
// Recovery
// --------------------------------------------------------------------------

// replayLog replays the log file into the indexes.
// It is only called by Open, before the engine is shared, and therefore takes no lock.
//
// The log is decoded as a stream through a buffered reader, so memory usage is bounded by
// the indexes and not by the file size. Records are applied in file order; the last
// record of a key wins in the current index. With history retention every record is also
// put into the historical index, including the ones that end up as current entries.
// Any record that cannot be decoded fails the whole recovery, as does a magic header
// in a log that is opened without header.
func (e *Engine[K, V]) replayLog(f *os.File) error {
	start := time.Now()

	info, err := f.Stat()
	if err != nil {
		return &InitError{Kind: ErrReadFile, Path: e.path, Err: err}
	}

	// new log: write the header and we are done
	if info.Size() == 0 {
		if !e.opts.SkipHeader {
			if err := e.writeHeader(); err != nil {
				return err
			}
			log.Infof("created log %s", e.path)
		}
		return nil
	}

	rd := e.codec.NewReader(bufio.NewReaderSize(f, e.opts.ReadBufferSize))

	if !e.opts.SkipHeader {
		header, err := rd.Next()
		if err != nil {
			kind := ErrReadFile
			var decErr *record.DecodeError
			if errors.As(err, &decErr) || errors.Is(err, io.EOF) {
				kind = ErrDecodeMagic
			}
			return &InitError{Kind: kind, Path: e.path, Err: err}
		}
		if err := e.codec.VerifyHeader(header); err != nil {
			return &InitError{Kind: ErrMagicMismatch, Path: e.path, Err: err}
		}
	}

	var replayed int
replay:
	for {
		offset := rd.Offset()
		rec, err := rd.Next()
		if err != nil {
			var decErr *record.DecodeError
			switch {
			case errors.As(err, &decErr):
				return &InitError{Kind: ErrDecodeRecord, Path: e.path, Offset: offset, Err: err}
			case errors.Is(err, io.EOF):
				break replay
			default:
				return &InitError{Kind: ErrReadFile, Path: e.path, Offset: offset, Err: err}
			}
		}

		// the header decodes as a valid record, it must not end up in the index
		if offset == 0 && e.opts.SkipHeader && e.codec.VerifyHeader(rec) == nil {
			return &InitError{Kind: ErrMagicMismatch, Path: e.path, Err: errors.New("log starts with a magic header record but was opened without header")}
		}

		e.current.ReplaceOrInsert(currentItem[K, V]{key: rec.Key, entry: rec.Entry})
		if e.opts.RetainHistory {
			k, v := rec.Historical()
			e.history.ReplaceOrInsert(historyItem[K, V]{key: k, value: v})
		}
		replayed++
	}

	e.logSize.Store(rd.Offset())
	e.metrics.replayed.Add(replayed)

	log.Infof("replayed %d records of %s into %d keys (%d historical entries, %d bytes) in %s",
		replayed, e.path, e.current.Len(), e.history.Len(), rd.Offset(), time.Since(start))

	return nil
}

// writeHeader appends the magic header record to an empty log and syncs it.
func (e *Engine[K, V]) writeHeader() error {
	data, err := e.codec.Append(nil, e.codec.Header())
	if err != nil {
		return &InitError{Kind: ErrWriteHeader, Path: e.path, Err: err}
	}
	if _, err := e.file.Write(data); err != nil {
		return &InitError{Kind: ErrWriteHeader, Path: e.path, Err: err}
	}
	if err := e.file.Sync(); err != nil {
		return &InitError{Kind: ErrWriteHeader, Path: e.path, Err: err}
	}
	e.logSize.Store(int64(len(data)))
	return nil
}
