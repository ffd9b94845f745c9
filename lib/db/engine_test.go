package db

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/ValentinKolb/kvr/lib/backup"
	"github.com/ValentinKolb/kvr/lib/codec"
	"github.com/ValentinKolb/kvr/lib/record"
	"github.com/ValentinKolb/kvr/lib/revision"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarantool/go-option"
)

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func tempLog(t *testing.T) string {
	return filepath.Join(t.TempDir(), "kvr.log")
}

func openTest(t *testing.T, path string, opts *Options) *Engine[uint64, uint32] {
	e, err := Open[uint64, uint32](path, codec.Uint64, codec.Uint32, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func nextRevs(t *testing.T, n int) []revision.Revision {
	gen := revision.NewGenerator()
	out := make([]revision.Revision, n)
	for i := range out {
		r, err := gen.Next()
		require.NoError(t, err)
		out[i] = r
	}
	return out
}

// writeRecords writes a log by hand, bypassing the engine
func writeRecords(t *testing.T, path string, header bool, recs ...record.Record[uint64, uint32]) {
	c := record.NewCodec[uint64, uint32](codec.Uint64, codec.Uint32)

	var buf []byte
	var err error
	if header {
		buf, err = c.Append(buf, c.Header())
		require.NoError(t, err)
	}
	for _, r := range recs {
		buf, err = c.Append(buf, r)
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(path, buf, 0o644))
}

func genesis(key uint64, value uint32, rev revision.Revision) record.Record[uint64, uint32] {
	return record.Record[uint64, uint32]{Key: key, Entry: record.ValueEntry[uint32]{
		Revision: rev, PrevRev: option.None[revision.Revision](), Value: value,
	}}
}

func successor(key uint64, value uint32, rev, prev revision.Revision) record.Record[uint64, uint32] {
	return record.Record[uint64, uint32]{Key: key, Entry: record.ValueEntry[uint32]{
		Revision: rev, PrevRev: option.Some(prev), Value: value,
	}}
}

// failingFile fails every write after the first ok writes, leaving half of the data behind
type failingFile struct {
	logFile
	ok     int
	writes int
}

func (f *failingFile) Write(p []byte) (int, error) {
	f.writes++
	if f.writes > f.ok {
		n, _ := f.logFile.Write(p[:len(p)/2])
		return n, errors.New("disk full")
	}
	return f.logFile.Write(p)
}

// lossyCodec cannot represent its own sentinel
type lossyCodec struct{ codec.Codec[uint32] }

func (lossyCodec) Decode([]byte) (uint32, error) { return 0, nil }

// pickyCodec refuses to encode the value 13
type pickyCodec struct{ codec.Codec[uint32] }

func (c pickyCodec) Append(dst []byte, v uint32) ([]byte, error) {
	if v == 13 {
		return dst, errors.New("unlucky value")
	}
	return c.Codec.Append(dst, v)
}

// --------------------------------------------------------------------------
// Open / Recovery
// --------------------------------------------------------------------------

func TestOpenCreatesHeader(t *testing.T) {
	path := tempLog(t)
	e := openTest(t, path, nil)

	c := record.NewCodec[uint64, uint32](codec.Uint64, codec.Uint32)
	assert.Equal(t, int64(c.MaxSize()), e.LogSize())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	header, err := c.Append(nil, c.Header())
	require.NoError(t, err)
	assert.Equal(t, header, data)
}

func TestOpenHeaderless(t *testing.T) {
	path := tempLog(t)
	e := openTest(t, path, &Options{SkipHeader: true})
	assert.Equal(t, int64(0), e.LogSize())

	revs := nextRevs(t, 1)
	require.NoError(t, e.Insert(1, 1, revs[0]))
	require.NoError(t, e.Close())

	// a headerless log is rejected by an engine that expects a header
	_, err := Open[uint64, uint32](path, codec.Uint64, codec.Uint32, nil)
	require.ErrorIs(t, err, ErrMagicMismatch)
}

func TestOpenHeaderWithSkipHeader(t *testing.T) {
	path := tempLog(t)
	revs := nextRevs(t, 1)
	writeRecords(t, path, true, genesis(1, 1, revs[0]))

	// the header must not be replayed as a record of key magic.Uint64
	_, err := Open[uint64, uint32](path, codec.Uint64, codec.Uint32, &Options{SkipHeader: true})
	require.ErrorIs(t, err, ErrMagicMismatch)

	var initErr *InitError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, int64(0), initErr.Offset)

	// the failed open released the log
	e := openTest(t, path, nil)
	assert.Equal(t, 1, e.Len())
	_, ok := e.Get(codec.Uint64.Magic())
	assert.False(t, ok)
}

func TestOpenHeaderMismatch(t *testing.T) {
	path := tempLog(t)
	e := openTest(t, path, nil)
	require.NoError(t, e.Close())

	// same record width, different key and value types
	_, err := Open[uint32, uint64](path, codec.Uint32, codec.Uint64, nil)
	require.ErrorIs(t, err, ErrMagicMismatch)

	var initErr *InitError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, e.Path(), initErr.Path)
}

func TestOpenTruncatedHeader(t *testing.T) {
	path := tempLog(t)
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3, 4, 5}, 0o644))

	_, err := Open[uint64, uint32](path, codec.Uint64, codec.Uint32, nil)
	require.ErrorIs(t, err, ErrDecodeMagic)
}

func TestOpenTruncatedTail(t *testing.T) {
	path := tempLog(t)
	revs := nextRevs(t, 3)
	writeRecords(t, path, true, genesis(1, 1, revs[0]), genesis(2, 2, revs[1]), successor(1, 3, revs[2], revs[0]))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, info.Size()-3))

	_, err = Open[uint64, uint32](path, codec.Uint64, codec.Uint32, nil)
	require.ErrorIs(t, err, ErrDecodeRecord)

	var initErr *InitError
	require.ErrorAs(t, err, &initErr)
	c := record.NewCodec[uint64, uint32](codec.Uint64, codec.Uint32)
	assert.Equal(t, int64(c.MaxSize()+2*c.MinSize()), initErr.Offset, "offset of the truncated record")

	// a failed open releases the path
	_, err = Open[uint64, uint32](path, codec.Uint64, codec.Uint32, nil)
	require.ErrorIs(t, err, ErrDecodeRecord)
}

func TestOpenInvalidTag(t *testing.T) {
	path := tempLog(t)
	revs := nextRevs(t, 2)
	writeRecords(t, path, false, genesis(1, 1, revs[0]), genesis(2, 2, revs[1]))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	c := record.NewCodec[uint64, uint32](codec.Uint64, codec.Uint32)
	data[c.MinSize()+8+16] = 7 // tag of the second record
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = Open[uint64, uint32](path, codec.Uint64, codec.Uint32, &Options{SkipHeader: true})
	require.ErrorIs(t, err, ErrDecodeRecord)
	assert.ErrorIs(t, err, record.ErrInvalidOptionTag)
}

func TestOpenReplaysLastRecordPerKey(t *testing.T) {
	path := tempLog(t)
	revs := nextRevs(t, 4)
	writeRecords(t, path, true,
		genesis(1, 1, revs[0]),
		genesis(2, 2, revs[1]),
		successor(1, 3, revs[2], revs[0]),
		successor(1, 4, revs[3], revs[2]),
	)

	e := openTest(t, path, &Options{RetainHistory: true})
	assert.Equal(t, 2, e.Len())
	assert.Equal(t, 4, e.HistoryLen())

	entry, ok := e.Get(1)
	require.True(t, ok)
	assert.Equal(t, uint32(4), entry.Value)
	assert.Equal(t, revs[3], entry.Revision)

	revisions := e.Revisions(1)
	require.Len(t, revisions, 3)
	assert.Equal(t, revs[3], revisions[2].Revision)
}

func TestOpenTwice(t *testing.T) {
	path := tempLog(t)
	e := openTest(t, path, nil)

	_, err := Open[uint64, uint32](path, codec.Uint64, codec.Uint32, nil)
	require.ErrorIs(t, err, ErrAlreadyOpen)

	// relative and absolute paths name the same log
	wd, err := os.Getwd()
	require.NoError(t, err)
	if rel, err := filepath.Rel(wd, path); err == nil {
		_, err = Open[uint64, uint32](rel, codec.Uint64, codec.Uint32, nil)
		require.ErrorIs(t, err, ErrAlreadyOpen)
	}

	require.NoError(t, e.Close())
	openTest(t, path, nil)
}

func TestOpenCodecCheck(t *testing.T) {
	_, err := Open[uint64, uint32](tempLog(t), codec.Uint64, lossyCodec{codec.Uint32}, nil)
	require.ErrorIs(t, err, ErrCodec)
	assert.ErrorIs(t, err, codec.ErrMagicRoundTrip)
}

func TestOpenDirectory(t *testing.T) {
	_, err := Open[uint64, uint32](t.TempDir(), codec.Uint64, codec.Uint32, nil)
	require.ErrorIs(t, err, ErrOpenFile)
}

// --------------------------------------------------------------------------
// Write failures
// --------------------------------------------------------------------------

func TestAppendFailurePoisonsEngine(t *testing.T) {
	path := tempLog(t)
	e := openTest(t, path, nil)
	revs := nextRevs(t, 4)

	require.NoError(t, e.Insert(1, 1, revs[0]))
	e.file = &failingFile{logFile: e.file}

	err := e.Insert(2, 2, revs[1])
	require.ErrorIs(t, err, ErrIO)
	var writeErr *WriteError
	require.ErrorAs(t, err, &writeErr)
	assert.Equal(t, "insert", writeErr.Op)

	// memory is unchanged
	_, ok := e.Get(2)
	assert.False(t, ok)
	assert.Equal(t, 1, e.Len())

	// all further writes are refused, reads keep working
	require.ErrorIs(t, e.Update(1, 5, revs[2], revs[0]), ErrIO)
	require.ErrorIs(t, e.Insert(3, 3, revs[3]), ErrIO)
	entry, ok := e.Get(1)
	require.True(t, ok)
	assert.Equal(t, uint32(1), entry.Value)

	var out bytes.Buffer
	e.WriteMetrics(&out)
	assert.Contains(t, out.String(), "kvr_write_errors_total{path="+strconv.Quote(e.Path())+"} 1")

	require.NoError(t, e.Close())

	// the partial record is found by recovery
	_, err = Open[uint64, uint32](path, codec.Uint64, codec.Uint32, nil)
	require.ErrorIs(t, err, ErrDecodeRecord)
}

func TestSerializationFailure(t *testing.T) {
	path := tempLog(t)
	e, err := Open[uint64, uint32](path, codec.Uint64, pickyCodec{codec.Uint32}, nil)
	require.NoError(t, err)
	defer e.Close()
	revs := nextRevs(t, 3)

	size := e.LogSize()
	err = e.Insert(1, 13, revs[0])
	require.ErrorIs(t, err, ErrSerialization)
	assert.Equal(t, size, e.LogSize())

	// a serialization failure writes nothing and does not poison the engine
	require.NoError(t, e.Insert(1, 12, revs[1]))
	require.ErrorIs(t, e.Update(1, 13, revs[2], revs[1]), ErrSerialization)
	entry, _ := e.Get(1)
	assert.Equal(t, uint32(12), entry.Value)
}

// --------------------------------------------------------------------------
// History
// --------------------------------------------------------------------------

func TestHistoryDisabled(t *testing.T) {
	e := openTest(t, tempLog(t), nil)
	revs := nextRevs(t, 2)

	require.NoError(t, e.Insert(1, 1, revs[0]))
	require.NoError(t, e.Update(1, 2, revs[1], revs[0]))

	assert.Equal(t, 0, e.HistoryLen())
	_, err := e.Lineage(1)
	assert.ErrorIs(t, err, ErrHistoryDisabled)
	assert.ErrorIs(t, e.CheckLineage(), ErrHistoryDisabled)

	// only the current entry is known
	assert.Len(t, e.Revisions(1), 1)
	_, ok := e.At(1, revs[0])
	assert.False(t, ok)
}

func TestBrokenLineage(t *testing.T) {
	t.Run("dangling", func(t *testing.T) {
		path := tempLog(t)
		revs := nextRevs(t, 3)
		writeRecords(t, path, true, genesis(1, 1, revs[0]), successor(1, 2, revs[2], revs[1]))

		e := openTest(t, path, &Options{RetainHistory: true})
		_, err := e.Lineage(1)
		assert.ErrorIs(t, err, ErrBrokenLineage)
		assert.ErrorIs(t, e.CheckLineage(), ErrBrokenLineage)
	})

	t.Run("fork", func(t *testing.T) {
		path := tempLog(t)
		revs := nextRevs(t, 3)
		writeRecords(t, path, true,
			genesis(1, 1, revs[0]),
			successor(1, 2, revs[1], revs[0]),
			successor(1, 3, revs[2], revs[0]),
		)

		e := openTest(t, path, &Options{RetainHistory: true})
		lineage, err := e.Lineage(1)
		require.NoError(t, err)
		assert.Len(t, lineage, 2)
		assert.ErrorIs(t, e.CheckLineage(), ErrBrokenLineage)
	})

	t.Run("cycle", func(t *testing.T) {
		e := openTest(t, tempLog(t), &Options{RetainHistory: true})
		revs := nextRevs(t, 2)

		// revisions are not checked for order, so a caller can link back to an old revision
		require.NoError(t, e.Insert(1, 1, revs[0]))
		require.NoError(t, e.Update(1, 2, revs[1], revs[0]))
		require.NoError(t, e.Update(1, 3, revs[0], revs[1]))

		_, err := e.Lineage(1)
		assert.ErrorIs(t, err, ErrBrokenLineage)
	})
}

// --------------------------------------------------------------------------
// Metrics / Backup
// --------------------------------------------------------------------------

func TestMetrics(t *testing.T) {
	e := openTest(t, tempLog(t), &Options{RetainHistory: true})
	revs := nextRevs(t, 4)

	require.NoError(t, e.Insert(1, 1, revs[0]))
	require.NoError(t, e.Insert(2, 2, revs[1]))
	require.ErrorIs(t, e.Insert(1, 1, revs[2]), ErrKeyExists)
	require.NoError(t, e.Update(1, 2, revs[3], revs[0]))
	require.ErrorIs(t, e.Update(1, 2, revs[2], revs[0]), ErrPrevRevMismatch)

	var out bytes.Buffer
	e.WriteMetrics(&out)
	text := out.String()

	label := "path=" + strconv.Quote(e.Path())
	for _, line := range []string{
		"kvr_inserts_total{" + label + "} 2",
		"kvr_updates_total{" + label + "} 1",
		"kvr_conflicts_total{" + label + `,reason="key_exists"} 1`,
		"kvr_conflicts_total{" + label + `,reason="prev_rev_mismatch"} 1`,
		"kvr_keys{" + label + "} 2",
		"kvr_historical_entries{" + label + "} 1",
		"kvr_log_bytes{" + label + "} " + strconv.FormatInt(e.LogSize(), 10),
	} {
		assert.True(t, strings.Contains(text, line), "missing %q in\n%s", line, text)
	}
	assert.Contains(t, text, "kvr_append_duration_seconds_bucket{"+label)
}

func TestBackupRestore(t *testing.T) {
	for _, c := range []backup.Compression{backup.None, backup.Snappy, backup.LZ4, backup.Zstd} {
		t.Run(c.String(), func(t *testing.T) {
			e := openTest(t, tempLog(t), &Options{RetainHistory: true})
			revs := nextRevs(t, 101)
			for k := uint64(0); k < 100; k++ {
				require.NoError(t, e.Insert(k, uint32(k), revs[k]))
			}
			require.NoError(t, e.Update(0, 1, revs[100], revs[0]))

			var archive bytes.Buffer
			n, err := e.Backup(&archive, c)
			require.NoError(t, err)
			assert.Equal(t, e.LogSize(), n)

			restoredPath := tempLog(t)
			f, err := os.Create(restoredPath)
			require.NoError(t, err)
			_, err = backup.Restore(f, &archive)
			require.NoError(t, err)
			require.NoError(t, f.Close())

			original, err := os.ReadFile(e.Path())
			require.NoError(t, err)
			restored, err := os.ReadFile(restoredPath)
			require.NoError(t, err)
			assert.Equal(t, original, restored)

			r := openTest(t, restoredPath, &Options{RetainHistory: true})
			want, err := e.Digest()
			require.NoError(t, err)
			got, err := r.Digest()
			require.NoError(t, err)
			assert.Equal(t, want, got)
			assert.NoError(t, r.CheckLineage())
		})
	}
}
