package record

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/ValentinKolb/kvr/lib/codec"
	"github.com/ValentinKolb/kvr/lib/revision"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarantool/go-option"
)

var testCodec = NewCodec[uint64, uint32](codec.Uint64, codec.Uint32)

func testRecords(t *testing.T) []Record[uint64, uint32] {
	gen := revision.NewGenerator()
	next := func() revision.Revision {
		r, err := gen.Next()
		require.NoError(t, err)
		return r
	}

	r1, r2, r3 := next(), next(), next()
	return []Record[uint64, uint32]{
		{Key: 1, Entry: ValueEntry[uint32]{Revision: r1, PrevRev: option.None[revision.Revision](), Value: 10}},
		{Key: 2, Entry: ValueEntry[uint32]{Revision: r2, PrevRev: option.None[revision.Revision](), Value: 7}},
		{Key: 1, Entry: ValueEntry[uint32]{Revision: r3, PrevRev: option.Some(r1), Value: 20}},
	}
}

func TestSizes(t *testing.T) {
	assert.Equal(t, 8+16+1+4, testCodec.MinSize())
	assert.Equal(t, 8+16+1+16+4, testCodec.MaxSize())

	recs := testRecords(t)
	assert.Equal(t, testCodec.MinSize(), testCodec.SizeOf(recs[0]))
	assert.Equal(t, testCodec.MaxSize(), testCodec.SizeOf(recs[2]))
}

func TestLayout(t *testing.T) {
	prev := revision.FromUint128(codec.Uint128{Hi: 0, Lo: 0x0b})
	rec := Record[uint64, uint32]{
		Key: 0x01,
		Entry: ValueEntry[uint32]{
			Revision: revision.FromUint128(codec.Uint128{Hi: 0, Lo: 0x0a}),
			PrevRev:  option.Some(prev),
			Value:    0x0c,
		},
	}

	b, err := testCodec.Append(nil, rec)
	require.NoError(t, err)

	want := []byte{}
	// key
	want = append(want, 0x01, 0, 0, 0, 0, 0, 0, 0)
	// revision
	want = append(want, 0x0a, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0)
	// tag
	want = append(want, 1)
	// prev revision
	want = append(want, 0x0b, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0)
	// value
	want = append(want, 0x0c, 0, 0, 0)
	assert.Equal(t, want, b)
}

func TestAppendDecodeSequence(t *testing.T) {
	recs := testRecords(t)

	var buf []byte
	for _, r := range recs {
		var err error
		buf, err = testCodec.Append(buf, r)
		require.NoError(t, err)
	}

	for i, want := range recs {
		got, n, err := testCodec.Decode(buf)
		require.NoError(t, err)
		assert.True(t, want.Equal(got), "record %d: want %v, got %v", i, want, got)
		buf = buf[n:]
	}
	assert.Empty(t, buf)
}

func TestDecodeErrors(t *testing.T) {
	recs := testRecords(t)
	full, err := testCodec.Append(nil, recs[2])
	require.NoError(t, err)

	t.Run("Truncated", func(t *testing.T) {
		for _, cut := range []int{1, 8, 24, 25, 30, len(full) - 1} {
			_, _, err := testCodec.Decode(full[:cut])
			var decErr *DecodeError
			require.ErrorAs(t, err, &decErr, "cut at %d", cut)
			assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
		}
	})

	t.Run("InvalidTag", func(t *testing.T) {
		broken := bytes.Clone(full)
		broken[8+16] = 7
		_, _, err := testCodec.Decode(broken)
		assert.ErrorIs(t, err, ErrInvalidOptionTag)
	})
}

func TestReader(t *testing.T) {
	recs := testRecords(t)

	var buf []byte
	for _, r := range recs {
		var err error
		buf, err = testCodec.Append(buf, r)
		require.NoError(t, err)
	}

	t.Run("CleanEOF", func(t *testing.T) {
		rd := testCodec.NewReader(bufio.NewReader(bytes.NewReader(buf)))
		for _, want := range recs {
			got, err := rd.Next()
			require.NoError(t, err)
			assert.True(t, want.Equal(got))
		}
		_, err := rd.Next()
		assert.ErrorIs(t, err, io.EOF)
		assert.Equal(t, int64(len(buf)), rd.Offset())
	})

	t.Run("TruncatedTail", func(t *testing.T) {
		rd := testCodec.NewReader(bytes.NewReader(buf[:len(buf)-3]))
		_, err := rd.Next()
		require.NoError(t, err)
		_, err = rd.Next()
		require.NoError(t, err)

		_, err = rd.Next()
		var decErr *DecodeError
		require.ErrorAs(t, err, &decErr)
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
		assert.Equal(t, int64(2*testCodec.MinSize()), rd.Offset())
	})

	t.Run("TruncatedHead", func(t *testing.T) {
		rd := testCodec.NewReader(bytes.NewReader(buf[:5]))
		_, err := rd.Next()
		var decErr *DecodeError
		require.ErrorAs(t, err, &decErr)
	})

	t.Run("ReadError", func(t *testing.T) {
		boom := errors.New("disk on fire")
		rd := testCodec.NewReader(io.MultiReader(bytes.NewReader(buf[:10]), errReader{boom}))
		_, err := rd.Next()
		assert.ErrorIs(t, err, boom)
		var decErr *DecodeError
		assert.False(t, errors.As(err, &decErr))
	})
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

func TestHeader(t *testing.T) {
	h := testCodec.Header()
	assert.Equal(t, codec.Uint64.Magic(), h.Key)
	assert.Equal(t, codec.Uint32.Magic(), h.Entry.Value)
	assert.Equal(t, revision.Zero.Magic(), h.Entry.Revision)
	assert.False(t, h.Entry.IsGenesis())

	b, err := testCodec.Append(nil, h)
	require.NoError(t, err)
	back, _, err := testCodec.Decode(b)
	require.NoError(t, err)
	assert.NoError(t, testCodec.VerifyHeader(back))

	notHeader := testRecords(t)[0]
	assert.ErrorIs(t, testCodec.VerifyHeader(notHeader), ErrMagicMismatch)
}

func TestHistoricalRoundTrip(t *testing.T) {
	rec := testRecords(t)[2]
	k, v := rec.Historical()
	assert.Equal(t, rec.Key, k.Key)
	assert.Equal(t, rec.Entry.Revision, k.Revision)
	assert.True(t, rec.Entry.Equal(v.Entry(k.Revision)))
}

type wideCodec struct{ codec.KeyCodec[uint32] }

func (wideCodec) Append(dst []byte, v uint32) ([]byte, error) {
	return append(dst, 1, 2, 3, 4, 5), nil
}

func TestAppendSizeMismatch(t *testing.T) {
	c := NewCodec[uint32, uint32](wideCodec{codec.Uint32}, codec.Uint32)
	rec := Record[uint32, uint32]{Key: 1, Entry: ValueEntry[uint32]{Revision: revision.New(), Value: 1}}

	prefix := []byte{9, 9}
	out, err := c.Append(prefix, rec)
	assert.ErrorIs(t, err, codec.ErrSizeMismatch)
	assert.Equal(t, prefix, out)
}
