package record

import (
	"errors"
	"fmt"
	"io"

	"github.com/ValentinKolb/kvr/lib/codec"
	"github.com/ValentinKolb/kvr/lib/revision"
	"github.com/tarantool/go-option"
)

// Tags of the optional previous revision, identical to the bincode Option encoding.
const (
	tagNone byte = 0
	tagSome byte = 1
)

// ErrInvalidOptionTag is returned when the previous-revision tag is neither 0 nor 1.
var ErrInvalidOptionTag = errors.New("invalid option tag")

// DecodeError is returned when the bytes of a record cannot be decoded.
// It is distinct from I/O errors of the underlying reader, which are returned unchanged.
type DecodeError struct {
	Field string // the field that failed to decode
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode record field %s: %v", e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// --------------------------------------------------------------------------
// Record Codec
// --------------------------------------------------------------------------

// Codec encodes and decodes records of one key and value type.
//
// Layout of one record (no framing, no checksum):
//
//	| key (Keys.Size) | revision (16) | tag (1) | prev revision (16, only if tag == 1) | value (Values.Size) |
type Codec[K, V comparable] struct {
	Keys   codec.KeyCodec[K]
	Values codec.Codec[V]
}

// NewCodec returns a record codec for the given key and value codecs.
func NewCodec[K, V comparable](keys codec.KeyCodec[K], values codec.Codec[V]) Codec[K, V] {
	return Codec[K, V]{Keys: keys, Values: values}
}

// MinSize is the encoded size of a record without previous revision.
func (c Codec[K, V]) MinSize() int {
	return c.Keys.Size() + revision.Size + 1 + c.Values.Size()
}

// MaxSize is the encoded size of a record with previous revision.
func (c Codec[K, V]) MaxSize() int {
	return c.MinSize() + revision.Size
}

// SizeOf returns the encoded size of r.
func (c Codec[K, V]) SizeOf(r Record[K, V]) int {
	if r.Entry.PrevRev.IsSome() {
		return c.MaxSize()
	}
	return c.MinSize()
}

// Append appends the encoding of r to dst.
// A codec that produces more or fewer bytes than it declares is reported as codec.ErrSizeMismatch.
func (c Codec[K, V]) Append(dst []byte, r Record[K, V]) ([]byte, error) {
	start := len(dst)

	dst, err := appendField[K](dst, "key", c.Keys, r.Key)
	if err != nil {
		return dst[:start], err
	}
	if dst, err = appendField[revision.Revision](dst, "revision", revision.Codec, r.Entry.Revision); err != nil {
		return dst[:start], err
	}
	if prev, ok := r.Entry.PrevRev.Get(); ok {
		dst = append(dst, tagSome)
		if dst, err = appendField[revision.Revision](dst, "prev_rev", revision.Codec, prev); err != nil {
			return dst[:start], err
		}
	} else {
		dst = append(dst, tagNone)
	}
	if dst, err = appendField[V](dst, "value", c.Values, r.Entry.Value); err != nil {
		return dst[:start], err
	}

	return dst, nil
}

// Decode decodes one record from the front of src and returns it with the number of bytes consumed.
func (c Codec[K, V]) Decode(src []byte) (Record[K, V], int, error) {
	var (
		r   Record[K, V]
		pos int
		err error
	)

	if r.Key, pos, err = decodeField[K](src, pos, "key", c.Keys); err != nil {
		return r, 0, err
	}
	if r.Entry.Revision, pos, err = decodeField[revision.Revision](src, pos, "revision", revision.Codec); err != nil {
		return r, 0, err
	}

	if pos >= len(src) {
		return r, 0, &DecodeError{Field: "prev_rev", Err: io.ErrUnexpectedEOF}
	}
	tag := src[pos]
	pos++
	switch tag {
	case tagNone:
		r.Entry.PrevRev = option.None[revision.Revision]()
	case tagSome:
		var prev revision.Revision
		if prev, pos, err = decodeField[revision.Revision](src, pos, "prev_rev", revision.Codec); err != nil {
			return r, 0, err
		}
		r.Entry.PrevRev = option.Some(prev)
	default:
		return r, 0, &DecodeError{Field: "prev_rev", Err: fmt.Errorf("%w: %d", ErrInvalidOptionTag, tag)}
	}

	if r.Entry.Value, pos, err = decodeField[V](src, pos, "value", c.Values); err != nil {
		return r, 0, err
	}

	return r, pos, nil
}

// Reader decodes records from a stream, one at a time, without reading ahead
// further than the record being decoded.
type Reader[K, V comparable] struct {
	codec Codec[K, V]
	r     io.Reader
	buf   []byte
	off   int64
}

// NewReader returns a Reader decoding records from r.
// r should be buffered, since the Reader issues small reads.
func (c Codec[K, V]) NewReader(r io.Reader) *Reader[K, V] {
	return &Reader[K, V]{
		codec: c,
		r:     r,
		buf:   make([]byte, c.MaxSize()),
	}
}

// Offset returns the number of bytes consumed by successfully decoded records.
func (rd *Reader[K, V]) Offset() int64 {
	return rd.off
}

// Next decodes the next record.
//
// It returns io.EOF if the stream ends exactly at a record boundary. A stream that
// ends inside a record yields a *DecodeError wrapping io.ErrUnexpectedEOF. All
// other read errors are returned as they are.
func (rd *Reader[K, V]) Next() (Record[K, V], error) {
	var zero Record[K, V]

	// key, revision and tag are always present
	head := rd.codec.Keys.Size() + revision.Size + 1
	if _, err := io.ReadFull(rd.r, rd.buf[:head]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return zero, &DecodeError{Field: "header", Err: err}
		}
		return zero, err
	}

	size := rd.codec.MinSize()
	switch rd.buf[head-1] {
	case tagNone:
	case tagSome:
		size = rd.codec.MaxSize()
	default:
		return zero, &DecodeError{Field: "prev_rev", Err: fmt.Errorf("%w: %d", ErrInvalidOptionTag, rd.buf[head-1])}
	}

	if _, err := io.ReadFull(rd.r, rd.buf[head:size]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return zero, &DecodeError{Field: "body", Err: io.ErrUnexpectedEOF}
		}
		return zero, err
	}

	r, n, err := rd.codec.Decode(rd.buf[:size])
	if err != nil {
		return zero, err
	}

	rd.off += int64(n)
	return r, nil
}

// --------------------------------------------------------------------------
// Helper Functions
// --------------------------------------------------------------------------

func appendField[T comparable](dst []byte, field string, c codec.Codec[T], v T) ([]byte, error) {
	start := len(dst)
	out, err := c.Append(dst, v)
	if err != nil {
		return dst, fmt.Errorf("encode %s: %w", field, err)
	}
	if len(out)-start != c.Size() {
		return dst, fmt.Errorf("encode %s: %w: got %d bytes, want %d", field, codec.ErrSizeMismatch, len(out)-start, c.Size())
	}
	return out, nil
}

func decodeField[T comparable](src []byte, pos int, field string, c codec.Codec[T]) (T, int, error) {
	var zero T
	end := pos + c.Size()
	if end > len(src) {
		return zero, pos, &DecodeError{Field: field, Err: io.ErrUnexpectedEOF}
	}
	v, err := c.Decode(src[pos:end])
	if err != nil {
		return zero, pos, &DecodeError{Field: field, Err: err}
	}
	return v, end, nil
}
