package codec

import (
	"errors"
	"fmt"

	"github.com/ValentinKolb/kvr/lib/magic"
)

var (
	// ErrShortBuffer is returned when a decode is given fewer bytes than the encoded width.
	ErrShortBuffer = errors.New("codec: buffer shorter than encoded width")
	// ErrSizeMismatch is returned when an encoder produced a different number of bytes than its declared width.
	ErrSizeMismatch = errors.New("codec: encoded size does not match declared width")
	// ErrMagicRoundTrip is returned by VerifyMagic if the sentinel does not survive an encode/decode round trip.
	ErrMagicRoundTrip = errors.New("codec: magic value did not survive round trip")
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// Codec encodes values of a fixed-shape type T into a fixed number of bytes.
//
// The encoding must be deterministic and byte-exact: the same value always
// yields the same bytes, and Decode(Append(nil, v)) == v. Because every value
// of T has the same width, a decoder can find the end of an encoded value from
// the layout alone, which is what makes the log streamable without framing.
type Codec[T comparable] interface {
	magic.Descriptor[T]

	// Size returns the encoded width of T in bytes.
	Size() int

	// Append appends the encoding of v to dst and returns the extended slice.
	Append(dst []byte, v T) ([]byte, error)

	// Decode decodes a value from the first Size() bytes of src.
	Decode(src []byte) (T, error)
}

// KeyCodec is a Codec for types that are used as keys and therefore need a total order.
type KeyCodec[T comparable] interface {
	Codec[T]

	// Compare returns -1 if a < b, 0 if a == b and +1 if a > b.
	Compare(a, b T) int
}

// --------------------------------------------------------------------------
// Helper Functions
// --------------------------------------------------------------------------

// Encode is a convenience wrapper around Append that also checks the declared width.
func Encode[T comparable](c Codec[T], v T) ([]byte, error) {
	out, err := c.Append(make([]byte, 0, c.Size()), v)
	if err != nil {
		return nil, err
	}
	if len(out) != c.Size() {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrSizeMismatch, len(out), c.Size())
	}
	return out, nil
}

// VerifyMagic encodes the sentinel of c, decodes it again and compares the result.
// It is used to assert that a codec is usable before any data is read with it.
func VerifyMagic[T comparable](c Codec[T]) error {
	want := c.Magic()
	data, err := Encode(c, want)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMagicRoundTrip, err)
	}
	got, err := c.Decode(data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMagicRoundTrip, err)
	}
	if got != want {
		return fmt.Errorf("%w: encoded %v, decoded %v", ErrMagicRoundTrip, want, got)
	}
	return nil
}

// checkLen returns ErrShortBuffer if src is shorter than n.
func checkLen(src []byte, n int) error {
	if len(src) < n {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrShortBuffer, len(src), n)
	}
	return nil
}

// compareOrdered compares two ordered values.
func compareOrdered[T ~uint8 | ~uint16 | ~uint32 | ~uint64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
