package codec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyMagicBuiltins(t *testing.T) {
	t.Run("Uint8", func(t *testing.T) { require.NoError(t, VerifyMagic[uint8](Uint8)) })
	t.Run("Uint16", func(t *testing.T) { require.NoError(t, VerifyMagic[uint16](Uint16)) })
	t.Run("Uint32", func(t *testing.T) { require.NoError(t, VerifyMagic[uint32](Uint32)) })
	t.Run("Uint64", func(t *testing.T) { require.NoError(t, VerifyMagic[uint64](Uint64)) })
	t.Run("Uint128", func(t *testing.T) { require.NoError(t, VerifyMagic[Uint128](U128)) })
}

func TestLittleEndianLayout(t *testing.T) {
	b, err := Encode[uint16](Uint16, 0x0102)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x01}, b)

	b, err = Encode[uint32](Uint32, 0x01020304)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, b)

	b, err = Encode[uint64](Uint64, 0x0102030405060708)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}, b)

	b, err = Encode[Uint128](U128, Uint128{Hi: 0x1, Lo: 0x2})
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0x02, 0, 0, 0, 0, 0, 0, 0,
		0x01, 0, 0, 0, 0, 0, 0, 0,
	}, b)
}

func TestDecodeShortBuffer(t *testing.T) {
	_, err := Uint32.Decode([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrShortBuffer)

	_, err = U128.Decode(make([]byte, 15))
	assert.ErrorIs(t, err, ErrShortBuffer)

	_, err = Uint8.Decode(nil)
	assert.ErrorIs(t, err, ErrShortBuffer)
}

func TestDecodeIgnoresTrailingBytes(t *testing.T) {
	v, err := Uint16.Decode([]byte{0x34, 0x12, 0xff})
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), v)
}

func TestCompare(t *testing.T) {
	assert.Equal(t, -1, Uint64.Compare(1, 2))
	assert.Equal(t, 0, Uint64.Compare(7, 7))
	assert.Equal(t, 1, Uint8.Compare(200, 3))

	assert.Equal(t, -1, U128.Compare(Uint128{Hi: 0, Lo: 9}, Uint128{Hi: 1, Lo: 0}))
	assert.Equal(t, 1, U128.Compare(Uint128{Hi: 1, Lo: 2}, Uint128{Hi: 1, Lo: 1}))
	assert.Equal(t, 0, U128.Compare(Uint128{Hi: 3, Lo: 3}, Uint128{Hi: 3, Lo: 3}))
}

// brokenCodec declares a width it does not produce.
type brokenCodec struct{ uint32Codec }

func (brokenCodec) Append(dst []byte, v uint32) ([]byte, error) {
	return append(dst, byte(v)), nil
}

// lossyCodec drops the upper half of every value.
type lossyCodec struct{ uint32Codec }

func (lossyCodec) Decode(src []byte) (uint32, error) {
	v, err := uint32Codec{}.Decode(src)
	return v & 0xffff, err
}

// failingCodec cannot encode anything.
type failingCodec struct{ uint32Codec }

func (failingCodec) Append([]byte, uint32) ([]byte, error) {
	return nil, errors.New("unencodable")
}

func TestVerifyMagicDetectsBrokenCodecs(t *testing.T) {
	err := VerifyMagic[uint32](brokenCodec{})
	assert.ErrorIs(t, err, ErrMagicRoundTrip)
	assert.ErrorIs(t, err, ErrSizeMismatch)

	err = VerifyMagic[uint32](lossyCodec{})
	assert.ErrorIs(t, err, ErrMagicRoundTrip)

	err = VerifyMagic[uint32](failingCodec{})
	assert.ErrorIs(t, err, ErrMagicRoundTrip)
}
