package codec

import (
	"encoding/binary"

	"github.com/ValentinKolb/kvr/lib/magic"
)

// All integers are encoded little endian with their natural width, which is the
// fixed-int layout of bincode. Logs written by other implementations using that
// layout can therefore be replayed byte for byte.

// --------------------------------------------------------------------------
// Codec instances
// --------------------------------------------------------------------------

// Built-in codecs for the unsigned integer widths.
var (
	Uint8  KeyCodec[uint8]   = uint8Codec{}
	Uint16 KeyCodec[uint16]  = uint16Codec{}
	Uint32 KeyCodec[uint32]  = uint32Codec{}
	Uint64 KeyCodec[uint64]  = uint64Codec{}
	U128   KeyCodec[Uint128] = uint128Codec{}
)

// --------------------------------------------------------------------------
// uint8
// --------------------------------------------------------------------------

type uint8Codec struct{}

func (uint8Codec) Magic() uint8 { return magic.Uint8 }
func (uint8Codec) Size() int { return 1 }
func (uint8Codec) Compare(a, b uint8) int { return compareOrdered(a, b) }

func (uint8Codec) Append(dst []byte, v uint8) ([]byte, error) {
	return append(dst, v), nil
}

func (uint8Codec) Decode(src []byte) (uint8, error) {
	if err := checkLen(src, 1); err != nil {
		return 0, err
	}
	return src[0], nil
}

// --------------------------------------------------------------------------
// uint16
// --------------------------------------------------------------------------

type uint16Codec struct{}

func (uint16Codec) Magic() uint16 { return magic.Uint16 }
func (uint16Codec) Size() int { return 2 }
func (uint16Codec) Compare(a, b uint16) int { return compareOrdered(a, b) }

func (uint16Codec) Append(dst []byte, v uint16) ([]byte, error) {
	return binary.LittleEndian.AppendUint16(dst, v), nil
}

func (uint16Codec) Decode(src []byte) (uint16, error) {
	if err := checkLen(src, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(src), nil
}

// --------------------------------------------------------------------------
// uint32
// --------------------------------------------------------------------------

type uint32Codec struct{}

func (uint32Codec) Magic() uint32 { return magic.Uint32 }
func (uint32Codec) Size() int { return 4 }
func (uint32Codec) Compare(a, b uint32) int { return compareOrdered(a, b) }

func (uint32Codec) Append(dst []byte, v uint32) ([]byte, error) {
	return binary.LittleEndian.AppendUint32(dst, v), nil
}

func (uint32Codec) Decode(src []byte) (uint32, error) {
	if err := checkLen(src, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(src), nil
}

// --------------------------------------------------------------------------
// uint64
// --------------------------------------------------------------------------

type uint64Codec struct{}

func (uint64Codec) Magic() uint64 { return magic.Uint64 }
func (uint64Codec) Size() int { return 8 }
func (uint64Codec) Compare(a, b uint64) int { return compareOrdered(a, b) }

func (uint64Codec) Append(dst []byte, v uint64) ([]byte, error) {
	return binary.LittleEndian.AppendUint64(dst, v), nil
}

func (uint64Codec) Decode(src []byte) (uint64, error) {
	if err := checkLen(src, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(src), nil
}

// --------------------------------------------------------------------------
// Uint128
// --------------------------------------------------------------------------

// Uint128 is an unsigned 128 bit integer split into two halves.
type Uint128 struct {
	Hi uint64
	Lo uint64
}

// Compare returns -1, 0 or +1 depending on whether u is less, equal or greater than o.
func (u Uint128) Compare(o Uint128) int {
	if c := compareOrdered(u.Hi, o.Hi); c != 0 {
		return c
	}
	return compareOrdered(u.Lo, o.Lo)
}

type uint128Codec struct{}

func (uint128Codec) Magic() Uint128 {
	return Uint128{Hi: magic.Uint128Hi, Lo: magic.Uint128Lo}
}
func (uint128Codec) Size() int { return 16 }
func (uint128Codec) Compare(a, b Uint128) int { return a.Compare(b) }

// Append writes the lower half first, i.e. the whole value little endian.
func (uint128Codec) Append(dst []byte, v Uint128) ([]byte, error) {
	dst = binary.LittleEndian.AppendUint64(dst, v.Lo)
	return binary.LittleEndian.AppendUint64(dst, v.Hi), nil
}

func (uint128Codec) Decode(src []byte) (Uint128, error) {
	if err := checkLen(src, 16); err != nil {
		return Uint128{}, err
	}
	return Uint128{
		Lo: binary.LittleEndian.Uint64(src[0:8]),
		Hi: binary.LittleEndian.Uint64(src[8:16]),
	}, nil
}
