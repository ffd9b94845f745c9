package magic

// --------------------------------------------------------------------------
// Descriptor
// --------------------------------------------------------------------------

// Descriptor is implemented by everything that can produce the sentinel value of a type T.
// The sentinel is fixed for T and never changes between versions, since it is written to
// disk as part of the log header.
type Descriptor[T any] interface {
	// Magic returns the sentinel value of T.
	Magic() T
}

// Of returns the sentinel value of T using the descriptor d.
func Of[T any](d Descriptor[T]) T {
	return d.Magic()
}

// --------------------------------------------------------------------------
// Sentinels of the unsigned integer widths
// --------------------------------------------------------------------------

// Each sentinel repeats the bit width of its type in every byte.
const (
	Uint8  uint8  = 8
	Uint16 uint16 = 16<<8 | 16
	Uint32 uint32 = 32<<24 | 32<<16 | 32<<8 | 32
	Uint64 uint64 = 64<<56 | 64<<48 | 64<<40 | 64<<32 | 64<<24 | 64<<16 | 64<<8 | 64
)

// Uint128Hi and Uint128Lo are the upper and lower halves of the 128 bit sentinel.
const (
	Uint128Hi uint64 = 0x8080808080808080
	Uint128Lo uint64 = 0x8080808080808080
)

// Revision is the sentinel revision in its canonical big endian byte form.
var Revision = [16]byte{
	0x01, 0x7a, 0x34, 0x64, 0xb1, 0xab, 0x45, 0x72,
	0x69, 0x6b, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}
