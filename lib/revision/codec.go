package revision

import (
	"github.com/ValentinKolb/kvr/lib/codec"
)

// Size is the encoded width of a revision.
const Size = 16

// Codec encodes a revision as a little endian 128 bit integer.
var Codec codec.KeyCodec[Revision] = revisionCodec{}

type revisionCodec struct{}

func (revisionCodec) Magic() Revision { return Zero.Magic() }
func (revisionCodec) Size() int { return Size }
func (revisionCodec) Compare(a, b Revision) int { return a.Compare(b) }

func (revisionCodec) Append(dst []byte, r Revision) ([]byte, error) {
	return codec.U128.Append(dst, r.Uint128())
}

func (revisionCodec) Decode(src []byte) (Revision, error) {
	u, err := codec.U128.Decode(src)
	if err != nil {
		return Zero, err
	}
	return FromUint128(u), nil
}
