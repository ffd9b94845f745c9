package record

import (
	"errors"

	"github.com/ValentinKolb/kvr/lib/magic"
	"github.com/ValentinKolb/kvr/lib/revision"
	"github.com/tarantool/go-option"
)

// ErrMagicMismatch is returned by VerifyHeader if a record is not the expected header.
var ErrMagicMismatch = errors.New("log header does not match the magic record")

// Header returns the magic record that is written as the first record of every log.
// It consists of the sentinels of the key type, the revision type and the value type,
// so a log written with other key or value codecs is rejected on open.
func (c Codec[K, V]) Header() Record[K, V] {
	m := magic.Of[revision.Revision](revision.Codec)
	return Record[K, V]{
		Key: magic.Of[K](c.Keys),
		Entry: ValueEntry[V]{
			Revision: m,
			PrevRev:  option.Some(m),
			Value:    magic.Of[V](c.Values),
		},
	}
}

// VerifyHeader checks that r is the magic record of this codec.
func (c Codec[K, V]) VerifyHeader(r Record[K, V]) error {
	if !r.Equal(c.Header()) {
		return ErrMagicMismatch
	}
	return nil
}
