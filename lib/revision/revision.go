package revision

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/kvr/lib/codec"
	"github.com/ValentinKolb/kvr/lib/magic"
	"github.com/oklog/ulid/v2"
)

// Revision identifies one write to a key. It is a 128 bit ULID, so revisions are
// unique, totally ordered and sort by creation time.
//
// Revisions are always chosen by the caller; the engine only stores and compares them.
type Revision ulid.ULID

// Zero is the zero revision. It never identifies a real write.
var Zero Revision

// New returns a fresh revision for the current time.
// Revisions created by New within the same millisecond are not guaranteed to be ordered;
// use a Generator where strict ordering matters.
func New() Revision {
	return Revision(ulid.Make())
}

// Parse parses the canonical 26 character string form of a revision.
func Parse(s string) (Revision, error) {
	id, err := ulid.ParseStrict(s)
	if err != nil {
		return Zero, fmt.Errorf("invalid revision %q: %w", s, err)
	}
	return Revision(id), nil
}

// FromUint128 converts the integer form of a revision back into a Revision.
func FromUint128(u codec.Uint128) Revision {
	var r Revision
	for i := 0; i < 8; i++ {
		r[i] = byte(u.Hi >> (56 - 8*i))
		r[8+i] = byte(u.Lo >> (56 - 8*i))
	}
	return r
}

// Uint128 returns the revision as an unsigned 128 bit integer.
func (r Revision) Uint128() codec.Uint128 {
	var u codec.Uint128
	for i := 0; i < 8; i++ {
		u.Hi = u.Hi<<8 | uint64(r[i])
		u.Lo = u.Lo<<8 | uint64(r[8+i])
	}
	return u
}

// Compare returns -1, 0 or +1 depending on whether r sorts before, equal to or after o.
func (r Revision) Compare(o Revision) int {
	return ulid.ULID(r).Compare(ulid.ULID(o))
}

// Time returns the timestamp embedded in the revision.
func (r Revision) Time() time.Time {
	return ulid.Time(ulid.ULID(r).Time())
}

// IsZero reports whether r is the zero revision.
func (r Revision) IsZero() bool {
	return r == Zero
}

func (r Revision) String() string {
	return ulid.ULID(r).String()
}

// Magic returns the sentinel revision.
func (Revision) Magic() Revision {
	return Revision(magic.Revision)
}
