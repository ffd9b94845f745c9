package revision

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator hands out strictly increasing revisions.
// Within one millisecond the random part is incremented instead of redrawn, and a
// clock that moves backwards never produces a revision lower than the last one.
//
// Thread-safety: all methods are thread-safe.
type Generator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	last    Revision
	now     func() time.Time
}

// NewGenerator returns a Generator backed by crypto/rand.
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

// Next returns a revision greater than every revision this generator returned before.
func (g *Generator) Next() (Revision, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := ulid.Timestamp(g.now())
	if !g.last.IsZero() && ms < ulid.ULID(g.last).Time() {
		ms = ulid.ULID(g.last).Time()
	}

	id, err := ulid.New(ms, g.entropy)
	if err != nil {
		return Zero, err
	}

	// an observed revision may be ahead of the entropy source within the same millisecond
	if Revision(id).Compare(g.last) <= 0 {
		if id, err = ulid.New(ulid.ULID(g.last).Time()+1, g.entropy); err != nil {
			return Zero, err
		}
	}

	g.last = Revision(id)
	return g.last, nil
}

// Observe makes sure that all following revisions returned by Next are greater than r.
// It is used to continue after revisions that were created elsewhere, e.g. by a previous process.
func (g *Generator) Observe(r Revision) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if r.Compare(g.last) > 0 {
		g.last = r
	}
}
