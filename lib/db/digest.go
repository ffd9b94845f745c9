package db

import (
	"github.com/ValentinKolb/kvr/lib/record"
	"github.com/zeebo/xxh3"
)

// Digest returns the xxh3 hash of the current index: every current record,
// encoded in the log format, in ascending key order.
//
// Two engines with equal current entries have equal digests, no matter how their logs
// got there. The historical index is not part of the digest.
//
// Thread-safety: This method is thread-safe. It holds the read lock while hashing.
func (e *Engine[K, V]) Digest() (uint64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	h := xxh3.New()
	buf := make([]byte, 0, e.codec.MaxSize())

	var err error
	e.current.Ascend(func(item currentItem[K, V]) bool {
		buf, err = e.codec.Append(buf[:0], record.Record[K, V]{Key: item.key, Entry: item.entry})
		if err != nil {
			return false
		}
		_, _ = h.Write(buf)
		return true
	})
	if err != nil {
		return 0, err
	}

	return h.Sum64(), nil
}
