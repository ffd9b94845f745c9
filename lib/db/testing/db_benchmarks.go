package testing

import (
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/kvr/lib/db"
	"github.com/ValentinKolb/kvr/lib/revision"
)

// RunEngineBenchmarks runs all benchmarks against engines created by factory
func RunEngineBenchmarks(b *testing.B, name string, factory EngineFactory) {
	b.Run(name, func(b *testing.B) {
		b.Run("Insert", func(b *testing.B) {
			benchmarkInsert(b, factory)
		})

		b.Run("Update", func(b *testing.B) {
			benchmarkUpdate(b, factory)
		})

		b.Run("Get", func(b *testing.B) {
			benchmarkGet(b, factory)
		})

		b.Run("Range", func(b *testing.B) {
			benchmarkRange(b, factory)
		})

		b.Run("Recovery", func(b *testing.B) {
			benchmarkRecovery(b, factory)
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// fill inserts the keys 0..n-1 with generated revisions
func fill(b *testing.B, e *Engine, n int) {
	gen := revision.NewGenerator()
	for k := 0; k < n; k++ {
		rev, err := gen.Next()
		if err != nil {
			b.Fatal(err)
		}
		if err := e.Insert(uint64(k), uint32(k), rev); err != nil {
			b.Fatal(err)
		}
	}
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// Benchmark for Insert with distinct keys from parallel writers
func benchmarkInsert(b *testing.B, factory EngineFactory) {
	e, _ := open(b, factory)

	var counter atomic.Uint64
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			k := counter.Add(1)
			if err := e.Insert(k, uint32(k), revision.New()); err != nil {
				b.Error(err)
				return
			}
		}
	})
}

// Benchmark for a chain of updates of one key
func benchmarkUpdate(b *testing.B, factory EngineFactory) {
	e, _ := open(b, factory)
	gen := revision.NewGenerator()

	prev, _ := gen.Next()
	if err := e.Insert(1, 0, prev); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rev, _ := gen.Next()
		if err := e.Update(1, uint32(i), rev, prev); err != nil {
			b.Fatal(err)
		}
		prev = rev
	}
}

// Benchmark for Get of existing keys from parallel readers
func benchmarkGet(b *testing.B, factory EngineFactory) {
	const keys = 10_000
	e, _ := open(b, factory)
	fill(b, e, keys)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		k := uint64(0)
		for pb.Next() {
			if _, ok := e.Get(k % keys); !ok {
				b.Error("missing key")
				return
			}
			k++
		}
	})
}

// Benchmark for a bounded range over 100 keys
func benchmarkRange(b *testing.B, factory EngineFactory) {
	const keys = 10_000
	e, _ := open(b, factory)
	fill(b, e, keys)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		lower := uint64(i % (keys - 100))
		n := 0
		for range e.Range(db.Included(lower), db.Excluded(lower+100)) {
			n++
		}
		if n != 100 {
			b.Fatalf("expected 100 entries, got %d", n)
		}
	}
}

// Benchmark for opening a log of 10k records
func benchmarkRecovery(b *testing.B, factory EngineFactory) {
	path := filepath.Join(b.TempDir(), "kvr.log")
	e, err := factory(path)
	if err != nil {
		b.Fatal(err)
	}
	fill(b, e, 10_000)
	if err := e.Close(); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e, err := factory(path)
		if err != nil {
			b.Fatal(err)
		}
		_ = e.Close()
	}
}
