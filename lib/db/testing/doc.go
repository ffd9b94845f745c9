// Package testing provides the standard tests and benchmarks for kvr storage engines.
//
// The suite runs against db.Engine[uint64, uint32] and is parameterized with a factory, so
// the same tests cover every engine configuration (history on or off, header on or off,
// fsync per write). Tests that need history retention skip themselves otherwise.
//
// Example usage:
//
//	factory := func(path string) (*db.Engine[uint64, uint32], error) {
//		return db.Open[uint64, uint32](path, codec.Uint64, codec.Uint32, &db.Options{RetainHistory: true})
//	}
//
//	// Running the standard test suite
//	testing.RunEngineTests(t, "History", factory)
//
//	// Running performance benchmarks
//	testing.RunEngineBenchmarks(b, "History", factory)
package testing
