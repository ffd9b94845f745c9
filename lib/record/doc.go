// Package record defines the record model of the log and its binary encoding.
//
// Types:
//   - ValueEntry: a value together with its revision and the revision it replaced
//   - Record: a key and the ValueEntry written for it; one record is one write
//   - KeyAtRevision / HistoricalValue: key and value of the historical index
//
// The Codec concatenates the fixed-width encodings of the key, the revision, an
// optional previous revision (one tag byte, 0 = none, 1 = some, followed by the
// revision) and the value. Since every part has a known width, the length of a
// record follows from its content and records need no framing. Reader decodes
// such a stream one record at a time and distinguishes a clean end of the stream
// (io.EOF) from a record cut in half (*DecodeError).
//
// Header returns the magic record built from the sentinels of all involved types.
// It is written as the very first record of a new log and verified on every open.
package record
