// Package revision provides the Revision type, its binary codec and a generator.
//
// A Revision is a ULID: 48 bits of millisecond timestamp followed by 80 bits of
// randomness. Its string form is the usual 26 character Crockford base32 text;
// on disk it is stored as a little endian unsigned 128 bit integer.
//
// The engine never creates revisions. Callers either bring their own or use a
// Generator, which guarantees strictly increasing values within a process:
//
//	gen := revision.NewGenerator()
//	rev, err := gen.Next()
package revision
