// Package magic provides per-type sentinel values ("magic numbers").
//
// A sentinel is a fixed value of a type that is used in two places:
//   - to assert that the binary encoding of that exact type survives a round trip
//     (see codec.VerifyMagic)
//   - as the content of the header record written at the start of every log file,
//     which lets the engine reject files written for other key or value types
//
// The package only produces values, it never validates anything itself.
// Every codec in the codec package is a Descriptor of the type it encodes.
package magic
