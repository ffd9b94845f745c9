// Package codec defines the binary contract between typed keys/values and the log.
//
// A Codec turns a fixed-shape value into a fixed number of bytes and back. The
// record layer concatenates these encodings without any length prefix, so the
// only requirement is that every codec is deterministic, byte exact and knows
// its width up front.
//
// Built-in codecs exist for every unsigned integer width (Uint8 ... U128). They
// use the little endian fixed-int layout, which keeps the log compatible with
// other implementations of the same format. Every codec is also a
// magic.Descriptor; VerifyMagic checks that the sentinel of a codec survives a
// round trip and is run by the engine for the key and value codec on open.
//
// Custom key types implement KeyCodec, which adds the total order used by the
// engine's indexes.
package codec
