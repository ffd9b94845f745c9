package backup

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// --------------------------------------------------------------------------
// Container format
// --------------------------------------------------------------------------

// Magic starts every backup stream.
const Magic = "KVRBAK\x00\x00"

// Version is the container version written by Write.
const Version uint8 = 1

// HeaderSize is the size of the container header: magic, version and compression.
const HeaderSize = len(Magic) + 2

var (
	ErrInvalidHeader      = errors.New("not a kvr backup")
	ErrUnsupportedVersion = errors.New("unsupported backup version")
	ErrUnknownCompression = errors.New("unknown compression")
)

// Header describes a backup stream.
type Header struct {
	Version     uint8
	Compression Compression
}

// ReadHeader reads and validates the container header from r.
func ReadHeader(r io.Reader) (Header, error) {
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Header{}, fmt.Errorf("%w: stream too short", ErrInvalidHeader)
		}
		return Header{}, err
	}

	if !bytes.Equal(buf[:len(Magic)], []byte(Magic)) {
		return Header{}, ErrInvalidHeader
	}

	h := Header{Version: buf[len(Magic)], Compression: Compression(buf[len(Magic)+1])}
	if h.Version != Version {
		return Header{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	if !h.Compression.IsSupported() {
		return Header{}, fmt.Errorf("%w: %s", ErrUnknownCompression, h.Compression)
	}
	return h, nil
}

// --------------------------------------------------------------------------
// Write / Restore
// --------------------------------------------------------------------------

// Write copies src into a backup container on dst, compressed with c.
// It returns the number of uncompressed bytes read from src.
func Write(dst io.Writer, src io.Reader, c Compression) (int64, error) {
	if !c.IsSupported() {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCompression, c)
	}

	header := append([]byte(Magic), Version, byte(c))
	if _, err := dst.Write(header); err != nil {
		return 0, fmt.Errorf("write backup header: %w", err)
	}

	w, err := compressor(dst, c)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(w, src)
	if err != nil {
		_ = w.Close()
		return n, fmt.Errorf("write backup: %w", err)
	}
	if err := w.Close(); err != nil {
		return n, fmt.Errorf("flush %s stream: %w", c, err)
	}
	return n, nil
}

// Restore reads a backup container from src and writes the original bytes to dst.
// It returns the number of bytes written to dst.
func Restore(dst io.Writer, src io.Reader) (int64, error) {
	h, err := ReadHeader(src)
	if err != nil {
		return 0, err
	}

	r, err := decompressor(src, h.Compression)
	if err != nil {
		return 0, err
	}
	defer func() { _ = r.Close() }()

	n, err := io.Copy(dst, r)
	if err != nil {
		return n, fmt.Errorf("restore %s stream: %w", h.Compression, err)
	}
	return n, nil
}
