// Package endian provides byte-order-aware, bounds-checked reads over a
// byte buffer.
//
// TIFF files declare their byte order in the first two bytes of the header
// ("II" for little endian, "MM" for big endian) and then reference data at
// arbitrary absolute offsets throughout the file. This package wraps a byte
// slice with a binary.ByteOrder and exposes positional reads of the
// primitive widths the format uses. Every read is bounds checked; a read
// that would run past the buffer returns ErrOutOfBounds rather than a
// truncated value.
package endian

import (
	"encoding/binary"
	"errors"
)

// ErrOutOfBounds is returned when a requested span exceeds the buffer.
var ErrOutOfBounds = errors.New("endian: read out of bounds")

// Reader provides byte-order-aware reads at absolute offsets into a byte
// slice. It carries no mutable state; every read is a pure function of
// (buffer, offset), so a Reader is safe for concurrent use.
type Reader struct {
	data  []byte
	order binary.ByteOrder
}

// NewReader creates a Reader over data using the given byte order.
func NewReader(data []byte, order binary.ByteOrder) *Reader {
	return &Reader{data: data, order: order}
}

// Order returns the reader's byte order.
func (r *Reader) Order() binary.ByteOrder {
	return r.order
}

// Len returns the length of the underlying buffer.
func (r *Reader) Len() int {
	return len(r.data)
}

// InBounds reports whether n bytes starting at off lie inside the buffer.
func (r *Reader) InBounds(off, n uint64) bool {
	if n > uint64(len(r.data)) {
		return false
	}
	return off <= uint64(len(r.data))-n
}

// Bytes returns the n bytes starting at off. The returned slice aliases
// the underlying buffer and must not be modified.
func (r *Reader) Bytes(off, n uint64) ([]byte, error) {
	if !r.InBounds(off, n) {
		return nil, ErrOutOfBounds
	}
	return r.data[off : off+n], nil
}

// Uint8 reads a single byte at off.
func (r *Reader) Uint8(off uint64) (uint8, error) {
	if !r.InBounds(off, 1) {
		return 0, ErrOutOfBounds
	}
	return r.data[off], nil
}

// Uint16 reads an unsigned 16-bit integer at off.
func (r *Reader) Uint16(off uint64) (uint16, error) {
	if !r.InBounds(off, 2) {
		return 0, ErrOutOfBounds
	}
	return r.order.Uint16(r.data[off:]), nil
}

// Uint32 reads an unsigned 32-bit integer at off.
func (r *Reader) Uint32(off uint64) (uint32, error) {
	if !r.InBounds(off, 4) {
		return 0, ErrOutOfBounds
	}
	return r.order.Uint32(r.data[off:]), nil
}

// Uint64 reads an unsigned 64-bit integer at off.
func (r *Reader) Uint64(off uint64) (uint64, error) {
	if !r.InBounds(off, 8) {
		return 0, ErrOutOfBounds
	}
	return r.order.Uint64(r.data[off:]), nil
}
