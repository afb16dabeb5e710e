package sbtiff

import (
	"encoding/binary"
	"fmt"

	"github.com/sketchlab/sketchora/internal/endian"
)

// File is a parsed TIFF file. It owns the raw byte buffer; every offset in
// the file is validated against that buffer before it is dereferenced. A
// File is immutable after Parse and safe for concurrent reads.
type File struct {
	r       *endian.Reader
	bigTIFF bool

	// IFDs is the primary directory chain in file order, walked through
	// the standard next-IFD pointers. Layer IFDs reached through the
	// private tag are not part of the chain; they are resolved on demand
	// with ReadIFD.
	IFDs []*IFD

	// Warnings collects non-fatal oddities observed during the parse,
	// such as duplicate tag ids.
	Warnings []string
}

// Header geometry for the two TIFF flavors.
const (
	classicMagic = 42
	bigTIFFMagic = 43

	classicEntrySize = 12
	bigTIFFEntrySize = 20

	classicInlineSize = 4
	bigTIFFInlineSize = 8
)

// Parse reads the TIFF header and walks the primary IFD chain. The buffer
// is retained by the returned File; callers must not modify it afterwards.
func Parse(data []byte) (*File, error) {
	if len(data) < 8 {
		return nil, ErrNotTIFF
	}

	var order binary.ByteOrder
	switch {
	case data[0] == 'I' && data[1] == 'I':
		order = binary.LittleEndian
	case data[0] == 'M' && data[1] == 'M':
		order = binary.BigEndian
	default:
		return nil, ErrNotTIFF
	}

	f := &File{r: endian.NewReader(data, order)}

	magic, err := f.r.Uint16(2)
	if err != nil {
		return nil, ErrNotTIFF
	}

	var first uint64
	switch magic {
	case classicMagic:
		v, err := f.r.Uint32(4)
		if err != nil {
			return nil, ErrNotTIFF
		}
		first = uint64(v)

	case bigTIFFMagic:
		// BigTIFF: offset size (always 8), a zero pad word, then the
		// first IFD offset as a full 8-byte value.
		offSize, err := f.r.Uint16(4)
		if err != nil || offSize != 8 {
			return nil, fmt.Errorf("%w: unexpected BigTIFF offset size", ErrNotTIFF)
		}
		f.bigTIFF = true
		first, err = f.r.Uint64(8)
		if err != nil {
			return nil, ErrNotTIFF
		}

	default:
		return nil, ErrNotTIFF
	}

	// Walk the chain. Offsets in a hostile file can form a cycle, so every
	// visited offset is remembered and a revisit aborts the parse.
	seen := make(map[uint64]bool)
	for next := first; next != 0; {
		if seen[next] {
			return nil, fmt.Errorf("%w: IFD chain cycle at offset %d", ErrMalformedIfd, next)
		}
		seen[next] = true

		ifd, err := f.ReadIFD(next)
		if err != nil {
			return nil, err
		}
		f.IFDs = append(f.IFDs, ifd)
		next = ifd.Next
	}

	if len(f.IFDs) == 0 {
		return nil, fmt.Errorf("%w: empty IFD chain", ErrMalformedIfd)
	}

	return f, nil
}

// Order returns the file's byte order.
func (f *File) Order() binary.ByteOrder {
	return f.r.Order()
}

// BigTIFF reports whether the file uses the BigTIFF (8-byte offset) layout.
func (f *File) BigTIFF() bool {
	return f.bigTIFF
}

// Size returns the file buffer length in bytes.
func (f *File) Size() int {
	return f.r.Len()
}

// entrySize returns the per-entry record size for the file flavor.
func (f *File) entrySize() uint64 {
	if f.bigTIFF {
		return bigTIFFEntrySize
	}
	return classicEntrySize
}

// inlineSize returns the inline value slot capacity for the file flavor.
func (f *File) inlineSize() uint64 {
	if f.bigTIFF {
		return bigTIFFInlineSize
	}
	return classicInlineSize
}

// warnf records a non-fatal parse observation.
func (f *File) warnf(format string, args ...any) {
	f.Warnings = append(f.Warnings, fmt.Sprintf(format, args...))
}
