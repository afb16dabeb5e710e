package compression

import (
	"bytes"
	"errors"
	"io"

	"golang.org/x/image/tiff/lzw"
)

// LZW errors
var (
	ErrLZWCorrupted = errors.New("compression: corrupted LZW data")
	ErrLZWOverflow  = errors.New("compression: LZW decompressed size overflow")
)

// LZWDecompress decompresses a TIFF LZW strip payload.
//
// TIFF uses MSB-first code packing with the "early change" quirk (code
// width increases one code earlier than the generic LZW used by GIF);
// x/image's tiff/lzw reader implements exactly that variant.
func LZWDecompress(src []byte, expectedSize int) ([]byte, error) {
	if len(src) == 0 {
		if expectedSize != 0 {
			return nil, ErrLZWCorrupted
		}
		return nil, nil
	}

	lr := lzw.NewReader(bytes.NewReader(src), lzw.MSB, 8)
	defer lr.Close()

	dst := make([]byte, expectedSize)
	n, err := io.ReadFull(lr, dst)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, ErrLZWCorrupted
	}
	if n != expectedSize {
		return nil, ErrLZWCorrupted
	}

	var extra [1]byte
	if m, _ := lr.Read(extra[:]); m != 0 {
		return nil, ErrLZWOverflow
	}

	return dst, nil
}
