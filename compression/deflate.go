package compression

import (
	"bytes"
	"errors"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"
)

// Deflate errors
var (
	ErrDeflateCorrupted = errors.New("compression: corrupted Deflate data")
	ErrDeflateOverflow  = errors.New("compression: Deflate decompressed size overflow")
)

// Pool for zlib writers to reduce allocations across strips.
type zlibWriterPoolItem struct {
	writer *zlib.Writer
	buf    *bytes.Buffer
}

var zlibWriterPool = sync.Pool{
	New: func() any {
		buf := new(bytes.Buffer)
		w, _ := zlib.NewWriterLevel(buf, zlib.DefaultCompression)
		return &zlibWriterPoolItem{writer: w, buf: buf}
	},
}

// DeflateCompress compresses a strip with zlib at the default level.
// TIFF compression ids 8 (Adobe) and 32946 (old-style) both use a zlib
// stream for the strip payload.
func DeflateCompress(src []byte) ([]byte, error) {
	if len(src) == 0 {
		return nil, nil
	}

	item := zlibWriterPool.Get().(*zlibWriterPoolItem)
	item.buf.Reset()
	item.writer.Reset(item.buf)

	if _, err := item.writer.Write(src); err != nil {
		item.writer.Close()
		zlibWriterPool.Put(item)
		return nil, err
	}
	if err := item.writer.Close(); err != nil {
		zlibWriterPool.Put(item)
		return nil, err
	}

	result := make([]byte, item.buf.Len())
	copy(result, item.buf.Bytes())
	zlibWriterPool.Put(item)

	return result, nil
}

// DeflateDecompress decompresses a zlib strip payload. expectedSize is the
// decompressed strip size from the IFD geometry; the stream must produce
// exactly that many bytes.
func DeflateDecompress(src []byte, expectedSize int) ([]byte, error) {
	if len(src) == 0 {
		if expectedSize != 0 {
			return nil, ErrDeflateCorrupted
		}
		return nil, nil
	}

	zr, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, ErrDeflateCorrupted
	}
	defer zr.Close()

	dst := make([]byte, expectedSize)
	n, err := io.ReadFull(zr, dst)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, ErrDeflateCorrupted
	}
	if n != expectedSize {
		return nil, ErrDeflateCorrupted
	}

	// Anything left over means the geometry and the stream disagree.
	var extra [1]byte
	if m, _ := zr.Read(extra[:]); m != 0 {
		return nil, ErrDeflateOverflow
	}

	return dst, nil
}
