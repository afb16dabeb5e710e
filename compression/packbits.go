// Package compression provides the strip and tile codecs used by
// Sketchbook TIFF files: PackBits run-length coding, TIFF-flavor LZW, and
// Deflate.
package compression

import (
	"errors"
)

// PackBits errors
var (
	ErrPackBitsCorrupted = errors.New("compression: corrupted PackBits data")
	ErrPackBitsOverflow  = errors.New("compression: PackBits decompressed size overflow")
)

const packBitsMaxRun = 128

// PackBitsCompress compresses data using TIFF PackBits encoding.
//
// PackBits uses signed count bytes:
//   - Negative count (-n): the next byte is repeated (n+1) times (run)
//   - Count in [0,127] (+n): the next (n+1) bytes are copied literally
//   - -128 is a no-op and is never emitted
//
// For example:
//
//	[A, A, A, A, B, C, D] -> [-3, A, 2, B, C, D]
//	(4 copies of A, then 3 literal bytes B, C, D)
func PackBitsCompress(src []byte) []byte {
	if len(src) == 0 {
		return nil
	}

	// Worst case: one count byte per 128 literals, plus slack for short input
	dst := make([]byte, 0, len(src)+len(src)/128+1)

	i := 0
	for i < len(src) {
		// Look for a run of identical bytes
		val := src[i]
		runEnd := i + 1
		for runEnd < len(src) && src[runEnd] == val && runEnd-i < packBitsMaxRun {
			runEnd++
		}
		runLength := runEnd - i

		if runLength >= 2 {
			// Encode as a run: negative count, then the byte value
			dst = append(dst, byte(-(runLength - 1)), val)
			i = runEnd
			continue
		}

		// Literal sequence: extend until a run of at least 3 starts
		literalStart := i
		for i < len(src) && i-literalStart < packBitsMaxRun {
			if i+2 < len(src) && src[i+1] == src[i] && src[i+2] == src[i] {
				break
			}
			i++
		}

		literalLength := i - literalStart
		dst = append(dst, byte(literalLength-1))
		dst = append(dst, src[literalStart:i]...)
	}

	return dst
}

// PackBitsDecompress decompresses PackBits-encoded data. The expectedSize
// parameter is the decompressed strip size from the IFD geometry; it is
// used to allocate the output and to validate that the stream produced
// exactly that many bytes.
func PackBitsDecompress(src []byte, expectedSize int) ([]byte, error) {
	if len(src) == 0 {
		if expectedSize != 0 {
			return nil, ErrPackBitsCorrupted
		}
		return nil, nil
	}

	dst := make([]byte, expectedSize)
	dstPos := 0

	i := 0
	for i < len(src) && dstPos < expectedSize {
		count := int(int8(src[i]))
		i++

		switch {
		case count == -128:
			// No-op per the PackBits specification

		case count < 0:
			// Run: repeat the next byte (-count + 1) times
			runLength := -count + 1
			if i >= len(src) {
				return nil, ErrPackBitsCorrupted
			}
			if dstPos+runLength > expectedSize {
				return nil, ErrPackBitsOverflow
			}
			val := src[i]
			i++
			for end := dstPos + runLength; dstPos < end; dstPos++ {
				dst[dstPos] = val
			}

		default:
			// Literal: copy the next (count + 1) bytes
			literalLength := count + 1
			if i+literalLength > len(src) {
				return nil, ErrPackBitsCorrupted
			}
			if dstPos+literalLength > expectedSize {
				return nil, ErrPackBitsOverflow
			}
			copy(dst[dstPos:], src[i:i+literalLength])
			dstPos += literalLength
			i += literalLength
		}
	}

	if dstPos != expectedSize {
		return nil, ErrPackBitsCorrupted
	}

	return dst, nil
}
