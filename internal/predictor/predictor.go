// Package predictor implements the TIFF horizontal differencing predictor
// (Predictor tag value 2).
//
// The predictor replaces each sample with its difference from the same
// sample channel in the previous pixel of the row, which tends to produce
// more compressible data for images with local coherence. It must be
// reversed after decompression and before any color-space normalization.
package predictor

// Decode reverses horizontal differencing in place for one row of
// interleaved 8-bit samples. stride is the number of samples per pixel;
// each channel accumulates independently.
func Decode(row []byte, stride int) {
	if stride <= 0 {
		return
	}
	for i := stride; i < len(row); i++ {
		row[i] += row[i-stride]
	}
}

// Encode applies horizontal differencing in place for one row of
// interleaved 8-bit samples. Inverse of Decode; used by test harnesses
// that synthesize predictor-compressed strips.
func Encode(row []byte, stride int) {
	if stride <= 0 {
		return
	}
	for i := len(row) - 1; i >= stride; i-- {
		row[i] -= row[i-stride]
	}
}

// DecodeRows reverses horizontal differencing for a block of rows laid out
// contiguously, width pixels wide with stride samples per pixel. Partial
// trailing rows (a short final strip) are handled.
func DecodeRows(data []byte, width, stride int) {
	rowLen := width * stride
	if rowLen <= 0 {
		return
	}
	for start := 0; start < len(data); start += rowLen {
		end := start + rowLen
		if end > len(data) {
			end = len(data)
		}
		Decode(data[start:end], stride)
	}
}

// EncodeRows applies horizontal differencing to a block of rows.
func EncodeRows(data []byte, width, stride int) {
	rowLen := width * stride
	if rowLen <= 0 {
		return
	}
	for start := 0; start < len(data); start += rowLen {
		end := start + rowLen
		if end > len(data) {
			end = len(data)
		}
		Encode(data[start:end], stride)
	}
}
