package compression

import (
	"bytes"
	"testing"
)

// signedByte converts a signed int8 value to a byte for use in test data.
// This is needed because Go doesn't allow negative byte literals.
func signedByte(v int8) byte {
	return byte(v)
}

func TestPackBitsCompressEmpty(t *testing.T) {
	if result := PackBitsCompress(nil); result != nil {
		t.Error("Compressing nil should return nil")
	}
	if result := PackBitsCompress([]byte{}); result != nil {
		t.Error("Compressing empty should return nil")
	}
}

func TestPackBitsCompressRun(t *testing.T) {
	data := []byte{42, 42, 42, 42, 42}
	compressed := PackBitsCompress(data)

	// Should encode as [-4, 42] (5 copies of 42)
	expected := []byte{signedByte(-4), 42}
	if !bytes.Equal(compressed, expected) {
		t.Errorf("Compress run: got %v, want %v", compressed, expected)
	}
}

func TestPackBitsCompressLiterals(t *testing.T) {
	data := []byte{1, 2, 3, 4}
	compressed := PackBitsCompress(data)

	// Should encode as [3, 1, 2, 3, 4] (4 literal bytes)
	expected := []byte{3, 1, 2, 3, 4}
	if !bytes.Equal(compressed, expected) {
		t.Errorf("Compress literals: got %v, want %v", compressed, expected)
	}
}

func TestPackBitsDecompressRun(t *testing.T) {
	compressed := []byte{signedByte(-4), 42}
	decompressed, err := PackBitsDecompress(compressed, 5)
	if err != nil {
		t.Fatalf("Decompress error: %v", err)
	}

	expected := []byte{42, 42, 42, 42, 42}
	if !bytes.Equal(decompressed, expected) {
		t.Errorf("Decompress run: got %v, want %v", decompressed, expected)
	}
}

func TestPackBitsDecompressNoOp(t *testing.T) {
	// -128 is a no-op count byte and contributes nothing.
	compressed := []byte{signedByte(-128), 1, 0, 7}
	decompressed, err := PackBitsDecompress(compressed, 2)
	if err != nil {
		t.Fatalf("Decompress error: %v", err)
	}

	expected := []byte{0, 7}
	if !bytes.Equal(decompressed, expected) {
		t.Errorf("Decompress with no-op: got %v, want %v", decompressed, expected)
	}
}

func TestPackBitsRoundTrip(t *testing.T) {
	tests := [][]byte{
		{1},
		{1, 2},
		{1, 1, 1},
		{1, 2, 3, 4, 5},
		{100, 100, 100, 100, 100, 100, 100, 100},
		{1, 2, 3, 3, 3, 3, 4, 5, 6},
		bytes.Repeat([]byte{9}, 300), // longer than one max-length run
		append(bytes.Repeat([]byte{7}, 130), 1, 2, 3),
	}

	for _, data := range tests {
		compressed := PackBitsCompress(data)
		decompressed, err := PackBitsDecompress(compressed, len(data))
		if err != nil {
			t.Fatalf("Decompress error for input of length %d: %v", len(data), err)
		}
		if !bytes.Equal(decompressed, data) {
			t.Errorf("Round-trip failed for input of length %d", len(data))
		}
	}
}

func TestPackBitsDecompressTruncated(t *testing.T) {
	// Run count with no value byte
	if _, err := PackBitsDecompress([]byte{signedByte(-4)}, 5); err != ErrPackBitsCorrupted {
		t.Errorf("truncated run: got %v, want ErrPackBitsCorrupted", err)
	}

	// Literal count with too few bytes
	if _, err := PackBitsDecompress([]byte{3, 1, 2}, 4); err != ErrPackBitsCorrupted {
		t.Errorf("truncated literal: got %v, want ErrPackBitsCorrupted", err)
	}
}

func TestPackBitsDecompressOverflow(t *testing.T) {
	// 5 output bytes into a 3-byte expectation
	if _, err := PackBitsDecompress([]byte{signedByte(-4), 42}, 3); err != ErrPackBitsOverflow {
		t.Errorf("overflow run: got %v, want ErrPackBitsOverflow", err)
	}
}

func TestPackBitsDecompressShortOutput(t *testing.T) {
	// Stream ends before producing the expected byte count
	if _, err := PackBitsDecompress([]byte{0, 42}, 5); err != ErrPackBitsCorrupted {
		t.Errorf("short output: got %v, want ErrPackBitsCorrupted", err)
	}
}
