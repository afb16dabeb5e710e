package endian

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestReadLittleEndian(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	r := NewReader(data, binary.LittleEndian)

	if v, err := r.Uint8(0); err != nil || v != 0x01 {
		t.Errorf("Uint8(0) = %#x, %v", v, err)
	}
	if v, err := r.Uint16(0); err != nil || v != 0x0201 {
		t.Errorf("Uint16(0) = %#x, %v", v, err)
	}
	if v, err := r.Uint32(0); err != nil || v != 0x04030201 {
		t.Errorf("Uint32(0) = %#x, %v", v, err)
	}
	if v, err := r.Uint64(0); err != nil || v != 0x0807060504030201 {
		t.Errorf("Uint64(0) = %#x, %v", v, err)
	}
}

func TestReadBigEndian(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04}
	r := NewReader(data, binary.BigEndian)

	if v, err := r.Uint16(1); err != nil || v != 0x0203 {
		t.Errorf("Uint16(1) = %#x, %v", v, err)
	}
	if v, err := r.Uint32(0); err != nil || v != 0x01020304 {
		t.Errorf("Uint32(0) = %#x, %v", v, err)
	}
}

func TestBytes(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5}
	r := NewReader(data, binary.LittleEndian)

	span, err := r.Bytes(1, 3)
	if err != nil {
		t.Fatalf("Bytes(1, 3): %v", err)
	}
	if !bytes.Equal(span, []byte{2, 3, 4}) {
		t.Errorf("Bytes(1, 3) = %v", span)
	}

	// Zero-length span at the end of the buffer is valid
	if _, err := r.Bytes(5, 0); err != nil {
		t.Errorf("Bytes(5, 0): %v", err)
	}
}

func TestOutOfBounds(t *testing.T) {
	data := []byte{1, 2, 3, 4}
	r := NewReader(data, binary.LittleEndian)

	cases := []struct {
		name string
		err  error
	}{
		{"Uint8 past end", func() error { _, err := r.Uint8(4); return err }()},
		{"Uint16 straddling end", func() error { _, err := r.Uint16(3); return err }()},
		{"Uint32 straddling end", func() error { _, err := r.Uint32(1); return err }()},
		{"Uint64 too large", func() error { _, err := r.Uint64(0); return err }()},
		{"Bytes past end", func() error { _, err := r.Bytes(2, 3); return err }()},
		{"Bytes huge length", func() error { _, err := r.Bytes(0, 1 << 40); return err }()},
	}

	for _, tc := range cases {
		if tc.err != ErrOutOfBounds {
			t.Errorf("%s: got %v, want ErrOutOfBounds", tc.name, tc.err)
		}
	}
}

func TestInBoundsOverflow(t *testing.T) {
	r := NewReader(make([]byte, 16), binary.LittleEndian)

	// off + n would overflow uint64; must not wrap around to "in bounds"
	if r.InBounds(^uint64(0), 8) {
		t.Error("InBounds accepted an overflowing offset")
	}
	if r.InBounds(8, ^uint64(0)) {
		t.Error("InBounds accepted an overflowing length")
	}
}
