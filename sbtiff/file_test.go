package sbtiff

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/sketchlab/sketchora/internal/tifftest"
)

// flavors enumerates the four header layouts every structural test should
// survive.
var flavors = []struct {
	name  string
	order binary.ByteOrder
	big   bool
}{
	{"classic LE", binary.LittleEndian, false},
	{"classic BE", binary.BigEndian, false},
	{"BigTIFF LE", binary.LittleEndian, true},
	{"BigTIFF BE", binary.BigEndian, true},
}

func TestParseRejectsNonTIFF(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"truncated header", []byte("II*")},
		{"bad byte order", []byte("XX\x2a\x00\x08\x00\x00\x00")},
		{"bad magic", []byte("II\x2c\x00\x08\x00\x00\x00")},
		{"png", []byte("\x89PNG\r\n\x1a\n")},
		{"bigtiff bad offset size", []byte("II\x2b\x00\x04\x00\x00\x00\x10\x00\x00\x00\x00\x00\x00\x00")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.data); !errors.Is(err, ErrNotTIFF) {
				t.Fatalf("Parse() error = %v, want ErrNotTIFF", err)
			}
		})
	}
}

func TestParseWalksChain(t *testing.T) {
	for _, fl := range flavors {
		t.Run(fl.name, func(t *testing.T) {
			b := tifftest.New(fl.order, fl.big)
			second := b.IFD(0, b.Short(tagImageWidth, 4), b.Short(tagImageLength, 2))
			first := b.IFD(second, b.Short(tagImageWidth, 8), b.Short(tagImageLength, 6))
			b.SetFirstIFD(first)

			f, err := Parse(b.Bytes())
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if f.BigTIFF() != fl.big {
				t.Errorf("BigTIFF() = %v, want %v", f.BigTIFF(), fl.big)
			}
			if len(f.IFDs) != 2 {
				t.Fatalf("got %d IFDs, want 2", len(f.IFDs))
			}
			if f.IFDs[0].Offset != first || f.IFDs[1].Offset != second {
				t.Errorf("chain offsets = %d, %d, want %d, %d",
					f.IFDs[0].Offset, f.IFDs[1].Offset, first, second)
			}

			w, h, err := f.IFDs[0].Dimensions()
			if err != nil {
				t.Fatalf("Dimensions() error = %v", err)
			}
			if w != 8 || h != 6 {
				t.Errorf("first IFD is %dx%d, want 8x6", w, h)
			}
		})
	}
}

func TestParseDetectsCycle(t *testing.T) {
	b := tifftest.New(binary.LittleEndian, false)
	// The IFD's next pointer targets its own offset.
	self := b.Offset()
	b.IFD(self, b.Short(tagImageWidth, 1))
	b.SetFirstIFD(self)

	if _, err := Parse(b.Bytes()); !errors.Is(err, ErrMalformedIfd) {
		t.Fatalf("Parse() error = %v, want ErrMalformedIfd", err)
	}
}

func TestParseEmptyChain(t *testing.T) {
	b := tifftest.New(binary.LittleEndian, false)
	if _, err := Parse(b.Bytes()); !errors.Is(err, ErrMalformedIfd) {
		t.Fatalf("Parse() error = %v, want ErrMalformedIfd", err)
	}
}

func TestParseRejectsOverlongEntryCount(t *testing.T) {
	for _, fl := range flavors {
		t.Run(fl.name, func(t *testing.T) {
			b := tifftest.New(fl.order, fl.big)
			first := b.IFD(0, b.Short(tagImageWidth, 8))
			b.SetFirstIFD(first)
			data := b.Bytes()

			// Corrupt the entry count so the declared table runs past the
			// end of the buffer.
			if fl.big {
				fl.order.PutUint64(data[first:], 1<<40)
			} else {
				fl.order.PutUint16(data[first:], 0xFFFF)
			}

			if _, err := Parse(data); !errors.Is(err, ErrMalformedIfd) {
				t.Fatalf("Parse() error = %v, want ErrMalformedIfd", err)
			}
		})
	}
}

func TestTagValueOutOfBounds(t *testing.T) {
	b := tifftest.New(binary.LittleEndian, false)
	first := b.IFD(0,
		b.Short(tagImageWidth, 8),
		b.External(tagStripOffsets, tifftest.TypeLong, 64, 1<<30),
	)
	b.SetFirstIFD(first)

	f, err := Parse(b.Bytes())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	tag, ok := f.IFDs[0].Tag(tagStripOffsets)
	if !ok {
		t.Fatal("strip offsets tag missing")
	}
	if tag.Inline() {
		t.Error("64 LONG values decoded as inline")
	}
	if _, err := tag.Value(); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("Value() error = %v, want ErrOutOfBounds", err)
	}
}

func TestInlineValuePredicate(t *testing.T) {
	for _, fl := range flavors {
		t.Run(fl.name, func(t *testing.T) {
			b := tifftest.New(fl.order, fl.big)

			// Classic holds up to 2 SHORTs inline, BigTIFF up to 4.
			atCap := []uint16{1, 2}
			overCap := []uint16{1, 2, 3}
			if fl.big {
				atCap = []uint16{1, 2, 3, 4}
				overCap = []uint16{1, 2, 3, 4, 5}
			}

			first := b.IFD(0,
				b.Short(tagBitsPerSample, atCap...),
				b.Short(tagExtraSamples, overCap...),
			)
			b.SetFirstIFD(first)

			f, err := Parse(b.Bytes())
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}

			in, _ := f.IFDs[0].Tag(tagBitsPerSample)
			if !in.Inline() {
				t.Errorf("%d SHORTs stored out of line, want inline", len(atCap))
			}
			out, _ := f.IFDs[0].Tag(tagExtraSamples)
			if out.Inline() {
				t.Errorf("%d SHORTs stored inline, want out of line", len(overCap))
			}

			for _, tag := range []*Tag{in, out} {
				vals, err := tag.Uints()
				if err != nil {
					t.Fatalf("Uints() error = %v", err)
				}
				for i, v := range vals {
					if v != uint64(i+1) {
						t.Errorf("tag %d value[%d] = %d, want %d", tag.ID, i, v, i+1)
					}
				}
			}
		})
	}
}

func TestDuplicateTagKeepsFirst(t *testing.T) {
	b := tifftest.New(binary.LittleEndian, false)
	first := b.IFD(0,
		b.Short(tagImageWidth, 8),
		b.Short(tagImageWidth, 99),
	)
	b.SetFirstIFD(first)

	f, err := Parse(b.Bytes())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(f.Warnings) == 0 {
		t.Error("duplicate tag produced no warning")
	}

	tag, _ := f.IFDs[0].Tag(tagImageWidth)
	if v, _ := tag.Uint(0); v != 8 {
		t.Errorf("duplicate tag resolved to %d, want the first occurrence 8", v)
	}
}

func TestASCIITag(t *testing.T) {
	b := tifftest.New(binary.BigEndian, false)
	first := b.IFD(0, b.ASCII(tagSoftware, softwareMarker))
	b.SetFirstIFD(first)

	f, err := Parse(b.Bytes())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	tag, _ := f.IFDs[0].Tag(tagSoftware)
	s, err := tag.ASCII()
	if err != nil {
		t.Fatalf("ASCII() error = %v", err)
	}
	if s != softwareMarker {
		t.Errorf("ASCII() = %q, want %q", s, softwareMarker)
	}
}
