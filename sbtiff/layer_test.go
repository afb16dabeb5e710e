package sbtiff

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/sketchlab/sketchora/internal/tifftest"
)

func TestDecodeLayerTable(t *testing.T) {
	for _, fl := range flavors {
		t.Run(fl.name, func(t *testing.T) {
			b := tifftest.New(fl.order, fl.big)

			table := append(
				b.LayerRecord(0x1000, "Background", 0xFFFF, true, 0, 0, 0),
				b.LayerRecord(0x2000, "Sketch", 0x8000, false, 1, -40, 25)...,
			)
			first := b.IFD(0,
				b.ASCII(tagSoftware, softwareMarker),
				tifftest.Entry{ID: tagAliasLayerMetadata, Type: tifftest.TypeByte, Count: uint64(len(table)), Value: table},
			)
			b.SetFirstIFD(first)

			f, err := Parse(b.Bytes())
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if !IsComposite(f.IFDs[0]) {
				t.Error("IsComposite() = false for marked IFD")
			}
			if !HasLayerTable(f.IFDs[0]) {
				t.Error("HasLayerTable() = false")
			}

			got, err := DecodeLayerTable(f, f.IFDs[0])
			if err != nil {
				t.Fatalf("DecodeLayerTable() error = %v", err)
			}
			if len(got.Warnings) != 0 {
				t.Errorf("unexpected warnings: %v", got.Warnings)
			}
			if len(got.Layers) != 2 {
				t.Fatalf("got %d layers, want 2", len(got.Layers))
			}

			bottom := got.Layers[0]
			if bottom.Name != "Background" || bottom.IFDOffset != 0x1000 ||
				bottom.Opacity != 1 || !bottom.Visible || bottom.Mode != BlendNormal {
				t.Errorf("bottom layer = %+v", bottom)
			}

			top := got.Layers[1]
			if top.Name != "Sketch" || top.IFDOffset != 0x2000 {
				t.Errorf("top layer = %+v", top)
			}
			if want := float64(0x8000) / 0xFFFF; top.Opacity != want {
				t.Errorf("opacity = %v, want %v", top.Opacity, want)
			}
			if top.Visible {
				t.Error("hidden layer decoded as visible")
			}
			if top.Mode != BlendMultiply {
				t.Errorf("mode = %v, want multiply", top.Mode)
			}
			if top.X != -40 || top.Y != 25 {
				t.Errorf("offset = (%d, %d), want (-40, 25)", top.X, top.Y)
			}
		})
	}
}

func TestDecodeLayerTableUnknownBlendMode(t *testing.T) {
	b := tifftest.New(binary.LittleEndian, false)
	rec := b.LayerRecord(0x1000, "Layer 1", 0xFFFF, true, 0xFF, 0, 0)
	first := b.IFD(0,
		tifftest.Entry{ID: tagAliasLayerMetadata, Type: tifftest.TypeByte, Count: uint64(len(rec)), Value: rec},
	)
	b.SetFirstIFD(first)

	f, err := Parse(b.Bytes())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	got, err := DecodeLayerTable(f, f.IFDs[0])
	if err != nil {
		t.Fatalf("DecodeLayerTable() error = %v, unknown blend mode must not fail", err)
	}
	if got.Layers[0].Mode != BlendNormal {
		t.Errorf("mode = %v, want fallback to normal", got.Layers[0].Mode)
	}
	if len(got.Warnings) != 1 || !strings.Contains(got.Warnings[0], "blend mode") {
		t.Errorf("warnings = %v, want one unknown-blend-mode warning", got.Warnings)
	}
}

func TestDecodeLayerTableMalformed(t *testing.T) {
	badName := make([]byte, 32)
	copy(badName[4:], "ok\x00garbage")

	tests := []struct {
		name  string
		table []byte
	}{
		{"partial record", make([]byte, 48)},
		{"name bytes after terminator", badName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := tifftest.New(binary.LittleEndian, false)
			first := b.IFD(0,
				tifftest.Entry{ID: tagAliasLayerMetadata, Type: tifftest.TypeByte, Count: uint64(len(tt.table)), Value: tt.table},
			)
			b.SetFirstIFD(first)

			f, err := Parse(b.Bytes())
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if _, err := DecodeLayerTable(f, f.IFDs[0]); !errors.Is(err, ErrMalformedLayerRecord) {
				t.Fatalf("DecodeLayerTable() error = %v, want ErrMalformedLayerRecord", err)
			}
		})
	}
}

func TestDecodeLayerTableMissing(t *testing.T) {
	b := tifftest.New(binary.LittleEndian, false)
	first := b.IFD(0, b.Short(tagImageWidth, 8))
	b.SetFirstIFD(first)

	f, err := Parse(b.Bytes())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if _, err := DecodeLayerTable(f, f.IFDs[0]); !errors.Is(err, ErrNoLayerTable) {
		t.Fatalf("DecodeLayerTable() error = %v, want ErrNoLayerTable", err)
	}
}

func TestLayerNamePadding(t *testing.T) {
	// A name using the full 16-byte field decodes without truncation or
	// padding artifacts.
	b := tifftest.New(binary.LittleEndian, false)
	full := "0123456789abcdef"
	rec := b.LayerRecord(0x1000, full, 0xFFFF, true, 0, 0, 0)
	if !bytes.Equal(rec[4:20], []byte(full)) {
		t.Fatal("builder truncated the name field")
	}
	first := b.IFD(0,
		tifftest.Entry{ID: tagAliasLayerMetadata, Type: tifftest.TypeByte, Count: uint64(len(rec)), Value: rec},
	)
	b.SetFirstIFD(first)

	f, err := Parse(b.Bytes())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	got, err := DecodeLayerTable(f, f.IFDs[0])
	if err != nil {
		t.Fatalf("DecodeLayerTable() error = %v", err)
	}
	if got.Layers[0].Name != full {
		t.Errorf("name = %q, want %q", got.Layers[0].Name, full)
	}
}

func TestIsThumbnail(t *testing.T) {
	b := tifftest.New(binary.LittleEndian, false)
	thumb := b.IFD(0, b.Long(tagNewSubfileType, 1))
	main := b.IFD(thumb, b.Long(tagNewSubfileType, 0), b.Short(tagImageWidth, 8))
	b.SetFirstIFD(main)

	f, err := Parse(b.Bytes())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if IsThumbnail(f.IFDs[0]) {
		t.Error("full-resolution IFD classified as thumbnail")
	}
	if !IsThumbnail(f.IFDs[1]) {
		t.Error("reduced-resolution IFD not classified as thumbnail")
	}
}

func TestBackground(t *testing.T) {
	b := tifftest.New(binary.LittleEndian, false)
	first := b.IFD(0, b.Byte(tagAliasBackground, 0xFF, 0x20, 0x40, 0x60))
	b.SetFirstIFD(first)

	f, err := Parse(b.Bytes())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	a, r, g, bl, ok := Background(f.IFDs[0])
	if !ok {
		t.Fatal("Background() ok = false")
	}
	if a != 0xFF || r != 0x20 || g != 0x40 || bl != 0x60 {
		t.Errorf("Background() = %02x %02x %02x %02x", a, r, g, bl)
	}

	// Absent tag.
	b2 := tifftest.New(binary.LittleEndian, false)
	first2 := b2.IFD(0, b2.Short(tagImageWidth, 8))
	b2.SetFirstIFD(first2)
	f2, err := Parse(b2.Bytes())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if _, _, _, _, ok := Background(f2.IFDs[0]); ok {
		t.Error("Background() ok = true without the tag")
	}
}

func TestCompositeOpTable(t *testing.T) {
	tests := []struct {
		mode BlendMode
		op   string
	}{
		{BlendNormal, "svg:src-over"},
		{BlendMultiply, "svg:multiply"},
		{BlendScreen, "svg:screen"},
		{BlendAdd, "svg:plus"},
	}
	for _, tt := range tests {
		op, known := tt.mode.CompositeOp()
		if !known || op != tt.op {
			t.Errorf("CompositeOp(%d) = %q, %v, want %q, true", tt.mode, op, known, tt.op)
		}
	}

	if op, known := BlendMode(0xEE).CompositeOp(); known || op != "svg:src-over" {
		t.Errorf("unknown mode = %q, %v, want src-over fallback", op, known)
	}
}
