package sbtiff

import (
	"fmt"
	"strings"
)

// BlendMode is a layer blend-mode code from the Alias layer table.
type BlendMode uint8

// Blend-mode codes observed in Sketchbook files. The mapping to Open
// Raster composite-op identifiers lives in blendModeOps; codes are added
// there as they are observed, without touching the decoder.
const (
	BlendNormal BlendMode = iota
	BlendMultiply
	BlendScreen
	BlendOverlay
	BlendDarken
	BlendLighten
	BlendColorDodge
	BlendColorBurn
	BlendHardLight
	BlendSoftLight
	BlendDifference
	BlendHue
	BlendSaturation
	BlendColor
	BlendLuminosity
	BlendAdd
)

// blendModeOps maps blend-mode codes to Open Raster composite-op
// identifiers. Codes missing from the table decode as normal with a
// recorded warning rather than failing; the vendor may add codes at any
// time and an unknown mode must not make a file unreadable.
var blendModeOps = map[BlendMode]string{
	BlendNormal:     "svg:src-over",
	BlendMultiply:   "svg:multiply",
	BlendScreen:     "svg:screen",
	BlendOverlay:    "svg:overlay",
	BlendDarken:     "svg:darken",
	BlendLighten:    "svg:lighten",
	BlendColorDodge: "svg:color-dodge",
	BlendColorBurn:  "svg:color-burn",
	BlendHardLight:  "svg:hard-light",
	BlendSoftLight:  "svg:soft-light",
	BlendDifference: "svg:difference",
	BlendHue:        "svg:hue",
	BlendSaturation: "svg:saturation",
	BlendColor:      "svg:color",
	BlendLuminosity: "svg:luminosity",
	BlendAdd:        "svg:plus",
}

// CompositeOp returns the Open Raster composite-op identifier for the
// mode, and whether the mode is a known one.
func (m BlendMode) CompositeOp() (string, bool) {
	op, ok := blendModeOps[m]
	if !ok {
		return blendModeOps[BlendNormal], false
	}
	return op, true
}

// LayerDescriptor is the decoded metadata of one layer record from the
// Alias layer table. The record order in the table is the stacking order:
// the first record is the bottom layer, and that order is preserved
// through to the output archive.
type LayerDescriptor struct {
	// Name is the layer name with trailing padding removed.
	Name string

	// IFDOffset locates the layer's own IFD inside the file.
	IFDOffset uint64

	// Opacity is normalized to [0, 1].
	Opacity float64

	// Visible is the layer visibility flag. Hidden layers are still
	// converted; the flag travels into the stack description.
	Visible bool

	// Mode is the blend-mode code, already folded to BlendNormal when
	// the file carried an unknown code.
	Mode BlendMode

	// X, Y are the layer's canvas offsets in pixels. They may be
	// negative when the layer extends past the canvas; consumers record
	// them verbatim and never clip.
	X, Y int
}

// Layer table record geometry. Each record is fixed width; the record
// count is the tag's declared byte count divided by the record size.
const (
	layerRecordSize = 32
	layerNameSize   = 16
)

// LayerTable is the decoded private layer tag of a composite IFD.
type LayerTable struct {
	// Layers is in stacking order, bottom first.
	Layers []LayerDescriptor

	// Warnings records forward-compatibility fallbacks, such as unknown
	// blend-mode codes folded to normal.
	Warnings []string
}

// IsComposite reports whether the IFD is the Sketchbook composite (root)
// image, identified by the Software tag marker.
func IsComposite(ifd *IFD) bool {
	t, ok := ifd.Tag(tagSoftware)
	if !ok {
		return false
	}
	s, err := t.ASCII()
	return err == nil && s == softwareMarker
}

// IsThumbnail reports whether the IFD is a reduced-resolution image
// (NewSubfileType bit 0).
func IsThumbnail(ifd *IFD) bool {
	t, ok := ifd.Tag(tagNewSubfileType)
	if !ok {
		return false
	}
	v, err := t.Uint(0)
	return err == nil && v&1 == 1
}

// HasLayerTable reports whether the IFD carries the Alias layer metadata
// tag.
func HasLayerTable(ifd *IFD) bool {
	return ifd.Has(tagAliasLayerMetadata)
}

// DecodeLayerTable decodes the Alias layer metadata tag of the composite
// IFD into an ordered layer list. The decoder is strict about the record
// shape and lenient about vendor semantics: a partial record or a
// corrupted name field is an error, an unknown blend-mode code is a
// warning.
func DecodeLayerTable(f *File, ifd *IFD) (*LayerTable, error) {
	tag, ok := ifd.Tag(tagAliasLayerMetadata)
	if !ok {
		return nil, ErrNoLayerTable
	}

	raw, err := tag.Value()
	if err != nil {
		return nil, err
	}
	if len(raw)%layerRecordSize != 0 {
		return nil, fmt.Errorf("%w: table length %d is not a multiple of the %d-byte record size",
			ErrMalformedLayerRecord, len(raw), layerRecordSize)
	}

	order := f.Order()
	table := &LayerTable{}

	for i := 0; i*layerRecordSize < len(raw); i++ {
		rec := raw[i*layerRecordSize : (i+1)*layerRecordSize]

		name, err := decodeLayerName(rec[4 : 4+layerNameSize])
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}

		opacity := float64(order.Uint16(rec[20:])) / 0xFFFF
		if opacity > 1 {
			opacity = 1
		}

		mode := BlendMode(rec[23])
		if _, known := mode.CompositeOp(); !known {
			table.Warnings = append(table.Warnings,
				fmt.Sprintf("layer %q: unknown blend mode %#02x, treating as normal", name, rec[23]))
			mode = BlendNormal
		}

		table.Layers = append(table.Layers, LayerDescriptor{
			Name:      name,
			IFDOffset: uint64(order.Uint32(rec[0:])),
			Opacity:   opacity,
			Visible:   rec[22] != 0,
			Mode:      mode,
			X:         int(int32(order.Uint32(rec[24:]))),
			Y:         int(int32(order.Uint32(rec[28:]))),
		})
	}

	return table, nil
}

// decodeLayerName trims the fixed-width, NUL-padded name field. A NUL in
// the middle of the field followed by non-NUL bytes means the record shape
// is violated.
func decodeLayerName(field []byte) (string, error) {
	end := len(field)
	for end > 0 && field[end-1] == 0 {
		end--
	}
	name := field[:end]
	if strings.IndexByte(string(name), 0) >= 0 {
		return "", fmt.Errorf("%w: name field has bytes after the terminator", ErrMalformedLayerRecord)
	}
	return string(name), nil
}

// Background returns the canvas background color of the composite IFD as
// ARGB bytes, or ok=false when the tag is absent or malformed.
func Background(ifd *IFD) (a, r, g, b uint8, ok bool) {
	t, found := ifd.Tag(tagAliasBackground)
	if !found || t.Type != TypeByte || t.Count != 4 {
		return 0, 0, 0, 0, false
	}
	v, err := t.Value()
	if err != nil {
		return 0, 0, 0, 0, false
	}
	return v[0], v[1], v[2], v[3], true
}
