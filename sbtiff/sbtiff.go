// Package sbtiff reads the multi-layer TIFF files written by Autodesk
// Sketchbook.
//
// Sketchbook stores a flattened composite as the visible TIFF image so that
// any viewer can open the file, and smuggles the individual layers, their
// metadata, and a thumbnail into additional IFDs reachable only through a
// private tag. The format is not documented by the vendor; the convention
// implemented here follows the partial documentation of the Alias tags
// published by Aware Systems.
//
// The package splits into three stages, layered strictly bottom-up:
//
//   - a format-agnostic IFD walker (Parse, File.ReadIFD) that knows nothing
//     about the vendor tags,
//   - the private layer-table decoder (DecodeLayerTable) that interprets the
//     Alias layer metadata tag as an ordered list of layer descriptors,
//   - the pixel decoder (DecodeImage, DecodeLayerImage) that reconstructs a
//     canonical straight-alpha RGBA buffer from one IFD's strips or tiles.
package sbtiff

import "errors"

// Structural and capability errors. Structural violations (bounds, counts,
// record shapes) are strict; vendor-specific semantic extensions such as
// unknown blend modes are warnings, not errors.
var (
	// ErrNotTIFF is returned when the buffer does not start with a TIFF header.
	ErrNotTIFF = errors.New("sbtiff: not a TIFF file")

	// ErrOutOfBounds is returned when an offset or length points outside
	// the file buffer.
	ErrOutOfBounds = errors.New("sbtiff: offset out of bounds")

	// ErrMalformedIfd is returned when an IFD's declared shape cannot be
	// satisfied by the buffer.
	ErrMalformedIfd = errors.New("sbtiff: malformed IFD")

	// ErrMalformedLayerRecord is returned when the private layer table
	// violates its fixed record shape.
	ErrMalformedLayerRecord = errors.New("sbtiff: malformed layer record")

	// ErrNoLayerTable is returned when no IFD carries the private layer
	// metadata tag.
	ErrNoLayerTable = errors.New("sbtiff: no Alias layer metadata found")

	// ErrUnsupportedCompression is returned for recognized-but-unimplemented
	// compression ids.
	ErrUnsupportedCompression = errors.New("sbtiff: unsupported compression")

	// ErrUnsupportedPhotometric is returned for photometric interpretations
	// outside grayscale, RGB and palette.
	ErrUnsupportedPhotometric = errors.New("sbtiff: unsupported photometric interpretation")

	// ErrUnsupportedBitDepth is returned for sample depths other than 8 bits.
	ErrUnsupportedBitDepth = errors.New("sbtiff: unsupported bits per sample")
)

// DataType is a TIFF tag data type as defined in the TIFF 6.0 specification
// (BigTIFF adds the 8-byte integer types).
type DataType uint16

// Tag data types.
const (
	TypeByte      DataType = 1
	TypeASCII     DataType = 2
	TypeShort     DataType = 3
	TypeLong      DataType = 4
	TypeRational  DataType = 5
	TypeSByte     DataType = 6
	TypeUndefined DataType = 7
	TypeSShort    DataType = 8
	TypeSLong     DataType = 9
	TypeSRational DataType = 10
	TypeFloat     DataType = 11
	TypeDouble    DataType = 12
	TypeLong8     DataType = 16
	TypeSLong8    DataType = 17
	TypeIFD8      DataType = 18
)

// Size returns the size in bytes of one element of the type. Types this
// package does not recognize report 1 so their payloads survive as opaque
// byte spans instead of failing the parse.
func (t DataType) Size() uint64 {
	switch t {
	case TypeByte, TypeASCII, TypeSByte, TypeUndefined:
		return 1
	case TypeShort, TypeSShort:
		return 2
	case TypeLong, TypeSLong, TypeFloat:
		return 4
	case TypeRational, TypeSRational, TypeDouble, TypeLong8, TypeSLong8, TypeIFD8:
		return 8
	default:
		return 1
	}
}

// Standard tag ids used by the decoder.
const (
	tagNewSubfileType  = 254
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagPhotometric     = 262
	tagStripOffsets    = 273
	tagOrientation     = 274
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagSoftware        = 305
	tagPredictor       = 317
	tagColorMap        = 320
	tagTileWidth       = 322
	tagTileLength      = 323
	tagTileOffsets     = 324
	tagTileByteCounts  = 325
	tagExtraSamples    = 338
)

// Vendor-private tags. 50784 is the Alias layer metadata tag documented by
// Aware Systems; 50785 carries the canvas background color as four ARGB
// bytes on the composite IFD.
const (
	tagAliasLayerMetadata = 50784
	tagAliasBackground    = 50785
)

// Compression ids.
const (
	CompressionNone       = 1
	CompressionLZW        = 5
	CompressionDeflate    = 8
	CompressionPackBits   = 32773
	CompressionOldDeflate = 32946
)

// Photometric interpretations.
const (
	PhotometricWhiteIsZero = 0
	PhotometricBlackIsZero = 1
	PhotometricRGB         = 2
	PhotometricPalette     = 3
)

// Predictor values.
const (
	predictorNone       = 1
	predictorHorizontal = 2
)

// softwareMarker identifies the composite IFD of a Sketchbook multi-layer
// file via the Software tag.
const softwareMarker = "Alias MultiLayer TIFF V1.1"
