package sbtiff

import (
	"fmt"
	"image"

	"github.com/sketchlab/sketchora/compression"
	"github.com/sketchlab/sketchora/internal/parallel"
	"github.com/sketchlab/sketchora/internal/predictor"
)

// Image is the canonical pixel buffer every downstream consumer works
// with: straight (unpremultiplied) 8-bit RGBA, row-major, top row first.
// Color-space conversion is centralized in the decoder so the writer never
// branches on the source format.
type Image struct {
	Width, Height int

	// Pix holds 4*Width*Height bytes in R, G, B, A order.
	Pix []byte

	// HasAlpha reports whether the source carried an alpha channel.
	// When it did not, Pix's alpha bytes are fully opaque.
	HasAlpha bool
}

// NRGBA wraps the buffer as a stdlib image without copying. The straight
// alpha convention of Image matches image.NRGBA exactly.
func (im *Image) NRGBA() *image.NRGBA {
	return &image.NRGBA{
		Pix:    im.Pix,
		Stride: im.Width * 4,
		Rect:   image.Rect(0, 0, im.Width, im.Height),
	}
}

// Dimension sanity cap. Sketchbook canvases top out far below this; a
// larger declared size is taken as file corruption rather than a real
// image.
const maxPixels = 1 << 28

// imageParams is the decoded strip/tile geometry of one IFD.
type imageParams struct {
	width, height int
	spp           int // samples per pixel as stored
	compression   uint64
	photometric   uint64
	predict       uint64
	orientation   uint64
	extra         []uint64 // ExtraSamples values
	colorMap      []uint64
}

// Dimensions returns the IFD's image width and height in pixels.
func (d *IFD) Dimensions() (int, int, error) {
	w, err := d.uintTag(tagImageWidth, 0)
	if err != nil {
		return 0, 0, err
	}
	h, err := d.uintTag(tagImageLength, 0)
	if err != nil {
		return 0, 0, err
	}
	if w > maxPixels || h > maxPixels {
		return 0, 0, fmt.Errorf("%w: implausible dimensions %dx%d", ErrMalformedIfd, w, h)
	}
	return int(w), int(h), nil
}

// DecodeImage reconstructs the canonical RGBA buffer for one IFD.
// Decoding is a pure function of the file and the IFD: decoding the same
// IFD twice yields identical buffers.
func DecodeImage(f *File, ifd *IFD) (*Image, error) {
	return decodeImage(f, ifd, false)
}

// DecodeLayerImage decodes a Sketchbook layer IFD. Layer IFDs store
// pixels with the vendor's layer convention: BGRA channel order, rows
// bottom-up, and color premultiplied by alpha. The result is normalized
// to the same canonical top-down straight RGBA as DecodeImage.
func DecodeLayerImage(f *File, ifd *IFD) (*Image, error) {
	return decodeImage(f, ifd, true)
}

func decodeImage(f *File, ifd *IFD, layerConvention bool) (*Image, error) {
	p, err := readImageParams(f, ifd)
	if err != nil {
		return nil, err
	}

	samples, err := decodeSamples(f, ifd, p)
	if err != nil {
		return nil, err
	}

	return normalize(samples, p, layerConvention)
}

// readImageParams reads and validates the geometry and format tags.
func readImageParams(f *File, ifd *IFD) (*imageParams, error) {
	width, err := ifd.uintTag(tagImageWidth, 0)
	if err != nil {
		return nil, err
	}
	height, err := ifd.uintTag(tagImageLength, 0)
	if err != nil {
		return nil, err
	}
	if width > maxPixels || height > maxPixels || width*height > maxPixels {
		return nil, fmt.Errorf("%w: implausible dimensions %dx%d", ErrMalformedIfd, width, height)
	}

	// Sketchbook always writes 8-bit samples; a missing BitsPerSample is
	// treated the same way.
	bitsTags, err := ifd.uintsTag(tagBitsPerSample)
	if err != nil {
		return nil, err
	}
	for _, b := range bitsTags {
		if b != 8 {
			return nil, fmt.Errorf("%w: %d", ErrUnsupportedBitDepth, b)
		}
	}

	spp, err := ifd.uintTag(tagSamplesPerPixel, 1)
	if err != nil {
		return nil, err
	}
	if spp < 1 || spp > 4 {
		return nil, fmt.Errorf("%w: %d samples per pixel", ErrMalformedIfd, spp)
	}

	comp, err := ifd.uintTag(tagCompression, CompressionNone)
	if err != nil {
		return nil, err
	}
	photo, err := ifd.uintTag(tagPhotometric, PhotometricBlackIsZero)
	if err != nil {
		return nil, err
	}
	predict, err := ifd.uintTag(tagPredictor, predictorNone)
	if err != nil {
		return nil, err
	}
	orientation, err := ifd.uintTag(tagOrientation, 1)
	if err != nil {
		return nil, err
	}
	extra, err := ifd.uintsTag(tagExtraSamples)
	if err != nil {
		return nil, err
	}

	p := &imageParams{
		width:       int(width),
		height:      int(height),
		spp:         int(spp),
		compression: comp,
		photometric: photo,
		predict:     predict,
		orientation: orientation,
		extra:       extra,
	}

	switch photo {
	case PhotometricWhiteIsZero, PhotometricBlackIsZero, PhotometricRGB:

	case PhotometricPalette:
		cm, err := ifd.uintsTag(tagColorMap)
		if err != nil {
			return nil, err
		}
		if len(cm) < 3*256 {
			return nil, fmt.Errorf("%w: palette image with short color map (%d entries)",
				ErrMalformedIfd, len(cm))
		}
		p.colorMap = cm

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedPhotometric, photo)
	}

	return p, nil
}

// decodeSamples reassembles the interleaved sample plane from the IFD's
// strips or tiles. Every strip or tile writes a disjoint region, so they
// are decompressed in parallel.
func decodeSamples(f *File, ifd *IFD, p *imageParams) ([]byte, error) {
	samples := make([]byte, p.width*p.height*p.spp)
	if len(samples) == 0 {
		return samples, nil
	}

	if ifd.Has(tagTileOffsets) {
		return samples, decodeTiles(f, ifd, p, samples)
	}
	return samples, decodeStrips(f, ifd, p, samples)
}

func decodeStrips(f *File, ifd *IFD, p *imageParams, samples []byte) error {
	offsets, err := ifd.uintsTag(tagStripOffsets)
	if err != nil {
		return err
	}
	counts, err := ifd.uintsTag(tagStripByteCounts)
	if err != nil {
		return err
	}
	if len(offsets) == 0 || len(offsets) != len(counts) {
		return fmt.Errorf("%w: %d strip offsets but %d byte counts",
			ErrMalformedIfd, len(offsets), len(counts))
	}

	rowsPerStrip, err := ifd.uintTag(tagRowsPerStrip, uint64(p.height))
	if err != nil {
		return err
	}
	if rowsPerStrip == 0 || rowsPerStrip > uint64(p.height) {
		rowsPerStrip = uint64(p.height)
	}
	want := (p.height + int(rowsPerStrip) - 1) / int(rowsPerStrip)
	if len(offsets) < want {
		return fmt.Errorf("%w: %d strips for %d rows of %d",
			ErrMalformedIfd, len(offsets), p.height, rowsPerStrip)
	}

	rowLen := p.width * p.spp

	return parallel.Each(want, func(i int) error {
		top := i * int(rowsPerStrip)
		rows := int(rowsPerStrip)
		if top+rows > p.height {
			rows = p.height - top
		}

		dst := samples[top*rowLen : (top+rows)*rowLen]
		raw, err := f.r.Bytes(offsets[i], counts[i])
		if err != nil {
			return fmt.Errorf("%w: strip %d (%d bytes at offset %d)",
				ErrOutOfBounds, i, counts[i], offsets[i])
		}

		data, err := decompress(raw, p.compression, len(dst))
		if err != nil {
			return fmt.Errorf("strip %d: %w", i, err)
		}
		copy(dst, data)

		if p.predict == predictorHorizontal {
			predictor.DecodeRows(dst, p.width, p.spp)
		}
		return nil
	})
}

func decodeTiles(f *File, ifd *IFD, p *imageParams, samples []byte) error {
	offsets, err := ifd.uintsTag(tagTileOffsets)
	if err != nil {
		return err
	}
	counts, err := ifd.uintsTag(tagTileByteCounts)
	if err != nil {
		return err
	}
	tw, err := ifd.uintTag(tagTileWidth, 0)
	if err != nil {
		return err
	}
	th, err := ifd.uintTag(tagTileLength, 0)
	if err != nil {
		return err
	}
	if tw == 0 || th == 0 {
		return fmt.Errorf("%w: tiled image without tile dimensions", ErrMalformedIfd)
	}

	across := (p.width + int(tw) - 1) / int(tw)
	down := (p.height + int(th) - 1) / int(th)
	want := across * down
	if len(offsets) < want || len(offsets) != len(counts) {
		return fmt.Errorf("%w: %d tiles declared, %d offsets and %d byte counts",
			ErrMalformedIfd, want, len(offsets), len(counts))
	}

	tileRowLen := int(tw) * p.spp
	rowLen := p.width * p.spp

	return parallel.Each(want, func(i int) error {
		raw, err := f.r.Bytes(offsets[i], counts[i])
		if err != nil {
			return fmt.Errorf("%w: tile %d (%d bytes at offset %d)",
				ErrOutOfBounds, i, counts[i], offsets[i])
		}

		data, err := decompress(raw, p.compression, tileRowLen*int(th))
		if err != nil {
			return fmt.Errorf("tile %d: %w", i, err)
		}
		if p.predict == predictorHorizontal {
			predictor.DecodeRows(data, int(tw), p.spp)
		}

		// Clip the tile to the image; edge tiles carry padding.
		left := (i % across) * int(tw)
		top := (i / across) * int(th)
		copyWidth := p.width - left
		if copyWidth > int(tw) {
			copyWidth = int(tw)
		}
		for row := 0; row < int(th) && top+row < p.height; row++ {
			src := data[row*tileRowLen : row*tileRowLen+copyWidth*p.spp]
			dstOff := (top+row)*rowLen + left*p.spp
			copy(samples[dstOff:dstOff+len(src)], src)
		}
		return nil
	})
}

// decompress dispatches on the compression id. Recognized ids that this
// decoder does not implement fail loudly instead of producing garbage
// pixels.
func decompress(raw []byte, comp uint64, expectedSize int) ([]byte, error) {
	switch comp {
	case CompressionNone:
		if len(raw) < expectedSize {
			return nil, fmt.Errorf("%w: uncompressed strip shorter than its region", ErrMalformedIfd)
		}
		return raw[:expectedSize], nil
	case CompressionPackBits:
		return compression.PackBitsDecompress(raw, expectedSize)
	case CompressionLZW:
		return compression.LZWDecompress(raw, expectedSize)
	case CompressionDeflate, CompressionOldDeflate:
		return compression.DeflateDecompress(raw, expectedSize)
	default:
		return nil, fmt.Errorf("%w: compression id %d", ErrUnsupportedCompression, comp)
	}
}

// normalize converts the interleaved sample plane to canonical RGBA.
func normalize(samples []byte, p *imageParams, layerConvention bool) (*Image, error) {
	im := &Image{
		Width:  p.width,
		Height: p.height,
		Pix:    make([]byte, p.width*p.height*4),
	}

	// Alpha is the first extra sample beyond the photometric's base
	// channel count. ExtraSamples value 1 marks associated
	// (premultiplied) alpha; the layer convention implies it.
	baseSamples := 1
	if p.photometric == PhotometricRGB {
		baseSamples = 3
	}
	alphaIndex := -1
	if p.spp > baseSamples {
		alphaIndex = baseSamples
		im.HasAlpha = true
	}
	premultiplied := layerConvention
	if alphaIndex >= 0 && len(p.extra) > 0 && p.extra[0] == 1 {
		premultiplied = true
	}

	n := p.width * p.height
	for i := 0; i < n; i++ {
		s := samples[i*p.spp : i*p.spp+p.spp]
		var r, g, b uint8

		switch p.photometric {
		case PhotometricWhiteIsZero:
			v := 255 - s[0]
			r, g, b = v, v, v
		case PhotometricBlackIsZero:
			r, g, b = s[0], s[0], s[0]
		case PhotometricPalette:
			v := int(s[0])
			r = uint8(p.colorMap[v] >> 8)
			g = uint8(p.colorMap[256+v] >> 8)
			b = uint8(p.colorMap[512+v] >> 8)
		case PhotometricRGB:
			r, g, b = s[0], s[1], s[2]
			if layerConvention {
				// Sketchbook layers store BGRA.
				r, b = b, r
			}
		}

		a := uint8(255)
		if alphaIndex >= 0 {
			a = s[alphaIndex]
		}
		if premultiplied && a != 0 && a != 255 {
			r = unpremultiply(r, a)
			g = unpremultiply(g, a)
			b = unpremultiply(b, a)
		}

		im.Pix[i*4+0] = r
		im.Pix[i*4+1] = g
		im.Pix[i*4+2] = b
		im.Pix[i*4+3] = a
	}

	// Layer IFDs store rows bottom-up; Orientation 4 (bottom-left)
	// says the same thing explicitly.
	if layerConvention || p.orientation == 4 {
		flipVertical(im)
	}

	return im, nil
}

// unpremultiply converts one premultiplied channel back to straight alpha,
// saturating on corrupt inputs where the channel exceeds the alpha.
func unpremultiply(c, a uint8) uint8 {
	v := (uint32(c)*255 + uint32(a)/2) / uint32(a)
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// flipVertical reverses the row order of the canonical buffer in place.
func flipVertical(im *Image) {
	rowLen := im.Width * 4
	tmp := make([]byte, rowLen)
	for top, bot := 0, im.Height-1; top < bot; top, bot = top+1, bot-1 {
		a := im.Pix[top*rowLen : (top+1)*rowLen]
		b := im.Pix[bot*rowLen : (bot+1)*rowLen]
		copy(tmp, a)
		copy(a, b)
		copy(b, tmp)
	}
}
