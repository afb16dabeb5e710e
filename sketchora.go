// Package sketchora converts Autodesk Sketchbook multi-layer TIFF files
// into Open Raster (.ora) archives, preserving every layer with its name,
// position, opacity, visibility, blend mode, and stacking order.
//
// The heavy lifting lives in the sub-packages: sbtiff parses the TIFF
// structure and decodes pixels, ora writes the archive. This package only
// sequences them: parse, decode layers (in parallel), write.
//
//	out, err := sketchora.Convert(tiffBytes)
//
// A conversion is atomic from the caller's perspective: on any error no
// output bytes are produced, so a partial archive can never be mistaken
// for a valid one.
package sketchora

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/sketchlab/sketchora/internal/parallel"
	"github.com/sketchlab/sketchora/ora"
	"github.com/sketchlab/sketchora/sbtiff"
)

// Report summarizes one successful conversion.
type Report struct {
	// Width, Height are the canvas dimensions.
	Width, Height int

	// LayerCount is the number of layers written, including a
	// synthesized background layer when the source carried one.
	LayerCount int

	// Warnings collects non-fatal observations from the whole pipeline:
	// parse oddities and forward-compatibility fallbacks such as unknown
	// blend modes.
	Warnings []string
}

// Convert translates a Sketchbook TIFF, given as the complete file
// contents, into Open Raster archive bytes.
func Convert(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := ConvertTo(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ConvertTo converts like Convert but streams the archive into w and
// returns a conversion report. Nothing reaches w until the whole layer
// stack has been decoded and validated.
func ConvertTo(w io.Writer, data []byte) (*Report, error) {
	f, err := sbtiff.Parse(data)
	if err != nil {
		return nil, err
	}

	composite, thumbIFD := classifyChain(f)
	if composite == nil {
		return nil, sbtiff.ErrNoLayerTable
	}

	width, height, err := composite.Dimensions()
	if err != nil {
		return nil, err
	}

	table, err := sbtiff.DecodeLayerTable(f, composite)
	if err != nil {
		return nil, err
	}

	stack := &ora.Stack{Width: width, Height: height}

	// Per-layer decoding is independent work; results are collected by
	// stack position so the writer sees a fully ordered stack.
	layers := make([]ora.Layer, len(table.Layers))
	err = parallel.Each(len(table.Layers), func(i int) error {
		desc := &table.Layers[i]

		ifd, err := f.ReadIFD(desc.IFDOffset)
		if err != nil {
			return fmt.Errorf("layer %q: %w", desc.Name, err)
		}
		img, err := sbtiff.DecodeLayerImage(f, ifd)
		if err != nil {
			return fmt.Errorf("layer %q: %w", desc.Name, err)
		}

		op, _ := desc.Mode.CompositeOp()
		layers[i] = ora.Layer{
			Name:        desc.Name,
			Opacity:     desc.Opacity,
			Visible:     desc.Visible,
			CompositeOp: op,
			X:           desc.X,
			Y:           desc.Y,
			Image:       img.NRGBA(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if bg := backgroundLayer(composite, width, height); bg != nil {
		stack.Layers = append(stack.Layers, *bg)
	}
	stack.Layers = append(stack.Layers, layers...)

	if thumbIFD != nil {
		thumb, err := sbtiff.DecodeImage(f, thumbIFD)
		if err != nil {
			return nil, fmt.Errorf("thumbnail: %w", err)
		}
		stack.Thumbnail = thumb.NRGBA()
	}

	if err := ora.Write(w, stack); err != nil {
		return nil, err
	}

	report := &Report{
		Width:      width,
		Height:     height,
		LayerCount: len(stack.Layers),
	}
	report.Warnings = append(report.Warnings, f.Warnings...)
	report.Warnings = append(report.Warnings, table.Warnings...)
	return report, nil
}

// classifyChain walks the primary IFD chain and picks out the composite
// IFD (the one carrying the layer table) and an optional
// reduced-resolution thumbnail IFD.
func classifyChain(f *sbtiff.File) (composite, thumbnail *sbtiff.IFD) {
	for _, ifd := range f.IFDs {
		switch {
		case composite == nil && (sbtiff.IsComposite(ifd) || sbtiff.HasLayerTable(ifd)):
			composite = ifd
		case thumbnail == nil && sbtiff.IsThumbnail(ifd):
			thumbnail = ifd
		}
	}
	return composite, thumbnail
}

// backgroundLayer synthesizes the opaque canvas background Sketchbook
// records on the composite IFD, or nil when the file carries none.
func backgroundLayer(composite *sbtiff.IFD, width, height int) *ora.Layer {
	a, r, g, b, ok := sbtiff.Background(composite)
	if !ok || width <= 0 || height <= 0 {
		return nil
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+0] = r
		img.Pix[i+1] = g
		img.Pix[i+2] = b
		img.Pix[i+3] = a
	}

	return &ora.Layer{
		Name:        "Background",
		Opacity:     1,
		Visible:     true,
		CompositeOp: "svg:src-over",
		Image:       img,
	}
}
