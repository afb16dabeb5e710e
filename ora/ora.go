// Package ora writes Open Raster (.ora) archives.
//
// An Open Raster file is a zip archive with a fixed shape: an uncompressed
// "mimetype" entry first, a stack.xml document describing the layer stack,
// a merged composite PNG for viewers that do not understand layers, a
// thumbnail, and one PNG per layer referenced from stack.xml by relative
// path. See https://www.openraster.org for the format specification.
//
// The writer performs a one-way translation: it receives a fully
// materialized, order-stable Stack and emits the archive. It never
// reorders or filters layers; hidden layers are written and marked
// hidden, as the format expects.
package ora

import (
	"archive/zip"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/klauspost/compress/flate"
)

// Writer errors
var (
	// ErrEmptyStack is returned for a stack without layers or without
	// canvas dimensions.
	ErrEmptyStack = errors.New("ora: empty layer stack")

	// ErrEncode is returned when a layer's pixel buffer cannot be
	// encoded, e.g. a nil or zero-dimension image.
	ErrEncode = errors.New("ora: cannot encode layer image")
)

// Layer is one entry of the stack, bottom-up position implied by its
// index in Stack.Layers.
type Layer struct {
	// Name is the display name recorded in stack.xml.
	Name string

	// Opacity is in [0, 1].
	Opacity float64

	// Visible controls the stack.xml visibility attribute. Hidden
	// layers are still written to the archive.
	Visible bool

	// CompositeOp is the Open Raster composite-op identifier
	// (e.g. "svg:src-over"). Empty means source-over.
	CompositeOp string

	// X, Y position the layer on the canvas. Negative values are legal
	// (the layer extends past the canvas) and are recorded verbatim.
	X, Y int

	// Image is the layer's straight-alpha pixel buffer.
	Image *image.NRGBA
}

// Stack is a fully decoded layer stack ready to be written. Layers are
// ordered bottom first; the writer preserves that order end-to-end.
type Stack struct {
	// Width, Height are the canvas dimensions in pixels.
	Width, Height int

	// Layers is the stack in bottom-first order.
	Layers []Layer

	// Thumbnail, when set, is written as the archive thumbnail. When
	// nil the writer derives one from the merged composite.
	Thumbnail *image.NRGBA
}

const (
	mimetype        = "image/openraster"
	thumbnailMaxDim = 256
)

// Write assembles the archive into w. The stack is validated before the
// first byte reaches the sink, so a failed validation leaves nothing
// behind; callers that write to durable storage should still stage into a
// temporary target and publish on success, since an io error mid-archive
// cannot be undone here.
func Write(w io.Writer, stack *Stack) error {
	if err := validate(stack); err != nil {
		return err
	}

	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.DefaultCompression)
	})

	// The mimetype entry must come first and must be stored uncompressed
	// so format sniffers can read it from the raw bytes.
	mt, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		return fmt.Errorf("ora: write mimetype: %w", err)
	}
	if _, err := mt.Write([]byte(mimetype)); err != nil {
		return fmt.Errorf("ora: write mimetype: %w", err)
	}

	if err := writeStackXML(zw, stack); err != nil {
		return err
	}

	merged := Merge(stack)
	if err := writePNG(zw, "mergedimage.png", merged); err != nil {
		return err
	}

	for i := range stack.Layers {
		name := layerPath(i)
		if err := writePNG(zw, name, stack.Layers[i].Image); err != nil {
			return err
		}
	}

	thumb := stack.Thumbnail
	if thumb == nil {
		thumb = merged
	}
	if err := writePNG(zw, "Thumbnails/thumbnail.png", Thumbnail(thumb, thumbnailMaxDim)); err != nil {
		return err
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("ora: finish archive: %w", err)
	}
	return nil
}

// validate checks the whole stack before anything is emitted.
func validate(stack *Stack) error {
	if stack == nil || stack.Width <= 0 || stack.Height <= 0 || len(stack.Layers) == 0 {
		return ErrEmptyStack
	}
	for i := range stack.Layers {
		img := stack.Layers[i].Image
		if img == nil || img.Rect.Dx() <= 0 || img.Rect.Dy() <= 0 {
			return fmt.Errorf("%w: layer %d (%q)", ErrEncode, i, stack.Layers[i].Name)
		}
	}
	return nil
}

// layerPath returns the archive path of the layer at the given bottom-up
// stack index.
func layerPath(i int) string {
	return fmt.Sprintf("data/layer%d.png", i)
}

// writePNG encodes img as a deterministic lossless PNG entry.
func writePNG(zw *zip.Writer, name string, img *image.NRGBA) error {
	entry, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("ora: create %s: %w", name, err)
	}
	enc := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := enc.Encode(entry, img); err != nil {
		return fmt.Errorf("ora: encode %s: %w", name, err)
	}
	return nil
}
