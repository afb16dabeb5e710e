package ora

import (
	"image"

	"golang.org/x/image/draw"
)

// Merge composites all visible layers bottom to top into a canvas-sized
// straight-alpha buffer using the standard alpha-over operator, honoring
// each layer's opacity and canvas offset.
//
// Only normal-mode (source-over) compositing is exact. Non-normal blend
// modes are approximated as source-over here; their composite-op is still
// recorded faithfully in stack.xml, so editors that understand the mode
// re-composite correctly from the per-layer images.
func Merge(stack *Stack) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, stack.Width, stack.Height))

	for i := range stack.Layers {
		l := &stack.Layers[i]
		if !l.Visible || l.Opacity <= 0 {
			continue
		}
		drawOver(dst, l.Image, l.X, l.Y, l.Opacity)
	}

	return dst
}

// drawOver applies src over dst at the given canvas offset. The source
// region falling outside the canvas is clipped from the composite only;
// the layer's own image and recorded offsets stay untouched.
func drawOver(dst *image.NRGBA, src *image.NRGBA, offX, offY int, opacity float64) {
	bounds := src.Rect
	for sy := bounds.Min.Y; sy < bounds.Max.Y; sy++ {
		dy := offY + sy - bounds.Min.Y
		if dy < 0 || dy >= dst.Rect.Max.Y {
			continue
		}
		for sx := bounds.Min.X; sx < bounds.Max.X; sx++ {
			dx := offX + sx - bounds.Min.X
			if dx < 0 || dx >= dst.Rect.Max.X {
				continue
			}

			si := src.PixOffset(sx, sy)
			sa := float64(src.Pix[si+3]) / 255 * opacity
			if sa <= 0 {
				continue
			}

			di := dst.PixOffset(dx, dy)
			da := float64(dst.Pix[di+3]) / 255

			// Straight-alpha over: the output color is the coverage
			// weighted average of source and destination.
			oa := sa + da*(1-sa)
			if oa <= 0 {
				continue
			}
			for c := 0; c < 3; c++ {
				sc := float64(src.Pix[si+c])
				dc := float64(dst.Pix[di+c])
				dst.Pix[di+c] = clamp255((sc*sa + dc*da*(1-sa)) / oa)
			}
			dst.Pix[di+3] = clamp255(oa * 255)
		}
	}
}

func clamp255(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// Thumbnail scales img to fit within maxDim on both axes, preserving the
// aspect ratio. Images already small enough are returned as is.
func Thumbnail(img *image.NRGBA, maxDim int) *image.NRGBA {
	w := img.Rect.Dx()
	h := img.Rect.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}

	scale := float64(maxDim) / float64(w)
	if h > w {
		scale = float64(maxDim) / float64(h)
	}
	tw := int(float64(w) * scale)
	th := int(float64(h) * scale)
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}

	dst := image.NewNRGBA(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(dst, dst.Rect, img, img.Rect, draw.Src, nil)
	return dst
}
