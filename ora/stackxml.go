package ora

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"strconv"
)

// stack.xml document model. Attribute names and the top-first layer order
// follow the Open Raster specification.
type xmlImage struct {
	XMLName xml.Name `xml:"image"`
	Version string   `xml:"version,attr"`
	W       int      `xml:"w,attr"`
	H       int      `xml:"h,attr"`
	XRes    int      `xml:"xres,attr"`
	YRes    int      `xml:"yres,attr"`
	Stack   xmlStack `xml:"stack"`
}

type xmlStack struct {
	Layers []xmlLayer `xml:"layer"`
}

type xmlLayer struct {
	Name        string `xml:"name,attr"`
	Src         string `xml:"src,attr"`
	X           int    `xml:"x,attr"`
	Y           int    `xml:"y,attr"`
	Opacity     string `xml:"opacity,attr"`
	Visibility  string `xml:"visibility,attr"`
	CompositeOp string `xml:"composite-op,attr"`
}

const oraVersion = "0.0.3"

// buildStackXML mirrors the stack into the document model. stack.xml
// lists layers top first while Stack.Layers is bottom first, so the walk
// runs in reverse; the count and relative order are otherwise untouched.
func buildStackXML(stack *Stack) *xmlImage {
	doc := &xmlImage{
		Version: oraVersion,
		W:       stack.Width,
		H:       stack.Height,
		XRes:    72,
		YRes:    72,
	}

	for i := len(stack.Layers) - 1; i >= 0; i-- {
		l := &stack.Layers[i]

		visibility := "visible"
		if !l.Visible {
			visibility = "hidden"
		}
		op := l.CompositeOp
		if op == "" {
			op = "svg:src-over"
		}

		doc.Stack.Layers = append(doc.Stack.Layers, xmlLayer{
			Name:        l.Name,
			Src:         layerPath(i),
			X:           l.X,
			Y:           l.Y,
			Opacity:     formatOpacity(l.Opacity),
			Visibility:  visibility,
			CompositeOp: op,
		})
	}

	return doc
}

// formatOpacity renders an opacity with fixed precision so output is
// deterministic across runs.
func formatOpacity(v float64) string {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// writeStackXML emits the stack.xml archive entry.
func writeStackXML(zw *zip.Writer, stack *Stack) error {
	entry, err := zw.Create("stack.xml")
	if err != nil {
		return fmt.Errorf("ora: create stack.xml: %w", err)
	}

	if _, err := entry.Write([]byte(xml.Header)); err != nil {
		return fmt.Errorf("ora: write stack.xml: %w", err)
	}
	enc := xml.NewEncoder(entry)
	enc.Indent("", "  ")
	if err := enc.Encode(buildStackXML(stack)); err != nil {
		return fmt.Errorf("ora: write stack.xml: %w", err)
	}
	return nil
}
