package contentstream

import (
	"github.com/siftdocs/pdfsift/fonts"
	"github.com/siftdocs/pdfsift/geo"
	"github.com/siftdocs/pdfsift/ir/semantic"
)

// Element is the closed union of parsed content elements. Every variant
// carries the graphics state active when it was emitted.
type Element interface {
	// GraphicsState returns the state snapshot at emission time.
	GraphicsState() GraphicsState
}

// PathElement is a finalized path with its paint operation.
type PathElement struct {
	Path  Path
	State GraphicsState
}

func (e *PathElement) GraphicsState() GraphicsState { return e.State }

// DeviceBounds returns the path's bounding box in device space.
func (e *PathElement) DeviceBounds() geo.Rect {
	st := e.State
	return e.Path.Flatten(st.Transform).Bounds()
}

// TextElement is one decoded show-text run.
type TextElement struct {
	// Text is the Unicode decoding of the run, best effort.
	Text string
	// X, Y anchor the run's baseline origin in device space.
	X, Y float64
	// Width is the run's advance in device units.
	Width float64
	// FontSize is the raw Tf size; EffectiveFontSize folds in the
	// composite Y scale of the text and transformation matrices.
	FontSize          float64
	EffectiveFontSize float64
	Font              *fonts.FontInfo
	FontName          string
	RenderMode        TextRenderMode
	Color             Color
	State             GraphicsState
}

func (e *TextElement) GraphicsState() GraphicsState { return e.State }

// ImageElement references an image XObject placed by a Do operator (or a
// normalized inline image). Decoding to RGB happens downstream.
type ImageElement struct {
	Name  string
	Image *semantic.XObject
	State GraphicsState
}

func (e *ImageElement) GraphicsState() GraphicsState { return e.State }

// DeviceBounds returns the placed image's device-space bounds: the unit
// square mapped through the CTM.
func (e *ImageElement) DeviceBounds() geo.Rect {
	st := e.State
	r := geo.Rect{}
	for _, c := range [][2]float64{{0, 0}, {1, 0}, {0, 1}, {1, 1}} {
		p := st.Transform(c[0], c[1])
		if r == (geo.Rect{}) {
			r = geo.Rect{MinX: p.X, MinY: p.Y, MaxX: p.X, MaxY: p.Y}
		} else {
			r = r.ExpandTo(p)
		}
	}
	return r
}

// RasterImageElement is a rasterized pattern or shading fill composited
// with path coverage, produced downstream of interpretation.
type RasterImageElement struct {
	Width  int
	Height int
	RGB    []byte
	Alpha  []byte
	// Bounds anchors the raster in device space.
	Bounds geo.Rect
	State  GraphicsState
}

func (e *RasterImageElement) GraphicsState() GraphicsState { return e.State }
