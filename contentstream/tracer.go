package contentstream

import (
	"context"

	"github.com/siftdocs/pdfsift/geo"
	"github.com/siftdocs/pdfsift/resources"
)

// ElementBBox pairs an emitted element with its device-space bounds.
// Elements without a geometric extent (invisible text, zero-width runs)
// report an empty rect.
type ElementBBox struct {
	Index   int
	Element Element
	Rect    geo.Rect
}

// Tracer runs content virtually and reports per-element bounding boxes,
// for callers that need layout geometry without the elements themselves.
type Tracer struct {
	it *Interpreter
}

func NewTracer(cfg Config) *Tracer {
	return &Tracer{it: New(cfg)}
}

// Trace interprets content and returns the device bounds of every
// element produced.
func (t *Tracer) Trace(ctx context.Context, content []byte, scope resources.Scope, state GraphicsState) ([]ElementBBox, error) {
	elems, err := t.it.Run(ctx, content, scope, state)
	if err != nil {
		return nil, err
	}
	out := make([]ElementBBox, 0, len(elems))
	for i, e := range elems {
		out = append(out, ElementBBox{Index: i, Element: e, Rect: elementBounds(e)})
	}
	return out, nil
}

func elementBounds(e Element) geo.Rect {
	switch v := e.(type) {
	case *PathElement:
		return v.DeviceBounds()
	case *ImageElement:
		return v.DeviceBounds()
	case *RasterImageElement:
		return v.Bounds
	case *TextElement:
		if v.Width == 0 || v.RenderMode == TextInvisible {
			return geo.Rect{}
		}
		h := v.EffectiveFontSize
		asc, desc := 0.8, -0.2
		if v.Font != nil && v.Font.Ascent != 0 {
			asc, desc = v.Font.Ascent/1000, v.Font.Descent/1000
		}
		r := geo.Rect{MinX: v.X, MinY: v.Y + desc*h, MaxX: v.X + v.Width, MaxY: v.Y + asc*h}
		if r.MinX > r.MaxX {
			r.MinX, r.MaxX = r.MaxX, r.MinX
		}
		return r
	}
	return geo.Rect{}
}
