package raster

import (
	"context"
	"fmt"
	"math"

	"github.com/siftdocs/pdfsift/contentstream"
	"github.com/siftdocs/pdfsift/geo"
	"github.com/siftdocs/pdfsift/ir/semantic"
	"github.com/siftdocs/pdfsift/resources"
)

// cellShape is one pre-flattened fill from a tiling cell, hit-tested in
// pattern space during sampling.
type cellShape struct {
	poly    *geo.Polygon
	rule    geo.FillRule
	r, g, b uint8
}

// tilingSampler replays the pattern cell once and hit-tests its shapes
// per pixel. Cells are restricted to plain path fills; anything else
// aborts this pattern's rasterization.
func tilingSampler(ctx context.Context, pat *semantic.TilingPattern, state contentstream.GraphicsState, opts Options) (sampler, error) {
	shapes, err := prerasterCell(ctx, pat, opts)
	if err != nil {
		return nil, err
	}

	// Uncolored patterns take the color selected alongside the pattern.
	var ur, ug, ub uint8
	uncolored := pat.PaintType == 2
	if uncolored {
		ur, ug, ub = state.Fill.RGB8()
	}

	xStep, yStep := pat.XStep, pat.YStep
	bbox := pat.BBox
	if xStep == 0 {
		xStep = bbox.URX - bbox.LLX
	}
	if yStep == 0 {
		yStep = bbox.URY - bbox.LLY
	}
	if xStep == 0 || yStep == 0 {
		return nil, fmt.Errorf("%w: tiling pattern with zero step", ErrUnsupported)
	}

	return func(x, y float64) (uint8, uint8, uint8, uint8) {
		// Reduce the point into the base tile by step floor-division.
		u := x - xStep*math.Floor((x-bbox.LLX)/xStep)
		v := y - yStep*math.Floor((y-bbox.LLY)/yStep)
		var hit *cellShape
		for i := range shapes {
			if shapes[i].poly.Contains(u, v, shapes[i].rule) {
				hit = &shapes[i]
			}
		}
		if hit == nil {
			return 0, 0, 0, 0
		}
		if uncolored {
			return ur, ug, ub, 255
		}
		return hit.r, hit.g, hit.b, 255
	}, nil
}

func prerasterCell(ctx context.Context, pat *semantic.TilingPattern, opts Options) ([]cellShape, error) {
	cfg := opts.Interp
	cfg.Logger = opts.logger()
	it := contentstream.New(cfg)

	scope := resources.NewScope(cfg.Env, pat.Resources)
	bounds := geo.Rect{MinX: pat.BBox.LLX, MinY: pat.BBox.LLY, MaxX: pat.BBox.URX, MaxY: pat.BBox.URY}
	if bounds.Empty() {
		return nil, fmt.Errorf("%w: tiling pattern with empty cell", ErrUnsupported)
	}
	elems, err := it.Run(ctx, pat.Content, scope, contentstream.NewGraphicsState(bounds))
	if err != nil {
		return nil, err
	}

	var shapes []cellShape
	for _, e := range elems {
		pe, ok := e.(*contentstream.PathElement)
		if !ok {
			return nil, fmt.Errorf("%w: tiling cell uses non-path content", ErrUnsupported)
		}
		switch pe.Path.Op {
		case contentstream.PaintFill, contentstream.PaintFillStroke:
		case contentstream.PaintStroke:
			// Strokes would need width expansion; bail on the pattern.
			return nil, fmt.Errorf("%w: tiling cell strokes a path", ErrUnsupported)
		default:
			continue
		}
		st := pe.State
		if st.FillPattern != nil || !plainCellSpace(st.Fill.Space) {
			return nil, fmt.Errorf("%w: tiling cell fill color space", ErrUnsupported)
		}
		r, g, b := st.Fill.RGB8()
		shapes = append(shapes, cellShape{
			poly: pe.Path.Flatten(st.Transform),
			rule: pe.Path.Rule,
			r:    r, g: g, b: b,
		})
	}
	if len(shapes) == 0 {
		return nil, fmt.Errorf("%w: tiling cell paints nothing", ErrUnsupported)
	}
	return shapes, nil
}

// plainCellSpace reports whether a cell fill color space is one the
// sampler can evaluate directly.
func plainCellSpace(cs semantic.ColorSpace) bool {
	switch cs.(type) {
	case nil:
		return true
	case semantic.DeviceColorSpace:
		return true
	case *semantic.ICCBasedColorSpace:
		return true
	}
	return false
}
