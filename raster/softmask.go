package raster

import (
	"context"
	"image"

	"golang.org/x/image/draw"

	"github.com/siftdocs/pdfsift/contentstream"
	"github.com/siftdocs/pdfsift/geo"
	"github.com/siftdocs/pdfsift/observability"
	"github.com/siftdocs/pdfsift/resources"
)

// softMaskSamples renders the active luminosity soft mask over bounds
// and resamples it to the fill grid. nil means no mask gating (fully
// opaque): no mask installed, an Alpha-subtype mask, or a mask whose
// group could not be replayed.
func softMaskSamples(ctx context.Context, sms *contentstream.SoftMaskState, bounds geo.Rect, w, h int, opts Options) []byte {
	if sms == nil || sms.Mask == nil || sms.Mask.Group == nil {
		return nil
	}
	sm := sms.Mask
	if sm.Subtype != "Luminosity" {
		opts.logger().Warn("soft mask subtype not rasterized",
			observability.String("subtype", sm.Subtype))
		return nil
	}

	group := sm.Group
	cfg := opts.Interp
	cfg.Logger = opts.logger()
	it := contentstream.New(cfg)

	state := contentstream.NewGraphicsState(bounds)
	state.CTM = group.Matrix.Multiply(sms.CTM)
	bbox := geo.Rect{}
	for _, c := range [][2]float64{
		{group.BBox.LLX, group.BBox.LLY},
		{group.BBox.URX, group.BBox.LLY},
		{group.BBox.LLX, group.BBox.URY},
		{group.BBox.URX, group.BBox.URY},
	} {
		p := state.Transform(c[0], c[1])
		if bbox == (geo.Rect{}) {
			bbox = geo.Rect{MinX: p.X, MinY: p.Y, MaxX: p.X, MaxY: p.Y}
		} else {
			bbox = bbox.ExpandTo(p)
		}
	}
	state.Clip = state.Clip.Intersect(bbox)

	scope := resources.NewScope(cfg.Env, group.Resources)
	elems, err := it.Run(ctx, group.Data, scope, state)
	if err != nil {
		opts.logger().Warn("soft mask group dropped", observability.Error("err", err))
		return nil
	}

	mw, mh := w, h
	if opts.SoftMaskMaxEdge > 0 {
		mw, mh = geo.GridSize(bounds, opts.SoftMaskMaxEdge)
		if mw <= 0 || mh <= 0 {
			mw, mh = w, h
		}
	}

	grid := make([]byte, mw*mh)
	// The mask value outside the group's painted area is the backdrop
	// luminosity, black when unset.
	if bd := backdropLuma(sm.Backdrop); bd != 0 {
		for i := range grid {
			grid[i] = bd
		}
	}

	dx := bounds.Width() / float64(mw)
	dy := bounds.Height() / float64(mh)
	for _, e := range elems {
		pe, ok := e.(*contentstream.PathElement)
		if !ok {
			continue
		}
		switch pe.Path.Op {
		case contentstream.PaintFill, contentstream.PaintFillStroke:
		default:
			continue
		}
		st := pe.State
		r, g, b := st.Fill.RGB8()
		luma := lumaByte(r, g, b)
		poly := pe.Path.Flatten(st.Transform)
		pb := poly.Bounds().Intersect(st.Clip)
		if pb.Empty() {
			continue
		}
		for py := 0; py < mh; py++ {
			y := bounds.MaxY - (float64(py)+0.5)*dy
			if y < pb.MinY || y > pb.MaxY {
				continue
			}
			for px := 0; px < mw; px++ {
				x := bounds.MinX + (float64(px)+0.5)*dx
				if x < pb.MinX || x > pb.MaxX {
					continue
				}
				if st.ClipMask.Sample(x, y) == 0 {
					continue
				}
				if poly.Contains(x, y, pe.Path.Rule) {
					grid[py*mw+px] = luma
				}
			}
		}
	}

	if mw == w && mh == h {
		return grid
	}
	src := &image.Gray{Pix: grid, Stride: mw, Rect: image.Rect(0, 0, mw, mh)}
	dst := image.NewGray(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Rect, src, src.Rect, draw.Src, nil)
	return dst.Pix
}

func backdropLuma(bd []float64) byte {
	switch len(bd) {
	case 0:
		return 0
	case 1:
		return clampAlpha(bd[0])
	case 3:
		return lumaByte(clampAlpha(bd[0]), clampAlpha(bd[1]), clampAlpha(bd[2]))
	case 4:
		r := (1 - bd[0]) * (1 - bd[3])
		g := (1 - bd[1]) * (1 - bd[3])
		b := (1 - bd[2]) * (1 - bd[3])
		return lumaByte(clampAlpha(r), clampAlpha(g), clampAlpha(b))
	}
	return 0
}

// lumaByte is the Rec. 601 luminance of an sRGB triple.
func lumaByte(r, g, b uint8) byte {
	return byte((299*int(r) + 587*int(g) + 114*int(b) + 500) / 1000)
}
