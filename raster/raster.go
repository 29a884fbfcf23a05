// Package raster turns pattern and shading fills into images. A fill is
// rasterized over the intersection of the path's device bounds and the
// active clip, sampling the pattern in its own space through the inverse
// placement matrix.
package raster

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/siftdocs/pdfsift/contentstream"
	"github.com/siftdocs/pdfsift/coords"
	"github.com/siftdocs/pdfsift/geo"
	"github.com/siftdocs/pdfsift/imaging"
	"github.com/siftdocs/pdfsift/ir/semantic"
	"github.com/siftdocs/pdfsift/observability"
)

// ErrUnsupported marks a pattern the rasterizer cannot handle. Callers
// skip the fill; the rest of the page is unaffected.
var ErrUnsupported = errors.New("raster: unsupported pattern")

// Options configures rasterization.
type Options struct {
	// Interp is the interpreter configuration used to replay tiling
	// cell content and soft-mask groups.
	Interp contentstream.Config
	// MaxGridEdge caps the longer edge of the fill grid. 0 uses the
	// device bounds directly.
	MaxGridEdge int
	// SoftMaskMaxEdge caps the soft-mask grid before resampling.
	SoftMaskMaxEdge int
	Logger          observability.Logger
}

func (o Options) logger() observability.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return observability.NopLogger{}
}

// RasterizeFill rasterizes a pattern or shading fill of path under state.
// It returns the image and its device-space anchor rectangle. A nil
// image with nil error means the fill covers no visible area.
func RasterizeFill(ctx context.Context, path contentstream.Path, state contentstream.GraphicsState, fill semantic.Pattern, opts Options) (*imaging.Image, geo.Rect, error) {
	if fill == nil {
		return nil, geo.Rect{}, fmt.Errorf("%w: no pattern", ErrUnsupported)
	}
	poly := path.Flatten(state.Transform)
	bounds := poly.Bounds().Intersect(state.Clip)
	if bounds.Empty() {
		return nil, geo.Rect{}, nil
	}
	w, h := gridSize(bounds, opts.MaxGridEdge)
	if w <= 0 || h <= 0 {
		return nil, geo.Rect{}, nil
	}

	// Pattern space -> device space, then inverted for per-pixel lookup.
	toDevice := patternMatrix(fill).Multiply(state.CTM)
	inv, err := toDevice.Inverse()
	if err != nil {
		return nil, geo.Rect{}, fmt.Errorf("%w: degenerate pattern matrix", ErrUnsupported)
	}

	sample, err := newSampler(ctx, fill, state, opts)
	if err != nil {
		return nil, geo.Rect{}, err
	}

	img := &imaging.Image{Width: w, Height: h, RGB: make([]byte, w*h*3), Alpha: make([]byte, w*h)}
	fillAlpha := clampAlpha(state.FillAlpha)
	mask := softMaskSamples(ctx, state.SoftMask, bounds, w, h, opts)

	dx := bounds.Width() / float64(w)
	dy := bounds.Height() / float64(h)
	for py := 0; py < h; py++ {
		if err := ctx.Err(); err != nil {
			return nil, geo.Rect{}, err
		}
		// Device rows run bottom-up, image rows top-down.
		y := bounds.MaxY - (float64(py)+0.5)*dy
		for px := 0; px < w; px++ {
			x := bounds.MinX + (float64(px)+0.5)*dx
			i := py*w + px
			if state.ClipMask.Sample(x, y) == 0 {
				continue
			}
			if !poly.Contains(x, y, path.Rule) {
				continue
			}
			p := inv.Transform(coords.Point{X: x, Y: y})
			r, g, b, a := sample(p.X, p.Y)
			if a == 0 {
				continue
			}
			a = mulAlpha(a, fillAlpha)
			if mask != nil {
				a = mulAlpha(a, mask[i])
			}
			img.RGB[i*3] = r
			img.RGB[i*3+1] = g
			img.RGB[i*3+2] = b
			img.Alpha[i] = a
		}
	}
	return img, bounds, nil
}

// sampler evaluates the fill at a pattern-space point.
type sampler func(x, y float64) (r, g, b, a uint8)

func newSampler(ctx context.Context, fill semantic.Pattern, state contentstream.GraphicsState, opts Options) (sampler, error) {
	switch p := fill.(type) {
	case *semantic.ShadingPattern:
		if p.Shading == nil {
			return nil, fmt.Errorf("%w: pattern without shading", ErrUnsupported)
		}
		return shadingSampler(p.Shading)
	case *semantic.TilingPattern:
		return tilingSampler(ctx, p, state, opts)
	default:
		return nil, fmt.Errorf("%w: pattern type %d", ErrUnsupported, fill.PatternType())
	}
}

func shadingSampler(sh *semantic.Shading) (sampler, error) {
	if len(sh.Functions) == 0 {
		return nil, fmt.Errorf("%w: shading without functions", ErrUnsupported)
	}
	switch sh.Type {
	case 2:
		if len(sh.Coords) < 4 {
			return nil, fmt.Errorf("%w: axial shading with %d coords", ErrUnsupported, len(sh.Coords))
		}
		return axialSampler(sh), nil
	case 3:
		if len(sh.Coords) < 6 {
			return nil, fmt.Errorf("%w: radial shading with %d coords", ErrUnsupported, len(sh.Coords))
		}
		return radialSampler(sh), nil
	default:
		return nil, fmt.Errorf("%w: shading type %d", ErrUnsupported, sh.Type)
	}
}

func axialSampler(sh *semantic.Shading) sampler {
	x0, y0 := sh.Coords[0], sh.Coords[1]
	x1, y1 := sh.Coords[2], sh.Coords[3]
	dx, dy := x1-x0, y1-y0
	den := dx*dx + dy*dy
	return func(x, y float64) (uint8, uint8, uint8, uint8) {
		var s float64
		if den != 0 {
			s = ((x-x0)*dx + (y-y0)*dy) / den
		}
		s, ok := extend(s, sh.Extend)
		if !ok {
			return 0, 0, 0, 0
		}
		return shadingColor(sh, s)
	}
}

func radialSampler(sh *semantic.Shading) sampler {
	x0, y0, r0 := sh.Coords[0], sh.Coords[1], sh.Coords[2]
	x1, y1, r1 := sh.Coords[3], sh.Coords[4], sh.Coords[5]
	cdx, cdy, dr := x1-x0, y1-y0, r1-r0
	a := cdx*cdx + cdy*cdy - dr*dr
	return func(x, y float64) (uint8, uint8, uint8, uint8) {
		// Solve |p - c(s)|^2 = r(s)^2 for the interpolation parameter,
		// preferring the larger root with a nonnegative radius.
		fx, fy := x-x0, y-y0
		b := fx*cdx + fy*cdy + r0*dr
		c := fx*fx + fy*fy - r0*r0
		var s float64
		if math.Abs(a) < 1e-9 {
			if b == 0 {
				return 0, 0, 0, 0
			}
			s = c / (2 * b)
		} else {
			disc := b*b - a*c
			if disc < 0 {
				return 0, 0, 0, 0
			}
			sq := math.Sqrt(disc)
			s = (b + sq) / a
			if r0+s*dr < 0 {
				s = (b - sq) / a
				if r0+s*dr < 0 {
					return 0, 0, 0, 0
				}
			}
		}
		s, ok := extend(s, sh.Extend)
		if !ok {
			return 0, 0, 0, 0
		}
		return shadingColor(sh, s)
	}
}

// extend clamps an out-of-range parameter per the Extend flags. The
// second result is false when the point is past an unextended end.
func extend(s float64, ext [2]bool) (float64, bool) {
	if s < 0 {
		if !ext[0] {
			return 0, false
		}
		return 0, true
	}
	if s > 1 {
		if !ext[1] {
			return 0, false
		}
		return 1, true
	}
	return s, true
}

func shadingColor(sh *semantic.Shading, s float64) (uint8, uint8, uint8, uint8) {
	t := sh.Domain[0] + s*(sh.Domain[1]-sh.Domain[0])
	if sh.Domain == ([2]float64{}) {
		t = s
	}
	comps := sh.Eval(t)
	c := contentstream.Color{Space: sh.ColorSpace, Components: comps}
	r, g, b := c.RGB8()
	return r, g, b, 255
}

// gridSize fits the raster grid. maxEdge 0 falls back to the device
// extent of the bounds.
func gridSize(bounds geo.Rect, maxEdge int) (int, int) {
	if maxEdge > 0 {
		return geo.GridSize(bounds, maxEdge)
	}
	w := int(math.Ceil(bounds.Width()))
	h := int(math.Ceil(bounds.Height()))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

func patternMatrix(fill semantic.Pattern) coords.Matrix {
	switch p := fill.(type) {
	case *semantic.ShadingPattern:
		return p.Matrix
	case *semantic.TilingPattern:
		return p.Matrix
	}
	return coords.Identity()
}

func clampAlpha(a float64) uint8 {
	if a <= 0 {
		return 0
	}
	if a >= 1 {
		return 255
	}
	return uint8(a*255 + 0.5)
}

func mulAlpha(a, b uint8) uint8 {
	return uint8((int(a)*int(b) + 127) / 255)
}
