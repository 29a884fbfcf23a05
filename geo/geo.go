// Package geo holds the plane geometry the interpreter and rasterizer
// share: rectangles, Bezier flattening, polygon membership under both
// fill rules, and bounded coverage grids.
package geo

import "math"

// Point is a position in user or device space.
type Point struct{ X, Y float64 }

// Rect is an axis-aligned rectangle. The zero value is treated as empty.
type Rect struct {
	MinX, MinY, MaxX, MaxY float64
}

// Empty reports whether the rectangle covers no area.
func (r Rect) Empty() bool { return r.MaxX <= r.MinX || r.MaxY <= r.MinY }

// Width returns the horizontal extent.
func (r Rect) Width() float64 { return r.MaxX - r.MinX }

// Height returns the vertical extent.
func (r Rect) Height() float64 { return r.MaxY - r.MinY }

// Intersect returns the overlap of two rectangles.
func (r Rect) Intersect(o Rect) Rect {
	out := Rect{
		MinX: math.Max(r.MinX, o.MinX),
		MinY: math.Max(r.MinY, o.MinY),
		MaxX: math.Min(r.MaxX, o.MaxX),
		MaxY: math.Min(r.MaxY, o.MaxY),
	}
	if out.Empty() {
		return Rect{}
	}
	return out
}

// Union returns the smallest rectangle covering both.
func (r Rect) Union(o Rect) Rect {
	if r.Empty() {
		return o
	}
	if o.Empty() {
		return r
	}
	return Rect{
		MinX: math.Min(r.MinX, o.MinX),
		MinY: math.Min(r.MinY, o.MinY),
		MaxX: math.Max(r.MaxX, o.MaxX),
		MaxY: math.Max(r.MaxY, o.MaxY),
	}
}

// Contains reports whether the point lies inside the rectangle.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.MinX && x <= r.MaxX && y >= r.MinY && y <= r.MaxY
}

// ExpandTo grows the rectangle to cover a point.
func (r Rect) ExpandTo(p Point) Rect {
	if r.Empty() && r.MinX == 0 && r.MaxX == 0 && r.MinY == 0 && r.MaxY == 0 {
		return Rect{MinX: p.X, MinY: p.Y, MaxX: p.X, MaxY: p.Y}
	}
	return Rect{
		MinX: math.Min(r.MinX, p.X),
		MinY: math.Min(r.MinY, p.Y),
		MaxX: math.Max(r.MaxX, p.X),
		MaxY: math.Max(r.MaxY, p.Y),
	}
}

// FillRule selects the path membership test.
type FillRule int

const (
	NonZero FillRule = iota
	EvenOdd
)

// Polygon is a flattened path: closed contours of straight edges in one
// coordinate space.
type Polygon struct {
	Contours [][]Point
}

// Add appends a contour. Contours with fewer than three points cannot
// enclose area and are dropped.
func (p *Polygon) Add(contour []Point) {
	if len(contour) >= 3 {
		p.Contours = append(p.Contours, contour)
	}
}

// Bounds returns the bounding rectangle of all contours.
func (p *Polygon) Bounds() Rect {
	first := true
	var r Rect
	for _, c := range p.Contours {
		for _, pt := range c {
			if first {
				r = Rect{MinX: pt.X, MinY: pt.Y, MaxX: pt.X, MaxY: pt.Y}
				first = false
				continue
			}
			r = r.ExpandTo(pt)
		}
	}
	return r
}

// Contains tests point membership: signed winding number for NonZero,
// crossing parity for EvenOdd. Contours are implicitly closed.
func (p *Polygon) Contains(x, y float64, rule FillRule) bool {
	winding := 0
	crossings := 0
	for _, c := range p.Contours {
		n := len(c)
		for i := 0; i < n; i++ {
			a := c[i]
			b := c[(i+1)%n]
			if a.Y <= y {
				if b.Y > y && isLeft(a, b, x, y) > 0 {
					winding++
					crossings++
				}
			} else {
				if b.Y <= y && isLeft(a, b, x, y) < 0 {
					winding--
					crossings++
				}
			}
		}
	}
	if rule == EvenOdd {
		return crossings%2 == 1
	}
	return winding != 0
}

// isLeft is positive when the point lies left of the directed edge a->b.
func isLeft(a, b Point, x, y float64) float64 {
	return (b.X-a.X)*(y-a.Y) - (x-a.X)*(b.Y-a.Y)
}

// FlattenCubic approximates a cubic Bezier with a polyline, excluding the
// start point. The segment count follows the control polygon length.
func FlattenCubic(p0, c1, c2, p1 Point, tol float64) []Point {
	if tol <= 0 {
		tol = 0.5
	}
	chord := dist(p0, c1) + dist(c1, c2) + dist(c2, p1)
	n := int(math.Ceil(chord / tol))
	if n < 4 {
		n = 4
	}
	if n > 64 {
		n = 64
	}
	out := make([]Point, 0, n)
	for i := 1; i <= n; i++ {
		t := float64(i) / float64(n)
		mt := 1 - t
		a := mt * mt * mt
		b := 3 * mt * mt * t
		c := 3 * mt * t * t
		d := t * t * t
		out = append(out, Point{
			X: a*p0.X + b*c1.X + c*c2.X + d*p1.X,
			Y: a*p0.Y + b*c1.Y + c*c2.Y + d*p1.Y,
		})
	}
	return out
}

func dist(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// CoverageMask is a bounded grid of 0/255 coverage samples over Rect.
type CoverageMask struct {
	Rect Rect
	W, H int
	Bits []byte
}

// Sample returns the coverage at a point inside Rect.
func (m *CoverageMask) Sample(x, y float64) byte {
	if m == nil || m.Rect.Empty() {
		return 255
	}
	px := int((x - m.Rect.MinX) / m.Rect.Width() * float64(m.W))
	py := int((y - m.Rect.MinY) / m.Rect.Height() * float64(m.H))
	if px < 0 || py < 0 || px >= m.W || py >= m.H {
		return 0
	}
	return m.Bits[py*m.W+px]
}

// Rasterize samples polygon membership at the pixel centers of a w by h
// grid over bounds. Grid rows run bottom-up, matching device space.
func Rasterize(poly *Polygon, bounds Rect, w, h int, rule FillRule) *CoverageMask {
	if w <= 0 || h <= 0 || bounds.Empty() {
		return nil
	}
	m := &CoverageMask{Rect: bounds, W: w, H: h, Bits: make([]byte, w*h)}
	dx := bounds.Width() / float64(w)
	dy := bounds.Height() / float64(h)
	for py := 0; py < h; py++ {
		y := bounds.MinY + (float64(py)+0.5)*dy
		for px := 0; px < w; px++ {
			x := bounds.MinX + (float64(px)+0.5)*dx
			if poly.Contains(x, y, rule) {
				m.Bits[py*w+px] = 255
			}
		}
	}
	return m
}

// GridSize fits a raster grid to bounds with the longer edge capped at
// maxEdge, preserving aspect ratio. Returns zeros for empty input.
func GridSize(bounds Rect, maxEdge int) (w, h int) {
	if bounds.Empty() || maxEdge <= 0 {
		return 0, 0
	}
	bw, bh := bounds.Width(), bounds.Height()
	if bw >= bh {
		w = maxEdge
		h = int(math.Ceil(float64(maxEdge) * bh / bw))
	} else {
		h = maxEdge
		w = int(math.Ceil(float64(maxEdge) * bw / bh))
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	// Do not upscale tiny areas past their extent in device units.
	if bw >= 1 && w > int(math.Ceil(bw)) {
		w = int(math.Ceil(bw))
	}
	if bh >= 1 && h > int(math.Ceil(bh)) {
		h = int(math.Ceil(bh))
	}
	return w, h
}
