package contentstream

import "github.com/siftdocs/pdfsift/geo"

// TextRenderMode matches PDF text rendering modes set via Tr operator.
type TextRenderMode int

const (
	TextFill TextRenderMode = iota
	TextStroke
	TextFillStroke
	TextInvisible
	TextFillClip
	TextStrokeClip
	TextFillStrokeClip
	TextClip
)

// LineCap represents the line cap style (J operator).
type LineCap int

const (
	LineCapButt LineCap = iota
	LineCapRound
	LineCapSquare
)

// LineJoin represents the line join style (j operator).
type LineJoin int

const (
	LineJoinMiter LineJoin = iota
	LineJoinRound
	LineJoinBevel
)

// PathOpKind enumerates path construction operations.
type PathOpKind int

const (
	PathMoveTo PathOpKind = iota
	PathLineTo
	// PathCurveTo is a full cubic with two control points (c). The v and
	// y variants are normalized to it during construction.
	PathCurveTo
	PathClose
)

// PathOp is one path construction step in user space. CurveTo uses all
// three points; MoveTo/LineTo use only P; Close uses none.
type PathOp struct {
	Kind   PathOpKind
	C1, C2 geo.Point
	P      geo.Point
}

// PaintOp is what a path-painting operator did with the finished path.
type PaintOp int

const (
	PaintNone PaintOp = iota
	PaintFill
	PaintStroke
	PaintFillStroke
	PaintClip
)

// Path is a finished path with its painting verdict.
type Path struct {
	Ops  []PathOp
	Op   PaintOp
	Rule geo.FillRule
}

// Complexity counts construction operations, the measure the
// minimum-path-complexity option filters on.
func (p *Path) Complexity() int { return len(p.Ops) }

// Flatten converts the path to device-space polygons under ctm, splitting
// on MoveTo and flattening curves.
func (p *Path) Flatten(transform func(x, y float64) geo.Point) *geo.Polygon {
	poly := &geo.Polygon{}
	var contour []geo.Point
	var cur geo.Point
	for _, op := range p.Ops {
		switch op.Kind {
		case PathMoveTo:
			poly.Add(contour)
			contour = nil
			cur = transform(op.P.X, op.P.Y)
			contour = append(contour, cur)
		case PathLineTo:
			cur = transform(op.P.X, op.P.Y)
			contour = append(contour, cur)
		case PathCurveTo:
			c1 := transform(op.C1.X, op.C1.Y)
			c2 := transform(op.C2.X, op.C2.Y)
			end := transform(op.P.X, op.P.Y)
			contour = append(contour, geo.FlattenCubic(cur, c1, c2, end, 0.5)...)
			cur = end
		case PathClose:
			poly.Add(contour)
			contour = nil
		}
	}
	poly.Add(contour)
	return poly
}
