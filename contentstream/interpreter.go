// Package contentstream interprets page content: a stack machine over the
// operator stream that tracks the full graphics state and emits typed
// elements for paths, text runs and placed images. Form XObjects and
// Type 3 glyphs are executed recursively against merged resource scopes;
// inline images are normalized away before interpretation.
package contentstream

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/siftdocs/pdfsift/coords"
	"github.com/siftdocs/pdfsift/filters"
	"github.com/siftdocs/pdfsift/fonts"
	"github.com/siftdocs/pdfsift/geo"
	"github.com/siftdocs/pdfsift/ir/raw"
	"github.com/siftdocs/pdfsift/ir/semantic"
	"github.com/siftdocs/pdfsift/observability"
	"github.com/siftdocs/pdfsift/resources"
	"github.com/siftdocs/pdfsift/scanner"
	"github.com/siftdocs/pdfsift/security"
)

// Config wires the interpreter's collaborators.
type Config struct {
	Env      semantic.Env
	Pipeline *filters.Pipeline
	Fonts    *fonts.Cache
	Limits   security.Limits
	Logger   observability.Logger

	// MaxFormDepth bounds form XObject and Type 3 glyph nesting.
	// Zero selects the default of 16.
	MaxFormDepth int
	// ClipMaskMaxSize enables per-pixel clip masks when positive: the
	// longer edge of the coverage grid rasterized for each clip path.
	// Zero keeps clipping to bounding boxes only.
	ClipMaskMaxSize int
}

// Interpreter executes content streams. It is stateless across Run calls
// and safe for concurrent use.
type Interpreter struct {
	cfg Config
	log observability.Logger
}

// New builds an interpreter. Missing collaborators get defaults.
func New(cfg Config) *Interpreter {
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger{}
	}
	if cfg.Limits == (security.Limits{}) {
		cfg.Limits = security.DefaultLimits()
	}
	if cfg.Pipeline == nil {
		cfg.Pipeline = filters.DefaultPipeline(filters.Config{Limits: filters.Limits{
			MaxDecompressedSize: cfg.Limits.MaxDecompressedSize,
			MaxDecodeTime:       cfg.Limits.MaxDecodeTime,
		}})
	}
	if cfg.Fonts == nil {
		cfg.Fonts = fonts.NewCache()
	}
	if cfg.MaxFormDepth <= 0 {
		cfg.MaxFormDepth = 16
	}
	return &Interpreter{cfg: cfg, log: cfg.Logger}
}

// Run interprets one page's content against scope, starting from state.
// Malformed operators are skipped; the only errors returned are context
// cancellation.
func (it *Interpreter) Run(ctx context.Context, content []byte, scope resources.Scope, state GraphicsState) ([]Element, error) {
	var out []Element
	st := state.Clone()
	seq := 0
	active := make(map[raw.ObjectRef]bool)
	err := it.run(ctx, content, scope, &st, 0, active, &seq, &out)
	return out, err
}

func (it *Interpreter) run(ctx context.Context, content []byte, scope resources.Scope, st *GraphicsState, depth int, active map[raw.ObjectRef]bool, seq *int, out *[]Element) error {
	content, scope = it.normalizeInlineImages(ctx, content, scope, seq)
	f := &frame{
		it:     it,
		ctx:    ctx,
		scope:  scope,
		st:     st,
		depth:  depth,
		active: active,
		seq:    seq,
		out:    out,
		tm:     coords.Identity(),
		tlm:    coords.Identity(),
	}
	sc := scanner.New(bytes.NewReader(content), scanner.Config{
		MaxStringLength: it.cfg.Limits.MaxStringLength,
		MaxInlineImage:  it.cfg.Limits.MaxStreamLength,
	})
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		tok, err := sc.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			it.log.Warn("content scan aborted", observability.Error("err", err))
			break
		}
		if tok.Type == scanner.TokenKeyword {
			f.dispatch(tok.Str)
			f.stack = f.stack[:0]
			continue
		}
		obj, err := objectFromToken(sc, tok, 0)
		if err != nil {
			f.stack = f.stack[:0]
			continue
		}
		if len(f.stack) < maxOperands {
			f.stack = append(f.stack, obj)
		}
	}
	return ctx.Err()
}

const maxOperands = 128

// frame is the mutable interpretation state for one content stream.
type frame struct {
	it     *Interpreter
	ctx    context.Context
	scope  resources.Scope
	st     *GraphicsState
	depth  int
	active map[raw.ObjectRef]bool
	seq    *int
	out    *[]Element

	stack   []raw.Object
	gsStack []GraphicsState

	pathOps     []PathOp
	cur         geo.Point
	start       geo.Point
	clipPending bool
	clipRule    geo.FillRule

	tm  coords.Matrix
	tlm coords.Matrix
}

func (f *frame) dispatch(op string) {
	switch op {
	// Graphics state.
	case "q":
		f.gsStack = append(f.gsStack, f.st.Clone())
	case "Q":
		if n := len(f.gsStack); n > 0 {
			*f.st = f.gsStack[n-1]
			f.gsStack = f.gsStack[:n-1]
		}
	case "cm":
		if m, ok := f.matrixOperands(); ok {
			f.st.CTM = m.Multiply(f.st.CTM)
		}
	case "w":
		if v, ok := f.floats(1); ok {
			f.st.LineWidth = v[0]
		}
	case "J":
		if v, ok := f.floats(1); ok {
			f.st.LineCap = LineCap(int(v[0]))
		}
	case "j":
		if v, ok := f.floats(1); ok {
			f.st.LineJoin = LineJoin(int(v[0]))
		}
	case "M":
		if v, ok := f.floats(1); ok {
			f.st.MiterLimit = v[0]
		}
	case "d":
		f.opDash()
	case "ri", "i":
		// Rendering intent and flatness do not affect extraction.
	case "gs":
		f.opExtGState()

	// Path construction.
	case "m":
		if v, ok := f.floats(2); ok {
			f.cur = geo.Point{X: v[0], Y: v[1]}
			f.start = f.cur
			f.pathOps = append(f.pathOps, PathOp{Kind: PathMoveTo, P: f.cur})
		}
	case "l":
		if v, ok := f.floats(2); ok {
			f.cur = geo.Point{X: v[0], Y: v[1]}
			f.pathOps = append(f.pathOps, PathOp{Kind: PathLineTo, P: f.cur})
		}
	case "c":
		if v, ok := f.floats(6); ok {
			f.pathOps = append(f.pathOps, PathOp{
				Kind: PathCurveTo,
				C1:   geo.Point{X: v[0], Y: v[1]},
				C2:   geo.Point{X: v[2], Y: v[3]},
				P:    geo.Point{X: v[4], Y: v[5]},
			})
			f.cur = geo.Point{X: v[4], Y: v[5]}
		}
	case "v":
		if v, ok := f.floats(4); ok {
			f.pathOps = append(f.pathOps, PathOp{
				Kind: PathCurveTo,
				C1:   f.cur,
				C2:   geo.Point{X: v[0], Y: v[1]},
				P:    geo.Point{X: v[2], Y: v[3]},
			})
			f.cur = geo.Point{X: v[2], Y: v[3]}
		}
	case "y":
		if v, ok := f.floats(4); ok {
			end := geo.Point{X: v[2], Y: v[3]}
			f.pathOps = append(f.pathOps, PathOp{
				Kind: PathCurveTo,
				C1:   geo.Point{X: v[0], Y: v[1]},
				C2:   end,
				P:    end,
			})
			f.cur = end
		}
	case "h":
		f.pathOps = append(f.pathOps, PathOp{Kind: PathClose})
		f.cur = f.start
	case "re":
		if v, ok := f.floats(4); ok {
			x, y, w, h := v[0], v[1], v[2], v[3]
			f.pathOps = append(f.pathOps,
				PathOp{Kind: PathMoveTo, P: geo.Point{X: x, Y: y}},
				PathOp{Kind: PathLineTo, P: geo.Point{X: x + w, Y: y}},
				PathOp{Kind: PathLineTo, P: geo.Point{X: x + w, Y: y + h}},
				PathOp{Kind: PathLineTo, P: geo.Point{X: x, Y: y + h}},
				PathOp{Kind: PathClose},
			)
			f.cur = geo.Point{X: x, Y: y}
			f.start = f.cur
		}

	// Path painting.
	case "S":
		f.endPath(PaintStroke, geo.NonZero, false)
	case "s":
		f.endPath(PaintStroke, geo.NonZero, true)
	case "f", "F":
		f.endPath(PaintFill, geo.NonZero, false)
	case "f*":
		f.endPath(PaintFill, geo.EvenOdd, false)
	case "B":
		f.endPath(PaintFillStroke, geo.NonZero, false)
	case "B*":
		f.endPath(PaintFillStroke, geo.EvenOdd, false)
	case "b":
		f.endPath(PaintFillStroke, geo.NonZero, true)
	case "b*":
		f.endPath(PaintFillStroke, geo.EvenOdd, true)
	case "n":
		f.endPath(PaintNone, geo.NonZero, false)
	case "W":
		f.clipPending = true
		f.clipRule = geo.NonZero
	case "W*":
		f.clipPending = true
		f.clipRule = geo.EvenOdd

	// Color.
	case "g":
		if v, ok := f.floats(1); ok {
			f.st.Fill = GrayColor(v[0])
			f.st.FillPattern = nil
		}
	case "G":
		if v, ok := f.floats(1); ok {
			f.st.Stroke = GrayColor(v[0])
			f.st.StrokePattern = nil
		}
	case "rg":
		if v, ok := f.floats(3); ok {
			f.st.Fill = RGBColor(v[0], v[1], v[2])
			f.st.FillPattern = nil
		}
	case "RG":
		if v, ok := f.floats(3); ok {
			f.st.Stroke = RGBColor(v[0], v[1], v[2])
			f.st.StrokePattern = nil
		}
	case "k":
		if v, ok := f.floats(4); ok {
			f.st.Fill = CMYKColor(v[0], v[1], v[2], v[3])
			f.st.FillPattern = nil
		}
	case "K":
		if v, ok := f.floats(4); ok {
			f.st.Stroke = CMYKColor(v[0], v[1], v[2], v[3])
			f.st.StrokePattern = nil
		}
	case "cs":
		f.opSetColorSpace(false)
	case "CS":
		f.opSetColorSpace(true)
	case "sc", "scn":
		f.opSetColor(false)
	case "SC", "SCN":
		f.opSetColor(true)

	// Text.
	case "BT":
		f.tm = coords.Identity()
		f.tlm = coords.Identity()
	case "ET":
		// Text object state stays; nothing to restore.
	case "Tc":
		if v, ok := f.floats(1); ok {
			f.st.Text.CharSpace = v[0]
		}
	case "Tw":
		if v, ok := f.floats(1); ok {
			f.st.Text.WordSpace = v[0]
		}
	case "Tz":
		if v, ok := f.floats(1); ok {
			f.st.Text.Scale = v[0]
		}
	case "TL":
		if v, ok := f.floats(1); ok {
			f.st.Text.Leading = v[0]
		}
	case "Ts":
		if v, ok := f.floats(1); ok {
			f.st.Text.Rise = v[0]
		}
	case "Tr":
		if v, ok := f.floats(1); ok {
			f.st.Text.RenderMode = TextRenderMode(int(v[0]))
		}
	case "Tf":
		f.opSetFont()
	case "Td":
		if v, ok := f.floats(2); ok {
			f.textMove(v[0], v[1])
		}
	case "TD":
		if v, ok := f.floats(2); ok {
			f.st.Text.Leading = -v[1]
			f.textMove(v[0], v[1])
		}
	case "Tm":
		if m, ok := f.matrixOperands(); ok {
			f.tm = m
			f.tlm = m
		}
	case "T*":
		f.textMove(0, -f.st.Text.Leading)
	case "Tj":
		if s, ok := f.stringOperand(); ok {
			f.showText(s)
		}
	case "'":
		if s, ok := f.stringOperand(); ok {
			f.textMove(0, -f.st.Text.Leading)
			f.showText(s)
		}
	case "\"":
		f.opShowWithSpacing()
	case "TJ":
		f.opShowArray()

	// XObjects and shadings.
	case "Do":
		f.opDo()
	case "sh":
		f.opShading()

	// Marked content and Type 3 metrics carry no extractable content.
	case "BMC", "BDC", "EMC", "MP", "DP", "d0", "d1", "BX", "EX":

	default:
		f.it.log.Debug("unknown operator skipped", observability.String("op", op))
	}
}

// Operand access. Operators read their operands from the tail of the
// stack; extra leading operands are ignored, the way viewers behave.

func (f *frame) floats(n int) ([]float64, bool) {
	if len(f.stack) < n {
		return nil, false
	}
	out := make([]float64, n)
	for i, obj := range f.stack[len(f.stack)-n:] {
		num, ok := obj.(raw.Number)
		if !ok {
			return nil, false
		}
		out[i] = num.Float()
	}
	return out, true
}

func (f *frame) matrixOperands() (coords.Matrix, bool) {
	v, ok := f.floats(6)
	if !ok {
		return coords.Matrix{}, false
	}
	return coords.Matrix{v[0], v[1], v[2], v[3], v[4], v[5]}, true
}

func (f *frame) nameOperand() (string, bool) {
	if len(f.stack) == 0 {
		return "", false
	}
	n, ok := f.stack[len(f.stack)-1].(raw.Name)
	if !ok {
		return "", false
	}
	return n.Value(), true
}

func (f *frame) stringOperand() ([]byte, bool) {
	if len(f.stack) == 0 {
		return nil, false
	}
	s, ok := f.stack[len(f.stack)-1].(raw.String)
	if !ok {
		return nil, false
	}
	return s.Value(), true
}

func (f *frame) emit(e Element) { *f.out = append(*f.out, e) }

// Graphics-state operators.

func (f *frame) opDash() {
	if len(f.stack) < 2 {
		return
	}
	arr, ok := f.stack[len(f.stack)-2].(*raw.ArrayObj)
	if !ok {
		return
	}
	phase, ok := f.stack[len(f.stack)-1].(raw.Number)
	if !ok {
		return
	}
	dash := make([]float64, 0, len(arr.Items))
	for _, item := range arr.Items {
		if n, ok := item.(raw.Number); ok {
			dash = append(dash, n.Float())
		}
	}
	f.st.DashArray = dash
	f.st.DashPhase = phase.Float()
}

func (f *frame) opExtGState() {
	name, ok := f.nameOperand()
	if !ok {
		return
	}
	g, ok := f.scope.ExtGStates[name]
	if !ok {
		return
	}
	if g.LineWidth != nil {
		f.st.LineWidth = *g.LineWidth
	}
	if g.LineCap != nil {
		f.st.LineCap = LineCap(*g.LineCap)
	}
	if g.LineJoin != nil {
		f.st.LineJoin = LineJoin(*g.LineJoin)
	}
	if g.MiterLimit != nil {
		f.st.MiterLimit = *g.MiterLimit
	}
	if g.DashSet {
		f.st.DashArray = append([]float64(nil), g.DashArray...)
		f.st.DashPhase = g.DashPhase
	}
	if g.StrokeAlpha != nil {
		f.st.StrokeAlpha = *g.StrokeAlpha
	}
	if g.FillAlpha != nil {
		f.st.FillAlpha = *g.FillAlpha
	}
	if g.BlendMode != "" {
		f.st.BlendMode = g.BlendMode
	}
	if g.SoftMaskNone {
		f.st.SoftMask = nil
	} else if g.SoftMask != nil {
		f.st.SoftMask = &SoftMaskState{Mask: g.SoftMask, CTM: f.st.CTM}
	}
	if g.Font != nil {
		if fi, err := f.it.cfg.Fonts.Load(f.ctx, g.Font, f.it.cfg.Env); err == nil {
			f.st.Text.Font = fi
			f.st.Text.FontName = g.Font.BaseFont
			f.st.Text.FontSize = g.FontSize
		}
	}
}

// Path painting.

func (f *frame) endPath(op PaintOp, rule geo.FillRule, closeFirst bool) {
	if closeFirst && len(f.pathOps) > 0 {
		f.pathOps = append(f.pathOps, PathOp{Kind: PathClose})
	}
	if op != PaintNone && len(f.pathOps) > 0 {
		ops := append([]PathOp(nil), f.pathOps...)
		f.emit(&PathElement{
			Path:  Path{Ops: ops, Op: op, Rule: rule},
			State: f.st.Clone(),
		})
	}
	if f.clipPending && len(f.pathOps) > 0 {
		f.applyClip()
	}
	f.pathOps = f.pathOps[:0]
	f.clipPending = false
}

func (f *frame) applyClip() {
	p := Path{Ops: f.pathOps, Rule: f.clipRule}
	poly := p.Flatten(f.st.Transform)
	f.st.Clip = f.st.Clip.Intersect(poly.Bounds())
	maxEdge := f.it.cfg.ClipMaskMaxSize
	if maxEdge <= 0 || f.st.Clip.Empty() {
		if f.st.Clip.Empty() {
			f.st.ClipMask = nil
		}
		return
	}
	w, h := geo.GridSize(f.st.Clip, maxEdge)
	mask := geo.Rasterize(poly, f.st.Clip, w, h, f.clipRule)
	if mask == nil {
		return
	}
	if old := f.st.ClipMask; old != nil {
		dx := mask.Rect.Width() / float64(mask.W)
		dy := mask.Rect.Height() / float64(mask.H)
		for py := 0; py < mask.H; py++ {
			y := mask.Rect.MinY + (float64(py)+0.5)*dy
			for px := 0; px < mask.W; px++ {
				x := mask.Rect.MinX + (float64(px)+0.5)*dx
				if old.Sample(x, y) == 0 {
					mask.Bits[py*mask.W+px] = 0
				}
			}
		}
	}
	f.st.ClipMask = mask
}

// Color operators.

func (f *frame) opSetColorSpace(stroke bool) {
	name, ok := f.nameOperand()
	if !ok {
		return
	}
	var cs semantic.ColorSpace
	switch name {
	case "DeviceGray", "DeviceRGB", "DeviceCMYK":
		cs = semantic.DeviceColorSpace{Name: name}
	case "Pattern":
		cs = &semantic.PatternColorSpace{}
	default:
		var found bool
		cs, found = f.scope.ColorSpaces[name]
		if !found {
			return
		}
	}
	c := Color{Space: cs, Components: initialComponents(cs)}
	if stroke {
		f.st.Stroke = c
		f.st.StrokePattern = nil
	} else {
		f.st.Fill = c
		f.st.FillPattern = nil
	}
}

// initialComponents is the color a cs operator resets to: black for the
// device spaces, zeros elsewhere.
func initialComponents(cs semantic.ColorSpace) []float64 {
	n := cs.Components()
	out := make([]float64, n)
	if cs.Family() == "DeviceCMYK" && n == 4 {
		out[3] = 1
	}
	return out
}

func (f *frame) opSetColor(stroke bool) {
	operands := f.stack
	var pattern semantic.Pattern
	if len(operands) > 0 {
		if n, ok := operands[len(operands)-1].(raw.Name); ok {
			pattern = f.scope.Patterns[n.Value()]
			operands = operands[:len(operands)-1]
			if pattern == nil {
				return
			}
		}
	}
	comps := make([]float64, 0, len(operands))
	for _, obj := range operands {
		if n, ok := obj.(raw.Number); ok {
			comps = append(comps, n.Float())
		}
	}
	target := &f.st.Fill
	patTarget := &f.st.FillPattern
	if stroke {
		target = &f.st.Stroke
		patTarget = &f.st.StrokePattern
	}
	if pattern != nil {
		*patTarget = pattern
		// Remaining components color an uncolored pattern through the
		// underlying space.
		if len(comps) > 0 {
			target.Components = comps
		}
		return
	}
	target.Components = comps
	*patTarget = nil
}

// Text operators.

func (f *frame) opSetFont() {
	if len(f.stack) < 2 {
		return
	}
	n, ok := f.stack[len(f.stack)-2].(raw.Name)
	if !ok {
		return
	}
	size, ok := f.stack[len(f.stack)-1].(raw.Number)
	if !ok {
		return
	}
	f.st.Text.FontName = n.Value()
	f.st.Text.FontSize = size.Float()
	f.st.Text.Font = nil
	if fnt, ok := f.scope.Fonts[n.Value()]; ok {
		if fi, err := f.it.cfg.Fonts.Load(f.ctx, fnt, f.it.cfg.Env); err == nil {
			f.st.Text.Font = fi
		} else {
			f.it.log.Warn("font load failed",
				observability.String("font", n.Value()),
				observability.Error("err", err))
		}
	}
}

func (f *frame) textMove(tx, ty float64) {
	f.tlm = coords.Translate(tx, ty).Multiply(f.tlm)
	f.tm = f.tlm
}

func (f *frame) opShowWithSpacing() {
	if len(f.stack) < 3 {
		return
	}
	aw, ok1 := f.stack[len(f.stack)-3].(raw.Number)
	ac, ok2 := f.stack[len(f.stack)-2].(raw.Number)
	s, ok3 := f.stack[len(f.stack)-1].(raw.String)
	if !ok1 || !ok2 || !ok3 {
		return
	}
	f.st.Text.WordSpace = aw.Float()
	f.st.Text.CharSpace = ac.Float()
	f.textMove(0, -f.st.Text.Leading)
	f.showText(s.Value())
}

func (f *frame) opShowArray() {
	if len(f.stack) == 0 {
		return
	}
	arr, ok := f.stack[len(f.stack)-1].(*raw.ArrayObj)
	if !ok {
		return
	}
	ts := &f.st.Text
	for _, item := range arr.Items {
		switch v := item.(type) {
		case raw.String:
			f.showText(v.Value())
		case raw.Number:
			// A number adjusts the text matrix by -n/1000 in text space.
			d := -v.Float() / 1000 * ts.FontSize * ts.Scale / 100
			f.tm = coords.Translate(d, 0).Multiply(f.tm)
		}
	}
}

// showText decodes one show-text run and emits a TextElement. Type 3
// fonts additionally execute their glyph procedures.
func (f *frame) showText(s []byte) {
	ts := &f.st.Text
	font := ts.Font
	if font == nil || len(s) == 0 {
		return
	}
	trm := coords.Translate(0, ts.Rise).Multiply(f.tm).Multiply(f.st.CTM)
	origin := trm.Transform(coords.Point{})
	scaleH := ts.Scale / 100

	var text bytes.Buffer
	total := 0.0
	chars := font.Chars(s)
	for _, ch := range chars {
		text.WriteString(ch.Text)
		d := ch.Width/1000*ts.FontSize + ts.CharSpace
		if ch.Bytes == 1 && ch.Code == 32 {
			d += ts.WordSpace
		}
		total += d * scaleH
	}

	if font.Type3 != nil {
		f.showType3(chars)
	}

	color := f.st.Fill
	if ts.RenderMode == TextStroke || ts.RenderMode == TextStrokeClip {
		color = f.st.Stroke
	}
	f.emit(&TextElement{
		Text:              text.String(),
		X:                 origin.X,
		Y:                 origin.Y,
		Width:             total * trm.XScale(),
		FontSize:          ts.FontSize,
		EffectiveFontSize: ts.FontSize * trm.YScale(),
		Font:              font,
		FontName:          ts.FontName,
		RenderMode:        ts.RenderMode,
		Color:             color.clone(),
		State:             f.st.Clone(),
	})
	f.tm = coords.Translate(total, 0).Multiply(f.tm)
}

// showType3 executes Type 3 glyph procedures, one per decoded char, with
// the glyph space installed ahead of the text matrix. The text matrix is
// not advanced here; showText does that for the whole run.
func (f *frame) showType3(chars []fonts.Char) {
	ts := &f.st.Text
	t3 := ts.Font.Type3
	if f.depth >= f.it.cfg.MaxFormDepth {
		return
	}
	glyphScope := f.scope
	if t3.Resources != nil {
		glyphScope = f.scope.Merge(f.it.cfg.Env, t3.Resources)
	}
	tm := f.tm
	scaleH := ts.Scale / 100
	for _, ch := range chars {
		proc, ok := ts.Font.GlyphProc(ch.Code)
		if ok {
			if data, found := f.it.streamData(f.ctx, proc); found {
				gst := f.st.Clone()
				pre := coords.Matrix{ts.FontSize * scaleH, 0, 0, ts.FontSize, 0, ts.Rise}
				gst.CTM = t3.Matrix.Multiply(pre).Multiply(tm).Multiply(f.st.CTM)
				if err := f.it.run(f.ctx, data, glyphScope, &gst, f.depth+1, f.active, f.seq, f.out); err != nil {
					return
				}
			}
		}
		d := ch.Width/1000*ts.FontSize + ts.CharSpace
		if ch.Bytes == 1 && ch.Code == 32 {
			d += ts.WordSpace
		}
		tm = coords.Translate(d*scaleH, 0).Multiply(tm)
	}
}

// XObject invocation.

func (f *frame) opDo() {
	name, ok := f.nameOperand()
	if !ok {
		return
	}
	x, ok := f.scope.XObjects[name]
	if !ok {
		f.it.log.Debug("unknown XObject", observability.String("name", name))
		return
	}
	switch x.Subtype {
	case "Image":
		f.emit(&ImageElement{Name: name, Image: x, State: f.st.Clone()})
	case "Form":
		f.runForm(x)
	}
}

func (f *frame) runForm(x *semantic.XObject) {
	if f.depth >= f.it.cfg.MaxFormDepth {
		f.it.log.Warn("form nesting limit reached", observability.Int("depth", f.depth))
		return
	}
	zero := raw.ObjectRef{}
	if x.Ref != zero {
		if f.active[x.Ref] {
			f.it.log.Warn("form self-reference dropped", observability.String("ref", x.Ref.String()))
			return
		}
		f.active[x.Ref] = true
		defer delete(f.active, x.Ref)
	}
	gst := f.st.Clone()
	gst.CTM = x.Matrix.Multiply(gst.CTM)
	if x.BBox.Width() > 0 && x.BBox.Height() > 0 {
		box := geo.Rect{}
		for i, c := range [][2]float64{
			{x.BBox.LLX, x.BBox.LLY}, {x.BBox.URX, x.BBox.LLY},
			{x.BBox.LLX, x.BBox.URY}, {x.BBox.URX, x.BBox.URY},
		} {
			p := gst.CTM.Transform(coords.Point{X: c[0], Y: c[1]})
			if i == 0 {
				box = geo.Rect{MinX: p.X, MinY: p.Y, MaxX: p.X, MaxY: p.Y}
			} else {
				box = box.ExpandTo(geo.Point{X: p.X, Y: p.Y})
			}
		}
		gst.Clip = gst.Clip.Intersect(box)
	}
	scope := f.scope.Merge(f.it.cfg.Env, x.Resources)
	if err := f.it.run(f.ctx, x.Data, scope, &gst, f.depth+1, f.active, f.seq, f.out); err != nil {
		return
	}
}

// opShading fills the current clip region with a shading. The emitted
// element is a fill of the clip box carrying a synthetic shading pattern,
// so the rasterization stage treats sh exactly like a pattern fill.
func (f *frame) opShading() {
	name, ok := f.nameOperand()
	if !ok {
		return
	}
	sh, ok := f.scope.Shadings[name]
	if !ok {
		return
	}
	clip := f.st.Clip
	if clip.Empty() {
		return
	}
	st := f.st.Clone()
	// The clip box is already in device space; neutralize the CTM for the
	// rect path and fold the real CTM into the pattern matrix, which maps
	// shading space to device space.
	st.CTM = coords.Identity()
	st.FillPattern = &semantic.ShadingPattern{Shading: sh, Matrix: f.st.CTM}
	f.emit(&PathElement{
		Path: Path{
			Ops: []PathOp{
				{Kind: PathMoveTo, P: geo.Point{X: clip.MinX, Y: clip.MinY}},
				{Kind: PathLineTo, P: geo.Point{X: clip.MaxX, Y: clip.MinY}},
				{Kind: PathLineTo, P: geo.Point{X: clip.MaxX, Y: clip.MaxY}},
				{Kind: PathLineTo, P: geo.Point{X: clip.MinX, Y: clip.MaxY}},
				{Kind: PathClose},
			},
			Op:   PaintFill,
			Rule: geo.NonZero,
		},
		State: st,
	})
}

// streamData resolves a stream object and returns its decoded bytes.
// Direct stream objects are decoded through the filter pipeline.
func (it *Interpreter) streamData(ctx context.Context, obj raw.Object) ([]byte, bool) {
	if ref, ok := obj.(raw.RefObj); ok {
		if data, found := it.cfg.Env.StreamData(ref.Ref()); found {
			return data, true
		}
	}
	st, ok := it.cfg.Env.Resolve(obj).(*raw.StreamObj)
	if !ok {
		return nil, false
	}
	names, parms := filters.ExtractFilters(st.Dict)
	if len(names) == 0 {
		return st.Data, true
	}
	data, err := it.cfg.Pipeline.Decode(ctx, st.Data, names, parms)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Operand object assembly.

// readObject pulls the next token from sc and assembles it into a raw
// object, recursing into arrays and dictionaries.
func readObject(sc scanner.Scanner, depth int) (raw.Object, error) {
	tok, err := sc.Next()
	if err != nil {
		return nil, err
	}
	return objectFromToken(sc, tok, depth)
}

const maxOperandDepth = 32

func objectFromToken(sc scanner.Scanner, tok scanner.Token, depth int) (raw.Object, error) {
	if depth > maxOperandDepth {
		return nil, errors.New("contentstream: operand nesting too deep")
	}
	switch tok.Type {
	case scanner.TokenNumber:
		if tok.IsInt {
			return raw.NumberInt(tok.Int), nil
		}
		return raw.NumberFloat(tok.Float), nil
	case scanner.TokenName:
		return raw.NameLiteral(tok.Str), nil
	case scanner.TokenString:
		return raw.StringObj{Bytes: tok.Bytes}, nil
	case scanner.TokenBoolean:
		return raw.Bool(tok.Bool), nil
	case scanner.TokenNull:
		return raw.NullObj{}, nil
	case scanner.TokenRef:
		return raw.Ref(int(tok.Int), tok.Gen), nil
	case scanner.TokenArray:
		arr := raw.NewArray()
		for {
			t, err := sc.Next()
			if err != nil {
				return nil, err
			}
			if t.Type == scanner.TokenKeyword && t.Str == "]" {
				return arr, nil
			}
			item, err := objectFromToken(sc, t, depth+1)
			if err != nil {
				return nil, err
			}
			arr.Append(item)
		}
	case scanner.TokenDict:
		dict := raw.Dict()
		for {
			t, err := sc.Next()
			if err != nil {
				return nil, err
			}
			if t.Type == scanner.TokenKeyword && t.Str == ">>" {
				return dict, nil
			}
			if t.Type != scanner.TokenName {
				return nil, errors.New("contentstream: dictionary key is not a name")
			}
			val, err := readObject(sc, depth+1)
			if err != nil {
				return nil, err
			}
			dict.Set(raw.NameLiteral(t.Str), val)
		}
	default:
		return nil, errors.New("contentstream: unexpected token in operand position")
	}
}
