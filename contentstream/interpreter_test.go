package contentstream

import (
	"context"
	"math"
	"testing"

	"github.com/siftdocs/pdfsift/geo"
	"github.com/siftdocs/pdfsift/ir/decoded"
	"github.com/siftdocs/pdfsift/ir/raw"
	"github.com/siftdocs/pdfsift/ir/semantic"
	"github.com/siftdocs/pdfsift/resources"
)

func directEnv() semantic.Env {
	return semantic.Env{
		Resolve:    func(o raw.Object) raw.Object { return o },
		StreamData: func(raw.ObjectRef) ([]byte, bool) { return nil, false },
		StreamHint: func(raw.ObjectRef) *decoded.ImageHint { return nil },
	}
}

func testInterpreter() *Interpreter {
	return New(Config{Env: directEnv()})
}

func pageState() GraphicsState {
	return NewGraphicsState(geo.Rect{MinX: 0, MinY: 0, MaxX: 100, MaxY: 100})
}

func helveticaScope() resources.Scope {
	dict := raw.Dict()
	dict.Set(raw.NameLiteral("Type"), raw.NameLiteral("Font"))
	dict.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("Type1"))
	dict.Set(raw.NameLiteral("BaseFont"), raw.NameLiteral("Helvetica"))
	return resources.Scope{
		Fonts: map[string]*semantic.Font{
			"F1": {Subtype: "Type1", BaseFont: "Helvetica", Dict: dict},
		},
	}
}

func run(t *testing.T, content string, scope resources.Scope) []Element {
	t.Helper()
	elems, err := testInterpreter().Run(context.Background(), []byte(content), scope, pageState())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return elems
}

func almostEq(t *testing.T, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-6 {
		t.Fatalf("got %g, want %g", got, want)
	}
}

func TestFillPath(t *testing.T) {
	elems := run(t, "0 0 m 10 0 l 10 10 l h f", resources.Scope{})
	if len(elems) != 1 {
		t.Fatalf("got %d elements, want 1", len(elems))
	}
	p, ok := elems[0].(*PathElement)
	if !ok {
		t.Fatalf("got %T, want *PathElement", elems[0])
	}
	if p.Path.Op != PaintFill {
		t.Errorf("paint op = %v, want PaintFill", p.Path.Op)
	}
	if got := len(p.Path.Ops); got != 4 {
		t.Errorf("path ops = %d, want 4", got)
	}
	r, g, b := p.State.Fill.RGB8()
	if r != 0 || g != 0 || b != 0 {
		t.Errorf("default fill = %d,%d,%d, want black", r, g, b)
	}
}

func TestRectangleExpansion(t *testing.T) {
	elems := run(t, "1 2 3 4 re f", resources.Scope{})
	if len(elems) != 1 {
		t.Fatalf("got %d elements, want 1", len(elems))
	}
	p := elems[0].(*PathElement)
	if got := len(p.Path.Ops); got != 5 {
		t.Fatalf("path ops = %d, want 5", got)
	}
	if p.Path.Ops[4].Kind != PathClose {
		t.Errorf("rect does not end with close")
	}
	bounds := p.DeviceBounds()
	almostEq(t, bounds.MinX, 1)
	almostEq(t, bounds.MaxX, 4)
	almostEq(t, bounds.MinY, 2)
	almostEq(t, bounds.MaxY, 6)
}

func TestNoPaintEmitsNothing(t *testing.T) {
	elems := run(t, "0 0 m 10 10 l n", resources.Scope{})
	if len(elems) != 0 {
		t.Fatalf("got %d elements, want 0", len(elems))
	}
}

func TestEvenOddRule(t *testing.T) {
	elems := run(t, "0 0 10 10 re 2 2 6 6 re f*", resources.Scope{})
	p := elems[0].(*PathElement)
	if p.Path.Rule != geo.EvenOdd {
		t.Errorf("rule = %v, want EvenOdd", p.Path.Rule)
	}
}

func TestGraphicsStateStack(t *testing.T) {
	elems := run(t, "q 1 0 0 rg 0 0 5 5 re f Q 0 0 5 5 re f", resources.Scope{})
	if len(elems) != 2 {
		t.Fatalf("got %d elements, want 2", len(elems))
	}
	r, _, _ := elems[0].(*PathElement).State.Fill.RGB8()
	if r != 255 {
		t.Errorf("inner fill red = %d, want 255", r)
	}
	r, g, b := elems[1].(*PathElement).State.Fill.RGB8()
	if r != 0 || g != 0 || b != 0 {
		t.Errorf("restored fill = %d,%d,%d, want black", r, g, b)
	}
}

func TestUnbalancedRestoreIgnored(t *testing.T) {
	elems := run(t, "Q Q 0 0 5 5 re f", resources.Scope{})
	if len(elems) != 1 {
		t.Fatalf("got %d elements, want 1", len(elems))
	}
}

func TestMatrixConcatenation(t *testing.T) {
	scope := resources.Scope{XObjects: map[string]*semantic.XObject{
		"Im0": {Subtype: "Image", Width: 1, Height: 1},
	}}
	elems := run(t, "q 2 0 0 2 0 0 cm 1 0 0 1 3 0 cm /Im0 Do Q", scope)
	if len(elems) != 1 {
		t.Fatalf("got %d elements, want 1", len(elems))
	}
	bounds := elems[0].(*ImageElement).DeviceBounds()
	almostEq(t, bounds.MinX, 6)
	almostEq(t, bounds.MaxX, 8)
	almostEq(t, bounds.MaxY, 2)
}

func TestClipIntersectsSubsequentElements(t *testing.T) {
	elems := run(t, "0 0 5 5 re W n 0 0 20 20 re f", resources.Scope{})
	if len(elems) != 1 {
		t.Fatalf("got %d elements, want 1", len(elems))
	}
	clip := elems[0].(*PathElement).State.Clip
	almostEq(t, clip.MaxX, 5)
	almostEq(t, clip.MaxY, 5)
}

func TestClipRestoredByQ(t *testing.T) {
	elems := run(t, "q 0 0 5 5 re W n Q 0 0 20 20 re f", resources.Scope{})
	clip := elems[0].(*PathElement).State.Clip
	almostEq(t, clip.MaxX, 100)
}

func TestShowText(t *testing.T) {
	elems := run(t, "BT /F1 12 Tf 10 20 Td (AB) Tj ET", helveticaScope())
	if len(elems) != 1 {
		t.Fatalf("got %d elements, want 1", len(elems))
	}
	te := elems[0].(*TextElement)
	if te.Text != "AB" {
		t.Errorf("text = %q, want AB", te.Text)
	}
	almostEq(t, te.X, 10)
	almostEq(t, te.Y, 20)
	almostEq(t, te.FontSize, 12)
	almostEq(t, te.EffectiveFontSize, 12)
	// Helvetica metrics resolve real advances; the width must be positive
	// and bounded by two full ems.
	if te.Width <= 0 || te.Width > 24 {
		t.Errorf("width = %g, want within (0, 24]", te.Width)
	}
}

func TestTextWithoutFontSkipped(t *testing.T) {
	elems := run(t, "BT (hello) Tj ET", resources.Scope{})
	if len(elems) != 0 {
		t.Fatalf("got %d elements, want 0", len(elems))
	}
}

func TestHorizontalScalingHalvesAdvance(t *testing.T) {
	full := run(t, "BT /F1 12 Tf (AB) Tj ET", helveticaScope())
	half := run(t, "BT /F1 12 Tf 50 Tz (AB) Tj ET", helveticaScope())
	w1 := full[0].(*TextElement).Width
	w2 := half[0].(*TextElement).Width
	almostEq(t, w2, w1/2)
}

func TestCharSpacingAddsPerGlyph(t *testing.T) {
	base := run(t, "BT /F1 10 Tf (AB) Tj ET", helveticaScope())
	spaced := run(t, "BT /F1 10 Tf 2 Tc (AB) Tj ET", helveticaScope())
	almostEq(t, spaced[0].(*TextElement).Width, base[0].(*TextElement).Width+4)
}

func TestWordSpacingAppliesToSingleByteSpace(t *testing.T) {
	base := run(t, "BT /F1 10 Tf (a b) Tj ET", helveticaScope())
	spaced := run(t, "BT /F1 10 Tf 5 Tw (a b) Tj ET", helveticaScope())
	almostEq(t, spaced[0].(*TextElement).Width, base[0].(*TextElement).Width+5)
}

func TestTJAdjustmentMovesNextRun(t *testing.T) {
	elems := run(t, "BT /F1 12 Tf [ (A) -1000 (B) ] TJ ET", helveticaScope())
	if len(elems) != 2 {
		t.Fatalf("got %d elements, want 2", len(elems))
	}
	a := elems[0].(*TextElement)
	b := elems[1].(*TextElement)
	// A negative adjustment widens the gap: -(-1000)/1000 * 12 = +12 units.
	almostEq(t, b.X, a.X+a.Width+12)
}

func TestLeadingAndNextLine(t *testing.T) {
	elems := run(t, "BT /F1 12 Tf 14 TL 0 50 Td (A) Tj T* (B) Tj ET", helveticaScope())
	if len(elems) != 2 {
		t.Fatalf("got %d elements, want 2", len(elems))
	}
	almostEq(t, elems[0].(*TextElement).Y, 50)
	almostEq(t, elems[1].(*TextElement).Y, 36)
}

func TestTextMatrixScalesEffectiveFontSize(t *testing.T) {
	elems := run(t, "BT /F1 10 Tf 2 0 0 3 0 0 Tm (A) Tj ET", helveticaScope())
	te := elems[0].(*TextElement)
	almostEq(t, te.FontSize, 10)
	almostEq(t, te.EffectiveFontSize, 30)
}

func TestQuoteOperatorAdvancesLine(t *testing.T) {
	elems := run(t, "BT /F1 12 Tf 12 TL 0 40 Td (A) ' ET", helveticaScope())
	almostEq(t, elems[0].(*TextElement).Y, 28)
}

func TestInvisibleTextStillEmitted(t *testing.T) {
	elems := run(t, "BT /F1 12 Tf 3 Tr (ocr layer) Tj ET", helveticaScope())
	if len(elems) != 1 {
		t.Fatalf("got %d elements, want 1", len(elems))
	}
	if elems[0].(*TextElement).RenderMode != TextInvisible {
		t.Errorf("render mode not preserved")
	}
}

func TestExtGStateAlpha(t *testing.T) {
	half := 0.5
	scope := resources.Scope{ExtGStates: map[string]*semantic.ExtGState{
		"GS0": {FillAlpha: &half},
	}}
	elems := run(t, "/GS0 gs 0 0 5 5 re f", scope)
	almostEq(t, elems[0].(*PathElement).State.FillAlpha, 0.5)
}

func TestPatternFill(t *testing.T) {
	scope := resources.Scope{Patterns: map[string]semantic.Pattern{
		"P0": &semantic.ShadingPattern{Shading: &semantic.Shading{Type: 2}},
	}}
	elems := run(t, "/Pattern cs /P0 scn 0 0 5 5 re f", scope)
	p := elems[0].(*PathElement)
	if p.State.FillPattern == nil {
		t.Fatalf("fill pattern not installed")
	}
	if p.State.FillPattern.PatternType() != 2 {
		t.Errorf("pattern type = %d, want 2", p.State.FillPattern.PatternType())
	}
}

func TestShadingOperatorFillsClipBox(t *testing.T) {
	scope := resources.Scope{Shadings: map[string]*semantic.Shading{
		"Sh0": {Type: 2, Coords: []float64{0, 0, 1, 0}},
	}}
	elems := run(t, "0 0 10 10 re W n /Sh0 sh", scope)
	if len(elems) != 1 {
		t.Fatalf("got %d elements, want 1", len(elems))
	}
	p := elems[0].(*PathElement)
	sp, ok := p.State.FillPattern.(*semantic.ShadingPattern)
	if !ok || sp.Shading == nil {
		t.Fatalf("sh did not install a shading pattern fill")
	}
	bounds := p.DeviceBounds()
	almostEq(t, bounds.MaxX, 10)
	almostEq(t, bounds.MaxY, 10)
}

func TestFormXObjectTransformsContent(t *testing.T) {
	form := &semantic.XObject{
		Subtype: "Form",
		Matrix:  [6]float64{1, 0, 0, 1, 50, 0},
		BBox:    semantic.Rectangle{LLX: 0, LLY: 0, URX: 10, URY: 10},
		Data:    []byte("0 0 10 10 re f"),
	}
	scope := resources.Scope{XObjects: map[string]*semantic.XObject{"Fm0": form}}
	elems := run(t, "/Fm0 Do", scope)
	if len(elems) != 1 {
		t.Fatalf("got %d elements, want 1", len(elems))
	}
	bounds := elems[0].(*PathElement).DeviceBounds()
	almostEq(t, bounds.MinX, 50)
	almostEq(t, bounds.MaxX, 60)
}

func TestFormSelfReferenceTerminates(t *testing.T) {
	form := &semantic.XObject{
		Subtype: "Form",
		Ref:     raw.ObjectRef{Num: 7},
		Matrix:  [6]float64{1, 0, 0, 1, 0, 0},
		Data:    []byte("0 0 10 10 re f /Fm0 Do"),
	}
	scope := resources.Scope{XObjects: map[string]*semantic.XObject{"Fm0": form}}
	elems := run(t, "/Fm0 Do", scope)
	if len(elems) != 1 {
		t.Fatalf("got %d elements, want 1 (self reference must be dropped)", len(elems))
	}
}

func TestFormDepthLimit(t *testing.T) {
	// Two forms invoking each other have distinct refs, so only the depth
	// cap stops them.
	a := &semantic.XObject{Subtype: "Form", Ref: raw.ObjectRef{Num: 1},
		Matrix: [6]float64{1, 0, 0, 1, 0, 0}, Data: []byte("0 0 1 1 re f /B Do")}
	b := &semantic.XObject{Subtype: "Form", Ref: raw.ObjectRef{Num: 2},
		Matrix: [6]float64{1, 0, 0, 1, 0, 0}, Data: []byte("/A Do")}
	scope := resources.Scope{XObjects: map[string]*semantic.XObject{"A": a, "B": b}}
	elems := run(t, "/A Do", scope)
	if len(elems) == 0 || len(elems) > 16 {
		t.Fatalf("got %d elements, want bounded recursion", len(elems))
	}
}

func TestInlineImageNormalized(t *testing.T) {
	content := "q BI /W 2 /H 2 /BPC 8 /CS /G ID \x10\x20\x30\x40\nEI Q"
	elems := run(t, content, resources.Scope{})
	if len(elems) != 1 {
		t.Fatalf("got %d elements, want 1", len(elems))
	}
	img := elems[0].(*ImageElement)
	if img.Name != "InlineIm0" {
		t.Errorf("name = %q, want InlineIm0", img.Name)
	}
	x := img.Image
	if x.Width != 2 || x.Height != 2 || x.BitsPerComponent != 8 {
		t.Errorf("geometry = %dx%dx%d, want 2x2x8", x.Width, x.Height, x.BitsPerComponent)
	}
	if x.ColorSpace == nil || x.ColorSpace.Family() != "DeviceGray" {
		t.Errorf("colorspace abbreviation not expanded")
	}
	if len(x.Data) != 4 {
		t.Errorf("payload = %d bytes, want 4", len(x.Data))
	}
}

func TestInlineImageHexFilter(t *testing.T) {
	content := "BI /W 1 /H 1 /BPC 8 /CS /G /F /AHx ID 7f>\nEI"
	elems := run(t, content, resources.Scope{})
	if len(elems) != 1 {
		t.Fatalf("got %d elements, want 1", len(elems))
	}
	x := elems[0].(*ImageElement).Image
	if len(x.Data) != 1 || x.Data[0] != 0x7f {
		t.Errorf("decoded payload = %v, want [0x7f]", x.Data)
	}
}

func TestMalformedOperatorSkipped(t *testing.T) {
	elems := run(t, "(junk) cm frobnicate 0 0 5 5 re f", resources.Scope{})
	if len(elems) != 1 {
		t.Fatalf("got %d elements, want 1", len(elems))
	}
}

func TestDashPattern(t *testing.T) {
	elems := run(t, "[2 4] 1 d 0 0 m 10 0 l S", resources.Scope{})
	st := elems[0].(*PathElement).State
	if len(st.DashArray) != 2 || st.DashArray[0] != 2 || st.DashArray[1] != 4 {
		t.Errorf("dash array = %v, want [2 4]", st.DashArray)
	}
	almostEq(t, st.DashPhase, 1)
}

func TestColorSpaceResetToBlack(t *testing.T) {
	elems := run(t, "1 1 0 rg /DeviceCMYK cs 0 0 5 5 re f", resources.Scope{})
	c := elems[0].(*PathElement).State.Fill
	if c.Space.Family() != "DeviceCMYK" {
		t.Fatalf("space = %s, want DeviceCMYK", c.Space.Family())
	}
	r, g, b := c.RGB8()
	if r != 0 || g != 0 || b != 0 {
		t.Errorf("reset color = %d,%d,%d, want black", r, g, b)
	}
}

func TestTracerReportsBounds(t *testing.T) {
	tr := NewTracer(Config{Env: directEnv()})
	boxes, err := tr.Trace(context.Background(), []byte("1 2 3 4 re f"), resources.Scope{}, pageState())
	if err != nil {
		t.Fatalf("Trace: %v", err)
	}
	if len(boxes) != 1 {
		t.Fatalf("got %d boxes, want 1", len(boxes))
	}
	almostEq(t, boxes[0].Rect.MinX, 1)
	almostEq(t, boxes[0].Rect.MaxY, 6)
}
