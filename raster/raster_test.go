package raster

import (
	"context"
	"errors"
	"testing"

	"github.com/siftdocs/pdfsift/contentstream"
	"github.com/siftdocs/pdfsift/coords"
	"github.com/siftdocs/pdfsift/geo"
	"github.com/siftdocs/pdfsift/ir/decoded"
	"github.com/siftdocs/pdfsift/ir/raw"
	"github.com/siftdocs/pdfsift/ir/semantic"
)

// rampFunc maps t straight through to a single gray component.
type rampFunc struct{}

func (rampFunc) Eval(xs []float64) []float64 { return []float64{xs[0]} }
func (rampFunc) Domain() []float64           { return []float64{0, 1} }

func testEnv() semantic.Env {
	return semantic.Env{
		Resolve:    func(o raw.Object) raw.Object { return o },
		StreamData: func(raw.ObjectRef) ([]byte, bool) { return nil, false },
		StreamHint: func(raw.ObjectRef) *decoded.ImageHint { return nil },
	}
}

func testOptions() Options {
	return Options{
		Interp:      contentstream.Config{Env: testEnv()},
		MaxGridEdge: 16,
	}
}

func rectPath(x, y, w, h float64) contentstream.Path {
	return contentstream.Path{
		Ops: []contentstream.PathOp{
			{Kind: contentstream.PathMoveTo, P: geo.Point{X: x, Y: y}},
			{Kind: contentstream.PathLineTo, P: geo.Point{X: x + w, Y: y}},
			{Kind: contentstream.PathLineTo, P: geo.Point{X: x + w, Y: y + h}},
			{Kind: contentstream.PathLineTo, P: geo.Point{X: x, Y: y + h}},
			{Kind: contentstream.PathClose},
		},
		Op:   contentstream.PaintFill,
		Rule: geo.NonZero,
	}
}

func pageState() contentstream.GraphicsState {
	return contentstream.NewGraphicsState(geo.Rect{MinX: 0, MinY: 0, MaxX: 100, MaxY: 100})
}

func axialShading(extend [2]bool) *semantic.Shading {
	return &semantic.Shading{
		Type:       2,
		ColorSpace: semantic.DeviceColorSpace{Name: "DeviceGray"},
		Coords:     []float64{0, 0, 10, 0},
		Domain:     [2]float64{0, 1},
		Functions:  []semantic.Function{rampFunc{}},
		Extend:     extend,
	}
}

func TestAxialGradientRuns(t *testing.T) {
	img, bounds, err := RasterizeFill(context.Background(), rectPath(0, 0, 10, 10), pageState(),
		&semantic.ShadingPattern{Shading: axialShading([2]bool{true, true}), Matrix: coords.Identity()},
		testOptions())
	if err != nil {
		t.Fatalf("RasterizeFill: %v", err)
	}
	if bounds.MinX != 0 || bounds.MaxX != 10 {
		t.Fatalf("bounds = %+v", bounds)
	}
	// Left edge dark, right edge light, monotone in between.
	left := img.RGB[0]
	right := img.RGB[(img.Width-1)*3]
	if left >= right {
		t.Errorf("gradient not increasing: left %d right %d", left, right)
	}
	if img.Alpha[0] != 255 {
		t.Errorf("inside alpha = %d, want 255", img.Alpha[0])
	}
}

func TestAxialExtendGatesAlpha(t *testing.T) {
	// Axis covers only the left half of a 20-wide fill. Without Extend
	// the right half is transparent; with it, clamped to the end color.
	st := pageState()
	for _, extendOn := range []bool{false, true} {
		img, _, err := RasterizeFill(context.Background(), rectPath(0, 0, 20, 10), st,
			&semantic.ShadingPattern{Shading: axialShading([2]bool{extendOn, extendOn}), Matrix: coords.Identity()},
			testOptions())
		if err != nil {
			t.Fatalf("RasterizeFill: %v", err)
		}
		// Sample well past the axis end.
		i := (img.Height/2)*img.Width + img.Width - 1
		if extendOn {
			if img.Alpha[i] != 255 {
				t.Errorf("extended end alpha = %d, want 255", img.Alpha[i])
			}
			if img.RGB[i*3] < 250 {
				t.Errorf("extended end not clamped to end color: %d", img.RGB[i*3])
			}
		} else if img.Alpha[i] != 0 {
			t.Errorf("unextended end alpha = %d, want 0", img.Alpha[i])
		}
	}
}

func TestRadialExtendClampsToNearerEndpoint(t *testing.T) {
	sh := &semantic.Shading{
		Type:       3,
		ColorSpace: semantic.DeviceColorSpace{Name: "DeviceGray"},
		Coords:     []float64{10, 10, 0, 10, 10, 4},
		Domain:     [2]float64{0, 1},
		Functions:  []semantic.Function{rampFunc{}},
		Extend:     [2]bool{true, true},
	}
	img, _, err := RasterizeFill(context.Background(), rectPath(0, 0, 20, 20), pageState(),
		&semantic.ShadingPattern{Shading: sh, Matrix: coords.Identity()}, testOptions())
	if err != nil {
		t.Fatalf("RasterizeFill: %v", err)
	}
	// A corner pixel is outside the outer circle; clamped to the outer
	// endpoint color (white).
	if img.RGB[0] < 250 {
		t.Errorf("corner = %d, want clamped to end color", img.RGB[0])
	}
	if img.Alpha[0] != 255 {
		t.Errorf("corner alpha = %d, want 255", img.Alpha[0])
	}
	// Center is at parameter 0: black.
	ci := (img.Height/2)*img.Width + img.Width/2
	if img.RGB[ci*3] > 60 {
		t.Errorf("center = %d, want near start color", img.RGB[ci*3])
	}
}

func TestRadialUnextendedOutsideIsTransparent(t *testing.T) {
	sh := &semantic.Shading{
		Type:       3,
		ColorSpace: semantic.DeviceColorSpace{Name: "DeviceGray"},
		Coords:     []float64{10, 10, 0, 10, 10, 4},
		Functions:  []semantic.Function{rampFunc{}},
	}
	img, _, err := RasterizeFill(context.Background(), rectPath(0, 0, 20, 20), pageState(),
		&semantic.ShadingPattern{Shading: sh, Matrix: coords.Identity()}, testOptions())
	if err != nil {
		t.Fatalf("RasterizeFill: %v", err)
	}
	if img.Alpha[0] != 0 {
		t.Errorf("outside alpha = %d, want 0", img.Alpha[0])
	}
	ci := (img.Height/2)*img.Width + img.Width/2
	if img.Alpha[ci] != 255 {
		t.Errorf("inside alpha = %d, want 255", img.Alpha[ci])
	}
}

func TestCoverageOutsidePathIsTransparent(t *testing.T) {
	// Fill a triangle; the opposite corner of its bounding box stays
	// transparent.
	tri := contentstream.Path{
		Ops: []contentstream.PathOp{
			{Kind: contentstream.PathMoveTo, P: geo.Point{X: 0, Y: 0}},
			{Kind: contentstream.PathLineTo, P: geo.Point{X: 10, Y: 0}},
			{Kind: contentstream.PathLineTo, P: geo.Point{X: 0, Y: 10}},
			{Kind: contentstream.PathClose},
		},
		Op:   contentstream.PaintFill,
		Rule: geo.NonZero,
	}
	img, _, err := RasterizeFill(context.Background(), tri, pageState(),
		&semantic.ShadingPattern{Shading: axialShading([2]bool{true, true}), Matrix: coords.Identity()},
		testOptions())
	if err != nil {
		t.Fatalf("RasterizeFill: %v", err)
	}
	if img.Alpha[img.Width-1] != 0 {
		t.Errorf("corner opposite the hypotenuse should be transparent")
	}
	if img.Alpha[(img.Height-1)*img.Width] != 255 {
		t.Errorf("right-angle corner should be covered")
	}
}

func TestFillAlphaScalesResult(t *testing.T) {
	st := pageState()
	st.FillAlpha = 0.5
	img, _, err := RasterizeFill(context.Background(), rectPath(0, 0, 10, 10), st,
		&semantic.ShadingPattern{Shading: axialShading([2]bool{true, true}), Matrix: coords.Identity()},
		testOptions())
	if err != nil {
		t.Fatalf("RasterizeFill: %v", err)
	}
	if a := img.Alpha[0]; a < 126 || a > 129 {
		t.Errorf("alpha = %d, want ~128", a)
	}
}

func TestTilingPatternRepeats(t *testing.T) {
	// A 4x4 cell with a 2x2 red square in its lower-left corner, tiled
	// over a 16-wide fill.
	pat := &semantic.TilingPattern{
		PaintType: 1,
		BBox:      semantic.Rectangle{LLX: 0, LLY: 0, URX: 4, URY: 4},
		XStep:     4, YStep: 4,
		Matrix:  coords.Identity(),
		Content: []byte("1 0 0 rg 0 0 2 2 re f"),
	}
	img, bounds, err := RasterizeFill(context.Background(), rectPath(0, 0, 16, 16), pageState(), pat,
		Options{Interp: contentstream.Config{Env: testEnv()}, MaxGridEdge: 0})
	if err != nil {
		t.Fatalf("RasterizeFill: %v", err)
	}
	if img.Width != 16 || img.Height != 16 {
		t.Fatalf("grid = %dx%d, want 16x16 with uncapped edges", img.Width, img.Height)
	}
	at := func(x, y float64) (byte, byte) {
		px := int(x - bounds.MinX)
		py := int(bounds.MaxY - y)
		i := py*img.Width + px
		return img.RGB[i*3], img.Alpha[i]
	}
	if r, a := at(1, 1); a != 255 || r != 255 {
		t.Errorf("first tile square: r=%d a=%d", r, a)
	}
	if r, a := at(5, 5); a != 255 || r != 255 {
		t.Errorf("second tile square: r=%d a=%d", r, a)
	}
	if _, a := at(3, 3); a != 0 {
		t.Errorf("gap between squares: a=%d, want 0", a)
	}
}

func TestUncoloredTilingUsesSelectedColor(t *testing.T) {
	pat := &semantic.TilingPattern{
		PaintType: 2,
		BBox:      semantic.Rectangle{LLX: 0, LLY: 0, URX: 4, URY: 4},
		XStep:     4, YStep: 4,
		Matrix:  coords.Identity(),
		Content: []byte("0 0 4 4 re f"),
	}
	st := pageState()
	st.Fill = contentstream.RGBColor(0, 0, 1)
	img, _, err := RasterizeFill(context.Background(), rectPath(0, 0, 8, 8), st, pat, testOptions())
	if err != nil {
		t.Fatalf("RasterizeFill: %v", err)
	}
	if img.RGB[2] != 255 || img.RGB[0] != 0 {
		t.Errorf("uncolored pattern pixel = %v, want selected blue", img.RGB[:3])
	}
}

func TestTilingCellWithImageAborts(t *testing.T) {
	pat := &semantic.TilingPattern{
		PaintType: 1,
		BBox:      semantic.Rectangle{LLX: 0, LLY: 0, URX: 4, URY: 4},
		XStep:     4, YStep: 4,
		Matrix:  coords.Identity(),
		Content: []byte("BI /W 1 /H 1 /BPC 8 /CS /G ID x\nEI"),
	}
	_, _, err := RasterizeFill(context.Background(), rectPath(0, 0, 8, 8), pageState(), pat, testOptions())
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("err = %v, want ErrUnsupported", err)
	}
}

func TestTilingCellStrokeAborts(t *testing.T) {
	pat := &semantic.TilingPattern{
		PaintType: 1,
		BBox:      semantic.Rectangle{LLX: 0, LLY: 0, URX: 4, URY: 4},
		XStep:     4, YStep: 4,
		Matrix:  coords.Identity(),
		Content: []byte("0 0 m 4 4 l S"),
	}
	_, _, err := RasterizeFill(context.Background(), rectPath(0, 0, 8, 8), pageState(), pat, testOptions())
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("err = %v, want ErrUnsupported", err)
	}
}

func TestUnsupportedShadingType(t *testing.T) {
	sh := &semantic.Shading{
		Type:       7,
		ColorSpace: semantic.DeviceColorSpace{Name: "DeviceGray"},
		Functions:  []semantic.Function{rampFunc{}},
	}
	_, _, err := RasterizeFill(context.Background(), rectPath(0, 0, 8, 8), pageState(),
		&semantic.ShadingPattern{Shading: sh, Matrix: coords.Identity()}, testOptions())
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("err = %v, want ErrUnsupported", err)
	}
}

func TestEmptyClipProducesNothing(t *testing.T) {
	st := pageState()
	st.Clip = geo.Rect{MinX: 50, MinY: 50, MaxX: 60, MaxY: 60}
	img, _, err := RasterizeFill(context.Background(), rectPath(0, 0, 10, 10), st,
		&semantic.ShadingPattern{Shading: axialShading([2]bool{true, true}), Matrix: coords.Identity()},
		testOptions())
	if err != nil {
		t.Fatalf("RasterizeFill: %v", err)
	}
	if img != nil {
		t.Errorf("expected nil image for clipped-out fill")
	}
}

func TestSoftMaskGatesFill(t *testing.T) {
	// A luminosity mask whose group paints white over the left half of
	// the fill: left pixels stay opaque, right pixels go transparent.
	mask := &semantic.SoftMask{
		Subtype: "Luminosity",
		Group: &semantic.XObject{
			Subtype:   "Form",
			BBox:      semantic.Rectangle{LLX: 0, LLY: 0, URX: 10, URY: 10},
			Matrix:    coords.Identity(),
			Data:      []byte("1 g 0 0 5 10 re f"),
			Resources: nil,
		},
	}
	st := pageState()
	st.SoftMask = &contentstream.SoftMaskState{Mask: mask, CTM: coords.Identity()}
	img, _, err := RasterizeFill(context.Background(), rectPath(0, 0, 10, 10), st,
		&semantic.ShadingPattern{Shading: axialShading([2]bool{true, true}), Matrix: coords.Identity()},
		testOptions())
	if err != nil {
		t.Fatalf("RasterizeFill: %v", err)
	}
	mid := img.Height / 2 * img.Width
	if img.Alpha[mid] != 255 {
		t.Errorf("masked-in alpha = %d, want 255", img.Alpha[mid])
	}
	if img.Alpha[mid+img.Width-1] != 0 {
		t.Errorf("masked-out alpha = %d, want 0", img.Alpha[mid+img.Width-1])
	}
}
