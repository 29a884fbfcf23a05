package contentstream

import (
	"github.com/siftdocs/pdfsift/coords"
	"github.com/siftdocs/pdfsift/fonts"
	"github.com/siftdocs/pdfsift/geo"
	"github.com/siftdocs/pdfsift/ir/semantic"
)

// Color is a color value in a specific space. Components are a fresh
// slice per state copy so frames never alias.
type Color struct {
	Space      semantic.ColorSpace
	Components []float64
}

// GrayColor builds a DeviceGray color.
func GrayColor(v float64) Color {
	return Color{Space: semantic.DeviceColorSpace{Name: "DeviceGray"}, Components: []float64{v}}
}

// RGBColor builds a DeviceRGB color.
func RGBColor(r, g, b float64) Color {
	return Color{Space: semantic.DeviceColorSpace{Name: "DeviceRGB"}, Components: []float64{r, g, b}}
}

// CMYKColor builds a DeviceCMYK color.
func CMYKColor(c, m, y, k float64) Color {
	return Color{Space: semantic.DeviceColorSpace{Name: "DeviceCMYK"}, Components: []float64{c, m, y, k}}
}

// clone deep-copies the component slice.
func (c Color) clone() Color {
	out := c
	out.Components = append([]float64(nil), c.Components...)
	return out
}

// RGB8 converts the color to 8-bit sRGB for display. Only the component
// values are used; calibrated spaces fall back to their device
// interpretation here — imaging handles full colorimetric conversion for
// image samples.
func (c Color) RGB8() (uint8, uint8, uint8) {
	comps := c.Components
	n := 0
	if c.Space != nil {
		n = c.Space.Components()
	} else {
		n = len(comps)
	}
	to8 := func(v float64) uint8 {
		if v <= 0 {
			return 0
		}
		if v >= 1 {
			return 255
		}
		return uint8(v*255 + 0.5)
	}
	switch {
	case n >= 4 && len(comps) >= 4:
		r := (1 - comps[0]) * (1 - comps[3])
		g := (1 - comps[1]) * (1 - comps[3])
		b := (1 - comps[2]) * (1 - comps[3])
		return to8(r), to8(g), to8(b)
	case n == 3 && len(comps) >= 3:
		return to8(comps[0]), to8(comps[1]), to8(comps[2])
	case len(comps) >= 1:
		v := to8(comps[0])
		return v, v, v
	}
	return 0, 0, 0
}

// TextState is the text-related portion of the graphics state. The text
// and line matrices live in the interpreter, scoped to BT/ET.
type TextState struct {
	Font       *fonts.FontInfo
	FontName   string
	FontSize   float64
	CharSpace  float64 // Tc
	WordSpace  float64 // Tw
	Scale      float64 // Tz, percent
	Leading    float64 // TL
	Rise       float64 // Ts
	RenderMode TextRenderMode
}

// SoftMaskState carries the /SMask of the active ExtGState together with
// the CTM at the moment gs installed it, which is the space the mask's
// BBox lives in.
type SoftMaskState struct {
	Mask *semantic.SoftMask
	CTM  coords.Matrix
}

// GraphicsState is the value-copied interpreter state. Push copies the
// whole struct; slices and maps inside are cloned so no two stack frames
// alias mutable data.
type GraphicsState struct {
	CTM coords.Matrix

	Fill   Color
	Stroke Color
	// FillPattern/StrokePattern are set when scn/SCN selected a pattern;
	// the color is then decided at paint time.
	FillPattern   semantic.Pattern
	StrokePattern semantic.Pattern

	LineWidth  float64
	LineCap    LineCap
	LineJoin   LineJoin
	MiterLimit float64
	DashArray  []float64
	DashPhase  float64

	FillAlpha   float64
	StrokeAlpha float64
	BlendMode   string
	SoftMask    *SoftMaskState

	// Clip is the device-space clip bounding box; ClipMask optionally
	// refines it per pixel when clip-mask rasterization is enabled.
	Clip     geo.Rect
	ClipMask *geo.CoverageMask

	Text TextState
}

// NewGraphicsState returns the default state for a page with the given
// device-space bounds.
func NewGraphicsState(pageBox geo.Rect) GraphicsState {
	return GraphicsState{
		CTM:         coords.Identity(),
		Fill:        GrayColor(0),
		Stroke:      GrayColor(0),
		LineWidth:   1,
		MiterLimit:  10,
		FillAlpha:   1,
		StrokeAlpha: 1,
		Clip:        pageBox,
		Text:        TextState{Scale: 100},
	}
}

// Clone returns a deep value copy safe to mutate independently.
func (gs GraphicsState) Clone() GraphicsState {
	out := gs
	out.Fill = gs.Fill.clone()
	out.Stroke = gs.Stroke.clone()
	out.DashArray = append([]float64(nil), gs.DashArray...)
	// ClipMask and SoftMask are immutable once installed; sharing the
	// pointer across frames is safe.
	return out
}

// Transform maps a user-space point through the CTM to device space.
func (gs *GraphicsState) Transform(x, y float64) geo.Point {
	p := gs.CTM.Transform(coords.Point{X: x, Y: y})
	return geo.Point{X: p.X, Y: p.Y}
}
