// Package semantic builds typed views over the decoded object graph:
// per-page resource dictionaries, color spaces, XObjects, patterns,
// shadings and functions. Views are constructed on demand — nothing here
// walks the whole document — and entries that fail to parse are dropped
// from their map rather than failing the page.
package semantic

import (
	"github.com/siftdocs/pdfsift/coords"
	"github.com/siftdocs/pdfsift/ir/decoded"
	"github.com/siftdocs/pdfsift/ir/raw"
)

// Rectangle is a PDF rectangle, normalized so LLX<=URX and LLY<=URY.
type Rectangle struct {
	LLX, LLY, URX, URY float64
}

// Width returns the horizontal extent.
func (r Rectangle) Width() float64 { return r.URX - r.LLX }

// Height returns the vertical extent.
func (r Rectangle) Height() float64 { return r.URY - r.LLY }

// Resources holds the typed views of one resource dictionary.
type Resources struct {
	Fonts       map[string]*Font
	ExtGStates  map[string]*ExtGState
	ColorSpaces map[string]ColorSpace
	XObjects    map[string]*XObject
	Patterns    map[string]Pattern
	Shadings    map[string]*Shading
}

// Font is the thin resource view of a font dictionary. Metric and
// encoding extraction happens in the fonts package; this carries what it
// needs plus the identity used for caching.
type Font struct {
	Subtype  string
	BaseFont string
	Dict     *raw.DictObj
	Ref      raw.ObjectRef
}

// ExtGState carries the graphics-state overrides a gs operator applies.
// Nil pointer fields were absent from the dictionary.
type ExtGState struct {
	LineWidth   *float64
	LineCap     *int
	LineJoin    *int
	MiterLimit  *float64
	DashArray   []float64
	DashPhase   float64
	DashSet     bool
	StrokeAlpha *float64 // CA
	FillAlpha   *float64 // ca
	BlendMode   string   // BM; first name when an array
	Font        *Font    // /Font [ref size]
	FontSize    float64
	SoftMask    *SoftMask
	// SoftMaskNone reports an explicit /SMask /None, which clears the mask.
	SoftMaskNone bool
}

// SoftMask is the /SMask entry of an ExtGState.
type SoftMask struct {
	Subtype  string // Alpha or Luminosity
	Group    *XObject
	Backdrop []float64 // BC
}

// ColorSpace is the closed union of supported color spaces.
type ColorSpace interface {
	// Family is the PDF family name, e.g. "DeviceRGB" or "ICCBased".
	Family() string
	// Components is the number of operands a color in this space takes.
	Components() int
}

// DeviceColorSpace is DeviceGray, DeviceRGB or DeviceCMYK.
type DeviceColorSpace struct {
	Name string
}

func (cs DeviceColorSpace) Family() string { return cs.Name }
func (cs DeviceColorSpace) Components() int {
	switch cs.Name {
	case "DeviceRGB":
		return 3
	case "DeviceCMYK":
		return 4
	default:
		return 1
	}
}

// CalGrayColorSpace is a calibrated gray space.
type CalGrayColorSpace struct {
	WhitePoint [3]float64
	Gamma      float64
}

func (cs *CalGrayColorSpace) Family() string  { return "CalGray" }
func (cs *CalGrayColorSpace) Components() int { return 1 }

// CalRGBColorSpace is a calibrated RGB space.
type CalRGBColorSpace struct {
	WhitePoint [3]float64
	Gamma      [3]float64
	Matrix     [9]float64
}

func (cs *CalRGBColorSpace) Family() string  { return "CalRGB" }
func (cs *CalRGBColorSpace) Components() int { return 3 }

// LabColorSpace is a CIE L*a*b* space.
type LabColorSpace struct {
	WhitePoint [3]float64
	Range      [4]float64 // amin amax bmin bmax
}

func (cs *LabColorSpace) Family() string  { return "Lab" }
func (cs *LabColorSpace) Components() int { return 3 }

// ICCBasedColorSpace carries the embedded profile and its declared shape.
type ICCBasedColorSpace struct {
	N         int
	Alternate ColorSpace
	Profile   []byte // decoded profile stream; may be nil
}

func (cs *ICCBasedColorSpace) Family() string  { return "ICCBased" }
func (cs *ICCBasedColorSpace) Components() int { return cs.N }

// IndexedColorSpace maps index samples through a lookup table.
type IndexedColorSpace struct {
	Base   ColorSpace
	Hival  int
	Lookup []byte
}

func (cs *IndexedColorSpace) Family() string  { return "Indexed" }
func (cs *IndexedColorSpace) Components() int { return 1 }

// SeparationColorSpace is a single named colorant.
type SeparationColorSpace struct {
	Name      string
	Alternate ColorSpace
	Tint      Function // may be nil when the transform is unsupported
}

func (cs *SeparationColorSpace) Family() string  { return "Separation" }
func (cs *SeparationColorSpace) Components() int { return 1 }

// DeviceNColorSpace is a multi-colorant space.
type DeviceNColorSpace struct {
	Names     []string
	Alternate ColorSpace
	Tint      Function
}

func (cs *DeviceNColorSpace) Family() string  { return "DeviceN" }
func (cs *DeviceNColorSpace) Components() int { return len(cs.Names) }

// PatternColorSpace selects pattern fills. Underlying is set for
// uncolored (PaintType 2) patterns and nil otherwise.
type PatternColorSpace struct {
	Underlying ColorSpace
}

func (cs *PatternColorSpace) Family() string { return "Pattern" }
func (cs *PatternColorSpace) Components() int {
	if cs.Underlying == nil {
		return 0
	}
	return cs.Underlying.Components()
}

// XObject is an image or form resource with its decoded payload.
type XObject struct {
	Subtype string // "Image" or "Form"
	Ref     raw.ObjectRef
	Dict    *raw.DictObj
	Data    []byte

	// Image fields.
	Width            int
	Height           int
	BitsPerComponent int
	ColorSpace       ColorSpace
	Decode           []float64
	ImageMask        bool
	Interpolate      bool
	SMask            *XObject
	// Mask is a stencil-mask image when the /Mask entry referenced a
	// stream; ColorKey holds the range pairs when it was an array.
	Mask     *XObject
	ColorKey []int
	// Hint carries the terminal image codec's geometry when the payload
	// bypassed unpacking (DCT/JPX).
	Hint *decoded.ImageHint

	// Form fields. Resources stays raw: it is parsed when the form is
	// executed so resource chains cannot recurse at build time.
	BBox      Rectangle
	Matrix    coords.Matrix
	Resources *raw.DictObj
	Group     *TransparencyGroup
}

// TransparencyGroup is the /Group attribute of a form XObject.
type TransparencyGroup struct {
	ColorSpace ColorSpace
	Isolated   bool
	Knockout   bool
}

// Pattern is a tiling or shading pattern resource.
type Pattern interface {
	PatternType() int
}

// TilingPattern is a PatternType 1 resource: cell content replayed over
// a step grid.
type TilingPattern struct {
	PaintType  int // 1 colored, 2 uncolored
	TilingType int
	BBox       Rectangle
	XStep      float64
	YStep      float64
	Matrix     coords.Matrix
	Resources  *raw.DictObj
	Content    []byte
	Ref        raw.ObjectRef
}

func (p *TilingPattern) PatternType() int { return 1 }

// ShadingPattern is a PatternType 2 resource.
type ShadingPattern struct {
	Shading *Shading
	Matrix  coords.Matrix
}

func (p *ShadingPattern) PatternType() int { return 2 }

// Shading is an axial (type 2) or radial (type 3) shading.
type Shading struct {
	Type       int
	ColorSpace ColorSpace
	Coords     []float64 // 4 numbers axial, 6 radial
	Domain     [2]float64
	Functions  []Function
	Extend     [2]bool
	Background []float64
}

// Eval evaluates the shading color at parameter t. Multiple 1-in 1-out
// functions act per-component.
func (s *Shading) Eval(t float64) []float64 {
	if len(s.Functions) == 1 {
		return s.Functions[0].Eval([]float64{t})
	}
	out := make([]float64, 0, len(s.Functions))
	for _, fn := range s.Functions {
		v := fn.Eval([]float64{t})
		if len(v) > 0 {
			out = append(out, v[0])
		} else {
			out = append(out, 0)
		}
	}
	return out
}
