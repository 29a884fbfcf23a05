package fonts

import (
	"bytes"
	"math"
	"unicode"

	"github.com/go-text/typesetting/di"
	gofont "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// Program carries metrics pulled out of an embedded font program, all in
// 1/1000 em units. Advance queries are best effort: fonts whose program
// could not be parsed report ok=false everywhere and callers fall back to
// dictionary widths.
type Program struct {
	Name    string
	Ascent  float64
	Descent float64
	BBox    [4]float64

	advances    map[uint16]float64
	runeGID     func(r rune) (uint16, bool)
	runeAdvance func(r rune) (float64, bool)
}

// AdvanceForRune returns the advance width of the glyph a rune maps to.
func (p *Program) AdvanceForRune(r rune) (float64, bool) {
	if p == nil {
		return 0, false
	}
	if p.runeGID != nil {
		if gid, ok := p.runeGID(r); ok {
			if w, ok := p.advances[gid]; ok {
				return w, true
			}
		}
	}
	if p.runeAdvance != nil {
		return p.runeAdvance(r)
	}
	return 0, false
}

// AdvanceForGlyph returns the advance width of a glyph id. CID fonts with
// identity CID-to-GID mapping hit this path.
func (p *Program) AdvanceForGlyph(gid uint32) (float64, bool) {
	if p == nil || p.advances == nil || gid > math.MaxUint16 {
		return 0, false
	}
	w, ok := p.advances[uint16(gid)]
	return w, ok
}

// parseProgram dispatches on the font file flavor. It never fails hard:
// a program that cannot be parsed yields nil.
func parseProgram(data []byte) *Program {
	if len(data) < 4 {
		return nil
	}
	switch {
	case bytes.HasPrefix(data, []byte{0x00, 0x01, 0x00, 0x00}),
		bytes.HasPrefix(data, []byte("OTTO")),
		bytes.HasPrefix(data, []byte("true")),
		bytes.HasPrefix(data, []byte("ttcf")):
		if p := parseSFNTProgram(data); p != nil {
			return p
		}
		return parseTypesettingProgram(data)
	case data[0] == 0x80, bytes.HasPrefix(data, []byte("%!")):
		return parseType1Program(data)
	case data[0] == 1 && data[1] == 0:
		return parseCFFProgram(data)
	default:
		return nil
	}
}

// parseSFNTProgram extracts metrics through x/image/font/sfnt.
func parseSFNTProgram(data []byte) *Program {
	f, err := sfnt.Parse(data)
	if err != nil {
		return nil
	}
	unitsPerEm := f.UnitsPerEm()
	if unitsPerEm == 0 {
		return nil
	}
	buf := &sfnt.Buffer{}
	ppem := fixed.Int26_6(unitsPerEm << 6)

	p := &Program{advances: make(map[uint16]float64, f.NumGlyphs())}
	if name, err := f.Name(buf, sfnt.NameIDPostScript); err == nil {
		p.Name = name
	}
	if metrics, err := f.Metrics(buf, ppem, xfont.HintingNone); err == nil {
		p.Ascent = scaleFixed(metrics.Ascent, unitsPerEm)
		p.Descent = -scaleFixed(metrics.Descent, unitsPerEm)
	}
	if bounds, err := f.Bounds(buf, ppem, xfont.HintingNone); err == nil {
		p.BBox = [4]float64{
			scaleFixed(bounds.Min.X, unitsPerEm),
			scaleFixed(bounds.Min.Y, unitsPerEm),
			scaleFixed(bounds.Max.X, unitsPerEm),
			scaleFixed(bounds.Max.Y, unitsPerEm),
		}
	}
	for i := 0; i < f.NumGlyphs(); i++ {
		adv, err := f.GlyphAdvance(buf, sfnt.GlyphIndex(i), ppem, xfont.HintingNone)
		if err != nil {
			continue
		}
		p.advances[uint16(i)] = scaleFixed(adv, unitsPerEm)
	}
	p.runeGID = func(r rune) (uint16, bool) {
		gid, err := f.GlyphIndex(buf, r)
		if err != nil || gid == 0 {
			return 0, false
		}
		return uint16(gid), true
	}
	return p
}

// parseTypesettingProgram is the lenient fallback for sfnt rejects. Advances
// are measured by shaping one rune at a time at a 1000-unit em, so the
// fixed-point advance divided by 64 lands directly in 1/1000 em units.
func parseTypesettingProgram(data []byte) *Program {
	face, err := gofont.ParseTTF(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	shaper := &shaping.HarfbuzzShaper{}
	size := fixed.Int26_6(1000 * 64)
	measured := make(map[rune]float64)

	p := &Program{}
	p.runeAdvance = func(r rune) (float64, bool) {
		if w, ok := measured[r]; ok {
			return w, w > 0
		}
		script := scriptFromRune(r)
		out := shaper.Shape(shaping.Input{
			Text:      []rune{r},
			RunStart:  0,
			RunEnd:    1,
			Direction: scriptDirection(script),
			Face:      face,
			Size:      size,
			Script:    script,
			Language:  language.DefaultLanguage(),
		})
		if len(out.Glyphs) == 0 || out.Glyphs[0].GlyphID == 0 {
			measured[r] = 0
			return 0, false
		}
		w := float64(out.Glyphs[0].XAdvance) / 64.0
		measured[r] = w
		return w, w > 0
	}
	return p
}

func scriptDirection(script language.Script) di.Direction {
	switch script {
	case language.Arabic, language.Hebrew, language.Syriac, language.Thaana, language.Nko:
		return di.DirectionRTL
	default:
		return di.DirectionLTR
	}
}

func scriptFromRune(r rune) language.Script {
	switch {
	case unicode.Is(unicode.Arabic, r):
		return language.Arabic
	case unicode.Is(unicode.Hebrew, r):
		return language.Hebrew
	case unicode.Is(unicode.Cyrillic, r):
		return language.Cyrillic
	case unicode.Is(unicode.Greek, r):
		return language.Greek
	case unicode.Is(unicode.Thai, r):
		return language.Thai
	case unicode.Is(unicode.Devanagari, r):
		return language.Devanagari
	case unicode.Is(unicode.Han, r):
		return language.Han
	case unicode.Is(unicode.Hiragana, r):
		return language.Hiragana
	case unicode.Is(unicode.Katakana, r):
		return language.Katakana
	case unicode.Is(unicode.Hangul, r):
		return language.Hangul
	}
	return language.Latin
}

func parseCFFProgram(data []byte) *Program {
	cff, err := ParseCFF(data)
	if err != nil {
		return nil
	}
	p := &Program{Name: cff.Name()}
	if bbox, ok := cff.FontBBox(); ok {
		p.BBox = bbox
		p.Ascent = bbox[3]
		p.Descent = bbox[1]
	}
	if n := cff.NumGlyphs(); n > 0 && !cff.IsCID() {
		p.advances = make(map[uint16]float64, n)
		for gid := 0; gid < n && gid <= math.MaxUint16; gid++ {
			if w, ok := cff.GlyphWidth(gid); ok {
				p.advances[uint16(gid)] = w
			}
		}
	}
	return p
}

func parseType1Program(data []byte) *Program {
	m, err := parseType1(data)
	if err != nil {
		return nil
	}
	return &Program{
		Name:    m.FontName,
		Ascent:  m.Ascent,
		Descent: m.Descent,
		BBox:    m.FontBBox,
	}
}

func scaleFixed(val fixed.Int26_6, unitsPerEm sfnt.Units) float64 {
	return float64(val) * 1000.0 / (64.0 * float64(unitsPerEm))
}
