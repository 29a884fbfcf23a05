// Package fonts builds the per-font lookup tables the content interpreter
// needs to decode show-text strings: code segmentation, code-to-Unicode
// mapping, per-code advance widths, and vertical metrics. Everything is
// read-side: font programs are parsed only for fallback metrics, never for
// outlines.
package fonts

import (
	"context"
	"errors"
	"strings"

	"github.com/siftdocs/pdfsift/coords"
	"github.com/siftdocs/pdfsift/ir/raw"
	"github.com/siftdocs/pdfsift/ir/semantic"
)

// Char is one decoded unit of a show-text string.
type Char struct {
	Code  uint32  // character code as read from the string
	Text  string  // Unicode text, best effort
	Width float64 // advance in 1/1000 em
	Bytes int     // bytes consumed from the string
}

// Type3Font carries what glyph expansion needs: the font matrix, the glyph
// procedure streams (unresolved), and the resource dictionary the procs run
// against.
type Type3Font struct {
	Matrix    coords.Matrix
	Procs     map[string]raw.Object
	Resources *raw.DictObj
}

// FontInfo is the interpreter's view of one font resource.
type FontInfo struct {
	BaseFont  string
	Subtype   string
	Bold      bool
	Italic    bool
	CodeBytes int // fixed code width; 0 means variable via CMap codespaces
	Ascent    float64
	Descent   float64
	CapHeight float64

	CID        bool
	Registry   string
	Ordering   string
	Supplement int
	Vertical   bool

	Type3 *Type3Font

	defaultWidth float64
	widths       map[uint32]float64 // keyed by code (simple) or CID (composite)
	encoding     *CMap              // code→CID map for composite fonts; nil when identity
	toUnicode    *CMap
	runes        map[byte]rune
	glyphNames   map[byte]string
	cidToGID     []byte
	program      *Program
}

// Build assembles a FontInfo from a font dictionary. Missing or malformed
// pieces degrade to fallbacks; only a structurally unusable dictionary is an
// error.
func Build(ctx context.Context, dict *raw.DictObj, env semantic.Env) (*FontInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if dict == nil {
		return nil, errors.New("font dictionary is missing")
	}

	f := &FontInfo{
		Subtype:      dictString(env, dict, "Subtype"),
		BaseFont:     dictString(env, dict, "BaseFont"),
		CodeBytes:    1,
		defaultWidth: 500,
		widths:       make(map[uint32]float64),
	}

	var descriptor *raw.DictObj
	switch f.Subtype {
	case "Type0":
		d, err := f.buildType0(env, dict)
		if err != nil {
			return nil, err
		}
		descriptor = d
	case "Type3":
		f.buildType3(env, dict)
		descriptor = dictDict(env, dict, "FontDescriptor")
	default:
		f.buildSimple(env, dict)
		descriptor = dictDict(env, dict, "FontDescriptor")
	}

	if tu, ok := streamBytes(env, dict, "ToUnicode"); ok {
		if cm, err := parseCMap(tu); err == nil {
			f.toUnicode = cm
		}
	}

	f.applyDescriptor(env, descriptor)
	f.applyNameHeuristics()
	if f.Ascent == 0 && f.Descent == 0 {
		if f.program != nil && (f.program.Ascent != 0 || f.program.Descent != 0) {
			f.Ascent, f.Descent = f.program.Ascent, f.program.Descent
		} else {
			f.Ascent, f.Descent = 800, -200
		}
	}
	if f.CapHeight == 0 {
		f.CapHeight = 0.7 * f.Ascent
	}
	return f, nil
}

// Chars splits a show-text string into decoded characters. Truncated
// trailing bytes still yield a (short) final code so no input is dropped.
func (f *FontInfo) Chars(s []byte) []Char {
	if len(s) == 0 {
		return nil
	}
	out := make([]Char, 0, len(s))
	for i := 0; i < len(s); {
		n := f.codeLen(s[i:])
		if n > len(s)-i {
			n = len(s) - i
		}
		var code uint32
		for j := 0; j < n; j++ {
			code = code<<8 | uint32(s[i+j])
		}
		out = append(out, Char{
			Code:  code,
			Text:  f.Text(code),
			Width: f.Width(code),
			Bytes: n,
		})
		i += n
	}
	return out
}

// Width returns the advance for a code in 1/1000 em.
func (f *FontInfo) Width(code uint32) float64 {
	if f.CID {
		cid := f.cidFor(code)
		if w, ok := f.widths[cid]; ok {
			return w
		}
		if f.program != nil {
			if w, ok := f.program.AdvanceForGlyph(f.gidFor(cid)); ok {
				return w
			}
		}
		return f.defaultWidth
	}
	if w, ok := f.widths[code]; ok {
		return w
	}
	if f.program != nil && code <= 0xFF {
		r, ok := f.runes[byte(code)]
		if !ok {
			r = rune(code)
		}
		if w, ok := f.program.AdvanceForRune(r); ok {
			return w
		}
	}
	return f.defaultWidth
}

// Text returns the Unicode text for a code: ToUnicode first, then the simple
// encoding table, then the code itself as a rune.
func (f *FontInfo) Text(code uint32) string {
	if f.toUnicode != nil {
		if s, ok := f.toUnicode.Lookup(code); ok {
			return s
		}
	}
	if !f.CID && code <= 0xFF {
		if r, ok := f.runes[byte(code)]; ok {
			return string(r)
		}
	}
	return string(rune(code))
}

// GlyphProc returns the Type 3 glyph procedure stream for a code.
func (f *FontInfo) GlyphProc(code uint32) (raw.Object, bool) {
	if f.Type3 == nil || code > 0xFF {
		return nil, false
	}
	name, ok := f.glyphNames[byte(code)]
	if !ok {
		return nil, false
	}
	obj, ok := f.Type3.Procs[name]
	return obj, ok
}

func (f *FontInfo) codeLen(b []byte) int {
	if f.encoding != nil {
		if n := f.encoding.CodeLen(b); n > 0 {
			return n
		}
	}
	if f.CodeBytes > 0 {
		return f.CodeBytes
	}
	return 1
}

func (f *FontInfo) cidFor(code uint32) uint32 {
	if f.encoding != nil {
		if cid, ok := f.encoding.CID(code); ok {
			return cid
		}
	}
	return code
}

func (f *FontInfo) gidFor(cid uint32) uint32 {
	if f.cidToGID == nil {
		return cid
	}
	off := int(cid) * 2
	if off+1 >= len(f.cidToGID) {
		return 0
	}
	return uint32(f.cidToGID[off])<<8 | uint32(f.cidToGID[off+1])
}

// buildType0 wires the composite-font pieces: the code→CID encoding, the
// descendant's CID widths, and the CIDSystemInfo ordering. Returns the
// descendant's font descriptor.
func (f *FontInfo) buildType0(env semantic.Env, dict *raw.DictObj) (*raw.DictObj, error) {
	f.CID = true
	f.defaultWidth = 1000
	f.CodeBytes = 2

	switch enc := resolve(env, dict, "Encoding").(type) {
	case raw.NameObj:
		name := enc.Value()
		f.Vertical = strings.HasSuffix(name, "-V") || name == "V"
	case *raw.StreamObj:
		if data, ok := streamBytes(env, dict, "Encoding"); ok {
			if cm, err := parseCMap(data); err == nil {
				f.encoding = cm
				if cm.HasCodespaces() {
					f.CodeBytes = 0
				}
				f.Vertical = cm.WMode() == 1
			}
		}
	}

	desc := descendantFont(env, dict)
	if desc == nil {
		return nil, errors.New("composite font has no descendant")
	}
	if si := dictDict(env, desc, "CIDSystemInfo"); si != nil {
		if reg, ok := resolve(env, si, "Registry").(raw.StringObj); ok {
			f.Registry = string(reg.Value())
		}
		if ord, ok := resolve(env, si, "Ordering").(raw.StringObj); ok {
			f.Ordering = string(ord.Value())
		}
		f.Supplement = int(dictNumber(env, si, "Supplement", 0))
	}
	f.defaultWidth = dictNumber(env, desc, "DW", 1000)
	if w, ok := resolve(env, desc, "W").(*raw.ArrayObj); ok {
		f.parseCIDWidths(env, w)
	}
	if m, ok := resolve(env, desc, "CIDToGIDMap").(raw.RefObj); ok {
		if data, ok := env.StreamData(m.Ref()); ok {
			f.cidToGID = data
		}
	}
	return dictDict(env, desc, "FontDescriptor"), nil
}

// parseCIDWidths understands both /W forms: c [w...] and cFirst cLast w.
func (f *FontInfo) parseCIDWidths(env semantic.Env, arr *raw.ArrayObj) {
	items := arr.Items
	for i := 0; i < len(items); {
		first, ok := numberValue(env.Resolve(items[i]))
		if !ok {
			return
		}
		i++
		if i >= len(items) {
			return
		}
		if list, ok := env.Resolve(items[i]).(*raw.ArrayObj); ok {
			for j, wv := range list.Items {
				if w, ok := numberValue(env.Resolve(wv)); ok {
					f.widths[uint32(first)+uint32(j)] = w
				}
			}
			i++
			continue
		}
		last, ok := numberValue(env.Resolve(items[i]))
		if !ok {
			return
		}
		i++
		if i >= len(items) {
			return
		}
		w, ok := numberValue(env.Resolve(items[i]))
		if !ok {
			return
		}
		i++
		span := int64(last) - int64(first)
		if span < 0 || span > 65535 {
			continue
		}
		for c := uint32(first); c <= uint32(last); c++ {
			f.widths[c] = w
		}
	}
}

func (f *FontInfo) buildSimple(env semantic.Env, dict *raw.DictObj) {
	f.parseSimpleWidths(env, dict, 1)
	f.parseSimpleEncoding(env, dict)
}

func (f *FontInfo) buildType3(env semantic.Env, dict *raw.DictObj) {
	t3 := &Type3Font{Matrix: coords.Matrix{0.001, 0, 0, 0.001, 0, 0}}
	if m, ok := resolve(env, dict, "FontMatrix").(*raw.ArrayObj); ok && m.Len() == 6 {
		for i := 0; i < 6; i++ {
			obj, _ := m.Get(i)
			if v, ok := numberValue(env.Resolve(obj)); ok {
				t3.Matrix[i] = v
			}
		}
	}
	t3.Procs = make(map[string]raw.Object)
	if procs := dictDict(env, dict, "CharProcs"); procs != nil {
		for _, key := range procs.Keys() {
			if obj, ok := procs.Get(key); ok {
				t3.Procs[key.Value()] = obj
			}
		}
	}
	t3.Resources = dictDict(env, dict, "Resources")
	f.Type3 = t3

	// Type 3 widths are in glyph space. Normalizing by the matrix x-scale
	// keeps the interpreter's width/1000 displacement uniform across fonts.
	scale := t3.Matrix[0]
	if scale == 0 {
		scale = 0.001
	}
	f.parseSimpleWidths(env, dict, scale*1000)
	f.parseSimpleEncoding(env, dict)
	f.defaultWidth = 0
}

func (f *FontInfo) parseSimpleWidths(env semantic.Env, dict *raw.DictObj, scale float64) {
	arr, ok := resolve(env, dict, "Widths").(*raw.ArrayObj)
	if !ok {
		return
	}
	first := int(dictNumber(env, dict, "FirstChar", 0))
	if first < 0 {
		first = 0
	}
	for i, item := range arr.Items {
		if first+i > 0xFF {
			break
		}
		if w, ok := numberValue(env.Resolve(item)); ok {
			f.widths[uint32(first+i)] = w * scale
		}
	}
}

// parseSimpleEncoding builds the byte→rune table from the base encoding and
// /Differences. Symbolic fonts with no /Encoding entry keep a nil table so
// text decode falls through to the raw code.
func (f *FontInfo) parseSimpleEncoding(env semantic.Env, dict *raw.DictObj) {
	switch enc := resolve(env, dict, "Encoding").(type) {
	case raw.NameObj:
		f.runes = encodingTable(enc.Value())
	case *raw.DictObj:
		base := "StandardEncoding"
		if b, ok := resolve(env, enc, "BaseEncoding").(raw.NameObj); ok {
			base = b.Value()
		}
		f.runes = encodingTable(base)
		if diff, ok := resolve(env, enc, "Differences").(*raw.ArrayObj); ok {
			f.applyDifferences(env, diff)
		}
	default:
		if f.Type3 == nil {
			f.runes = encodingTable("StandardEncoding")
		}
	}
}

func (f *FontInfo) applyDifferences(env semantic.Env, diff *raw.ArrayObj) {
	if f.runes == nil {
		f.runes = make(map[byte]rune)
	}
	if f.glyphNames == nil {
		f.glyphNames = make(map[byte]string)
	}
	code := 0
	for _, item := range diff.Items {
		switch v := env.Resolve(item).(type) {
		case raw.NumberObj:
			code = int(v.Int())
		case raw.NameObj:
			if code >= 0 && code <= 0xFF {
				name := v.Value()
				f.glyphNames[byte(code)] = name
				if r, ok := runeForGlyphName(name); ok {
					f.runes[byte(code)] = r
				} else {
					delete(f.runes, byte(code))
				}
			}
			code++
		}
	}
}

// Descriptor flag bits from the font descriptor spec.
const (
	flagItalic    = 1 << 6
	flagForceBold = 1 << 18
)

func (f *FontInfo) applyDescriptor(env semantic.Env, desc *raw.DictObj) {
	if desc == nil {
		return
	}
	flags := int(dictNumber(env, desc, "Flags", 0))
	f.Bold = flags&flagForceBold != 0
	f.Italic = flags&flagItalic != 0 || dictNumber(env, desc, "ItalicAngle", 0) != 0
	f.Ascent = dictNumber(env, desc, "Ascent", 0)
	f.Descent = dictNumber(env, desc, "Descent", 0)
	f.CapHeight = dictNumber(env, desc, "CapHeight", 0)
	if mw := dictNumber(env, desc, "MissingWidth", 0); mw != 0 && !f.CID {
		f.defaultWidth = mw
	}
	for _, key := range []string{"FontFile", "FontFile2", "FontFile3"} {
		if data, ok := streamBytes(env, desc, key); ok {
			if p := parseProgram(data); p != nil {
				f.program = p
			}
			break
		}
	}
}

func (f *FontInfo) applyNameHeuristics() {
	name := strings.ToLower(stripSubsetTag(f.BaseFont))
	if strings.Contains(name, "bold") {
		f.Bold = true
	}
	if strings.Contains(name, "italic") || strings.Contains(name, "oblique") {
		f.Italic = true
	}
}

// stripSubsetTag removes the "ABCDEF+" prefix embedded subsets carry.
func stripSubsetTag(name string) string {
	if len(name) > 7 && name[6] == '+' {
		for i := 0; i < 6; i++ {
			if name[i] < 'A' || name[i] > 'Z' {
				return name
			}
		}
		return name[7:]
	}
	return name
}

func descendantFont(env semantic.Env, dict *raw.DictObj) *raw.DictObj {
	arr, ok := resolve(env, dict, "DescendantFonts").(*raw.ArrayObj)
	if !ok || arr.Len() == 0 {
		return nil
	}
	obj, _ := arr.Get(0)
	if d, ok := env.Resolve(obj).(*raw.DictObj); ok {
		return d
	}
	return nil
}

// Cache memoizes built FontInfo values by indirect reference so repeated
// page resources reuse one parse.
type Cache struct {
	m map[raw.ObjectRef]*FontInfo
}

func NewCache() *Cache {
	return &Cache{m: make(map[raw.ObjectRef]*FontInfo)}
}

// Load builds (or returns the cached) FontInfo for a font resource. Fonts
// referenced directly, without an indirect reference, are built each time.
func (c *Cache) Load(ctx context.Context, fnt *semantic.Font, env semantic.Env) (*FontInfo, error) {
	if fnt == nil {
		return nil, errors.New("font resource is missing")
	}
	zero := raw.ObjectRef{}
	if fnt.Ref != zero {
		if fi, ok := c.m[fnt.Ref]; ok {
			return fi, nil
		}
	}
	fi, err := Build(ctx, fnt.Dict, env)
	if err != nil {
		return nil, err
	}
	if fnt.Ref != zero {
		c.m[fnt.Ref] = fi
	}
	return fi, nil
}

// Dictionary access helpers. All of them resolve indirect references first.

func resolve(env semantic.Env, dict *raw.DictObj, key string) raw.Object {
	obj, ok := dict.Get(raw.NameLiteral(key))
	if !ok {
		return nil
	}
	return env.Resolve(obj)
}

func dictString(env semantic.Env, dict *raw.DictObj, key string) string {
	if n, ok := resolve(env, dict, key).(raw.NameObj); ok {
		return n.Value()
	}
	return ""
}

func dictNumber(env semantic.Env, dict *raw.DictObj, key string, def float64) float64 {
	if v, ok := numberValue(resolve(env, dict, key)); ok {
		return v
	}
	return def
}

func dictDict(env semantic.Env, dict *raw.DictObj, key string) *raw.DictObj {
	if d, ok := resolve(env, dict, key).(*raw.DictObj); ok {
		return d
	}
	return nil
}

func numberValue(obj raw.Object) (float64, bool) {
	if n, ok := obj.(raw.NumberObj); ok {
		return n.Float(), true
	}
	return 0, false
}

// streamBytes fetches the decoded payload of a stream-valued entry. Indirect
// streams come from the decoded document; direct streams fall back to their
// raw payload.
func streamBytes(env semantic.Env, dict *raw.DictObj, key string) ([]byte, bool) {
	obj, ok := dict.Get(raw.NameLiteral(key))
	if !ok {
		return nil, false
	}
	if ref, ok := obj.(raw.RefObj); ok {
		if _, isStream := env.Resolve(obj).(*raw.StreamObj); !isStream {
			return nil, false
		}
		return env.StreamData(ref.Ref())
	}
	if st, ok := obj.(*raw.StreamObj); ok {
		return st.Data, true
	}
	return nil, false
}
