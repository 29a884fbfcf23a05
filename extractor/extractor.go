// Package extractor assembles the document model: it walks the page
// tree, interprets each page's content and exposes the resulting typed
// elements alongside document-level features like outlines, annotations
// and embedded files.
package extractor

import (
	"context"
	"errors"
	"fmt"

	"github.com/siftdocs/pdfsift/contentstream"
	"github.com/siftdocs/pdfsift/filters"
	"github.com/siftdocs/pdfsift/fonts"
	"github.com/siftdocs/pdfsift/geo"
	"github.com/siftdocs/pdfsift/ir/decoded"
	"github.com/siftdocs/pdfsift/ir/raw"
	"github.com/siftdocs/pdfsift/ir/semantic"
	"github.com/siftdocs/pdfsift/observability"
	"github.com/siftdocs/pdfsift/security"
)

// ErrEncrypted is returned when the document carries encryption and the
// options reject it.
var ErrEncrypted = errors.New("extractor: document is encrypted")

// Options controls document extraction.
type Options struct {
	// Pages selects a 1-based page subset. Empty extracts every page.
	Pages []int

	IncludeText  bool
	IncludePaths bool
	// MinPathComplexity drops paths with fewer construction operations.
	MinPathComplexity int

	// ShadingMaxEdge caps the raster grid for pattern and shading
	// fills. 0 falls back to the fill's device extent.
	ShadingMaxEdge int
	// SoftMaskMaxEdge caps the grid soft-mask groups are rendered at.
	SoftMaskMaxEdge int
	// ClipMaskMaxSize enables per-pixel clip masks in the interpreter.
	ClipMaskMaxSize int

	// JPX decodes JPXDecode image payloads. Nil leaves them encoded.
	JPX filters.JPXDecoder

	Encryption security.EncryptionPolicy
	Limits     security.Limits
	Logger     observability.Logger
}

// DefaultOptions returns the options ExtractDocument is normally run
// with: all element kinds, bounded raster grids.
func DefaultOptions() Options {
	return Options{
		IncludeText:     true,
		IncludePaths:    true,
		ShadingMaxEdge:  256,
		SoftMaskMaxEdge: 128,
		Limits:          security.DefaultLimits(),
	}
}

// Extractor exposes structured views over a decoded document.
type Extractor struct {
	dec     *decoded.Document
	raw     *raw.Document
	env     semantic.Env
	catalog *raw.DictObj
	pages   []pageNode
	opts    Options
	log     observability.Logger

	pipeline *filters.Pipeline
	fonts    *fonts.Cache
	interp   *contentstream.Interpreter
	labels   map[int]string
}

// pageNode is one leaf of the page tree with its inherited attributes
// already resolved.
type pageNode struct {
	dict      *raw.DictObj
	resources *raw.DictObj
	mediaBox  geo.Rect
	rotate    int
}

// New builds an extractor over a decoded document.
func New(dec *decoded.Document, opts Options) (*Extractor, error) {
	if dec == nil || dec.Raw == nil {
		return nil, errors.New("extractor: decoded document required")
	}
	if dec.Raw.Encrypted && opts.Encryption == security.EncryptionReject {
		return nil, ErrEncrypted
	}
	if opts.Logger == nil {
		opts.Logger = observability.NopLogger{}
	}
	if opts.Limits == (security.Limits{}) {
		opts.Limits = security.DefaultLimits()
	}

	env := semantic.NewEnv(dec)
	catalog := rootCatalog(env, dec.Raw)
	if catalog == nil {
		return nil, errors.New("extractor: catalog not found in trailer")
	}

	e := &Extractor{
		dec:     dec,
		raw:     dec.Raw,
		env:     env,
		catalog: catalog,
		opts:    opts,
		log:     opts.Logger,
	}
	e.pages = e.collectPages()
	e.labels = e.collectPageLabels(len(e.pages))

	e.pipeline = filters.DefaultPipeline(filters.Config{
		Limits: filters.Limits{
			MaxDecompressedSize: opts.Limits.MaxDecompressedSize,
			MaxDecodeTime:       opts.Limits.MaxDecodeTime,
		},
		JPX: opts.JPX,
	})
	e.fonts = fonts.NewCache()
	e.interp = contentstream.New(contentstream.Config{
		Env:             env,
		Pipeline:        e.pipeline,
		Fonts:           e.fonts,
		Limits:          opts.Limits,
		Logger:          opts.Logger,
		ClipMaskMaxSize: opts.ClipMaskMaxSize,
	})
	return e, nil
}

// Document is the extraction result: interpreted pages plus
// document-level metadata.
type Document struct {
	Pages         []Page
	Metadata      Metadata
	EmbeddedFonts []FontSummary
}

// Page holds one interpreted page.
type Page struct {
	// PageNumber is 1-based.
	PageNumber int
	Width      float64
	Height     float64
	Rotate     int
	// Label is the page label when the catalog defines one.
	Label    string
	Elements []contentstream.Element
}

// Metadata holds document-level information gathered without content
// interpretation.
type Metadata struct {
	Version   string
	Info      raw.DocumentMetadata
	Lang      string
	Marked    bool
	Encrypted bool
	PageCount int
	// HasXMP reports a catalog /Metadata stream.
	HasXMP bool
}

// PageCount returns the number of pages without touching page content.
func (e *Extractor) PageCount() int { return len(e.pages) }

// PageDimension is a page's size after accounting for rotation.
type PageDimension struct {
	Width  float64
	Height float64
	Rotate int
}

// PageDimensions reports every page's dimensions without parsing
// content streams.
func (e *Extractor) PageDimensions() []PageDimension {
	out := make([]PageDimension, len(e.pages))
	for i, p := range e.pages {
		out[i] = pageDimension(p)
	}
	return out
}

func pageDimension(p pageNode) PageDimension {
	w, h := p.mediaBox.Width(), p.mediaBox.Height()
	if p.rotate == 90 || p.rotate == 270 {
		w, h = h, w
	}
	return PageDimension{Width: w, Height: h, Rotate: p.rotate}
}

// ExtractDocument interprets the selected pages and assembles the
// document model. Failures inside a single page are absorbed: the page
// comes back with whatever elements were produced before the failure.
func (e *Extractor) ExtractDocument(ctx context.Context) (*Document, error) {
	selected := e.selectedPages()
	doc := &Document{
		Pages:         make([]Page, 0, len(selected)),
		Metadata:      e.ExtractMetadata(),
		EmbeddedFonts: e.ExtractFonts(),
	}
	for _, idx := range selected {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		node := e.pages[idx]
		dim := pageDimension(node)
		page := Page{
			PageNumber: idx + 1,
			Width:      dim.Width,
			Height:     dim.Height,
			Rotate:     node.rotate,
			Label:      e.labels[idx],
		}
		elems, err := e.extractPage(ctx, node)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			e.log.Warn("page extraction failed",
				observability.Int("page", idx+1),
				observability.Error("err", err))
		}
		page.Elements = elems
		doc.Pages = append(doc.Pages, page)
	}
	return doc, nil
}

// ExtractMetadata gathers document-level metadata.
func (e *Extractor) ExtractMetadata() Metadata {
	m := Metadata{
		Version:   e.raw.Version,
		Info:      e.raw.Metadata,
		Encrypted: e.raw.Encrypted,
		PageCount: len(e.pages),
	}
	if lang, ok := stringFromDict(e.catalog, "Lang"); ok {
		m.Lang = lang
	}
	if mark := e.dict(e.value(e.catalog, "MarkInfo")); mark != nil {
		if v, ok := boolFromDict(mark, "Marked"); ok {
			m.Marked = v
		}
	}
	if ref, ok := e.value(e.catalog, "Metadata").(raw.RefObj); ok {
		if _, ok := e.env.StreamData(ref.Ref()); ok {
			m.HasXMP = true
		}
	} else if _, ok := e.env.Resolve(e.value(e.catalog, "Metadata")).(*raw.StreamObj); ok {
		m.HasXMP = true
	}
	return m
}

// ExtractPageLabels returns the page-label map, keyed by 0-based page
// index.
func (e *Extractor) ExtractPageLabels() map[int]string {
	out := make(map[int]string, len(e.labels))
	for k, v := range e.labels {
		out[k] = v
	}
	return out
}

func (e *Extractor) selectedPages() []int {
	if len(e.opts.Pages) == 0 {
		out := make([]int, len(e.pages))
		for i := range out {
			out[i] = i
		}
		return out
	}
	var out []int
	for _, n := range e.opts.Pages {
		if n >= 1 && n <= len(e.pages) {
			out = append(out, n-1)
		}
	}
	return out
}

// collectPages walks the page tree depth-first, carrying the
// inheritable attributes down to each leaf.
func (e *Extractor) collectPages() []pageNode {
	rootObj := e.value(e.catalog, "Pages")
	var out []pageNode
	inherited := pageNode{mediaBox: geo.Rect{MinX: 0, MinY: 0, MaxX: 612, MaxY: 792}}
	e.walkPageTree(rootObj, inherited, &out, 0)
	return out
}

func (e *Extractor) walkPageTree(obj raw.Object, inherited pageNode, out *[]pageNode, depth int) {
	if depth > 64 {
		return
	}
	dict := e.dict(obj)
	if dict == nil {
		return
	}
	node := inherited
	node.dict = dict
	if res := e.dict(e.value(dict, "Resources")); res != nil {
		node.resources = res
	}
	if box := e.rect(e.value(dict, "MediaBox")); !box.Empty() {
		node.mediaBox = box
	}
	if rot, ok := intFromObject(e.env.Resolve(e.value(dict, "Rotate"))); ok {
		node.rotate = ((rot % 360) + 360) % 360
	}

	typ, _ := nameFromDict(dict, "Type")
	switch typ {
	case "Pages":
		if kids := e.array(e.value(dict, "Kids")); kids != nil {
			for _, kid := range kids.Items {
				e.walkPageTree(kid, node, out, depth+1)
			}
		}
		return
	case "Page":
		*out = append(*out, node)
		return
	}
	// Tolerate a missing /Type on leaves that clearly hold content.
	if _, ok := dict.Get(raw.NameLiteral("Contents")); ok {
		*out = append(*out, node)
	}
}

func (e *Extractor) collectPageLabels(pageCount int) map[int]string {
	labels := make(map[int]string)
	pl := e.dict(e.value(e.catalog, "PageLabels"))
	if pl == nil {
		return labels
	}
	nums := e.array(e.value(pl, "Nums"))
	if nums == nil {
		return labels
	}
	for i := 0; i+1 < len(nums.Items); i += 2 {
		idx, ok := intFromObject(e.env.Resolve(nums.Items[i]))
		if !ok {
			continue
		}
		entry := e.dict(nums.Items[i+1])
		if entry == nil {
			continue
		}
		prefix, _ := stringFromDict(entry, "P")
		start := 1
		if st, ok := intFromObject(e.env.Resolve(e.value(entry, "St"))); ok {
			start = st
		}
		style, _ := nameFromDict(entry, "S")
		for p := idx; p < pageCount; p++ {
			if _, exists := labels[p]; exists {
				continue
			}
			labels[p] = prefix + formatPageNumber(style, start+(p-idx))
		}
	}
	return labels
}

func formatPageNumber(style string, n int) string {
	switch style {
	case "D":
		return fmt.Sprintf("%d", n)
	case "r":
		return lowerRoman(n)
	case "R":
		return upperRoman(n)
	case "a":
		return alphaLabel(n, 'a')
	case "A":
		return alphaLabel(n, 'A')
	case "":
		// Prefix-only ranges carry no numeric portion.
		return ""
	}
	return fmt.Sprintf("%d", n)
}

func upperRoman(n int) string {
	if n <= 0 {
		return ""
	}
	vals := []int{1000, 900, 500, 400, 100, 90, 50, 40, 10, 9, 5, 4, 1}
	syms := []string{"M", "CM", "D", "CD", "C", "XC", "L", "XL", "X", "IX", "V", "IV", "I"}
	out := ""
	for i, v := range vals {
		for n >= v {
			out += syms[i]
			n -= v
		}
	}
	return out
}

func lowerRoman(n int) string {
	out := []byte(upperRoman(n))
	for i := range out {
		out[i] += 'a' - 'A'
	}
	return string(out)
}

func alphaLabel(n int, base byte) string {
	if n <= 0 {
		return ""
	}
	// 1..26 = a..z, 27..52 = aa..zz, and so on.
	letter := base + byte((n-1)%26)
	count := (n-1)/26 + 1
	out := make([]byte, count)
	for i := range out {
		out[i] = letter
	}
	return string(out)
}

// rootCatalog resolves the trailer's /Root dictionary.
func rootCatalog(env semantic.Env, doc *raw.Document) *raw.DictObj {
	if doc.Trailer == nil {
		return nil
	}
	rootObj, ok := doc.Trailer.Get(raw.NameLiteral("Root"))
	if !ok {
		return nil
	}
	if dict, ok := env.Resolve(rootObj).(*raw.DictObj); ok {
		return dict
	}
	return nil
}

// value fetches a dictionary entry without resolving it.
func (e *Extractor) value(dict raw.Dictionary, key string) raw.Object {
	if dict == nil {
		return nil
	}
	val, _ := dict.Get(raw.NameLiteral(key))
	return val
}

// dict resolves obj to a dictionary, accepting stream dictionaries.
func (e *Extractor) dict(obj raw.Object) *raw.DictObj {
	if obj == nil {
		return nil
	}
	switch v := e.env.Resolve(obj).(type) {
	case *raw.DictObj:
		return v
	case *raw.StreamObj:
		return v.Dict
	}
	return nil
}

// array resolves obj to an array.
func (e *Extractor) array(obj raw.Object) *raw.ArrayObj {
	if obj == nil {
		return nil
	}
	if arr, ok := e.env.Resolve(obj).(*raw.ArrayObj); ok {
		return arr
	}
	return nil
}

// rect resolves a 4-number box array.
func (e *Extractor) rect(obj raw.Object) geo.Rect {
	arr := e.array(obj)
	if arr == nil || len(arr.Items) < 4 {
		return geo.Rect{}
	}
	var v [4]float64
	for i := 0; i < 4; i++ {
		f, ok := floatFromObject(e.env.Resolve(arr.Items[i]))
		if !ok {
			return geo.Rect{}
		}
		v[i] = f
	}
	r := geo.Rect{MinX: v[0], MinY: v[1], MaxX: v[2], MaxY: v[3]}
	if r.MinX > r.MaxX {
		r.MinX, r.MaxX = r.MaxX, r.MinX
	}
	if r.MinY > r.MaxY {
		r.MinY, r.MaxY = r.MaxY, r.MinY
	}
	return r
}

func nameFromDict(dict raw.Dictionary, key string) (string, bool) {
	if dict == nil {
		return "", false
	}
	val, ok := dict.Get(raw.NameLiteral(key))
	if !ok {
		return "", false
	}
	return nameFromObject(val)
}

func stringFromDict(dict raw.Dictionary, key string) (string, bool) {
	if dict == nil {
		return "", false
	}
	val, ok := dict.Get(raw.NameLiteral(key))
	if !ok {
		return "", false
	}
	return stringFromObject(val)
}

func boolFromDict(dict raw.Dictionary, key string) (bool, bool) {
	val, ok := dict.Get(raw.NameLiteral(key))
	if !ok {
		return false, false
	}
	if b, ok := val.(raw.Boolean); ok {
		return b.Value(), true
	}
	return false, false
}

func nameFromObject(obj raw.Object) (string, bool) {
	if v, ok := obj.(raw.Name); ok {
		return v.Value(), true
	}
	return "", false
}

func stringFromObject(obj raw.Object) (string, bool) {
	if v, ok := obj.(raw.StringObj); ok {
		return v.Text(), true
	}
	if v, ok := obj.(raw.String); ok {
		return string(v.Value()), true
	}
	return "", false
}

func intFromObject(obj raw.Object) (int, bool) {
	if v, ok := obj.(raw.Number); ok {
		return int(v.Int()), true
	}
	return 0, false
}

func floatFromObject(obj raw.Object) (float64, bool) {
	if v, ok := obj.(raw.Number); ok {
		return v.Float(), true
	}
	return 0, false
}
