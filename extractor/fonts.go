package extractor

import (
	"sort"

	"github.com/siftdocs/pdfsift/ir/raw"
)

// FontSummary groups a font dictionary referenced by page resources.
type FontSummary struct {
	ResourceName string
	BaseFont     string
	Subtype      string
	Encoding     string
	// Embedded reports a FontFile stream in the descriptor.
	Embedded     bool
	HasToUnicode bool
	// Pages lists the 0-based pages referencing the font.
	Pages []int
}

// ExtractFonts reports the distinct fonts referenced by pages and where
// they are used.
func (e *Extractor) ExtractFonts() []FontSummary {
	fontMap := make(map[*raw.DictObj]*FontSummary)
	for idx, page := range e.pages {
		fontDict := e.dict(e.value(page.resources, "Font"))
		if fontDict == nil {
			continue
		}
		for name, obj := range fontDict.KV {
			dict := e.dict(obj)
			if dict == nil {
				continue
			}
			info, ok := fontMap[dict]
			if !ok {
				info = e.fontSummary(name, dict)
				fontMap[dict] = info
			}
			if !containsInt(info.Pages, idx) {
				info.Pages = append(info.Pages, idx)
			}
		}
	}
	out := make([]FontSummary, 0, len(fontMap))
	for _, info := range fontMap {
		sort.Ints(info.Pages)
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BaseFont == out[j].BaseFont {
			return out[i].ResourceName < out[j].ResourceName
		}
		return out[i].BaseFont < out[j].BaseFont
	})
	return out
}

func (e *Extractor) fontSummary(name string, dict *raw.DictObj) *FontSummary {
	info := &FontSummary{ResourceName: name}
	info.BaseFont, _ = nameFromDict(dict, "BaseFont")
	info.Subtype, _ = nameFromDict(dict, "Subtype")
	if enc, ok := nameFromDict(dict, "Encoding"); ok {
		info.Encoding = enc
	}
	info.HasToUnicode = e.hasStream(e.value(dict, "ToUnicode"))

	desc := e.dict(e.value(dict, "FontDescriptor"))
	if desc == nil {
		// Composite fonts keep the descriptor on the descendant.
		if descendants := e.array(e.value(dict, "DescendantFonts")); descendants != nil && len(descendants.Items) > 0 {
			if df := e.dict(descendants.Items[0]); df != nil {
				desc = e.dict(e.value(df, "FontDescriptor"))
			}
		}
	}
	if desc != nil {
		for _, key := range []string{"FontFile", "FontFile2", "FontFile3"} {
			if e.hasStream(e.value(desc, key)) {
				info.Embedded = true
				break
			}
		}
	}
	return info
}

func (e *Extractor) hasStream(obj raw.Object) bool {
	if obj == nil {
		return false
	}
	if ref, ok := obj.(raw.RefObj); ok {
		if _, ok := e.env.StreamData(ref.Ref()); ok {
			return true
		}
	}
	_, ok := e.env.Resolve(obj).(*raw.StreamObj)
	return ok
}

func containsInt(values []int, v int) bool {
	for _, existing := range values {
		if existing == v {
			return true
		}
	}
	return false
}
