package extractor

import "github.com/siftdocs/pdfsift/ir/raw"

// Annotation summarizes a page annotation.
type Annotation struct {
	// Page is the 0-based page index.
	Page     int
	Subtype  string
	Rect     [4]float64
	Contents string
	URI      string
	Flags    int
	Color    []float64
}

// ExtractAnnotations returns annotations found across all pages.
func (e *Extractor) ExtractAnnotations() []Annotation {
	var annots []Annotation
	for idx, page := range e.pages {
		arr := e.array(e.value(page.dict, "Annots"))
		if arr == nil {
			continue
		}
		for _, obj := range arr.Items {
			dict := e.dict(obj)
			if dict == nil {
				continue
			}
			info := Annotation{Page: idx}
			info.Subtype, _ = nameFromDict(dict, "Subtype")
			info.Rect = e.rectValues(e.value(dict, "Rect"))
			info.Contents, _ = stringFromDict(dict, "Contents")
			if flags, ok := intFromObject(e.env.Resolve(e.value(dict, "F"))); ok {
				info.Flags = flags
			}
			if color := e.array(e.value(dict, "C")); color != nil {
				info.Color = e.floatValues(color)
			}
			info.URI = e.annotationURI(dict)
			annots = append(annots, info)
		}
	}
	return annots
}

func (e *Extractor) rectValues(obj raw.Object) [4]float64 {
	var rect [4]float64
	arr := e.array(obj)
	if arr == nil {
		return rect
	}
	for i := 0; i < len(arr.Items) && i < 4; i++ {
		if v, ok := floatFromObject(e.env.Resolve(arr.Items[i])); ok {
			rect[i] = v
		}
	}
	return rect
}

func (e *Extractor) floatValues(arr *raw.ArrayObj) []float64 {
	out := make([]float64, 0, len(arr.Items))
	for _, item := range arr.Items {
		if v, ok := floatFromObject(e.env.Resolve(item)); ok {
			out = append(out, v)
		}
	}
	return out
}

func (e *Extractor) annotationURI(dict *raw.DictObj) string {
	if uri, ok := stringFromDict(dict, "URI"); ok {
		return uri
	}
	action := e.dict(e.value(dict, "A"))
	if action == nil {
		return ""
	}
	if typ, ok := nameFromDict(action, "S"); ok && typ == "URI" {
		if uri, ok := stringFromDict(action, "URI"); ok {
			return uri
		}
	}
	return ""
}
