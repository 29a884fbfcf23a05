package extractor

import "github.com/siftdocs/pdfsift/ir/raw"

// Outline describes one document outline entry. Page is the 0-based
// index of the destination page, -1 when unresolvable.
type Outline struct {
	Title    string
	Page     int
	Children []Outline
}

// TOCEntry is a flattened outline entry with its page label and depth.
type TOCEntry struct {
	Title string
	Page  int
	Label string
	Depth int
}

// ExtractOutlines walks the document outline tree, if present.
func (e *Extractor) ExtractOutlines() []Outline {
	outlines := e.dict(e.value(e.catalog, "Outlines"))
	if outlines == nil {
		return nil
	}
	return e.outlineBranch(e.value(outlines, "First"), 0)
}

// ExtractTableOfContents flattens the outlines and attaches page labels.
func (e *Extractor) ExtractTableOfContents() []TOCEntry {
	var entries []TOCEntry
	var walk func(items []Outline, depth int)
	walk = func(items []Outline, depth int) {
		for _, item := range items {
			label := ""
			if item.Page >= 0 {
				label = e.labels[item.Page]
			}
			entries = append(entries, TOCEntry{
				Title: item.Title,
				Page:  item.Page,
				Label: label,
				Depth: depth,
			})
			walk(item.Children, depth+1)
		}
	}
	walk(e.ExtractOutlines(), 0)
	return entries
}

func (e *Extractor) outlineBranch(obj raw.Object, depth int) []Outline {
	if depth > 32 {
		return nil
	}
	var list []Outline
	seen := make(map[*raw.DictObj]bool)
	current := obj
	for current != nil {
		dict := e.dict(current)
		if dict == nil || seen[dict] {
			break
		}
		seen[dict] = true
		title, _ := stringFromDict(dict, "Title")
		page := e.destPage(e.value(dict, "Dest"), 0)
		if page == -1 {
			page = e.actionDestPage(e.value(dict, "A"))
		}
		item := Outline{Title: title, Page: page}
		item.Children = e.outlineBranch(e.value(dict, "First"), depth+1)
		list = append(list, item)
		next := e.value(dict, "Next")
		if next == nil {
			break
		}
		current = next
	}
	return list
}

func (e *Extractor) destPage(obj raw.Object, depth int) int {
	if obj == nil || depth > 4 {
		return -1
	}
	switch v := e.env.Resolve(obj).(type) {
	case *raw.ArrayObj:
		if len(v.Items) == 0 {
			return -1
		}
		return e.destPage(v.Items[0], depth+1)
	case *raw.DictObj:
		return e.pageIndex(v)
	}
	return -1
}

func (e *Extractor) actionDestPage(obj raw.Object) int {
	action := e.dict(obj)
	if action == nil {
		return -1
	}
	if typ, ok := nameFromDict(action, "S"); !ok || typ != "GoTo" {
		return -1
	}
	return e.destPage(e.value(action, "D"), 0)
}

func (e *Extractor) pageIndex(target *raw.DictObj) int {
	if target == nil {
		return -1
	}
	for idx, page := range e.pages {
		if page.dict == target {
			return idx
		}
	}
	return -1
}
