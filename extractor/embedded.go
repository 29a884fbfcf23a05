package extractor

import "github.com/siftdocs/pdfsift/ir/raw"

// EmbeddedFile captures an attached file spec surfaced via the catalog's
// Names tree.
type EmbeddedFile struct {
	Name         string
	Description  string
	Relationship string
	Subtype      string
	Data         []byte
}

// ExtractEmbeddedFiles walks the EmbeddedFiles name tree and returns the
// decoded attachments.
func (e *Extractor) ExtractEmbeddedFiles() []EmbeddedFile {
	names := e.dict(e.value(e.catalog, "Names"))
	if names == nil {
		return nil
	}
	embedded := e.dict(e.value(names, "EmbeddedFiles"))
	if embedded == nil {
		return nil
	}
	var files []EmbeddedFile
	e.walkNameTree(embedded, 0, func(name string, obj raw.Object) {
		spec := e.dict(obj)
		if spec == nil {
			return
		}
		file := EmbeddedFile{Name: name}
		file.Description, _ = stringFromDict(spec, "Desc")
		file.Relationship, _ = nameFromDict(spec, "AFRelationship")
		file.Subtype, _ = nameFromDict(spec, "Subtype")
		file.Data = e.embeddedStream(spec)
		files = append(files, file)
	})
	return files
}

// walkNameTree visits every name/value pair of a name tree, following
// intermediate Kids nodes.
func (e *Extractor) walkNameTree(node *raw.DictObj, depth int, visit func(string, raw.Object)) {
	if node == nil || depth > 32 {
		return
	}
	if entries := e.array(e.value(node, "Names")); entries != nil {
		for i := 0; i+1 < len(entries.Items); i += 2 {
			name, _ := stringFromObject(e.env.Resolve(entries.Items[i]))
			visit(name, entries.Items[i+1])
		}
	}
	if kids := e.array(e.value(node, "Kids")); kids != nil {
		for _, kid := range kids.Items {
			e.walkNameTree(e.dict(kid), depth+1, visit)
		}
	}
}

func (e *Extractor) embeddedStream(spec *raw.DictObj) []byte {
	ef := e.dict(e.value(spec, "EF"))
	if ef == nil {
		return nil
	}
	for _, key := range []string{"F", "UF"} {
		if ref, ok := e.value(ef, key).(raw.RefObj); ok {
			if data, ok := e.env.StreamData(ref.Ref()); ok {
				return data
			}
		}
	}
	return nil
}

// DocumentJavaScript returns document-level JavaScript actions from the
// catalog's JavaScript name tree, keyed by their tree names.
func (e *Extractor) DocumentJavaScript() map[string]string {
	names := e.dict(e.value(e.catalog, "Names"))
	if names == nil {
		return nil
	}
	jsTree := e.dict(e.value(names, "JavaScript"))
	if jsTree == nil {
		return nil
	}
	out := make(map[string]string)
	e.walkNameTree(jsTree, 0, func(name string, obj raw.Object) {
		action := e.dict(obj)
		if action == nil {
			return
		}
		if typ, ok := nameFromDict(action, "S"); ok && typ != "JavaScript" {
			return
		}
		jsObj := e.value(action, "JS")
		if s, ok := stringFromObject(e.env.Resolve(jsObj)); ok {
			out[name] = s
			return
		}
		if ref, ok := jsObj.(raw.RefObj); ok {
			if data, ok := e.env.StreamData(ref.Ref()); ok {
				out[name] = string(data)
			}
		}
	})
	if len(out) == 0 {
		return nil
	}
	return out
}
