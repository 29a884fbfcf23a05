package scripting

import (
	"context"

	"github.com/siftdocs/pdfsift/export"
	"github.com/siftdocs/pdfsift/extractor"
)

// Engine executes document-level scripts (the JavaScript actions carried
// in a PDF's name tree) against a read-only view of the document.
type Engine interface {
	// Execute runs a script and returns the exported value of its last
	// expression. The context interrupts long-running scripts.
	Execute(ctx context.Context, script string) (interface{}, error)

	// RegisterDocument exposes the host document API to scripts.
	RegisterDocument(api *DocumentAPI) error
}

// DocumentAPI is the read-only host object scripts see as `doc`. Scripts
// cannot mutate the document; setters are simply not exposed.
type DocumentAPI struct {
	// Doc is the extracted document the API reads from.
	Doc *extractor.Document
	// Alert receives app.alert messages. Nil drops them.
	Alert func(message string)
}

// NumPages returns the page count.
func (a *DocumentAPI) NumPages() int {
	if a.Doc == nil {
		return 0
	}
	return len(a.Doc.Pages)
}

// PageText returns the plain text of the page at the 0-based index, or
// an empty string for an index out of range.
func (a *DocumentAPI) PageText(index int) string {
	if a.Doc == nil || index < 0 || index >= len(a.Doc.Pages) {
		return ""
	}
	one := &extractor.Document{Pages: []extractor.Page{a.Doc.Pages[index]}}
	return export.PlainText(one)
}

// PageLabel returns the display label of the page at the 0-based index.
func (a *DocumentAPI) PageLabel(index int) string {
	if a.Doc == nil || index < 0 || index >= len(a.Doc.Pages) {
		return ""
	}
	return a.Doc.Pages[index].Label
}

func (a *DocumentAPI) alert(message string) {
	if a.Alert != nil {
		a.Alert(message)
	}
}
