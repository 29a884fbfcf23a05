package parser

import (
	"bytes"
	"context"
	"testing"

	"github.com/siftdocs/pdfsift/recovery"
)

func FuzzDocumentParser(f *testing.F) {
	f.Add(buildClassicPDF())
	f.Add(buildIncrementalPDF())
	f.Add(buildObjStmPDF())
	f.Add([]byte("%PDF-1.7\n1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n..."))

	f.Fuzz(func(t *testing.T, data []byte) {
		r := bytes.NewReader(data)
		p := NewDocumentParser(Config{Recovery: recovery.NewStrictStrategy()})
		_, _ = p.Parse(context.Background(), r)
	})
}

func FuzzDocumentParserLenient(f *testing.F) {
	f.Add(buildClassicPDF())
	f.Add(buildObjStmPDF())

	f.Fuzz(func(t *testing.T, data []byte) {
		r := bytes.NewReader(data)
		p := NewDocumentParser(Config{Recovery: recovery.NewLenientStrategy()})
		_, _ = p.Parse(context.Background(), r)
	})
}
