package ir

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/siftdocs/pdfsift/ir/raw"
)

func TestPipelineDecodesASCIIHexStream(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")
	off1 := buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 3 0 R >>\nendobj\n")
	hexData := "48656c6c6f20776f726c64>"
	off2 := buf.Len()
	fmt.Fprintf(buf, "2 0 obj\n<< /Length %d /Filter /ASCIIHexDecode >>\nstream\n%s\nendstream\nendobj\n", len(hexData), hexData)
	off3 := buf.Len()
	buf.WriteString("3 0 obj\n<< /Type /Pages /Count 0 >>\nendobj\n")
	xrefOff := buf.Len()
	fmt.Fprintf(buf, "xref\n0 4\n0000000000 65535 f \n%010d 00000 n \n%010d 00000 n \n%010d 00000 n \n", off1, off2, off3)
	buf.WriteString("trailer << /Size 4 /Root 1 0 R >>\nstartxref\n")
	fmt.Fprintf(buf, "%d\n%%%%EOF\n", xrefOff)

	doc, err := NewDefault().Load(context.Background(), bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("pipeline load failed: %v", err)
	}
	if doc.Raw == nil || len(doc.Raw.Objects) != 3 {
		t.Fatalf("raw stage incomplete: %+v", doc.Raw)
	}
	if len(doc.Streams) != 1 {
		t.Fatalf("expected 1 stream, got %d", len(doc.Streams))
	}
	s, ok := doc.Streams[raw.ObjectRef{Num: 2, Gen: 0}]
	if !ok {
		t.Fatalf("content stream missing")
	}
	if string(s.Data) != "Hello world" {
		t.Fatalf("unexpected decoded data: %q", s.Data)
	}
}
