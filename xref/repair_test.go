package xref_test

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/siftdocs/pdfsift/ir/raw"
	"github.com/siftdocs/pdfsift/recovery"
	"github.com/siftdocs/pdfsift/xref"
)

// buildBrokenPDF writes objects and a trailer but no xref section and no
// startxref, so only a linear scan can recover the document.
func buildBrokenPDF() ([]byte, map[int]int64) {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")
	offsets := make(map[int]int64)

	offsets[1] = int64(buf.Len())
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	offsets[2] = int64(buf.Len())
	buf.WriteString("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")
	offsets[3] = int64(buf.Len())
	buf.WriteString("3 0 obj\n<< /Type /Page /Parent 2 0 R >>\nendobj\n")
	buf.WriteString("trailer\n<< /Size 4 /Root 1 0 R >>\n%%EOF\n")

	return buf.Bytes(), offsets
}

func TestLoadRepairsMissingXRef(t *testing.T) {
	pdf, offsets := buildBrokenPDF()

	// Strict loading must refuse rather than guess.
	if _, err := xref.Load(context.Background(), &readerAt{data: pdf}, xref.Config{}); err == nil {
		t.Fatalf("expected strict load to fail without startxref")
	}

	table, err := xref.Load(context.Background(), &readerAt{data: pdf}, xref.Config{
		Recovery: &testRecovery{action: recovery.ActionFix},
	})
	if err != nil {
		t.Fatalf("lenient load: %v", err)
	}
	if !table.Repaired() || table.Type() != "repaired" {
		t.Fatalf("expected repaired table, got type %s repaired %v", table.Type(), table.Repaired())
	}
	for obj, want := range offsets {
		got, gen, ok := table.Lookup(obj)
		if !ok {
			t.Fatalf("missing object %d", obj)
		}
		if got != want || gen != 0 {
			t.Fatalf("object %d: expected (%d,0), got (%d,%d)", obj, want, got, gen)
		}
	}
	root, ok := table.Trailer().Get(raw.NameLiteral("Root"))
	if !ok {
		t.Fatalf("trailer missing Root")
	}
	if ref, isRef := root.(raw.RefObj); !isRef || ref.R.Num != 1 {
		t.Fatalf("unexpected Root %v", root)
	}
}

func TestRepairSkipsGarbagePrefix(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")
	// A stray number in front of a real header must not shift the match.
	buf.WriteString("999 ")
	off := int64(buf.Len())
	buf.WriteString("1 0 obj\n<< /Type /Catalog >>\nendobj\n")

	table, err := xref.Repair(context.Background(), &readerAt{data: buf.Bytes()}, xref.Config{})
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	got, _, ok := table.Lookup(1)
	if !ok || got != off {
		t.Fatalf("object 1: expected offset %d, got (%d,%v)", off, got, ok)
	}
	if _, _, ok := table.Lookup(999); ok {
		t.Fatalf("stray number 999 must not become an object")
	}
}

func TestRepairLastDefinitionWins(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")
	buf.WriteString("2 0 obj\n(first draft)\nendobj\n")
	winner := int64(buf.Len())
	buf.WriteString("2 0 obj\n(final)\nendobj\n")
	buf.WriteString("1 0 obj\n<< /Type /Catalog >>\nendobj\n")

	table, err := xref.Repair(context.Background(), &readerAt{data: buf.Bytes()}, xref.Config{})
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	got, _, ok := table.Lookup(2)
	if !ok || got != winner {
		t.Fatalf("object 2: expected offset %d, got (%d,%v)", winner, got, ok)
	}
}

func TestRepairSynthesizesTrailer(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")
	buf.WriteString("5 0 obj\n<< /Type /Catalog /Pages 6 0 R >>\nendobj\n")
	buf.WriteString("6 0 obj\n<< /Type /Pages /Count 0 >>\nendobj\n")

	table, err := xref.Repair(context.Background(), &readerAt{data: buf.Bytes()}, xref.Config{})
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	trailer := table.Trailer()
	if trailer == nil {
		t.Fatalf("expected synthesized trailer")
	}
	root, ok := trailer.Get(raw.NameLiteral("Root"))
	if !ok {
		t.Fatalf("synthesized trailer missing Root")
	}
	if ref, isRef := root.(raw.RefObj); !isRef || ref.R.Num != 5 {
		t.Fatalf("Root should point at the catalog, got %v", root)
	}
	size, ok := trailer.Get(raw.NameLiteral("Size"))
	if !ok {
		t.Fatalf("synthesized trailer missing Size")
	}
	if num, isNum := size.(raw.NumberObj); !isNum || num.Int() != 7 {
		t.Fatalf("expected Size 7, got %v", size)
	}
}

func TestRepairSkipsStreamPayloads(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")
	buf.WriteString("1 0 obj\n<< /Type /Catalog >>\nendobj\n")
	// The payload spells out an object header; it must stay opaque.
	buf.WriteString("5 0 obj\n<< /Length 8 >>\nstream\n7 0 obj\nendstream\nendobj\n")

	table, err := xref.Repair(context.Background(), &readerAt{data: buf.Bytes()}, xref.Config{})
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	if _, _, ok := table.Lookup(5); !ok {
		t.Fatalf("missing stream object 5")
	}
	if _, _, ok := table.Lookup(7); ok {
		t.Fatalf("header inside stream payload must not be indexed")
	}
}

func TestRepairUsesXRefStreamDictAsTrailer(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")
	buf.WriteString("1 0 obj\n<< /Type /Catalog >>\nendobj\n")
	entries := packEntries(0, 2, map[int]int{1: 9}, nil)
	fmt.Fprintf(buf, "2 0 obj\n<< /Type /XRef /Size 9 /Root 1 0 R /W [1 4 1] /Index [0 2] /Length %d >>\nstream\n", len(entries))
	buf.Write(entries)
	buf.WriteString("\nendstream\nendobj\n")

	table, err := xref.Repair(context.Background(), &readerAt{data: buf.Bytes()}, xref.Config{})
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	size, ok := table.Trailer().Get(raw.NameLiteral("Size"))
	if !ok {
		t.Fatalf("trailer missing Size")
	}
	// Size 9 can only come from the cross-reference stream dictionary; a
	// synthesized trailer would say 3.
	if num, isNum := size.(raw.NumberObj); !isNum || num.Int() != 9 {
		t.Fatalf("expected Size 9 from the XRef dictionary, got %v", size)
	}
}

func TestRepairSurvivesGarbageBetweenObjects(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")
	off1 := int64(buf.Len())
	buf.WriteString("1 0 obj\n<< /Type /Catalog >>\nendobj\n")
	buf.Write([]byte{0xfe, 0xfa, '<', '<', 0x00, 0xff, 0x01, '\n'})
	off2 := int64(buf.Len())
	buf.WriteString("2 0 obj\n(ok)\nendobj\n")
	buf.WriteString("trailer\n<< /Size 3 /Root 1 0 R >>\n")

	table, err := xref.Repair(context.Background(), &readerAt{data: buf.Bytes()}, xref.Config{
		Recovery: &testRecovery{action: recovery.ActionFix},
	})
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	if got, _, ok := table.Lookup(1); !ok || got != off1 {
		t.Fatalf("object 1: got (%d,%v)", got, ok)
	}
	if got, _, ok := table.Lookup(2); !ok || got != off2 {
		t.Fatalf("object 2: got (%d,%v)", got, ok)
	}
}

func TestRepairEmptyInput(t *testing.T) {
	data := []byte("%PDF-1.7\n% nothing here\n")
	if _, err := xref.Repair(context.Background(), &readerAt{data: data}, xref.Config{}); err == nil {
		t.Fatalf("expected error when no objects exist")
	}
}
