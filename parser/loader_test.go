package parser

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/siftdocs/pdfsift/ir/raw"
	"github.com/siftdocs/pdfsift/recovery"
	"github.com/siftdocs/pdfsift/xref"
)

type mapCache struct {
	m map[raw.ObjectRef]raw.Object
}

func (c *mapCache) Get(ref raw.ObjectRef) (raw.Object, bool) {
	if c.m == nil {
		return nil, false
	}
	v, ok := c.m[ref]
	return v, ok
}

func (c *mapCache) Put(ref raw.ObjectRef, obj raw.Object) {
	if c.m == nil {
		c.m = make(map[raw.ObjectRef]raw.Object)
	}
	c.m[ref] = obj
}

func loadTable(t *testing.T, data []byte) (*bytes.Reader, *xref.Table) {
	t.Helper()
	reader := bytes.NewReader(data)
	table, err := xref.Load(context.Background(), reader, xref.Config{})
	if err != nil {
		t.Fatalf("load xref: %v", err)
	}
	return reader, table
}

func TestObjectLoaderCachesObjects(t *testing.T) {
	reader, table := loadTable(t, buildClassicPDF())
	cache := &mapCache{}

	loader, err := (&ObjectLoaderBuilder{}).
		WithReader(reader).
		WithXRef(table).
		WithCache(cache).
		Build()
	if err != nil {
		t.Fatalf("build loader: %v", err)
	}

	// First load should parse and cache.
	if _, err := loader.Load(context.Background(), raw.ObjectRef{Num: 1, Gen: 0}); err != nil {
		t.Fatalf("load object: %v", err)
	}
	if _, ok := cache.Get(raw.ObjectRef{Num: 1, Gen: 0}); !ok {
		t.Fatalf("expected object cached after load")
	}

	// A cached sentinel must short-circuit the parse.
	sentinel := raw.NameLiteral("cached")
	cache.Put(raw.ObjectRef{Num: 2, Gen: 0}, sentinel)
	obj, err := loader.Load(context.Background(), raw.ObjectRef{Num: 2, Gen: 0})
	if err != nil {
		t.Fatalf("load cached object: %v", err)
	}
	if name, ok := obj.(raw.NameObj); !ok || name.Value() != "cached" {
		t.Fatalf("cache bypassed, got %#v", obj)
	}
}

func TestObjectLoaderStreamObjects(t *testing.T) {
	reader, table := loadTable(t, buildObjStmPDF())

	loader, err := (&ObjectLoaderBuilder{}).WithReader(reader).WithXRef(table).Build()
	if err != nil {
		t.Fatalf("build loader: %v", err)
	}

	objs, err := loader.StreamObjects(context.Background(), 3)
	if err != nil {
		t.Fatalf("inflate object stream: %v", err)
	}
	if len(objs) != 2 {
		t.Fatalf("expected 2 compressed objects, got %d", len(objs))
	}
	if _, ok := objs[4].(*raw.DictObj); !ok {
		t.Fatalf("object 4 wrong type: %T", objs[4])
	}
	if num, ok := objs[5].(raw.NumberObj); !ok || num.Int() != 42 {
		t.Fatalf("object 5 wrong value: %#v", objs[5])
	}
}

func TestObjectLoaderHeaderMismatch(t *testing.T) {
	// The table places object 1 at object 2's offset. The header shape
	// is fine; only the numbers disagree.
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")
	buf.WriteString("1 0 obj\n<< /Type /Catalog >>\nendobj\n")
	off2 := buf.Len()
	buf.WriteString("2 0 obj\n<< /Type /Pages /Count 0 >>\nendobj\n")
	xrefOff := buf.Len()
	fmt.Fprintf(buf, "xref\n0 2\n0000000000 65535 f \n%010d 00000 n \n", off2)
	fmt.Fprintf(buf, "trailer\n<< /Size 3 /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", xrefOff)

	reader, table := loadTable(t, buf.Bytes())

	strict, err := (&ObjectLoaderBuilder{}).WithReader(reader).WithXRef(table).Build()
	if err != nil {
		t.Fatalf("build loader: %v", err)
	}
	if _, err := strict.Load(context.Background(), raw.ObjectRef{Num: 1, Gen: 0}); err == nil {
		t.Fatalf("expected header mismatch error under strict recovery")
	}

	lenient, err := (&ObjectLoaderBuilder{}).
		WithReader(reader).
		WithXRef(table).
		WithRecovery(recovery.NewLenientStrategy()).
		Build()
	if err != nil {
		t.Fatalf("build loader: %v", err)
	}
	obj, err := lenient.Load(context.Background(), raw.ObjectRef{Num: 1, Gen: 0})
	if err != nil {
		t.Fatalf("lenient load: %v", err)
	}
	if _, ok := obj.(*raw.DictObj); !ok {
		t.Fatalf("expected the object at that offset, got %T", obj)
	}
}

func TestObjectLoaderIndirectDepthCap(t *testing.T) {
	reader, table := loadTable(t, buildClassicPDF())

	loader, err := (&ObjectLoaderBuilder{}).
		WithReader(reader).
		WithXRef(table).
		Build()
	if err != nil {
		t.Fatalf("build loader: %v", err)
	}
	shallow, err := (&ObjectLoaderBuilder{maxDepth: 3}).WithReader(reader).WithXRef(table).Build()
	if err != nil {
		t.Fatalf("build loader: %v", err)
	}

	if _, err := loader.LoadIndirect(context.Background(), raw.ObjectRef{Num: 1, Gen: 0}, 1); err != nil {
		t.Fatalf("load within depth: %v", err)
	}
	if _, err := shallow.LoadIndirect(context.Background(), raw.ObjectRef{Num: 1, Gen: 0}, 4); err == nil {
		t.Fatalf("expected depth cap error")
	}
}

func TestObjectLoaderMissingObject(t *testing.T) {
	reader, table := loadTable(t, buildClassicPDF())

	loader, err := (&ObjectLoaderBuilder{}).WithReader(reader).WithXRef(table).Build()
	if err != nil {
		t.Fatalf("build loader: %v", err)
	}
	if _, err := loader.Load(context.Background(), raw.ObjectRef{Num: 99, Gen: 0}); err == nil {
		t.Fatalf("expected error for object absent from the table")
	}
}
