package observability

import (
	"context"
	"testing"
)

func TestFieldAccessors(t *testing.T) {
	if f := String("name", "page"); f.Key() != "name" || f.Value() != "page" {
		t.Fatalf("string field mismatch: %v=%v", f.Key(), f.Value())
	}
	if f := Int("count", 3); f.Value() != 3 {
		t.Fatalf("int field mismatch: %v", f.Value())
	}
	if f := Int64("offset", 9); f.Value() != int64(9) {
		t.Fatalf("int64 field mismatch: %v", f.Value())
	}
}

func TestNopTracer(t *testing.T) {
	tracer := NopTracer()
	ctx := context.Background()
	ctx2, span := tracer.StartSpan(ctx, "test")
	if ctx2 != ctx {
		t.Fatalf("nop tracer should return same context")
	}
	span.SetTag("key", "value")
	span.SetError(nil)
	span.Finish()
}
