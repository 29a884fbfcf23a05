package ocr

import (
	"bytes"
	"context"
	"image/png"
	"reflect"
	"testing"

	"github.com/siftdocs/pdfsift/imaging"
)

func TestInputFromImage(t *testing.T) {
	img := &imaging.Image{Width: 2, Height: 1, RGB: []byte{0, 0, 255, 255, 0, 0}, Alpha: []byte{255, 128}}
	region := Region{X: 0, Y: 0, Width: 1, Height: 1}
	meta := map[string]string{"psm": "6"}

	in, err := InputFromImage(
		3, "Im1", img,
		WithLanguages("eng", "spa"),
		WithRegion(region),
		WithDPI(300),
		WithMetadata(meta),
	)
	if err != nil {
		t.Fatalf("InputFromImage() error = %v", err)
	}
	if in.Format != ImageFormatPNG {
		t.Fatalf("unexpected format: %v", in.Format)
	}
	if in.PageIndex != 2 {
		t.Fatalf("unexpected page index: %d", in.PageIndex)
	}
	if got := in.ID; got != "page-3-Im1" {
		t.Fatalf("unexpected id: %s", got)
	}
	decoded, err := png.Decode(bytes.NewReader(in.Image))
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if b := decoded.Bounds(); b.Dx() != 2 || b.Dy() != 1 {
		t.Fatalf("unexpected payload bounds: %v", b)
	}
	if !reflect.DeepEqual(in.Languages, []string{"eng", "spa"}) {
		t.Fatalf("unexpected languages: %+v", in.Languages)
	}
	if in.Region == nil || *in.Region != region {
		t.Fatalf("unexpected region: %#v", in.Region)
	}
	if in.DPI != 300 {
		t.Fatalf("unexpected dpi: %d", in.DPI)
	}
	if got := in.Metadata["psm"]; got != "6" {
		t.Fatalf("unexpected metadata: %q", got)
	}
}

func TestInputFromImageRejectsBadData(t *testing.T) {
	if _, err := InputFromImage(1, "Im0", nil); err == nil {
		t.Fatalf("expected error for nil image")
	}
	short := &imaging.Image{Width: 4, Height: 4, RGB: []byte{1, 2, 3}}
	if _, err := InputFromImage(1, "Im0", short); err == nil {
		t.Fatalf("expected error for truncated pixel data")
	}
}

type fakeEngine struct {
	calls []string
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Recognize(ctx context.Context, in Input) (Result, error) {
	f.calls = append(f.calls, in.ID)
	return Result{InputID: in.ID, PlainText: "ok"}, nil
}

type fakeBatchEngine struct {
	fakeEngine
	batched bool
}

func (f *fakeBatchEngine) RecognizeBatch(ctx context.Context, inputs []Input) ([]Result, error) {
	f.batched = true
	out := make([]Result, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, Result{InputID: in.ID})
	}
	return out, nil
}

func TestRecognizeSequential(t *testing.T) {
	eng := &fakeEngine{}
	inputs := []Input{{ID: "a"}, {ID: "b"}}
	results, err := Recognize(context.Background(), eng, inputs)
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if len(results) != 2 || results[0].InputID != "a" || results[1].InputID != "b" {
		t.Fatalf("unexpected results: %+v", results)
	}
	if !reflect.DeepEqual(eng.calls, []string{"a", "b"}) {
		t.Fatalf("unexpected call order: %v", eng.calls)
	}
}

func TestRecognizePrefersBatch(t *testing.T) {
	eng := &fakeBatchEngine{}
	if _, err := Recognize(context.Background(), eng, []Input{{ID: "a"}}); err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if !eng.batched {
		t.Fatalf("batch path not used")
	}
	if len(eng.calls) != 0 {
		t.Fatalf("sequential path used alongside batch")
	}
}

func TestRecognizeHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Recognize(ctx, &fakeEngine{}, []Input{{ID: "a"}}); err == nil {
		t.Fatalf("expected context error")
	}
}
