package scripting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/siftdocs/pdfsift/contentstream"
	"github.com/siftdocs/pdfsift/extractor"
	"github.com/siftdocs/pdfsift/ir/raw"
)

func TestGojaEngine_ContextCancellation(t *testing.T) {
	engine := NewEngine()

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()

	if _, err := engine.Execute(ctx, "while (true) {}"); err == nil || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline error, got %v", err)
	}

	if _, err := engine.Execute(context.Background(), "1 + 1"); err != nil {
		t.Fatalf("engine should recover after cancellation, got %v", err)
	}
}

func TestGojaEngine_ImmediateCancel(t *testing.T) {
	engine := NewEngine()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := engine.Execute(ctx, "42"); err == nil || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled error, got %v", err)
	}
}

func scriptDoc() *extractor.Document {
	return &extractor.Document{
		Pages: []extractor.Page{
			{
				PageNumber: 1, Label: "i",
				Elements: []contentstream.Element{
					&contentstream.TextElement{Text: "Hello scripts", X: 72, Y: 700, Width: 100, EffectiveFontSize: 12},
				},
			},
			{PageNumber: 2, Label: "1"},
		},
		Metadata: extractor.Metadata{
			Info: raw.DocumentMetadata{Title: "Report", Author: "Quinn"},
		},
	}
}

func TestRegisterDocument(t *testing.T) {
	engine := NewEngine()
	var alerts []string
	api := &DocumentAPI{Doc: scriptDoc(), Alert: func(m string) { alerts = append(alerts, m) }}
	if err := engine.RegisterDocument(api); err != nil {
		t.Fatalf("RegisterDocument() error = %v", err)
	}

	got, err := engine.Execute(context.Background(), "doc.numPages")
	if err != nil {
		t.Fatalf("numPages: %v", err)
	}
	if n, ok := got.(int64); !ok || n != 2 {
		t.Fatalf("numPages = %v (%T), want 2", got, got)
	}

	got, err = engine.Execute(context.Background(), "doc.getPageText(0)")
	if err != nil {
		t.Fatalf("getPageText: %v", err)
	}
	if s, ok := got.(string); !ok || s != "Hello scripts\n" {
		t.Fatalf("getPageText(0) = %q", got)
	}

	got, err = engine.Execute(context.Background(), "doc.getPageLabel(1)")
	if err != nil {
		t.Fatalf("getPageLabel: %v", err)
	}
	if got != "1" {
		t.Fatalf("getPageLabel(1) = %v", got)
	}

	got, err = engine.Execute(context.Background(), "doc.title + ' by ' + doc.author")
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if got != "Report by Quinn" {
		t.Fatalf("metadata = %v", got)
	}

	if _, err := engine.Execute(context.Background(), "app.alert('hi')"); err != nil {
		t.Fatalf("alert: %v", err)
	}
	if len(alerts) != 1 || alerts[0] != "hi" {
		t.Fatalf("alerts = %v", alerts)
	}
}

func TestRegisterDocumentOutOfRange(t *testing.T) {
	engine := NewEngine()
	if err := engine.RegisterDocument(&DocumentAPI{Doc: scriptDoc()}); err != nil {
		t.Fatalf("RegisterDocument() error = %v", err)
	}
	got, err := engine.Execute(context.Background(), "doc.getPageText(9)")
	if err != nil {
		t.Fatalf("getPageText(9): %v", err)
	}
	if got != "" {
		t.Fatalf("out of range text = %q", got)
	}
}
