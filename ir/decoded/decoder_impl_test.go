package decoded

import (
	"bytes"
	"compress/zlib"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/siftdocs/pdfsift/filters"
	"github.com/siftdocs/pdfsift/ir/raw"
)

type uppercaseDecoder struct{}

func (uppercaseDecoder) Name() string { return "Upper" }
func (uppercaseDecoder) Decode(ctx context.Context, in []byte, params raw.Dictionary) ([]byte, error) {
	out := make([]byte, len(in))
	for i, b := range in {
		if b >= 'a' && b <= 'z' {
			out[i] = b - 32
		} else {
			out[i] = b
		}
	}
	return out, nil
}

func TestDecoderAppliesFilters(t *testing.T) {
	dict := raw.Dict()
	dict.Set(raw.NameLiteral("Filter"), raw.NameLiteral("Upper"))
	stream := raw.NewStream(dict, []byte("hello"))

	rawDoc := &raw.Document{
		Objects: map[raw.ObjectRef]raw.Object{
			{Num: 1, Gen: 0}: stream,
		},
	}

	pipeline := filters.NewPipeline([]filters.Decoder{uppercaseDecoder{}}, filters.Limits{})
	dec := NewDecoder(Config{Pipeline: pipeline})

	doc, err := dec.Decode(context.Background(), rawDoc)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	got := string(doc.Streams[raw.ObjectRef{Num: 1, Gen: 0}].Data)
	if got != "HELLO" {
		t.Fatalf("expected HELLO, got %s", got)
	}
}

func TestDecoderPassesThroughUnfiltered(t *testing.T) {
	stream := raw.NewStream(raw.Dict(), []byte("plain bytes"))
	rawDoc := &raw.Document{
		Objects: map[raw.ObjectRef]raw.Object{
			{Num: 1, Gen: 0}: stream,
		},
	}

	doc, err := NewDecoder(Config{}).Decode(context.Background(), rawDoc)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	s, ok := doc.Streams[raw.ObjectRef{Num: 1, Gen: 0}]
	if !ok {
		t.Fatalf("unfiltered stream missing")
	}
	if string(s.Data) != "plain bytes" {
		t.Fatalf("payload changed: %q", s.Data)
	}
	if s.Image != nil {
		t.Fatalf("unexpected image hint on byte stream")
	}
}

func TestDecoderDecodesFlateStreams(t *testing.T) {
	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write([]byte("BT /F1 12 Tf ET")); err != nil {
		t.Fatalf("compress: %v", err)
	}
	zw.Close()

	dict := raw.Dict()
	dict.Set(raw.NameLiteral("Filter"), raw.NameLiteral("FlateDecode"))
	rawDoc := &raw.Document{
		Objects: map[raw.ObjectRef]raw.Object{
			{Num: 1, Gen: 0}: raw.NewStream(dict, compressed.Bytes()),
		},
	}

	doc, err := NewDecoder(Config{}).Decode(context.Background(), rawDoc)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got := string(doc.Streams[raw.ObjectRef{Num: 1, Gen: 0}].Data); got != "BT /F1 12 Tf ET" {
		t.Fatalf("flate round trip: %q", got)
	}
}

func TestDecoderRecordsPerStreamErrors(t *testing.T) {
	bad := raw.Dict()
	bad.Set(raw.NameLiteral("Filter"), raw.NameLiteral("NoSuchFilter"))
	good := raw.Dict()

	rawDoc := &raw.Document{
		Objects: map[raw.ObjectRef]raw.Object{
			{Num: 1, Gen: 0}: raw.NewStream(bad, []byte("xxxx")),
			{Num: 2, Gen: 0}: raw.NewStream(good, []byte("fine")),
		},
	}

	doc, err := NewDecoder(Config{}).Decode(context.Background(), rawDoc)
	if err != nil {
		t.Fatalf("one bad stream must not fail the document: %v", err)
	}
	if _, ok := doc.Streams[raw.ObjectRef{Num: 1, Gen: 0}]; ok {
		t.Fatalf("undecodable stream should not surface a payload")
	}
	if doc.Errors[raw.ObjectRef{Num: 1, Gen: 0}] == nil {
		t.Fatalf("missing per-stream error")
	}
	if string(doc.Streams[raw.ObjectRef{Num: 2, Gen: 0}].Data) != "fine" {
		t.Fatalf("good stream lost")
	}
}

func TestDecoderSetsImageHint(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(0, 0, color.RGBA{R: 0x80, A: 0xff})
	var jpegBytes bytes.Buffer
	if err := jpeg.Encode(&jpegBytes, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}

	dict := raw.Dict()
	dict.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("Image"))
	dict.Set(raw.NameLiteral("Filter"), raw.NameLiteral("DCTDecode"))
	rawDoc := &raw.Document{
		Objects: map[raw.ObjectRef]raw.Object{
			{Num: 7, Gen: 0}: raw.NewStream(dict, jpegBytes.Bytes()),
		},
	}

	doc, err := NewDecoder(Config{}).Decode(context.Background(), rawDoc)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	s, ok := doc.Streams[raw.ObjectRef{Num: 7, Gen: 0}]
	if !ok {
		t.Fatalf("image stream missing: %v", doc.Errors)
	}
	if s.Image == nil {
		t.Fatalf("image hint not set for DCT stream")
	}
	if s.Image.Filter != "DCTDecode" || s.Image.Width != 4 || s.Image.Height != 2 {
		t.Fatalf("hint geometry wrong: %+v", s.Image)
	}
	if s.Image.Components != 3 || s.Image.BitsPerComponent != 8 {
		t.Fatalf("hint shape wrong: %+v", s.Image)
	}
	if len(s.Data) != 4*2*3 {
		t.Fatalf("expected interleaved RGB samples, got %d bytes", len(s.Data))
	}
}

func TestDecoderResolvesIndirectFilterEntries(t *testing.T) {
	dict := raw.Dict()
	dict.Set(raw.NameLiteral("Filter"), raw.Ref(3, 0))

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	zw.Write([]byte("payload"))
	zw.Close()

	rawDoc := &raw.Document{
		Objects: map[raw.ObjectRef]raw.Object{
			{Num: 1, Gen: 0}: raw.NewStream(dict, compressed.Bytes()),
			{Num: 3, Gen: 0}: raw.NameLiteral("FlateDecode"),
		},
	}

	doc, err := NewDecoder(Config{}).Decode(context.Background(), rawDoc)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got := string(doc.Streams[raw.ObjectRef{Num: 1, Gen: 0}].Data); got != "payload" {
		t.Fatalf("indirect filter entry not resolved: %q", got)
	}
}
