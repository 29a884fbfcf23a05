package filters

import (
	"context"
	"testing"

	"github.com/siftdocs/pdfsift/ir/raw"
)

func FuzzFilters(f *testing.F) {
	f.Add([]byte("some compressed data"), "FlateDecode")
	f.Add([]byte("87cURD]o~>"), "ASCII85Decode")
	f.Add([]byte("48656C6C6F>"), "ASCIIHexDecode")
	f.Add([]byte{2, 'a', 'b', 'c', 128}, "RunLengthDecode")
	f.Add([]byte{0x80, 0x10, 0x48, 0x50, 0x10}, "LZWDecode")

	f.Fuzz(func(t *testing.T, data []byte, filterName string) {
		known := map[string]bool{
			"FlateDecode":     true,
			"ASCII85Decode":   true,
			"ASCIIHexDecode":  true,
			"RunLengthDecode": true,
			"LZWDecode":       true,
		}
		if !known[filterName] {
			return
		}
		p := DefaultPipeline(Config{Limits: Limits{MaxDecompressedSize: 1 << 20}})
		// Must not panic or hang regardless of input.
		_, _ = p.Decode(context.Background(), data, []string{filterName}, []raw.Dictionary{nil})
	})
}

func FuzzCCITTFax(f *testing.F) {
	f.Add([]byte{0x98}, int64(0))
	f.Add([]byte{0x26, 0xA0}, int64(-1))
	f.Fuzz(func(t *testing.T, data []byte, k int64) {
		params := raw.Dict()
		params.Set(raw.NameObj{Val: "K"}, raw.NumberInt(k%8-4))
		params.Set(raw.NameObj{Val: "Columns"}, raw.NumberInt(64))
		params.Set(raw.NameObj{Val: "Rows"}, raw.NumberInt(16))
		dec := NewCCITTFaxDecoder()
		_, _ = dec.Decode(context.Background(), data, params)
	})
}
