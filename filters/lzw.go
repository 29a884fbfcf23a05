package filters

import (
	"bytes"
	"compress/lzw"
	"context"
	"errors"
	"io"

	tifflzw "golang.org/x/image/tiff/lzw"

	"github.com/siftdocs/pdfsift/ir/raw"
)

type lzwDecoder struct{}

func NewLZWDecoder() Decoder { return lzwDecoder{} }

func (lzwDecoder) Name() string { return "LZWDecode" }

// Decode handles both code-width change disciplines: EarlyChange 1 (the
// default, shared with TIFF) bumps the code width one code early, which
// is what golang.org/x/image/tiff/lzw implements; EarlyChange 0 is the
// compress/lzw behavior.
func (lzwDecoder) Decode(ctx context.Context, in []byte, params raw.Dictionary) ([]byte, error) {
	var r io.ReadCloser
	if paramInt(params, "EarlyChange", 1) == 1 {
		r = tifflzw.NewReader(bytes.NewReader(in), tifflzw.MSB, 8)
	} else {
		r = lzw.NewReader(bytes.NewReader(in), lzw.MSB, 8)
	}
	defer r.Close()

	var out bytes.Buffer
	if _, err := io.Copy(&out, r); err != nil {
		if out.Len() > 0 && (errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)) {
			return applyPredictor(out.Bytes(), params)
		}
		return nil, err
	}
	return applyPredictor(out.Bytes(), params)
}
