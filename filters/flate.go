package filters

import (
	"bytes"
	"compress/flate"
	"compress/zlib"
	"context"
	"errors"
	"io"

	"github.com/siftdocs/pdfsift/ir/raw"
)

type flateDecoder struct{}

func NewFlateDecoder() Decoder { return flateDecoder{} }

func (flateDecoder) Name() string { return "FlateDecode" }

func (flateDecoder) Decode(ctx context.Context, in []byte, params raw.Dictionary) ([]byte, error) {
	out, err := inflate(in)
	if err != nil {
		return nil, err
	}
	return applyPredictor(out, params)
}

// inflate decompresses a FlateDecode payload. Conforming writers emit a
// zlib wrapper, but raw deflate streams and leading whitespace both occur
// in the wild, so the header is sniffed rather than assumed.
func inflate(in []byte) ([]byte, error) {
	for len(in) > 0 && (in[0] == ' ' || in[0] == '\n' || in[0] == '\r' || in[0] == '\t' || in[0] == 0) {
		in = in[1:]
	}
	if len(in) == 0 {
		return nil, errors.New("empty stream")
	}

	var r io.ReadCloser
	var err error
	if isZlibHeader(in) {
		r, err = zlib.NewReader(bytes.NewReader(in))
		if err != nil {
			// Broken wrapper; retry as raw deflate.
			r = flate.NewReader(bytes.NewReader(in))
		}
	} else {
		r = flate.NewReader(bytes.NewReader(in))
	}
	defer r.Close()

	var out bytes.Buffer
	_, err = io.Copy(&out, r)
	if err != nil {
		// Truncated streams are common in incrementally-updated files;
		// keep whatever inflated cleanly.
		if out.Len() > 0 && (errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)) {
			return out.Bytes(), nil
		}
		return nil, err
	}
	return out.Bytes(), nil
}

func isZlibHeader(b []byte) bool {
	if len(b) < 2 {
		return false
	}
	if b[0]&0x0f != 8 { // deflate method
		return false
	}
	return (uint16(b[0])<<8|uint16(b[1]))%31 == 0
}
