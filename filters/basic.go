package filters

import (
	"bytes"
	"context"
	stdascii85 "encoding/ascii85"
	"encoding/hex"
	"errors"

	"github.com/siftdocs/pdfsift/ir/raw"
)

type asciiHexDecoder struct{}

func NewASCIIHexDecoder() Decoder { return asciiHexDecoder{} }

func (asciiHexDecoder) Name() string { return "ASCIIHexDecode" }

func (asciiHexDecoder) Decode(ctx context.Context, in []byte, params raw.Dictionary) ([]byte, error) {
	// Everything after the EOD marker is ignored; whitespace between
	// digits is allowed.
	if i := bytes.IndexByte(in, '>'); i >= 0 {
		in = in[:i]
	}
	compact := make([]byte, 0, len(in))
	for _, c := range in {
		switch {
		case c == 0 || c == '\t' || c == '\n' || c == '\f' || c == '\r' || c == ' ':
			continue
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
			compact = append(compact, c)
		default:
			return nil, errors.New("invalid hex digit")
		}
	}
	// An odd final digit is padded with 0.
	if len(compact)%2 == 1 {
		compact = append(compact, '0')
	}
	out := make([]byte, hex.DecodedLen(len(compact)))
	n, err := hex.Decode(out, compact)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

type ascii85Decoder struct{}

func NewASCII85Decoder() Decoder { return ascii85Decoder{} }

func (ascii85Decoder) Name() string { return "ASCII85Decode" }

func (ascii85Decoder) Decode(ctx context.Context, in []byte, params raw.Dictionary) ([]byte, error) {
	trimmed := bytes.TrimSpace(in)
	if bytes.HasPrefix(trimmed, []byte("<~")) {
		trimmed = trimmed[2:]
	}
	if i := bytes.Index(trimmed, []byte("~>")); i >= 0 {
		trimmed = trimmed[:i]
	}
	out := make([]byte, len(trimmed)+4)
	n, _, err := stdascii85.Decode(out, trimmed, true)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

type runLengthDecoder struct{}

func NewRunLengthDecoder() Decoder { return runLengthDecoder{} }

func (runLengthDecoder) Name() string { return "RunLengthDecode" }

func (runLengthDecoder) Decode(ctx context.Context, in []byte, params raw.Dictionary) ([]byte, error) {
	var out bytes.Buffer
	i := 0
	for i < len(in) {
		length := in[i]
		i++
		switch {
		case length == 128:
			return out.Bytes(), nil // EOD
		case length < 128:
			n := int(length) + 1
			if i+n > len(in) {
				return nil, errors.New("literal run past end of data")
			}
			out.Write(in[i : i+n])
			i += n
		default:
			if i >= len(in) {
				return nil, errors.New("replicated run past end of data")
			}
			n := 257 - int(length)
			b := in[i]
			i++
			for j := 0; j < n; j++ {
				out.WriteByte(b)
			}
		}
	}
	// Missing EOD is tolerated once the input is exhausted.
	return out.Bytes(), nil
}

type cryptDecoder struct{}

func NewCryptDecoder() Decoder { return cryptDecoder{} }

func (cryptDecoder) Name() string { return "Crypt" }

// Decode passes data through unchanged. Decryption happens before the filter
// chain runs, so by the time a /Crypt filter is seen the data is either
// already plaintext or encryption was ignored by policy.
func (cryptDecoder) Decode(ctx context.Context, in []byte, params raw.Dictionary) ([]byte, error) {
	return in, nil
}
