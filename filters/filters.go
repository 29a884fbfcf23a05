// Package filters implements the stream filter pipeline: the standard
// decode filters applied in /Filter order with their /DecodeParms, plus
// predictor reversal for the compression filters. Image codecs (CCITTFax,
// DCT, JPX) are terminal: they must be the last entry of a chain and
// report the sample geometry they produced through Info.
package filters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/siftdocs/pdfsift/ir/raw"
)

// ErrFilterOrder reports an image codec followed by further filters.
var ErrFilterOrder = errors.New("filters: image filter not last in chain")

// Decoder decodes one filter stage. params is the DecodeParms dictionary
// for the stage and may be nil.
type Decoder interface {
	Name() string
	Decode(ctx context.Context, input []byte, params raw.Dictionary) ([]byte, error)
}

// imageDecoder is implemented by terminal image codecs. DecodeImage
// returns the raw samples plus their geometry.
type imageDecoder interface {
	Decoder
	DecodeImage(ctx context.Context, input []byte, params raw.Dictionary) ([]byte, *Info, error)
}

// Info describes the output of a terminal image codec.
type Info struct {
	Filter           string // canonical filter name that produced the samples
	Width            int
	Height           int
	Components       int
	BitsPerComponent int
}

// Limits bounds decode work per stream.
type Limits struct {
	MaxDecompressedSize int64
	MaxDecodeTime       time.Duration
}

type Pipeline struct {
	decoders []Decoder
	limits   Limits
}

// NewPipeline constructs a pipeline with the provided decoders and limits.
func NewPipeline(decoders []Decoder, limits Limits) *Pipeline {
	return &Pipeline{decoders: decoders, limits: limits}
}

// Config selects optional codecs for DefaultPipeline.
type Config struct {
	Limits Limits
	// JPX decodes JPXDecode payloads. Nil leaves JPX streams undecodable.
	JPX JPXDecoder
}

// DefaultPipeline returns a pipeline with every standard decode filter
// registered.
func DefaultPipeline(cfg Config) *Pipeline {
	return NewPipeline([]Decoder{
		NewASCIIHexDecoder(),
		NewASCII85Decoder(),
		NewRunLengthDecoder(),
		NewFlateDecoder(),
		NewLZWDecoder(),
		NewCCITTFaxDecoder(),
		NewDCTDecoder(),
		NewJPXDecoder(cfg.JPX),
		NewCryptDecoder(),
	}, cfg.Limits)
}

func (p *Pipeline) findDecoder(name string) Decoder {
	for _, d := range p.decoders {
		if d.Name() == name {
			return d
		}
	}
	return nil
}

// canonicalName expands the abbreviated filter names permitted in inline
// image dictionaries.
func canonicalName(name string) string {
	switch name {
	case "AHx":
		return "ASCIIHexDecode"
	case "A85":
		return "ASCII85Decode"
	case "LZW":
		return "LZWDecode"
	case "Fl":
		return "FlateDecode"
	case "RL":
		return "RunLengthDecode"
	case "CCF":
		return "CCITTFaxDecode"
	case "DCT":
		return "DCTDecode"
	}
	return name
}

// Decode applies the named filters in order. Image codecs are rejected
// anywhere but the final position.
func (p *Pipeline) Decode(ctx context.Context, input []byte, filterNames []string, params []raw.Dictionary) ([]byte, error) {
	out, _, err := p.DecodeWithInfo(ctx, input, filterNames, params)
	return out, err
}

// DecodeWithInfo is Decode plus the terminal codec's sample geometry.
// Info is nil when the chain ends in a byte-oriented filter.
func (p *Pipeline) DecodeWithInfo(ctx context.Context, input []byte, filterNames []string, params []raw.Dictionary) ([]byte, *Info, error) {
	if p.limits.MaxDecodeTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.limits.MaxDecodeTime)
		defer cancel()
	}

	data := input
	var info *Info
	for i, name := range filterNames {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		name = canonicalName(name)
		dec := p.findDecoder(name)
		if dec == nil {
			return nil, nil, errors.New("filters: unknown filter " + name)
		}
		if p.limits.MaxDecompressedSize > 0 && int64(len(data)) > p.limits.MaxDecompressedSize {
			return nil, nil, fmt.Errorf("filters: %s input exceeds size limit", name)
		}
		var param raw.Dictionary
		if i < len(params) {
			param = params[i]
		}
		img, isImage := dec.(imageDecoder)
		if isImage && i != len(filterNames)-1 {
			return nil, nil, fmt.Errorf("%w: %s", ErrFilterOrder, name)
		}
		var out []byte
		var err error
		if isImage {
			out, info, err = img.DecodeImage(ctx, data, param)
		} else {
			out, err = dec.Decode(ctx, data, param)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("filters: %s: %w", name, err)
		}
		if p.limits.MaxDecompressedSize > 0 && int64(len(out)) > p.limits.MaxDecompressedSize {
			return nil, nil, fmt.Errorf("filters: %s output exceeds size limit", name)
		}
		data = out
	}
	return data, info, nil
}

// ExtractFilters reads the Filter and DecodeParms entries of a stream
// dictionary. A single name or dictionary is treated as a one-element
// chain; params is padded with nils so both slices share an index.
func ExtractFilters(dict raw.Dictionary) ([]string, []raw.Dictionary) {
	var names []string
	var params []raw.Dictionary

	filterObj, ok := dict.Get(raw.NameObj{Val: "Filter"})
	if !ok {
		return names, params
	}

	switch f := filterObj.(type) {
	case raw.Name:
		names = append(names, f.Value())
	case *raw.ArrayObj:
		for _, item := range f.Items {
			if n, ok := item.(raw.Name); ok {
				names = append(names, n.Value())
			}
		}
	}
	if len(names) == 0 {
		return names, params
	}

	params = make([]raw.Dictionary, len(names))
	pObj, ok := dict.Get(raw.NameObj{Val: "DecodeParms"})
	if !ok {
		pObj, ok = dict.Get(raw.NameObj{Val: "DP"})
	}
	if ok {
		switch pv := pObj.(type) {
		case raw.Dictionary:
			params[0] = pv
		case *raw.ArrayObj:
			for i, item := range pv.Items {
				if i >= len(params) {
					break
				}
				if d, ok := item.(raw.Dictionary); ok {
					params[i] = d
				}
			}
		}
	}
	return names, params
}

// Param helpers shared by the decoders.

func paramInt(params raw.Dictionary, key string, def int) int {
	if params == nil {
		return def
	}
	v, ok := params.Get(raw.NameObj{Val: key})
	if !ok {
		return def
	}
	if n, ok := v.(raw.Number); ok {
		return int(n.Int())
	}
	return def
}

func paramBool(params raw.Dictionary, key string, def bool) bool {
	if params == nil {
		return def
	}
	v, ok := params.Get(raw.NameObj{Val: key})
	if !ok {
		return def
	}
	if b, ok := v.(raw.Boolean); ok {
		return b.Value()
	}
	return def
}
