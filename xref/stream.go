package xref

import (
	"context"
	"errors"
	"fmt"

	"github.com/siftdocs/pdfsift/filters"
	"github.com/siftdocs/pdfsift/ir/raw"
	"github.com/siftdocs/pdfsift/observability"
	"github.com/siftdocs/pdfsift/recovery"
	"github.com/siftdocs/pdfsift/scanner"
)

// parseStreamSection reads a cross-reference stream: an indirect stream
// object whose dictionary doubles as the trailer and whose decoded payload
// holds fixed-width rows described by /W over the ranges in /Index.
func parseStreamSection(ctx context.Context, tr *tokenReader, cfg Config) (*section, error) {
	dict, payload, err := readStreamObject(tr)
	if err != nil {
		return nil, err
	}
	if typ, ok := dict.Get(raw.NameLiteral("Type")); ok {
		if name, isName := typ.(raw.NameObj); isName && name.Val != "XRef" {
			return nil, fmt.Errorf("stream at xref offset has /Type /%s", name.Val)
		}
	}

	decoded := payload
	if names, parms := filters.ExtractFilters(dict); len(names) > 0 {
		pipe := filters.NewPipeline([]filters.Decoder{
			filters.NewFlateDecoder(),
			filters.NewLZWDecoder(),
			filters.NewRunLengthDecoder(),
			filters.NewASCII85Decoder(),
			filters.NewASCIIHexDecoder(),
		}, filters.Limits{
			MaxDecompressedSize: cfg.Limits.MaxDecompressedSize,
			MaxDecodeTime:       cfg.Limits.MaxDecodeTime,
		})
		decoded, err = pipe.Decode(ctx, payload, names, parms)
		if err != nil {
			return nil, fmt.Errorf("decode xref stream: %w", err)
		}
	}

	widths := dictInts(dict, "W")
	if len(widths) < 3 {
		return nil, errors.New("xref stream missing /W widths")
	}
	w1, w2, w3 := int(widths[0]), int(widths[1]), int(widths[2])
	if w1 < 0 || w2 < 0 || w3 < 0 || w1 > 8 || w2 > 8 || w3 > 8 {
		return nil, fmt.Errorf("implausible /W widths [%d %d %d]", w1, w2, w3)
	}
	rowLen := w1 + w2 + w3
	if rowLen == 0 {
		return nil, errors.New("xref stream /W widths are all zero")
	}

	size := dictInt(dict, "Size", 0)
	index := dictInts(dict, "Index")
	if len(index) == 0 {
		index = []int64{0, size}
	}

	sec := newSection("xref-stream")
	sec.trailer = dict
	sec.prev = dictInt(dict, "Prev", -1)

	pos := 0
	for p := 0; p+1 < len(index); p += 2 {
		start, count := index[p], index[p+1]
		for i := int64(0); i < count; i++ {
			if pos+rowLen > len(decoded) {
				err := fmt.Errorf("xref stream rows end at object %d of /Index [%d %d]", start+i, start, count)
				action := cfg.Recovery.OnError(ctx, err, recovery.Location{Component: "xref"})
				if action == recovery.ActionFail {
					return nil, err
				}
				cfg.Logger.Warn("truncated xref stream", observability.Error("cause", err))
				return sec, nil
			}
			// A zero-width first field means every row is type 1.
			rowType := uint64(1)
			if w1 > 0 {
				rowType = readBE(decoded[pos : pos+w1])
			}
			f2 := readBE(decoded[pos+w1 : pos+w1+w2])
			f3 := readBE(decoded[pos+w1+w2 : pos+rowLen])
			pos += rowLen

			num := int(start + i)
			switch rowType {
			case 0:
				sec.add(num, entry{kind: kindFree, gen: int(f3)})
			case 1:
				sec.add(num, entry{kind: kindInFile, offset: int64(f2), gen: int(f3)})
			case 2:
				sec.add(num, entry{kind: kindInStream, streamNum: int(f2), streamIdx: int(f3)})
			default:
				// Reserved for future use; such rows reference nothing.
			}
		}
	}
	return sec, nil
}

// readStreamObject consumes "N G obj <<dict>> stream ... endstream" and
// returns the dictionary and raw payload. /Length must be direct in a
// cross-reference stream; when it is missing or indirect the scanner falls
// back to searching for the endstream keyword.
func readStreamObject(tr *tokenReader) (*raw.DictObj, []byte, error) {
	numTok, err := tr.next()
	if err != nil {
		return nil, nil, err
	}
	if numTok.Type != scanner.TokenNumber || !numTok.IsInt {
		return nil, nil, errors.New("xref offset does not address an indirect object")
	}
	genTok, err := tr.next()
	if err != nil {
		return nil, nil, err
	}
	if genTok.Type != scanner.TokenNumber || !genTok.IsInt {
		return nil, nil, errors.New("object header missing generation")
	}
	objTok, err := tr.next()
	if err != nil {
		return nil, nil, err
	}
	if objTok.Type != scanner.TokenKeyword || objTok.Str != "obj" {
		return nil, nil, errors.New("object header missing obj keyword")
	}
	obj, err := parseObject(tr)
	if err != nil {
		return nil, nil, err
	}
	dict, ok := obj.(*raw.DictObj)
	if !ok {
		return nil, nil, errors.New("xref stream object is not a stream")
	}
	if n := dictInt(dict, "Length", -1); n >= 0 {
		tr.setStreamLengthHint(n)
	} else {
		tr.clearStreamLengthHint()
	}
	streamTok, err := tr.next()
	if err != nil {
		return nil, nil, err
	}
	if streamTok.Type != scanner.TokenStream {
		return nil, nil, errors.New("xref stream object has no stream payload")
	}
	return dict, streamTok.Bytes, nil
}

func readBE(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}
