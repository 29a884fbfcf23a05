package contentstream

import (
	"bytes"
	"context"
	"fmt"

	"github.com/siftdocs/pdfsift/filters"
	"github.com/siftdocs/pdfsift/ir/decoded"
	"github.com/siftdocs/pdfsift/ir/raw"
	"github.com/siftdocs/pdfsift/ir/semantic"
	"github.com/siftdocs/pdfsift/observability"
	"github.com/siftdocs/pdfsift/resources"
	"github.com/siftdocs/pdfsift/scanner"
)

// Inline image dictionaries use abbreviated keys and values; the
// normalization pre-pass expands them to their canonical spellings.
var inlineKeyAliases = map[string]string{
	"BPC": "BitsPerComponent",
	"CS":  "ColorSpace",
	"D":   "Decode",
	"DP":  "DecodeParms",
	"F":   "Filter",
	"H":   "Height",
	"I":   "Interpolate",
	"IM":  "ImageMask",
	"L":   "Length",
	"W":   "Width",
}

var inlineSpaceAliases = map[string]string{
	"G":    "DeviceGray",
	"RGB":  "DeviceRGB",
	"CMYK": "DeviceCMYK",
	"I":    "Indexed",
}

var inlineFilterAliases = map[string]string{
	"AHx": "ASCIIHexDecode",
	"A85": "ASCII85Decode",
	"LZW": "LZWDecode",
	"Fl":  "FlateDecode",
	"RL":  "RunLengthDecode",
	"CCF": "CCITTFaxDecode",
	"DCT": "DCTDecode",
}

// normalizeInlineImages rewrites every BI...ID...EI block in content into
// a synthesized image XObject plus a "/Name Do" invocation, so the
// interpreter needs no inline-image special case. Blocks that fail to
// parse are dropped from the rewritten stream. seq numbers synthesized
// names across nested form levels.
func (it *Interpreter) normalizeInlineImages(ctx context.Context, content []byte, scope resources.Scope, seq *int) ([]byte, resources.Scope) {
	if !bytes.Contains(content, []byte("BI")) {
		return content, scope
	}
	var out bytes.Buffer
	last := 0
	for i := 0; i+1 < len(content); i++ {
		if content[i] != 'B' || content[i+1] != 'I' {
			continue
		}
		// BI must sit on whitespace boundaries, which keeps operand text
		// and binary payload bytes from matching.
		if i > 0 && !isPDFSpace(content[i-1]) {
			continue
		}
		if i+2 < len(content) && !isPDFSpace(content[i+2]) && content[i+2] != '/' {
			continue
		}
		img, consumed, err := it.parseInlineImage(ctx, content[i+2:], scope)
		if err != nil {
			it.log.Warn("inline image dropped", observability.Error("err", err))
			continue
		}
		out.Write(content[last:i])
		name := fmt.Sprintf("InlineIm%d", *seq)
		*seq++
		scope = scope.WithXObject(name, img)
		out.WriteString("/" + name + " Do\n")
		i += 1 + consumed
		last = i + 1
	}
	if last == 0 {
		return content, scope
	}
	out.Write(content[last:])
	return out.Bytes(), scope
}

// parseInlineImage reads the abbreviated dictionary and payload following
// a BI keyword and builds the equivalent image XObject. Returns the byte
// count consumed from data.
func (it *Interpreter) parseInlineImage(ctx context.Context, data []byte, scope resources.Scope) (*semantic.XObject, int, error) {
	sc := scanner.New(bytes.NewReader(data), scanner.Config{
		MaxStringLength: it.cfg.Limits.MaxStringLength,
		MaxInlineImage:  it.cfg.Limits.MaxStreamLength,
	})
	dict := raw.Dict()
	var payload []byte
	for {
		tok, err := sc.Next()
		if err != nil {
			return nil, 0, err
		}
		if tok.Type == scanner.TokenInlineImage {
			payload = tok.Bytes
			break
		}
		if tok.Type != scanner.TokenName {
			return nil, 0, fmt.Errorf("inline image: expected key, got %q", tok.Str)
		}
		val, err := readObject(sc, 0)
		if err != nil {
			return nil, 0, err
		}
		key := tok.Str
		if full, ok := inlineKeyAliases[key]; ok {
			key = full
		}
		dict.Set(raw.NameLiteral(key), expandInlineValue(key, val))
	}
	consumed := int(sc.Position())

	img, err := it.buildInlineXObject(ctx, dict, payload, scope)
	if err != nil {
		return nil, 0, err
	}
	return img, consumed, nil
}

// expandInlineValue rewrites abbreviated names in ColorSpace and Filter
// entry values.
func expandInlineValue(key string, val raw.Object) raw.Object {
	switch key {
	case "ColorSpace":
		switch v := val.(type) {
		case raw.NameObj:
			if full, ok := inlineSpaceAliases[v.Value()]; ok {
				return raw.NameLiteral(full)
			}
		case *raw.ArrayObj:
			items := append([]raw.Object(nil), v.Items...)
			if len(items) > 0 {
				if n, ok := items[0].(raw.NameObj); ok {
					if full, ok := inlineSpaceAliases[n.Value()]; ok {
						items[0] = raw.NameLiteral(full)
					}
				}
			}
			return &raw.ArrayObj{Items: items}
		}
	case "Filter":
		switch v := val.(type) {
		case raw.NameObj:
			if full, ok := inlineFilterAliases[v.Value()]; ok {
				return raw.NameLiteral(full)
			}
		case *raw.ArrayObj:
			items := make([]raw.Object, len(v.Items))
			for i, item := range v.Items {
				items[i] = item
				if n, ok := item.(raw.NameObj); ok {
					if full, ok := inlineFilterAliases[n.Value()]; ok {
						items[i] = raw.NameLiteral(full)
					}
				}
			}
			return &raw.ArrayObj{Items: items}
		}
	}
	return val
}

// buildInlineXObject decodes the payload through the declared filter
// chain and assembles the semantic image view.
func (it *Interpreter) buildInlineXObject(ctx context.Context, dict *raw.DictObj, payload []byte, scope resources.Scope) (*semantic.XObject, error) {
	env := it.cfg.Env
	width := dictIntValue(env, dict, "Width")
	height := dictIntValue(env, dict, "Height")
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("inline image: bad dimensions %dx%d", width, height)
	}

	x := &semantic.XObject{
		Subtype:          "Image",
		Dict:             dict,
		Width:            width,
		Height:           height,
		BitsPerComponent: 8,
	}
	if bpc := dictIntValue(env, dict, "BitsPerComponent"); bpc > 0 {
		x.BitsPerComponent = bpc
	}
	if b, ok := dict.Get(raw.NameLiteral("ImageMask")); ok {
		if bo, ok := env.Resolve(b).(raw.Boolean); ok {
			x.ImageMask = bo.Value()
		}
	}
	if x.ImageMask {
		x.BitsPerComponent = 1
	}
	if d, ok := dict.Get(raw.NameLiteral("Decode")); ok {
		if arr, ok := env.Resolve(d).(*raw.ArrayObj); ok {
			for _, item := range arr.Items {
				if n, ok := env.Resolve(item).(raw.Number); ok {
					x.Decode = append(x.Decode, n.Float())
				}
			}
		}
	}
	if csObj, ok := dict.Get(raw.NameLiteral("ColorSpace")); ok {
		cs, err := resolveInlineColorSpace(env, csObj, scope)
		if err != nil {
			return nil, err
		}
		x.ColorSpace = cs
	} else if !x.ImageMask {
		x.ColorSpace = semantic.DeviceColorSpace{Name: "DeviceGray"}
	}

	names, parms := filters.ExtractFilters(dict)
	if len(names) == 0 {
		// The scanner delivers the payload up to the EI delimiter, which
		// includes the EOL separating data from EI. Unfiltered samples have
		// a computable size; cut the payload to it.
		comps := 1
		if x.ColorSpace != nil {
			comps = x.ColorSpace.Components()
		}
		rowBytes := (width*x.BitsPerComponent*comps + 7) / 8
		if want := rowBytes * height; want > 0 && len(payload) > want {
			payload = payload[:want]
		}
		x.Data = payload
		return x, nil
	}
	data, info, err := it.cfg.Pipeline.DecodeWithInfo(ctx, payload, names, parms)
	if err != nil {
		return nil, fmt.Errorf("inline image decode: %w", err)
	}
	x.Data = data
	if info != nil {
		x.Hint = &decoded.ImageHint{
			Filter:           info.Filter,
			Width:            info.Width,
			Height:           info.Height,
			Components:       info.Components,
			BitsPerComponent: info.BitsPerComponent,
		}
	}
	return x, nil
}

// resolveInlineColorSpace handles the one lookup form unique to inline
// images: a bare name referencing the surrounding ColorSpace resources.
func resolveInlineColorSpace(env semantic.Env, obj raw.Object, scope resources.Scope) (semantic.ColorSpace, error) {
	if n, ok := env.Resolve(obj).(raw.NameObj); ok {
		switch n.Value() {
		case "DeviceGray", "DeviceRGB", "DeviceCMYK":
		default:
			if cs, ok := scope.ColorSpaces[n.Value()]; ok {
				return cs, nil
			}
		}
	}
	return semantic.ParseColorSpace(env, obj)
}

func dictIntValue(env semantic.Env, dict *raw.DictObj, key string) int {
	v, ok := dict.Get(raw.NameLiteral(key))
	if !ok {
		return 0
	}
	if n, ok := env.Resolve(v).(raw.Number); ok {
		return int(n.Int())
	}
	return 0
}

func isPDFSpace(c byte) bool {
	switch c {
	case 0x00, 0x09, 0x0A, 0x0C, 0x0D, 0x20:
		return true
	}
	return false
}
