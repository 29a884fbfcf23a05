package xref

import (
	"errors"

	"github.com/siftdocs/pdfsift/ir/raw"
	"github.com/siftdocs/pdfsift/scanner"
)

// tokenReader adds one-token pushback and stream-length hints on top of a
// scanner. A focused copy of the loader's reader: xref sections only ever
// need dictionaries, the odd array, and a single stream payload.
type tokenReader struct {
	s            scanner.Scanner
	buf          []scanner.Token
	lengthSetter interface{ SetNextStreamLength(int64) }
}

func newTokenReader(s scanner.Scanner) *tokenReader {
	tr := &tokenReader{s: s}
	if setter, ok := s.(interface{ SetNextStreamLength(int64) }); ok {
		tr.lengthSetter = setter
	}
	return tr
}

func (r *tokenReader) next() (scanner.Token, error) {
	if l := len(r.buf); l > 0 {
		t := r.buf[l-1]
		r.buf = r.buf[:l-1]
		return t, nil
	}
	return r.s.Next()
}

func (r *tokenReader) unread(tok scanner.Token) { r.buf = append(r.buf, tok) }

func (r *tokenReader) setStreamLengthHint(n int64) {
	if r.lengthSetter != nil && n > 0 {
		r.lengthSetter.SetNextStreamLength(n)
	}
}

func (r *tokenReader) clearStreamLengthHint() {
	if r.lengthSetter != nil {
		r.lengthSetter.SetNextStreamLength(-1)
	}
}

func parseObject(tr *tokenReader) (raw.Object, error) {
	tok, err := tr.next()
	if err != nil {
		return nil, err
	}
	switch tok.Type {
	case scanner.TokenName:
		return raw.NameObj{Val: tok.Str}, nil
	case scanner.TokenNumber:
		if tok.IsInt {
			return raw.NumberObj{I: tok.Int, IsInt: true}, nil
		}
		return raw.NumberObj{F: tok.Float, IsInt: false}, nil
	case scanner.TokenBoolean:
		return raw.BoolObj{V: tok.Bool}, nil
	case scanner.TokenNull:
		return raw.NullObj{}, nil
	case scanner.TokenString:
		return raw.StringObj{Bytes: tok.Bytes}, nil
	case scanner.TokenArray:
		return parseArray(tr)
	case scanner.TokenDict:
		return parseDict(tr)
	case scanner.TokenRef:
		return raw.RefObj{R: raw.ObjectRef{Num: int(tok.Int), Gen: tok.Gen}}, nil
	}
	return nil, errors.New("unexpected token")
}

func parseArray(tr *tokenReader) (raw.Object, error) {
	arr := &raw.ArrayObj{}
	for {
		tok, err := tr.next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "]" {
			break
		}
		tr.unread(tok)
		item, err := parseObject(tr)
		if err != nil {
			return nil, err
		}
		arr.Append(item)
	}
	return arr, nil
}

func parseDict(tr *tokenReader) (raw.Object, error) {
	d := raw.Dict()
	for {
		tok, err := tr.next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == ">>" {
			break
		}
		if tok.Type != scanner.TokenName {
			// A following keyword means the closing >> went missing;
			// hand the keyword back and take the dict as-is.
			if tok.Type == scanner.TokenKeyword {
				tr.unread(tok)
				break
			}
			return nil, errors.New("expected name in dict")
		}
		key := tok.Str
		val, err := parseObject(tr)
		if err != nil {
			return nil, err
		}
		d.Set(raw.NameObj{Val: key}, val)
	}
	return d, nil
}

func dictInt(d *raw.DictObj, key string, def int64) int64 {
	if d == nil {
		return def
	}
	val, ok := d.Get(raw.NameLiteral(key))
	if !ok {
		return def
	}
	num, ok := val.(raw.NumberObj)
	if !ok {
		return def
	}
	return num.Int()
}

func dictInts(d *raw.DictObj, key string) []int64 {
	val, ok := d.Get(raw.NameLiteral(key))
	if !ok {
		return nil
	}
	arr, ok := val.(*raw.ArrayObj)
	if !ok {
		return nil
	}
	out := make([]int64, 0, arr.Len())
	for _, item := range arr.Items {
		num, ok := item.(raw.NumberObj)
		if !ok {
			return nil
		}
		out = append(out, num.Int())
	}
	return out
}
