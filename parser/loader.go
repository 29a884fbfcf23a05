package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/siftdocs/pdfsift/filters"
	"github.com/siftdocs/pdfsift/ir/raw"
	"github.com/siftdocs/pdfsift/observability"
	"github.com/siftdocs/pdfsift/recovery"
	"github.com/siftdocs/pdfsift/scanner"
	"github.com/siftdocs/pdfsift/security"
	"github.com/siftdocs/pdfsift/xref"
)

// Cache stores loaded objects across Load calls. Implementations must be
// safe for use from a single loader; the loader serializes access itself.
type Cache interface {
	Get(ref raw.ObjectRef) (raw.Object, bool)
	Put(ref raw.ObjectRef, obj raw.Object)
}

// ObjectLoader materializes indirect objects on demand, from their file
// offset or from the object stream that holds them.
type ObjectLoader interface {
	Load(ctx context.Context, ref raw.ObjectRef) (raw.Object, error)
	LoadIndirect(ctx context.Context, ref raw.ObjectRef, depth int) (raw.Object, error)
	// StreamObjects inflates the object stream with the given object
	// number and returns every object it holds, keyed by object number.
	StreamObjects(ctx context.Context, streamNum int) (map[int]raw.Object, error)
}

type ObjectLoaderBuilder struct {
	reader    io.ReaderAt
	xrefTable *xref.Table
	maxDepth  int
	limits    security.Limits
	cache     Cache
	recovery  recovery.Strategy
	logger    observability.Logger
}

func (b *ObjectLoaderBuilder) WithXRef(table *xref.Table) *ObjectLoaderBuilder {
	b.xrefTable = table
	return b
}
func (b *ObjectLoaderBuilder) WithReader(r io.ReaderAt) *ObjectLoaderBuilder {
	b.reader = r
	return b
}
func (b *ObjectLoaderBuilder) WithLimits(l security.Limits) *ObjectLoaderBuilder {
	b.limits = l
	return b
}
func (b *ObjectLoaderBuilder) WithRecovery(s recovery.Strategy) *ObjectLoaderBuilder {
	b.recovery = s
	return b
}
func (b *ObjectLoaderBuilder) WithLogger(l observability.Logger) *ObjectLoaderBuilder {
	b.logger = l
	return b
}
func (b *ObjectLoaderBuilder) WithCache(c Cache) *ObjectLoaderBuilder { b.cache = c; return b }

func (b *ObjectLoaderBuilder) Build() (ObjectLoader, error) {
	if b.reader == nil || b.xrefTable == nil {
		return nil, errors.New("reader and xref table required")
	}
	limits := b.limits
	if limits == (security.Limits{}) {
		limits = security.DefaultLimits()
	}
	maxDepth := b.maxDepth
	if maxDepth == 0 {
		maxDepth = limits.MaxIndirectDepth
	}
	rec := b.recovery
	if rec == nil {
		rec = recovery.NewStrictStrategy()
	}
	logger := b.logger
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &objectLoader{
		reader:    b.reader,
		xrefTable: b.xrefTable,
		maxDepth:  maxDepth,
		limits:    limits,
		cache:     b.cache,
		recovery:  rec,
		logger:    logger,
	}, nil
}

type objectLoader struct {
	reader    io.ReaderAt
	xrefTable *xref.Table
	scanner   scanner.Scanner
	maxDepth  int
	limits    security.Limits
	cache     Cache
	recovery  recovery.Strategy
	logger    observability.Logger
	mu        sync.Mutex
	objstm    map[int]map[int]raw.Object
}

func (o *objectLoader) Load(ctx context.Context, ref raw.ObjectRef) (raw.Object, error) {
	if o.cache != nil {
		if obj, ok := o.cache.Get(ref); ok {
			return obj, nil
		}
	}

	obj, err := o.loadOnce(ctx, ref)
	if err != nil {
		return nil, err
	}

	if o.cache != nil {
		o.cache.Put(ref, obj)
	}
	return obj, nil
}

func (o *objectLoader) LoadIndirect(ctx context.Context, ref raw.ObjectRef, depth int) (raw.Object, error) {
	if depth > o.maxDepth {
		return nil, fmt.Errorf("reference chain deeper than %d", o.maxDepth)
	}
	return o.Load(ctx, ref)
}

func (o *objectLoader) StreamObjects(ctx context.Context, streamNum int) (map[int]raw.Object, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.streamObjectsLocked(ctx, streamNum)
}

func (o *objectLoader) loadOnce(ctx context.Context, ref raw.ObjectRef) (raw.Object, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	offset, gen, found := o.xrefTable.Lookup(ref.Num)
	if !found {
		if osNum, _, ok := o.xrefTable.ObjStream(ref.Num); ok {
			objs, err := o.streamObjectsLocked(ctx, osNum)
			if err != nil {
				return nil, err
			}
			if obj, ok := objs[ref.Num]; ok {
				return obj, nil
			}
			return nil, fmt.Errorf("object %d not found in object stream %d", ref.Num, osNum)
		}
		return nil, fmt.Errorf("object %d not in xref", ref.Num)
	}
	return o.loadAtOffset(ctx, ref.Num, offset, gen)
}

// loadAtOffset assumes the caller holds the loader mutex. Loads share one
// scanner; each load seeks it to the object's offset.
func (o *objectLoader) loadAtOffset(ctx context.Context, objNum int, offset int64, gen int) (raw.Object, error) {
	if o.scanner == nil {
		o.scanner = scanner.New(o.reader, o.scanConfig())
	}
	return o.scanObject(ctx, o.scanner, objNum, offset, gen)
}

func (o *objectLoader) scanConfig() scanner.Config {
	return scanner.Config{
		Recovery:        o.recovery,
		MaxStringLength: o.limits.MaxStringLength,
		MaxArrayDepth:   o.limits.MaxIndirectDepth,
		MaxDictDepth:    o.limits.MaxIndirectDepth,
		MaxBufferSize:   o.limits.MaxDecompressedSize,
		MaxStreamLength: o.limits.MaxStreamLength,
	}
}

func (o *objectLoader) scanObject(ctx context.Context, s scanner.Scanner, objNum int, offset int64, gen int) (raw.Object, error) {
	if err := s.SeekTo(offset); err != nil {
		return nil, err
	}
	tr := newTokenReader(s)

	// Expect "<objNum> <gen> obj".
	tokNum, err := tr.next()
	if err != nil {
		return nil, err
	}
	tokGen, err := tr.next()
	if err != nil {
		return nil, err
	}
	tokObj, err := tr.next()
	if err != nil {
		return nil, err
	}
	if tokNum.Type != scanner.TokenNumber || !tokNum.IsInt ||
		tokGen.Type != scanner.TokenNumber || !tokGen.IsInt ||
		tokObj.Type != scanner.TokenKeyword || tokObj.Str != "obj" {
		return nil, fmt.Errorf("no object header at offset %d for object %d", offset, objNum)
	}
	if int(tokNum.Int) != objNum || int(tokGen.Int) != gen {
		// The xref row disagrees with the header. The header is part of
		// the object itself, so under recovery we trust it and go on.
		err := fmt.Errorf("object %d %d: header says %d %d", objNum, gen, tokNum.Int, tokGen.Int)
		action := o.recovery.OnError(ctx, err, recovery.Location{
			ObjectNum: objNum, ObjectGen: gen, ByteOffset: offset, Component: "parser",
		})
		if action == recovery.ActionFail {
			return nil, err
		}
		o.logger.Warn("object header mismatch", observability.Error("cause", err))
	}

	obj, err := parseObject(tr, o.recovery, objNum, gen)
	if err != nil {
		return nil, err
	}
	if dict, ok := obj.(*raw.DictObj); ok {
		if hint := o.resolveStreamLength(ctx, dict); hint > 0 {
			tr.setStreamLengthHint(hint)
		} else {
			tr.clearStreamLengthHint()
		}
		if streamTok, err := tr.next(); err == nil && streamTok.Type == scanner.TokenStream {
			obj = raw.NewStream(dict, streamTok.Bytes)
		} else if err == nil {
			tr.unread(streamTok)
		}
	}
	return obj, nil
}

// streamObjectsLocked inflates an object stream: decode the payload, read
// the N (number, offset) pairs before /First, then parse each object from
// its offset in the body. Results are cached per stream number.
func (o *objectLoader) streamObjectsLocked(ctx context.Context, streamNum int) (map[int]raw.Object, error) {
	if objs, ok := o.objstm[streamNum]; ok {
		return objs, nil
	}
	offset, gen, ok := o.xrefTable.Lookup(streamNum)
	if !ok {
		return nil, fmt.Errorf("object stream %d not in xref", streamNum)
	}
	streamObj, err := o.loadAtOffset(ctx, streamNum, offset, gen)
	if err != nil {
		return nil, err
	}
	st, ok := streamObj.(*raw.StreamObj)
	if !ok {
		return nil, fmt.Errorf("object %d is not an object stream", streamNum)
	}
	objs, err := o.inflateObjectStream(ctx, streamNum, st)
	if err != nil {
		return nil, err
	}
	if o.objstm == nil {
		o.objstm = make(map[int]map[int]raw.Object)
	}
	o.objstm[streamNum] = objs
	return objs, nil
}

func (o *objectLoader) inflateObjectStream(ctx context.Context, streamNum int, st *raw.StreamObj) (map[int]raw.Object, error) {
	nObj := int(dictInt(st.Dict, "N"))
	first := int(dictInt(st.Dict, "First"))
	if nObj <= 0 {
		return nil, fmt.Errorf("object stream %d declares N %d", streamNum, nObj)
	}

	data := st.RawData()
	if names, parms := filters.ExtractFilters(st.Dict); len(names) > 0 {
		p := filters.NewPipeline([]filters.Decoder{
			filters.NewFlateDecoder(),
			filters.NewLZWDecoder(),
			filters.NewRunLengthDecoder(),
			filters.NewASCII85Decoder(),
			filters.NewASCIIHexDecoder(),
			filters.NewCryptDecoder(),
		}, filters.Limits{
			MaxDecompressedSize: o.limits.MaxDecompressedSize,
			MaxDecodeTime:       o.limits.MaxDecodeTime,
		})
		decoded, err := p.Decode(ctx, data, names, parms)
		if err != nil {
			return nil, fmt.Errorf("decode object stream %d: %w", streamNum, err)
		}
		data = decoded
	}
	if first < 0 || first > len(data) {
		return nil, fmt.Errorf("object stream %d /First %d exceeds payload", streamNum, first)
	}

	header := data[:first]
	body := data[first:]

	s := scanner.New(bytes.NewReader(header), o.scanConfig())
	pairs := make([]int, 0, 2*nObj)
	for len(pairs) < 2*nObj {
		tok, err := s.Next()
		if err != nil {
			return nil, fmt.Errorf("object stream %d header: %w", streamNum, err)
		}
		if tok.Type != scanner.TokenNumber || !tok.IsInt {
			continue
		}
		pairs = append(pairs, int(tok.Int))
	}

	objs := make(map[int]raw.Object, nObj)
	for i := 0; i < nObj; i++ {
		objNum := pairs[2*i]
		off := pairs[2*i+1]
		if off < 0 || off > len(body) {
			err := fmt.Errorf("object stream %d: object %d offset %d out of range", streamNum, objNum, off)
			action := o.recovery.OnError(ctx, err, recovery.Location{
				ObjectNum: objNum, Component: "parser",
			})
			if action == recovery.ActionFail {
				return nil, err
			}
			o.logger.Warn("object stream entry skipped", observability.Error("cause", err))
			continue
		}
		sc := scanner.New(bytes.NewReader(body[off:]), o.scanConfig())
		obj, err := parseObject(newTokenReader(sc), o.recovery, objNum, 0)
		if err != nil {
			action := o.recovery.OnError(ctx, err, recovery.Location{
				ObjectNum: objNum, Component: "parser",
			})
			if action == recovery.ActionFail {
				return nil, fmt.Errorf("object stream %d: object %d: %w", streamNum, objNum, err)
			}
			o.logger.Warn("object stream entry skipped", observability.Error("cause", err))
			continue
		}
		objs[objNum] = obj
	}
	return objs, nil
}

// resolveStreamLength returns the /Length value, following one indirect
// reference with a throwaway scanner so the shared cursor stays put. An
// unresolvable length returns 0 and lets the endstream scan find the end.
func (o *objectLoader) resolveStreamLength(ctx context.Context, dict *raw.DictObj) int64 {
	val, ok := dict.Get(raw.NameLiteral("Length"))
	if !ok {
		return 0
	}
	switch v := val.(type) {
	case raw.NumberObj:
		return v.Int()
	case raw.RefObj:
		offset, gen, found := o.xrefTable.Lookup(v.R.Num)
		if !found {
			o.logger.Debug("stream length reference unresolvable",
				observability.Int("object", v.R.Num))
			return 0
		}
		tmp := scanner.New(o.reader, o.scanConfig())
		obj, err := o.scanObject(ctx, tmp, v.R.Num, offset, gen)
		if err != nil {
			o.logger.Debug("stream length load failed", observability.Error("cause", err))
			return 0
		}
		if num, ok := obj.(raw.NumberObj); ok {
			return num.Int()
		}
		return 0
	default:
		return 0
	}
}

func dictInt(d *raw.DictObj, key string) int64 {
	if v, ok := d.Get(raw.NameLiteral(key)); ok {
		if n, ok := v.(raw.NumberObj); ok {
			return n.Int()
		}
	}
	return 0
}

func dictName(d *raw.DictObj, key string) string {
	if d == nil {
		return ""
	}
	if v, ok := d.Get(raw.NameLiteral(key)); ok {
		if n, ok := v.(raw.NameObj); ok {
			return n.Val
		}
	}
	return ""
}

type streamLengthSetter interface{ SetNextStreamLength(int64) }

type tokenReader struct {
	s            interface{ Next() (scanner.Token, error) }
	buf          []scanner.Token
	lengthSetter streamLengthSetter
}

func newTokenReader(src interface{ Next() (scanner.Token, error) }) *tokenReader {
	tr := &tokenReader{s: src}
	if setter, ok := src.(streamLengthSetter); ok {
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

func parseObject(tr *tokenReader, rec recovery.Strategy, objNum, gen int) (raw.Object, error) {
	tok, err := tr.next()
	if err != nil {
		return nil, err
	}
	if tok.Type == scanner.TokenKeyword && tok.Str == "endobj" {
		return nil, errors.New("unexpected endobj")
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
		return parseArray(tr, rec, objNum, gen)
	case scanner.TokenDict:
		return parseDict(tr, rec, objNum, gen)
	case scanner.TokenRef:
		return raw.RefObj{R: raw.ObjectRef{Num: int(tok.Int), Gen: tok.Gen}}, nil
	}
	return nil, fmt.Errorf("unexpected token %q", tok.Str)
}

func parseArray(tr *tokenReader, rec recovery.Strategy, objNum, gen int) (raw.Object, error) {
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
		item, err := parseObject(tr, rec, objNum, gen)
		if err != nil {
			return nil, err
		}
		arr.Append(item)
	}
	return arr, nil
}

func parseDict(tr *tokenReader, rec recovery.Strategy, objNum, gen int) (raw.Object, error) {
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
			// endobj here means the closing >> went missing.
			if tok.Type == scanner.TokenKeyword && tok.Str == "endobj" {
				err := errors.New("endobj inside dictionary")
				action := rec.OnError(nil, err, recovery.Location{
					ObjectNum: objNum, ObjectGen: gen, Component: "parser",
				})
				if action == recovery.ActionWarn || action == recovery.ActionFix {
					tr.unread(tok)
					break
				}
				return nil, err
			}
			return nil, errors.New("expected name in dict")
		}
		key := tok.Str
		val, err := parseObject(tr, rec, objNum, gen)
		if err != nil {
			return nil, err
		}
		d.Set(raw.NameObj{Val: key}, val)
	}
	return d, nil
}
