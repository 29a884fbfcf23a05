// Package parser assembles raw documents: it loads the cross-reference
// table, materializes every reachable indirect object (including object
// stream contents), validates that a document root exists, and applies the
// configured encryption policy. The output is a raw.Document ready for the
// decode and semantic stages.
package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/siftdocs/pdfsift/ir/raw"
	"github.com/siftdocs/pdfsift/observability"
	"github.com/siftdocs/pdfsift/recovery"
	"github.com/siftdocs/pdfsift/security"
	"github.com/siftdocs/pdfsift/xref"
)

// ErrNoTrailer reports a document whose trailer or catalog could not be
// located, even after a repair scan when recovery permitted one.
var ErrNoTrailer = errors.New("no usable trailer or document root")

// ErrEncrypted reports an encrypted document rejected by policy.
var ErrEncrypted = errors.New("document is encrypted")

// Config controls document parsing.
type Config struct {
	Recovery   recovery.Strategy
	Limits     security.Limits
	Encryption security.EncryptionPolicy
	Logger     observability.Logger
	Cache      Cache
}

func (cfg Config) withDefaults() Config {
	if cfg.Recovery == nil {
		cfg.Recovery = recovery.NewStrictStrategy()
	}
	if cfg.Limits == (security.Limits{}) {
		cfg.Limits = security.DefaultLimits()
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger{}
	}
	return cfg
}

// DocumentParser builds a raw.Document from cross-reference data and the
// object loader.
type DocumentParser struct {
	cfg Config
}

func NewDocumentParser(cfg Config) *DocumentParser {
	return &DocumentParser{cfg: cfg.withDefaults()}
}

func (p *DocumentParser) Parse(ctx context.Context, r io.ReaderAt) (*raw.Document, error) {
	cfg := p.cfg
	table, err := xref.Load(ctx, r, xref.Config{
		Limits:   cfg.Limits,
		Recovery: cfg.Recovery,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoTrailer, err)
	}

	doc, err := p.assemble(ctx, r, table)
	if err != nil {
		return nil, err
	}

	// A chain can parse cleanly yet point at the wrong objects. When the
	// root does not hold up and the table was not already rebuilt, a
	// repair scan is the remaining option.
	if !p.hasRoot(doc) {
		rootErr := fmt.Errorf("%w: catalog unreachable", ErrNoTrailer)
		if table.Repaired() {
			return nil, rootErr
		}
		action := cfg.Recovery.OnError(ctx, rootErr, recovery.Location{Component: "parser"})
		if action == recovery.ActionFail {
			return nil, rootErr
		}
		cfg.Logger.Warn("document root unreachable, rebuilding xref by linear scan")
		repaired, rerr := xref.Repair(ctx, r, xref.Config{
			Limits:   cfg.Limits,
			Recovery: cfg.Recovery,
			Logger:   cfg.Logger,
		})
		if rerr != nil {
			return nil, rootErr
		}
		doc, err = p.assemble(ctx, r, repaired)
		if err != nil {
			return nil, err
		}
		if !p.hasRoot(doc) {
			return nil, rootErr
		}
	}
	return doc, nil
}

// assemble loads every object the table knows about into a document.
func (p *DocumentParser) assemble(ctx context.Context, r io.ReaderAt, table *xref.Table) (*raw.Document, error) {
	cfg := p.cfg
	trailer := table.Trailer()
	if trailer == nil {
		return nil, ErrNoTrailer
	}

	encrypted := false
	if _, ok := trailer.Get(raw.NameLiteral("Encrypt")); ok {
		if cfg.Encryption == security.EncryptionReject {
			return nil, ErrEncrypted
		}
		encrypted = true
		cfg.Logger.Warn("encrypted document loaded without decryption",
			observability.String("policy", cfg.Encryption.String()))
	}

	loader, err := (&ObjectLoaderBuilder{}).
		WithReader(r).
		WithXRef(table).
		WithLimits(cfg.Limits).
		WithCache(cfg.Cache).
		WithRecovery(cfg.Recovery).
		WithLogger(cfg.Logger).
		Build()
	if err != nil {
		return nil, err
	}

	doc := &raw.Document{
		Objects:   make(map[raw.ObjectRef]raw.Object),
		Trailer:   trailer,
		Version:   detectHeaderVersion(r),
		Encrypted: encrypted,
	}

	for _, objNum := range table.Objects() {
		if objNum == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ref := raw.ObjectRef{Num: objNum}
		if _, gen, found := table.Lookup(objNum); found {
			ref.Gen = gen
		}
		obj, err := loader.Load(ctx, ref)
		if err != nil {
			action := cfg.Recovery.OnError(ctx, err, recovery.Location{
				ObjectNum: ref.Num, ObjectGen: ref.Gen, Component: "parser",
			})
			if action == recovery.ActionFail {
				return nil, fmt.Errorf("load object %d: %w", objNum, err)
			}
			cfg.Logger.Warn("object skipped", observability.Int("object", objNum),
				observability.Error("cause", err))
			continue
		}
		doc.Objects[ref] = obj
	}

	// A rebuilt table only indexes top-level objects; compressed objects
	// hide inside streams the scan could not see into. Inflate every
	// object stream so they surface too.
	if table.Repaired() {
		p.inflateRepairedStreams(ctx, loader, doc)
	}

	p.populateMetadata(ctx, loader, doc)
	return doc, nil
}

func (p *DocumentParser) hasRoot(doc *raw.Document) bool {
	rootObj, ok := doc.Trailer.Get(raw.NameLiteral("Root"))
	if !ok {
		return false
	}
	switch v := rootObj.(type) {
	case raw.RefObj:
		catalog, ok := doc.Objects[v.R]
		if !ok {
			// Generation drift between trailer and xref is common in
			// damaged files; match by number before giving up.
			for ref, obj := range doc.Objects {
				if ref.Num == v.R.Num {
					catalog = obj
					ok = true
					break
				}
			}
		}
		if !ok {
			return false
		}
		_, isDict := catalog.(*raw.DictObj)
		return isDict
	case *raw.DictObj:
		return true
	default:
		return false
	}
}

func (p *DocumentParser) inflateRepairedStreams(ctx context.Context, loader ObjectLoader, doc *raw.Document) {
	var streams []raw.ObjectRef
	for ref, obj := range doc.Objects {
		if st, ok := obj.(*raw.StreamObj); ok && dictName(st.Dict, "Type") == "ObjStm" {
			streams = append(streams, ref)
		}
	}
	for _, ref := range streams {
		objs, err := loader.StreamObjects(ctx, ref.Num)
		if err != nil {
			p.cfg.Logger.Warn("object stream not inflated",
				observability.Int("stream", ref.Num), observability.Error("cause", err))
			continue
		}
		for num, obj := range objs {
			inner := raw.ObjectRef{Num: num}
			if _, exists := doc.Objects[inner]; exists {
				// A top-level definition outranks the compressed one,
				// same as a newer revision outranks an older.
				continue
			}
			doc.Objects[inner] = obj
		}
	}
}

func (p *DocumentParser) populateMetadata(ctx context.Context, loader ObjectLoader, doc *raw.Document) {
	if idObj, ok := doc.Trailer.Get(raw.NameLiteral("ID")); ok {
		if arr, isArr := idObj.(*raw.ArrayObj); isArr {
			for _, item := range arr.Items {
				if s, isStr := item.(raw.StringObj); isStr {
					doc.ID = append(doc.ID, s.Value())
				}
			}
		}
	}

	infoObj, ok := doc.Trailer.Get(raw.NameLiteral("Info"))
	if !ok {
		return
	}
	var dict *raw.DictObj
	switch v := infoObj.(type) {
	case raw.RefObj:
		info, err := loader.Load(ctx, v.R)
		if err != nil {
			return
		}
		dict, _ = info.(*raw.DictObj)
	case *raw.DictObj:
		dict = v
	}
	if dict == nil {
		return
	}

	md := raw.DocumentMetadata{}
	if v, ok := stringValue(dict, "Title"); ok {
		md.Title = v
	}
	if v, ok := stringValue(dict, "Author"); ok {
		md.Author = v
	}
	if v, ok := stringValue(dict, "Creator"); ok {
		md.Creator = v
	}
	if v, ok := stringValue(dict, "Producer"); ok {
		md.Producer = v
	}
	if v, ok := stringValue(dict, "Subject"); ok {
		md.Subject = v
	}
	if v, ok := stringValue(dict, "Keywords"); ok {
		md.Keywords = strings.Split(v, ",")
	}
	doc.Metadata = md
}

func stringValue(dict *raw.DictObj, key string) (string, bool) {
	obj, ok := dict.Get(raw.NameLiteral(key))
	if !ok {
		return "", false
	}
	str, ok := obj.(raw.StringObj)
	if !ok {
		return "", false
	}
	return str.Text(), true
}

func detectHeaderVersion(r io.ReaderAt) string {
	buf := make([]byte, 64)
	n, err := r.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return ""
	}
	line := string(buf[:n])
	for _, sep := range []string{"\r\n", "\n", "\r"} {
		if idx := strings.Index(line, sep); idx >= 0 {
			line = line[:idx]
			break
		}
	}
	if strings.HasPrefix(line, "%PDF-") && len(line) >= 8 {
		return strings.TrimSpace(line[5:])
	}
	return ""
}
