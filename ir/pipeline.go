// Package ir ties the document stages together: raw objects out of the
// parser, then stream payloads out of the filter pipeline. Semantic views
// are built per page on demand and are not part of the load path.
package ir

import (
	"context"
	"fmt"
	"io"

	"github.com/siftdocs/pdfsift/filters"
	"github.com/siftdocs/pdfsift/ir/decoded"
	"github.com/siftdocs/pdfsift/ir/raw"
	"github.com/siftdocs/pdfsift/observability"
	"github.com/siftdocs/pdfsift/parser"
	"github.com/siftdocs/pdfsift/recovery"
	"github.com/siftdocs/pdfsift/security"
)

// Config configures the load pipeline end to end.
type Config struct {
	Recovery   recovery.Strategy
	Limits     security.Limits
	Encryption security.EncryptionPolicy
	Logger     observability.Logger
	// JPX optionally decodes JPXDecode image payloads.
	JPX filters.JPXDecoder
}

// Pipeline loads a document through the raw and decoded stages.
type Pipeline struct {
	rawParser raw.Parser
	decoder   decoded.Decoder
}

// NewPipeline constructs a pipeline from the shared configuration.
func NewPipeline(cfg Config) *Pipeline {
	limits := cfg.Limits
	if limits == (security.Limits{}) {
		limits = security.DefaultLimits()
	}
	fp := filters.DefaultPipeline(filters.Config{
		Limits: filters.Limits{
			MaxDecompressedSize: limits.MaxDecompressedSize,
			MaxDecodeTime:       limits.MaxDecodeTime,
		},
		JPX: cfg.JPX,
	})
	return &Pipeline{
		rawParser: parser.NewDocumentParser(parser.Config{
			Recovery:   cfg.Recovery,
			Limits:     cfg.Limits,
			Encryption: cfg.Encryption,
			Logger:     cfg.Logger,
		}),
		decoder: decoded.NewDecoder(decoded.Config{
			Pipeline: fp,
			Logger:   cfg.Logger,
		}),
	}
}

// NewDefault constructs a pipeline with strict recovery, default limits and
// no JPX backend.
func NewDefault() *Pipeline {
	return NewPipeline(Config{})
}

// Load parses the raw object graph and decodes every stream.
func (p *Pipeline) Load(ctx context.Context, r io.ReaderAt) (*decoded.Document, error) {
	rawDoc, err := p.rawParser.Parse(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	dec, err := p.decoder.Decode(ctx, rawDoc)
	if err != nil {
		return nil, fmt.Errorf("decode streams: %w", err)
	}
	return dec, nil
}
