package decoded

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/siftdocs/pdfsift/filters"
	"github.com/siftdocs/pdfsift/ir/raw"
	"github.com/siftdocs/pdfsift/observability"
)

// Config configures the stream decoder.
type Config struct {
	// Pipeline decodes filter chains. Nil selects the default pipeline
	// with no JPX backend.
	Pipeline *filters.Pipeline
	Logger   observability.Logger
}

func (c Config) withDefaults() Config {
	if c.Pipeline == nil {
		c.Pipeline = filters.DefaultPipeline(filters.Config{})
	}
	if c.Logger == nil {
		c.Logger = observability.NopLogger{}
	}
	return c
}

// NewDecoder constructs a Decoder that applies filter decoding to every
// stream in the document, bounded to GOMAXPROCS concurrent decodes.
func NewDecoder(cfg Config) Decoder {
	return &decoderImpl{cfg: cfg.withDefaults()}
}

type decoderImpl struct {
	cfg Config
}

func (d *decoderImpl) Decode(ctx context.Context, rawDoc *raw.Document) (*Document, error) {
	doc := &Document{
		Raw:     rawDoc,
		Streams: make(map[raw.ObjectRef]Stream),
		Errors:  make(map[raw.ObjectRef]error),
	}

	type task struct {
		ref raw.ObjectRef
		obj *raw.StreamObj
	}
	var tasks []task
	for ref, obj := range rawDoc.Objects {
		if s, ok := obj.(*raw.StreamObj); ok {
			tasks = append(tasks, task{ref: ref, obj: s})
		}
	}
	if len(tasks) == 0 {
		return doc, nil
	}

	workers := runtime.GOMAXPROCS(0)
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)

	type result struct {
		ref    raw.ObjectRef
		stream Stream
		err    error
	}
	results := make(chan result, len(tasks))

	var wg sync.WaitGroup
	for _, t := range tasks {
		wg.Add(1)
		go func(t task) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results <- result{ref: t.ref, err: ctx.Err()}
				return
			}
			defer func() { <-sem }()

			stream, err := d.decodeStream(ctx, rawDoc, t.obj)
			results <- result{ref: t.ref, stream: stream, err: err}
		}(t)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		if res.err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// A stream that will not decode is a per-stream defect; the
			// rest of the document stays usable.
			d.cfg.Logger.Warn("stream decode failed",
				observability.Int("object", res.ref.Num),
				observability.Error("cause", res.err))
			doc.Errors[res.ref] = res.err
			continue
		}
		doc.Streams[res.ref] = res.stream
	}

	return doc, nil
}

func (d *decoderImpl) decodeStream(ctx context.Context, rawDoc *raw.Document, obj *raw.StreamObj) (Stream, error) {
	dict := resolveFilterRefs(rawDoc, obj.Dict)
	names, params := filters.ExtractFilters(dict)

	data := obj.Data
	var hint *ImageHint
	if len(names) > 0 {
		decodedData, info, err := d.cfg.Pipeline.DecodeWithInfo(ctx, data, names, params)
		if err != nil {
			return Stream{}, fmt.Errorf("decode %v: %w", names, err)
		}
		data = decodedData
		if info != nil {
			hint = &ImageHint{
				Filter:           info.Filter,
				Width:            info.Width,
				Height:           info.Height,
				Components:       info.Components,
				BitsPerComponent: info.BitsPerComponent,
			}
		}
	}

	return Stream{Dict: obj.Dict, Data: data, Filters: names, Image: hint}, nil
}

// resolveFilterRefs returns a dictionary whose Filter and DecodeParms
// entries are materialized. Writers may make either indirect; the filter
// chain needs the values themselves.
func resolveFilterRefs(doc *raw.Document, dict *raw.DictObj) *raw.DictObj {
	needs := false
	for _, key := range []string{"Filter", "DecodeParms", "DP"} {
		if v, ok := dict.Get(raw.NameLiteral(key)); ok {
			if _, isRef := v.(raw.RefObj); isRef {
				needs = true
			}
		}
	}
	if !needs {
		return dict
	}

	out := raw.Dict()
	for k, v := range dict.KV {
		switch k {
		case "Filter", "DecodeParms", "DP":
			if ref, ok := v.(raw.RefObj); ok {
				if target, found := doc.Objects[ref.R]; found {
					v = target
				}
			}
		}
		out.Set(raw.NameLiteral(k), v)
	}
	return out
}
