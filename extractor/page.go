package extractor

import (
	"context"
	"fmt"

	"github.com/siftdocs/pdfsift/contentstream"
	"github.com/siftdocs/pdfsift/filters"
	"github.com/siftdocs/pdfsift/ir/raw"
	"github.com/siftdocs/pdfsift/observability"
	"github.com/siftdocs/pdfsift/raster"
	"github.com/siftdocs/pdfsift/resources"
)

// extractPage interprets one page and post-processes its elements per
// the options. Interpretation errors inside the page surface as the
// returned error; any elements produced before the failure are kept.
func (e *Extractor) extractPage(ctx context.Context, node pageNode) ([]contentstream.Element, error) {
	content, err := e.pageContent(node)
	if err != nil {
		return nil, err
	}
	if len(content) == 0 {
		return nil, nil
	}

	scope := resources.NewScope(e.env, node.resources)
	state := contentstream.NewGraphicsState(node.mediaBox)
	elems, err := e.interp.Run(ctx, content, scope, state)
	if err != nil {
		return nil, err
	}
	return e.processElements(ctx, elems), nil
}

// pageContent concatenates the page's content streams. A /Contents
// array is joined with newlines, matching how viewers tokenize across
// stream boundaries.
func (e *Extractor) pageContent(node pageNode) ([]byte, error) {
	obj := e.value(node.dict, "Contents")
	if obj == nil {
		return nil, nil
	}
	if arr := e.array(obj); arr != nil {
		var out []byte
		for _, item := range arr.Items {
			data, err := e.contentStream(item)
			if err != nil {
				return nil, err
			}
			if len(out) > 0 && len(data) > 0 {
				out = append(out, '\n')
			}
			out = append(out, data...)
		}
		return out, nil
	}
	return e.contentStream(obj)
}

func (e *Extractor) contentStream(obj raw.Object) ([]byte, error) {
	if ref, ok := obj.(raw.RefObj); ok {
		if data, ok := e.env.StreamData(ref.Ref()); ok {
			return data, nil
		}
		if err, ok := e.dec.Errors[ref.Ref()]; ok {
			return nil, fmt.Errorf("content stream %s: %w", ref.Ref(), err)
		}
	}
	if st, ok := e.env.Resolve(obj).(*raw.StreamObj); ok {
		// Direct stream with no decoded entry: run it through the
		// pipeline here.
		names, params := filters.ExtractFilters(st.Dict)
		if len(names) == 0 {
			return st.Data, nil
		}
		return e.pipeline.Decode(context.Background(), st.Data, names, params)
	}
	return nil, nil
}

// processElements applies the element filters and resolves pattern and
// shading fills into raster images.
func (e *Extractor) processElements(ctx context.Context, elems []contentstream.Element) []contentstream.Element {
	out := make([]contentstream.Element, 0, len(elems))
	for _, el := range elems {
		switch v := el.(type) {
		case *contentstream.TextElement:
			if !e.opts.IncludeText {
				continue
			}
			out = append(out, v)

		case *contentstream.PathElement:
			if ri := e.resolvePatternFill(ctx, v); ri != nil {
				out = append(out, ri)
				continue
			}
			if !e.opts.IncludePaths {
				continue
			}
			if v.Path.Complexity() < e.opts.MinPathComplexity {
				continue
			}
			out = append(out, v)

		default:
			out = append(out, el)
		}
	}
	return out
}

// resolvePatternFill rasterizes a pattern or shading fill. nil means the
// element stays a plain path: no pattern, an unsupported one, or an
// invisible result.
func (e *Extractor) resolvePatternFill(ctx context.Context, pe *contentstream.PathElement) *contentstream.RasterImageElement {
	st := pe.State
	if st.FillPattern == nil {
		return nil
	}
	switch pe.Path.Op {
	case contentstream.PaintFill, contentstream.PaintFillStroke:
	default:
		return nil
	}
	img, bounds, err := raster.RasterizeFill(ctx, pe.Path, st, st.FillPattern, raster.Options{
		Interp: contentstream.Config{
			Env:      e.env,
			Pipeline: e.pipeline,
			Fonts:    e.fonts,
			Limits:   e.opts.Limits,
			Logger:   e.log,
		},
		MaxGridEdge:     e.opts.ShadingMaxEdge,
		SoftMaskMaxEdge: e.opts.SoftMaskMaxEdge,
		Logger:          e.log,
	})
	if err != nil {
		e.log.Debug("pattern fill skipped", observability.Error("err", err))
		return nil
	}
	if img == nil {
		return nil
	}
	return &contentstream.RasterImageElement{
		Width:  img.Width,
		Height: img.Height,
		RGB:    img.RGB,
		Alpha:  img.Alpha,
		Bounds: bounds,
		State:  st,
	}
}
