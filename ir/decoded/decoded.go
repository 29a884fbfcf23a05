// Package decoded holds the second IR stage: every stream in the raw
// document run through the filter pipeline exactly once, with the results
// read-only afterwards. Streams that fail to decode are recorded, not
// fatal; a consumer that needs one treats its absence as missing content.
package decoded

import (
	"context"

	"github.com/siftdocs/pdfsift/ir/raw"
)

// Document pairs the raw object graph with its decoded stream payloads.
type Document struct {
	Raw     *raw.Document
	Streams map[raw.ObjectRef]Stream
	// Errors maps streams the pipeline could not decode to their cause.
	Errors map[raw.ObjectRef]error
}

// Stream is a fully decoded stream payload.
type Stream struct {
	Dict    raw.Dictionary
	Data    []byte
	Filters []string
	// Image is set when the filter chain ended in a terminal image codec;
	// the samples in Data already carry this shape.
	Image *ImageHint
}

// ImageHint records a terminal image codec's output geometry so image
// reconstruction can skip sample unpacking.
type ImageHint struct {
	Filter           string
	Width            int
	Height           int
	Components       int
	BitsPerComponent int
}

// Decoder transforms the raw IR into the decoded IR.
type Decoder interface {
	Decode(ctx context.Context, rawDoc *raw.Document) (*Document, error)
}
