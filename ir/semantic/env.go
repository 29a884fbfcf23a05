package semantic

import (
	"github.com/siftdocs/pdfsift/ir/decoded"
	"github.com/siftdocs/pdfsift/ir/raw"
	"github.com/siftdocs/pdfsift/parser"
)

// Env is the lookup surface resource parsing works against. It decouples
// the parsers from the document representation so tests can supply maps
// directly.
type Env struct {
	// Resolve follows indirect references, returning the target or
	// raw.NullObj for broken ones. Non-references pass through.
	Resolve func(raw.Object) raw.Object
	// StreamData returns the decoded bytes of a stream object.
	StreamData func(ref raw.ObjectRef) ([]byte, bool)
	// StreamHint returns codec geometry for streams whose terminal image
	// filter was left encoded, or nil.
	StreamHint func(ref raw.ObjectRef) *decoded.ImageHint
}

// NewEnv builds an Env over a decoded document.
func NewEnv(dec *decoded.Document) Env {
	res := parser.NewResolver(dec.Raw)
	return Env{
		Resolve: res.Resolve,
		StreamData: func(ref raw.ObjectRef) ([]byte, bool) {
			s, ok := dec.Streams[ref]
			if !ok {
				return nil, false
			}
			return s.Data, true
		},
		StreamHint: func(ref raw.ObjectRef) *decoded.ImageHint {
			s, ok := dec.Streams[ref]
			if !ok {
				return nil
			}
			return s.Image
		},
	}
}

// resolveDict resolves obj and returns it as a dictionary, also accepting
// stream objects (whose dictionaries carry the same entries).
func (e Env) resolveDict(obj raw.Object) (*raw.DictObj, bool) {
	switch v := e.Resolve(obj).(type) {
	case *raw.DictObj:
		return v, true
	case *raw.StreamObj:
		return v.Dict, true
	default:
		return nil, false
	}
}

// streamParts resolves obj to a stream reference and returns its
// dictionary plus decoded data.
func (e Env) streamParts(obj raw.Object) (raw.ObjectRef, *raw.DictObj, []byte, bool) {
	ref, ok := obj.(raw.RefObj)
	if !ok {
		return raw.ObjectRef{}, nil, nil, false
	}
	st, ok := e.Resolve(obj).(*raw.StreamObj)
	if !ok {
		return raw.ObjectRef{}, nil, nil, false
	}
	data, ok := e.StreamData(ref.Ref())
	if !ok {
		// Stream present but not decoded (filter failure); surface the
		// dictionary anyway so callers can decide.
		data = nil
	}
	return ref.Ref(), st.Dict, data, true
}
