// Package resources models the resource scope a content stream executes
// against. Nested form invocations merge their own resource dictionary
// over the caller's scope into a fresh value, so no level can mutate what
// an outer frame still sees.
package resources

import (
	"github.com/siftdocs/pdfsift/ir/raw"
	"github.com/siftdocs/pdfsift/ir/semantic"
)

// Scope is one immutable layer of merged resource maps. The zero value
// is an empty scope.
type Scope struct {
	Fonts       map[string]*semantic.Font
	ExtGStates  map[string]*semantic.ExtGState
	ColorSpaces map[string]semantic.ColorSpace
	XObjects    map[string]*semantic.XObject
	Patterns    map[string]semantic.Pattern
	Shadings    map[string]*semantic.Shading
}

// NewScope parses a resource dictionary into a fresh scope. A nil
// dictionary yields an empty scope.
func NewScope(env semantic.Env, dict *raw.DictObj) Scope {
	return Scope{}.Merge(env, dict)
}

// Merge returns a new scope with dict's entries layered over s. The
// receiver is never modified; shared entries are shadowed, not replaced.
func (s Scope) Merge(env semantic.Env, dict *raw.DictObj) Scope {
	out := s.clone()
	if dict == nil {
		return out
	}
	res := semantic.ParseResources(env, dict)
	for name, f := range res.Fonts {
		out.Fonts[name] = f
	}
	for name, g := range res.ExtGStates {
		out.ExtGStates[name] = g
	}
	for name, cs := range res.ColorSpaces {
		out.ColorSpaces[name] = cs
	}
	for name, x := range res.XObjects {
		out.XObjects[name] = x
	}
	for name, p := range res.Patterns {
		out.Patterns[name] = p
	}
	for name, sh := range res.Shadings {
		out.Shadings[name] = sh
	}
	return out
}

// WithXObject returns a new scope with one extra XObject entry. The
// inline-image pre-pass uses this to register synthesized images.
func (s Scope) WithXObject(name string, x *semantic.XObject) Scope {
	out := s.clone()
	out.XObjects[name] = x
	return out
}

// WithFont returns a new scope with one extra font entry, used when an
// ExtGState installs a font outside the /Font subdictionary.
func (s Scope) WithFont(name string, f *semantic.Font) Scope {
	out := s.clone()
	out.Fonts[name] = f
	return out
}

func (s Scope) clone() Scope {
	out := Scope{
		Fonts:       make(map[string]*semantic.Font, len(s.Fonts)),
		ExtGStates:  make(map[string]*semantic.ExtGState, len(s.ExtGStates)),
		ColorSpaces: make(map[string]semantic.ColorSpace, len(s.ColorSpaces)),
		XObjects:    make(map[string]*semantic.XObject, len(s.XObjects)),
		Patterns:    make(map[string]semantic.Pattern, len(s.Patterns)),
		Shadings:    make(map[string]*semantic.Shading, len(s.Shadings)),
	}
	for name, f := range s.Fonts {
		out.Fonts[name] = f
	}
	for name, g := range s.ExtGStates {
		out.ExtGStates[name] = g
	}
	for name, cs := range s.ColorSpaces {
		out.ColorSpaces[name] = cs
	}
	for name, x := range s.XObjects {
		out.XObjects[name] = x
	}
	for name, p := range s.Patterns {
		out.Patterns[name] = p
	}
	for name, sh := range s.Shadings {
		out.Shadings[name] = sh
	}
	return out
}
