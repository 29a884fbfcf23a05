package parser

import (
	"github.com/siftdocs/pdfsift/ir/raw"
	"github.com/siftdocs/pdfsift/security"
)

// Resolver follows indirect references against a loaded document. It is
// pure: non-references come back unchanged, and a reference that cannot be
// satisfied resolves to null, the value the file format assigns to dangling
// references.
type Resolver struct {
	doc      *raw.Document
	maxDepth int
}

func NewResolver(doc *raw.Document) *Resolver {
	return &Resolver{doc: doc, maxDepth: security.DefaultLimits().MaxIndirectDepth}
}

// Resolve returns obj itself for direct objects, or the target of a
// reference chain. Chains longer than the depth limit (including cycles)
// resolve to null.
func (r *Resolver) Resolve(obj raw.Object) raw.Object {
	for depth := 0; depth < r.maxDepth; depth++ {
		ref, ok := obj.(raw.RefObj)
		if !ok {
			return obj
		}
		target, ok := r.doc.Objects[ref.R]
		if !ok {
			// Generation drift: fall back to matching the number.
			found := false
			for dr, o := range r.doc.Objects {
				if dr.Num == ref.R.Num {
					target, found = o, true
					break
				}
			}
			if !found {
				return raw.NullObj{}
			}
		}
		obj = target
	}
	return raw.NullObj{}
}
