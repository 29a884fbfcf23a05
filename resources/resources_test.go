package resources

import (
	"testing"

	"github.com/siftdocs/pdfsift/ir/decoded"
	"github.com/siftdocs/pdfsift/ir/raw"
	"github.com/siftdocs/pdfsift/ir/semantic"
)

func testEnv() semantic.Env {
	return semantic.Env{
		Resolve:    func(o raw.Object) raw.Object { return o },
		StreamData: func(raw.ObjectRef) ([]byte, bool) { return nil, false },
		StreamHint: func(raw.ObjectRef) *decoded.ImageHint { return nil },
	}
}

func fontDict(base string) *raw.DictObj {
	d := raw.Dict()
	d.Set(raw.NameLiteral("Type"), raw.NameLiteral("Font"))
	d.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("Type1"))
	d.Set(raw.NameLiteral("BaseFont"), raw.NameLiteral(base))
	return d
}

func resourceDict(fonts map[string]*raw.DictObj) *raw.DictObj {
	fd := raw.Dict()
	for name, f := range fonts {
		fd.Set(raw.NameLiteral(name), f)
	}
	d := raw.Dict()
	d.Set(raw.NameLiteral("Font"), fd)
	return d
}

func TestNewScopeParsesFonts(t *testing.T) {
	env := testEnv()
	s := NewScope(env, resourceDict(map[string]*raw.DictObj{"F1": fontDict("Helvetica")}))
	f, ok := s.Fonts["F1"]
	if !ok {
		t.Fatal("F1 not in scope")
	}
	if f.BaseFont != "Helvetica" {
		t.Errorf("BaseFont = %q", f.BaseFont)
	}
}

func TestMergeShadowsWithoutMutatingOuter(t *testing.T) {
	env := testEnv()
	outer := NewScope(env, resourceDict(map[string]*raw.DictObj{
		"F1": fontDict("Helvetica"),
		"F2": fontDict("Courier"),
	}))
	inner := outer.Merge(env, resourceDict(map[string]*raw.DictObj{
		"F1": fontDict("Times-Roman"),
	}))

	if inner.Fonts["F1"].BaseFont != "Times-Roman" {
		t.Errorf("inner F1 = %q, want shadowed Times-Roman", inner.Fonts["F1"].BaseFont)
	}
	if inner.Fonts["F2"].BaseFont != "Courier" {
		t.Error("inner scope should inherit F2")
	}
	if outer.Fonts["F1"].BaseFont != "Helvetica" {
		t.Errorf("outer F1 mutated to %q", outer.Fonts["F1"].BaseFont)
	}
}

func TestMergeNilDictIsCopy(t *testing.T) {
	env := testEnv()
	outer := NewScope(env, resourceDict(map[string]*raw.DictObj{"F1": fontDict("Helvetica")}))
	inner := outer.Merge(env, nil)
	inner.Fonts["F9"] = &semantic.Font{BaseFont: "Added"}
	if _, ok := outer.Fonts["F9"]; ok {
		t.Error("mutation of merged copy leaked into outer scope")
	}
}

func TestWithXObject(t *testing.T) {
	env := testEnv()
	base := NewScope(env, nil)
	x := &semantic.XObject{Subtype: "Image", Width: 2, Height: 2}
	s := base.WithXObject("InlineIm0", x)
	if s.XObjects["InlineIm0"] != x {
		t.Error("XObject not registered")
	}
	if _, ok := base.XObjects["InlineIm0"]; ok {
		t.Error("WithXObject mutated the receiver")
	}
}
