package semantic

import (
	"fmt"

	"github.com/siftdocs/pdfsift/coords"
	"github.com/siftdocs/pdfsift/ir/raw"
)

// maxColorSpaceDepth bounds Indexed/Separation base-space recursion.
const maxColorSpaceDepth = 8

// ParseResources builds typed views for every entry of a resource
// dictionary. Entries whose values cannot be parsed are dropped; the
// returned maps are always non-nil. A nil dict yields empty resources.
func ParseResources(env Env, dict *raw.DictObj) *Resources {
	res := &Resources{
		Fonts:       make(map[string]*Font),
		ExtGStates:  make(map[string]*ExtGState),
		ColorSpaces: make(map[string]ColorSpace),
		XObjects:    make(map[string]*XObject),
		Patterns:    make(map[string]Pattern),
		Shadings:    make(map[string]*Shading),
	}
	if dict == nil {
		return res
	}

	forEach(env, dict, "Font", func(name string, v raw.Object) {
		if f, err := parseFont(env, v); err == nil {
			res.Fonts[name] = f
		}
	})
	forEach(env, dict, "ExtGState", func(name string, v raw.Object) {
		if gs, err := ParseExtGState(env, v); err == nil {
			res.ExtGStates[name] = gs
		}
	})
	forEach(env, dict, "ColorSpace", func(name string, v raw.Object) {
		if cs, err := ParseColorSpace(env, v); err == nil {
			res.ColorSpaces[name] = cs
		}
	})
	forEach(env, dict, "XObject", func(name string, v raw.Object) {
		if x, err := ParseXObject(env, v); err == nil {
			res.XObjects[name] = x
		}
	})
	forEach(env, dict, "Pattern", func(name string, v raw.Object) {
		if p, err := ParsePattern(env, v); err == nil {
			res.Patterns[name] = p
		}
	})
	forEach(env, dict, "Shading", func(name string, v raw.Object) {
		if sh, err := ParseShading(env, v); err == nil {
			res.Shadings[name] = sh
		}
	})
	return res
}

// forEach iterates the named sub-dictionary of a resource dictionary.
func forEach(env Env, dict *raw.DictObj, key string, fn func(name string, v raw.Object)) {
	v, ok := dict.Get(raw.NameLiteral(key))
	if !ok {
		return
	}
	sub, ok := env.resolveDict(v)
	if !ok {
		return
	}
	for _, k := range sub.Keys() {
		entry, _ := sub.Get(k)
		fn(k.Value(), entry)
	}
}

func parseFont(env Env, obj raw.Object) (*Font, error) {
	f := &Font{}
	if ref, ok := obj.(raw.RefObj); ok {
		f.Ref = ref.Ref()
	}
	dict, ok := env.resolveDict(obj)
	if !ok {
		return nil, fmt.Errorf("font resource is not a dictionary")
	}
	f.Dict = dict
	f.Subtype, _ = dictName(env, dict, "Subtype")
	f.BaseFont, _ = dictName(env, dict, "BaseFont")
	return f, nil
}

// ParseExtGState parses a graphics-state parameter dictionary. Absent
// entries leave the corresponding fields nil / zero.
func ParseExtGState(env Env, obj raw.Object) (*ExtGState, error) {
	dict, ok := env.resolveDict(obj)
	if !ok {
		return nil, fmt.Errorf("extgstate is not a dictionary")
	}
	gs := &ExtGState{}
	if v, ok := dictFloat(env, dict, "LW"); ok {
		gs.LineWidth = &v
	}
	if v, ok := dictInt(env, dict, "LC"); ok {
		gs.LineCap = &v
	}
	if v, ok := dictInt(env, dict, "LJ"); ok {
		gs.LineJoin = &v
	}
	if v, ok := dictFloat(env, dict, "ML"); ok {
		gs.MiterLimit = &v
	}
	if v, ok := dict.Get(raw.NameLiteral("D")); ok {
		if arr, ok := env.Resolve(v).(*raw.ArrayObj); ok && arr.Len() == 2 {
			if pattern, ok := floatSlice(env, arr.Items[0]); ok {
				phase, _ := numValue(env.Resolve(arr.Items[1]))
				gs.DashArray = pattern
				gs.DashPhase = phase
				gs.DashSet = true
			}
		}
	}
	if v, ok := dictFloat(env, dict, "CA"); ok {
		gs.StrokeAlpha = &v
	}
	if v, ok := dictFloat(env, dict, "ca"); ok {
		gs.FillAlpha = &v
	}
	if v, ok := dict.Get(raw.NameLiteral("BM")); ok {
		switch bm := env.Resolve(v).(type) {
		case raw.NameObj:
			gs.BlendMode = bm.Value()
		case *raw.ArrayObj:
			if bm.Len() > 0 {
				if n, ok := env.Resolve(bm.Items[0]).(raw.NameObj); ok {
					gs.BlendMode = n.Value()
				}
			}
		}
	}
	if v, ok := dict.Get(raw.NameLiteral("Font")); ok {
		if arr, ok := env.Resolve(v).(*raw.ArrayObj); ok && arr.Len() == 2 {
			if f, err := parseFont(env, arr.Items[0]); err == nil {
				gs.Font = f
				gs.FontSize, _ = numValue(env.Resolve(arr.Items[1]))
			}
		}
	}
	if v, ok := dict.Get(raw.NameLiteral("SMask")); ok {
		switch sm := env.Resolve(v).(type) {
		case raw.NameObj:
			if sm.Value() == "None" {
				gs.SoftMaskNone = true
			}
		case *raw.DictObj:
			if mask, err := parseSoftMask(env, sm); err == nil {
				gs.SoftMask = mask
			}
		}
	}
	return gs, nil
}

func parseSoftMask(env Env, dict *raw.DictObj) (*SoftMask, error) {
	sm := &SoftMask{}
	sm.Subtype, _ = dictName(env, dict, "S")
	if sm.Subtype != "Alpha" && sm.Subtype != "Luminosity" {
		return nil, fmt.Errorf("unsupported soft mask subtype %q", sm.Subtype)
	}
	g, ok := dict.Get(raw.NameLiteral("G"))
	if !ok {
		return nil, fmt.Errorf("soft mask has no group")
	}
	group, err := ParseXObject(env, g)
	if err != nil {
		return nil, fmt.Errorf("soft mask group: %w", err)
	}
	if group.Subtype != "Form" {
		return nil, fmt.Errorf("soft mask group is not a form")
	}
	sm.Group = group
	if v, ok := dict.Get(raw.NameLiteral("BC")); ok {
		sm.Backdrop, _ = floatSlice(env, v)
	}
	return sm, nil
}

// ParseColorSpace parses a color-space name or array into the closed
// union. Unsupported families return an error.
func ParseColorSpace(env Env, obj raw.Object) (ColorSpace, error) {
	return parseColorSpace(env, obj, 0)
}

func parseColorSpace(env Env, obj raw.Object, depth int) (ColorSpace, error) {
	if depth > maxColorSpaceDepth {
		return nil, fmt.Errorf("color space nesting too deep")
	}
	switch v := env.Resolve(obj).(type) {
	case raw.NameObj:
		return namedColorSpace(v.Value())
	case *raw.ArrayObj:
		return arrayColorSpace(env, v, depth)
	default:
		return nil, fmt.Errorf("color space must be a name or array, got %T", v)
	}
}

func namedColorSpace(name string) (ColorSpace, error) {
	switch name {
	case "DeviceGray", "G":
		return DeviceColorSpace{Name: "DeviceGray"}, nil
	case "DeviceRGB", "RGB":
		return DeviceColorSpace{Name: "DeviceRGB"}, nil
	case "DeviceCMYK", "CMYK":
		return DeviceColorSpace{Name: "DeviceCMYK"}, nil
	case "Pattern":
		return &PatternColorSpace{}, nil
	default:
		return nil, fmt.Errorf("unsupported color space name %q", name)
	}
}

func arrayColorSpace(env Env, arr *raw.ArrayObj, depth int) (ColorSpace, error) {
	if arr.Len() == 0 {
		return nil, fmt.Errorf("empty color space array")
	}
	family, ok := env.Resolve(arr.Items[0]).(raw.NameObj)
	if !ok {
		return nil, fmt.Errorf("color space array must start with a name")
	}
	switch family.Value() {
	case "DeviceGray", "DeviceRGB", "DeviceCMYK":
		return namedColorSpace(family.Value())
	case "CalGray":
		return parseCalGray(env, arr)
	case "CalRGB":
		return parseCalRGB(env, arr)
	case "Lab":
		return parseLab(env, arr)
	case "ICCBased":
		return parseICCBased(env, arr, depth)
	case "Indexed", "I":
		return parseIndexed(env, arr, depth)
	case "Separation":
		return parseSeparation(env, arr, depth)
	case "DeviceN":
		return parseDeviceN(env, arr, depth)
	case "Pattern":
		cs := &PatternColorSpace{}
		if arr.Len() > 1 {
			under, err := parseColorSpace(env, arr.Items[1], depth+1)
			if err != nil {
				return nil, fmt.Errorf("pattern underlying space: %w", err)
			}
			cs.Underlying = under
		}
		return cs, nil
	default:
		return nil, fmt.Errorf("unsupported color space family %q", family.Value())
	}
}

func parseCalGray(env Env, arr *raw.ArrayObj) (ColorSpace, error) {
	dict, err := csParamDict(env, arr)
	if err != nil {
		return nil, err
	}
	cs := &CalGrayColorSpace{Gamma: 1}
	if wp, ok := floatTriple(env, dict, "WhitePoint"); ok {
		cs.WhitePoint = wp
	} else {
		return nil, fmt.Errorf("CalGray has no white point")
	}
	if g, ok := dictFloat(env, dict, "Gamma"); ok {
		cs.Gamma = g
	}
	return cs, nil
}

func parseCalRGB(env Env, arr *raw.ArrayObj) (ColorSpace, error) {
	dict, err := csParamDict(env, arr)
	if err != nil {
		return nil, err
	}
	cs := &CalRGBColorSpace{
		Gamma:  [3]float64{1, 1, 1},
		Matrix: [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
	}
	if wp, ok := floatTriple(env, dict, "WhitePoint"); ok {
		cs.WhitePoint = wp
	} else {
		return nil, fmt.Errorf("CalRGB has no white point")
	}
	if v, ok := dict.Get(raw.NameLiteral("Gamma")); ok {
		if g, ok := floatSlice(env, v); ok && len(g) == 3 {
			copy(cs.Gamma[:], g)
		}
	}
	if v, ok := dict.Get(raw.NameLiteral("Matrix")); ok {
		if m, ok := floatSlice(env, v); ok && len(m) == 9 {
			copy(cs.Matrix[:], m)
		}
	}
	return cs, nil
}

func parseLab(env Env, arr *raw.ArrayObj) (ColorSpace, error) {
	dict, err := csParamDict(env, arr)
	if err != nil {
		return nil, err
	}
	cs := &LabColorSpace{Range: [4]float64{-100, 100, -100, 100}}
	if wp, ok := floatTriple(env, dict, "WhitePoint"); ok {
		cs.WhitePoint = wp
	} else {
		return nil, fmt.Errorf("Lab has no white point")
	}
	if v, ok := dict.Get(raw.NameLiteral("Range")); ok {
		if r, ok := floatSlice(env, v); ok && len(r) == 4 {
			copy(cs.Range[:], r)
		}
	}
	return cs, nil
}

func csParamDict(env Env, arr *raw.ArrayObj) (*raw.DictObj, error) {
	if arr.Len() < 2 {
		return nil, fmt.Errorf("color space array has no parameter dictionary")
	}
	dict, ok := env.resolveDict(arr.Items[1])
	if !ok {
		return nil, fmt.Errorf("color space parameter is not a dictionary")
	}
	return dict, nil
}

func parseICCBased(env Env, arr *raw.ArrayObj, depth int) (ColorSpace, error) {
	if arr.Len() < 2 {
		return nil, fmt.Errorf("ICCBased has no profile stream")
	}
	_, dict, data, ok := env.streamParts(arr.Items[1])
	if !ok {
		return nil, fmt.Errorf("ICCBased profile is not a stream")
	}
	n, ok := dictInt(env, dict, "N")
	if !ok {
		return nil, fmt.Errorf("ICCBased has no component count")
	}
	cs := &ICCBasedColorSpace{N: n, Profile: data}
	if v, ok := dict.Get(raw.NameLiteral("Alternate")); ok {
		alt, err := parseColorSpace(env, v, depth+1)
		if err == nil {
			cs.Alternate = alt
		}
	}
	if cs.Alternate == nil {
		alt, err := deviceSpaceFor(n)
		if err != nil {
			return nil, err
		}
		cs.Alternate = alt
	}
	return cs, nil
}

func deviceSpaceFor(n int) (ColorSpace, error) {
	switch n {
	case 1:
		return DeviceColorSpace{Name: "DeviceGray"}, nil
	case 3:
		return DeviceColorSpace{Name: "DeviceRGB"}, nil
	case 4:
		return DeviceColorSpace{Name: "DeviceCMYK"}, nil
	default:
		return nil, fmt.Errorf("no device space for %d components", n)
	}
}

func parseIndexed(env Env, arr *raw.ArrayObj, depth int) (ColorSpace, error) {
	if arr.Len() < 4 {
		return nil, fmt.Errorf("Indexed needs base, hival and lookup")
	}
	base, err := parseColorSpace(env, arr.Items[1], depth+1)
	if err != nil {
		return nil, fmt.Errorf("indexed base: %w", err)
	}
	hival, ok := numValue(env.Resolve(arr.Items[2]))
	if !ok || hival < 0 || hival > 255 {
		return nil, fmt.Errorf("indexed hival out of range")
	}
	var lookup []byte
	switch lk := env.Resolve(arr.Items[3]).(type) {
	case raw.StringObj:
		lookup = lk.Bytes
	case *raw.StreamObj:
		if ref, ok := arr.Items[3].(raw.RefObj); ok {
			if data, ok := env.StreamData(ref.Ref()); ok {
				lookup = data
			}
		}
		if lookup == nil {
			lookup = lk.Data
		}
	default:
		return nil, fmt.Errorf("indexed lookup must be a string or stream")
	}
	need := (int(hival) + 1) * base.Components()
	if len(lookup) < need {
		return nil, fmt.Errorf("indexed lookup too short: %d < %d", len(lookup), need)
	}
	return &IndexedColorSpace{Base: base, Hival: int(hival), Lookup: lookup}, nil
}

func parseSeparation(env Env, arr *raw.ArrayObj, depth int) (ColorSpace, error) {
	if arr.Len() < 3 {
		return nil, fmt.Errorf("Separation needs a name and alternate space")
	}
	name, ok := env.Resolve(arr.Items[1]).(raw.NameObj)
	if !ok {
		return nil, fmt.Errorf("separation colorant must be a name")
	}
	alt, err := parseColorSpace(env, arr.Items[2], depth+1)
	if err != nil {
		return nil, fmt.Errorf("separation alternate: %w", err)
	}
	cs := &SeparationColorSpace{Name: name.Value(), Alternate: alt}
	if arr.Len() > 3 {
		if fn, err := ParseFunction(env, arr.Items[3]); err == nil {
			cs.Tint = fn
		}
	}
	return cs, nil
}

func parseDeviceN(env Env, arr *raw.ArrayObj, depth int) (ColorSpace, error) {
	if arr.Len() < 3 {
		return nil, fmt.Errorf("DeviceN needs names and an alternate space")
	}
	namesArr, ok := env.Resolve(arr.Items[1]).(*raw.ArrayObj)
	if !ok || namesArr.Len() == 0 {
		return nil, fmt.Errorf("DeviceN colorants must be a non-empty array")
	}
	names := make([]string, 0, namesArr.Len())
	for _, item := range namesArr.Items {
		n, ok := env.Resolve(item).(raw.NameObj)
		if !ok {
			return nil, fmt.Errorf("DeviceN colorant must be a name")
		}
		names = append(names, n.Value())
	}
	alt, err := parseColorSpace(env, arr.Items[2], depth+1)
	if err != nil {
		return nil, fmt.Errorf("DeviceN alternate: %w", err)
	}
	cs := &DeviceNColorSpace{Names: names, Alternate: alt}
	if arr.Len() > 3 {
		if fn, err := ParseFunction(env, arr.Items[3]); err == nil {
			cs.Tint = fn
		}
	}
	return cs, nil
}

// ParseXObject parses an image or form XObject. The object must be an
// indirect stream reference; the reference doubles as cache key and
// form-recursion guard downstream.
func ParseXObject(env Env, obj raw.Object) (*XObject, error) {
	return parseXObject(env, obj, true)
}

func parseXObject(env Env, obj raw.Object, followMasks bool) (*XObject, error) {
	ref, dict, data, ok := env.streamParts(obj)
	if !ok {
		return nil, fmt.Errorf("xobject must be an indirect stream")
	}
	sub, _ := dictName(env, dict, "Subtype")
	switch sub {
	case "Image":
		return parseImageXObject(env, ref, dict, data, followMasks)
	case "Form":
		return parseFormXObject(env, ref, dict, data)
	default:
		return nil, fmt.Errorf("unsupported xobject subtype %q", sub)
	}
}

func parseImageXObject(env Env, ref raw.ObjectRef, dict *raw.DictObj, data []byte, followMasks bool) (*XObject, error) {
	x := &XObject{Subtype: "Image", Ref: ref, Dict: dict, Data: data}
	x.Width, _ = dictInt(env, dict, "Width")
	x.Height, _ = dictInt(env, dict, "Height")
	if x.Width <= 0 || x.Height <= 0 {
		return nil, fmt.Errorf("image has invalid dimensions %dx%d", x.Width, x.Height)
	}
	x.ImageMask, _ = dictBool(env, dict, "ImageMask")
	x.Interpolate, _ = dictBool(env, dict, "Interpolate")
	if bpc, ok := dictInt(env, dict, "BitsPerComponent"); ok {
		x.BitsPerComponent = bpc
	} else if x.ImageMask {
		x.BitsPerComponent = 1
	} else {
		x.BitsPerComponent = 8
	}
	if v, ok := dict.Get(raw.NameLiteral("Decode")); ok {
		x.Decode, _ = floatSlice(env, v)
	}
	x.Hint = env.StreamHint(ref)
	if !x.ImageMask {
		if v, ok := dict.Get(raw.NameLiteral("ColorSpace")); ok {
			cs, err := ParseColorSpace(env, v)
			if err != nil && x.Hint == nil {
				return nil, fmt.Errorf("image color space: %w", err)
			}
			x.ColorSpace = cs
		}
	}
	if !followMasks {
		return x, nil
	}
	if v, ok := dict.Get(raw.NameLiteral("SMask")); ok {
		// Mask parse failures degrade to no mask; the caller logs.
		if sm, err := parseXObject(env, v, false); err == nil && sm.Subtype == "Image" {
			x.SMask = sm
		}
	}
	if v, ok := dict.Get(raw.NameLiteral("Mask")); ok {
		switch mv := env.Resolve(v).(type) {
		case *raw.ArrayObj:
			ranges := make([]int, 0, mv.Len())
			good := true
			for _, item := range mv.Items {
				n, ok := numValue(env.Resolve(item))
				if !ok {
					good = false
					break
				}
				ranges = append(ranges, int(n))
			}
			if good && len(ranges) > 0 && len(ranges)%2 == 0 {
				x.ColorKey = ranges
			}
		case *raw.StreamObj:
			if m, err := parseXObject(env, v, false); err == nil && m.Subtype == "Image" {
				x.Mask = m
			}
		}
	}
	return x, nil
}

func parseFormXObject(env Env, ref raw.ObjectRef, dict *raw.DictObj, data []byte) (*XObject, error) {
	x := &XObject{Subtype: "Form", Ref: ref, Dict: dict, Data: data, Matrix: coords.Identity()}
	bboxObj, ok := dict.Get(raw.NameLiteral("BBox"))
	if !ok {
		return nil, fmt.Errorf("form has no bounding box")
	}
	bbox, ok := rectValue(env, bboxObj)
	if !ok {
		return nil, fmt.Errorf("form bounding box is malformed")
	}
	x.BBox = bbox
	if v, ok := dict.Get(raw.NameLiteral("Matrix")); ok {
		if m, ok := floatSlice(env, v); ok && len(m) == 6 {
			copy(x.Matrix[:], m)
		}
	}
	if v, ok := dict.Get(raw.NameLiteral("Resources")); ok {
		if rd, ok := env.resolveDict(v); ok {
			x.Resources = rd
		}
	}
	if v, ok := dict.Get(raw.NameLiteral("Group")); ok {
		if gd, ok := env.resolveDict(v); ok {
			grp := &TransparencyGroup{}
			if csObj, ok := gd.Get(raw.NameLiteral("CS")); ok {
				grp.ColorSpace, _ = ParseColorSpace(env, csObj)
			}
			grp.Isolated, _ = dictBool(env, gd, "I")
			grp.Knockout, _ = dictBool(env, gd, "K")
			x.Group = grp
		}
	}
	return x, nil
}

// ParsePattern parses a tiling (stream) or shading (dictionary) pattern.
func ParsePattern(env Env, obj raw.Object) (Pattern, error) {
	resolved := env.Resolve(obj)
	switch v := resolved.(type) {
	case *raw.StreamObj:
		ref, dict, data, ok := env.streamParts(obj)
		if !ok {
			dict, data = v.Dict, v.Data
		}
		return parseTilingPattern(env, ref, dict, data)
	case *raw.DictObj:
		return parseShadingPattern(env, v)
	default:
		return nil, fmt.Errorf("pattern must be a stream or dictionary")
	}
}

func parseTilingPattern(env Env, ref raw.ObjectRef, dict *raw.DictObj, data []byte) (*TilingPattern, error) {
	if pt, _ := dictInt(env, dict, "PatternType"); pt != 1 {
		return nil, fmt.Errorf("stream pattern must have PatternType 1")
	}
	p := &TilingPattern{Ref: ref, Content: data, Matrix: coords.Identity(), PaintType: 1, TilingType: 1}
	if v, ok := dictInt(env, dict, "PaintType"); ok {
		p.PaintType = v
	}
	if v, ok := dictInt(env, dict, "TilingType"); ok {
		p.TilingType = v
	}
	bboxObj, ok := dict.Get(raw.NameLiteral("BBox"))
	if !ok {
		return nil, fmt.Errorf("tiling pattern has no bounding box")
	}
	bbox, ok := rectValue(env, bboxObj)
	if !ok {
		return nil, fmt.Errorf("tiling pattern bounding box is malformed")
	}
	p.BBox = bbox
	p.XStep, ok = dictFloat(env, dict, "XStep")
	if !ok || p.XStep == 0 {
		p.XStep = bbox.Width()
	}
	p.YStep, ok = dictFloat(env, dict, "YStep")
	if !ok || p.YStep == 0 {
		p.YStep = bbox.Height()
	}
	if p.XStep == 0 || p.YStep == 0 {
		return nil, fmt.Errorf("tiling pattern has a zero step")
	}
	if v, ok := dict.Get(raw.NameLiteral("Matrix")); ok {
		if m, ok := floatSlice(env, v); ok && len(m) == 6 {
			copy(p.Matrix[:], m)
		}
	}
	if v, ok := dict.Get(raw.NameLiteral("Resources")); ok {
		if rd, ok := env.resolveDict(v); ok {
			p.Resources = rd
		}
	}
	return p, nil
}

func parseShadingPattern(env Env, dict *raw.DictObj) (*ShadingPattern, error) {
	if pt, _ := dictInt(env, dict, "PatternType"); pt != 2 {
		return nil, fmt.Errorf("dictionary pattern must have PatternType 2")
	}
	shObj, ok := dict.Get(raw.NameLiteral("Shading"))
	if !ok {
		return nil, fmt.Errorf("shading pattern has no shading")
	}
	sh, err := ParseShading(env, shObj)
	if err != nil {
		return nil, err
	}
	p := &ShadingPattern{Shading: sh, Matrix: coords.Identity()}
	if v, ok := dict.Get(raw.NameLiteral("Matrix")); ok {
		if m, ok := floatSlice(env, v); ok && len(m) == 6 {
			copy(p.Matrix[:], m)
		}
	}
	return p, nil
}

// ParseShading parses an axial (type 2) or radial (type 3) shading
// dictionary. Mesh shading types are unsupported.
func ParseShading(env Env, obj raw.Object) (*Shading, error) {
	dict, ok := env.resolveDict(obj)
	if !ok {
		return nil, fmt.Errorf("shading is not a dictionary")
	}
	st, ok := dictInt(env, dict, "ShadingType")
	if !ok {
		return nil, fmt.Errorf("shading has no type")
	}
	if st != 2 && st != 3 {
		return nil, fmt.Errorf("unsupported shading type %d", st)
	}
	sh := &Shading{Type: st, Domain: [2]float64{0, 1}}
	csObj, ok := dict.Get(raw.NameLiteral("ColorSpace"))
	if !ok {
		return nil, fmt.Errorf("shading has no color space")
	}
	cs, err := ParseColorSpace(env, csObj)
	if err != nil {
		return nil, fmt.Errorf("shading color space: %w", err)
	}
	sh.ColorSpace = cs
	coordsObj, ok := dict.Get(raw.NameLiteral("Coords"))
	if !ok {
		return nil, fmt.Errorf("shading has no coordinates")
	}
	sh.Coords, ok = floatSlice(env, coordsObj)
	want := 4
	if st == 3 {
		want = 6
	}
	if !ok || len(sh.Coords) != want {
		return nil, fmt.Errorf("shading type %d needs %d coordinates", st, want)
	}
	if v, ok := dict.Get(raw.NameLiteral("Domain")); ok {
		if d, ok := floatSlice(env, v); ok && len(d) == 2 {
			sh.Domain[0], sh.Domain[1] = d[0], d[1]
		}
	}
	fnObj, ok := dict.Get(raw.NameLiteral("Function"))
	if !ok {
		return nil, fmt.Errorf("shading has no function")
	}
	switch fv := env.Resolve(fnObj).(type) {
	case *raw.ArrayObj:
		for _, item := range fv.Items {
			fn, err := ParseFunction(env, item)
			if err != nil {
				return nil, fmt.Errorf("shading function: %w", err)
			}
			sh.Functions = append(sh.Functions, fn)
		}
	default:
		fn, err := ParseFunction(env, fnObj)
		if err != nil {
			return nil, fmt.Errorf("shading function: %w", err)
		}
		sh.Functions = []Function{fn}
	}
	if len(sh.Functions) == 0 {
		return nil, fmt.Errorf("shading function list is empty")
	}
	if v, ok := dict.Get(raw.NameLiteral("Extend")); ok {
		if arr, ok := env.Resolve(v).(*raw.ArrayObj); ok && arr.Len() == 2 {
			if b, ok := env.Resolve(arr.Items[0]).(raw.BoolObj); ok {
				sh.Extend[0] = b.Value()
			}
			if b, ok := env.Resolve(arr.Items[1]).(raw.BoolObj); ok {
				sh.Extend[1] = b.Value()
			}
		}
	}
	if v, ok := dict.Get(raw.NameLiteral("Background")); ok {
		sh.Background, _ = floatSlice(env, v)
	}
	return sh, nil
}

// Dictionary access helpers. All resolve indirect values first.

func dictName(env Env, d *raw.DictObj, key string) (string, bool) {
	v, ok := d.Get(raw.NameLiteral(key))
	if !ok {
		return "", false
	}
	n, ok := env.Resolve(v).(raw.NameObj)
	if !ok {
		return "", false
	}
	return n.Value(), true
}

func dictInt(env Env, d *raw.DictObj, key string) (int, bool) {
	v, ok := d.Get(raw.NameLiteral(key))
	if !ok {
		return 0, false
	}
	n, ok := env.Resolve(v).(raw.NumberObj)
	if !ok {
		return 0, false
	}
	return int(n.Int()), true
}

func dictFloat(env Env, d *raw.DictObj, key string) (float64, bool) {
	v, ok := d.Get(raw.NameLiteral(key))
	if !ok {
		return 0, false
	}
	return numValue(env.Resolve(v))
}

func dictBool(env Env, d *raw.DictObj, key string) (bool, bool) {
	v, ok := d.Get(raw.NameLiteral(key))
	if !ok {
		return false, false
	}
	b, ok := env.Resolve(v).(raw.BoolObj)
	if !ok {
		return false, false
	}
	return b.Value(), true
}

func numValue(obj raw.Object) (float64, bool) {
	n, ok := obj.(raw.NumberObj)
	if !ok {
		return 0, false
	}
	return n.Float(), true
}

// floatSlice resolves obj to an array of numbers.
func floatSlice(env Env, obj raw.Object) ([]float64, bool) {
	arr, ok := env.Resolve(obj).(*raw.ArrayObj)
	if !ok {
		return nil, false
	}
	out := make([]float64, 0, arr.Len())
	for _, item := range arr.Items {
		v, ok := numValue(env.Resolve(item))
		if !ok {
			return nil, false
		}
		out = append(out, v)
	}
	return out, true
}

func floatTriple(env Env, d *raw.DictObj, key string) ([3]float64, bool) {
	v, ok := d.Get(raw.NameLiteral(key))
	if !ok {
		return [3]float64{}, false
	}
	s, ok := floatSlice(env, v)
	if !ok || len(s) != 3 {
		return [3]float64{}, false
	}
	return [3]float64{s[0], s[1], s[2]}, true
}

// rectValue resolves obj to a normalized rectangle.
func rectValue(env Env, obj raw.Object) (Rectangle, bool) {
	s, ok := floatSlice(env, obj)
	if !ok || len(s) != 4 {
		return Rectangle{}, false
	}
	r := Rectangle{LLX: s[0], LLY: s[1], URX: s[2], URY: s[3]}
	if r.LLX > r.URX {
		r.LLX, r.URX = r.URX, r.LLX
	}
	if r.LLY > r.URY {
		r.LLY, r.URY = r.URY, r.LLY
	}
	return r, true
}
