package semantic

import (
	"fmt"
	"math"

	"github.com/siftdocs/pdfsift/ir/raw"
)

// Function is a PDF function with clipped inputs and outputs. The union
// covers sampled (type 0), exponential (type 2) and stitching (type 3)
// functions; PostScript calculator functions (type 4) are not supported
// and fail at parse time.
type Function interface {
	// Eval evaluates the function. Inputs are clipped to the domain;
	// outputs are clipped to the range when one is declared.
	Eval(xs []float64) []float64
	// Domain returns the declared input domain, two values per input.
	Domain() []float64
}

// ParseFunction parses a function dictionary or stream.
func ParseFunction(env Env, obj raw.Object) (Function, error) {
	var dict *raw.DictObj
	var data []byte
	switch v := env.Resolve(obj).(type) {
	case *raw.DictObj:
		dict = v
	case *raw.StreamObj:
		dict = v.Dict
		if _, _, d, ok := env.streamParts(obj); ok {
			data = d
		} else {
			data = v.Data
		}
	default:
		return nil, fmt.Errorf("function must be a dictionary or stream")
	}
	ft, ok := dictInt(env, dict, "FunctionType")
	if !ok {
		return nil, fmt.Errorf("function has no type")
	}
	domain, ok := functionDomain(env, dict)
	if !ok {
		return nil, fmt.Errorf("function has no valid domain")
	}
	switch ft {
	case 0:
		return parseSampledFunction(env, dict, data, domain)
	case 2:
		return parseExponentialFunction(env, dict, domain)
	case 3:
		return parseStitchingFunction(env, dict, domain)
	case 4:
		return nil, fmt.Errorf("postscript calculator functions are not supported")
	default:
		return nil, fmt.Errorf("unknown function type %d", ft)
	}
}

func functionDomain(env Env, dict *raw.DictObj) ([]float64, bool) {
	v, ok := dict.Get(raw.NameLiteral("Domain"))
	if !ok {
		return nil, false
	}
	d, ok := floatSlice(env, v)
	if !ok || len(d) < 2 || len(d)%2 != 0 {
		return nil, false
	}
	return d, true
}

func functionRange(env Env, dict *raw.DictObj) []float64 {
	v, ok := dict.Get(raw.NameLiteral("Range"))
	if !ok {
		return nil
	}
	r, ok := floatSlice(env, v)
	if !ok || len(r) < 2 || len(r)%2 != 0 {
		return nil
	}
	return r
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// interpolate maps x from [xmin,xmax] onto [ymin,ymax].
func interpolate(x, xmin, xmax, ymin, ymax float64) float64 {
	if xmax == xmin {
		return ymin
	}
	return ymin + (x-xmin)*(ymax-ymin)/(xmax-xmin)
}

func clipToRange(out, rng []float64) []float64 {
	for j := range out {
		if 2*j+1 < len(rng) {
			out[j] = clip(out[j], rng[2*j], rng[2*j+1])
		}
	}
	return out
}

// SampledFunction is a type 0 function: a sample table interpolated
// multilinearly between the 2^m surrounding grid corners.
type SampledFunction struct {
	domain  []float64
	rng     []float64
	size    []int
	bps     int
	encode  []float64
	decode  []float64
	samples []byte
	n       int
}

func parseSampledFunction(env Env, dict *raw.DictObj, data []byte, domain []float64) (*SampledFunction, error) {
	if data == nil {
		return nil, fmt.Errorf("sampled function has no sample stream")
	}
	m := len(domain) / 2
	if m > 8 {
		return nil, fmt.Errorf("sampled function has too many inputs (%d)", m)
	}
	rng := functionRange(env, dict)
	if rng == nil {
		return nil, fmt.Errorf("sampled function has no range")
	}
	n := len(rng) / 2
	sizeObj, ok := dict.Get(raw.NameLiteral("Size"))
	if !ok {
		return nil, fmt.Errorf("sampled function has no size")
	}
	sizes, ok := floatSlice(env, sizeObj)
	if !ok || len(sizes) != m {
		return nil, fmt.Errorf("sampled function size must have %d entries", m)
	}
	size := make([]int, m)
	total := 1
	for i, s := range sizes {
		size[i] = int(s)
		if size[i] < 1 {
			return nil, fmt.Errorf("sampled function size must be positive")
		}
		total *= size[i]
	}
	bps, ok := dictInt(env, dict, "BitsPerSample")
	if !ok {
		return nil, fmt.Errorf("sampled function has no bits per sample")
	}
	switch bps {
	case 1, 2, 4, 8, 12, 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported bits per sample %d", bps)
	}
	if need := total * n * bps; need > len(data)*8 {
		return nil, fmt.Errorf("sample table too short: need %d bits, have %d", need, len(data)*8)
	}
	fn := &SampledFunction{
		domain:  domain,
		rng:     rng,
		size:    size,
		bps:     bps,
		samples: data,
		n:       n,
	}
	if v, ok := dict.Get(raw.NameLiteral("Encode")); ok {
		if e, ok := floatSlice(env, v); ok && len(e) == 2*m {
			fn.encode = e
		}
	}
	if fn.encode == nil {
		fn.encode = make([]float64, 2*m)
		for i := 0; i < m; i++ {
			fn.encode[2*i+1] = float64(size[i] - 1)
		}
	}
	if v, ok := dict.Get(raw.NameLiteral("Decode")); ok {
		if d, ok := floatSlice(env, v); ok && len(d) == 2*n {
			fn.decode = d
		}
	}
	if fn.decode == nil {
		fn.decode = rng
	}
	return fn, nil
}

func (f *SampledFunction) Domain() []float64 { return f.domain }

func (f *SampledFunction) Eval(xs []float64) []float64 {
	m := len(f.size)
	// Grid coordinates per input: lower corner, upper corner, fraction.
	lo := make([]int, m)
	hi := make([]int, m)
	frac := make([]float64, m)
	for i := 0; i < m; i++ {
		var x float64
		if i < len(xs) {
			x = xs[i]
		}
		x = clip(x, f.domain[2*i], f.domain[2*i+1])
		e := interpolate(x, f.domain[2*i], f.domain[2*i+1], f.encode[2*i], f.encode[2*i+1])
		e = clip(e, 0, float64(f.size[i]-1))
		lo[i] = int(math.Floor(e))
		frac[i] = e - float64(lo[i])
		hi[i] = lo[i] + 1
		if hi[i] > f.size[i]-1 {
			hi[i] = f.size[i] - 1
		}
	}
	// Strides with the first input varying fastest.
	stride := make([]int, m)
	acc := 1
	for i := 0; i < m; i++ {
		stride[i] = acc
		acc *= f.size[i]
	}
	out := make([]float64, f.n)
	corners := 1 << m
	for c := 0; c < corners; c++ {
		weight := 1.0
		idx := 0
		for i := 0; i < m; i++ {
			if c>>i&1 == 1 {
				weight *= frac[i]
				idx += hi[i] * stride[i]
			} else {
				weight *= 1 - frac[i]
				idx += lo[i] * stride[i]
			}
		}
		if weight == 0 {
			continue
		}
		for j := 0; j < f.n; j++ {
			out[j] += weight * f.sampleAt(idx, j)
		}
	}
	return clipToRange(out, f.rng)
}

// sampleAt reads output j of grid sample idx and decodes it.
func (f *SampledFunction) sampleAt(idx, j int) float64 {
	bitOff := (idx*f.n + j) * f.bps
	v, ok := readBits(f.samples, bitOff, f.bps)
	if !ok {
		return 0
	}
	maxVal := float64(uint64(1)<<f.bps - 1)
	return interpolate(float64(v), 0, maxVal, f.decode[2*j], f.decode[2*j+1])
}

// readBits reads a big-endian unsigned value of 1..32 bits.
func readBits(data []byte, bitOff, bits int) (uint64, bool) {
	if bitOff < 0 || bits <= 0 || bitOff+bits > len(data)*8 {
		return 0, false
	}
	var v uint64
	for i := 0; i < bits; i++ {
		pos := bitOff + i
		b := data[pos/8] >> (7 - pos%8) & 1
		v = v<<1 | uint64(b)
	}
	return v, true
}

// ExponentialFunction is a type 2 function: C0 + x^N * (C1 - C0).
type ExponentialFunction struct {
	domain []float64
	rng    []float64
	c0     []float64
	c1     []float64
	n      float64
}

func parseExponentialFunction(env Env, dict *raw.DictObj, domain []float64) (*ExponentialFunction, error) {
	fn := &ExponentialFunction{
		domain: domain,
		rng:    functionRange(env, dict),
		c0:     []float64{0},
		c1:     []float64{1},
	}
	n, ok := dictFloat(env, dict, "N")
	if !ok {
		return nil, fmt.Errorf("exponential function has no exponent")
	}
	fn.n = n
	if v, ok := dict.Get(raw.NameLiteral("C0")); ok {
		if c, ok := floatSlice(env, v); ok && len(c) > 0 {
			fn.c0 = c
		}
	}
	if v, ok := dict.Get(raw.NameLiteral("C1")); ok {
		if c, ok := floatSlice(env, v); ok && len(c) > 0 {
			fn.c1 = c
		}
	}
	if len(fn.c0) != len(fn.c1) {
		return nil, fmt.Errorf("exponential function C0/C1 length mismatch")
	}
	return fn, nil
}

func (f *ExponentialFunction) Domain() []float64 { return f.domain }

func (f *ExponentialFunction) Eval(xs []float64) []float64 {
	var x float64
	if len(xs) > 0 {
		x = xs[0]
	}
	x = clip(x, f.domain[0], f.domain[1])
	xn := math.Pow(x, f.n)
	out := make([]float64, len(f.c0))
	for j := range out {
		out[j] = f.c0[j] + xn*(f.c1[j]-f.c0[j])
	}
	return clipToRange(out, f.rng)
}

// StitchingFunction is a type 3 function: k subfunctions over adjacent
// subdomains split by Bounds, each reached through its Encode pair.
type StitchingFunction struct {
	domain []float64
	rng    []float64
	funcs  []Function
	bounds []float64
	encode []float64
}

func parseStitchingFunction(env Env, dict *raw.DictObj, domain []float64) (*StitchingFunction, error) {
	fn := &StitchingFunction{domain: domain, rng: functionRange(env, dict)}
	fnsObj, ok := dict.Get(raw.NameLiteral("Functions"))
	if !ok {
		return nil, fmt.Errorf("stitching function has no subfunctions")
	}
	arr, ok := env.Resolve(fnsObj).(*raw.ArrayObj)
	if !ok || arr.Len() == 0 {
		return nil, fmt.Errorf("stitching subfunctions must be a non-empty array")
	}
	for _, item := range arr.Items {
		sub, err := ParseFunction(env, item)
		if err != nil {
			return nil, fmt.Errorf("stitching subfunction: %w", err)
		}
		fn.funcs = append(fn.funcs, sub)
	}
	k := len(fn.funcs)
	if v, ok := dict.Get(raw.NameLiteral("Bounds")); ok {
		fn.bounds, _ = floatSlice(env, v)
	}
	if len(fn.bounds) != k-1 {
		return nil, fmt.Errorf("stitching function needs %d bounds, got %d", k-1, len(fn.bounds))
	}
	if v, ok := dict.Get(raw.NameLiteral("Encode")); ok {
		if e, ok := floatSlice(env, v); ok && len(e) == 2*k {
			fn.encode = e
		}
	}
	if fn.encode == nil {
		fn.encode = make([]float64, 2*k)
		for i := 0; i < k; i++ {
			fn.encode[2*i+1] = 1
		}
	}
	return fn, nil
}

func (f *StitchingFunction) Domain() []float64 { return f.domain }

func (f *StitchingFunction) Eval(xs []float64) []float64 {
	var x float64
	if len(xs) > 0 {
		x = xs[0]
	}
	x = clip(x, f.domain[0], f.domain[1])
	k := len(f.funcs)
	i := 0
	for i < k-1 && x >= f.bounds[i] {
		i++
	}
	low := f.domain[0]
	if i > 0 {
		low = f.bounds[i-1]
	}
	high := f.domain[1]
	if i < k-1 {
		high = f.bounds[i]
	}
	e := interpolate(x, low, high, f.encode[2*i], f.encode[2*i+1])
	out := f.funcs[i].Eval([]float64{e})
	if f.rng != nil {
		out = clipToRange(append([]float64(nil), out...), f.rng)
	}
	return out
}
