// Package imaging reconstructs image XObjects as 8-bit sRGB pixel
// buffers. It unpacks packed samples at any legal bit depth, applies
// Decode remapping, converts through the color-space union (device,
// Indexed, calibrated, ICC, Separation fallback) and composes the alpha
// channel from soft masks, stencil masks and color keys.
package imaging

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/siftdocs/pdfsift/cmm"
	"github.com/siftdocs/pdfsift/ir/semantic"
	"github.com/siftdocs/pdfsift/observability"
)

// ErrDimensionMismatch reports sample data too short for the declared
// geometry, or a mask whose dimensions do not match its base image.
var ErrDimensionMismatch = errors.New("imaging: dimension mismatch")

// ErrBitDepth reports an unsupported BitsPerComponent.
var ErrBitDepth = errors.New("imaging: unsupported bit depth")

// Image is a decoded image: interleaved 8-bit RGB, with an optional
// alpha plane of Width*Height bytes. A nil Alpha means fully opaque.
type Image struct {
	Width  int
	Height int
	RGB    []byte
	Alpha  []byte
}

// Options tunes decoding.
type Options struct {
	Logger observability.Logger
	// FillColor paints ImageMask stencils; it is the fill color active
	// when the image was placed.
	FillColor [3]uint8
	// MaxDimension bounds Width and Height. Zero means unbounded.
	MaxDimension int
	// MaxPixels bounds Width*Height. Zero means unbounded.
	MaxPixels int64
}

func (o Options) logger() observability.Logger {
	if o.Logger == nil {
		return observability.NopLogger{}
	}
	return o.Logger
}

// DecodeImage reconstructs one image XObject. Mask failures other than
// dimension mismatches on explicit masks degrade to no mask.
func DecodeImage(ctx context.Context, x *semantic.XObject, env semantic.Env, opts Options) (*Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if x == nil || x.Subtype != "Image" {
		return nil, errors.New("imaging: not an image XObject")
	}

	w, h, bpc := x.Width, x.Height, x.BitsPerComponent
	comps := 1
	if x.ColorSpace != nil {
		comps = x.ColorSpace.Components()
	}
	if hint := x.Hint; hint != nil {
		// A terminal codec reports the geometry it actually produced.
		if hint.Width > 0 {
			w, h = hint.Width, hint.Height
		}
		if hint.Components > 0 {
			comps = hint.Components
		}
		if hint.BitsPerComponent > 0 {
			bpc = hint.BitsPerComponent
		}
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrDimensionMismatch, w, h)
	}
	if opts.MaxDimension > 0 && (w > opts.MaxDimension || h > opts.MaxDimension) {
		return nil, fmt.Errorf("imaging: %dx%d exceeds dimension limit %d", w, h, opts.MaxDimension)
	}
	if opts.MaxPixels > 0 && int64(w)*int64(h) > opts.MaxPixels {
		return nil, fmt.Errorf("imaging: %dx%d exceeds pixel limit", w, h)
	}
	switch bpc {
	case 1, 2, 4, 8, 16:
	default:
		return nil, fmt.Errorf("%w: %d bits", ErrBitDepth, bpc)
	}

	img := &Image{Width: w, Height: h, RGB: make([]byte, w*h*3)}

	if x.ImageMask {
		if err := decodeStencil(img, x, opts.FillColor); err != nil {
			return nil, err
		}
		return img, nil
	}

	samples, err := unpackSamples(x.Data, w, h, bpc, comps)
	if err != nil {
		return nil, err
	}

	// When a codec produced a different component count than the
	// declared space (a JPEG upsampled to RGB, say), trust the codec.
	cs := x.ColorSpace
	if cs != nil && comps != cs.Components() {
		cs = deviceSpaceFor(comps)
	}
	applyDecode(samples, comps, bpc, cs, x.Decode)

	convert, err := pixelConverter(cs, comps, bpc, opts)
	if err != nil {
		return nil, err
	}
	px := make([]float64, comps)
	for i := 0; i < w*h; i++ {
		copy(px, samples[i*comps:(i+1)*comps])
		r, g, b := convert(px)
		img.RGB[i*3] = r
		img.RGB[i*3+1] = g
		img.RGB[i*3+2] = b
	}

	if err := applyAlpha(ctx, img, x, env, opts); err != nil {
		return nil, err
	}
	return img, nil
}

// decodeStencil paints an ImageMask: every set bit becomes the fill
// color at full alpha, clear bits are transparent. Decode [1 0] flips
// which bit paints.
func decodeStencil(img *Image, x *semantic.XObject, fill [3]uint8) error {
	w, h := img.Width, img.Height
	rowBytes := (w + 7) / 8
	if len(x.Data) < rowBytes*h {
		return fmt.Errorf("%w: stencil data %d bytes, need %d", ErrDimensionMismatch, len(x.Data), rowBytes*h)
	}
	invert := len(x.Decode) >= 2 && x.Decode[0] == 1
	img.Alpha = make([]byte, w*h)
	for y := 0; y < h; y++ {
		row := x.Data[y*rowBytes:]
		for xx := 0; xx < w; xx++ {
			bit := (row[xx/8] >> (7 - uint(xx%8))) & 1
			// Sample 0 paints, 1 masks out; Decode [1 0] swaps that.
			paint := bit == 0
			if invert {
				paint = !paint
			}
			i := y*w + xx
			img.RGB[i*3] = fill[0]
			img.RGB[i*3+1] = fill[1]
			img.RGB[i*3+2] = fill[2]
			if paint {
				img.Alpha[i] = 255
			}
		}
	}
	return nil
}

// unpackSamples expands packed big-endian samples into normalized
// [0,1] floats, row-aligned to byte boundaries.
func unpackSamples(data []byte, w, h, bpc, comps int) ([]float64, error) {
	rowBits := w * comps * bpc
	rowBytes := (rowBits + 7) / 8
	if len(data) < rowBytes*h {
		return nil, fmt.Errorf("%w: %d bytes of samples, need %d", ErrDimensionMismatch, len(data), rowBytes*h)
	}
	maxVal := float64(uint64(1)<<uint(bpc) - 1)
	out := make([]float64, w*h*comps)
	idx := 0
	for y := 0; y < h; y++ {
		row := data[y*rowBytes : (y+1)*rowBytes]
		bit := 0
		for i := 0; i < w*comps; i++ {
			var v uint64
			for b := 0; b < bpc; b++ {
				byteIdx := bit / 8
				v = v<<1 | uint64((row[byteIdx]>>(7-uint(bit%8)))&1)
				bit++
			}
			out[idx] = float64(v) / maxVal
			idx++
		}
	}
	return out, nil
}

// applyDecode remaps normalized samples through the Decode array. For
// Indexed spaces the default decode covers the index range, so samples
// are scaled back to integer indices afterward by the converter.
func applyDecode(samples []float64, comps, bpc int, cs semantic.ColorSpace, decode []float64) {
	if len(decode) < comps*2 {
		return
	}
	def := defaultDecode(cs, comps, bpc)
	same := true
	for i := range decode[:comps*2] {
		if decode[i] != def[i] {
			same = false
			break
		}
	}
	if same {
		return
	}
	// Samples are normalized over the raw range; remap each component
	// into its decode interval, then renormalize over the default range
	// so converters keep a single contract.
	for i := 0; i < len(samples); i += comps {
		for c := 0; c < comps; c++ {
			dmin, dmax := decode[c*2], decode[c*2+1]
			fmin, fmax := def[c*2], def[c*2+1]
			v := dmin + samples[i+c]*(dmax-dmin)
			if fmax != fmin {
				v = (v - fmin) / (fmax - fmin)
			}
			samples[i+c] = v
		}
	}
}

func defaultDecode(cs semantic.ColorSpace, comps, bpc int) []float64 {
	out := make([]float64, comps*2)
	switch v := cs.(type) {
	case *semantic.IndexedColorSpace:
		out[1] = float64(uint64(1)<<uint(bpc) - 1)
	case *semantic.LabColorSpace:
		out[1] = 100
		out[2], out[3] = v.Range[0], v.Range[1]
		out[4], out[5] = v.Range[2], v.Range[3]
	default:
		for c := 0; c < comps; c++ {
			out[c*2+1] = 1
		}
	}
	return out
}

// pixelConverter returns the per-pixel conversion for a color space.
// Input components are normalized to [0,1] over the space's default
// range.
func pixelConverter(cs semantic.ColorSpace, comps, bpc int, opts Options) (func([]float64) (uint8, uint8, uint8), error) {
	if cs == nil {
		cs = semantic.DeviceColorSpace{Name: "DeviceGray"}
	}
	switch v := cs.(type) {
	case semantic.DeviceColorSpace:
		return deviceConverter(v.Name), nil

	case *semantic.IndexedColorSpace:
		return indexedConverter(v, bpc, opts)

	case *semantic.SeparationColorSpace, *semantic.DeviceNColorSpace:
		// Deterministic fallback: average the tints and invert, so full
		// ink coverage reads dark.
		return func(px []float64) (uint8, uint8, uint8) {
			sum := 0.0
			for _, t := range px {
				sum += clamp01(t)
			}
			g := to8(1 - sum/float64(len(px)))
			return g, g, g
		}, nil

	case *semantic.CalGrayColorSpace:
		gamma := v.Gamma
		if gamma == 0 {
			gamma = 1
		}
		white := v.WhitePoint
		return func(px []float64) (uint8, uint8, uint8) {
			xyz := cmm.CalGrayToXYZ(clamp01(px[0]), gamma, white)
			return cmm.XYZToSRGB8(cmm.BradfordAdapt(xyz, white, cmm.D65))
		}, nil

	case *semantic.CalRGBColorSpace:
		white := v.WhitePoint
		return func(px []float64) (uint8, uint8, uint8) {
			rgb := [3]float64{clamp01(px[0]), clamp01(px[1]), clamp01(px[2])}
			xyz := cmm.CalRGBToXYZ(rgb, v.Gamma, v.Matrix)
			return cmm.XYZToSRGB8(cmm.BradfordAdapt(xyz, white, cmm.D65))
		}, nil

	case *semantic.LabColorSpace:
		white := v.WhitePoint
		rng := v.Range
		return func(px []float64) (uint8, uint8, uint8) {
			L := clamp01(px[0]) * 100
			a := rng[0] + clamp01(px[1])*(rng[1]-rng[0])
			b := rng[2] + clamp01(px[2])*(rng[3]-rng[2])
			return cmm.LabToSRGB8(L, a, b, white)
		}, nil

	case *semantic.ICCBasedColorSpace:
		return iccConverter(v, comps, bpc, opts)

	default:
		return nil, fmt.Errorf("imaging: color space %s not valid for images", cs.Family())
	}
}

func deviceSpaceFor(comps int) semantic.ColorSpace {
	switch comps {
	case 3:
		return semantic.DeviceColorSpace{Name: "DeviceRGB"}
	case 4:
		return semantic.DeviceColorSpace{Name: "DeviceCMYK"}
	default:
		return semantic.DeviceColorSpace{Name: "DeviceGray"}
	}
}

func deviceConverter(name string) func([]float64) (uint8, uint8, uint8) {
	switch name {
	case "DeviceRGB":
		return func(px []float64) (uint8, uint8, uint8) {
			return to8(px[0]), to8(px[1]), to8(px[2])
		}
	case "DeviceCMYK":
		return func(px []float64) (uint8, uint8, uint8) {
			c, m, y, k := clamp01(px[0]), clamp01(px[1]), clamp01(px[2]), clamp01(px[3])
			return to8((1 - c) * (1 - k)), to8((1 - m) * (1 - k)), to8((1 - y) * (1 - k))
		}
	default:
		return func(px []float64) (uint8, uint8, uint8) {
			g := to8(px[0])
			return g, g, g
		}
	}
}

func indexedConverter(cs *semantic.IndexedColorSpace, bpc int, opts Options) (func([]float64) (uint8, uint8, uint8), error) {
	baseComps := 3
	if cs.Base != nil {
		baseComps = cs.Base.Components()
	}
	baseConv, err := pixelConverter(cs.Base, baseComps, 8, opts)
	if err != nil {
		return nil, err
	}
	hival := cs.Hival
	lookup := cs.Lookup
	maxVal := float64(uint64(1)<<uint(bpc) - 1)
	basePx := make([]float64, baseComps)
	return func(px []float64) (uint8, uint8, uint8) {
		// px[0] is normalized over the full sample range; recover the
		// integer index and clamp to hival.
		idx := int(math.Round(px[0] * maxVal))
		if idx < 0 {
			idx = 0
		}
		if idx > hival {
			idx = hival
		}
		off := idx * baseComps
		for c := 0; c < baseComps; c++ {
			if off+c < len(lookup) {
				basePx[c] = float64(lookup[off+c]) / 255
			} else {
				basePx[c] = 0
			}
		}
		return baseConv(basePx)
	}, nil
}

func iccConverter(cs *semantic.ICCBasedColorSpace, comps, bpc int, opts Options) (func([]float64) (uint8, uint8, uint8), error) {
	if len(cs.Profile) > 0 {
		if profile, err := cmm.NewICCProfile(cs.Profile); err == nil {
			if conv, err := cmm.SRGBFromProfile(profile); err == nil {
				return func(px []float64) (uint8, uint8, uint8) {
					r, g, b, err := conv(px)
					if err != nil {
						g := to8(px[0])
						return g, g, g
					}
					return r, g, b
				}, nil
			}
		}
		opts.logger().Warn("ICC profile unusable, using alternate space")
	}
	if cs.Alternate != nil {
		return pixelConverter(cs.Alternate, comps, bpc, opts)
	}
	switch cs.N {
	case 4:
		return deviceConverter("DeviceCMYK"), nil
	case 3:
		return deviceConverter("DeviceRGB"), nil
	default:
		return deviceConverter("DeviceGray"), nil
	}
}

func to8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
