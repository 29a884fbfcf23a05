package imaging

import (
	"context"
	"fmt"

	"github.com/siftdocs/pdfsift/ir/raw"
	"github.com/siftdocs/pdfsift/ir/semantic"
	"github.com/siftdocs/pdfsift/observability"
)

// applyAlpha composes the image's alpha plane from its soft mask and its
// explicit stencil mask or color key. Soft-mask failures degrade to no
// mask; explicit-mask structural problems and malformed Matte entries are
// hard errors.
func applyAlpha(ctx context.Context, img *Image, x *semantic.XObject, env semantic.Env, opts Options) error {
	var soft []byte
	if x.SMask != nil {
		if err := checkMatte(env, x); err != nil {
			return err
		}
		a, err := softMaskAlpha(x.SMask, img.Width, img.Height)
		if err != nil {
			opts.logger().Warn("soft mask dropped", observability.Error("err", err))
		} else {
			soft = a
		}
	}

	var hard []byte
	switch {
	case x.Mask != nil:
		a, err := stencilMaskAlpha(x.Mask, img.Width, img.Height)
		if err != nil {
			return err
		}
		hard = a
	case len(x.ColorKey) > 0:
		a, err := colorKeyAlpha(x, img.Width, img.Height)
		if err != nil {
			opts.logger().Warn("color key mask dropped", observability.Error("err", err))
		} else {
			hard = a
		}
	}

	switch {
	case soft == nil && hard == nil:
		return nil
	case soft == nil:
		img.Alpha = hard
	case hard == nil:
		img.Alpha = soft
	default:
		out := soft
		for i := range out {
			out[i] = combineAlpha(out[i], hard[i])
		}
		img.Alpha = out
	}
	return nil
}

// combineAlpha multiplies two alpha bytes with rounding.
func combineAlpha(a, b byte) byte {
	return byte((int(a)*int(b) + 127) / 255)
}

// checkMatte validates the soft mask's /Matte entry: when present it must
// carry one value per base image component.
func checkMatte(env semantic.Env, x *semantic.XObject) error {
	sm := x.SMask
	if sm == nil || sm.Dict == nil {
		return nil
	}
	obj, ok := sm.Dict.Get(raw.NameLiteral("Matte"))
	if !ok {
		return nil
	}
	arr, ok := env.Resolve(obj).(*raw.ArrayObj)
	if !ok {
		return fmt.Errorf("imaging: Matte entry is not an array")
	}
	comps := 1
	if x.ColorSpace != nil {
		comps = x.ColorSpace.Components()
	}
	if len(arr.Items) != comps {
		return fmt.Errorf("imaging: Matte has %d components, image has %d", len(arr.Items), comps)
	}
	return nil
}

// softMaskAlpha decodes a grayscale soft-mask image to an alpha plane
// resampled to the base image's dimensions.
func softMaskAlpha(sm *semantic.XObject, w, h int) ([]byte, error) {
	mw, mh, bpc := sm.Width, sm.Height, sm.BitsPerComponent
	if hint := sm.Hint; hint != nil {
		if hint.Width > 0 {
			mw, mh = hint.Width, hint.Height
		}
		if hint.BitsPerComponent > 0 {
			bpc = hint.BitsPerComponent
		}
	}
	if mw <= 0 || mh <= 0 {
		return nil, fmt.Errorf("%w: soft mask %dx%d", ErrDimensionMismatch, mw, mh)
	}
	switch bpc {
	case 1, 2, 4, 8, 16:
	default:
		return nil, fmt.Errorf("%w: soft mask %d bits", ErrBitDepth, bpc)
	}
	samples, err := unpackSamples(sm.Data, mw, mh, bpc, 1)
	if err != nil {
		return nil, err
	}
	invert := len(sm.Decode) >= 2 && sm.Decode[0] == 1
	plane := make([]byte, mw*mh)
	for i, v := range samples {
		if invert {
			v = 1 - v
		}
		plane[i] = to8(v)
	}
	if mw == w && mh == h {
		return plane, nil
	}
	// Nearest-neighbor resample onto the base grid.
	out := make([]byte, w*h)
	for y := 0; y < h; y++ {
		sy := y * mh / h
		for xx := 0; xx < w; xx++ {
			sx := xx * mw / w
			out[y*w+xx] = plane[sy*mw+sx]
		}
	}
	return out, nil
}

// stencilMaskAlpha decodes an explicit /Mask stream. It must be 1-bit
// and match the base dimensions; a set sample masks the base pixel out.
func stencilMaskAlpha(mask *semantic.XObject, w, h int) ([]byte, error) {
	if mask.BitsPerComponent != 1 {
		return nil, fmt.Errorf("%w: explicit mask has %d bits", ErrBitDepth, mask.BitsPerComponent)
	}
	if mask.Width != w || mask.Height != h {
		return nil, fmt.Errorf("%w: mask %dx%d over image %dx%d", ErrDimensionMismatch, mask.Width, mask.Height, w, h)
	}
	rowBytes := (w + 7) / 8
	if len(mask.Data) < rowBytes*h {
		return nil, fmt.Errorf("%w: mask data %d bytes, need %d", ErrDimensionMismatch, len(mask.Data), rowBytes*h)
	}
	invert := len(mask.Decode) >= 2 && mask.Decode[0] == 1
	out := make([]byte, w*h)
	for y := 0; y < h; y++ {
		row := mask.Data[y*rowBytes:]
		for xx := 0; xx < w; xx++ {
			bit := (row[xx/8] >> (7 - uint(xx%8))) & 1
			masked := bit == 1
			if invert {
				masked = !masked
			}
			if !masked {
				out[y*w+xx] = 255
			}
		}
	}
	return out, nil
}

// colorKeyAlpha hides pixels whose raw samples all fall inside the
// color-key ranges.
func colorKeyAlpha(x *semantic.XObject, w, h int) ([]byte, error) {
	comps := 1
	if x.ColorSpace != nil {
		comps = x.ColorSpace.Components()
	}
	bpc := x.BitsPerComponent
	if hint := x.Hint; hint != nil && hint.BitsPerComponent > 0 {
		bpc = hint.BitsPerComponent
	}
	if len(x.ColorKey) < comps*2 {
		return nil, fmt.Errorf("imaging: color key has %d bounds, need %d", len(x.ColorKey), comps*2)
	}
	rawVals, err := unpackRaw(x.Data, w, h, bpc, comps)
	if err != nil {
		return nil, err
	}
	out := make([]byte, w*h)
	for i := 0; i < w*h; i++ {
		hidden := true
		for c := 0; c < comps; c++ {
			v := int(rawVals[i*comps+c])
			if v < x.ColorKey[c*2] || v > x.ColorKey[c*2+1] {
				hidden = false
				break
			}
		}
		if !hidden {
			out[i] = 255
		}
	}
	return out, nil
}

// unpackRaw expands packed samples to their raw integer values.
func unpackRaw(data []byte, w, h, bpc, comps int) ([]uint32, error) {
	rowBits := w * comps * bpc
	rowBytes := (rowBits + 7) / 8
	if len(data) < rowBytes*h {
		return nil, fmt.Errorf("%w: %d bytes of samples, need %d", ErrDimensionMismatch, len(data), rowBytes*h)
	}
	out := make([]uint32, w*h*comps)
	idx := 0
	for y := 0; y < h; y++ {
		row := data[y*rowBytes : (y+1)*rowBytes]
		bit := 0
		for i := 0; i < w*comps; i++ {
			var v uint32
			for b := 0; b < bpc; b++ {
				v = v<<1 | uint32((row[bit/8]>>(7-uint(bit%8)))&1)
				bit++
			}
			out[idx] = v
			idx++
		}
	}
	return out, nil
}
