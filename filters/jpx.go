package filters

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/siftdocs/pdfsift/ir/raw"
)

// JPXColorSpace identifies the colour interpretation of a decoded
// JPEG 2000 codestream.
type JPXColorSpace int

const (
	JPXSpaceUnknown JPXColorSpace = iota
	JPXSpaceGray
	JPXSpaceRGB
	JPXSpaceSYCC
	JPXSpaceCMYK
)

// JPXComponent is one decoded component plane. DX/DY are the
// subsampling factors relative to the image grid.
type JPXComponent struct {
	Samples   []int32
	Width     int
	Height    int
	DX, DY    int
	Precision int
	Signed    bool
}

// JPXImage is the planar result of an external JPEG 2000 decoder.
type JPXImage struct {
	Width      int
	Height     int
	ColorSpace JPXColorSpace
	Components []JPXComponent
}

// JPXDecoder decodes a raw JPEG 2000 codestream. The library carries no
// JPX entropy decoder of its own; callers supply one when their inputs
// need it.
type JPXDecoder func(ctx context.Context, codestream []byte) (*JPXImage, error)

type jpxDecoder struct {
	decode JPXDecoder
}

func NewJPXDecoder(decode JPXDecoder) Decoder { return jpxDecoder{decode: decode} }

func (jpxDecoder) Name() string { return "JPXDecode" }

func (d jpxDecoder) Decode(ctx context.Context, in []byte, params raw.Dictionary) ([]byte, error) {
	out, _, err := d.DecodeImage(ctx, in, params)
	return out, err
}

func (d jpxDecoder) DecodeImage(ctx context.Context, in []byte, params raw.Dictionary) ([]byte, *Info, error) {
	if d.decode == nil {
		return nil, nil, errors.New("no JPX decoder configured")
	}
	img, err := d.decode(ctx, in)
	if err != nil {
		return nil, nil, err
	}
	if img.Width <= 0 || img.Height <= 0 || len(img.Components) == 0 {
		return nil, nil, errors.New("invalid JPX bounds")
	}
	if err := validateNativeImageDims(img.Width, img.Height); err != nil {
		return nil, nil, err
	}

	out, comps, err := composeJPXPixelBuffer(img)
	if err != nil {
		return nil, nil, err
	}
	info := &Info{
		Filter:           "JPXDecode",
		Width:            img.Width,
		Height:           img.Height,
		Components:       comps,
		BitsPerComponent: 8,
	}
	return out, info, nil
}

// composeJPXPixelBuffer interleaves the component planes into 8-bit
// samples: one channel for greyscale, three for RGB (SYCC is converted),
// four for CMYK. Extra alpha planes are dropped; transparency travels in
// the image dictionary's soft mask.
func composeJPXPixelBuffer(img *JPXImage) ([]byte, int, error) {
	comps := img.Components
	var out []byte
	switch {
	case len(comps) <= 2:
		out = make([]byte, img.Width*img.Height)
		if err := fillJPXPlane(out, img, 0, 1, 0); err != nil {
			return nil, 0, err
		}
		return out, 1, nil
	case len(comps) == 3:
		out = make([]byte, img.Width*img.Height*3)
		for c := 0; c < 3; c++ {
			if err := fillJPXPlane(out, img, c, 3, c); err != nil {
				return nil, 0, err
			}
		}
		if img.ColorSpace == JPXSpaceSYCC {
			for i := 0; i < len(out); i += 3 {
				out[i], out[i+1], out[i+2] = yccToRGB(out[i], out[i+1], out[i+2])
			}
		}
		return out, 3, nil
	case len(comps) >= 4 && img.ColorSpace == JPXSpaceRGB:
		out = make([]byte, img.Width*img.Height*3)
		for c := 0; c < 3; c++ {
			if err := fillJPXPlane(out, img, c, 3, c); err != nil {
				return nil, 0, err
			}
		}
		return out, 3, nil
	case len(comps) >= 4:
		out = make([]byte, img.Width*img.Height*4)
		for c := 0; c < 4; c++ {
			if err := fillJPXPlane(out, img, c, 4, c); err != nil {
				return nil, 0, err
			}
		}
		return out, 4, nil
	}
	return nil, 0, fmt.Errorf("unsupported JPX component count %d", len(comps))
}

// fillJPXPlane scatters component idx into every stride-th byte of dst,
// expanding subsampled planes by pixel replication.
func fillJPXPlane(dst []byte, img *JPXImage, idx, stride, offset int) error {
	comp := img.Components[idx]
	cw, ch := comp.Width, comp.Height
	if cw <= 0 || ch <= 0 {
		return fmt.Errorf("component %d has empty plane", idx)
	}
	if len(comp.Samples) < cw*ch {
		return fmt.Errorf("component %d plane too short", idx)
	}
	dx, dy := comp.DX, comp.DY
	if dx < 1 {
		dx = 1
	}
	if dy < 1 {
		dy = 1
	}
	for y := 0; y < img.Height; y++ {
		py := y / dy
		if py >= ch {
			py = ch - 1
		}
		for x := 0; x < img.Width; x++ {
			px := x / dx
			if px >= cw {
				px = cw - 1
			}
			v := scaleJPXSample(comp.Samples[py*cw+px], comp.Precision, comp.Signed)
			dst[(y*img.Width+x)*stride+offset] = v
		}
	}
	return nil
}

// scaleJPXSample maps a component sample of arbitrary precision onto
// 0..255 with rounding. Signed samples are shifted to unsigned first.
func scaleJPXSample(value int32, precision int, signed bool) uint8 {
	if precision <= 0 {
		return 0
	}
	if precision > 60 {
		precision = 60
	}
	if signed {
		shift := int64(1) << uint(precision-1)
		max := shift*2 - 1
		v := int64(value) + shift
		if v < 0 {
			v = 0
		}
		if v > max {
			v = max
		}
		return uint8((v*255 + max/2) / max)
	}
	limit := int64(1)<<uint(precision) - 1
	v := int64(value)
	if v < 0 {
		v = 0
	}
	if v > limit {
		v = limit
	}
	return uint8((v*255 + limit/2) / limit)
}

func yccToRGB(y, cb, cr uint8) (uint8, uint8, uint8) {
	Y := float64(y)
	Cb := float64(int(cb) - 128)
	Cr := float64(int(cr) - 128)
	r := clampByte(Y + 1.402*Cr)
	g := clampByte(Y - 0.344136*Cb - 0.714136*Cr)
	b := clampByte(Y + 1.772*Cb)
	return r, g, b
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(math.Round(v))
}
