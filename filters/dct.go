package filters

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/siftdocs/pdfsift/ir/raw"
)

// dctDecoder decodes DCTDecode (baseline and progressive JPEG) payloads
// into interleaved 8-bit samples: one channel for greyscale, three for
// YCbCr/RGB, four for CMYK (Adobe transform already undone by the
// decoder).
type dctDecoder struct{}

func NewDCTDecoder() Decoder { return dctDecoder{} }

func (dctDecoder) Name() string { return "DCTDecode" }

func (d dctDecoder) Decode(ctx context.Context, in []byte, params raw.Dictionary) ([]byte, error) {
	out, _, err := d.DecodeImage(ctx, in, params)
	return out, err
}

func (dctDecoder) DecodeImage(ctx context.Context, in []byte, params raw.Dictionary) ([]byte, *Info, error) {
	img, err := jpeg.Decode(bytes.NewReader(in))
	if err != nil {
		return nil, nil, err
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if err := validateNativeImageDims(w, h); err != nil {
		return nil, nil, err
	}

	info := &Info{Filter: "DCTDecode", Width: w, Height: h, BitsPerComponent: 8}
	switch src := img.(type) {
	case *image.Gray:
		info.Components = 1
		out := make([]byte, w*h)
		for y := 0; y < h; y++ {
			copy(out[y*w:(y+1)*w], src.Pix[y*src.Stride:y*src.Stride+w])
		}
		return out, info, nil
	case *image.CMYK:
		info.Components = 4
		out := make([]byte, w*h*4)
		for y := 0; y < h; y++ {
			copy(out[y*w*4:(y+1)*w*4], src.Pix[y*src.Stride:y*src.Stride+w*4])
		}
		return out, info, nil
	case *image.YCbCr:
		info.Components = 3
		out := make([]byte, w*h*3)
		i := 0
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := src.YCbCrAt(x, y)
				out[i], out[i+1], out[i+2] = yccToRGB(c.Y, c.Cb, c.Cr)
				i += 3
			}
		}
		return out, info, nil
	default:
		// RGBA and friends from unusual JPEG variants.
		info.Components = 3
		out := make([]byte, w*h*3)
		i := 0
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				r, g, bl, _ := img.At(x, y).RGBA()
				out[i] = byte(r >> 8)
				out[i+1] = byte(g >> 8)
				out[i+2] = byte(bl >> 8)
				i += 3
			}
		}
		return out, info, nil
	}
}

const (
	// maxNativeImageDimension caps width/height for native decoders to
	// avoid huge allocations when corrupted files lie about image sizes.
	maxNativeImageDimension = 32768
	// maxNativeImagePixels bounds the total pixel count (64MP), keeping
	// sample buffers under control.
	maxNativeImagePixels int64 = 64 * 1024 * 1024
)

func validateNativeImageDims(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("invalid image bounds %dx%d", w, h)
	}
	if w > maxNativeImageDimension || h > maxNativeImageDimension {
		return fmt.Errorf("image dimension %dx%d exceeds limit", w, h)
	}
	if int64(w)*int64(h) > maxNativeImagePixels {
		return fmt.Errorf("image pixel count %d exceeds limit", w*h)
	}
	return nil
}
