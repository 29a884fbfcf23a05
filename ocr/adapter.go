package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/siftdocs/pdfsift/imaging"
)

// InputOption mutates an OCR input generated from a decoded page image.
type InputOption func(*Input)

// WithLanguages sets language hints on the OCR input.
func WithLanguages(langs ...string) InputOption {
	return func(in *Input) { in.Languages = append([]string(nil), langs...) }
}

// WithRegion sets the recognition region on the OCR input.
func WithRegion(region Region) InputOption {
	return func(in *Input) {
		if region.IsEmpty() {
			in.Region = nil
			return
		}
		in.Region = &region
	}
}

// WithDPI overrides the DPI value on the OCR input.
func WithDPI(dpi int) InputOption {
	return func(in *Input) { in.DPI = dpi }
}

// WithMetadata sets provider-specific metadata for the input.
func WithMetadata(metadata map[string]string) InputOption {
	return func(in *Input) {
		if len(metadata) == 0 {
			in.Metadata = nil
			return
		}
		in.Metadata = make(map[string]string, len(metadata))
		for k, v := range metadata {
			in.Metadata[k] = v
		}
	}
}

// InputFromImage converts a decoded page image into an OCR input using PNG
// encoding. The generated ID is stable for the resource name on a page to
// simplify correlation with downstream results. page is 1-based.
func InputFromImage(page int, name string, img *imaging.Image, opts ...InputOption) (Input, error) {
	data, err := encodePNG(img)
	if err != nil {
		return Input{}, fmt.Errorf("encode image %s: %w", name, err)
	}
	in := Input{
		ID:        fmt.Sprintf("page-%d-%s", page, name),
		Image:     data,
		Format:    ImageFormatPNG,
		PageIndex: page - 1,
	}
	for _, opt := range opts {
		opt(&in)
	}
	return in, nil
}

func encodePNG(img *imaging.Image) ([]byte, error) {
	if img == nil || img.Width <= 0 || img.Height <= 0 {
		return nil, fmt.Errorf("empty image")
	}
	if len(img.RGB) < img.Width*img.Height*3 {
		return nil, fmt.Errorf("truncated pixel data")
	}
	out := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	n := img.Width * img.Height
	for i := 0; i < n; i++ {
		out.Pix[i*4+0] = img.RGB[i*3+0]
		out.Pix[i*4+1] = img.RGB[i*3+1]
		out.Pix[i*4+2] = img.RGB[i*3+2]
		if img.Alpha != nil && i < len(img.Alpha) {
			out.Pix[i*4+3] = img.Alpha[i]
		} else {
			out.Pix[i*4+3] = 255
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
