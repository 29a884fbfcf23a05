package imaging

import (
	"context"
	"errors"
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

func decode(t *testing.T, x *semantic.XObject) *Image {
	t.Helper()
	img, err := DecodeImage(context.Background(), x, testEnv(), Options{})
	if err != nil {
		t.Fatalf("DecodeImage: %v", err)
	}
	return img
}

func gray(name string) semantic.ColorSpace { return semantic.DeviceColorSpace{Name: name} }

func TestGray8(t *testing.T) {
	img := decode(t, &semantic.XObject{
		Subtype: "Image", Width: 2, Height: 1, BitsPerComponent: 8,
		ColorSpace: gray("DeviceGray"),
		Data:       []byte{0x00, 0xFF},
	})
	if img.RGB[0] != 0 || img.RGB[3] != 255 {
		t.Errorf("gray samples = %d,%d, want 0,255", img.RGB[0], img.RGB[3])
	}
	if img.Alpha != nil {
		t.Errorf("unexpected alpha plane")
	}
}

func TestDecodeArrayInvertsGray(t *testing.T) {
	img := decode(t, &semantic.XObject{
		Subtype: "Image", Width: 1, Height: 1, BitsPerComponent: 8,
		ColorSpace: gray("DeviceGray"),
		Decode:     []float64{1, 0},
		Data:       []byte{0x00},
	})
	if img.RGB[0] != 255 {
		t.Errorf("inverted sample = %d, want 255", img.RGB[0])
	}
}

func TestOneBitUnpack(t *testing.T) {
	// Row 10000001 over 8 pixels.
	img := decode(t, &semantic.XObject{
		Subtype: "Image", Width: 8, Height: 1, BitsPerComponent: 1,
		ColorSpace: gray("DeviceGray"),
		Data:       []byte{0x81},
	})
	if img.RGB[0] != 255 || img.RGB[3] != 0 || img.RGB[21] != 255 {
		t.Errorf("bit unpack wrong: %v", img.RGB)
	}
}

func TestSixteenBitSamples(t *testing.T) {
	img := decode(t, &semantic.XObject{
		Subtype: "Image", Width: 1, Height: 1, BitsPerComponent: 16,
		ColorSpace: gray("DeviceGray"),
		Data:       []byte{0x80, 0x00},
	})
	if img.RGB[0] < 127 || img.RGB[0] > 129 {
		t.Errorf("16-bit midpoint = %d, want ~128", img.RGB[0])
	}
}

func TestRGBAndCMYK(t *testing.T) {
	img := decode(t, &semantic.XObject{
		Subtype: "Image", Width: 1, Height: 1, BitsPerComponent: 8,
		ColorSpace: gray("DeviceRGB"),
		Data:       []byte{10, 20, 30},
	})
	if img.RGB[0] != 10 || img.RGB[1] != 20 || img.RGB[2] != 30 {
		t.Errorf("rgb = %v", img.RGB)
	}

	img = decode(t, &semantic.XObject{
		Subtype: "Image", Width: 1, Height: 1, BitsPerComponent: 8,
		ColorSpace: gray("DeviceCMYK"),
		Data:       []byte{0, 0, 0, 255},
	})
	if img.RGB[0] != 0 || img.RGB[1] != 0 || img.RGB[2] != 0 {
		t.Errorf("full black ink = %v, want 0,0,0", img.RGB[:3])
	}
}

func TestIndexedExpansion(t *testing.T) {
	// 1-bit indices [0,1], palette black then white.
	img := decode(t, &semantic.XObject{
		Subtype: "Image", Width: 2, Height: 1, BitsPerComponent: 1,
		ColorSpace: &semantic.IndexedColorSpace{
			Base:   gray("DeviceRGB"),
			Hival:  1,
			Lookup: []byte{0, 0, 0, 255, 255, 255},
		},
		Data: []byte{0x40}, // 01......
	})
	if img.RGB[0] != 0 || img.RGB[1] != 0 || img.RGB[2] != 0 {
		t.Errorf("index 0 = %v, want black", img.RGB[:3])
	}
	if img.RGB[3] != 255 || img.RGB[4] != 255 || img.RGB[5] != 255 {
		t.Errorf("index 1 = %v, want white", img.RGB[3:6])
	}
}

func TestIndexedClampsToHival(t *testing.T) {
	img := decode(t, &semantic.XObject{
		Subtype: "Image", Width: 1, Height: 1, BitsPerComponent: 8,
		ColorSpace: &semantic.IndexedColorSpace{
			Base:   gray("DeviceGray"),
			Hival:  1,
			Lookup: []byte{0, 200},
		},
		Data: []byte{0xFF}, // index 255, clamped to 1
	})
	if img.RGB[0] != 200 {
		t.Errorf("clamped index = %d, want 200", img.RGB[0])
	}
}

func TestSeparationFallbackInverts(t *testing.T) {
	img := decode(t, &semantic.XObject{
		Subtype: "Image", Width: 2, Height: 1, BitsPerComponent: 8,
		ColorSpace: &semantic.SeparationColorSpace{Name: "Spot"},
		Data:       []byte{0x00, 0xFF},
	})
	if img.RGB[0] != 255 {
		t.Errorf("zero tint = %d, want white", img.RGB[0])
	}
	if img.RGB[3] != 0 {
		t.Errorf("full tint = %d, want black", img.RGB[3])
	}
}

func TestImageMaskPaintsFillColor(t *testing.T) {
	x := &semantic.XObject{
		Subtype: "Image", Width: 2, Height: 1, BitsPerComponent: 1,
		ImageMask: true,
		Data:      []byte{0x40}, // 01: first paints, second masks
	}
	img, err := DecodeImage(context.Background(), x, testEnv(), Options{FillColor: [3]uint8{200, 100, 50}})
	if err != nil {
		t.Fatalf("DecodeImage: %v", err)
	}
	if img.RGB[0] != 200 || img.RGB[1] != 100 || img.RGB[2] != 50 {
		t.Errorf("stencil color = %v", img.RGB[:3])
	}
	if img.Alpha[0] != 255 || img.Alpha[1] != 0 {
		t.Errorf("stencil alpha = %v, want [255 0]", img.Alpha)
	}
}

func TestImageMaskDecodeInverts(t *testing.T) {
	x := &semantic.XObject{
		Subtype: "Image", Width: 2, Height: 1, BitsPerComponent: 1,
		ImageMask: true,
		Decode:    []float64{1, 0},
		Data:      []byte{0x40},
	}
	img, err := DecodeImage(context.Background(), x, testEnv(), Options{})
	if err != nil {
		t.Fatalf("DecodeImage: %v", err)
	}
	if img.Alpha[0] != 0 || img.Alpha[1] != 255 {
		t.Errorf("inverted stencil alpha = %v, want [0 255]", img.Alpha)
	}
}

func TestSoftMaskAlpha(t *testing.T) {
	img := decode(t, &semantic.XObject{
		Subtype: "Image", Width: 2, Height: 1, BitsPerComponent: 8,
		ColorSpace: gray("DeviceGray"),
		Data:       []byte{0x80, 0x80},
		SMask: &semantic.XObject{
			Subtype: "Image", Width: 2, Height: 1, BitsPerComponent: 8,
			Data: []byte{0x00, 0xFF},
		},
	})
	if img.Alpha[0] != 0 || img.Alpha[1] != 255 {
		t.Errorf("soft mask alpha = %v, want [0 255]", img.Alpha)
	}
}

func TestSoftMaskDecodeInverts(t *testing.T) {
	img := decode(t, &semantic.XObject{
		Subtype: "Image", Width: 1, Height: 1, BitsPerComponent: 8,
		ColorSpace: gray("DeviceGray"),
		Data:       []byte{0x00},
		SMask: &semantic.XObject{
			Subtype: "Image", Width: 1, Height: 1, BitsPerComponent: 8,
			Decode: []float64{1, 0},
			Data:   []byte{0x00},
		},
	})
	if img.Alpha[0] != 255 {
		t.Errorf("inverted soft mask alpha = %d, want 255", img.Alpha[0])
	}
}

func TestSoftMaskFailureDegrades(t *testing.T) {
	img := decode(t, &semantic.XObject{
		Subtype: "Image", Width: 1, Height: 1, BitsPerComponent: 8,
		ColorSpace: gray("DeviceGray"),
		Data:       []byte{0x42},
		SMask: &semantic.XObject{
			Subtype: "Image", Width: 100, Height: 100, BitsPerComponent: 8,
			Data: []byte{0x00}, // far too short
		},
	})
	if img.Alpha != nil {
		t.Errorf("truncated soft mask should degrade to no mask")
	}
	if img.RGB[0] != 0x42 {
		t.Errorf("base pixels must survive mask failure")
	}
}

func TestAlphaCombination(t *testing.T) {
	// Soft mask 128 with stencil mask hiding the second pixel.
	img := decode(t, &semantic.XObject{
		Subtype: "Image", Width: 2, Height: 1, BitsPerComponent: 8,
		ColorSpace: gray("DeviceGray"),
		Data:       []byte{0xFF, 0xFF},
		SMask: &semantic.XObject{
			Subtype: "Image", Width: 2, Height: 1, BitsPerComponent: 8,
			Data: []byte{0x80, 0x80},
		},
		Mask: &semantic.XObject{
			Subtype: "Image", Width: 2, Height: 1, BitsPerComponent: 1,
			Data: []byte{0x40}, // second pixel masked out
		},
	})
	if got := img.Alpha[0]; got != 128 {
		t.Errorf("combined alpha = %d, want 128", got)
	}
	if img.Alpha[1] != 0 {
		t.Errorf("masked pixel alpha = %d, want 0", img.Alpha[1])
	}
}

func TestCombineAlphaRounds(t *testing.T) {
	if got := combineAlpha(128, 128); got != 64 {
		t.Errorf("combineAlpha(128,128) = %d, want 64", got)
	}
	if got := combineAlpha(255, 37); got != 37 {
		t.Errorf("combineAlpha(255,37) = %d, want 37", got)
	}
}

func TestColorKeyMask(t *testing.T) {
	img := decode(t, &semantic.XObject{
		Subtype: "Image", Width: 3, Height: 1, BitsPerComponent: 8,
		ColorSpace: gray("DeviceRGB"),
		ColorKey:   []int{250, 255, 250, 255, 250, 255},
		Data: []byte{
			255, 255, 255, // inside every range: hidden
			255, 0, 255, // one component outside: visible
			250, 250, 250, // boundary values: hidden
		},
	})
	if img.Alpha[0] != 0 || img.Alpha[1] != 255 || img.Alpha[2] != 0 {
		t.Errorf("color key alpha = %v, want [0 255 0]", img.Alpha)
	}
}

func TestExplicitMaskDimensionMismatchFatal(t *testing.T) {
	_, err := DecodeImage(context.Background(), &semantic.XObject{
		Subtype: "Image", Width: 2, Height: 2, BitsPerComponent: 8,
		ColorSpace: gray("DeviceGray"),
		Data:       make([]byte, 4),
		Mask: &semantic.XObject{
			Subtype: "Image", Width: 4, Height: 4, BitsPerComponent: 1,
			Data: make([]byte, 4),
		},
	}, testEnv(), Options{})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("err = %v, want ErrDimensionMismatch", err)
	}
}

func TestShortDataFatal(t *testing.T) {
	_, err := DecodeImage(context.Background(), &semantic.XObject{
		Subtype: "Image", Width: 10, Height: 10, BitsPerComponent: 8,
		ColorSpace: gray("DeviceGray"),
		Data:       []byte{1, 2, 3},
	}, testEnv(), Options{})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("err = %v, want ErrDimensionMismatch", err)
	}
}

func TestBadBitDepthFatal(t *testing.T) {
	_, err := DecodeImage(context.Background(), &semantic.XObject{
		Subtype: "Image", Width: 1, Height: 1, BitsPerComponent: 3,
		ColorSpace: gray("DeviceGray"),
		Data:       []byte{0},
	}, testEnv(), Options{})
	if !errors.Is(err, ErrBitDepth) {
		t.Fatalf("err = %v, want ErrBitDepth", err)
	}
}

func TestDimensionLimit(t *testing.T) {
	_, err := DecodeImage(context.Background(), &semantic.XObject{
		Subtype: "Image", Width: 5000, Height: 1, BitsPerComponent: 8,
		ColorSpace: gray("DeviceGray"),
		Data:       make([]byte, 5000),
	}, testEnv(), Options{MaxDimension: 4096})
	if err == nil {
		t.Fatalf("expected dimension limit error")
	}
}

func TestDCTHintBypassesUnpack(t *testing.T) {
	// A DCT hint overrides the declared geometry with what the codec
	// produced: RGB samples already interleaved at 8 bits.
	img := decode(t, &semantic.XObject{
		Subtype: "Image", Width: 1, Height: 1, BitsPerComponent: 8,
		ColorSpace: gray("DeviceGray"),
		Hint:       &decoded.ImageHint{Filter: "DCTDecode", Width: 2, Height: 1, Components: 3, BitsPerComponent: 8},
		Data:       []byte{1, 2, 3, 4, 5, 6},
	})
	if img.Width != 2 {
		t.Fatalf("width = %d, want hint width 2", img.Width)
	}
	if img.RGB[3] != 4 || img.RGB[4] != 5 || img.RGB[5] != 6 {
		t.Errorf("second pixel = %v, want 4,5,6", img.RGB[3:6])
	}
}

func TestLabWhiteIsWhite(t *testing.T) {
	img := decode(t, &semantic.XObject{
		Subtype: "Image", Width: 1, Height: 1, BitsPerComponent: 8,
		ColorSpace: &semantic.LabColorSpace{
			WhitePoint: [3]float64{0.9642, 1.0, 0.8249},
			Range:      [4]float64{-100, 100, -100, 100},
		},
		Data: []byte{255, 128, 128}, // L=100, a~0, b~0
	})
	if img.RGB[0] < 250 || img.RGB[1] < 250 || img.RGB[2] < 250 {
		t.Errorf("Lab white = %v, want near white", img.RGB[:3])
	}
}
