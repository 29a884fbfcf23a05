//go:build cgo

package tesseract

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"os/exec"
	"strings"
	"testing"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/siftdocs/pdfsift/imaging"
	"github.com/siftdocs/pdfsift/ocr"
)

// ensureTesseractAvailable checks that the tesseract binary is reachable.
func ensureTesseractAvailable(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("tesseract"); err != nil {
		t.Skip("tesseract not installed in PATH")
	}
}

func renderText(text string) *imaging.Image {
	rgba := image.NewRGBA(image.Rect(0, 0, 200, 80))
	draw.Draw(rgba, rgba.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	d := &font.Drawer{
		Dst:  rgba,
		Src:  image.Black,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(10, 50),
	}
	d.DrawString(text)

	img := &imaging.Image{Width: 200, Height: 80, RGB: make([]byte, 200*80*3)}
	for i := 0; i < 200*80; i++ {
		img.RGB[i*3+0] = rgba.Pix[i*4+0]
		img.RGB[i*3+1] = rgba.Pix[i*4+1]
		img.RGB[i*3+2] = rgba.Pix[i*4+2]
	}
	return img
}

func TestTesseractEngineRecognize(t *testing.T) {
	ensureTesseractAvailable(t)

	in, err := ocr.InputFromImage(1, "Im0", renderText("Hello PDF"), ocr.WithDPI(70))
	if err != nil {
		t.Fatalf("build input: %v", err)
	}
	res, err := NewTesseractEngine().Recognize(context.Background(), in)
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if res.InputID != in.ID {
		t.Fatalf("result id = %q, want %q", res.InputID, in.ID)
	}
	if !strings.Contains(strings.ToLower(res.PlainText), "hello") {
		t.Logf("recognized text %q did not contain target; OCR quality varies", res.PlainText)
	}
}

func TestDefaultEngineRegistered(t *testing.T) {
	if got := ocr.DefaultEngine().Name(); got != "tesseract" {
		t.Fatalf("default engine = %q, want tesseract", got)
	}
}
