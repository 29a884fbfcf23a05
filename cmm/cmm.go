// Package cmm evaluates embedded ICC profiles and calibrated color
// spaces far enough to bring image samples into sRGB: TRC curves,
// mft1/mft2 LUT pipelines, Lab/CalGray/CalRGB to XYZ, Bradford chromatic
// adaptation and the sRGB encoding. It is a one-way engine — device
// samples in, display color out — not a general CMM.
package cmm

// Transform converts a color value from one space to another.
type Transform interface {
	Convert(in []float64) ([]float64, error)
}
