package cmm

import (
	"errors"
	"fmt"
	"math"
)

// ToPCS builds the device-to-PCS transform for a profile: the A2B0 LUT
// when present, a matrix/TRC pipeline for RGB profiles, a kTRC scale for
// gray profiles.
func ToPCS(p *ICCProfile) (Transform, error) {
	if lut, err := p.ReadLUTTag("A2B0"); err == nil {
		return lut, nil
	}
	switch p.ColorSpace() {
	case "RGB ":
		return newMatrixTRC(p)
	case "GRAY":
		return newGrayTRC(p)
	}
	return nil, fmt.Errorf("icc: no device-to-PCS pipeline for %q", p.ColorSpace())
}

type matrixTRCTransform struct {
	curves [3]*Curve
	matrix [9]float64 // column-primary XYZ endpoints
}

func newMatrixTRC(p *ICCProfile) (*matrixTRCTransform, error) {
	rXYZ, err := p.ReadXYZTag("rXYZ")
	if err != nil {
		return nil, err
	}
	gXYZ, err := p.ReadXYZTag("gXYZ")
	if err != nil {
		return nil, err
	}
	bXYZ, err := p.ReadXYZTag("bXYZ")
	if err != nil {
		return nil, err
	}
	t := &matrixTRCTransform{
		matrix: [9]float64{
			rXYZ[0], gXYZ[0], bXYZ[0],
			rXYZ[1], gXYZ[1], bXYZ[1],
			rXYZ[2], gXYZ[2], bXYZ[2],
		},
	}
	for i, sig := range []string{"rTRC", "gTRC", "bTRC"} {
		c, err := p.ReadCurveTag(sig)
		if err != nil {
			return nil, err
		}
		t.curves[i] = c
	}
	return t, nil
}

func (t *matrixTRCTransform) Convert(in []float64) ([]float64, error) {
	if len(in) < 3 {
		return nil, errors.New("icc: matrix/TRC input too short")
	}
	r := t.curves[0].Eval(in[0])
	g := t.curves[1].Eval(in[1])
	b := t.curves[2].Eval(in[2])
	return []float64{
		t.matrix[0]*r + t.matrix[1]*g + t.matrix[2]*b,
		t.matrix[3]*r + t.matrix[4]*g + t.matrix[5]*b,
		t.matrix[6]*r + t.matrix[7]*g + t.matrix[8]*b,
	}, nil
}

type grayTRCTransform struct {
	curve *Curve
	white [3]float64
}

func newGrayTRC(p *ICCProfile) (*grayTRCTransform, error) {
	c, err := p.ReadCurveTag("kTRC")
	if err != nil {
		return nil, err
	}
	return &grayTRCTransform{curve: c, white: p.WhitePoint()}, nil
}

func (t *grayTRCTransform) Convert(in []float64) ([]float64, error) {
	if len(in) < 1 {
		return nil, errors.New("icc: gray input empty")
	}
	y := t.curve.Eval(in[0])
	return []float64{t.white[0] * y, t.white[1] * y, t.white[2] * y}, nil
}

// XYZToLab converts PCS XYZ to PCS Lab relative to the D50 white point.
func XYZToLab(xyz []float64) []float64 {
	if len(xyz) < 3 {
		return xyz
	}
	f := func(t float64) float64 {
		if t > 0.008856 {
			return math.Cbrt(t)
		}
		return 7.787*t + 16.0/116.0
	}
	fx := f(xyz[0] / D50[0])
	fy := f(xyz[1] / D50[1])
	fz := f(xyz[2] / D50[2])
	return []float64{116.0*fy - 16.0, 500.0 * (fx - fy), 200.0 * (fy - fz)}
}

// LabToXYZ converts PCS Lab to PCS XYZ relative to the D50 white point.
func LabToXYZ(lab []float64) []float64 {
	if len(lab) < 3 {
		return lab
	}
	return labToXYZWhite(lab[0], lab[1], lab[2], D50)
}

func labToXYZWhite(L, a, b float64, white [3]float64) []float64 {
	fy := (L + 16.0) / 116.0
	fx := a/500.0 + fy
	fz := fy - b/200.0
	fInv := func(t float64) float64 {
		if t > 6.0/29.0 {
			return t * t * t
		}
		return (t - 16.0/116.0) / 7.787
	}
	return []float64{white[0] * fInv(fx), white[1] * fInv(fy), white[2] * fInv(fz)}
}
