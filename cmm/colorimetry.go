package cmm

import "math"

// Standard illuminant white points in XYZ with Y normalized to 1.
var (
	D50 = [3]float64{0.9642, 1.0, 0.8249}
	D65 = [3]float64{0.9505, 1.0, 1.0890}
)

// Bradford cone response matrix and its inverse.
var bradford = [9]float64{
	0.8951, 0.2664, -0.1614,
	-0.7502, 1.7135, 0.0367,
	0.0389, -0.0685, 1.0296,
}

var bradfordInv = [9]float64{
	0.9869929, -0.1470543, 0.1599627,
	0.4323053, 0.5183603, 0.0492912,
	-0.0085287, 0.0400428, 0.9684867,
}

// XYZ to linear sRGB for the D65 white point (IEC 61966-2-1).
var xyzToLinearSRGB = [9]float64{
	3.2406, -1.5372, -0.4986,
	-0.9689, 1.8758, 0.0415,
	0.0557, -0.2040, 1.0570,
}

func mulMatVec(m [9]float64, v [3]float64) [3]float64 {
	return [3]float64{
		m[0]*v[0] + m[1]*v[1] + m[2]*v[2],
		m[3]*v[0] + m[4]*v[1] + m[5]*v[2],
		m[6]*v[0] + m[7]*v[1] + m[8]*v[2],
	}
}

// BradfordAdapt maps an XYZ color seen under srcWhite to the equivalent
// color under dstWhite using the Bradford cone transform.
func BradfordAdapt(xyz, srcWhite, dstWhite [3]float64) [3]float64 {
	if srcWhite == dstWhite {
		return xyz
	}
	src := mulMatVec(bradford, srcWhite)
	dst := mulMatVec(bradford, dstWhite)
	cone := mulMatVec(bradford, xyz)
	for i := 0; i < 3; i++ {
		if src[i] != 0 {
			cone[i] *= dst[i] / src[i]
		}
	}
	return mulMatVec(bradfordInv, cone)
}

// SRGBEncode applies the sRGB transfer function to a linear value.
func SRGBEncode(u float64) float64 {
	if u <= 0 {
		return 0
	}
	if u <= 0.0031308 {
		u = 12.92 * u
	} else {
		u = 1.055*math.Pow(u, 1/2.4) - 0.055
	}
	if u > 1 {
		return 1
	}
	return u
}

// XYZToSRGB converts a D65-relative XYZ color to gamma-encoded sRGB in
// [0,1] per component.
func XYZToSRGB(xyz [3]float64) (r, g, b float64) {
	lin := mulMatVec(xyzToLinearSRGB, xyz)
	return SRGBEncode(lin[0]), SRGBEncode(lin[1]), SRGBEncode(lin[2])
}

// XYZToSRGB8 converts a D65-relative XYZ color to 8-bit sRGB.
func XYZToSRGB8(xyz [3]float64) (r, g, b uint8) {
	fr, fg, fb := XYZToSRGB(xyz)
	return uint8(fr*255 + 0.5), uint8(fg*255 + 0.5), uint8(fb*255 + 0.5)
}

// LabToSRGB8 converts a Lab color under the given white point to 8-bit
// sRGB, adapting to D65.
func LabToSRGB8(L, a, b float64, white [3]float64) (uint8, uint8, uint8) {
	xyz := labToXYZWhite(L, a, b, white)
	adapted := BradfordAdapt([3]float64{xyz[0], xyz[1], xyz[2]}, white, D65)
	return XYZToSRGB8(adapted)
}

// CalGrayToXYZ converts a calibrated gray sample to XYZ under its white
// point.
func CalGrayToXYZ(g, gamma float64, white [3]float64) [3]float64 {
	if gamma == 0 {
		gamma = 1
	}
	y := math.Pow(clamp01(g), gamma)
	return [3]float64{white[0] * y, white[1] * y, white[2] * y}
}

// CalRGBToXYZ converts a calibrated RGB sample to XYZ using the per
// channel gammas and the column-primary matrix from the space dictionary.
func CalRGBToXYZ(rgb [3]float64, gamma [3]float64, matrix [9]float64) [3]float64 {
	var lin [3]float64
	for i := 0; i < 3; i++ {
		g := gamma[i]
		if g == 0 {
			g = 1
		}
		lin[i] = math.Pow(clamp01(rgb[i]), g)
	}
	// /Matrix is column order: XA YA ZA XB YB ZB XC YC ZC.
	return [3]float64{
		matrix[0]*lin[0] + matrix[3]*lin[1] + matrix[6]*lin[2],
		matrix[1]*lin[0] + matrix[4]*lin[1] + matrix[7]*lin[2],
		matrix[2]*lin[0] + matrix[5]*lin[1] + matrix[8]*lin[2],
	}
}

// SRGBFromProfile builds a closure converting device samples through the
// profile's PCS, adapting to D65, into 8-bit sRGB.
func SRGBFromProfile(p *ICCProfile) (func(in []float64) (r, g, b uint8, err error), error) {
	toPCS, err := ToPCS(p)
	if err != nil {
		return nil, err
	}
	labPCS := p.PCS() == "Lab "
	white := p.WhitePoint()
	return func(in []float64) (uint8, uint8, uint8, error) {
		pcs, err := toPCS.Convert(in)
		if err != nil {
			return 0, 0, 0, err
		}
		if labPCS {
			// LUT outputs encode Lab normalized to [0,1].
			pcs = LabToXYZ([]float64{pcs[0] * 100, pcs[1]*255 - 128, pcs[2]*255 - 128})
		}
		if len(pcs) < 3 {
			return 0, 0, 0, nil
		}
		xyz := BradfordAdapt([3]float64{pcs[0], pcs[1], pcs[2]}, white, D65)
		r, g, b := XYZToSRGB8(xyz)
		return r, g, b, nil
	}, nil
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
