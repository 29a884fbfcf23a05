package cmm

import (
	"math"
	"testing"
)

func TestBradfordAdaptPreservesWhite(t *testing.T) {
	out := BradfordAdapt(D50, D50, D65)
	for i := 0; i < 3; i++ {
		if math.Abs(out[i]-D65[i]) > 0.0001 {
			t.Errorf("component %d: expected %f, got %f", i, D65[i], out[i])
		}
	}
}

func TestBradfordAdaptIdentityWhenSameWhite(t *testing.T) {
	in := [3]float64{0.2, 0.3, 0.4}
	if out := BradfordAdapt(in, D65, D65); out != in {
		t.Errorf("same-white adaptation changed %v to %v", in, out)
	}
}

func TestXYZToSRGBEndpoints(t *testing.T) {
	r, g, b := XYZToSRGB8(D65)
	if r < 254 || g < 254 || b < 254 {
		t.Errorf("D65 white should encode near 255, got %d %d %d", r, g, b)
	}
	r, g, b = XYZToSRGB8([3]float64{0, 0, 0})
	if r != 0 || g != 0 || b != 0 {
		t.Errorf("black should encode to 0, got %d %d %d", r, g, b)
	}
}

func TestSRGBEncodeLinearSegment(t *testing.T) {
	if got := SRGBEncode(0.001); math.Abs(got-12.92*0.001) > 1e-9 {
		t.Errorf("linear segment: got %f", got)
	}
	if got := SRGBEncode(2.0); got != 1 {
		t.Errorf("overshoot should clamp to 1, got %f", got)
	}
}

func TestCalGrayToXYZ(t *testing.T) {
	xyz := CalGrayToXYZ(1.0, 1.0, D65)
	for i := 0; i < 3; i++ {
		if math.Abs(xyz[i]-D65[i]) > 1e-9 {
			t.Errorf("full gray should hit the white point, got %v", xyz)
		}
	}
	xyz = CalGrayToXYZ(0.5, 2.2, D65)
	want := math.Pow(0.5, 2.2)
	if math.Abs(xyz[1]-want*D65[1]) > 1e-9 {
		t.Errorf("gamma not applied: got Y=%f want %f", xyz[1], want)
	}
}

func TestCalRGBToXYZIdentity(t *testing.T) {
	matrix := [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}
	xyz := CalRGBToXYZ([3]float64{0.25, 0.5, 0.75}, [3]float64{1, 1, 1}, matrix)
	want := [3]float64{0.25, 0.5, 0.75}
	for i := 0; i < 3; i++ {
		if math.Abs(xyz[i]-want[i]) > 1e-9 {
			t.Errorf("component %d: got %f want %f", i, xyz[i], want[i])
		}
	}
}

func TestLabToSRGB8White(t *testing.T) {
	r, g, b := LabToSRGB8(100, 0, 0, D50)
	if r < 250 || g < 250 || b < 250 {
		t.Errorf("Lab white should map to sRGB white, got %d %d %d", r, g, b)
	}
}

func TestInterpCLUTMultiMatches3D(t *testing.T) {
	// 2x2x2 grid, single output channel, value = x*10 + y*20 + z*40.
	table := make([]float64, 8)
	for x := 0; x < 2; x++ {
		for y := 0; y < 2; y++ {
			for z := 0; z < 2; z++ {
				table[x*4+y*2+z] = float64(x*10 + y*20 + z*40)
			}
		}
	}
	for _, in := range [][]float64{{0.3, 0.6, 0.9}, {0, 0, 0}, {1, 1, 1}, {0.5, 0.5, 0.5}} {
		a := interpCLUT3D(in, table, 1, 2)
		b := interpCLUTMulti(in, table, 3, 1, 2)
		if math.Abs(a[0]-b[0]) > 1e-9 {
			t.Errorf("input %v: trilinear %f != multilinear %f", in, a[0], b[0])
		}
	}
}
