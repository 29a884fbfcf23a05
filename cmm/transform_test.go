package cmm

import (
	"encoding/binary"
	"math"
	"testing"
)

// buildProfile assembles a minimal RGB matrix/TRC profile with the given
// tags appended after the header.
func buildProfile(t *testing.T, cs, pcs string, tags []struct {
	sig  string
	data []byte
}) *ICCProfile {
	t.Helper()
	size := 132 + 12*len(tags)
	for _, tag := range tags {
		size += len(tag.data)
	}
	data := make([]byte, size)
	binary.BigEndian.PutUint32(data[0:4], uint32(size))
	copy(data[16:20], cs)
	copy(data[20:24], pcs)
	copy(data[36:40], "acsp")
	binary.BigEndian.PutUint32(data[128:132], uint32(len(tags)))

	tableOff := 132
	payloadOff := uint32(132 + 12*len(tags))
	for _, tag := range tags {
		copy(data[tableOff:tableOff+4], tag.sig)
		binary.BigEndian.PutUint32(data[tableOff+4:tableOff+8], payloadOff)
		binary.BigEndian.PutUint32(data[tableOff+8:tableOff+12], uint32(len(tag.data)))
		tableOff += 12
		copy(data[payloadOff:], tag.data)
		payloadOff += uint32(len(tag.data))
	}

	p, err := NewICCProfile(data)
	if err != nil {
		t.Fatalf("NewICCProfile failed: %v", err)
	}
	return p
}

func makeXYZ(x, y, z float64) []byte {
	b := make([]byte, 20)
	copy(b[0:4], "XYZ ")
	binary.BigEndian.PutUint32(b[8:12], uint32(int32(x*65536)))
	binary.BigEndian.PutUint32(b[12:16], uint32(int32(y*65536)))
	binary.BigEndian.PutUint32(b[16:20], uint32(int32(z*65536)))
	return b
}

func makeGamma(g float64) []byte {
	b := make([]byte, 14)
	copy(b[0:4], "curv")
	binary.BigEndian.PutUint32(b[8:12], 1)
	binary.BigEndian.PutUint16(b[12:14], uint16(g*256))
	return b
}

func rgbTags(gamma float64) []struct {
	sig  string
	data []byte
} {
	return []struct {
		sig  string
		data []byte
	}{
		{"rXYZ", makeXYZ(1, 0, 0)},
		{"gXYZ", makeXYZ(0, 1, 0)},
		{"bXYZ", makeXYZ(0, 0, 1)},
		{"rTRC", makeGamma(gamma)},
		{"gTRC", makeGamma(gamma)},
		{"bTRC", makeGamma(gamma)},
	}
}

func TestMatrixTRCToPCS(t *testing.T) {
	p := buildProfile(t, "RGB ", "XYZ ", rgbTags(1.0))
	tr, err := ToPCS(p)
	if err != nil {
		t.Fatalf("ToPCS failed: %v", err)
	}
	in := []float64{0.1, 0.5, 0.9}
	out, err := tr.Convert(in)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	// Identity matrix and gamma 1.0 passes values through.
	for i := range in {
		if math.Abs(out[i]-in[i]) > 0.001 {
			t.Errorf("component %d: expected %f, got %f", i, in[i], out[i])
		}
	}
}

func TestMatrixTRCGamma(t *testing.T) {
	p := buildProfile(t, "RGB ", "XYZ ", rgbTags(2.0))
	tr, err := ToPCS(p)
	if err != nil {
		t.Fatalf("ToPCS failed: %v", err)
	}
	out, err := tr.Convert([]float64{0.5, 0.5, 0.5})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	for i, v := range out {
		if math.Abs(v-0.25) > 0.01 {
			t.Errorf("component %d: expected 0.25 after gamma 2.0, got %f", i, v)
		}
	}
}

func TestGrayTRCToPCS(t *testing.T) {
	tags := []struct {
		sig  string
		data []byte
	}{
		{"kTRC", makeGamma(1.0)},
		{"wtpt", makeXYZ(D50[0], D50[1], D50[2])},
	}
	p := buildProfile(t, "GRAY", "XYZ ", tags)
	tr, err := ToPCS(p)
	if err != nil {
		t.Fatalf("ToPCS failed: %v", err)
	}
	out, err := tr.Convert([]float64{1.0})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if math.Abs(out[i]-D50[i]) > 0.001 {
			t.Errorf("white gray should map to the white point, got %v", out)
		}
	}
}

func TestToPCSUnsupportedSpace(t *testing.T) {
	p := buildProfile(t, "CMYK", "XYZ ", nil)
	if _, err := ToPCS(p); err == nil {
		t.Error("CMYK profile without A2B0 should fail")
	}
}

func TestXYZLabRoundTrip(t *testing.T) {
	xyz := []float64{0.4, 0.5, 0.3}
	lab := XYZToLab(xyz)
	back := LabToXYZ(lab)
	for i := range xyz {
		if math.Abs(back[i]-xyz[i]) > 0.001 {
			t.Errorf("round trip component %d: %f != %f", i, back[i], xyz[i])
		}
	}
}

func TestSRGBFromProfile(t *testing.T) {
	p := buildProfile(t, "RGB ", "XYZ ", append(rgbTags(1.0), struct {
		sig  string
		data []byte
	}{"wtpt", makeXYZ(D65[0], D65[1], D65[2])}))
	conv, err := SRGBFromProfile(p)
	if err != nil {
		t.Fatalf("SRGBFromProfile failed: %v", err)
	}
	// Device white through an identity matrix lands on the profile white
	// point, which adapts onto D65 and encodes to full white.
	r, g, b, err := conv([]float64{D65[0], D65[1], D65[2]})
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}
	if r < 250 || g < 250 || b < 250 {
		t.Errorf("white should stay white, got %d %d %d", r, g, b)
	}
}
