package cmm

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ICCProfile is a parsed ICC profile: the header fields the pipeline
// dispatches on plus the tag table for lazy tag reads.
type ICCProfile struct {
	data []byte
	tags map[string]tagEntry
}

type tagEntry struct {
	offset uint32
	size   uint32
}

// NewICCProfile parses the profile header and tag table. Tag payloads are
// validated when read.
func NewICCProfile(data []byte) (*ICCProfile, error) {
	if len(data) < 132 {
		return nil, errors.New("icc: profile too short")
	}
	if string(data[36:40]) != "acsp" {
		return nil, errors.New("icc: missing acsp signature")
	}
	p := &ICCProfile{data: data, tags: make(map[string]tagEntry)}
	count := binary.BigEndian.Uint32(data[128:132])
	// 12 bytes per tag table entry.
	if count > uint32(len(data)-132)/12 {
		return nil, fmt.Errorf("icc: tag count %d exceeds profile size", count)
	}
	off := 132
	for i := uint32(0); i < count; i++ {
		sig := string(data[off : off+4])
		entry := tagEntry{
			offset: binary.BigEndian.Uint32(data[off+4 : off+8]),
			size:   binary.BigEndian.Uint32(data[off+8 : off+12]),
		}
		if int64(entry.offset)+int64(entry.size) <= int64(len(data)) {
			p.tags[sig] = entry
		}
		off += 12
	}
	return p, nil
}

// Class returns the profile class signature, e.g. "mntr" or "prtr".
func (p *ICCProfile) Class() string { return string(p.data[12:16]) }

// ColorSpace returns the device color space signature, e.g. "RGB " or
// "CMYK".
func (p *ICCProfile) ColorSpace() string { return string(p.data[16:20]) }

// PCS returns the profile connection space signature, "XYZ " or "Lab ".
func (p *ICCProfile) PCS() string { return string(p.data[20:24]) }

// Data returns the raw profile bytes.
func (p *ICCProfile) Data() []byte { return p.data }

// Channels returns the component count of the device color space, or 0
// when the signature is not recognized.
func (p *ICCProfile) Channels() int {
	switch p.ColorSpace() {
	case "GRAY":
		return 1
	case "RGB ", "Lab ", "XYZ ", "YCbr":
		return 3
	case "CMYK":
		return 4
	default:
		return 0
	}
}

// GetTag returns the payload of a tag table entry.
func (p *ICCProfile) GetTag(sig string) ([]byte, bool) {
	e, ok := p.tags[sig]
	if !ok {
		return nil, false
	}
	return p.data[e.offset : e.offset+e.size], true
}

// WhitePoint returns the media white point from the wtpt tag, falling
// back to D50 when absent.
func (p *ICCProfile) WhitePoint() [3]float64 {
	if xyz, err := p.ReadXYZTag("wtpt"); err == nil && xyz[1] > 0 {
		return xyz
	}
	return D50
}

// ReadXYZTag reads an XYZType tag as three float components.
func (p *ICCProfile) ReadXYZTag(sig string) ([3]float64, error) {
	data, ok := p.GetTag(sig)
	if !ok {
		return [3]float64{}, fmt.Errorf("icc: tag %q not found", sig)
	}
	if len(data) < 20 || string(data[0:4]) != "XYZ " {
		return [3]float64{}, fmt.Errorf("icc: tag %q is not XYZType", sig)
	}
	return [3]float64{
		s15Fixed16ToFloat(binary.BigEndian.Uint32(data[8:12])),
		s15Fixed16ToFloat(binary.BigEndian.Uint32(data[12:16])),
		s15Fixed16ToFloat(binary.BigEndian.Uint32(data[16:20])),
	}, nil
}

// ReadCurveTag reads a curv or para tag.
func (p *ICCProfile) ReadCurveTag(sig string) (*Curve, error) {
	data, ok := p.GetTag(sig)
	if !ok {
		return nil, fmt.Errorf("icc: tag %q not found", sig)
	}
	return parseCurve(data)
}

func s15Fixed16ToFloat(v uint32) float64 {
	return float64(int32(v)) / 65536.0
}
