package fonts

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// type1Metrics is what the cleartext segment of a Type 1 program yields.
// Type 1 files carry no per-glyph advance table (those live in AFM files),
// so only name, angle and vertical extents come out.
type type1Metrics struct {
	FontName    string
	ItalicAngle float64
	Ascent      float64
	Descent     float64
	CapHeight   float64
	FontBBox    [4]float64
}

// parseType1 reads a Type 1 program in PFB or raw PostScript form and
// extracts metrics from its cleartext segment.
func parseType1(data []byte) (*type1Metrics, error) {
	ascii := data
	if len(data) >= 2 && data[0] == 0x80 {
		l1, _, _, err := parsePFB(data)
		if err != nil {
			return nil, fmt.Errorf("parse pfb: %w", err)
		}
		if 6+l1 > len(data) {
			return nil, fmt.Errorf("pfb segment length out of range")
		}
		ascii = data[6 : 6+l1]
	} else if idx := bytes.Index(data, []byte("eexec")); idx > 0 {
		ascii = data[:idx]
	}
	return parseType1Metrics(ascii)
}

// parsePFB walks the segment headers of a PFB container and returns the
// three segment lengths.
func parsePFB(data []byte) (int, int, int, error) {
	r := bytes.NewReader(data)
	l1, l2, l3 := 0, 0, 0

	// Segment 1: ASCII.
	if err := checkSegmentHeader(r, 1); err != nil {
		return 0, 0, 0, err
	}
	len1, err := readSegmentLength(r)
	if err != nil {
		return 0, 0, 0, err
	}
	l1 = int(len1)
	if _, err := r.Seek(int64(l1), io.SeekCurrent); err != nil {
		return 0, 0, 0, err
	}

	// Segment 2: binary (eexec-encrypted).
	if err := checkSegmentHeader(r, 2); err != nil {
		return 0, 0, 0, err
	}
	len2, err := readSegmentLength(r)
	if err != nil {
		return 0, 0, 0, err
	}
	l2 = int(len2)
	if _, err := r.Seek(int64(l2), io.SeekCurrent); err != nil {
		return 0, 0, 0, err
	}

	// Segment 3: ASCII trailer, or straight to EOF.
	if err := checkSegmentHeader(r, 1); err != nil {
		return l1, l2, 0, nil
	}
	len3, err := readSegmentLength(r)
	if err != nil {
		return 0, 0, 0, err
	}
	l3 = int(len3)

	return l1, l2, l3, nil
}

func checkSegmentHeader(r *bytes.Reader, expectedType byte) error {
	b, err := r.ReadByte()
	if err != nil {
		return err
	}
	if b != 0x80 {
		return fmt.Errorf("invalid pfb header byte: %x", b)
	}
	t, err := r.ReadByte()
	if err != nil {
		return err
	}
	if t != expectedType {
		return fmt.Errorf("expected pfb segment type %d, got %d", expectedType, t)
	}
	return nil
}

func readSegmentLength(r *bytes.Reader) (uint32, error) {
	var l uint32
	if err := binary.Read(r, binary.LittleEndian, &l); err != nil {
		return 0, err
	}
	return l, nil
}

func parseType1Metrics(data []byte) (*type1Metrics, error) {
	m := &type1Metrics{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "/FontName") {
			parts := strings.Fields(line)
			if len(parts) >= 2 {
				m.FontName = strings.TrimPrefix(parts[1], "/")
			}
		} else if strings.HasPrefix(line, "/ItalicAngle") {
			parts := strings.Fields(line)
			if len(parts) >= 2 {
				m.ItalicAngle, _ = strconv.ParseFloat(parts[1], 64)
			}
		} else if strings.HasPrefix(line, "/FontBBox") {
			// /FontBBox { -100 -200 1000 900 } readonly def
			start := strings.Index(line, "{")
			end := strings.Index(line, "}")
			if start != -1 && end != -1 && end > start {
				nums := strings.Fields(line[start+1 : end])
				if len(nums) >= 4 {
					m.FontBBox[0], _ = strconv.ParseFloat(nums[0], 64)
					m.FontBBox[1], _ = strconv.ParseFloat(nums[1], 64)
					m.FontBBox[2], _ = strconv.ParseFloat(nums[2], 64)
					m.FontBBox[3], _ = strconv.ParseFloat(nums[3], 64)
				}
			}
		}
	}

	// Ascent, descent and cap height are AFM territory; approximate from
	// the bounding box when the program does not state them.
	if m.Ascent == 0 {
		m.Ascent = m.FontBBox[3]
	}
	if m.Descent == 0 {
		m.Descent = m.FontBBox[1]
	}
	if m.CapHeight == 0 {
		m.CapHeight = m.Ascent
	}

	return m, nil
}
