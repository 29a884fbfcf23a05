package fonts

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
)

// Top DICT and Private DICT operators used here.
const (
	cffOpFontBBox      = 5
	cffOpCharStrings   = 17
	cffOpPrivate       = 18
	cffOpDefaultWidthX = 20
	cffOpNominalWidthX = 21
	cffOpROS           = 1230
)

// CFF is a parsed Compact Font Format program: enough structure to answer
// name, glyph count and per-glyph advance queries for bare CFF font files.
type CFF struct {
	Header   CFFHeader
	Names    []string
	TopDicts []map[int][]Operand
	Strings  []string

	charStrings   [][]byte
	defaultWidthX float64
	nominalWidthX float64
	isCID         bool
}

type CFFHeader struct {
	Major   uint8
	Minor   uint8
	HdrSize uint8
	OffSize uint8
}

type Operand struct {
	Int   int
	Float float64
	IsInt bool
}

func (o Operand) Value() float64 {
	if o.IsInt {
		return float64(o.Int)
	}
	return o.Float
}

// ParseCFF parses a bare CFF font program.
func ParseCFF(data []byte) (*CFF, error) {
	r := bytes.NewReader(data)

	var hdr CFFHeader
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return nil, err
	}
	if hdr.Major != 1 {
		return nil, fmt.Errorf("unsupported CFF version %d.%d", hdr.Major, hdr.Minor)
	}
	if _, err := r.Seek(int64(hdr.HdrSize), io.SeekStart); err != nil {
		return nil, err
	}

	names, err := readIndex(r)
	if err != nil {
		return nil, fmt.Errorf("read name index: %w", err)
	}
	nameStrings := make([]string, len(names))
	for i, b := range names {
		nameStrings[i] = string(b)
	}

	topDictData, err := readIndex(r)
	if err != nil {
		return nil, fmt.Errorf("read top dict index: %w", err)
	}
	topDicts := make([]map[int][]Operand, len(topDictData))
	for i, d := range topDictData {
		topDicts[i], err = parseDict(d)
		if err != nil {
			return nil, fmt.Errorf("parse top dict %d: %w", i, err)
		}
	}

	stringData, err := readIndex(r)
	if err != nil {
		return nil, fmt.Errorf("read string index: %w", err)
	}
	strs := make([]string, len(stringData))
	for i, b := range stringData {
		strs[i] = string(b)
	}

	cff := &CFF{
		Header:   hdr,
		Names:    nameStrings,
		TopDicts: topDicts,
		Strings:  strs,
	}
	if len(topDicts) > 0 {
		cff.loadGlyphData(data, topDicts[0])
	}
	return cff, nil
}

// loadGlyphData follows the first Top DICT's CharStrings and Private
// offsets. Failures leave the glyph queries answering defaults.
func (c *CFF) loadGlyphData(data []byte, top map[int][]Operand) {
	if _, ok := top[cffOpROS]; ok {
		// CID-keyed programs put widths behind FDArray/FDSelect; the PDF
		// side carries /W for those fonts, so skip charstring widths.
		c.isCID = true
	}
	if ops, ok := top[cffOpCharStrings]; ok && len(ops) == 1 {
		off := ops[0].Int
		if off > 0 && off < len(data) {
			r := bytes.NewReader(data)
			if _, err := r.Seek(int64(off), io.SeekStart); err == nil {
				if cs, err := readIndex(r); err == nil {
					c.charStrings = cs
				}
			}
		}
	}
	if ops, ok := top[cffOpPrivate]; ok && len(ops) == 2 {
		size, off := ops[0].Int, ops[1].Int
		if size > 0 && off >= 0 && off+size <= len(data) {
			if priv, err := parseDict(data[off : off+size]); err == nil {
				if v, ok := priv[cffOpDefaultWidthX]; ok && len(v) == 1 {
					c.defaultWidthX = v[0].Value()
				}
				if v, ok := priv[cffOpNominalWidthX]; ok && len(v) == 1 {
					c.nominalWidthX = v[0].Value()
				}
			}
		}
	}
}

// Name returns the PostScript name of the first font in the set.
func (c *CFF) Name() string {
	if len(c.Names) > 0 {
		return c.Names[0]
	}
	return ""
}

// NumGlyphs returns the charstring count, zero when unavailable.
func (c *CFF) NumGlyphs() int { return len(c.charStrings) }

// IsCID reports whether the program is CID-keyed.
func (c *CFF) IsCID() bool { return c.isCID }

// FontBBox returns the Top DICT bounding box if declared.
func (c *CFF) FontBBox() ([4]float64, bool) {
	if len(c.TopDicts) == 0 {
		return [4]float64{}, false
	}
	ops, ok := c.TopDicts[0][cffOpFontBBox]
	if !ok || len(ops) != 4 {
		return [4]float64{}, false
	}
	var bbox [4]float64
	for i, op := range ops {
		bbox[i] = op.Value()
	}
	return bbox, true
}

// GlyphWidth returns the advance width of a glyph in font units, read
// from the optional width prefix of its Type 2 charstring.
func (c *CFF) GlyphWidth(gid int) (float64, bool) {
	if c.isCID || gid < 0 || gid >= len(c.charStrings) {
		return 0, false
	}
	return charstringWidth(c.charStrings[gid], c.defaultWidthX, c.nominalWidthX), true
}

// charstringWidth reads the leading operands of a Type 2 charstring up to
// its first operator. An odd operand (relative to the operator's arity)
// is the width delta against nominalWidthX.
func charstringWidth(cs []byte, defaultW, nominalW float64) float64 {
	var first float64
	nargs := 0
	i := 0
	for i < len(cs) {
		b := cs[i]
		switch {
		case b == 28:
			if i+2 >= len(cs) {
				return defaultW
			}
			if nargs == 0 {
				first = float64(int16(uint16(cs[i+1])<<8 | uint16(cs[i+2])))
			}
			nargs++
			i += 3
		case b >= 32 && b <= 246:
			if nargs == 0 {
				first = float64(int(b) - 139)
			}
			nargs++
			i++
		case b >= 247 && b <= 250:
			if i+1 >= len(cs) {
				return defaultW
			}
			if nargs == 0 {
				first = float64((int(b)-247)*256 + int(cs[i+1]) + 108)
			}
			nargs++
			i += 2
		case b >= 251 && b <= 254:
			if i+1 >= len(cs) {
				return defaultW
			}
			if nargs == 0 {
				first = float64(-(int(b)-251)*256 - int(cs[i+1]) - 108)
			}
			nargs++
			i += 2
		case b == 255:
			if i+4 >= len(cs) {
				return defaultW
			}
			if nargs == 0 {
				first = float64(int32(binary.BigEndian.Uint32(cs[i+1:i+5]))) / 65536
			}
			nargs++
			i += 5
		default:
			hasWidth := false
			switch b {
			case 1, 3, 18, 23, 19, 20: // stems and masks take operand pairs
				hasWidth = nargs%2 == 1
			case 21: // rmoveto
				hasWidth = nargs > 2
			case 4, 22: // vmoveto, hmoveto
				hasWidth = nargs > 1
			case 14: // endchar (plus the deprecated 4-operand seac form)
				hasWidth = nargs == 1 || nargs == 5
			default:
				// Subroutine calls and escapes before the first stem or
				// moveto hide the width; fall back.
				return defaultW
			}
			if hasWidth {
				return nominalW + first
			}
			return defaultW
		}
	}
	return defaultW
}

func readIndex(r *bytes.Reader) ([][]byte, error) {
	var count uint16
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}

	offSize, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if offSize < 1 || offSize > 4 {
		return nil, fmt.Errorf("invalid index offset size %d", offSize)
	}

	offsets := make([]int, count+1)
	for i := 0; i <= int(count); i++ {
		off, err := readOffset(r, int(offSize))
		if err != nil {
			return nil, err
		}
		offsets[i] = off
	}

	totalSize := offsets[count] - 1 // offsets are 1-based from data start
	if totalSize < 0 {
		return nil, fmt.Errorf("invalid index size")
	}

	data := make([]byte, totalSize)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}

	items := make([][]byte, count)
	for i := 0; i < int(count); i++ {
		start := offsets[i] - 1
		end := offsets[i+1] - 1
		if start < 0 || end > len(data) || start > end {
			return nil, fmt.Errorf("invalid index offsets")
		}
		items[i] = data[start:end]
	}
	return items, nil
}

func readOffset(r io.Reader, size int) (int, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[4-size:]); err != nil {
		return 0, err
	}
	return int(binary.BigEndian.Uint32(buf[:])), nil
}

func parseDict(data []byte) (map[int][]Operand, error) {
	dict := make(map[int][]Operand)
	var operands []Operand

	r := bytes.NewReader(data)
	for {
		b, err := r.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		if b <= 21 {
			op := int(b)
			if b == 12 {
				b2, err := r.ReadByte()
				if err != nil {
					return nil, err
				}
				op = 1200 + int(b2)
			}
			dict[op] = operands
			operands = nil
		} else if b == 28 || b == 29 || (b >= 32 && b <= 254) {
			r.UnreadByte()
			val, err := readInteger(r)
			if err != nil {
				return nil, err
			}
			operands = append(operands, Operand{Int: val, IsInt: true})
		} else if b == 30 {
			val, err := readReal(r)
			if err != nil {
				return nil, err
			}
			operands = append(operands, Operand{Float: val, IsInt: false})
		}
	}
	return dict, nil
}

func readReal(r *bytes.Reader) (float64, error) {
	var s string
	done := false
	for !done {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		nibbles := []byte{b >> 4, b & 0x0f}
		for _, n := range nibbles {
			switch n {
			case 0xa:
				s += "."
			case 0xb:
				s += "E"
			case 0xc:
				s += "E-"
			case 0xd:
				// reserved
			case 0xe:
				s += "-"
			case 0xf:
				done = true
			default:
				s += strconv.Itoa(int(n))
			}
			if done {
				break
			}
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return f, nil
}

func readInteger(r *bytes.Reader) (int, error) {
	b0, err := r.ReadByte()
	if err != nil {
		return 0, err
	}

	switch {
	case b0 >= 32 && b0 <= 246:
		return int(b0) - 139, nil
	case b0 >= 247 && b0 <= 250:
		b1, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		return (int(b0)-247)*256 + int(b1) + 108, nil
	case b0 >= 251 && b0 <= 254:
		b1, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		return -(int(b0)-251)*256 - int(b1) - 108, nil
	case b0 == 28:
		var val int16
		if err := binary.Read(r, binary.BigEndian, &val); err != nil {
			return 0, err
		}
		return int(val), nil
	case b0 == 29:
		var val int32
		if err := binary.Read(r, binary.BigEndian, &val); err != nil {
			return 0, err
		}
		return int(val), nil
	}
	return 0, fmt.Errorf("invalid integer prefix: %d", b0)
}
