package fonts

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"unicode/utf16"

	"github.com/siftdocs/pdfsift/scanner"
	"github.com/siftdocs/pdfsift/security"
)

// CMap holds the mappings extracted from an embedded CMap stream: code
// segmentation ranges, code→CID assignments for composite fonts, and
// code→Unicode assignments for ToUnicode streams. A single parser covers
// both uses; sections that do not apply are simply absent.
type CMap struct {
	codespaces []codespace
	bfSingles  map[uint32]string
	bfSpans    []bfSpan
	cidSingles map[uint32]uint32
	cidSpans   []cidSpan
	wmode      int
	wmodeSet   bool
}

type codespace struct {
	n      int
	lo, hi uint32
}

type bfSpan struct {
	lo, hi uint32
	dst    []uint16   // UTF-16 units of the low mapping; last unit increments
	list   [][]uint16 // array-form destinations, indexed by offset
}

type cidSpan struct {
	lo, hi, cid uint32
}

// cmapOperand is one collected value inside a begin...end section.
type cmapOperand struct {
	str   []byte
	name  string
	num   int64
	isNum bool
	list  [][]byte
}

// Caps hostile CMaps: no real font needs more sections than this.
const maxCMapOperands = 1 << 16

// parseCMap tokenizes CMap stream content. Unknown PostScript framing
// (findresource, dict begin, defineresource) passes through untouched; only
// the mapping sections and /WMode are interpreted.
func parseCMap(data []byte) (*CMap, error) {
	limits := security.DefaultLimits()
	sc := scanner.New(bytes.NewReader(data), scanner.Config{
		MaxStringLength: limits.MaxStringLength,
		MaxArrayDepth:   limits.MaxIndirectDepth,
		MaxDictDepth:    limits.MaxIndirectDepth,
	})

	cm := &CMap{
		bfSingles:  make(map[uint32]string),
		cidSingles: make(map[uint32]uint32),
	}
	var (
		ops      []cmapOperand
		section  string
		lastName string
		inArray  bool
		arr      [][]byte
	)
	push := func(op cmapOperand) {
		if section != "" && len(ops) < maxCMapOperands {
			ops = append(ops, op)
		}
	}

	for {
		tok, err := sc.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		switch tok.Type {
		case scanner.TokenString:
			if inArray {
				arr = append(arr, tok.Bytes)
				continue
			}
			push(cmapOperand{str: tok.Bytes})
		case scanner.TokenName:
			lastName = tok.Str
			if !inArray {
				push(cmapOperand{name: tok.Str})
			}
		case scanner.TokenNumber:
			if section == "" {
				if lastName == "WMode" {
					cm.wmode = int(tok.Int)
					cm.wmodeSet = true
				}
				continue
			}
			if !inArray {
				push(cmapOperand{num: tok.Int, isNum: true})
			}
		case scanner.TokenArray:
			if section != "" {
				inArray = true
				arr = nil
			}
		case scanner.TokenKeyword:
			switch tok.Str {
			case "]":
				if inArray {
					inArray = false
					push(cmapOperand{list: arr})
				}
			case "begincodespacerange", "beginbfchar", "beginbfrange",
				"begincidchar", "begincidrange":
				section = strings.TrimPrefix(tok.Str, "begin")
				ops = ops[:0]
			case "endcodespacerange":
				cm.addCodespaces(ops)
				section, ops = "", nil
			case "endbfchar":
				cm.addBFChars(ops)
				section, ops = "", nil
			case "endbfrange":
				cm.addBFRanges(ops)
				section, ops = "", nil
			case "endcidchar":
				cm.addCIDChars(ops)
				section, ops = "", nil
			case "endcidrange":
				cm.addCIDRanges(ops)
				section, ops = "", nil
			case "usecmap":
				if !cm.wmodeSet && strings.HasSuffix(lastName, "-V") {
					cm.wmode = 1
				}
			}
		}
	}
	return cm, nil
}

func (c *CMap) addCodespaces(ops []cmapOperand) {
	for i := 0; i+1 < len(ops); i += 2 {
		lo, hi := ops[i], ops[i+1]
		if lo.str == nil || hi.str == nil {
			return
		}
		n := len(lo.str)
		if n < 1 || n > 4 {
			continue
		}
		c.codespaces = append(c.codespaces, codespace{
			n:  n,
			lo: beUint(lo.str),
			hi: beUint(hi.str),
		})
	}
}

func (c *CMap) addBFChars(ops []cmapOperand) {
	for i := 0; i+1 < len(ops); i += 2 {
		src, dst := ops[i], ops[i+1]
		if src.str == nil {
			return
		}
		code := beUint(src.str)
		switch {
		case dst.str != nil:
			c.bfSingles[code] = string(utf16.Decode(utf16Units(dst.str)))
		case dst.name != "":
			if r, ok := runeForGlyphName(dst.name); ok {
				c.bfSingles[code] = string(r)
			}
		}
	}
}

func (c *CMap) addBFRanges(ops []cmapOperand) {
	for i := 0; i+2 < len(ops); i += 3 {
		lo, hi, dst := ops[i], ops[i+1], ops[i+2]
		if lo.str == nil || hi.str == nil {
			return
		}
		span := bfSpan{lo: beUint(lo.str), hi: beUint(hi.str)}
		if span.hi < span.lo {
			continue
		}
		switch {
		case dst.str != nil:
			span.dst = utf16Units(dst.str)
		case dst.list != nil:
			span.list = make([][]uint16, len(dst.list))
			for j, item := range dst.list {
				span.list[j] = utf16Units(item)
			}
		default:
			continue
		}
		c.bfSpans = append(c.bfSpans, span)
	}
}

func (c *CMap) addCIDChars(ops []cmapOperand) {
	for i := 0; i+1 < len(ops); i += 2 {
		src, cid := ops[i], ops[i+1]
		if src.str == nil || !cid.isNum {
			return
		}
		c.cidSingles[beUint(src.str)] = uint32(cid.num)
	}
}

func (c *CMap) addCIDRanges(ops []cmapOperand) {
	for i := 0; i+2 < len(ops); i += 3 {
		lo, hi, cid := ops[i], ops[i+1], ops[i+2]
		if lo.str == nil || hi.str == nil || !cid.isNum {
			return
		}
		span := cidSpan{lo: beUint(lo.str), hi: beUint(hi.str), cid: uint32(cid.num)}
		if span.hi < span.lo {
			continue
		}
		c.cidSpans = append(c.cidSpans, span)
	}
}

// HasCodespaces reports whether the CMap declared its own code segmentation.
func (c *CMap) HasCodespaces() bool { return len(c.codespaces) > 0 }

// WMode returns the writing mode: 0 horizontal, 1 vertical.
func (c *CMap) WMode() int { return c.wmode }

// CodeLen returns how many bytes the next code occupies, matching the
// prefix against declared codespaces shortest-first. With no match the
// shortest declared codespace length is used; with no codespaces at all it
// returns 0 so the caller's fixed width applies.
func (c *CMap) CodeLen(b []byte) int {
	if len(c.codespaces) == 0 || len(b) == 0 {
		return 0
	}
	shortest := 5
	for _, cs := range c.codespaces {
		if cs.n < shortest {
			shortest = cs.n
		}
	}
	for n := 1; n <= 4 && n <= len(b); n++ {
		var code uint32
		for j := 0; j < n; j++ {
			code = code<<8 | uint32(b[j])
		}
		for _, cs := range c.codespaces {
			if cs.n == n && code >= cs.lo && code <= cs.hi {
				return n
			}
		}
	}
	if shortest > len(b) {
		return len(b)
	}
	return shortest
}

// CID maps a code to its CID. Later definitions shadow earlier ones.
func (c *CMap) CID(code uint32) (uint32, bool) {
	if cid, ok := c.cidSingles[code]; ok {
		return cid, true
	}
	for i := len(c.cidSpans) - 1; i >= 0; i-- {
		s := c.cidSpans[i]
		if code >= s.lo && code <= s.hi {
			return s.cid + (code - s.lo), true
		}
	}
	return 0, false
}

// Lookup maps a code to its Unicode text. Later definitions shadow earlier
// ones.
func (c *CMap) Lookup(code uint32) (string, bool) {
	if s, ok := c.bfSingles[code]; ok {
		return s, true
	}
	for i := len(c.bfSpans) - 1; i >= 0; i-- {
		s := c.bfSpans[i]
		if code < s.lo || code > s.hi {
			continue
		}
		off := code - s.lo
		if s.list != nil {
			if int(off) < len(s.list) {
				return string(utf16.Decode(s.list[off])), true
			}
			return "", false
		}
		if len(s.dst) == 0 {
			return "", false
		}
		units := make([]uint16, len(s.dst))
		copy(units, s.dst)
		units[len(units)-1] += uint16(off)
		return string(utf16.Decode(units)), true
	}
	return "", false
}

func beUint(b []byte) uint32 {
	var v uint32
	for _, c := range b {
		v = v<<8 | uint32(c)
	}
	return v
}

// utf16Units interprets destination bytes as UTF-16BE. Odd-length strings
// (seen in the wild for Latin text) fall back to one unit per byte.
func utf16Units(b []byte) []uint16 {
	if len(b)%2 != 0 {
		units := make([]uint16, len(b))
		for i, c := range b {
			units[i] = uint16(c)
		}
		return units
	}
	units := make([]uint16, len(b)/2)
	for i := 0; i < len(units); i++ {
		units[i] = uint16(b[2*i])<<8 | uint16(b[2*i+1])
	}
	return units
}
