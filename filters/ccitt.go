package filters

import (
	"context"
	"errors"
	"fmt"

	"github.com/siftdocs/pdfsift/ir/raw"
)

// ccittFaxDecoder decodes CCITTFaxDecode streams: ITU-T T.4 one- and
// two-dimensional coding (K = 0 and K > 0) and T.6 (K < 0). Output is
// packed 1-bit rows; 0 means black unless BlackIs1 is set.
type ccittFaxDecoder struct{}

func NewCCITTFaxDecoder() Decoder { return ccittFaxDecoder{} }

func (ccittFaxDecoder) Name() string { return "CCITTFaxDecode" }

func (d ccittFaxDecoder) Decode(ctx context.Context, in []byte, params raw.Dictionary) ([]byte, error) {
	out, _, err := d.DecodeImage(ctx, in, params)
	return out, err
}

func (ccittFaxDecoder) DecodeImage(ctx context.Context, in []byte, params raw.Dictionary) ([]byte, *Info, error) {
	g := &ccittState{
		k:         paramInt(params, "K", 0),
		columns:   paramInt(params, "Columns", 1728),
		rows:      paramInt(params, "Rows", 0),
		blackIs1:  paramBool(params, "BlackIs1", false),
		byteAlign: paramBool(params, "EncodedByteAlign", false),
		br:        &bitReader{data: in},
	}
	if g.columns < 1 || g.columns > maxNativeImageDimension {
		return nil, nil, fmt.Errorf("invalid Columns %d", g.columns)
	}
	if g.rows < 0 || g.rows > maxNativeImageDimension {
		return nil, nil, fmt.Errorf("invalid Rows %d", g.rows)
	}

	var decoded [][]bool
	var err error
	switch {
	case g.k < 0:
		decoded, err = g.decodeGroup4(ctx)
	case g.k == 0:
		decoded, err = g.decodeGroup3OneDim(ctx)
	default:
		decoded, err = g.decodeGroup3Mixed(ctx)
	}
	if err != nil {
		return nil, nil, err
	}
	if len(decoded) == 0 {
		return nil, nil, errors.New("no rows decoded")
	}
	if g.rows > 0 && len(decoded) < g.rows {
		return nil, nil, fmt.Errorf("truncated data: %d of %d rows", len(decoded), g.rows)
	}

	out := g.pack(decoded)
	info := &Info{
		Filter:           "CCITTFaxDecode",
		Width:            g.columns,
		Height:           len(decoded),
		Components:       1,
		BitsPerComponent: 1,
	}
	return out, info, nil
}

type ccittState struct {
	k          int
	columns    int
	rows       int
	blackIs1  bool
	byteAlign bool
	br        *bitReader
}

func (g *ccittState) rowDone(n int) bool {
	if g.rows > 0 && n >= g.rows {
		return true
	}
	return int64(n)*int64(g.columns) >= maxNativeImagePixels
}

func (g *ccittState) decodeGroup4(ctx context.Context) ([][]bool, error) {
	var rows [][]bool
	var ref []bool // nil means the imaginary all-white row
	for !g.rowDone(len(rows)) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if g.byteAlign {
			g.br.alignByte()
		}
		if g.br.exhausted() {
			break
		}
		if g.br.tryEOL() { // first half of EOFB
			break
		}
		row, err := g.decodeRow2D(ref)
		if err != nil {
			if g.rows == 0 && len(rows) > 0 {
				break // trailing fill after the last coded row
			}
			return nil, fmt.Errorf("row %d: %w", len(rows), err)
		}
		rows = append(rows, row)
		ref = row
	}
	return rows, nil
}

func (g *ccittState) decodeGroup3OneDim(ctx context.Context) ([][]bool, error) {
	var rows [][]bool
	for !g.rowDone(len(rows)) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if g.byteAlign {
			g.br.alignByte()
		}
		// EOLs are optional between 1D rows; two in a row mean RTC.
		if g.br.tryEOL() && g.br.tryEOL() {
			break
		}
		if g.br.exhausted() {
			break
		}
		row, err := g.decodeRow1D()
		if err != nil {
			if g.rows == 0 && len(rows) > 0 {
				break
			}
			return nil, fmt.Errorf("row %d: %w", len(rows), err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (g *ccittState) decodeGroup3Mixed(ctx context.Context) ([][]bool, error) {
	var rows [][]bool
	var ref []bool
	for !g.rowDone(len(rows)) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if g.byteAlign {
			g.br.alignByte()
		}
		oneDim := true
		if g.br.tryEOL() {
			// Each EOL carries a tag bit: 1 selects one-dimensional
			// coding for the following line, 0 two-dimensional.
			tag, ok := g.br.readBit()
			if !ok {
				break
			}
			oneDim = tag == 1
			if g.br.peekEOL() { // consecutive EOLs: return to control
				break
			}
		} else if g.br.exhausted() {
			break
		} else if len(rows) > 0 {
			return nil, fmt.Errorf("row %d: missing EOL", len(rows))
		}

		var row []bool
		var err error
		if oneDim {
			row, err = g.decodeRow1D()
		} else {
			row, err = g.decodeRow2D(ref)
		}
		if err != nil {
			if g.rows == 0 && len(rows) > 0 {
				break
			}
			return nil, fmt.Errorf("row %d: %w", len(rows), err)
		}
		rows = append(rows, row)
		ref = row
	}
	return rows, nil
}

func (g *ccittState) decodeRow1D() ([]bool, error) {
	row := make([]bool, g.columns)
	pos := 0
	black := false
	for pos < g.columns {
		run, err := g.decodeRun(black)
		if err != nil {
			return nil, err
		}
		if pos+run > g.columns {
			return nil, fmt.Errorf("run of %d overflows column %d", run, pos)
		}
		fillRow(row, pos, pos+run, black)
		pos += run
		black = !black
	}
	return row, nil
}

// decodeRow2D decodes one line against the reference line ref (nil for
// the imaginary white line above the image).
func (g *ccittState) decodeRow2D(ref []bool) ([]bool, error) {
	row := make([]bool, g.columns)
	a0 := -1
	black := false
	for a0 < g.columns {
		mode, ok := g.readMode()
		if !ok {
			return nil, errors.New("bad or truncated mode code")
		}
		switch mode {
		case modePass:
			b1 := changingElem(ref, a0, black, g.columns)
			b2 := nextChange(ref, b1+1, g.columns)
			fillRow(row, a0, b2, black)
			a0 = b2
		case modeHorizontal:
			r1, err := g.decodeRun(black)
			if err != nil {
				return nil, err
			}
			r2, err := g.decodeRun(!black)
			if err != nil {
				return nil, err
			}
			base := a0
			if base < 0 {
				base = 0
			}
			a1 := base + r1
			a2 := a1 + r2
			if a2 > g.columns {
				return nil, fmt.Errorf("horizontal runs %d+%d overflow column %d", r1, r2, base)
			}
			fillRow(row, a0, a1, black)
			fillRow(row, a1, a2, !black)
			a0 = a2
		default: // vertical, mode carries the a1-b1 offset
			b1 := changingElem(ref, a0, black, g.columns)
			a1 := b1 + int(mode)
			if a1 < 0 || a1 > g.columns || (a0 >= 0 && a1 <= a0) {
				return nil, fmt.Errorf("vertical mode positions a1 at %d from a0 %d", a1, a0)
			}
			fillRow(row, a0, a1, black)
			a0 = a1
			black = !black
		}
	}
	if a0 != g.columns {
		return nil, fmt.Errorf("row ends at column %d", a0)
	}
	return row, nil
}

// decodeRun reads make-up codes until a terminating code completes the
// run length for the given colour.
func (g *ccittState) decodeRun(black bool) (int, error) {
	total := 0
	for {
		run, makeup, err := g.matchRun(black)
		if err != nil {
			return 0, err
		}
		total += run
		if !makeup {
			return total, nil
		}
	}
}

func (g *ccittState) matchRun(black bool) (run int, makeup bool, err error) {
	table := whiteRunCodes
	minBits := 4
	if black {
		table = blackRunCodes
		minBits = 2
	}
	for n := minBits; n <= 14; n++ {
		v, avail := g.br.peek(n)
		if avail < n {
			break
		}
		if c, ok := table[runKey(n, v)]; ok {
			g.br.skip(n)
			return c.run, c.makeup, nil
		}
	}
	colour := "white"
	if black {
		colour = "black"
	}
	return 0, false, fmt.Errorf("no %s run code at bit %d", colour, g.br.pos)
}

type twoDimMode int

// Vertical modes are their a1-b1 offset; pass and horizontal sit outside
// the -3..3 range.
const (
	modePass       twoDimMode = 100
	modeHorizontal twoDimMode = 101
)

func (g *ccittState) readMode() (twoDimMode, bool) {
	// Codes: 1=V(0); 011=VR(1); 010=VL(1); 001=H; 0001=P;
	// 000011=VR(2); 000010=VL(2); 0000011=VR(3); 0000010=VL(3).
	v, avail := g.br.peek(1)
	if avail == 1 && v == 1 {
		g.br.skip(1)
		return 0, true
	}
	v, avail = g.br.peek(3)
	if avail == 3 {
		switch v {
		case 0x3:
			g.br.skip(3)
			return 1, true
		case 0x2:
			g.br.skip(3)
			return -1, true
		case 0x1:
			g.br.skip(3)
			return modeHorizontal, true
		}
	}
	v, avail = g.br.peek(4)
	if avail == 4 && v == 0x1 {
		g.br.skip(4)
		return modePass, true
	}
	v, avail = g.br.peek(6)
	if avail == 6 {
		switch v {
		case 0x3:
			g.br.skip(6)
			return 2, true
		case 0x2:
			g.br.skip(6)
			return -2, true
		}
	}
	v, avail = g.br.peek(7)
	if avail == 7 {
		switch v {
		case 0x3:
			g.br.skip(7)
			return 3, true
		case 0x2:
			g.br.skip(7)
			return -3, true
		}
	}
	return 0, false
}

// changingElem returns b1: the first changing element on the reference
// line strictly right of a0 whose pixel colour is opposite to the
// current coding colour.
func changingElem(ref []bool, a0 int, black bool, cols int) int {
	i := nextChange(ref, a0+1, cols)
	for i < cols && ref != nil && ref[i] == black {
		i = nextChange(ref, i+1, cols)
	}
	return i
}

// nextChange returns the first changing element at or after from, or
// cols when the rest of the line is a single run. A nil row stands for
// the all-white reference line which has no changing elements.
func nextChange(row []bool, from int, cols int) int {
	if row == nil {
		return cols
	}
	if from < 0 {
		from = 0
	}
	for i := from; i < len(row); i++ {
		prev := false
		if i > 0 {
			prev = row[i-1]
		}
		if row[i] != prev {
			return i
		}
	}
	return len(row)
}

func fillRow(row []bool, from, to int, black bool) {
	if from < 0 {
		from = 0
	}
	if to > len(row) {
		to = len(row)
	}
	for i := from; i < to; i++ {
		row[i] = black
	}
}

func (g *ccittState) pack(rows [][]bool) []byte {
	rowBytes := (g.columns + 7) / 8
	out := make([]byte, rowBytes*len(rows))
	for r, row := range rows {
		base := r * rowBytes
		for i := 0; i < g.columns; i++ {
			if row[i] == g.blackIs1 {
				out[base+i/8] |= 0x80 >> uint(i%8)
			}
		}
		// Pad bits read back as white.
		if !g.blackIs1 {
			for i := g.columns; i < rowBytes*8; i++ {
				out[base+i/8] |= 0x80 >> uint(i%8)
			}
		}
	}
	return out
}

// bitReader reads MSB-first across byte boundaries; pos is a bit index.
type bitReader struct {
	data []byte
	pos  int
}

func (r *bitReader) exhausted() bool { return r.pos >= len(r.data)*8 }

func (r *bitReader) readBit() (int, bool) {
	if r.exhausted() {
		return 0, false
	}
	b := (r.data[r.pos/8] >> uint(7-r.pos%8)) & 1
	r.pos++
	return int(b), true
}

// peek returns up to n bits without consuming them, plus the number of
// bits actually available.
func (r *bitReader) peek(n int) (int, int) {
	v := 0
	avail := 0
	for i := 0; i < n; i++ {
		p := r.pos + i
		if p >= len(r.data)*8 {
			break
		}
		v = v<<1 | int((r.data[p/8]>>uint(7-p%8))&1)
		avail++
	}
	return v, avail
}

func (r *bitReader) skip(n int) { r.pos += n }

func (r *bitReader) alignByte() {
	if r.pos%8 != 0 {
		r.pos += 8 - r.pos%8
	}
}

// tryEOL consumes fill bits plus one EOL marker (eleven or more zeros
// followed by a one) if present; otherwise the position is unchanged.
func (r *bitReader) tryEOL() bool {
	save := r.pos
	zeros := 0
	for {
		b, ok := r.readBit()
		if !ok {
			r.pos = save
			return false
		}
		if b == 1 {
			if zeros >= 11 {
				return true
			}
			r.pos = save
			return false
		}
		zeros++
		if zeros > 64 {
			r.pos = save
			return false
		}
	}
}

func (r *bitReader) peekEOL() bool {
	save := r.pos
	ok := r.tryEOL()
	r.pos = save
	return ok
}

type runCode struct {
	run    int
	makeup bool
}

func runKey(bits, code int) uint32 { return uint32(bits)<<16 | uint32(code) }

// T.4 run-length code tables, keyed by (bit count, code value).
var (
	whiteRunCodes = buildRunTable(whiteTermCodes, whiteMakeupCodes)
	blackRunCodes = buildRunTable(blackTermCodes, blackMakeupCodes)
)

type ccittCode struct {
	code int
	bits int
	run  int
}

func buildRunTable(term, makeup []ccittCode) map[uint32]runCode {
	m := make(map[uint32]runCode, len(term)+len(makeup)+len(sharedMakeupCodes))
	for _, c := range term {
		m[runKey(c.bits, c.code)] = runCode{run: c.run}
	}
	for _, c := range makeup {
		m[runKey(c.bits, c.code)] = runCode{run: c.run, makeup: true}
	}
	for _, c := range sharedMakeupCodes {
		m[runKey(c.bits, c.code)] = runCode{run: c.run, makeup: true}
	}
	return m
}

var whiteTermCodes = []ccittCode{
	{0x35, 8, 0}, {0x07, 6, 1}, {0x07, 4, 2}, {0x08, 4, 3},
	{0x0B, 4, 4}, {0x0C, 4, 5}, {0x0E, 4, 6}, {0x0F, 4, 7},
	{0x13, 5, 8}, {0x14, 5, 9}, {0x07, 5, 10}, {0x08, 5, 11},
	{0x08, 6, 12}, {0x03, 6, 13}, {0x34, 6, 14}, {0x35, 6, 15},
	{0x2A, 6, 16}, {0x2B, 6, 17}, {0x27, 7, 18}, {0x0C, 7, 19},
	{0x08, 7, 20}, {0x17, 7, 21}, {0x03, 7, 22}, {0x04, 7, 23},
	{0x28, 7, 24}, {0x2B, 7, 25}, {0x13, 7, 26}, {0x24, 7, 27},
	{0x18, 7, 28}, {0x02, 8, 29}, {0x03, 8, 30}, {0x1A, 8, 31},
	{0x1B, 8, 32}, {0x12, 8, 33}, {0x13, 8, 34}, {0x14, 8, 35},
	{0x15, 8, 36}, {0x16, 8, 37}, {0x17, 8, 38}, {0x28, 8, 39},
	{0x29, 8, 40}, {0x2A, 8, 41}, {0x2B, 8, 42}, {0x2C, 8, 43},
	{0x2D, 8, 44}, {0x04, 8, 45}, {0x05, 8, 46}, {0x0A, 8, 47},
	{0x0B, 8, 48}, {0x52, 8, 49}, {0x53, 8, 50}, {0x54, 8, 51},
	{0x55, 8, 52}, {0x24, 8, 53}, {0x25, 8, 54}, {0x58, 8, 55},
	{0x59, 8, 56}, {0x5A, 8, 57}, {0x5B, 8, 58}, {0x4A, 8, 59},
	{0x4B, 8, 60}, {0x32, 8, 61}, {0x33, 8, 62}, {0x34, 8, 63},
}

var whiteMakeupCodes = []ccittCode{
	{0x1B, 5, 64}, {0x12, 5, 128}, {0x17, 6, 192}, {0x37, 7, 256},
	{0x36, 8, 320}, {0x37, 8, 384}, {0x64, 8, 448}, {0x65, 8, 512},
	{0x68, 8, 576}, {0x67, 8, 640}, {0xCC, 9, 704}, {0xCD, 9, 768},
	{0xD2, 9, 832}, {0xD3, 9, 896}, {0xD4, 9, 960}, {0xD5, 9, 1024},
	{0xD6, 9, 1088}, {0xD7, 9, 1152}, {0xD8, 9, 1216}, {0xD9, 9, 1280},
	{0xDA, 9, 1344}, {0xDB, 9, 1408}, {0x98, 9, 1472}, {0x99, 9, 1536},
	{0x9A, 9, 1600}, {0x18, 6, 1664}, {0x9B, 9, 1728},
}

var blackTermCodes = []ccittCode{
	{0x37, 10, 0}, {0x02, 3, 1}, {0x03, 2, 2}, {0x02, 2, 3},
	{0x03, 3, 4}, {0x03, 4, 5}, {0x02, 4, 6}, {0x03, 5, 7},
	{0x05, 6, 8}, {0x04, 6, 9}, {0x04, 7, 10}, {0x05, 7, 11},
	{0x07, 7, 12}, {0x04, 8, 13}, {0x07, 8, 14}, {0x18, 9, 15},
	{0x17, 10, 16}, {0x18, 10, 17}, {0x08, 10, 18}, {0x67, 11, 19},
	{0x68, 11, 20}, {0x6C, 11, 21}, {0x37, 11, 22}, {0x28, 11, 23},
	{0x17, 11, 24}, {0x18, 11, 25}, {0xCA, 12, 26}, {0xCB, 12, 27},
	{0xCC, 12, 28}, {0xCD, 12, 29}, {0x68, 12, 30}, {0x69, 12, 31},
	{0x6A, 12, 32}, {0x6B, 12, 33}, {0xD2, 12, 34}, {0xD3, 12, 35},
	{0xD4, 12, 36}, {0xD5, 12, 37}, {0xD6, 12, 38}, {0xD7, 12, 39},
	{0x6C, 12, 40}, {0x6D, 12, 41}, {0xDA, 12, 42}, {0xDB, 12, 43},
	{0x54, 12, 44}, {0x55, 12, 45}, {0x56, 12, 46}, {0x57, 12, 47},
	{0x64, 12, 48}, {0x65, 12, 49}, {0x52, 12, 50}, {0x53, 12, 51},
	{0x24, 12, 52}, {0x37, 12, 53}, {0x38, 12, 54}, {0x27, 12, 55},
	{0x28, 12, 56}, {0x58, 12, 57}, {0x59, 12, 58}, {0x2B, 12, 59},
	{0x2C, 12, 60}, {0x5A, 12, 61}, {0x66, 12, 62}, {0x67, 12, 63},
}

var blackMakeupCodes = []ccittCode{
	{0x0F, 10, 64}, {0xC8, 12, 128}, {0xC9, 12, 192}, {0x5B, 12, 256},
	{0x33, 12, 320}, {0x34, 12, 384}, {0x35, 12, 448}, {0x6C, 13, 512},
	{0x6D, 13, 576}, {0x4A, 13, 640}, {0x4B, 13, 704}, {0x4C, 13, 768},
	{0x4D, 13, 832}, {0x72, 13, 896}, {0x73, 13, 960}, {0x74, 13, 1024},
	{0x75, 13, 1088}, {0x76, 13, 1152}, {0x77, 13, 1216}, {0x52, 13, 1280},
	{0x53, 13, 1344}, {0x54, 13, 1408}, {0x55, 13, 1472}, {0x5A, 13, 1536},
	{0x5B, 13, 1600}, {0x64, 13, 1664}, {0x65, 13, 1728},
}

// Extended make-up codes for runs past 1728, common to both colours.
var sharedMakeupCodes = []ccittCode{
	{0x08, 11, 1792}, {0x0C, 11, 1856}, {0x0D, 11, 1920},
	{0x12, 12, 1984}, {0x13, 12, 2048}, {0x14, 12, 2112},
	{0x15, 12, 2176}, {0x16, 12, 2240}, {0x17, 12, 2304},
	{0x1C, 12, 2368}, {0x1D, 12, 2432}, {0x1E, 12, 2496},
	{0x1F, 12, 2560},
}
