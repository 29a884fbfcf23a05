package cmm

import (
	"encoding/binary"
	"errors"
)

// LUT is an mft1/mft2 pipeline: matrix, per-channel input tables, an
// N-dimensional CLUT and per-channel output tables, all normalized to
// [0,1].
type LUT struct {
	InputChannels  uint8
	OutputChannels uint8
	GridPoints     uint8
	Matrix         [9]float64
	InputTables    [][]float64
	CLUT           []float64
	OutputTables   [][]float64
}

// ReadLUTTag reads an mft1 (8-bit) or mft2 (16-bit) LUT tag.
func (p *ICCProfile) ReadLUTTag(sig string) (*LUT, error) {
	data, ok := p.GetTag(sig)
	if !ok {
		return nil, errors.New("icc: tag not found")
	}
	if len(data) < 8 {
		return nil, errors.New("icc: LUT tag too short")
	}
	switch binary.BigEndian.Uint32(data[0:4]) {
	case 0x6D667431: // mft1
		return parseMFT1(data)
	case 0x6D667432: // mft2
		return parseMFT2(data)
	}
	return nil, errors.New("icc: unsupported LUT type")
}

func parseMFT2(data []byte) (*LUT, error) {
	if len(data) < 52 {
		return nil, errors.New("icc: mft2 tag too short")
	}
	lut := &LUT{
		InputChannels:  data[8],
		OutputChannels: data[9],
		GridPoints:     data[10],
	}
	if lut.InputChannels == 0 || lut.OutputChannels == 0 || lut.GridPoints < 2 {
		return nil, errors.New("icc: mft2 geometry invalid")
	}
	for i := 0; i < 9; i++ {
		lut.Matrix[i] = s15Fixed16ToFloat(binary.BigEndian.Uint32(data[12+i*4 : 16+i*4]))
	}
	inputEntries := int(binary.BigEndian.Uint16(data[48:50]))
	outputEntries := int(binary.BigEndian.Uint16(data[50:52]))
	offset := 52

	read16 := func(channels, entries int) ([][]float64, error) {
		if offset+channels*entries*2 > len(data) {
			return nil, errors.New("icc: mft2 tables truncated")
		}
		tables := make([][]float64, channels)
		for c := 0; c < channels; c++ {
			tables[c] = make([]float64, entries)
			for i := 0; i < entries; i++ {
				tables[c][i] = float64(binary.BigEndian.Uint16(data[offset:offset+2])) / 65535.0
				offset += 2
			}
		}
		return tables, nil
	}

	var err error
	if lut.InputTables, err = read16(int(lut.InputChannels), inputEntries); err != nil {
		return nil, err
	}
	points := gridSize(int(lut.GridPoints), int(lut.InputChannels))
	clutLen := points * int(lut.OutputChannels)
	if points <= 0 || offset+clutLen*2 > len(data) {
		return nil, errors.New("icc: mft2 CLUT truncated")
	}
	lut.CLUT = make([]float64, clutLen)
	for i := range lut.CLUT {
		lut.CLUT[i] = float64(binary.BigEndian.Uint16(data[offset:offset+2])) / 65535.0
		offset += 2
	}
	if lut.OutputTables, err = read16(int(lut.OutputChannels), outputEntries); err != nil {
		return nil, err
	}
	return lut, nil
}

func parseMFT1(data []byte) (*LUT, error) {
	if len(data) < 52 {
		return nil, errors.New("icc: mft1 tag too short")
	}
	lut := &LUT{
		InputChannels:  data[8],
		OutputChannels: data[9],
		GridPoints:     data[10],
	}
	if lut.InputChannels == 0 || lut.OutputChannels == 0 || lut.GridPoints < 2 {
		return nil, errors.New("icc: mft1 geometry invalid")
	}
	for i := 0; i < 9; i++ {
		lut.Matrix[i] = s15Fixed16ToFloat(binary.BigEndian.Uint32(data[12+i*4 : 16+i*4]))
	}
	// mft1 tables have a fixed 256 entries of one byte each.
	offset := 52

	read8 := func(channels, entries int) ([][]float64, error) {
		if offset+channels*entries > len(data) {
			return nil, errors.New("icc: mft1 tables truncated")
		}
		tables := make([][]float64, channels)
		for c := 0; c < channels; c++ {
			tables[c] = make([]float64, entries)
			for i := 0; i < entries; i++ {
				tables[c][i] = float64(data[offset]) / 255.0
				offset++
			}
		}
		return tables, nil
	}

	var err error
	if lut.InputTables, err = read8(int(lut.InputChannels), 256); err != nil {
		return nil, err
	}
	points := gridSize(int(lut.GridPoints), int(lut.InputChannels))
	clutLen := points * int(lut.OutputChannels)
	if points <= 0 || offset+clutLen > len(data) {
		return nil, errors.New("icc: mft1 CLUT truncated")
	}
	lut.CLUT = make([]float64, clutLen)
	for i := range lut.CLUT {
		lut.CLUT[i] = float64(data[offset]) / 255.0
		offset++
	}
	if lut.OutputTables, err = read8(int(lut.OutputChannels), 256); err != nil {
		return nil, err
	}
	return lut, nil
}

// gridSize computes gridPoints^channels, guarding against overflow.
func gridSize(gridPoints, channels int) int {
	size := 1
	for i := 0; i < channels; i++ {
		size *= gridPoints
		if size < 0 || size > 1<<28 {
			return -1
		}
	}
	return size
}

// Convert runs the pipeline: matrix (3-channel XYZ input only), input
// tables, CLUT interpolation, output tables.
func (lut *LUT) Convert(in []float64) ([]float64, error) {
	if len(in) != int(lut.InputChannels) {
		return nil, errors.New("icc: LUT input channels mismatch")
	}
	tmp := make([]float64, len(in))
	copy(tmp, in)

	if lut.InputChannels == 3 {
		x := tmp[0]*lut.Matrix[0] + tmp[1]*lut.Matrix[1] + tmp[2]*lut.Matrix[2]
		y := tmp[0]*lut.Matrix[3] + tmp[1]*lut.Matrix[4] + tmp[2]*lut.Matrix[5]
		z := tmp[0]*lut.Matrix[6] + tmp[1]*lut.Matrix[7] + tmp[2]*lut.Matrix[8]
		tmp[0], tmp[1], tmp[2] = x, y, z
	}
	for c := range tmp {
		tmp[c] = interp1D(tmp[c], lut.InputTables[c])
	}

	var clutOut []float64
	if lut.InputChannels == 3 {
		clutOut = interpCLUT3D(tmp, lut.CLUT, int(lut.OutputChannels), int(lut.GridPoints))
	} else {
		clutOut = interpCLUTMulti(tmp, lut.CLUT, int(lut.InputChannels), int(lut.OutputChannels), int(lut.GridPoints))
	}

	out := make([]float64, lut.OutputChannels)
	for c := range out {
		out[c] = interp1D(clutOut[c], lut.OutputTables[c])
	}
	return out, nil
}

func interp1D(val float64, table []float64) float64 {
	if len(table) == 0 {
		return val
	}
	if val <= 0 {
		return table[0]
	}
	if val >= 1 {
		return table[len(table)-1]
	}
	f := val * float64(len(table)-1)
	idx := int(f)
	frac := f - float64(idx)
	return table[idx]*(1-frac) + table[idx+1]*frac
}

// interpCLUTMulti does multilinear interpolation over the 2^N grid cell
// corners surrounding the input. The first dimension varies least rapidly
// in the CLUT layout.
func interpCLUTMulti(in []float64, clut []float64, inCh, outCh, gridPoints int) []float64 {
	base := make([]int, inCh)
	frac := make([]float64, inCh)
	g := float64(gridPoints - 1)
	for i, v := range in {
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		f := v * g
		idx := int(f)
		if idx >= gridPoints-1 {
			idx = gridPoints - 2
		}
		base[i] = idx
		frac[i] = f - float64(idx)
	}

	out := make([]float64, outCh)
	for corner := 0; corner < 1<<inCh; corner++ {
		weight := 1.0
		offset := 0
		for dim := 0; dim < inCh; dim++ {
			idx := base[dim]
			if corner&(1<<dim) != 0 {
				idx++
				weight *= frac[dim]
			} else {
				weight *= 1 - frac[dim]
			}
			offset = offset*gridPoints + idx
		}
		if weight == 0 {
			continue
		}
		for c := 0; c < outCh; c++ {
			out[c] += weight * clut[offset*outCh+c]
		}
	}
	return out
}

// interpCLUT3D is the trilinear fast path for three-channel inputs.
func interpCLUT3D(in []float64, clut []float64, outCh, gridPoints int) []float64 {
	g := float64(gridPoints - 1)
	x := in[0] * g
	y := in[1] * g
	z := in[2] * g

	x0, y0, z0 := int(x), int(y), int(z)
	if x0 >= gridPoints-1 {
		x0 = gridPoints - 2
	}
	if y0 >= gridPoints-1 {
		y0 = gridPoints - 2
	}
	if z0 >= gridPoints-1 {
		z0 = gridPoints - 2
	}
	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if z0 < 0 {
		z0 = 0
	}
	x1, y1, z1 := x0+1, y0+1, z0+1
	dx, dy, dz := x-float64(x0), y-float64(y0), z-float64(z0)

	getVal := func(ix, iy, iz, ch int) float64 {
		idx := ix*gridPoints*gridPoints + iy*gridPoints + iz
		return clut[idx*outCh+ch]
	}

	out := make([]float64, outCh)
	for c := 0; c < outCh; c++ {
		c00 := getVal(x0, y0, z0, c)*(1-dz) + getVal(x0, y0, z1, c)*dz
		c01 := getVal(x0, y1, z0, c)*(1-dz) + getVal(x0, y1, z1, c)*dz
		c10 := getVal(x1, y0, z0, c)*(1-dz) + getVal(x1, y0, z1, c)*dz
		c11 := getVal(x1, y1, z0, c)*(1-dz) + getVal(x1, y1, z1, c)*dz

		c0 := c00*(1-dy) + c01*dy
		c1 := c10*(1-dy) + c11*dy
		out[c] = c0*(1-dx) + c1*dx
	}
	return out
}
