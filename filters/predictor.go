package filters

import (
	"fmt"

	"github.com/siftdocs/pdfsift/ir/raw"
)

// applyPredictor reverses the predictor named in a Flate/LZW DecodeParms
// dictionary. Predictor 1 (or absent) passes the data through, 2 is TIFF
// horizontal differencing, 10..15 are the PNG filters with a per-row
// filter byte.
func applyPredictor(data []byte, params raw.Dictionary) ([]byte, error) {
	predictor := paramInt(params, "Predictor", 1)
	if predictor <= 1 {
		return data, nil
	}
	colors := paramInt(params, "Colors", 1)
	bpc := paramInt(params, "BitsPerComponent", 8)
	columns := paramInt(params, "Columns", 1)
	if colors < 1 || columns < 1 {
		return nil, fmt.Errorf("invalid predictor geometry: colors=%d columns=%d", colors, columns)
	}
	switch bpc {
	case 1, 2, 4, 8, 16:
	default:
		return nil, fmt.Errorf("invalid predictor bits per component %d", bpc)
	}

	switch {
	case predictor == 2:
		return reverseTIFFPredictor(data, colors, bpc, columns)
	case predictor >= 10 && predictor <= 15:
		return reversePNGPredictor(data, colors, bpc, columns)
	default:
		return nil, fmt.Errorf("unsupported predictor %d", predictor)
	}
}

// reversePNGPredictor undoes the per-row PNG filters. Rows are
// rowBytes+1 long on input (leading filter byte); the output is exactly
// rows*rowBytes. A trailing partial row is an error.
func reversePNGPredictor(data []byte, colors, bpc, columns int) ([]byte, error) {
	rowBytes := (colors*bpc*columns + 7) / 8
	if rowBytes == 0 {
		return nil, fmt.Errorf("predictor row of zero bytes")
	}
	if len(data)%(rowBytes+1) != 0 {
		return nil, fmt.Errorf("predictor input %d not a multiple of row size %d", len(data), rowBytes+1)
	}
	rows := len(data) / (rowBytes + 1)

	// Byte distance between corresponding bytes of horizontally adjacent
	// pixels; sub-byte depths use 1 per the PNG specification.
	bpp := (colors*bpc + 7) / 8

	out := make([]byte, rows*rowBytes)
	prev := make([]byte, rowBytes) // zero row above the image
	for r := 0; r < rows; r++ {
		in := data[r*(rowBytes+1):]
		ft := in[0]
		row := out[r*rowBytes : (r+1)*rowBytes]
		copy(row, in[1:rowBytes+1])

		switch ft {
		case 0: // None
		case 1: // Sub
			for i := bpp; i < rowBytes; i++ {
				row[i] += row[i-bpp]
			}
		case 2: // Up
			for i := 0; i < rowBytes; i++ {
				row[i] += prev[i]
			}
		case 3: // Average
			for i := 0; i < rowBytes; i++ {
				var left int
				if i >= bpp {
					left = int(row[i-bpp])
				}
				row[i] += byte((left + int(prev[i])) / 2)
			}
		case 4: // Paeth
			for i := 0; i < rowBytes; i++ {
				var left, upLeft int
				if i >= bpp {
					left = int(row[i-bpp])
					upLeft = int(prev[i-bpp])
				}
				row[i] += paeth(left, int(prev[i]), upLeft)
			}
		default:
			return nil, fmt.Errorf("unknown PNG filter type %d in row %d", ft, r)
		}
		prev = row
	}
	return out, nil
}

func paeth(a, b, c int) byte {
	p := a + b - c
	pa, pb, pc := abs(p-a), abs(p-b), abs(p-c)
	if pa <= pb && pa <= pc {
		return byte(a)
	}
	if pb <= pc {
		return byte(b)
	}
	return byte(c)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// reverseTIFFPredictor undoes TIFF predictor 2 (horizontal
// differencing). Only 8- and 16-bit components are supported.
func reverseTIFFPredictor(data []byte, colors, bpc, columns int) ([]byte, error) {
	rowBytes := (colors*bpc*columns + 7) / 8
	if rowBytes == 0 || len(data)%rowBytes != 0 {
		return nil, fmt.Errorf("predictor input %d not a multiple of row size %d", len(data), rowBytes)
	}
	rows := len(data) / rowBytes

	switch bpc {
	case 8:
		for r := 0; r < rows; r++ {
			row := data[r*rowBytes : (r+1)*rowBytes]
			for i := colors; i < rowBytes; i++ {
				row[i] += row[i-colors]
			}
		}
	case 16:
		step := colors * 2
		for r := 0; r < rows; r++ {
			row := data[r*rowBytes : (r+1)*rowBytes]
			for i := step; i+1 < rowBytes; i += 2 {
				v := uint16(row[i])<<8 | uint16(row[i+1])
				p := uint16(row[i-step])<<8 | uint16(row[i-step+1])
				v += p
				row[i] = byte(v >> 8)
				row[i+1] = byte(v)
			}
		}
	default:
		return nil, fmt.Errorf("TIFF predictor unsupported for %d bits per component", bpc)
	}
	return data, nil
}
