package cmm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// CurveKind enumerates the tone reproduction curve shapes an ICC profile
// can carry.
type CurveKind int

const (
	CurveIdentity CurveKind = iota
	CurveGamma
	CurveSampled
	CurveParametric
)

// Curve is one TRC: identity, a pure gamma, a sampled table evaluated
// with linear interpolation, or one of the five parametric forms.
type Curve struct {
	Kind   CurveKind
	Gamma  float64
	Table  []float64 // normalized samples for CurveSampled
	Params []float64 // g a b c d e f as present for CurveParametric
	Para   int       // parametric function type 0-4
}

// parseCurve decodes a curveType ('curv') or parametricCurveType ('para')
// tag payload.
func parseCurve(data []byte) (*Curve, error) {
	if len(data) < 12 {
		return nil, errors.New("icc: curve tag too short")
	}
	switch string(data[0:4]) {
	case "curv":
		count := int(binary.BigEndian.Uint32(data[8:12]))
		switch {
		case count == 0:
			return &Curve{Kind: CurveIdentity}, nil
		case count == 1:
			if len(data) < 14 {
				return nil, errors.New("icc: curv gamma truncated")
			}
			// u8Fixed8 gamma value.
			g := float64(binary.BigEndian.Uint16(data[12:14])) / 256.0
			return &Curve{Kind: CurveGamma, Gamma: g}, nil
		default:
			if len(data) < 12+count*2 {
				return nil, errors.New("icc: curv table truncated")
			}
			table := make([]float64, count)
			for i := 0; i < count; i++ {
				table[i] = float64(binary.BigEndian.Uint16(data[12+i*2:14+i*2])) / 65535.0
			}
			return &Curve{Kind: CurveSampled, Table: table}, nil
		}
	case "para":
		fnType := int(binary.BigEndian.Uint16(data[8:10]))
		nParams := []int{1, 3, 4, 5, 7}
		if fnType < 0 || fnType > 4 {
			return nil, fmt.Errorf("icc: parametric curve type %d", fnType)
		}
		n := nParams[fnType]
		if len(data) < 12+n*4 {
			return nil, errors.New("icc: para params truncated")
		}
		params := make([]float64, n)
		for i := 0; i < n; i++ {
			params[i] = s15Fixed16ToFloat(binary.BigEndian.Uint32(data[12+i*4 : 16+i*4]))
		}
		return &Curve{Kind: CurveParametric, Params: params, Para: fnType}, nil
	}
	return nil, errors.New("icc: unsupported curve tag type")
}

// Eval applies the curve to a normalized value.
func (c *Curve) Eval(x float64) float64 {
	switch c.Kind {
	case CurveIdentity:
		return x
	case CurveGamma:
		if x <= 0 {
			return 0
		}
		return math.Pow(x, c.Gamma)
	case CurveSampled:
		if len(c.Table) == 0 {
			return x
		}
		return interp1D(x, c.Table)
	case CurveParametric:
		return c.evalParametric(x)
	}
	return x
}

func (c *Curve) evalParametric(x float64) float64 {
	p := c.Params
	pow := func(base, exp float64) float64 {
		if base <= 0 {
			return 0
		}
		return math.Pow(base, exp)
	}
	switch c.Para {
	case 0: // Y = X^g
		return pow(x, p[0])
	case 1: // Y = (aX+b)^g for X >= -b/a, else 0
		g, a, b := p[0], p[1], p[2]
		if a != 0 && x < -b/a {
			return 0
		}
		return pow(a*x+b, g)
	case 2: // Y = (aX+b)^g + c for X >= -b/a, else c
		g, a, b, cc := p[0], p[1], p[2], p[3]
		if a != 0 && x < -b/a {
			return cc
		}
		return pow(a*x+b, g) + cc
	case 3: // Y = (aX+b)^g for X >= d, else cX
		g, a, b, cc, d := p[0], p[1], p[2], p[3], p[4]
		if x < d {
			return cc * x
		}
		return pow(a*x+b, g)
	case 4: // Y = (aX+b)^g + e for X >= d, else cX+f
		g, a, b, cc, d, e, f := p[0], p[1], p[2], p[3], p[4], p[5], p[6]
		if x < d {
			return cc*x + f
		}
		return pow(a*x+b, g) + e
	}
	return x
}
