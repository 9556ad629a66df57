package icc

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Curve maps an encoded channel value in [0,1] to linear light in [0,1].
type Curve interface {
	Eval(x float64) float64
}

type gammaCurve float64

func (g gammaCurve) Eval(x float64) float64 {
	return math.Pow(clamp01(x), float64(g))
}

// tableCurve interpolates linearly between evenly spaced samples.
type tableCurve []float64

func (t tableCurve) Eval(x float64) float64 {
	x = clamp01(x)
	pos := x * float64(len(t)-1)
	i := int(pos)
	if i >= len(t)-1 {
		return t[len(t)-1]
	}
	frac := pos - float64(i)
	return t[i] + (t[i+1]-t[i])*frac
}

// paraCurve is the ICC parametricCurveType; unused parameters stay zero.
type paraCurve struct {
	kind                int
	g, a, b, c, d, e, f float64
}

func (p paraCurve) Eval(x float64) float64 {
	x = clamp01(x)
	switch p.kind {
	case 0:
		return math.Pow(x, p.g)
	case 1:
		if x >= -p.b/p.a {
			return clamp01(math.Pow(p.a*x+p.b, p.g))
		}
		return 0
	case 2:
		if x >= -p.b/p.a {
			return clamp01(math.Pow(p.a*x+p.b, p.g) + p.c)
		}
		return clamp01(p.c)
	case 3:
		if x >= p.d {
			return clamp01(math.Pow(p.a*x+p.b, p.g))
		}
		return clamp01(p.c * x)
	default:
		if x >= p.d {
			return clamp01(math.Pow(p.a*x+p.b, p.g) + p.e)
		}
		return clamp01(p.c*x + p.f)
	}
}

var paraParams = map[int]int{0: 1, 1: 3, 2: 4, 3: 5, 4: 7}

func parseCurve(raw []byte) (Curve, error) {
	if len(raw) < 12 {
		return nil, fmt.Errorf("%w: short curve", ErrMalformed)
	}
	switch string(raw[0:4]) {
	case "curv":
		n := int(binary.BigEndian.Uint32(raw[8:12]))
		if len(raw) < 12+2*n {
			return nil, fmt.Errorf("%w: curve table truncated", ErrMalformed)
		}
		switch n {
		case 0:
			return gammaCurve(1), nil
		case 1:
			return gammaCurve(float64(binary.BigEndian.Uint16(raw[12:14])) / 256), nil
		}
		table := make(tableCurve, n)
		for i := range table {
			table[i] = float64(binary.BigEndian.Uint16(raw[12+2*i:])) / 65535
		}
		return table, nil
	case "para":
		kind := int(binary.BigEndian.Uint16(raw[8:10]))
		count, ok := paraParams[kind]
		if !ok {
			return nil, fmt.Errorf("%w: parametric curve type %d", ErrUnsupported, kind)
		}
		if len(raw) < 12+4*count {
			return nil, fmt.Errorf("%w: parametric curve truncated", ErrMalformed)
		}
		var v [7]float64
		for i := range count {
			v[i] = s15Fixed16(raw[12+4*i:])
		}
		curve := paraCurve{kind: kind, g: v[0], a: v[1], b: v[2], c: v[3], d: v[4], e: v[5], f: v[6]}
		if kind > 0 && curve.a == 0 {
			return nil, fmt.Errorf("%w: parametric curve with a=0", ErrMalformed)
		}
		return curve, nil
	}
	return nil, fmt.Errorf("%w: curve type %q", ErrUnsupported, raw[0:4])
}
