package icc

import (
	"fmt"
	"image"
	"math"
)

const inverseSize = 4096

// Transform converts 8-bit pixels from one matrix/TRC profile to another.
type Transform struct {
	identity bool
	gray     bool
	linear   [3][256]float64
	matrix   [3][3]float64
	inverse  [3][inverseSize]uint8
}

// NewTransform prepares a conversion from src to dst. dst must be an RGB
// matrix/TRC profile; src may be RGB or gray.
func NewTransform(src, dst *Profile) (*Transform, error) {
	if src == nil || dst == nil {
		return nil, fmt.Errorf("icc: transform requires both profiles")
	}
	if !dst.MatrixTRC() || dst.ColorSpace != SpaceRGB {
		return nil, fmt.Errorf("%w: target %s", ErrUnsupported, dst)
	}
	if !src.MatrixTRC() {
		return nil, fmt.Errorf("%w: source %s", ErrUnsupported, src)
	}
	if src.Same(dst) {
		return &Transform{identity: true}, nil
	}

	t := &Transform{gray: src.ColorSpace == SpaceGray}
	for i := range 256 {
		x := float64(i) / 255
		if t.gray {
			t.linear[0][i] = src.gray.Eval(x)
			continue
		}
		for c := range 3 {
			t.linear[c][i] = src.curves[c].Eval(x)
		}
	}

	toRGB, err := invert(columns(dst.colorants))
	if err != nil {
		return nil, fmt.Errorf("%w: target colorants are singular", ErrUnsupported)
	}
	if t.gray {
		// Gray maps onto the neutral axis at the PCS white.
		var white [3][3]float64
		for r := range 3 {
			white[r][0] = D50[r]
		}
		t.matrix = multiply(toRGB, white)
	} else {
		t.matrix = multiply(toRGB, columns(src.colorants))
	}

	for c := range 3 {
		curve := dst.curves[c]
		for i := range inverseSize {
			t.inverse[c][i] = encode(curve, float64(i)/(inverseSize-1))
		}
	}
	return t, nil
}

// Identity reports whether the transform leaves pixels untouched.
func (t *Transform) Identity() bool { return t.identity }

// Apply returns a converted copy of img. Alpha is carried over unchanged.
func (t *Transform) Apply(img *image.NRGBA) *image.NRGBA {
	out := image.NewNRGBA(img.Rect)
	b := img.Rect
	for y := b.Min.Y; y < b.Max.Y; y++ {
		src := img.Pix[img.PixOffset(b.Min.X, y):]
		dst := out.Pix[out.PixOffset(b.Min.X, y):]
		if t.identity {
			copy(dst[:4*b.Dx()], src[:4*b.Dx()])
			continue
		}
		for x := 0; x < b.Dx(); x++ {
			p := src[4*x : 4*x+4]
			var lin [3]float64
			if t.gray {
				lin[0] = t.linear[0][p[0]]
			} else {
				lin = [3]float64{t.linear[0][p[0]], t.linear[1][p[1]], t.linear[2][p[2]]}
			}
			q := dst[4*x : 4*x+4]
			for c := range 3 {
				v := t.matrix[c][0]*lin[0] + t.matrix[c][1]*lin[1] + t.matrix[c][2]*lin[2]
				q[c] = t.inverse[c][int(clamp01(v)*(inverseSize-1)+0.5)]
			}
			q[3] = p[3]
		}
	}
	return out
}

// encode finds the 8-bit code whose linear value is y by bisection. Curves
// are assumed non-decreasing.
func encode(curve Curve, y float64) uint8 {
	lo, hi := 0.0, 1.0
	for range 24 {
		mid := (lo + hi) / 2
		if curve.Eval(mid) < y {
			lo = mid
		} else {
			hi = mid
		}
	}
	return uint8(math.Round(clamp01((lo+hi)/2) * 255))
}

func columns(c [3]XYZ) [3][3]float64 {
	var m [3][3]float64
	for col := range 3 {
		for row := range 3 {
			m[row][col] = c[col][row]
		}
	}
	return m
}

func multiply(a, b [3][3]float64) [3][3]float64 {
	var m [3][3]float64
	for i := range 3 {
		for j := range 3 {
			for k := range 3 {
				m[i][j] += a[i][k] * b[k][j]
			}
		}
	}
	return m
}

func invert(m [3][3]float64) ([3][3]float64, error) {
	det := m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
	if math.Abs(det) < 1e-12 {
		return [3][3]float64{}, fmt.Errorf("singular matrix")
	}
	inv := 1 / det
	return [3][3]float64{
		{
			(m[1][1]*m[2][2] - m[1][2]*m[2][1]) * inv,
			(m[0][2]*m[2][1] - m[0][1]*m[2][2]) * inv,
			(m[0][1]*m[1][2] - m[0][2]*m[1][1]) * inv,
		},
		{
			(m[1][2]*m[2][0] - m[1][0]*m[2][2]) * inv,
			(m[0][0]*m[2][2] - m[0][2]*m[2][0]) * inv,
			(m[0][2]*m[1][0] - m[0][0]*m[1][2]) * inv,
		},
		{
			(m[1][0]*m[2][1] - m[1][1]*m[2][0]) * inv,
			(m[0][1]*m[2][0] - m[0][0]*m[2][1]) * inv,
			(m[0][0]*m[1][1] - m[0][1]*m[1][0]) * inv,
		},
	}, nil
}
