// Package akima implements 1-D Akima cubic interpolation, used to turn
// a sparse pitch-bend curve into a per-frame pitch contour without the
// ringing near outliers that a global cubic spline would introduce.
package akima

import (
	"fmt"
	"sort"
)

// Interpolator evaluates the piecewise Akima cubic built from a set of
// strictly increasing knots.
type Interpolator struct {
	x, y    []float64
	b, c, d []float64 // per-interval coefficients, len(x)-1 each
}

// New builds an Interpolator from knots (x[i], y[i]). x must be
// strictly increasing and len(x) must be at least 2.
func New(x, y []float64) (*Interpolator, error) {
	n := len(x)
	if n < 2 {
		return nil, fmt.Errorf("akima: need at least 2 knots, got %d", n)
	}
	if len(y) != n {
		return nil, fmt.Errorf("akima: len(x)=%d != len(y)=%d", n, len(y))
	}
	for i := 1; i < n; i++ {
		if x[i] <= x[i-1] {
			return nil, fmt.Errorf("akima: x must be strictly increasing, x[%d]=%v <= x[%d]=%v", i, x[i], i-1, x[i-1])
		}
	}

	m := make([]float64, n-1)
	for i := 0; i < n-1; i++ {
		m[i] = (y[i+1] - y[i]) / (x[i+1] - x[i])
	}
	ext := extendSlopes(m)

	t := make([]float64, n)
	for i := 0; i < n; i++ {
		mPrev := ext[i+1]
		mCur := ext[i+2]
		w1 := absf(ext[i+3] - ext[i+2])
		w2 := absf(ext[i+1] - ext[i])
		if w1 < 1e-15 && w2 < 1e-15 {
			t[i] = (mPrev + mCur) / 2
		} else {
			t[i] = (w1*mPrev + w2*mCur) / (w1 + w2)
		}
	}

	b := make([]float64, n-1)
	c := make([]float64, n-1)
	d := make([]float64, n-1)
	for i := 0; i < n-1; i++ {
		h := x[i+1] - x[i]
		b[i] = t[i]
		c[i] = (3*m[i] - 2*t[i] - t[i+1]) / h
		d[i] = (t[i] + t[i+1] - 2*m[i]) / (h * h)
	}

	return &Interpolator{
		x: append([]float64{}, x...),
		y: append([]float64{}, y...),
		b: b,
		c: c,
		d: d,
	}, nil
}

// Eval returns the interpolated value at xi. Values outside the knot
// range extrapolate using the nearest edge polynomial.
func (p *Interpolator) Eval(xi float64) float64 {
	n := len(p.x)
	i := sort.Search(n-1, func(i int) bool { return p.x[i+1] > xi }) - 1
	if i < 0 {
		i = 0
	}
	if i > n-2 {
		i = n - 2
	}
	dx := xi - p.x[i]
	return p.y[i] + dx*(p.b[i]+dx*(p.c[i]+dx*p.d[i]))
}

// EvalAll evaluates at every point in xs.
func (p *Interpolator) EvalAll(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, xi := range xs {
		out[i] = p.Eval(xi)
	}
	return out
}

// extendSlopes returns m extended by two slopes on each side, mirrored
// per the weighted-derivative formula: m[-1] = 2m[0]-m[1],
// m[-2] = 2m[-1]-m[0], and symmetrically at the right end. ext[i]
// corresponds to real slope index i-2. Degenerate inputs with fewer
// than two real slopes fall back to flat extension.
func extendSlopes(m []float64) []float64 {
	n1 := len(m)
	ext := make([]float64, n1+4)
	copy(ext[2:2+n1], m)

	m0 := ext[2]
	m1 := m0
	if n1 >= 2 {
		m1 = ext[3]
	}
	extMinus1 := 2*m0 - m1
	ext[1] = extMinus1
	ext[0] = 2*extMinus1 - m0

	mLast := ext[2+n1-1]
	mPrev := mLast
	if n1 >= 2 {
		mPrev = ext[2+n1-2]
	}
	extN := 2*mLast - mPrev
	ext[2+n1] = extN
	ext[2+n1+1] = 2*extN - mLast

	return ext
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
