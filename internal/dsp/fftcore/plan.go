package fftcore

import (
	"math"
	"sync"
)

// radix2Plan holds the bit-reversal permutation and per-stage twiddle
// tables for an in-place iterative Cooley-Tukey FFT of size n (a power
// of two). Plans are immutable after construction and safe to share
// across goroutines.
type radix2Plan struct {
	n    int
	bits int
	perm []int
	twRe [][]float64 // per stage, half-size
	twIm [][]float64
}

var radix2Cache sync.Map // map[int]*radix2Plan

func radix2PlanFor(n int) *radix2Plan {
	if v, ok := radix2Cache.Load(n); ok {
		return v.(*radix2Plan)
	}
	p := buildRadix2Plan(n)
	actual, _ := radix2Cache.LoadOrStore(n, p)
	return actual.(*radix2Plan)
}

func buildRadix2Plan(n int) *radix2Plan {
	bits := 0
	for v := n; v > 1; v >>= 1 {
		bits++
	}

	perm := make([]int, n)
	for i := range perm {
		perm[i] = bitReverse(i, bits)
	}

	var twRe, twIm [][]float64
	for size := 2; size <= n; size <<= 1 {
		half := size / 2
		re := make([]float64, half)
		im := make([]float64, half)
		angleStep := -2 * math.Pi / float64(size)
		for k := 0; k < half; k++ {
			angle := angleStep * float64(k)
			re[k] = math.Cos(angle)
			im[k] = math.Sin(angle)
		}
		twRe = append(twRe, re)
		twIm = append(twIm, im)
	}

	return &radix2Plan{n: n, bits: bits, perm: perm, twRe: twRe, twIm: twIm}
}

func bitReverse(x, bits int) int {
	var result int
	for i := 0; i < bits; i++ {
		result = (result << 1) | (x & 1)
		x >>= 1
	}
	return result
}

// apply runs the in-place radix-2 FFT (or its inverse, scaled by 1/n)
// over real/imag, which must both have length p.n.
func (p *radix2Plan) apply(real, imag []float64, inverse bool) {
	n := p.n

	for i := 0; i < n; i++ {
		j := p.perm[i]
		if i < j {
			real[i], real[j] = real[j], real[i]
			imag[i], imag[j] = imag[j], imag[i]
		}
	}

	for stage, size := 0, 2; size <= n; stage, size = stage+1, size<<1 {
		half := size / 2
		twRe := p.twRe[stage]
		twIm := p.twIm[stage]
		for start := 0; start < n; start += size {
			for k := 0; k < half; k++ {
				tr, ti := twRe[k], twIm[k]
				if inverse {
					ti = -ti
				}
				ur, ui := real[start+k], imag[start+k]
				vr, vi := real[start+k+half], imag[start+k+half]
				tvr := tr*vr - ti*vi
				tvi := tr*vi + ti*vr
				real[start+k] = ur + tvr
				imag[start+k] = ui + tvi
				real[start+k+half] = ur - tvr
				imag[start+k+half] = ui - tvi
			}
		}
	}

	if inverse {
		inv := 1 / float64(n)
		for i := 0; i < n; i++ {
			real[i] *= inv
			imag[i] *= inv
		}
	}
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
