package fftcore

import (
	"math"
	"sync"
)

// bluesteinPlan handles an arbitrary-length transform of size n by
// embedding it as a cyclic convolution of size m = nextPow2(2n-1),
// computed with two radix2Plan(m) calls. The chirp and kernel tables
// depend only on n, so the plan is memoized and reused across calls.
type bluesteinPlan struct {
	n, m                 int
	chirpRe, chirpIm     []float64
	kernelRe, kernelIm   []float64
}

var bluesteinCache sync.Map // map[int]*bluesteinPlan

func bluesteinPlanFor(n int) *bluesteinPlan {
	if v, ok := bluesteinCache.Load(n); ok {
		return v.(*bluesteinPlan)
	}
	p := buildBluesteinPlan(n)
	actual, _ := bluesteinCache.LoadOrStore(n, p)
	return actual.(*bluesteinPlan)
}

func buildBluesteinPlan(n int) *bluesteinPlan {
	m := nextPowerOfTwo(2*n - 1)

	chirpRe := make([]float64, n)
	chirpIm := make([]float64, n)
	for i := 0; i < n; i++ {
		angle := -math.Pi * float64(i) * float64(i) / float64(n)
		chirpRe[i] = math.Cos(angle)
		chirpIm[i] = math.Sin(angle)
	}

	kernelRe := make([]float64, m)
	kernelIm := make([]float64, m)
	kernelRe[0] = chirpRe[0]
	kernelIm[0] = -chirpIm[0]
	for i := 1; i < n; i++ {
		cr, ci := chirpRe[i], -chirpIm[i]
		kernelRe[i] = cr
		kernelIm[i] = ci
		kernelRe[m-i] = cr
		kernelIm[m-i] = ci
	}

	radix2PlanFor(m).apply(kernelRe, kernelIm, false)

	return &bluesteinPlan{
		n: n, m: m,
		chirpRe: chirpRe, chirpIm: chirpIm,
		kernelRe: kernelRe, kernelIm: kernelIm,
	}
}

// apply runs the arbitrary-length (inverse) DFT over real/imag, which
// must both have length p.n.
func (p *bluesteinPlan) apply(real, imag []float64, inverse bool) {
	n := p.n

	xr := make([]float64, n)
	xi := make([]float64, n)
	copy(xr, real[:n])
	if inverse {
		for i := 0; i < n; i++ {
			xi[i] = -imag[i]
		}
	} else {
		copy(xi, imag[:n])
	}

	aRe := make([]float64, p.m)
	aIm := make([]float64, p.m)
	for i := 0; i < n; i++ {
		cr, ci := p.chirpRe[i], p.chirpIm[i]
		aRe[i] = xr[i]*cr - xi[i]*ci
		aIm[i] = xr[i]*ci + xi[i]*cr
	}

	mp := radix2PlanFor(p.m)
	mp.apply(aRe, aIm, false)

	for i := range aRe {
		re := aRe[i]*p.kernelRe[i] - aIm[i]*p.kernelIm[i]
		im := aRe[i]*p.kernelIm[i] + aIm[i]*p.kernelRe[i]
		aRe[i], aIm[i] = re, im
	}

	mp.apply(aRe, aIm, true)

	for i := 0; i < n; i++ {
		cr, ci := p.chirpRe[i], p.chirpIm[i]
		vr, vi := aRe[i], aIm[i]
		yr := vr*cr - vi*ci
		yi := vr*ci + vi*cr
		if inverse {
			real[i] = yr / float64(n)
			imag[i] = -yi / float64(n)
		} else {
			real[i] = yr
			imag[i] = yi
		}
	}
}
