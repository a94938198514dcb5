// Package melbank builds Slaney-scale triangular mel filter banks,
// area-normalized so each filter's weighted bin coverage integrates to
// one regardless of its width.
package melbank

import (
	"sync"

	"github.com/LingYi0110/HifiSamplerSharp/internal/dsp/matrix"
)

type bankKey struct {
	nMels, nFft, sampleRate int
	fMin, fMax              float64
}

var cache sync.Map // map[bankKey]*matrix.Matrix

// Build returns the nMels x (nFft/2+1) filter bank for the given
// parameters, building it once and reusing the result for identical
// parameter tuples thereafter.
func Build(nMels, nFft, sampleRate int, fMin, fMax float64) *matrix.Matrix {
	nyquist := float64(sampleRate) / 2
	if fMin < 0 {
		fMin = 0
	}
	if fMin > nyquist {
		fMin = nyquist
	}
	if fMax < fMin+1 {
		fMax = fMin + 1
	}
	if fMax > nyquist {
		fMax = nyquist
	}

	key := bankKey{nMels, nFft, sampleRate, fMin, fMax}
	if v, ok := cache.Load(key); ok {
		return v.(*matrix.Matrix)
	}

	bank := build(nMels, nFft, sampleRate, fMin, fMax)
	actual, _ := cache.LoadOrStore(key, bank)
	return actual.(*matrix.Matrix)
}

func build(nMels, nFft, sampleRate int, fMin, fMax float64) *matrix.Matrix {
	points := nMels + 2
	melMin := hzToMel(fMin)
	melMax := hzToMel(fMax)

	hzPts := make([]float64, points)
	for i := 0; i < points; i++ {
		mel := melMin + (melMax-melMin)*float64(i)/float64(points-1)
		hzPts[i] = melToHz(mel)
	}

	bins := nFft/2 + 1
	bank := matrix.New(nMels, bins)

	for m := 0; m < nMels; m++ {
		lower, center, upper := hzPts[m], hzPts[m+1], hzPts[m+2]
		norm := 0.0
		if upper > lower {
			norm = 2.0 / (upper - lower)
		}
		for b := 0; b < bins; b++ {
			hz := float64(b) * float64(sampleRate) / float64(nFft)
			tri := triangle(hz, lower, center, upper)
			w := norm * tri
			if w < 0 {
				w = 0
			}
			bank.Set(m, b, w)
		}
	}

	return bank
}

func triangle(hz, lower, center, upper float64) float64 {
	switch {
	case hz < lower || hz > upper:
		return 0
	case hz <= center:
		if center <= lower {
			return 0
		}
		return (hz - lower) / (center - lower)
	default:
		if upper <= center {
			return 0
		}
		return (upper - hz) / (upper - center)
	}
}

// hzToMel converts Hz to the Slaney mel scale.
func hzToMel(hz float64) float64 {
	const breakFreq = 1000.0
	const breakMel = breakFreq / (200.0 / 3.0)
	if hz < breakFreq {
		return hz / (200.0 / 3.0)
	}
	return breakMel + logStep(hz/breakFreq)
}

// melToHz is the inverse of hzToMel.
func melToHz(mel float64) float64 {
	const breakFreq = 1000.0
	const breakMel = breakFreq / (200.0 / 3.0)
	if mel < breakMel {
		return mel * (200.0 / 3.0)
	}
	return breakFreq * expStep(mel - breakMel)
}
