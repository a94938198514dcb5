// Package window generates analysis windows used by the STFT engine and
// mel analyzer.
//
// Only the periodic Hann window is needed by the render pipeline; window
// coefficients are expensive enough to compute (and reused often enough
// across frames of the same length) that they are cached process-wide.
package window

import (
	"math"
	"sync"
)

// cache maps a window length to its periodic Hann coefficients.
// Populated lazily and shared across all callers; entries are immutable
// once stored, so concurrent readers never race.
var cache sync.Map // map[int][]float64

// Hann returns the periodic Hann window of the given length:
//
//	w[i] = 0.5 - 0.5*cos(2*pi*i/length)
//
// A length of 1 collapses to [1]. Negative or zero lengths return nil.
// The result is memoized; callers must not mutate the returned slice.
func Hann(length int) []float64 {
	if length <= 0 {
		return nil
	}

	if v, ok := cache.Load(length); ok {
		return v.([]float64)
	}

	coeffs := generateHann(length)

	actual, _ := cache.LoadOrStore(length, coeffs)

	return actual.([]float64)
}

func generateHann(length int) []float64 {
	if length == 1 {
		return []float64{1}
	}

	out := make([]float64, length)
	den := float64(length)

	for i := range out {
		out[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/den)
	}

	return out
}
