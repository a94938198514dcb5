// Package stft implements the forward short-time Fourier transform and
// its overlap-add inverse, on top of the fftcore transform. The
// spectrogram is stored row-major as bins x frames, where
// bins = nFft/2 + 1.
package stft

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/LingYi0110/HifiSamplerSharp/internal/dsp/fftcore"
)

// frameParallelThreshold is the frame count above which forward STFT
// dispatches frames to a worker pool instead of running sequentially.
const frameParallelThreshold = 32

// frameScratch holds the matched real/imaginary pair a single frame's
// transform needs. getScratch zeroes both slices on every checkout, so
// pooled instances never leak data between frames.
type frameScratch struct {
	re, im []float64
}

// scratchPool recycles frameScratch values across frames, avoiding one
// allocation pair per frame when Forward dispatches frame-parallel or
// Inverse walks its frame loop.
var scratchPool = sync.Pool{
	New: func() any { return &frameScratch{} },
}

func getScratch(n int) *frameScratch {
	s := scratchPool.Get().(*frameScratch)
	s.re = resizeZeroed(s.re, n)
	s.im = resizeZeroed(s.im, n)
	return s
}

func putScratch(s *frameScratch) {
	scratchPool.Put(s)
}

func resizeZeroed(buf []float64, n int) []float64 {
	if cap(buf) >= n {
		buf = buf[:n]
	} else {
		buf = make([]float64, n)
	}
	for i := range buf {
		buf[i] = 0
	}
	return buf
}

// Result is a one-sided complex spectrogram: bins rows by frames
// columns, row-major.
type Result struct {
	Real, Imag []float64
	Bins       int
	Frames     int
}

// Forward computes the STFT of signal. window must have at least
// winLen coefficients; only window[0:winLen] is used. If center, the
// signal is reflect-padded by nFft/2 samples on each side before
// framing.
func Forward(signal []float64, nFft, hop, winLen int, window []float64, center bool) (*Result, error) {
	if nFft < 2 {
		return nil, fmt.Errorf("stft: invalid nFft: %d", nFft)
	}
	if winLen > nFft {
		return nil, fmt.Errorf("stft: winLen %d exceeds nFft %d", winLen, nFft)
	}
	if len(window) < winLen {
		return nil, fmt.Errorf("stft: window buffer too small: have %d, need %d", len(window), winLen)
	}

	padded := signal
	if center {
		padded = ReflectPad(signal, nFft/2, nFft/2)
	}

	effHop := hop
	if effHop < 1 {
		effHop = 1
	}

	var frames int
	if len(padded) >= nFft {
		frames = 1 + (len(padded)-nFft)/effHop
	} else {
		frames = 1
	}
	bins := nFft/2 + 1

	out := &Result{
		Real:   make([]float64, bins*frames),
		Imag:   make([]float64, bins*frames),
		Bins:   bins,
		Frames: frames,
	}

	frame := func(f int) {
		s := getScratch(nFft)
		defer putScratch(s)
		re, im := s.re, s.im

		start := f * effHop
		for i := 0; i < winLen; i++ {
			idx := start + i
			if idx < len(padded) {
				re[i] = padded[idx] * window[i]
			}
		}
		fftcore.Forward(re, im)
		for b := 0; b < bins; b++ {
			out.Real[b*frames+f] = re[b]
			out.Imag[b*frames+f] = im[b]
		}
	}

	if frames >= frameParallelThreshold && runtime.GOMAXPROCS(0) > 1 {
		var wg sync.WaitGroup
		sem := make(chan struct{}, runtime.GOMAXPROCS(0))
		for f := 0; f < frames; f++ {
			wg.Add(1)
			sem <- struct{}{}
			go func(f int) {
				defer wg.Done()
				defer func() { <-sem }()
				frame(f)
			}(f)
		}
		wg.Wait()
	} else {
		for f := 0; f < frames; f++ {
			frame(f)
		}
	}

	return out, nil
}

// Inverse runs the overlap-add inverse STFT. expectedLength, if > 0,
// truncates or zero-extends the result after center-trimming.
func Inverse(spec *Result, nFft, hop, winLen int, window []float64, center bool, expectedLength int) ([]float64, error) {
	wantBins := nFft/2 + 1
	if spec.Bins != wantBins {
		return nil, fmt.Errorf("stft: bin count mismatch: have %d, want %d", spec.Bins, wantBins)
	}
	if len(spec.Real) != spec.Bins*spec.Frames || len(spec.Imag) != spec.Bins*spec.Frames {
		return nil, fmt.Errorf("stft: spectrogram buffer size mismatch")
	}
	if winLen > nFft {
		return nil, fmt.Errorf("stft: winLen %d exceeds nFft %d", winLen, nFft)
	}
	if len(window) < winLen {
		return nil, fmt.Errorf("stft: window buffer too small: have %d, need %d", len(window), winLen)
	}

	effHop := hop
	if effHop < 1 {
		effHop = 1
	}

	frames := spec.Frames
	bins := spec.Bins
	outLen := 0
	if frames > 0 {
		outLen = (frames-1)*effHop + nFft
	}

	output := make([]float64, outLen)
	windowSumSquare := make([]float64, outLen)

	s := getScratch(nFft)
	defer putScratch(s)
	re, im := s.re, s.im

	for f := 0; f < frames; f++ {
		for b := 0; b < bins; b++ {
			re[b] = spec.Real[b*frames+f]
			im[b] = spec.Imag[b*frames+f]
		}
		for k := bins; k < nFft; k++ {
			src := nFft - k
			re[k] = re[src]
			im[k] = -im[src]
		}

		fftcore.Inverse(re, im)

		start := f * effHop
		for i := 0; i < winLen; i++ {
			output[start+i] += re[i] * window[i]
			windowSumSquare[start+i] += window[i] * window[i]
		}
	}

	for j := range output {
		if windowSumSquare[j] > 1e-8 {
			output[j] /= windowSumSquare[j]
		}
	}

	if center {
		half := nFft / 2
		start := half
		end := len(output) - half
		if start > len(output) {
			start = len(output)
		}
		if end < start {
			end = start
		}
		output = output[start:end]
	}

	if expectedLength > 0 {
		output = fitLength(output, expectedLength)
	}

	return output, nil
}

func fitLength(x []float64, n int) []float64 {
	if len(x) == n {
		return x
	}
	if len(x) > n {
		return x[:n]
	}
	out := make([]float64, n)
	copy(out, x)
	return out
}

// ReflectPad pads x by padLeft samples on the left and padRight on the
// right using boundary-reflection: indices bounce off the two edges of
// x until they land in range. A length-1 input collapses every padded
// index to 0.
func ReflectPad(x []float64, padLeft, padRight int) []float64 {
	n := len(x)
	out := make([]float64, padLeft+n+padRight)
	for i := range out {
		out[i] = x[reflectIndex(i-padLeft, n)]
	}
	return out
}

func reflectIndex(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * (n - 1)
	i %= period
	if i < 0 {
		i += period
	}
	if i < n {
		return i
	}
	return period - i
}
