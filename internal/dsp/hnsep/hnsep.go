// Package hnsep bridges the mono render pipeline to an opaque
// harmonic/noise mask model: it frames the signal with the STFT,
// hands the complex spectrogram to the model, multiplies the returned
// mask back in, and reconstructs with the inverse STFT. It also mixes
// the separated harmonic/breath streams according to the tension and
// gain flags.
package hnsep

import (
	"github.com/cwbudde/algo-vecmath"

	"github.com/LingYi0110/HifiSamplerSharp/internal/dsp/stft"
	"github.com/LingYi0110/HifiSamplerSharp/internal/dsp/window"
)

const (
	nFft   = 2048
	hop    = 512
	winLen = 2048
)

// MaskModel predicts a complex mask over a spectrogram. real and imag
// are row-major bins x frames; the returned maskRe/maskIm must have
// the same length.
type MaskModel interface {
	Predict(real, imag []float64, bins, frames int) (maskRe, maskIm []float64, err error)
}

// Separate returns the harmonic component of samples. Any model or
// transform failure falls back to returning an unmodified copy of
// samples, reported via the second return value.
func Separate(samples []float64, model MaskModel) (harmonic []float64, fellBack bool) {
	fallback := func() ([]float64, bool) {
		out := make([]float64, len(samples))
		copy(out, samples)
		return out, true
	}

	win := window.Hann(winLen)
	spec, err := stft.Forward(samples, nFft, hop, winLen, win, true)
	if err != nil {
		return fallback()
	}

	maskRe, maskIm, err := model.Predict(spec.Real, spec.Imag, spec.Bins, spec.Frames)
	if err != nil || len(maskRe) != len(spec.Real) || len(maskIm) != len(spec.Imag) {
		return fallback()
	}

	outRe := make([]float64, len(spec.Real))
	outIm := make([]float64, len(spec.Imag))
	complexMultiply(outRe, outIm, spec.Real, spec.Imag, maskRe, maskIm)

	masked := &stft.Result{Real: outRe, Imag: outIm, Bins: spec.Bins, Frames: spec.Frames}
	out, err := stft.Inverse(masked, nFft, hop, winLen, win, true, len(samples))
	if err != nil {
		return fallback()
	}
	return out, false
}

func complexMultiply(outRe, outIm, aRe, aIm, bRe, bIm []float64) {
	n := len(aRe)
	t1 := make([]float64, n)
	t2 := make([]float64, n)

	vecmath.MulBlock(t1, aRe, bRe)
	vecmath.MulBlock(t2, aIm, bIm)
	vecmath.ScaleBlock(t2, t2, -1)
	vecmath.AddBlock(outRe, t1, t2)

	vecmath.MulBlock(t1, aRe, bIm)
	vecmath.MulBlock(t2, aIm, bRe)
	vecmath.AddBlock(outIm, t1, t2)
}

// Engaged reports whether the harmonic/breath mix depends on the
// separated stream. With ht == 0 and hb == hv the mix reduces to a
// plain hb/100 gain on the original, so callers can skip invoking
// Separate entirely.
func Engaged(hb, hv, ht int) bool {
	return ht != 0 || hb != hv
}

// ApplyFlags mixes the breath residual (original-separated) and the
// voiced component according to the breath/voice gains, applying a
// one-pole tension pre-emphasis to the voiced component when ht != 0.
// hb and hv are already-clamped percentages in [0,500] and [0,150].
func ApplyFlags(original, separated []float64, hb, hv, ht int) []float64 {
	n := len(original)
	out := make([]float64, n)

	hbf := float64(hb) / 100
	hvf := float64(hv) / 100

	voiced := separated
	if ht != 0 {
		voiced = preEmphasize(separated, ht)
	}

	for i := 0; i < n; i++ {
		breath := original[i] - separated[i]
		out[i] = hbf*breath + hvf*voiced[i]
	}
	return out
}

func preEmphasize(voiced []float64, ht int) []float64 {
	tensionScale := -float64(ht) / 50
	lowBlend := clamp(tensionScale/2, -1, 1)

	out := make([]float64, len(voiced))
	var prev float64
	for i, v := range voiced {
		out[i] = v + lowBlend*(v-0.95*prev)
		prev = v
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
