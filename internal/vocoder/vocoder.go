// Package vocoder defines the polymorphic seam between the render
// core and the external neural inference runtime: a mel-spectrogram
// -to-waveform vocoder and a harmonic/noise separator. Both are
// genuinely external collaborators in production; this package also
// provides deterministic stand-ins so the pipeline is runnable and
// testable without one.
package vocoder

import (
	"fmt"
	"math"

	"github.com/LingYi0110/HifiSamplerSharp/internal/dsp/hnsep"
	"github.com/LingYi0110/HifiSamplerSharp/internal/dsp/matrix"
)

// Vocoder turns a mel spectrogram and an aligned f0 contour (one value
// per mel frame, in Hz, 0 for unvoiced) into a waveform.
type Vocoder interface {
	SpecToWav(mel *matrix.Matrix, f0 []float64) ([]float64, error)
}

// Separator splits mono samples into their harmonic component.
type Separator interface {
	SeparateHarmonic(samples []float64) ([]float64, error)
}

// NullVocoder is a direct mel-energy resynthesis: it drives a single
// continuously-phased sine per frame at f0, amplitude-modulated by the
// frame's mean mel energy. It carries no formant shaping and is not a
// substitute for a trained vocoder; it exists so the render pipeline
// has a real, deterministic waveform to produce in the absence of an
// inference runtime.
type NullVocoder struct {
	SampleRate int
	Hop        int
}

// SpecToWav implements Vocoder.
func (v NullVocoder) SpecToWav(mel *matrix.Matrix, f0 []float64) ([]float64, error) {
	frames := mel.Cols()
	if frames == 0 {
		return nil, nil
	}
	if len(f0) != frames {
		return nil, fmt.Errorf("vocoder: f0 length %d does not match frame count %d", len(f0), frames)
	}
	if v.Hop < 1 {
		return nil, fmt.Errorf("vocoder: invalid hop %d", v.Hop)
	}

	amp := make([]float64, frames)
	for c := 0; c < frames; c++ {
		var sum float64
		for r := 0; r < mel.Rows(); r++ {
			sum += math.Exp(mel.At(r, c))
		}
		amp[c] = math.Sqrt(sum / float64(mel.Rows()))
	}

	n := frames * v.Hop
	out := make([]float64, n)
	var phase float64
	for i := 0; i < n; i++ {
		pos := float64(i) / float64(v.Hop)
		f := interpFrames(f0, pos)
		a := interpFrames(amp, pos)
		phase += 2 * math.Pi * f / float64(v.SampleRate)
		out[i] = a * math.Sin(phase)
	}
	return out, nil
}

func interpFrames(v []float64, pos float64) float64 {
	n := len(v)
	if n == 0 {
		return 0
	}
	if pos <= 0 {
		return v[0]
	}
	if pos >= float64(n-1) {
		return v[n-1]
	}
	lo := int(pos)
	frac := pos - float64(lo)
	return v[lo]*(1-frac) + v[lo+1]*frac
}

// PassthroughSeparator wires the harmonic/noise separator bridge
// (internal/dsp/hnsep) with an identity mask, so samples pass through
// the real STFT/ISTFT roundtrip unmodified. It stands in for a trained
// mask model.
type PassthroughSeparator struct{}

// SeparateHarmonic implements Separator.
func (PassthroughSeparator) SeparateHarmonic(samples []float64) ([]float64, error) {
	harmonic, _ := hnsep.Separate(samples, identityMask{})
	return harmonic, nil
}

type identityMask struct{}

func (identityMask) Predict(real, imag []float64, bins, frames int) ([]float64, []float64, error) {
	maskRe := make([]float64, len(real))
	for i := range maskRe {
		maskRe[i] = 1
	}
	maskIm := make([]float64, len(imag))
	return maskRe, maskIm, nil
}
