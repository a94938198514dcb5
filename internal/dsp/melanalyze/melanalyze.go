// Package melanalyze extracts a pitch-shifted, formant-preserving mel
// spectrogram: the FFT/window/hop sizes are scaled by the pitch-shift
// ratio before analysis, then the resulting bin axis is rescaled back
// to the configured resolution before mel projection. This keeps the
// spectral envelope (formants) where the source put them while the
// implicit pitch axis moves.
package melanalyze

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-vecmath"

	"github.com/LingYi0110/HifiSamplerSharp/internal/dsp/matrix"
	"github.com/LingYi0110/HifiSamplerSharp/internal/dsp/melbank"
	"github.com/LingYi0110/HifiSamplerSharp/internal/dsp/stft"
	"github.com/LingYi0110/HifiSamplerSharp/internal/dsp/window"
)

// Params holds the base analysis configuration; all fields come from
// the renderer config and stay fixed across a process's lifetime.
type Params struct {
	NFft, WinLen, Hop, SampleRate, NumMels int
	MelFMin, MelFMax                       float64
}

// Extract computes the nMels x frames mel spectrogram of samples under
// a pitch shift of keyShift semitones and a hop-time-scale of speed.
func Extract(samples []float64, keyShift, speed float64, p Params) (*matrix.Matrix, error) {
	factor := math.Pow(2, keyShift/12)

	nFftNew := roundInt(float64(p.NFft) * factor)
	winLenNew := roundInt(float64(p.WinLen) * factor)
	hopNew := roundInt(float64(p.Hop) * speed)
	if nFftNew < 2 {
		nFftNew = 2
	}
	if winLenNew < 1 {
		winLenNew = 1
	}
	if winLenNew > nFftNew {
		winLenNew = nFftNew
	}
	if hopNew < 1 {
		hopNew = 1
	}

	padLeft := (winLenNew - hopNew) / 2
	padRight := (winLenNew - hopNew + 1) / 2
	if padLeft < 0 {
		padLeft = 0
	}
	if padRight < 0 {
		padRight = 0
	}
	padded := stft.ReflectPad(samples, padLeft, padRight)

	win := window.Hann(winLenNew)
	spec, err := stft.Forward(padded, nFftNew, hopNew, winLenNew, win, false)
	if err != nil {
		return nil, fmt.Errorf("melanalyze: %w", err)
	}

	mag := magnitude(spec)

	targetBins := p.NFft/2 + 1
	rescaled := mag
	if factor != 1 || targetBins != mag.Rows() {
		rescaled = rescaleBins(mag, targetBins, factor)
	}

	bank := melbank.Build(p.NumMels, p.NFft, p.SampleRate, p.MelFMin, p.MelFMax)
	return matrix.Multiply(bank, rescaled), nil
}

// magnitude computes sqrt(re^2+im^2) bin-by-bin, using element-wise
// vector ops for the squaring and summation stages.
func magnitude(spec *stft.Result) *matrix.Matrix {
	n := len(spec.Real)
	sq := make([]float64, n)
	tmp := make([]float64, n)
	vecmath.MulBlock(sq, spec.Real, spec.Real)
	vecmath.MulBlock(tmp, spec.Imag, spec.Imag)
	vecmath.AddBlockInPlace(sq, tmp)

	for i := 0; i < n; i++ {
		sq[i] = math.Sqrt(sq[i])
	}

	out := matrix.New(spec.Bins, spec.Frames)
	for r := 0; r < spec.Bins; r++ {
		copy(out.Row(r), sq[r*spec.Frames:(r+1)*spec.Frames])
	}
	return out
}

// rescaleBins linearly interpolates mag's bin axis (rows) onto
// targetBins rows, sampling source row position r/factor for each
// target row r. Positions outside [0, srcBins-1] remain zero.
func rescaleBins(mag *matrix.Matrix, targetBins int, factor float64) *matrix.Matrix {
	srcBins := mag.Rows()
	frames := mag.Cols()
	out := matrix.New(targetBins, frames)

	for r := 0; r < targetBins; r++ {
		pos := float64(r) / factor
		if pos < 0 || pos > float64(srcBins-1) {
			continue
		}
		lo := int(math.Floor(pos))
		hi := lo + 1
		frac := pos - float64(lo)
		if hi >= srcBins {
			hi = lo
			frac = 0
		}
		loRow := mag.Row(lo)
		hiRow := mag.Row(hi)
		outRow := out.Row(r)
		for c := 0; c < frames; c++ {
			outRow[c] = loRow[c]*(1-frac) + hiRow[c]*frac
		}
	}
	return out
}

func roundInt(v float64) int {
	return int(math.Floor(v + 0.5))
}
