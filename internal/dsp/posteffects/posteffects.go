// Package posteffects implements the render pipeline's post-processing
// chain: pitch-linked amplitude modulation, growl, RMS-based loudness
// normalization (deliberately not a full loudness-units meter), and
// peak limiting.
package posteffects

import (
	"math"

	"github.com/cwbudde/algo-vecmath"

	"github.com/LingYi0110/HifiSamplerSharp/internal/dsp/core"
)

// AmplitudeFromPitch multiplies samples in place by a gain curve
// derived from the symmetric derivative of the MIDI-space pitch
// contour (frameTimes, midi). aFlag is the amplitude-depth knob,
// already clamped to [-100,100]. startSec is the time of samples[0].
func AmplitudeFromPitch(samples []float64, frameTimes, midi []float64, aFlag int, startSec float64, sampleRate int) {
	n := len(frameTimes)
	if n == 0 || len(samples) == 0 {
		return
	}

	gain := make([]float64, n)
	for i := 0; i < n; i++ {
		lo, hi := i-1, i+1
		if lo < 0 {
			lo = 0
		}
		if hi > n-1 {
			hi = n - 1
		}
		dt := frameTimes[hi] - frameTimes[lo]
		var deriv float64
		if dt > 0 {
			deriv = (midi[hi] - midi[lo]) / dt
		}
		gain[i] = math.Pow(5, 1e-4*float64(aFlag)*deriv)
	}

	for j := range samples {
		tSec := startSec + float64(j)/float64(sampleRate)
		samples[j] *= interp1(frameTimes, gain, tSec)
	}
}

// Growl applies a one-pole 400 Hz highpass and modulates the
// highpassed band with an 80 Hz square LFO, recombining it with the
// untouched low band. hg is the growl-strength knob in [0,100];
// hg <= 0 is a no-op. startSec is the time of samples[0], so the LFO
// phase stays consistent with the surrounding render.
func Growl(samples []float64, sampleRate int, hg int, startSec float64) {
	if hg <= 0 || len(samples) == 0 {
		return
	}

	const cutoffHz = 400.0
	rc := 1 / (2 * math.Pi * cutoffHz)
	dt := 1 / float64(sampleRate)
	alpha := rc / (rc + dt)

	highpassed := make([]float64, len(samples))
	var prevIn, prevHp float64
	for i, x := range samples {
		y := core.FlushDenormals(alpha * (prevHp + x - prevIn))
		highpassed[i] = y
		prevHp = y
		prevIn = x
	}

	hgf := float64(hg) / 100
	for i, x := range samples {
		t := startSec + float64(i)/float64(sampleRate)
		lfo := squareSign(math.Sin(2 * math.Pi * 80 * t))
		band := highpassed[i] * (1 + 0.15*hgf*lfo)
		samples[i] = (x - highpassed[i]) + band
	}
}

// LoudnessNormalize blends samples toward a target RMS of
// approximately -16 dB, then caps the peak at approximately -1 dB if
// the blend pushed it over. p is the blend-strength knob in [0,100].
func LoudnessNormalize(samples []float64, p int) {
	if len(samples) == 0 {
		return
	}
	targetRMS := core.DBToLinear(-16)
	ceiling := core.DBToLinear(-1)

	cur := rms(samples)
	if cur <= 0 {
		return
	}

	blend := 1 + (targetRMS/cur-1)*(float64(p)/100)
	vecmath.ScaleBlock(samples, samples, blend)

	if peak := peakAbs(samples); peak > ceiling {
		vecmath.ScaleBlock(samples, samples, ceiling/peak)
	}
}

// PeakLimit scales samples down so their peak does not exceed limit.
func PeakLimit(samples []float64, limit float64) {
	if limit <= 0 || len(samples) == 0 {
		return
	}
	peak := peakAbs(samples)
	if peak > limit && peak > 1e-8 {
		vecmath.ScaleBlock(samples, samples, limit/peak)
	}
}

func squareSign(v float64) float64 {
	if v >= 0 {
		return 1
	}
	return -1
}

func rms(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

func peakAbs(x []float64) float64 {
	var peak float64
	for _, v := range x {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	return peak
}

// interp1 linearly interpolates y(x) at xi, clamping to the nearest
// edge value outside [x[0], x[len(x)-1]].
func interp1(x, y []float64, xi float64) float64 {
	n := len(x)
	if n == 0 {
		return 0
	}
	if n == 1 || xi <= x[0] {
		return y[0]
	}
	if xi >= x[n-1] {
		return y[n-1]
	}
	lo, hi := 0, n-1
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if x[mid] <= xi {
			lo = mid
		} else {
			hi = mid
		}
	}
	span := x[hi] - x[lo]
	if span <= 0 {
		return y[lo]
	}
	frac := (xi - x[lo]) / span
	return y[lo] + frac*(y[hi]-y[lo])
}
