package render

import (
	"math"

	"github.com/LingYi0110/HifiSamplerSharp/internal/dsp/akima"
	"github.com/LingYi0110/HifiSamplerSharp/internal/dsp/matrix"
	"github.com/LingYi0110/HifiSamplerSharp/internal/flags"
)

// buildTimeline runs the non-uniform time-stretch: it builds the
// source and stretched time axes, resamples the mel matrix onto the
// warped frame times, and constructs the aligned pitch/f0 curve. It
// returns the resampled mel ready for the vocoder, the [startSec,
// endSec) window the synthesized waveform should be trimmed to, the
// frame times and midi curve used by the amplitude-from-pitch effect,
// and the f0 contour in Hz.
func (r *Renderer) buildTimeline(mel *matrix.Matrix, req Request, f flags.Flags) (resampled *matrix.Matrix, startSec, endSec float64, frameTimes, midiCurve, f0 []float64, err error) {
	thopOrigin := float64(r.Config.OriginHopSize) / float64(r.Config.SampleRate)
	thop := float64(r.Config.HopSize) / float64(r.Config.SampleRate)

	tAreaOrigin := buildAreaTimes(mel.Cols(), thopOrigin)

	vel := math.Pow(2, 1-req.Velocity/100)
	start := req.OffsetMs / 1000
	cutoffSec := req.CutoffMs / 1000
	totalTime := tAreaOrigin[len(tAreaOrigin)-1] + thopOrigin/2
	var end float64
	if req.CutoffMs < 0 {
		end = start - cutoffSec
	} else {
		end = totalTime - cutoffSec
	}
	con := start + req.ConsonantMs/1000
	lengthReq := req.LengthMs / 1000
	stretchLength := end - con

	if r.Config.LoopMode || f.LoopMode {
		mel, tAreaOrigin = applyLoopMode(mel, tAreaOrigin, thopOrigin, con, end, lengthReq)
		totalTime = tAreaOrigin[len(tAreaOrigin)-1] + thopOrigin/2
		padLoopSize := int(math.Floor(lengthReq/thopOrigin)) + 1
		stretchLength = float64(padLoopSize) * thopOrigin
	}

	scalingRatio := 1.0
	if stretchLength < lengthReq && stretchLength > 1e-8 {
		scalingRatio = lengthReq / stretchLength
	}
	stretchedNFrames := int(math.Floor((con*vel+(totalTime-con)*scalingRatio)/thop)) + 1
	if stretchedNFrames < 1 {
		stretchedNFrames = 1
	}

	startLeftMelFrames := int(math.Floor((start*vel + thop/2) / thop))
	cutLeftMelFrames := maxi(0, startLeftMelFrames-r.Config.Fill)
	endRightMelFrames := stretchedNFrames - int(math.Floor((lengthReq+con*vel+thop/2)/thop))
	cutRightMelFrames := maxi(0, endRightMelFrames-r.Config.Fill)

	keepStart := mini(cutLeftMelFrames, stretchedNFrames)
	keepEnd := stretchedNFrames - cutRightMelFrames
	if keepEnd < keepStart {
		keepEnd = keepStart
	}
	nKept := keepEnd - keepStart

	srcLast := tAreaOrigin[len(tAreaOrigin)-1]
	warped := make([]float64, nKept)
	for i := 0; i < nKept; i++ {
		k := keepStart + i
		t := float64(k)*thop + thop/2
		var tp float64
		if t < vel*con {
			tp = t / vel
		} else {
			tp = con + (t-vel*con)/scalingRatio
		}
		warped[i] = clampf(tp, 0, srcLast)
	}

	resampled = matrix.New(mel.Rows(), nKept)
	for row := 0; row < mel.Rows(); row++ {
		src := mel.Row(row)
		dst := resampled.Row(row)
		for i, t := range warped {
			dst[i] = interp1(tAreaOrigin, src, t)
		}
	}

	startSec = start*vel - float64(cutLeftMelFrames)*thop
	endSec = lengthReq + con*vel - float64(cutLeftMelFrames)*thop

	frameTimes = make([]float64, nKept)
	for i := range frameTimes {
		frameTimes[i] = float64(i) * thop
	}

	midiCurve, f0, err = pitchCurve(req, frameTimes, startSec)
	if err != nil {
		return nil, 0, 0, nil, nil, nil, err
	}

	return resampled, startSec, endSec, frameTimes, midiCurve, f0, nil
}

// pitchCurve builds the per-frame MIDI pitch and f0 contour from the
// pitch-bend knots, Akima-interpolated onto frameTimes.
func pitchCurve(req Request, frameTimes []float64, startSec float64) (midi, f0 []float64, err error) {
	tempo := req.TempoBpm
	if tempo <= 0 {
		tempo = 120
	}

	n := len(req.PitchBendCents)
	midi = make([]float64, len(frameTimes))

	if n < 2 {
		m := float64(req.PitchMidi) + float64(req.Flags.T)/100
		if n == 1 {
			m = float64(req.PitchMidi) + req.PitchBendCents[0]/100 + float64(req.Flags.T)/100
		}
		for i := range midi {
			midi[i] = m
		}
	} else {
		tPitch := make([]float64, n)
		mPitch := make([]float64, n)
		for i := 0; i < n; i++ {
			tPitch[i] = 60*float64(i)/(tempo*96) + startSec
			mPitch[i] = float64(req.PitchMidi) + req.PitchBendCents[i]/100 + float64(req.Flags.T)/100
		}
		interp, ierr := akima.New(tPitch, mPitch)
		if ierr != nil {
			return nil, nil, ierr
		}
		for i, t := range frameTimes {
			midi[i] = interp.Eval(t)
		}
	}

	f0 = make([]float64, len(midi))
	for i, m := range midi {
		f0[i] = 440 * math.Pow(2, (m-69)/12)
	}
	return midi, f0, nil
}

func buildAreaTimes(n int, thop float64) []float64 {
	if n < 1 {
		n = 1
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)*thop + thop/2
	}
	return out
}

// applyLoopMode extracts the mel column window covering [con, end],
// reflect-pads it on the right by padLoopSize columns, and
// concatenates it after the unchanged prefix [0, left).
func applyLoopMode(mel *matrix.Matrix, tAreaOrigin []float64, thopOrigin, con, end, lengthReq float64) (*matrix.Matrix, []float64) {
	left := clampi(int(math.Floor(con/thopOrigin)), 0, mel.Cols())
	right := clampi(int(math.Ceil(end/thopOrigin)), left, mel.Cols())
	winLen := right - left
	if winLen < 1 {
		winLen = 1
		right = left + 1
		if right > mel.Cols() {
			right = mel.Cols()
			left = right - 1
			if left < 0 {
				left = 0
			}
		}
	}

	padLoopSize := int(math.Floor(lengthReq/thopOrigin)) + 1
	fullLen := winLen + padLoopSize
	newCols := left + fullLen

	out := matrix.New(mel.Rows(), newCols)
	for row := 0; row < mel.Rows(); row++ {
		src := mel.Row(row)
		dst := out.Row(row)
		copy(dst[:left], src[:left])
		for j := 0; j < fullLen; j++ {
			col := left + reflectBounce(j, winLen)
			dst[left+j] = src[col]
		}
	}

	newTimes := buildAreaTimes(newCols, thopOrigin)
	return out, newTimes
}

// reflectBounce maps an index j in [0, n+pad) onto [0, n) by bouncing
// at the boundary once j reaches n, matching the STFT boundary
// reflection used elsewhere in the pipeline.
func reflectBounce(j, n int) int {
	if n <= 1 {
		return 0
	}
	period := 2 * (n - 1)
	if period <= 0 {
		return 0
	}
	m := j % period
	if m < 0 {
		m += period
	}
	if m < n {
		return m
	}
	return period - m
}

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

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampi(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxi(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func mini(a, b int) int {
	if a < b {
		return a
	}
	return b
}
