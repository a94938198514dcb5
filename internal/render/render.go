// Package render implements the orchestrator that turns a parsed UTAU
// render request into a waveform: load-or-extract the mel feature,
// build a non-uniformly stretched time axis, resample the mel matrix
// and the pitch curve onto it, hand both to the external vocoder, and
// apply the post-effects chain.
package render

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/cwbudde/algo-vecmath"

	"github.com/LingYi0110/HifiSamplerSharp/internal/cache"
	"github.com/LingYi0110/HifiSamplerSharp/internal/dsp/hnsep"
	"github.com/LingYi0110/HifiSamplerSharp/internal/dsp/matrix"
	"github.com/LingYi0110/HifiSamplerSharp/internal/dsp/melanalyze"
	"github.com/LingYi0110/HifiSamplerSharp/internal/dsp/posteffects"
	"github.com/LingYi0110/HifiSamplerSharp/internal/dsp/resample"
	"github.com/LingYi0110/HifiSamplerSharp/internal/flags"
	"github.com/LingYi0110/HifiSamplerSharp/internal/renderresult"
	"github.com/LingYi0110/HifiSamplerSharp/internal/vocoder"
	"github.com/LingYi0110/HifiSamplerSharp/internal/wav"
)

// melFloor is the dynamic-range compression epsilon applied before
// taking the log of mel energies.
const melFloor = 1e-5

// Config mirrors the Sampler configuration section: the fixed analysis
// and synthesis parameters shared by every render on a process.
type Config struct {
	SampleRate    int
	HopSize       int
	OriginHopSize int
	NFft          int
	WinSize       int
	NumMels       int
	MelFMin       float64
	MelFMax       float64
	Fill          int
	PeakLimit     float64
	WaveNorm      bool
	LoopMode      bool
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		SampleRate:    44100,
		HopSize:       512,
		OriginHopSize: 128,
		NFft:          2048,
		WinSize:       2048,
		NumMels:       128,
		MelFMin:       40,
		MelFMax:       16000,
		Fill:          8,
		PeakLimit:     0.9,
		WaveNorm:      true,
		LoopMode:      false,
	}
}

// Request is one render call's parsed parameters.
type Request struct {
	InputPath, OutputPath string
	PitchMidi             int
	Velocity              float64
	Flags                 flags.Flags
	OffsetMs              float64
	LengthMs              float64
	ConsonantMs           float64
	CutoffMs              float64
	VolumePct             float64
	Modulation            float64
	TempoBpm              float64
	PitchBendCents        []float64
}

// Renderer runs render requests against a shared configuration and
// external vocoder/separator. A nil Separator disables harmonic/breath
// mixing entirely (samples pass through feature extraction untouched).
type Renderer struct {
	Config    Config
	Vocoder   vocoder.Vocoder
	Separator vocoder.Separator
}

// New constructs a Renderer.
func New(cfg Config, v vocoder.Vocoder, sep vocoder.Separator) *Renderer {
	return &Renderer{Config: cfg, Vocoder: v, Separator: sep}
}

// Render executes one request end to end, including the final WAV
// write. Writing to "nul" (case-insensitive) short-circuits right
// after feature extraction, reporting success without emitting audio.
func (r *Renderer) Render(ctx context.Context, req Request) error {
	f := req.Flags.Clamp()

	if err := checkCancel(ctx); err != nil {
		return err
	}

	mel, scale, err := r.feature(ctx, req.InputPath, f)
	if err != nil {
		return err
	}

	if strings.EqualFold(req.OutputPath, "nul") {
		return nil
	}

	if err := checkCancel(ctx); err != nil {
		return err
	}

	resampledMel, startSec, endSec, frameTimesMidi, midiCurve, f0, err := r.buildTimeline(mel, req, f)
	if err != nil {
		return err
	}

	out, err := r.Vocoder.SpecToWav(resampledMel, f0)
	if err != nil {
		return fmt.Errorf("render: vocoder: %w", err)
	}

	startSample := int(math.Floor(startSec * float64(r.Config.SampleRate)))
	endSample := int(math.Floor(endSec * float64(r.Config.SampleRate)))
	trimmed := trimSamples(out, startSample, endSample)

	if f.A != 0 {
		posteffects.AmplitudeFromPitch(trimmed, frameTimesMidi, midiCurve, f.A, startSec, r.Config.SampleRate)
	}

	if scale != 0 {
		vecmath.ScaleBlock(trimmed, trimmed, 1/scale)
	}

	posteffects.Growl(trimmed, r.Config.SampleRate, f.HG, startSec)

	if r.Config.WaveNorm {
		posteffects.LoudnessNormalize(trimmed, f.P)
	}

	posteffects.PeakLimit(trimmed, r.Config.PeakLimit)

	if req.VolumePct != 100 {
		vecmath.ScaleBlock(trimmed, trimmed, req.VolumePct/100)
	}

	if err := checkCancel(ctx); err != nil {
		return err
	}

	if err := wav.WriteMono(req.OutputPath, trimmed, r.Config.SampleRate); err != nil {
		return fmt.Errorf("render: writing output: %w", err)
	}
	return nil
}

// feature loads a cached mel/scale pair, or extracts and caches one.
func (r *Renderer) feature(ctx context.Context, inputPath string, f flags.Flags) (*matrix.Matrix, float64, error) {
	sig := f.Signature()

	if !f.ShouldBypassCache() {
		if mel, err := cache.LoadMel(inputPath, sig); err == nil {
			if scale, err := cache.LoadScale(inputPath, sig); err == nil {
				return mel, scale, nil
			}
		}
	}

	if err := checkCancel(ctx); err != nil {
		return nil, 0, err
	}

	samples, srcRate, err := wav.ReadMono(inputPath)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s: %v", renderresult.ErrNotFound, inputPath, err)
	}
	if srcRate != r.Config.SampleRate {
		res, err := resample.NewForRates(float64(srcRate), float64(r.Config.SampleRate), resample.WithQuality(resample.QualityBest))
		if err != nil {
			return nil, 0, fmt.Errorf("render: building resampler: %w", err)
		}
		samples, err = res.Resample(samples)
		if err != nil {
			return nil, 0, fmt.Errorf("render: resampling source: %w", err)
		}
	}

	harmonic := samples
	mixed := samples
	if r.Separator != nil && hnsep.Engaged(f.Hb, f.Hv, f.Ht) {
		cached := false
		if !f.ShouldBypassCache() {
			if h, err := cache.LoadSep(inputPath, len(samples)); err == nil {
				harmonic = h
				cached = true
			}
		}
		if !cached {
			if h, err := r.Separator.SeparateHarmonic(samples); err == nil {
				harmonic = h
				_ = cache.SaveSep(inputPath, harmonic)
			}
		}
		mixed = hnsep.ApplyFlags(samples, harmonic, f.Hb, f.Hv, f.Ht)
	}

	scale := 1.0
	if peak := peakAbs(mixed); peak >= 0.5 {
		scale = 0.5 / peak
		vecmath.ScaleBlock(mixed, mixed, scale)
	}

	if err := checkCancel(ctx); err != nil {
		return nil, 0, err
	}

	mel, err := melanalyze.Extract(mixed, float64(f.G_)/100, 1, melanalyze.Params{
		NFft:       r.Config.NFft,
		WinLen:     r.Config.WinSize,
		Hop:        r.Config.OriginHopSize,
		SampleRate: r.Config.SampleRate,
		NumMels:    r.Config.NumMels,
		MelFMin:    r.Config.MelFMin,
		MelFMax:    r.Config.MelFMax,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("render: mel extraction: %w", err)
	}

	for rIdx := 0; rIdx < mel.Rows(); rIdx++ {
		row := mel.Row(rIdx)
		for c, v := range row {
			row[c] = math.Log(math.Max(melFloor, v))
		}
	}

	_ = cache.SaveMel(inputPath, sig, mel)
	_ = cache.SaveScale(inputPath, sig, scale)

	return mel, scale, nil
}

func checkCancel(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", renderresult.ErrAborted, err)
	}
	return nil
}

func trimSamples(x []float64, start, end int) []float64 {
	if end < start {
		end = start
	}
	if start < 0 {
		start = 0
	}
	if start > len(x) {
		start = len(x)
	}
	if end > len(x) {
		end = len(x)
	}
	out := make([]float64, end-start)
	copy(out, x[start:end])
	return out
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
