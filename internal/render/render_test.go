package render

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/LingYi0110/HifiSamplerSharp/internal/flags"
	"github.com/LingYi0110/HifiSamplerSharp/internal/renderresult"
	"github.com/LingYi0110/HifiSamplerSharp/internal/vocoder"
	"github.com/LingYi0110/HifiSamplerSharp/internal/wav"
)

func testConfig() Config {
	return Config{
		SampleRate:    16000,
		HopSize:       256,
		OriginHopSize: 64,
		NFft:          512,
		WinSize:       512,
		NumMels:       40,
		MelFMin:       40,
		MelFMax:       7000,
		Fill:          2,
		PeakLimit:     0.9,
		WaveNorm:      true,
		LoopMode:      false,
	}
}

func writeTestInput(t *testing.T, dir string, seconds float64, freq, sampleRate float64) string {
	t.Helper()
	n := int(seconds * sampleRate)
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = 0.3 * math.Sin(2*math.Pi*freq*float64(i)/sampleRate)
	}
	path := filepath.Join(dir, "input.wav")
	if err := wav.WriteMono(path, samples, int(sampleRate)); err != nil {
		t.Fatalf("WriteMono: %v", err)
	}
	return path
}

func baseRequest(input, output string) Request {
	return Request{
		InputPath:      input,
		OutputPath:     output,
		PitchMidi:      69,
		Velocity:       100,
		Flags:          flags.Default(),
		OffsetMs:       0,
		LengthMs:       500,
		ConsonantMs:    0,
		CutoffMs:       0,
		VolumePct:      100,
		TempoBpm:       120,
		PitchBendCents: []float64{0, 0},
	}
}

func newTestRenderer(cfg Config) *Renderer {
	return New(cfg, vocoder.NullVocoder{SampleRate: cfg.SampleRate, Hop: cfg.HopSize}, vocoder.PassthroughSeparator{})
}

func TestRenderProducesWavOfRequestedLength(t *testing.T) {
	dir := t.TempDir()
	input := writeTestInput(t, dir, 1.0, 220, 16000)
	output := filepath.Join(dir, "out.wav")

	r := newTestRenderer(testConfig())
	req := baseRequest(input, output)

	if err := r.Render(context.Background(), req); err != nil {
		t.Fatalf("Render: %v", err)
	}

	samples, sr, err := wav.ReadMono(output)
	if err != nil {
		t.Fatalf("ReadMono: %v", err)
	}
	if sr != 16000 {
		t.Fatalf("sample rate = %d, want 16000", sr)
	}
	wantLen := int(0.5 * 16000)
	if diff := abs(len(samples) - wantLen); diff > 2*r.Config.HopSize {
		t.Fatalf("len(samples) = %d, want near %d", len(samples), wantLen)
	}
	for i, s := range samples {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			t.Fatalf("non-finite sample at %d", i)
		}
	}
}

func TestRenderRespectsPeakLimit(t *testing.T) {
	dir := t.TempDir()
	input := writeTestInput(t, dir, 1.0, 300, 16000)
	output := filepath.Join(dir, "out.wav")

	cfg := testConfig()
	cfg.PeakLimit = 0.5
	cfg.WaveNorm = false
	r := newTestRenderer(cfg)
	req := baseRequest(input, output)

	if err := r.Render(context.Background(), req); err != nil {
		t.Fatalf("Render: %v", err)
	}

	samples, _, err := wav.ReadMono(output)
	if err != nil {
		t.Fatalf("ReadMono: %v", err)
	}
	var peak float64
	for _, s := range samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	if peak > 0.5+1e-3 {
		t.Fatalf("peak = %v, want <= 0.5", peak)
	}
}

func TestRenderNulOutputSkipsFileWrite(t *testing.T) {
	dir := t.TempDir()
	input := writeTestInput(t, dir, 0.5, 220, 16000)

	r := newTestRenderer(testConfig())
	req := baseRequest(input, "nul")

	if err := r.Render(context.Background(), req); err != nil {
		t.Fatalf("Render: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "nul")); err == nil {
		t.Fatalf("expected no output file for nul output path")
	}
}

func TestRenderUsesCacheOnSecondCall(t *testing.T) {
	dir := t.TempDir()
	input := writeTestInput(t, dir, 0.5, 220, 16000)
	output := filepath.Join(dir, "out.wav")

	r := newTestRenderer(testConfig())
	req := baseRequest(input, output)
	req.LengthMs = 200

	if err := r.Render(context.Background(), req); err != nil {
		t.Fatalf("first Render: %v", err)
	}

	sig := req.Flags.Clamp().Signature()
	melPath := filepath.Join(dir, "input_"+sig+".mel.bin")
	if _, err := os.Stat(melPath); err != nil {
		t.Fatalf("expected mel cache file at %s: %v", melPath, err)
	}

	// With the source gone, the second render can only succeed by
	// reading the cached mel/scale pair.
	if err := os.Remove(input); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := r.Render(context.Background(), req); err != nil {
		t.Fatalf("second Render: %v", err)
	}
}

type countingSeparator struct {
	calls int
}

func (c *countingSeparator) SeparateHarmonic(samples []float64) ([]float64, error) {
	c.calls++
	out := make([]float64, len(samples))
	copy(out, samples)
	return out, nil
}

func TestRenderCachesSeparatorOutput(t *testing.T) {
	dir := t.TempDir()
	input := writeTestInput(t, dir, 0.5, 220, 16000)
	output := filepath.Join(dir, "out.wav")

	sep := &countingSeparator{}
	r := New(testConfig(), vocoder.NullVocoder{SampleRate: testConfig().SampleRate, Hop: testConfig().HopSize}, sep)

	req := baseRequest(input, output)
	req.LengthMs = 200
	req.Flags.Hb = 80
	req.Flags.Hv = 100

	if err := r.Render(context.Background(), req); err != nil {
		t.Fatalf("first Render: %v", err)
	}
	if sep.calls != 1 {
		t.Fatalf("calls after first render = %d, want 1", sep.calls)
	}

	sepPath := filepath.Join(dir, "input.hnsep.bin")
	if _, err := os.Stat(sepPath); err != nil {
		t.Fatalf("expected separator cache file at %s: %v", sepPath, err)
	}

	// A different Hb value changes the mel/scale cache signature (forcing
	// feature re-extraction) but not the separator cache, which is keyed
	// by filename alone — so the separator itself should not run again.
	req.Flags.Hb = 60
	if err := r.Render(context.Background(), req); err != nil {
		t.Fatalf("second Render: %v", err)
	}
	if sep.calls != 1 {
		t.Fatalf("calls after second render = %d, want 1 (cache hit)", sep.calls)
	}
}

func TestRenderAbortsOnCancelledContext(t *testing.T) {
	dir := t.TempDir()
	input := writeTestInput(t, dir, 0.5, 220, 16000)
	output := filepath.Join(dir, "out.wav")

	r := newTestRenderer(testConfig())
	req := baseRequest(input, output)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Render(ctx, req)
	if !errors.Is(err, renderresult.ErrAborted) {
		t.Fatalf("err = %v, want ErrAborted", err)
	}
}

func TestRenderMissingInputIsNotFound(t *testing.T) {
	dir := t.TempDir()
	r := newTestRenderer(testConfig())
	req := baseRequest(filepath.Join(dir, "missing.wav"), filepath.Join(dir, "out.wav"))

	err := r.Render(context.Background(), req)
	if !errors.Is(err, renderresult.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
