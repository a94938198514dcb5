package server

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/LingYi0110/HifiSamplerSharp/internal/render"
	"github.com/LingYi0110/HifiSamplerSharp/internal/vocoder"
	"github.com/LingYi0110/HifiSamplerSharp/internal/wav"
)

func testRenderer() *render.Renderer {
	cfg := render.Config{
		SampleRate: 16000, HopSize: 256, OriginHopSize: 64,
		NFft: 512, WinSize: 512, NumMels: 40,
		MelFMin: 40, MelFMax: 7000, Fill: 2,
		PeakLimit: 0.9, WaveNorm: true, LoopMode: false,
	}
	return render.New(cfg, vocoder.NullVocoder{SampleRate: cfg.SampleRate, Hop: cfg.HopSize}, vocoder.PassthroughSeparator{})
}

func writeInput(t *testing.T, dir string) string {
	t.Helper()
	n := 16000
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = 0.2 * math.Sin(2*math.Pi*220*float64(i)/16000)
	}
	path := filepath.Join(dir, "in.wav")
	if err := wav.WriteMono(path, samples, 16000); err != nil {
		t.Fatalf("WriteMono: %v", err)
	}
	return path
}

func TestHandleStatusReportsReady(t *testing.T) {
	s := New(testRenderer(), 2)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "Server Ready" {
		t.Fatalf("body = %q, want %q", rec.Body.String(), "Server Ready")
	}
}

func TestHandleStatusReportsInitializing(t *testing.T) {
	s := New(testRenderer(), 2)
	s.SetReady(false)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if rec.Body.String() != "Server Initializing" {
		t.Fatalf("body = %q, want %q", rec.Body.String(), "Server Initializing")
	}
}

func TestHandleRenderSuccess(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir)
	output := filepath.Join(dir, "out.wav")

	s := New(testRenderer(), 2)
	body := requestBody{
		InputFile: input, OutputFile: output,
		PitchMidi: 69, Velocity: 100,
		Flags:          requestFlags{Hb: 100, Hv: 100},
		Length:         500,
		Tempo:          120,
		PitchBendCents: []float64{0, 0},
	}
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(data))
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %q", rec.Code, rec.Body.String())
	}
	if _, err := os.Stat(output); err != nil {
		t.Fatalf("expected output file: %v", err)
	}
}

func TestHandleRenderMissingInputReturns404(t *testing.T) {
	dir := t.TempDir()
	s := New(testRenderer(), 2)
	body := requestBody{
		InputFile: filepath.Join(dir, "missing.wav"), OutputFile: filepath.Join(dir, "out.wav"),
		PitchMidi: 69, Velocity: 100, Length: 500, Tempo: 120,
		PitchBendCents: []float64{0, 0},
	}
	data, _ := json.Marshal(body)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(data))
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleRenderInvalidJSONReturns400(t *testing.T) {
	s := New(testRenderer(), 2)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("not json")))
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
