package hnsep

import (
	"errors"
	"math"
	"testing"
)

type identityMaskModel struct{}

func (identityMaskModel) Predict(real, imag []float64, bins, frames int) ([]float64, []float64, error) {
	maskRe := make([]float64, len(real))
	for i := range maskRe {
		maskRe[i] = 1
	}
	maskIm := make([]float64, len(imag))
	return maskRe, maskIm, nil
}

type failingMaskModel struct{}

func (failingMaskModel) Predict(real, imag []float64, bins, frames int) ([]float64, []float64, error) {
	return nil, nil, errors.New("boom")
}

func sine(freq, sr float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / sr)
	}
	return out
}

func TestSeparateIdentityMaskReconstructsSignal(t *testing.T) {
	samples := sine(220, 44100, 8192)
	out, fellBack := Separate(samples, identityMaskModel{})
	if fellBack {
		t.Fatalf("unexpected fallback")
	}
	if len(out) != len(samples) {
		t.Fatalf("len(out) = %d, want %d", len(out), len(samples))
	}

	margin := nFft
	var sumSq, sigSq float64
	for i := margin; i < len(samples)-margin; i++ {
		d := out[i] - samples[i]
		sumSq += d * d
		sigSq += samples[i] * samples[i]
	}
	if math.Sqrt(sumSq) > 1e-2*math.Sqrt(sigSq) {
		t.Errorf("identity mask did not reconstruct the signal closely enough")
	}
}

func TestSeparateFallsBackOnModelError(t *testing.T) {
	samples := sine(220, 44100, 4096)
	out, fellBack := Separate(samples, failingMaskModel{})
	if !fellBack {
		t.Fatalf("expected fallback")
	}
	for i := range samples {
		if out[i] != samples[i] {
			t.Fatalf("fallback output diverged from input at %d", i)
		}
	}
}

func TestEngaged(t *testing.T) {
	if Engaged(100, 100, 0) {
		t.Errorf("should not be engaged when hb==hv and ht==0")
	}
	if !Engaged(100, 90, 0) {
		t.Errorf("should be engaged when hb != hv")
	}
	if !Engaged(100, 100, 5) {
		t.Errorf("should be engaged when ht != 0")
	}
}

func TestApplyFlagsEqualGainsReducesToScaledOriginal(t *testing.T) {
	original := []float64{1, 2, 3, 4}
	separated := []float64{0.5, 1, 1.5, 2}
	out := ApplyFlags(original, separated, 50, 50, 0)
	for i := range out {
		want := 0.5 * original[i]
		if math.Abs(out[i]-want) > 1e-9 {
			t.Errorf("out[%d] = %v, want %v", i, out[i], want)
		}
	}
}
