package wav

import (
	"math"
	"path/filepath"
	"testing"
)

func TestWriteReadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.wav")

	samples := make([]float64, 2000)
	for i := range samples {
		samples[i] = 0.3 * math.Sin(2*math.Pi*440*float64(i)/44100)
	}

	if err := WriteMono(path, samples, 44100); err != nil {
		t.Fatalf("WriteMono: %v", err)
	}

	got, sr, err := ReadMono(path)
	if err != nil {
		t.Fatalf("ReadMono: %v", err)
	}
	if sr != 44100 {
		t.Fatalf("sample rate = %d, want 44100", sr)
	}
	if len(got) != len(samples) {
		t.Fatalf("len(got) = %d, want %d", len(got), len(samples))
	}
	for i := range samples {
		if math.Abs(got[i]-samples[i]) > 1.0/32768 {
			t.Fatalf("sample %d = %v, want ~%v", i, got[i], samples[i])
		}
	}
}

func TestWriteClipsOutOfRangeSamples(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clipped.wav")
	samples := []float64{2.0, -2.0, 0}
	if err := WriteMono(path, samples, 44100); err != nil {
		t.Fatalf("WriteMono: %v", err)
	}
	got, _, err := ReadMono(path)
	if err != nil {
		t.Fatalf("ReadMono: %v", err)
	}
	if got[0] < 0.99 {
		t.Errorf("expected clipped positive sample near 1.0, got %v", got[0])
	}
	if got[1] > -0.99 {
		t.Errorf("expected clipped negative sample near -1.0, got %v", got[1])
	}
}

func TestReadMissingFile(t *testing.T) {
	if _, _, err := ReadMono("/nonexistent/path/to/file.wav"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
