package fftcore

import (
	"math"
	"math/rand"
	"testing"
)

func maxAbsDiff(a, b []float64) float64 {
	var max float64
	for i := range a {
		d := math.Abs(a[i] - b[i])
		if d > max {
			max = d
		}
	}
	return max
}

func TestTransformRejectsLengthMismatch(t *testing.T) {
	if err := Transform([]float64{1, 2}, []float64{1}, false); err == nil {
		t.Fatalf("expected error for mismatched lengths")
	}
}

func TestTransformLengthOneIsNoop(t *testing.T) {
	re := []float64{3.5}
	im := []float64{-1.5}
	if err := Transform(re, im, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if re[0] != 3.5 || im[0] != -1.5 {
		t.Fatalf("N=1 transform mutated input: %v %v", re, im)
	}
}

func TestRadix2Roundtrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, n := range []int{1, 2, 4, 8, 16, 64, 256, 1024, 4096} {
		re := make([]float64, n)
		im := make([]float64, n)
		for i := range re {
			re[i] = rng.Float64()*2 - 1
			im[i] = rng.Float64()*2 - 1
		}
		origRe := append([]float64{}, re...)
		origIm := append([]float64{}, im...)

		if err := Forward(re, im); err != nil {
			t.Fatalf("N=%d forward: %v", n, err)
		}
		if err := Inverse(re, im); err != nil {
			t.Fatalf("N=%d inverse: %v", n, err)
		}

		if d := maxAbsDiff(re, origRe); d > 1e-4 {
			t.Errorf("N=%d real roundtrip diff %v", n, d)
		}
		if d := maxAbsDiff(im, origIm); d > 1e-4 {
			t.Errorf("N=%d imag roundtrip diff %v", n, d)
		}
	}
}

func naiveDFT(re, im []float64, inverse bool) ([]float64, []float64) {
	n := len(re)
	outRe := make([]float64, n)
	outIm := make([]float64, n)
	sign := -1.0
	if inverse {
		sign = 1.0
	}
	for k := 0; k < n; k++ {
		var sr, si float64
		for t := 0; t < n; t++ {
			angle := sign * 2 * math.Pi * float64(k) * float64(t) / float64(n)
			c, s := math.Cos(angle), math.Sin(angle)
			sr += re[t]*c - im[t]*s
			si += re[t]*s + im[t]*c
		}
		if inverse {
			sr /= float64(n)
			si /= float64(n)
		}
		outRe[k] = sr
		outIm[k] = si
	}
	return outRe, outIm
}

func TestBluesteinMatchesNaiveDFT(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for _, n := range []int{3, 5, 7, 1025, 2047} {
		re := make([]float64, n)
		im := make([]float64, n)
		for i := range re {
			re[i] = rng.Float64()*2 - 1
			im[i] = rng.Float64()*2 - 1
		}

		gotRe := append([]float64{}, re...)
		gotIm := append([]float64{}, im...)
		if err := Forward(gotRe, gotIm); err != nil {
			t.Fatalf("N=%d forward: %v", n, err)
		}

		wantRe, wantIm := naiveDFT(re, im, false)

		if d := maxAbsDiff(gotRe, wantRe); d > 1e-3 {
			t.Errorf("N=%d real diff from naive DFT: %v", n, d)
		}
		if d := maxAbsDiff(gotIm, wantIm); d > 1e-3 {
			t.Errorf("N=%d imag diff from naive DFT: %v", n, d)
		}
	}
}

func TestBluesteinRoundtrip(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for _, n := range []int{3, 5, 9, 1025} {
		re := make([]float64, n)
		im := make([]float64, n)
		for i := range re {
			re[i] = rng.Float64()*2 - 1
			im[i] = rng.Float64()*2 - 1
		}
		origRe := append([]float64{}, re...)
		origIm := append([]float64{}, im...)

		if err := Forward(re, im); err != nil {
			t.Fatalf("forward: %v", err)
		}
		if err := Inverse(re, im); err != nil {
			t.Fatalf("inverse: %v", err)
		}

		if d := maxAbsDiff(re, origRe); d > 1e-3 {
			t.Errorf("N=%d real roundtrip diff %v", n, d)
		}
		if d := maxAbsDiff(im, origIm); d > 1e-3 {
			t.Errorf("N=%d imag roundtrip diff %v", n, d)
		}
	}
}
