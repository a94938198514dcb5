// Package fftcore implements the FFT primitive the rest of the signal
// chain is built on: an iterative radix-2 Cooley-Tukey transform for
// power-of-two sizes with process-wide cached twiddle/bit-reversal
// plans, and Bluestein's chirp transform for everything else.
package fftcore

import "fmt"

// Transform computes the DFT (or, if inverse is true, the inverse DFT
// scaled by 1/N) of real/imag in place. Both slices must have equal,
// positive length. N == 1 is a no-op.
func Transform(real, imag []float64, inverse bool) error {
	n := len(real)
	if len(imag) != n {
		return fmt.Errorf("fftcore: real/imag length mismatch: %d vs %d", n, len(imag))
	}
	if n < 1 {
		return fmt.Errorf("fftcore: invalid transform length %d", n)
	}
	if n == 1 {
		return nil
	}

	if isPowerOfTwo(n) {
		radix2PlanFor(n).apply(real, imag, inverse)
		return nil
	}

	bluesteinPlanFor(n).apply(real, imag, inverse)
	return nil
}

// Forward is a convenience wrapper around Transform(real, imag, false).
func Forward(real, imag []float64) error {
	return Transform(real, imag, false)
}

// Inverse is a convenience wrapper around Transform(real, imag, true).
func Inverse(real, imag []float64) error {
	return Transform(real, imag, true)
}
