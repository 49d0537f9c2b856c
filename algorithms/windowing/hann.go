// Package windowing provides the window functions used when building
// constant-Q kernels.
package windowing

import "math"

// Hann holds the coefficients of a Hann window. The constant-Q kernel
// builder uses the symmetric form so each kernel tapers to zero at both
// ends regardless of its odd length.
type Hann struct {
	coefficients []float64
}

// NewHann creates a Hann window of the given size. Symmetric windows
// divide by size-1 so the first and last coefficients are exactly zero;
// periodic windows divide by size for spectral analysis use.
func NewHann(size int, symmetric bool) *Hann {
	denominator := float64(size)
	if symmetric {
		denominator = float64(size - 1)
	}
	h := &Hann{coefficients: make([]float64, size)}
	for i := 0; i < size; i++ {
		h.coefficients[i] = 0.5 * (1.0 - math.Cos(2*math.Pi*float64(i)/denominator))
	}
	return h
}

// GetCoefficients returns a copy of the window coefficients.
func (h *Hann) GetCoefficients() []float64 {
	coeffs := make([]float64, len(h.coefficients))
	copy(coeffs, h.coefficients)
	return coeffs
}
