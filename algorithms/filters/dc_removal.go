package filters

import "math"

// DCRemoval is a one-pole DC blocking filter (Julius O. Smith's classic
// design): y[n] = x[n] - x[n-1] + R*y[n-1]. A DC offset or sub-audio drift
// in the input would otherwise leak energy into the lowest constant-Q bins
// and bias the pitch axis floor.
type DCRemoval struct {
	poleLocation float64 // R, 0 < R < 1; closer to 1 means lower cutoff

	x1 float64
	y1 float64
}

// NewDCRemoval creates a DC blocker with the standard audio pole of 0.995.
func NewDCRemoval() *DCRemoval {
	return &DCRemoval{poleLocation: 0.995}
}

// NewDCRemovalWithCutoff creates a DC blocker with the pole placed for the
// given -3dB cutoff: R = 1 - 2*pi*fc/fs, valid for fc well below Nyquist.
func NewDCRemovalWithCutoff(sampleRate int, cutoffFreq float64) *DCRemoval {
	dc := NewDCRemoval()
	if sampleRate > 0 && cutoffFreq > 0 {
		r := 1.0 - (2.0 * math.Pi * cutoffFreq / float64(sampleRate))
		if r >= 1.0 {
			r = 0.999
		} else if r <= 0.0 {
			r = 0.001
		}
		dc.poleLocation = r
	}
	return dc
}

// Process filters a single sample.
func (dc *DCRemoval) Process(input float64) float64 {
	output := input - dc.x1 + dc.poleLocation*dc.y1
	dc.x1 = input
	dc.y1 = output
	return output
}

// ProcessBuffer filters an entire buffer into a new slice.
func (dc *DCRemoval) ProcessBuffer(input []float64) []float64 {
	output := make([]float64, len(input))
	for i, sample := range input {
		output[i] = dc.Process(sample)
	}
	return output
}

// Reset clears the filter state. Call between discontinuous segments.
func (dc *DCRemoval) Reset() {
	dc.x1 = 0.0
	dc.y1 = 0.0
}

// CutoffFrequency returns the approximate -3dB cutoff at a sample rate.
func (dc *DCRemoval) CutoffFrequency(sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0.0
	}
	return (1.0 - dc.poleLocation) * float64(sampleRate) / (2.0 * math.Pi)
}
