package spectral

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/RyanBlaney/cadenza/algorithms/windowing"
)

// CQT computes a constant-Q spectrogram with logarithmic frequency spacing.
//
// Frequency spacing follows musical pitch: f_k = f_min * 2^(k/binsPerOctave),
// so with 36 bins per octave every semitone is covered by three bins. The
// transform is implemented with pre-computed frequency-domain kernels
// (Brown & Puckette style): each time-domain kernel is a Hann-windowed
// complex exponential, transformed once, thresholded to a sparse set of
// frequency taps, and then applied to each signal frame with a single FFT
// plus a short sparse dot product per bin.
//
// Kernels are L1-normalized so that a unit-amplitude sinusoid matching a
// bin's center frequency produces a magnitude close to 1.0 in that bin.
type CQT struct {
	sampleRate    int
	minFreq       float64
	binsPerOctave int
	numBins       int
	qFactor       float64

	fftSize  int
	fft      *FFT
	freqBins []float64
	kernels  []sparseKernel
}

// sparseKernel holds the non-negligible frequency taps of one CQT bin.
// Values are pre-conjugated and pre-scaled by 1/fftSize so a frame
// correlation is a plain multiply-accumulate.
type sparseKernel struct {
	indices []int
	values  []complex128
}

// kernelMagThreshold discards frequency taps below this fraction of the
// kernel's peak magnitude. 1% keeps the matched response within a fraction
// of a percent of the dense kernel while cutting the work per bin by two
// orders of magnitude.
const kernelMagThreshold = 0.01

// NewCQT creates a constant-Q transform and pre-computes its sparse kernels.
func NewCQT(sampleRate int, minFreq float64, binsPerOctave, numBins int, qFactor float64) (*CQT, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if minFreq <= 0 {
		return nil, fmt.Errorf("minimum frequency must be positive, got %f", minFreq)
	}
	if binsPerOctave <= 0 || numBins <= 0 {
		return nil, fmt.Errorf("bins per octave (%d) and bin count (%d) must be positive", binsPerOctave, numBins)
	}
	if qFactor <= 0 {
		return nil, fmt.Errorf("Q factor must be positive, got %f", qFactor)
	}

	maxFreq := minFreq * math.Pow(2.0, float64(numBins-1)/float64(binsPerOctave))
	if maxFreq >= float64(sampleRate)/2.0 {
		return nil, fmt.Errorf("highest bin (%0.1f Hz) exceeds Nyquist for sample rate %d", maxFreq, sampleRate)
	}

	cqt := &CQT{
		sampleRate:    sampleRate,
		minFreq:       minFreq,
		binsPerOctave: binsPerOctave,
		numBins:       numBins,
		qFactor:       qFactor,
		fft:           NewFFT(),
	}

	cqt.computeKernels()
	return cqt, nil
}

// computeKernels builds the sparse frequency-domain kernel for every bin.
func (c *CQT) computeKernels() {
	c.freqBins = make([]float64, c.numBins)
	for k := 0; k < c.numBins; k++ {
		c.freqBins[k] = c.minFreq * math.Pow(2.0, float64(k)/float64(c.binsPerOctave))
	}

	// The lowest bin has the longest kernel and fixes the FFT size.
	maxKernelLength := c.kernelLength(c.freqBins[0])
	c.fftSize = nextPowerOfTwo(maxKernelLength)

	c.kernels = make([]sparseKernel, c.numBins)

	for k, freq := range c.freqBins {
		length := c.kernelLength(freq)
		window := windowing.NewHann(length, true).GetCoefficients()

		windowSum := 0.0
		for _, w := range window {
			windowSum += w
		}

		// Windowed complex exponential, L1-normalized so a matched
		// unit-amplitude sinusoid yields magnitude ~1.
		norm := 2.0 / windowSum
		kernel := make([]complex128, c.fftSize)
		for n := 0; n < length; n++ {
			phase := 2.0 * math.Pi * freq * float64(n) / float64(c.sampleRate)
			kernel[n] = complex(window[n]*norm, 0) * cmplx.Exp(complex(0, phase))
		}

		kernelFFT := c.fft.ComputeComplex(kernel)

		maxMag := 0.0
		for _, v := range kernelFFT {
			if m := cmplx.Abs(v); m > maxMag {
				maxMag = m
			}
		}

		threshold := maxMag * kernelMagThreshold
		var sk sparseKernel
		scale := complex(1.0/float64(c.fftSize), 0)
		for i, v := range kernelFFT {
			if cmplx.Abs(v) >= threshold {
				sk.indices = append(sk.indices, i)
				sk.values = append(sk.values, cmplx.Conj(v)*scale)
			}
		}

		c.kernels[k] = sk
	}
}

// kernelLength calculates the time-domain kernel length for a frequency.
// Length is Q periods of the bin frequency, bounded and forced odd.
func (c *CQT) kernelLength(frequency float64) int {
	length := int(c.qFactor * float64(c.sampleRate) / frequency)

	if length%2 == 0 {
		length++
	}
	if length < 3 {
		length = 3
	}
	if length > c.sampleRate/2 {
		length = c.sampleRate/2 + 1
	}

	return length
}

// ComputeSpectrogram computes the CQT magnitude spectrogram of a signal.
// One frame is produced per hopSize input samples: ceil(len(signal)/hopSize)
// frames in total, the trailing frames zero-padded.
func (c *CQT) ComputeSpectrogram(signal []float64, hopSize int) ([][]float64, error) {
	if hopSize <= 0 {
		return nil, fmt.Errorf("hop size must be positive, got %d", hopSize)
	}
	if len(signal) == 0 {
		return nil, nil
	}

	numFrames := (len(signal) + hopSize - 1) / hopSize
	spectrogram := make([][]float64, numFrames)

	frame := make([]float64, c.fftSize)

	for frameIdx := 0; frameIdx < numFrames; frameIdx++ {
		start := frameIdx * hopSize

		n := copy(frame, signal[start:min(start+c.fftSize, len(signal))])
		for i := n; i < c.fftSize; i++ {
			frame[i] = 0
		}

		frameFFT := c.fft.Compute(frame)

		row := make([]float64, c.numBins)
		for k := range c.kernels {
			acc := complex(0, 0)
			sk := &c.kernels[k]
			for i, idx := range sk.indices {
				acc += frameFFT[idx] * sk.values[i]
			}
			row[k] = cmplx.Abs(acc)
		}

		spectrogram[frameIdx] = row
	}

	return spectrogram, nil
}

// NumBins returns the number of frequency bins
func (c *CQT) NumBins() int {
	return c.numBins
}

// GetFrequencies returns the CQT bin center frequencies
func (c *CQT) GetFrequencies() []float64 {
	freqs := make([]float64, len(c.freqBins))
	copy(freqs, c.freqBins)
	return freqs
}

// BinFrequency returns the center frequency of bin k
func (c *CQT) BinFrequency(k int) float64 {
	if k < 0 || k >= len(c.freqBins) {
		return 0
	}
	return c.freqBins[k]
}

// nextPowerOfTwo finds the next power of 2 >= n
func nextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}

	power := 1
	for power < n {
		power <<= 1
	}
	return power
}
