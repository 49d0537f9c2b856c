package harmonic

import (
	"fmt"
	"math"
)

// Stacker implements harmonic stacking: for every frequency bin of a
// log-spaced (constant-Q) spectrogram it gathers the bins that sit at
// harmonic ratios of that bin's frequency and exposes them as extra
// channels. On a log-frequency axis a harmonic ratio h is a constant shift
// of binsPerOctave*log2(h) bins, so stacking reduces to shifted copies of
// the spectrogram. A sub-harmonic (h=0.5) shifts downward and helps
// separate a fundamental from its octave.
type Stacker struct {
	binsPerOctave int
	harmonics     []float64
	shifts        []int
}

// NewStacker creates a harmonic stacker for the given harmonic ratio list.
func NewStacker(binsPerOctave int, harmonics []float64) (*Stacker, error) {
	if binsPerOctave <= 0 {
		return nil, fmt.Errorf("bins per octave must be positive, got %d", binsPerOctave)
	}
	if len(harmonics) == 0 {
		return nil, fmt.Errorf("harmonic list must not be empty")
	}

	shifts := make([]int, len(harmonics))
	for i, h := range harmonics {
		if h <= 0 {
			return nil, fmt.Errorf("harmonic ratios must be positive, got %f", h)
		}
		shifts[i] = int(math.Round(float64(binsPerOctave) * math.Log2(h)))
	}

	return &Stacker{
		binsPerOctave: binsPerOctave,
		harmonics:     harmonics,
		shifts:        shifts,
	}, nil
}

// NumHarmonics returns the number of stacked channels
func (s *Stacker) NumHarmonics() int {
	return len(s.harmonics)
}

// Stack converts a [frames][bins] spectrogram into [frames][bins*harmonics]
// rows with channel-interleaved layout: row[bin*numHarmonics + h] is the
// magnitude at the h-th harmonic of bin's frequency. Shifts that fall off
// either end of the frequency axis contribute zero.
func (s *Stacker) Stack(spectrogram [][]float64) [][]float64 {
	if len(spectrogram) == 0 {
		return nil
	}

	numBins := len(spectrogram[0])
	numHarm := len(s.harmonics)

	stacked := make([][]float64, len(spectrogram))
	for t, row := range spectrogram {
		out := make([]float64, numBins*numHarm)
		for h, shift := range s.shifts {
			for b := 0; b < numBins; b++ {
				src := b + shift
				if src < 0 || src >= numBins {
					continue
				}
				out[b*numHarm+h] = row[src]
			}
		}
		stacked[t] = out
	}

	return stacked
}
