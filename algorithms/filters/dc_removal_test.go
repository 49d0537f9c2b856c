package filters

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDCRemovalRemovesConstantOffset(t *testing.T) {
	dc := NewDCRemovalWithCutoff(22050, 20.0)

	// A constant input must decay toward zero output.
	var out float64
	for i := 0; i < 22050; i++ {
		out = dc.Process(0.5)
	}
	assert.InDelta(t, 0.0, out, 1e-3)
}

func TestDCRemovalPassesAudioBand(t *testing.T) {
	dc := NewDCRemovalWithCutoff(22050, 20.0)

	// A 440 Hz tone with a DC offset keeps its AC amplitude and loses
	// the offset.
	n := 22050
	out := make([]float64, n)
	for i := range out {
		x := 0.3 + 0.5*math.Sin(2.0*math.Pi*440.0*float64(i)/22050.0)
		out[i] = dc.Process(x)
	}

	// Measure over the settled second half.
	tail := out[n/2:]
	mean, peak := 0.0, 0.0
	for _, v := range tail {
		mean += v
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	mean /= float64(len(tail))

	assert.InDelta(t, 0.0, mean, 1e-3)
	assert.InDelta(t, 0.5, peak, 0.02)
}

func TestDCRemovalReset(t *testing.T) {
	dc := NewDCRemoval()
	dc.Process(1.0)
	dc.Reset()
	assert.InDelta(t, 0.7, dc.Process(0.7), 1e-12)
}

func TestCutoffFrequency(t *testing.T) {
	dc := NewDCRemovalWithCutoff(22050, 20.0)
	assert.InDelta(t, 20.0, dc.CutoffFrequency(22050), 0.5)
	assert.Equal(t, 0.0, dc.CutoffFrequency(0))
}
