package transcription

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/cadenza/transcription/model"
)

// testFeatureSpec returns a tiny valid front-end spec for topology tests.
func testFeatureSpec(numBins int, harmonics []float64) model.FeatureSpec {
	return model.FeatureSpec{
		SampleRate:      22050,
		HopSize:         256,
		MinMIDIPitch:    21,
		BinsPerSemitone: 1,
		NumBins:         numBins,
		Harmonics:       harmonics,
		QFactor:         34.0,
		TuningFreq:      440.0,
	}
}

// identityModel builds a one-stage linear model that passes the feature
// stream through a centered 3-tap delta kernel, so the pipeline is a pure
// one-frame delay line.
func identityModel(t *testing.T, numBins int) *model.ModelSet {
	t.Helper()
	m := &model.ModelSet{
		Version: "test",
		Feature: testFeatureSpec(numBins, []float64{1}),
		Stages: []model.Stage{{
			Name: "id",
			Inputs: []model.Input{{
				Source:     model.StreamFeatures,
				Gain:       1.0,
				FreqKernel: []float64{1},
				FreqStride: 1,
				Harmonics:  []float64{1},
			}},
			TimeKernel: []float64{0, 1, 0},
			OutBins:    numBins,
			Activation: model.ActivationLinear,
			Scale:      1.0,
			Bias:       0.0,
		}},
		Heads: model.Heads{Contour: "id", Note: "id", Onset: "id"},
	}
	require.NoError(t, m.Validate())
	return m
}

func TestFrameCNNIdentityReproducesDelayedInput(t *testing.T) {
	m := identityModel(t, 2)
	require.Equal(t, 1, m.TotalLookahead())
	cnn := NewFrameCNN(m)

	inputs := [][]float64{{1, 10}, {2, 20}, {3, 30}, {4, 40}}

	// First call returns the pre-stream zero frame.
	contour, note, onset := cnn.FrameInference(inputs[0])
	assert.Equal(t, []float64{0, 0}, contour)
	assert.Equal(t, []float64{0, 0}, note)
	assert.Equal(t, []float64{0, 0}, onset)

	// From then on every call returns the previous input exactly.
	for i := 1; i < len(inputs); i++ {
		contour, note, onset = cnn.FrameInference(inputs[i])
		assert.Equal(t, inputs[i-1], contour, "call %d", i)
		assert.Equal(t, inputs[i-1], note, "call %d", i)
		assert.Equal(t, inputs[i-1], onset, "call %d", i)
	}
}

func TestFrameCNNChainedDelaysAccumulate(t *testing.T) {
	m := &model.ModelSet{
		Version: "test",
		Feature: testFeatureSpec(1, []float64{1}),
		Stages: []model.Stage{
			{
				Name: "a",
				Inputs: []model.Input{{
					Source: model.StreamFeatures, Gain: 1,
					FreqKernel: []float64{1}, FreqStride: 1,
					Harmonics: []float64{1},
				}},
				TimeKernel: []float64{0, 1, 0},
				OutBins:    1,
				Activation: model.ActivationLinear,
				Scale:      1, Bias: 0,
			},
			{
				Name: "b",
				Inputs: []model.Input{{
					Source: "a", Gain: 1,
					FreqKernel: []float64{1}, FreqStride: 1,
				}},
				TimeKernel: []float64{0, 0, 1, 0, 0},
				OutBins:    1,
				Activation: model.ActivationLinear,
				Scale:      1, Bias: 0,
			},
		},
		Heads: model.Heads{Contour: "b", Note: "b", Onset: "b"},
	}
	require.NoError(t, m.Validate())
	require.Equal(t, 1, m.StageDelay("a"))
	require.Equal(t, 3, m.StageDelay("b"))
	require.Equal(t, 3, m.TotalLookahead())

	cnn := NewFrameCNN(m)

	// With a total lookahead of 3, call n surfaces input n-3.
	var outputs []float64
	for i := 1; i <= 8; i++ {
		_, noteFrame, _ := cnn.FrameInference([]float64{float64(i)})
		outputs = append(outputs, noteFrame[0])
	}
	assert.Equal(t, []float64{0, 0, 0, 1, 2, 3, 4, 5}, outputs)
}

func TestFrameCNNHarmonicCollapse(t *testing.T) {
	m := &model.ModelSet{
		Version: "test",
		Feature: testFeatureSpec(2, []float64{1, 2}),
		Stages: []model.Stage{{
			Name: "mix",
			Inputs: []model.Input{{
				Source: model.StreamFeatures, Gain: 1,
				FreqKernel: []float64{1}, FreqStride: 1,
				Harmonics: []float64{2, 3},
			}},
			TimeKernel: []float64{1},
			OutBins:    2,
			Activation: model.ActivationLinear,
			Scale:      1, Bias: 0,
		}},
		Heads: model.Heads{Contour: "mix", Note: "mix", Onset: "mix"},
	}
	require.NoError(t, m.Validate())
	require.Equal(t, 0, m.TotalLookahead())

	cnn := NewFrameCNN(m)

	// Channel-interleaved frame: bin0 has harmonics (1,10), bin1 (2,20).
	_, noteFrame, _ := cnn.FrameInference([]float64{1, 10, 2, 20})
	assert.Equal(t, []float64{2*1 + 3*10, 2*2 + 3*20}, noteFrame)
}

func TestFrameCNNScaleBiasActivation(t *testing.T) {
	m := &model.ModelSet{
		Version: "test",
		Feature: testFeatureSpec(1, []float64{1}),
		Stages: []model.Stage{{
			Name: "act",
			Inputs: []model.Input{{
				Source: model.StreamFeatures, Gain: 1,
				FreqKernel: []float64{1}, FreqStride: 1,
				Harmonics: []float64{1},
			}},
			TimeKernel: []float64{1},
			OutBins:    1,
			Activation: model.ActivationReLU,
			Scale:      2.0,
			Bias:       -3.0,
		}},
		Heads: model.Heads{Contour: "act", Note: "act", Onset: "act"},
	}
	require.NoError(t, m.Validate())
	cnn := NewFrameCNN(m)

	// 2*1-3 = -1 rectifies to 0, 2*4-3 = 5 passes.
	_, noteFrame, _ := cnn.FrameInference([]float64{1})
	assert.Equal(t, []float64{0}, noteFrame)
	_, noteFrame, _ = cnn.FrameInference([]float64{4})
	assert.Equal(t, []float64{5}, noteFrame)
}

func TestFrameCNNResetClearsState(t *testing.T) {
	m := identityModel(t, 1)
	cnn := NewFrameCNN(m)

	cnn.FrameInference([]float64{5})
	cnn.FrameInference([]float64{6})
	cnn.Reset()

	// After reset the first call sees a fresh stream again.
	_, noteFrame, _ := cnn.FrameInference([]float64{7})
	assert.Equal(t, []float64{0}, noteFrame)
	_, noteFrame, _ = cnn.FrameInference([]float64{8})
	assert.Equal(t, []float64{7}, noteFrame)
}
