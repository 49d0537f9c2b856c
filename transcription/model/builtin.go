package model

// Builtin returns the compiled-in default model set.
//
// The default network mirrors the trained topology the engine is designed
// around: a contour stage reading the harmonically stacked CQT, a note
// stage pooling contour bins down to semitone resolution, an onset-feed
// stage computing rectified temporal rises of note activity, and an onset
// head smoothing that rise signal. Weight values are calibrated so the
// chain behaves as a spectral-evidence detector out of the box; a
// retrained weight set with the same schema can be swapped in via Load
// without touching code.
func Builtin() *ModelSet {
	m := &ModelSet{
		Version: "builtin-1",
		Feature: FeatureSpec{
			SampleRate:      22050,
			HopSize:         256,
			MinMIDIPitch:    21,
			BinsPerSemitone: 3,
			NumBins:         264,
			Harmonics:       []float64{0.5, 1, 2, 3, 4, 5, 6, 7},
			QFactor:         34.0,
			TuningFreq:      440.0,
		},
		Stages: []Stage{
			{
				Name: "contour",
				Inputs: []Input{{
					Source:     StreamFeatures,
					Gain:       1.0,
					FreqKernel: []float64{1},
					FreqStride: 1,
					// Collapse weights per harmonic channel: the
					// fundamental dominates, overtones and the
					// sub-harmonic contribute supporting evidence.
					Harmonics: []float64{0.05, 1.0, 0.15, 0.12, 0.10, 0.08, 0.06, 0.05},
				}},
				TimeKernel: uniformKernel(7),
				OutBins:    264,
				Activation: ActivationSigmoid,
				Scale:      4.0,
				Bias:       -2.0,
			},
			{
				Name: "note",
				Inputs: []Input{{
					Source:     "contour",
					Gain:       1.0,
					FreqKernel: []float64{0.25, 0.5, 0.25},
					FreqStride: 3,
				}},
				TimeKernel: uniformKernel(7),
				OutBins:    88,
				Activation: ActivationSigmoid,
				Scale:      6.0,
				Bias:       -2.2,
			},
			{
				Name: "onset_feed",
				Inputs: []Input{{
					Source:     "note",
					Gain:       1.0,
					FreqKernel: []float64{1},
					FreqStride: 1,
				}},
				// Centered temporal difference: rectified rises in note
				// activity feed the onset head.
				TimeKernel: []float64{-1, 0, 1},
				OutBins:    88,
				Activation: ActivationReLU,
				Scale:      1.0,
				Bias:       0.0,
			},
			{
				Name: "onset",
				Inputs: []Input{{
					Source:     "onset_feed",
					Gain:       1.0,
					FreqKernel: []float64{1},
					FreqStride: 1,
				}},
				TimeKernel: []float64{0.25, 0.5, 0.25},
				OutBins:    88,
				Activation: ActivationSigmoid,
				Scale:      35.0,
				Bias:       -2.5,
			},
		},
		Heads: Heads{
			Contour: "contour",
			Note:    "note",
			Onset:   "onset",
		},
	}

	// The builtin model is constructed, not parsed; a validation failure
	// here is a programming error.
	if err := m.Validate(); err != nil {
		panic("model: builtin model invalid: " + err.Error())
	}

	return m
}

// uniformKernel returns an n-tap moving-average time kernel.
func uniformKernel(n int) []float64 {
	k := make([]float64, n)
	for i := range k {
		k[i] = 1.0 / float64(n)
	}
	return k
}
