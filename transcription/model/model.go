// Package model defines the transcription model artifacts: the feature
// extraction parameters and the weight sets of the four streaming CNN
// stages. Everything temporal about the network, in particular each stage's
// lookahead, is derived from the loaded weights rather than written into
// code, so a retrained network with different kernel widths loads without
// code changes.
package model

import (
	"fmt"
	"math"
)

// StreamFeatures is the reserved source name for the harmonically stacked
// feature tensor entering the first stage.
const StreamFeatures = "features"

// Activation selects a stage's output nonlinearity.
type Activation string

const (
	ActivationLinear  Activation = "linear"
	ActivationReLU    Activation = "relu"
	ActivationSigmoid Activation = "sigmoid"
)

// IsValid reports whether a is a recognised activation.
func (a Activation) IsValid() bool {
	switch a {
	case ActivationLinear, ActivationReLU, ActivationSigmoid:
		return true
	}
	return false
}

// FeatureSpec describes the time-frequency front end: a constant-Q
// transform with BinsPerSemitone*12 bins per octave followed by harmonic
// stacking of the listed harmonic ratios.
type FeatureSpec struct {
	SampleRate      int       `json:"sample_rate"`
	HopSize         int       `json:"hop_size"`
	MinMIDIPitch    int       `json:"min_midi_pitch"`
	BinsPerSemitone int       `json:"bins_per_semitone"`
	NumBins         int       `json:"num_bins"`
	Harmonics       []float64 `json:"harmonics"`
	QFactor         float64   `json:"q_factor"`
	TuningFreq      float64   `json:"tuning_freq"`
}

// MinFreq returns the center frequency of the lowest bin, i.e. the
// frequency of MinMIDIPitch under the configured tuning.
func (f FeatureSpec) MinFreq() float64 {
	return f.TuningFreq * math.Pow(2.0, float64(f.MinMIDIPitch-69)/12.0)
}

// NumSemitones returns the pitch range covered by the frequency axis.
func (f FeatureSpec) NumSemitones() int {
	return f.NumBins / f.BinsPerSemitone
}

// NumHarmonics returns the number of stacked harmonic channels.
func (f FeatureSpec) NumHarmonics() int {
	return len(f.Harmonics)
}

// FrameWidth returns the flattened width of one feature frame.
func (f FeatureSpec) FrameWidth() int {
	return f.NumBins * len(f.Harmonics)
}

// FrameDuration returns the duration of one frame in seconds.
func (f FeatureSpec) FrameDuration() float64 {
	return float64(f.HopSize) / float64(f.SampleRate)
}

// Validate checks the feature parameters for internal consistency.
func (f FeatureSpec) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", f.SampleRate)
	}
	if f.HopSize <= 0 {
		return fmt.Errorf("hop size must be positive, got %d", f.HopSize)
	}
	if f.BinsPerSemitone <= 0 {
		return fmt.Errorf("bins per semitone must be positive, got %d", f.BinsPerSemitone)
	}
	if f.NumBins <= 0 || f.NumBins%f.BinsPerSemitone != 0 {
		return fmt.Errorf("bin count %d must be a positive multiple of bins per semitone %d",
			f.NumBins, f.BinsPerSemitone)
	}
	if f.MinMIDIPitch < 0 || f.MinMIDIPitch > 127 {
		return fmt.Errorf("minimum MIDI pitch %d out of range", f.MinMIDIPitch)
	}
	if len(f.Harmonics) == 0 {
		return fmt.Errorf("harmonic list must not be empty")
	}
	for _, h := range f.Harmonics {
		if h <= 0 {
			return fmt.Errorf("harmonic ratios must be positive, got %f", h)
		}
	}
	if f.QFactor <= 0 {
		return fmt.Errorf("Q factor must be positive, got %f", f.QFactor)
	}
	if f.TuningFreq <= 0 {
		return fmt.Errorf("tuning frequency must be positive, got %f", f.TuningFreq)
	}
	return nil
}

// Input is one input stream of a stage: either the feature tensor or the
// output of an earlier stage, convolved along frequency with FreqKernel at
// the given stride and weighted by Gain. For the features source, Harmonics
// holds the collapse weights that reduce the stacked harmonic channels to
// one value per bin before the frequency convolution.
type Input struct {
	Source     string    `json:"source"`
	Gain       float64   `json:"gain"`
	FreqKernel []float64 `json:"freq_kernel"`
	FreqStride int       `json:"freq_stride"`
	Harmonics  []float64 `json:"harmonics,omitempty"`
}

// Stage is one streaming CNN stage: a separable convolution with an odd
// time kernel over its input streams followed by an affine map and a
// nonlinearity. A stage's lookahead is the half-width of its time kernel;
// it is a property of the trained topology, never a tunable.
type Stage struct {
	Name       string     `json:"name"`
	Inputs     []Input    `json:"inputs"`
	TimeKernel []float64  `json:"time_kernel"`
	OutBins    int        `json:"out_bins"`
	Activation Activation `json:"activation"`
	Scale      float64    `json:"scale"`
	Bias       float64    `json:"bias"`
}

// Lookahead returns the number of future frames this stage must observe
// before emitting an aligned output frame.
func (s *Stage) Lookahead() int {
	return len(s.TimeKernel) / 2
}

// Heads names the stages whose outputs form the three posteriorgrams.
type Heads struct {
	Contour string `json:"contour"`
	Note    string `json:"note"`
	Onset   string `json:"onset"`
}

// ModelSet bundles the feature front end, the ordered CNN stages and the
// head assignment. After a successful Validate the per-stage delay schedule
// (each stage's output delay relative to the feature stream, in frames) and
// the pipeline's total lookahead are available.
type ModelSet struct {
	Version string      `json:"version"`
	Feature FeatureSpec `json:"feature"`
	Stages  []Stage     `json:"stages"`
	Heads   Heads       `json:"heads"`

	delays map[string]int
	total  int
}

// Validate checks the model topology and computes the delay schedule.
func (m *ModelSet) Validate() error {
	if err := m.Feature.Validate(); err != nil {
		return fmt.Errorf("feature spec: %w", err)
	}
	if len(m.Stages) == 0 {
		return fmt.Errorf("model has no stages")
	}

	outBins := map[string]int{StreamFeatures: m.Feature.NumBins}
	delays := map[string]int{StreamFeatures: 0}

	for i := range m.Stages {
		st := &m.Stages[i]
		if st.Name == "" || st.Name == StreamFeatures {
			return fmt.Errorf("stage %d: invalid name %q", i, st.Name)
		}
		if _, dup := delays[st.Name]; dup {
			return fmt.Errorf("stage %d: duplicate name %q", i, st.Name)
		}
		if len(st.TimeKernel) == 0 || len(st.TimeKernel)%2 == 0 {
			return fmt.Errorf("stage %q: time kernel length %d must be odd", st.Name, len(st.TimeKernel))
		}
		if st.OutBins <= 0 {
			return fmt.Errorf("stage %q: output bin count must be positive, got %d", st.Name, st.OutBins)
		}
		if !st.Activation.IsValid() {
			return fmt.Errorf("stage %q: unknown activation %q", st.Name, st.Activation)
		}
		if len(st.Inputs) == 0 {
			return fmt.Errorf("stage %q: no input streams", st.Name)
		}

		maxDelay := 0
		for j := range st.Inputs {
			in := &st.Inputs[j]
			delay, known := delays[in.Source]
			if !known {
				return fmt.Errorf("stage %q: input %d references unknown stream %q (streams must be %q or an earlier stage)",
					st.Name, j, in.Source, StreamFeatures)
			}
			if len(in.FreqKernel) == 0 || len(in.FreqKernel)%2 == 0 {
				return fmt.Errorf("stage %q: input %q frequency kernel length %d must be odd",
					st.Name, in.Source, len(in.FreqKernel))
			}
			if in.FreqStride <= 0 {
				return fmt.Errorf("stage %q: input %q frequency stride must be positive, got %d",
					st.Name, in.Source, in.FreqStride)
			}
			if in.Source == StreamFeatures {
				if len(in.Harmonics) != m.Feature.NumHarmonics() {
					return fmt.Errorf("stage %q: feature input needs %d harmonic collapse weights, got %d",
						st.Name, m.Feature.NumHarmonics(), len(in.Harmonics))
				}
			} else if len(in.Harmonics) != 0 {
				return fmt.Errorf("stage %q: input %q is not the feature stream but carries harmonic weights",
					st.Name, in.Source)
			}
			if need := (st.OutBins-1)*in.FreqStride + 1; need > outBins[in.Source]+len(in.FreqKernel) {
				return fmt.Errorf("stage %q: %d output bins at stride %d exceed input %q width %d",
					st.Name, st.OutBins, in.FreqStride, in.Source, outBins[in.Source])
			}
			if delay > maxDelay {
				maxDelay = delay
			}
		}

		delays[st.Name] = maxDelay + st.Lookahead()
		outBins[st.Name] = st.OutBins
	}

	total := 0
	for _, head := range []struct{ role, name string }{
		{"contour", m.Heads.Contour},
		{"note", m.Heads.Note},
		{"onset", m.Heads.Onset},
	} {
		delay, ok := delays[head.name]
		if !ok || head.name == StreamFeatures {
			return fmt.Errorf("%s head references unknown stage %q", head.role, head.name)
		}
		if delay > total {
			total = delay
		}
	}

	m.delays = delays
	m.total = total
	return nil
}

// StageDelay returns a stream's output delay in frames relative to the
// feature stream. Valid only after Validate.
func (m *ModelSet) StageDelay(name string) int {
	return m.delays[name]
}

// TotalLookahead returns the pipeline's total lookahead in frames: the
// number of future feature frames that must be fed before the oldest fully
// aligned output triple is available. Valid only after Validate.
func (m *ModelSet) TotalLookahead() int {
	return m.total
}

// StageOutBins returns a stream's frame width in bins. Valid only after
// Validate.
func (m *ModelSet) StageOutBins(name string) int {
	if name == StreamFeatures {
		return m.Feature.NumBins
	}
	for i := range m.Stages {
		if m.Stages[i].Name == name {
			return m.Stages[i].OutBins
		}
	}
	return 0
}
