package transcription

import (
	"fmt"

	"github.com/RyanBlaney/cadenza/algorithms/filters"
	"github.com/RyanBlaney/cadenza/algorithms/harmonic"
	"github.com/RyanBlaney/cadenza/algorithms/spectral"
	"github.com/RyanBlaney/cadenza/logging"
	"github.com/RyanBlaney/cadenza/transcription/model"
)

// FeatureExtractor turns raw audio at the model sample rate into the
// harmonically stacked constant-Q tensor the network consumes. It is
// deterministic and deliberately single-threaded: transcription jobs run on
// one background worker and must not contend with the host's own thread
// pools.
//
// Construction pre-computes the CQT kernels. If that fails the extractor
// stays usable but "not initialized": ComputeFeatures returns
// ErrNotInitialized and empty results instead of partial output.
type FeatureExtractor struct {
	spec    model.FeatureSpec
	cqt     *spectral.CQT
	stacker *harmonic.Stacker
	initErr error
	logger  logging.Logger
}

// NewFeatureExtractor builds the CQT front end described by the feature
// spec. A returned extractor is always non-nil; check IsInitialized.
func NewFeatureExtractor(spec model.FeatureSpec) *FeatureExtractor {
	fe := &FeatureExtractor{
		spec: spec,
		logger: logging.WithFields(logging.Fields{
			"component": "feature_extractor",
		}),
	}

	if err := spec.Validate(); err != nil {
		fe.initErr = fmt.Errorf("feature spec: %w", err)
		fe.logger.Error(fe.initErr, "feature extractor initialization failed")
		return fe
	}

	binsPerOctave := spec.BinsPerSemitone * 12

	cqt, err := spectral.NewCQT(spec.SampleRate, spec.MinFreq(), binsPerOctave, spec.NumBins, spec.QFactor)
	if err != nil {
		fe.initErr = fmt.Errorf("building CQT kernels: %w", err)
		fe.logger.Error(fe.initErr, "feature extractor initialization failed")
		return fe
	}

	stacker, err := harmonic.NewStacker(binsPerOctave, spec.Harmonics)
	if err != nil {
		fe.initErr = fmt.Errorf("building harmonic stacker: %w", err)
		fe.logger.Error(fe.initErr, "feature extractor initialization failed")
		return fe
	}

	fe.cqt = cqt
	fe.stacker = stacker
	return fe
}

// IsInitialized reports whether the front end is ready for inference.
func (fe *FeatureExtractor) IsInitialized() bool {
	return fe.initErr == nil
}

// InitError returns the initialization failure, or nil.
func (fe *FeatureExtractor) InitError() error {
	return fe.initErr
}

// Spec returns the feature parameters this extractor was built from.
func (fe *FeatureExtractor) Spec() model.FeatureSpec {
	return fe.spec
}

// ComputeFeatures computes the feature tensor for a full audio buffer and
// returns it together with the frame count, one frame per hop of input.
// The audio slice is borrowed read-only. Fails closed: a not-initialized
// extractor or empty input yields no partial output.
func (fe *FeatureExtractor) ComputeFeatures(audio []float64) (*FeatureTensor, int, error) {
	if fe.initErr != nil {
		return nil, 0, ErrNotInitialized
	}
	if len(audio) == 0 {
		return nil, 0, ErrEmptyAudio
	}

	// Block DC and sub-audio drift before the CQT; the filter is stateful
	// and created per job so runs stay independent.
	dc := filters.NewDCRemovalWithCutoff(fe.spec.SampleRate, 20.0)
	filtered := dc.ProcessBuffer(audio)

	spectrogram, err := fe.cqt.ComputeSpectrogram(filtered, fe.spec.HopSize)
	if err != nil {
		return nil, 0, fmt.Errorf("computing CQT: %w", err)
	}

	stacked := fe.stacker.Stack(spectrogram)

	numFrames := len(stacked)
	tensor := NewFeatureTensor(numFrames, fe.spec.NumBins, fe.spec.NumHarmonics())
	for i, row := range stacked {
		tensor.setFrame(i, row)
	}

	fe.logger.Debug("features computed", logging.Fields{
		"samples": len(audio),
		"frames":  numFrames,
		"bins":    fe.spec.NumBins,
	})

	return tensor, numFrames, nil
}
