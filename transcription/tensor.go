package transcription

// FeatureTensor is the dense [frames x frequencyBins x harmonics] input to
// the transcription network, produced once per job by the FeatureExtractor
// and immutable afterwards. Rows are stored flattened with
// channel-interleaved layout so one frame can be handed to the network as a
// contiguous slice.
type FeatureTensor struct {
	numFrames    int
	numBins      int
	numHarmonics int
	data         []float64
}

// NewFeatureTensor allocates a zeroed tensor.
func NewFeatureTensor(numFrames, numBins, numHarmonics int) *FeatureTensor {
	return &FeatureTensor{
		numFrames:    numFrames,
		numBins:      numBins,
		numHarmonics: numHarmonics,
		data:         make([]float64, numFrames*numBins*numHarmonics),
	}
}

// NumFrames returns the number of time frames.
func (t *FeatureTensor) NumFrames() int { return t.numFrames }

// NumBins returns the number of frequency bins per frame.
func (t *FeatureTensor) NumBins() int { return t.numBins }

// NumHarmonics returns the number of harmonic channels per bin.
func (t *FeatureTensor) NumHarmonics() int { return t.numHarmonics }

// FrameWidth returns the flattened width of one frame.
func (t *FeatureTensor) FrameWidth() int { return t.numBins * t.numHarmonics }

// At returns the value at (frame, bin, harmonic).
func (t *FeatureTensor) At(frame, bin, harmonic int) float64 {
	return t.data[(frame*t.numBins+bin)*t.numHarmonics+harmonic]
}

// Frame returns the flattened row for one frame: frame[bin*numHarmonics+h].
// The returned slice aliases the tensor and must be treated as read-only.
func (t *FeatureTensor) Frame(frame int) []float64 {
	w := t.FrameWidth()
	return t.data[frame*w : (frame+1)*w]
}

// setFrame copies a flattened row into the tensor.
func (t *FeatureTensor) setFrame(frame int, row []float64) {
	copy(t.Frame(frame), row)
}
