package transcription

// Posteriorgram is a dense [frames x pitchBins] array of model-estimated
// probabilities in [0,1]. Three of them (contour, note, onset) are
// assembled per job; their frame counts always equal the feature tensor's
// frame count exactly, and they are immutable once assembled.
type Posteriorgram struct {
	numFrames int
	numBins   int
	data      []float64
}

// NewPosteriorgram allocates a zeroed posteriorgram.
func NewPosteriorgram(numFrames, numBins int) *Posteriorgram {
	return &Posteriorgram{
		numFrames: numFrames,
		numBins:   numBins,
		data:      make([]float64, numFrames*numBins),
	}
}

// NumFrames returns the number of time frames.
func (p *Posteriorgram) NumFrames() int { return p.numFrames }

// NumBins returns the number of pitch bins per frame.
func (p *Posteriorgram) NumBins() int { return p.numBins }

// At returns the probability at (frame, bin).
func (p *Posteriorgram) At(frame, bin int) float64 {
	return p.data[frame*p.numBins+bin]
}

// Row returns one frame's probabilities. The returned slice aliases the
// posteriorgram and must be treated as read-only.
func (p *Posteriorgram) Row(frame int) []float64 {
	return p.data[frame*p.numBins : (frame+1)*p.numBins]
}

// setRow copies one frame's probabilities into the posteriorgram; used only
// during assembly.
func (p *Posteriorgram) setRow(frame int, row []float64) {
	copy(p.Row(frame), row)
}

// Clone returns a deep copy. Tests use it to verify the cached
// posteriorgrams survive re-decoding untouched.
func (p *Posteriorgram) Clone() *Posteriorgram {
	c := NewPosteriorgram(p.numFrames, p.numBins)
	copy(c.data, p.data)
	return c
}

// Equal reports whether two posteriorgrams hold identical data.
func (p *Posteriorgram) Equal(o *Posteriorgram) bool {
	if o == nil || p.numFrames != o.numFrames || p.numBins != o.numBins {
		return false
	}
	for i, v := range p.data {
		if o.data[i] != v {
			return false
		}
	}
	return true
}
