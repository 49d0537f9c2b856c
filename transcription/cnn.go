package transcription

import (
	"github.com/RyanBlaney/cadenza/algorithms/common"
	"github.com/RyanBlaney/cadenza/transcription/model"
)

// FrameCNN runs the four-stage streaming transcription network one feature
// frame at a time. Each stage is a shift register: it retains a bounded
// window of its input streams in a FrameRing and can only emit its output
// for logical frame t once every input has reached t plus the stage's
// lookahead. Stage delays are therefore cumulative along the chain, and the
// head outputs returned by FrameInference are mutually aligned at the
// pipeline's total lookahead: the triple returned by the n-th call
// corresponds to the feature frame fed n-TotalLookahead() calls earlier.
//
// All per-stage state is owned by the instance and reset at job start; a
// FrameCNN must never be shared across concurrent jobs.
type FrameCNN struct {
	model  *model.ModelSet
	rings  map[string]*common.FrameRing
	call   int
	colMix []float64 // scratch for harmonic collapse of a feature frame
}

// NewFrameCNN wires the stage graph of a validated model set. Ring depths
// are sized from the delay schedule so every stage always finds the input
// window it needs.
func NewFrameCNN(m *model.ModelSet) *FrameCNN {
	c := &FrameCNN{
		model:  m,
		rings:  make(map[string]*common.FrameRing),
		colMix: make([]float64, m.Feature.NumBins),
	}

	depths := map[string]int{model.StreamFeatures: 1}
	for i := range m.Stages {
		st := &m.Stages[i]
		depths[st.Name] = 1
		for _, in := range st.Inputs {
			need := m.StageDelay(st.Name) + st.Lookahead() - m.StageDelay(in.Source) + 1
			if need > depths[in.Source] {
				depths[in.Source] = need
			}
		}
	}
	// Head streams are re-read at the total lookahead for alignment.
	for _, head := range []string{m.Heads.Contour, m.Heads.Note, m.Heads.Onset} {
		need := m.TotalLookahead() - m.StageDelay(head) + 1
		if need > depths[head] {
			depths[head] = need
		}
	}

	widths := map[string]int{model.StreamFeatures: m.Feature.FrameWidth()}
	for i := range m.Stages {
		widths[m.Stages[i].Name] = m.Stages[i].OutBins
	}

	for name, depth := range depths {
		c.rings[name] = common.NewFrameRing(depth, widths[name], -m.StageDelay(name))
	}

	c.Reset()
	return c
}

// TotalLookahead returns the pipeline's total lookahead in frames.
func (c *FrameCNN) TotalLookahead() int {
	return c.model.TotalLookahead()
}

// Reset discards all shift-register state. Must be called between jobs.
func (c *FrameCNN) Reset() {
	c.call = -1
	for name, ring := range c.rings {
		ring.Reset(-c.model.StageDelay(name))
	}
}

// FrameInference feeds one feature frame (flattened, FrameWidth wide) and
// returns the aligned contour, note and onset frames for the feature frame
// fed TotalLookahead() calls earlier. Frames must be fed strictly in order
// with no skipping; the returned slices are owned by the caller.
func (c *FrameCNN) FrameInference(featureFrame []float64) (contour, note, onset []float64) {
	c.call++
	c.rings[model.StreamFeatures].Push(featureFrame)

	for i := range c.model.Stages {
		c.runStage(&c.model.Stages[i])
	}

	t := c.call - c.model.TotalLookahead()
	contour = cloneFrame(c.rings[c.model.Heads.Contour].Frame(t))
	note = cloneFrame(c.rings[c.model.Heads.Note].Frame(t))
	onset = cloneFrame(c.rings[c.model.Heads.Onset].Frame(t))
	return contour, note, onset
}

// runStage computes one stage's output frame for its current logical time
// and pushes it onto the stage's ring.
func (c *FrameCNN) runStage(st *model.Stage) {
	t := c.call - c.model.StageDelay(st.Name)
	lookahead := st.Lookahead()

	out := make([]float64, st.OutBins)

	for i := range st.Inputs {
		in := &st.Inputs[i]
		ring := c.rings[in.Source]
		fHalf := len(in.FreqKernel) / 2

		for dt := -lookahead; dt <= lookahead; dt++ {
			tw := st.TimeKernel[dt+lookahead] * in.Gain
			if tw == 0 {
				continue
			}

			frame := ring.Frame(t + dt)
			if in.Source == model.StreamFeatures {
				frame = c.collapseHarmonics(frame, in.Harmonics)
			}

			for ob := range out {
				center := ob * in.FreqStride
				acc := 0.0
				for k, fw := range in.FreqKernel {
					ib := center + k - fHalf
					if ib < 0 || ib >= len(frame) {
						continue
					}
					acc += fw * frame[ib]
				}
				out[ob] += tw * acc
			}
		}
	}

	for i, v := range out {
		v = st.Scale*v + st.Bias
		switch st.Activation {
		case model.ActivationReLU:
			v = common.ReLU(v)
		case model.ActivationSigmoid:
			v = common.Sigmoid(v)
		}
		out[i] = v
	}

	c.rings[st.Name].Push(out)
}

// collapseHarmonics reduces a channel-interleaved feature frame to one
// value per frequency bin using the stage's harmonic collapse weights.
func (c *FrameCNN) collapseHarmonics(frame []float64, weights []float64) []float64 {
	numHarm := len(weights)
	for b := range c.colMix {
		acc := 0.0
		base := b * numHarm
		for h, w := range weights {
			acc += w * frame[base+h]
		}
		c.colMix[b] = acc
	}
	return c.colMix
}

func cloneFrame(frame []float64) []float64 {
	out := make([]float64, len(frame))
	copy(out, frame)
	return out
}
