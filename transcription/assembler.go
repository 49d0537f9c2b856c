package transcription

import (
	"context"
	"fmt"

	"github.com/RyanBlaney/cadenza/logging"
	"github.com/RyanBlaney/cadenza/transcription/model"
)

// Phase enumerates the stages of the lookahead-compensation protocol the
// assembler drives. Because the network only emits the output for frame t
// after observing lookahead further frames, a full-length aligned result
// requires silence to be pushed through the pipeline before and after the
// real data. Modelling the protocol as explicit phases, instead of bare
// loop-counter arithmetic, keeps the off-by-one-prone alignment logic in
// one inspectable place.
type Phase int

const (
	// PhasePriming feeds lookahead frames of silence to fill the shift
	// registers; all outputs are discarded.
	PhasePriming Phase = iota

	// PhaseCompensating feeds the first real frames whose outputs still
	// correspond to pre-audio silence; outputs are discarded.
	PhaseCompensating

	// PhaseEmitting feeds real frames and stores each aligned output.
	PhaseEmitting

	// PhaseDraining feeds trailing silence to flush the pipeline and
	// stores the remaining aligned outputs.
	PhaseDraining

	// PhaseDone marks a completed assembly.
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhasePriming:
		return "priming"
	case PhaseCompensating:
		return "compensating"
	case PhaseEmitting:
		return "emitting"
	case PhaseDraining:
		return "draining"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// PosteriorgramAssembler drives a FrameCNN through the four-phase protocol
// and assembles its aligned outputs into three full-length posteriorgrams.
// The frame-count invariant holds for any input length, including inputs
// shorter than the pipeline lookahead, where the phases overlap: an input
// that ends before compensation finishes drains the remaining outputs from
// silence without any special casing.
type PosteriorgramAssembler struct {
	cnn    *FrameCNN
	spec   model.FeatureSpec
	phase  Phase
	logger logging.Logger
}

// NewPosteriorgramAssembler creates an assembler bound to one FrameCNN.
func NewPosteriorgramAssembler(cnn *FrameCNN, spec model.FeatureSpec) *PosteriorgramAssembler {
	return &PosteriorgramAssembler{
		cnn:   cnn,
		spec:  spec,
		phase: PhaseDone,
		logger: logging.WithFields(logging.Fields{
			"component": "posteriorgram_assembler",
		}),
	}
}

// Phase returns the protocol phase of the assembly in progress (PhaseDone
// between jobs).
func (a *PosteriorgramAssembler) Phase() Phase {
	return a.phase
}

// Assemble runs the full feature tensor through the network and returns the
// contour, note and onset posteriorgrams, each with exactly
// tensor.NumFrames() rows. The context is consulted once per frame; the
// first observed cancellation abandons the job and returns ctx.Err().
func (a *PosteriorgramAssembler) Assemble(ctx context.Context, tensor *FeatureTensor) (contourPG, notePG, onsetPG *Posteriorgram, err error) {
	if tensor == nil || tensor.NumFrames() == 0 {
		return nil, nil, nil, ErrEmptyAudio
	}

	numFrames := tensor.NumFrames()
	lookahead := a.cnn.TotalLookahead()

	contourPG = NewPosteriorgram(numFrames, a.cnn.model.StageOutBins(a.cnn.model.Heads.Contour))
	notePG = NewPosteriorgram(numFrames, a.cnn.model.StageOutBins(a.cnn.model.Heads.Note))
	onsetPG = NewPosteriorgram(numFrames, a.cnn.model.StageOutBins(a.cnn.model.Heads.Onset))

	a.cnn.Reset()
	a.setPhase(PhasePriming)
	defer a.setPhase(PhaseDone)

	silence := make([]float64, tensor.FrameWidth())
	totalCalls := numFrames + 2*lookahead
	stored := 0

	for call := 0; call < totalCalls; call++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, nil, err
		}

		a.advance(call, numFrames, lookahead)

		input := silence
		if a.phase == PhaseCompensating || a.phase == PhaseEmitting {
			input = tensor.Frame(call - lookahead)
		}

		contour, note, onset := a.cnn.FrameInference(input)

		// Output of this call aligns to real frame call-2*lookahead:
		// one lookahead for the priming silence, one for the pipeline.
		outIdx := call - 2*lookahead
		if (a.phase == PhaseEmitting || a.phase == PhaseDraining || a.phase == PhaseCompensating) && outIdx >= 0 && outIdx < numFrames {
			contourPG.setRow(outIdx, contour)
			notePG.setRow(outIdx, note)
			onsetPG.setRow(outIdx, onset)
			stored++
		}
	}

	if stored != numFrames {
		// The phase arithmetic guarantees this; a mismatch is a bug, not
		// a recoverable condition.
		return nil, nil, nil, fmt.Errorf("assembled %d of %d frames", stored, numFrames)
	}

	return contourPG, notePG, onsetPG, nil
}

// advance moves the phase machine for the given call index. Boundaries:
// priming covers the first lookahead calls, compensating the first real
// frames (at most lookahead of them), emitting the remaining real frames,
// draining the trailing silence.
func (a *PosteriorgramAssembler) advance(call, numFrames, lookahead int) {
	var next Phase
	switch {
	case call < lookahead:
		next = PhasePriming
	case call < lookahead+numFrames && call < 2*lookahead:
		next = PhaseCompensating
	case call < lookahead+numFrames:
		next = PhaseEmitting
	default:
		next = PhaseDraining
	}
	a.setPhase(next)
}

func (a *PosteriorgramAssembler) setPhase(next Phase) {
	if next == a.phase {
		return
	}
	a.logger.Debug("assembly phase transition", logging.Fields{
		"from": a.phase.String(),
		"to":   next.String(),
	})
	a.phase = next
}
