package transcription

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rampTensor(t *testing.T, numFrames int) *FeatureTensor {
	t.Helper()
	tensor := NewFeatureTensor(numFrames, 1, 1)
	for f := 0; f < numFrames; f++ {
		tensor.setFrame(f, []float64{float64(f + 1)})
	}
	return tensor
}

func TestAssembleAlignsOutputToInput(t *testing.T) {
	// The identity model makes alignment directly observable: row r of
	// every posteriorgram must equal input frame r, for any input length,
	// including lengths at or below the pipeline lookahead.
	for _, numFrames := range []int{1, 2, 3, 8, 50} {
		m := identityModel(t, 1)
		asm := NewPosteriorgramAssembler(NewFrameCNN(m), m.Feature)

		tensor := rampTensor(t, numFrames)
		contour, note, onset, err := asm.Assemble(context.Background(), tensor)
		require.NoError(t, err, "numFrames=%d", numFrames)

		require.Equal(t, numFrames, contour.NumFrames())
		require.Equal(t, numFrames, note.NumFrames())
		require.Equal(t, numFrames, onset.NumFrames())

		for r := 0; r < numFrames; r++ {
			assert.Equal(t, float64(r+1), contour.At(r, 0), "numFrames=%d row=%d", numFrames, r)
			assert.Equal(t, float64(r+1), note.At(r, 0), "numFrames=%d row=%d", numFrames, r)
			assert.Equal(t, float64(r+1), onset.At(r, 0), "numFrames=%d row=%d", numFrames, r)
		}

		assert.Equal(t, PhaseDone, asm.Phase())
	}
}

func TestAssembleIsDeterministic(t *testing.T) {
	m := identityModel(t, 2)
	asm := NewPosteriorgramAssembler(NewFrameCNN(m), m.Feature)

	tensor := NewFeatureTensor(20, 2, 1)
	for f := 0; f < 20; f++ {
		tensor.setFrame(f, []float64{float64(f), float64(f) * 0.5})
	}

	c1, n1, o1, err := asm.Assemble(context.Background(), tensor)
	require.NoError(t, err)
	c2, n2, o2, err := asm.Assemble(context.Background(), tensor)
	require.NoError(t, err)

	assert.True(t, c1.Equal(c2))
	assert.True(t, n1.Equal(n2))
	assert.True(t, o1.Equal(o2))
}

func TestAssembleEmptyTensor(t *testing.T) {
	m := identityModel(t, 1)
	asm := NewPosteriorgramAssembler(NewFrameCNN(m), m.Feature)

	_, _, _, err := asm.Assemble(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyAudio)

	_, _, _, err = asm.Assemble(context.Background(), NewFeatureTensor(0, 1, 1))
	assert.ErrorIs(t, err, ErrEmptyAudio)
}

func TestAssembleObservesCancellation(t *testing.T) {
	m := identityModel(t, 1)
	asm := NewPosteriorgramAssembler(NewFrameCNN(m), m.Feature)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, _, err := asm.Assemble(ctx, rampTensor(t, 10))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, PhaseDone, asm.Phase())
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "priming", PhasePriming.String())
	assert.Equal(t, "compensating", PhaseCompensating.String())
	assert.Equal(t, "emitting", PhaseEmitting.String())
	assert.Equal(t, "draining", PhaseDraining.String())
	assert.Equal(t, "done", PhaseDone.String())
	assert.Equal(t, "unknown", Phase(99).String())
}
