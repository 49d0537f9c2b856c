package transcription

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/cadenza/transcription/config"
)

func newTestPostProcessor(t *testing.T) *PostProcessor {
	t.Helper()
	return NewPostProcessor(testFeatureSpec(4, []float64{1}))
}

func bendsOf(n int, value float64) []float64 {
	b := make([]float64, n)
	for i := range b {
		b[i] = value
	}
	return b
}

func TestProcessSnapsToScalePreferringLowerPitch(t *testing.T) {
	pp := newTestPostProcessor(t)

	cfg := config.Default()
	cfg.ScaleSnap.Enabled = true
	cfg.ScaleSnap.Root = 0 // C
	cfg.ScaleSnap.Scale = config.ScaleMajor

	notes := []NoteEvent{
		{StartTime: 0, EndTime: 1, Pitch: 61, Amplitude: 0.5}, // C#4, equidistant C/D
		{StartTime: 2, EndTime: 3, Pitch: 64, Amplitude: 0.5}, // E4, already in scale
	}

	out := pp.Process(notes, cfg)
	require.Len(t, out, 2)
	assert.Equal(t, 60, out[0].Pitch)
	assert.Equal(t, 64, out[1].Pitch)
}

func TestProcessDropsNotesOutsidePitchRange(t *testing.T) {
	pp := newTestPostProcessor(t)

	cfg := config.Default()
	cfg.PitchMin = 60
	cfg.PitchMax = 72

	notes := []NoteEvent{
		{StartTime: 0, EndTime: 1, Pitch: 50},
		{StartTime: 0, EndTime: 1, Pitch: 65},
		{StartTime: 0, EndTime: 1, Pitch: 80},
	}

	out := pp.Process(notes, cfg)
	require.Len(t, out, 1)
	assert.Equal(t, 65, out[0].Pitch)
}

func TestProcessQuantizeStrengths(t *testing.T) {
	pp := newTestPostProcessor(t)

	base := config.Default()
	base.Quantize.Enabled = true
	base.Quantize.BPM = 120
	base.Quantize.Subdivision = 4 // grid of 0.125 s

	notes := []NoteEvent{{StartTime: 0.13, EndTime: 0.49, Pitch: 60, Amplitude: 0.5}}

	cfg := base
	cfg.Quantize.Strength = 1.0
	out := pp.Process(notes, cfg)
	require.Len(t, out, 1)
	assert.InDelta(t, 0.125, out[0].StartTime, 1e-9)
	assert.InDelta(t, 0.5, out[0].EndTime, 1e-9)

	cfg = base
	cfg.Quantize.Strength = 0.0
	out = pp.Process(notes, cfg)
	require.Len(t, out, 1)
	assert.InDelta(t, 0.13, out[0].StartTime, 1e-9)
	assert.InDelta(t, 0.49, out[0].EndTime, 1e-9)

	cfg = base
	cfg.Quantize.Strength = 0.5
	out = pp.Process(notes, cfg)
	require.Len(t, out, 1)
	assert.InDelta(t, (0.13+0.125)/2, out[0].StartTime, 1e-9)
	assert.InDelta(t, (0.49+0.5)/2, out[0].EndTime, 1e-9)
}

func TestProcessQuantizeDropsCollapsedNotes(t *testing.T) {
	pp := newTestPostProcessor(t)

	cfg := config.Default()
	cfg.Quantize.Enabled = true
	cfg.Quantize.BPM = 120
	cfg.Quantize.Subdivision = 4
	cfg.Quantize.Strength = 1.0

	// Both boundaries round to the same grid line.
	notes := []NoteEvent{{StartTime: 0.01, EndTime: 0.05, Pitch: 60}}
	out := pp.Process(notes, cfg)
	assert.Empty(t, out)
}

func TestProcessMergesOverlappingSamePitch(t *testing.T) {
	pp := newTestPostProcessor(t)

	notes := []NoteEvent{
		{StartTime: 0, EndTime: 1, Pitch: 60, Amplitude: 0.4},
		{StartTime: 0.9, EndTime: 2, Pitch: 60, Amplitude: 0.7},
	}

	out := pp.Process(notes, config.Default())
	require.Len(t, out, 1)
	assert.InDelta(t, 0.0, out[0].StartTime, 1e-9)
	assert.InDelta(t, 2.0, out[0].EndTime, 1e-9)
	assert.InDelta(t, 0.7, out[0].Amplitude, 1e-9)
}

func TestProcessMergesTouchingButNotSeparatedNotes(t *testing.T) {
	pp := newTestPostProcessor(t)

	notes := []NoteEvent{
		{StartTime: 0, EndTime: 1, Pitch: 60, Amplitude: 0.5},
		{StartTime: 1, EndTime: 2, Pitch: 60, Amplitude: 0.5}, // touching: merges
		{StartTime: 2.5, EndTime: 3, Pitch: 60, Amplitude: 0.5},
	}

	out := pp.Process(notes, config.Default())
	require.Len(t, out, 2)
	assert.InDelta(t, 2.0, out[0].EndTime, 1e-9)
	assert.InDelta(t, 2.5, out[1].StartTime, 1e-9)
}

func TestProcessMergedBendCurve(t *testing.T) {
	pp := newTestPostProcessor(t)
	frameDur := testFeatureSpec(4, []float64{1}).FrameDuration()

	curBends := 20
	notes := []NoteEvent{
		{StartTime: 0, EndTime: 0.5, Pitch: 60, Amplitude: 0.5, PitchBends: bendsOf(curBends, 0.1)},
		{StartTime: 0.4, EndTime: 0.6, Pitch: 60, Amplitude: 0.5, PitchBends: bendsOf(5, 0.2)},
	}

	out := pp.Process(notes, config.Default())
	require.Len(t, out, 1)

	offset := int(math.Round(0.4 / frameDur))
	total := int(math.Round(0.6 / frameDur))
	require.Len(t, out[0].PitchBends, total)

	assert.Equal(t, 0.1, out[0].PitchBends[0])
	assert.Equal(t, 0.2, out[0].PitchBends[offset])
	// The gap between the earlier curve's end and the later note is zero.
	assert.Equal(t, 0.0, out[0].PitchBends[curBends+1])
}

func TestProcessMergedBendCurveKeepsEarlierInOverlap(t *testing.T) {
	pp := newTestPostProcessor(t)
	frameDur := testFeatureSpec(4, []float64{1}).FrameDuration()

	// Full-span curves as the decoder emits them, so the later note's
	// curve covers the whole overlap with the earlier note's tail.
	curLen := int(math.Round(1.0 / frameDur))
	nextLen := int(math.Round(1.1 / frameDur))
	notes := []NoteEvent{
		{StartTime: 0, EndTime: 1.0, Pitch: 60, Amplitude: 0.5, PitchBends: bendsOf(curLen, 0.1)},
		{StartTime: 0.9, EndTime: 2.0, Pitch: 60, Amplitude: 0.5, PitchBends: bendsOf(nextLen, 0.2)},
	}

	out := pp.Process(notes, config.Default())
	require.Len(t, out, 1)

	total := int(math.Round(2.0 / frameDur))
	require.Len(t, out[0].PitchBends, total)

	// Overlapping frames keep the earlier note's curve.
	assert.Equal(t, 0.1, out[0].PitchBends[curLen-1])
	// Frames past the earlier curve come from the later note.
	assert.Equal(t, 0.2, out[0].PitchBends[curLen])
	assert.Equal(t, 0.2, out[0].PitchBends[total-1])
}

func TestProcessClipsBendsAtOverlappingPitch(t *testing.T) {
	pp := newTestPostProcessor(t)
	frameDur := testFeatureSpec(4, []float64{1}).FrameDuration()

	notes := []NoteEvent{
		{StartTime: 0, EndTime: 1, Pitch: 60, Amplitude: 0.5, PitchBends: bendsOf(80, 0.1)},
		{StartTime: 0.5, EndTime: 1.2, Pitch: 64, Amplitude: 0.5},
	}

	out := pp.Process(notes, config.Default())
	require.Len(t, out, 2)

	keep := int(math.Round(0.5 / frameDur))
	assert.Len(t, out[0].PitchBends, keep)
	// The later note keeps its own (empty) bends.
	assert.Empty(t, out[1].PitchBends)
}

func TestProcessDoesNotMutateInput(t *testing.T) {
	pp := newTestPostProcessor(t)

	cfg := config.Default()
	cfg.ScaleSnap.Enabled = true
	cfg.ScaleSnap.Scale = config.ScaleMajor

	notes := []NoteEvent{
		{StartTime: 0, EndTime: 1, Pitch: 61, Amplitude: 0.5, PitchBends: bendsOf(10, 0.3)},
		{StartTime: 0.5, EndTime: 1.5, Pitch: 66, Amplitude: 0.5, PitchBends: bendsOf(10, 0.3)},
	}

	pp.Process(notes, cfg)

	assert.Equal(t, 61, notes[0].Pitch)
	assert.Equal(t, 66, notes[1].Pitch)
	assert.Len(t, notes[0].PitchBends, 10)
	assert.Len(t, notes[1].PitchBends, 10)
}

func TestProcessOutputSorted(t *testing.T) {
	pp := newTestPostProcessor(t)

	notes := []NoteEvent{
		{StartTime: 2, EndTime: 3, Pitch: 60},
		{StartTime: 0, EndTime: 1, Pitch: 72},
		{StartTime: 0, EndTime: 1, Pitch: 60},
	}

	out := pp.Process(notes, config.Default())
	require.Len(t, out, 3)
	assert.Equal(t, 60, out[0].Pitch)
	assert.Equal(t, 72, out[1].Pitch)
	assert.InDelta(t, 2.0, out[2].StartTime, 1e-9)
}
