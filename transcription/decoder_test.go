package transcription

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/cadenza/transcription/config"
)

// The decoder tests run on a 4-semitone pitch axis with one contour bin
// per semitone, covering pitches 21-24.

func setRange(p *Posteriorgram, bin, from, to int, value float64) {
	for t := from; t < to; t++ {
		p.Row(t)[bin] = value
	}
}

func TestDecodeSingleSustainedNote(t *testing.T) {
	spec := testFeatureSpec(4, []float64{1})
	contour := NewPosteriorgram(30, 4)
	note := NewPosteriorgram(30, 4)
	onset := NewPosteriorgram(30, 4)

	onset.Row(5)[1] = 0.9
	setRange(note, 1, 5, 21, 0.8)

	d := NewNoteDecoder(spec)
	notes, err := d.Decode(contour, note, onset, config.Default())
	require.NoError(t, err)
	require.Len(t, notes, 1)

	frameDur := spec.FrameDuration()
	n := notes[0]
	assert.Equal(t, 22, n.Pitch)
	assert.InDelta(t, 5*frameDur, n.StartTime, 1e-12)
	assert.InDelta(t, 21*frameDur, n.EndTime, 1e-12)
	assert.InDelta(t, 0.8, n.Amplitude, 1e-9)
	assert.Len(t, n.PitchBends, 16)
	for _, b := range n.PitchBends {
		assert.Equal(t, 0.0, b)
	}
}

func TestDecodeMinDurationBoundary(t *testing.T) {
	spec := testFeatureSpec(4, []float64{1})
	cfg := config.Default()
	// 120 ms at 22050/256 rounds to 10 frames.
	require.Equal(t, 10, cfg.MinNoteDurationFrames(spec.SampleRate, spec.HopSize))

	d := NewNoteDecoder(spec)

	// Exactly 10 frames survives.
	contour := NewPosteriorgram(40, 4)
	note := NewPosteriorgram(40, 4)
	onset := NewPosteriorgram(40, 4)
	onset.Row(5)[0] = 0.9
	setRange(note, 0, 5, 15, 0.7)

	notes, err := d.Decode(contour, note, onset, cfg)
	require.NoError(t, err)
	assert.Len(t, notes, 1)

	// 9 frames is dropped.
	note = NewPosteriorgram(40, 4)
	setRange(note, 0, 5, 14, 0.7)
	notes, err = d.Decode(contour, note, onset, cfg)
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestDecodeSecondOnsetSplitsNote(t *testing.T) {
	spec := testFeatureSpec(4, []float64{1})
	contour := NewPosteriorgram(40, 4)
	note := NewPosteriorgram(40, 4)
	onset := NewPosteriorgram(40, 4)

	onset.Row(5)[2] = 0.8
	onset.Row(17)[2] = 0.8
	setRange(note, 2, 5, 29, 0.9)

	d := NewNoteDecoder(spec)
	notes, err := d.Decode(contour, note, onset, config.Default())
	require.NoError(t, err)
	require.Len(t, notes, 2)

	frameDur := spec.FrameDuration()
	assert.InDelta(t, 5*frameDur, notes[0].StartTime, 1e-12)
	assert.InDelta(t, 17*frameDur, notes[0].EndTime, 1e-12)
	assert.InDelta(t, 17*frameDur, notes[1].StartTime, 1e-12)
	assert.InDelta(t, 29*frameDur, notes[1].EndTime, 1e-12)
}

func TestDecodeOnsetPlateauFiresOnce(t *testing.T) {
	spec := testFeatureSpec(4, []float64{1})
	contour := NewPosteriorgram(40, 4)
	note := NewPosteriorgram(40, 4)
	onset := NewPosteriorgram(40, 4)

	// Two equal onset frames in a row must start a single note at the
	// plateau's first frame.
	onset.Row(5)[1] = 0.9
	onset.Row(6)[1] = 0.9
	setRange(note, 1, 5, 25, 0.8)

	d := NewNoteDecoder(spec)
	notes, err := d.Decode(contour, note, onset, config.Default())
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.InDelta(t, 5*spec.FrameDuration(), notes[0].StartTime, 1e-12)
}

func TestDecodeThresholdsAreInclusive(t *testing.T) {
	spec := testFeatureSpec(4, []float64{1})
	contour := NewPosteriorgram(40, 4)
	note := NewPosteriorgram(40, 4)
	onset := NewPosteriorgram(40, 4)

	cfg := config.Default()
	onset.Row(5)[0] = cfg.OnsetThreshold
	setRange(note, 0, 5, 20, cfg.FrameThreshold)

	d := NewNoteDecoder(spec)
	notes, err := d.Decode(contour, note, onset, cfg)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.InDelta(t, 20*spec.FrameDuration(), notes[0].EndTime, 1e-12)
}

func TestDecodePitchBendsFromContourCentroid(t *testing.T) {
	spec := testFeatureSpec(4, []float64{1})
	contour := NewPosteriorgram(40, 4)
	note := NewPosteriorgram(40, 4)
	onset := NewPosteriorgram(40, 4)

	onset.Row(5)[1] = 0.9
	setRange(note, 1, 5, 20, 0.8)
	// Contour mass at the center bin plus a smaller tap one bin up:
	// centroid = (0*0.6 + 1*0.2) / 0.8 = +0.25 semitones.
	setRange(contour, 1, 5, 20, 0.6)
	setRange(contour, 2, 5, 20, 0.2)

	d := NewNoteDecoder(spec)
	notes, err := d.Decode(contour, note, onset, config.Default())
	require.NoError(t, err)
	require.Len(t, notes, 1)

	require.Len(t, notes[0].PitchBends, 15)
	for _, b := range notes[0].PitchBends {
		assert.InDelta(t, 0.25, b, 1e-9)
	}
}

func TestDecodeRespectsPitchRange(t *testing.T) {
	spec := testFeatureSpec(4, []float64{1})
	contour := NewPosteriorgram(40, 4)
	note := NewPosteriorgram(40, 4)
	onset := NewPosteriorgram(40, 4)

	onset.Row(5)[1] = 0.9 // pitch 22
	setRange(note, 1, 5, 25, 0.8)

	cfg := config.Default()
	cfg.PitchMin = 23

	d := NewNoteDecoder(spec)
	notes, err := d.Decode(contour, note, onset, cfg)
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestDecodeOutputIsSorted(t *testing.T) {
	spec := testFeatureSpec(4, []float64{1})
	contour := NewPosteriorgram(60, 4)
	note := NewPosteriorgram(60, 4)
	onset := NewPosteriorgram(60, 4)

	// Later onset on a lower pitch index, earlier on a higher one.
	onset.Row(20)[0] = 0.9
	setRange(note, 0, 20, 40, 0.8)
	onset.Row(5)[3] = 0.9
	setRange(note, 3, 5, 25, 0.8)

	d := NewNoteDecoder(spec)
	notes, err := d.Decode(contour, note, onset, config.Default())
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, 24, notes[0].Pitch)
	assert.Equal(t, 21, notes[1].Pitch)
	assert.Less(t, notes[0].StartTime, notes[1].StartTime)
}

func TestDecodeMismatchedFrames(t *testing.T) {
	spec := testFeatureSpec(4, []float64{1})
	d := NewNoteDecoder(spec)

	_, err := d.Decode(NewPosteriorgram(10, 4), NewPosteriorgram(9, 4), NewPosteriorgram(10, 4), config.Default())
	assert.Error(t, err)

	_, err = d.Decode(nil, nil, nil, config.Default())
	assert.Error(t, err)
}
