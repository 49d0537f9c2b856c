package transcription

import (
	"fmt"

	"github.com/RyanBlaney/cadenza/algorithms/common"
	"github.com/RyanBlaney/cadenza/logging"
	"github.com/RyanBlaney/cadenza/transcription/config"
	"github.com/RyanBlaney/cadenza/transcription/model"
)

// NoteDecoder converts the three posteriorgrams of a job into discrete note
// events. Decoding is deterministic: the same posteriorgrams and config
// always yield the same note list, which is what makes cached re-decoding
// with new thresholds safe.
//
// The algorithm is onset-gated segment growth. A note starts at a local
// maximum of the onset posteriorgram that reaches the onset threshold, and
// extends while the note posteriorgram sustains the frame threshold, ending
// early if another onset fires on the same pitch. Per-frame pitch bends are
// read from the contour posteriorgram as the probability-weighted deviation
// around the note's center bin.
type NoteDecoder struct {
	spec   model.FeatureSpec
	logger logging.Logger
}

// NewNoteDecoder creates a decoder for posteriorgrams produced under the
// given feature spec.
func NewNoteDecoder(spec model.FeatureSpec) *NoteDecoder {
	return &NoteDecoder{
		spec: spec,
		logger: logging.WithFields(logging.Fields{
			"component": "note_decoder",
		}),
	}
}

// Decode extracts note events. The posteriorgrams must share a frame count;
// notes outside the config's pitch range are never produced. Thresholds are
// inclusive: a probability exactly at a threshold passes it.
func (d *NoteDecoder) Decode(contour, note, onset *Posteriorgram, cfg config.Config) ([]NoteEvent, error) {
	if contour == nil || note == nil || onset == nil {
		return nil, fmt.Errorf("decoding requires all three posteriorgrams")
	}
	numFrames := note.NumFrames()
	if contour.NumFrames() != numFrames || onset.NumFrames() != numFrames {
		return nil, fmt.Errorf("posteriorgram frame counts differ: contour=%d note=%d onset=%d",
			contour.NumFrames(), numFrames, onset.NumFrames())
	}

	minFrames := cfg.MinNoteDurationFrames(d.spec.SampleRate, d.spec.HopSize)
	frameDur := d.spec.FrameDuration()

	notes := make([]NoteEvent, 0, 32)

	for p := 0; p < note.NumBins(); p++ {
		pitch := d.spec.MinMIDIPitch + p
		if pitch < cfg.PitchMin || pitch > cfg.PitchMax {
			continue
		}

		onsets := d.onsetFrames(onset, p, cfg.OnsetThreshold)
		for i, start := range onsets {
			nextOnset := numFrames
			if i+1 < len(onsets) {
				nextOnset = onsets[i+1]
			}

			end := start + 1
			for end < nextOnset && note.At(end, p) >= cfg.FrameThreshold {
				end++
			}
			if end-start < minFrames {
				continue
			}

			notes = append(notes, NoteEvent{
				StartTime:  float64(start) * frameDur,
				EndTime:    float64(end) * frameDur,
				Pitch:      pitch,
				Amplitude:  d.segmentAmplitude(note, p, start, end),
				PitchBends: d.segmentBends(contour, p, start, end),
			})
		}
	}

	SortNotes(notes)

	d.logger.Debug("notes decoded", logging.Fields{
		"frames": numFrames,
		"notes":  len(notes),
	})
	return notes, nil
}

// onsetFrames returns the frames where the onset posteriorgram for one
// pitch has a local maximum at or above the threshold, in ascending order.
// Plateaus resolve to their first frame: the left comparison is strict, the
// right one is not.
func (d *NoteDecoder) onsetFrames(onset *Posteriorgram, p int, threshold float64) []int {
	n := onset.NumFrames()
	var frames []int
	for t := 0; t < n; t++ {
		v := onset.At(t, p)
		if v < threshold {
			continue
		}
		if t > 0 && onset.At(t-1, p) >= v {
			continue
		}
		if t < n-1 && onset.At(t+1, p) > v {
			continue
		}
		frames = append(frames, t)
	}
	return frames
}

// segmentAmplitude averages the note probability across the segment, which
// serves as a velocity-like loudness proxy in [0,1].
func (d *NoteDecoder) segmentAmplitude(note *Posteriorgram, p, start, end int) float64 {
	vals := make([]float64, 0, end-start)
	for t := start; t < end; t++ {
		vals = append(vals, note.At(t, p))
	}
	return common.Clamp(common.Mean(vals), 0, 1)
}

// segmentBends computes one semitone offset per frame from the contour
// posteriorgram: the probability-weighted centroid of the bins around the
// note's center, converted from bins to semitones. Frames with negligible
// contour energy in the window yield a zero bend.
func (d *NoteDecoder) segmentBends(contour *Posteriorgram, p, start, end int) []float64 {
	center := p * d.spec.BinsPerSemitone
	halfWidth := d.spec.BinsPerSemitone + 1

	bends := make([]float64, end-start)
	for t := start; t < end; t++ {
		num, den := 0.0, 0.0
		for b := center - halfWidth; b <= center+halfWidth; b++ {
			if b < 0 || b >= contour.NumBins() {
				continue
			}
			v := contour.At(t, b)
			num += float64(b-center) * v
			den += v
		}
		if den < common.Epsilon {
			continue
		}
		bends[t-start] = num / den / float64(d.spec.BinsPerSemitone)
	}
	return bends
}
