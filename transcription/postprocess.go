package transcription

import (
	"math"

	"github.com/RyanBlaney/cadenza/algorithms/common"
	"github.com/RyanBlaney/cadenza/logging"
	"github.com/RyanBlaney/cadenza/transcription/config"
	"github.com/RyanBlaney/cadenza/transcription/model"
)

// maxSnapDistance bounds the scale-snap search; a pitch further than a
// tritone from every scale tone is left where it is.
const maxSnapDistance = 6

// PostProcessor applies the deterministic cleanup pipeline to a decoded
// note list: scale snapping, pitch-range filtering, rhythmic quantization,
// same-pitch merging and overlap bend clipping, in that order. The input
// list is never mutated, so the engine can keep the raw decoder output
// cached and re-run post-processing with different settings.
type PostProcessor struct {
	spec   model.FeatureSpec
	logger logging.Logger
}

// NewPostProcessor creates a post-processor for notes decoded under the
// given feature spec.
func NewPostProcessor(spec model.FeatureSpec) *PostProcessor {
	return &PostProcessor{
		spec: spec,
		logger: logging.WithFields(logging.Fields{
			"component": "post_processor",
		}),
	}
}

// Process runs the full pipeline and returns a new, sorted note list.
func (pp *PostProcessor) Process(notes []NoteEvent, cfg config.Config) []NoteEvent {
	out := CloneNotes(notes)

	if cfg.ScaleSnap.Enabled {
		pp.snapToScale(out, cfg.ScaleSnap)
	}
	out = pp.filterPitchRange(out, cfg.PitchMin, cfg.PitchMax)
	if cfg.Quantize.Enabled {
		out = pp.quantize(out, cfg.Quantize)
	}
	out = pp.mergeSamePitch(out)
	pp.clipOverlapBends(out)

	SortNotes(out)

	pp.logger.Debug("post-processing complete", logging.Fields{
		"notes_in":  len(notes),
		"notes_out": len(out),
	})
	return out
}

// snapToScale moves each pitch to the nearest scale tone. Ties between an
// equally distant tone below and above resolve to the lower one.
func (pp *PostProcessor) snapToScale(notes []NoteEvent, snap config.ScaleSnapConfig) {
	for i := range notes {
		p := notes[i].Pitch
		if snap.Scale.Contains(snap.Root, p) {
			continue
		}
		for d := 1; d <= maxSnapDistance; d++ {
			if snap.Scale.Contains(snap.Root, p-d) {
				notes[i].Pitch = p - d
				break
			}
			if snap.Scale.Contains(snap.Root, p+d) {
				notes[i].Pitch = p + d
				break
			}
		}
	}
}

func (pp *PostProcessor) filterPitchRange(notes []NoteEvent, min, max int) []NoteEvent {
	out := notes[:0]
	for _, n := range notes {
		if n.Pitch >= min && n.Pitch <= max {
			out = append(out, n)
		}
	}
	return out
}

// quantize moves each boundary toward its nearest grid line by the
// configured strength. Start and end move independently; a note whose
// boundaries collapse onto each other is dropped. Bends are truncated to
// the new duration, never extended.
func (pp *PostProcessor) quantize(notes []NoteEvent, q config.QuantizeConfig) []NoteEvent {
	grid := q.GridSeconds()
	frameDur := pp.spec.FrameDuration()

	out := notes[:0]
	for _, n := range notes {
		n.StartTime = common.Lerp(n.StartTime, math.Round(n.StartTime/grid)*grid, q.Strength)
		n.EndTime = common.Lerp(n.EndTime, math.Round(n.EndTime/grid)*grid, q.Strength)
		if n.EndTime-n.StartTime <= common.Epsilon {
			continue
		}
		maxBends := int(math.Round(n.Duration() / frameDur))
		if len(n.PitchBends) > maxBends {
			n.PitchBends = n.PitchBends[:maxBends]
		}
		out = append(out, n)
	}
	return out
}

// mergeSamePitch joins overlapping or touching notes of the same pitch into
// one note spanning their union. The merged amplitude is the louder of the
// two; the merged bend curve keeps the earlier note's full curve, zero-fills
// any gap before the later note's start, and takes the later note's bends
// only for frames past the earlier curve's end.
func (pp *PostProcessor) mergeSamePitch(notes []NoteEvent) []NoteEvent {
	SortNotes(notes)
	frameDur := pp.spec.FrameDuration()

	byPitch := make(map[int][]NoteEvent)
	for _, n := range notes {
		byPitch[n.Pitch] = append(byPitch[n.Pitch], n)
	}

	out := notes[:0]
	for _, group := range byPitch {
		cur := group[0]
		for _, next := range group[1:] {
			if next.StartTime > cur.EndTime {
				out = append(out, cur)
				cur = next
				continue
			}

			offset := int(math.Round((next.StartTime - cur.StartTime) / frameDur))
			end := math.Max(cur.EndTime, next.EndTime)
			total := int(math.Round((end - cur.StartTime) / frameDur))

			merged := make([]float64, total)
			copy(merged, cur.PitchBends)
			for i, b := range next.PitchBends {
				idx := offset + i
				if idx >= total {
					break
				}
				// Where the curves overlap the earlier note wins.
				if idx < len(cur.PitchBends) {
					continue
				}
				merged[idx] = b
			}

			cur.EndTime = end
			cur.Amplitude = math.Max(cur.Amplitude, next.Amplitude)
			cur.PitchBends = merged
		}
		out = append(out, cur)
	}
	return out
}

// clipOverlapBends truncates a note's bend curve at the onset of any
// overlapping note on a different pitch. Once a second pitch sounds, the
// contour energy around either note is no longer attributable to one of
// them, so bends past that point are unreliable.
func (pp *PostProcessor) clipOverlapBends(notes []NoteEvent) {
	SortNotes(notes)
	frameDur := pp.spec.FrameDuration()

	for i := range notes {
		cur := &notes[i]
		if len(cur.PitchBends) == 0 {
			continue
		}
		for j := i + 1; j < len(notes); j++ {
			other := &notes[j]
			if other.StartTime >= cur.EndTime {
				break
			}
			if other.Pitch == cur.Pitch {
				continue
			}
			keep := int(math.Round((other.StartTime - cur.StartTime) / frameDur))
			if keep < 0 {
				keep = 0
			}
			if keep < len(cur.PitchBends) {
				cur.PitchBends = cur.PitchBends[:keep]
			}
			break
		}
	}
}
