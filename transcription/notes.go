package transcription

import "sort"

// NoteEvent is one transcribed note. Times are in seconds from the start of
// the audio, Pitch is a MIDI note number, Amplitude is a velocity-like
// scalar in [0,1], and PitchBends holds one semitone offset per frame
// covering [StartTime, EndTime) from the note's start. A NoteEvent is
// created by the NoteDecoder, adjusted only by the PostProcessor, and never
// mutated after being returned to the caller.
type NoteEvent struct {
	StartTime  float64   `json:"start_time"`
	EndTime    float64   `json:"end_time"`
	Pitch      int       `json:"pitch"`
	Amplitude  float64   `json:"amplitude"`
	PitchBends []float64 `json:"pitch_bends,omitempty"`
}

// Duration returns the note length in seconds.
func (n *NoteEvent) Duration() float64 {
	return n.EndTime - n.StartTime
}

// Clone returns a deep copy of the note.
func (n *NoteEvent) Clone() NoteEvent {
	c := *n
	if n.PitchBends != nil {
		c.PitchBends = make([]float64, len(n.PitchBends))
		copy(c.PitchBends, n.PitchBends)
	}
	return c
}

// SortNotes orders notes by (StartTime, Pitch), the canonical order for
// every note list this package produces.
func SortNotes(notes []NoteEvent) {
	sort.SliceStable(notes, func(i, j int) bool {
		if notes[i].StartTime != notes[j].StartTime {
			return notes[i].StartTime < notes[j].StartTime
		}
		return notes[i].Pitch < notes[j].Pitch
	})
}

// CloneNotes deep-copies a note list.
func CloneNotes(notes []NoteEvent) []NoteEvent {
	out := make([]NoteEvent, len(notes))
	for i := range notes {
		out[i] = notes[i].Clone()
	}
	return out
}
