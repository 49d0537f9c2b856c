package midifile

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/RyanBlaney/cadenza/algorithms/common"
	"github.com/RyanBlaney/cadenza/logging"
	"github.com/RyanBlaney/cadenza/transcription"
)

// Options controls Standard MIDI File export of a transcription.
type Options struct {
	// BPM is the tempo written to the file and used to convert note times
	// from seconds to ticks.
	BPM float64

	// TicksPerQuarter is the SMF time resolution.
	TicksPerQuarter uint16

	// BendRangeSemitones is the pitch bend range the receiving synth is
	// assumed to use. Decoded bend offsets are scaled into the 14-bit
	// bend value relative to this range; offsets beyond it clip.
	BendRangeSemitones float64

	// Channel is the MIDI channel for all events, 0-15.
	Channel uint8

	// FrameDuration is the spacing of pitch bend samples in seconds. It
	// must match the feature rate the notes were decoded at.
	FrameDuration float64
}

// DefaultOptions returns export settings matching the built-in model's
// frame rate and the common synth default of a two-semitone bend range.
func DefaultOptions() Options {
	return Options{
		BPM:                120,
		TicksPerQuarter:    960,
		BendRangeSemitones: 2,
		Channel:            0,
		FrameDuration:      256.0 / 22050.0,
	}
}

func (o *Options) validate() error {
	if o.BPM <= 0 {
		return fmt.Errorf("bpm %v must be positive", o.BPM)
	}
	if o.TicksPerQuarter == 0 {
		return fmt.Errorf("ticks per quarter must be positive")
	}
	if o.BendRangeSemitones <= 0 {
		return fmt.Errorf("bend range %v must be positive", o.BendRangeSemitones)
	}
	if o.Channel > 15 {
		return fmt.Errorf("channel %d out of range [0,15]", o.Channel)
	}
	if o.FrameDuration <= 0 {
		return fmt.Errorf("frame duration %v must be positive", o.FrameDuration)
	}
	return nil
}

// timedEvent is one MIDI message at an absolute tick, with a priority used
// to order simultaneous events: note-offs sort before bends and note-ons so
// a retriggered pitch is released before it restarts.
type timedEvent struct {
	tick uint32
	prio int
	msg  midi.Message
}

const (
	prioNoteOff = iota
	prioBend
	prioNoteOn
)

// Write exports notes as a single-track SMF file at the given path.
func Write(path string, notes []transcription.NoteEvent, opts Options) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating midi file: %w", err)
	}
	defer f.Close()

	if err := Encode(f, notes, opts); err != nil {
		return err
	}

	logging.Debug("midi file written", logging.Fields{
		"path":  path,
		"notes": len(notes),
	})
	return nil
}

// Encode writes notes as a single-track SMF stream.
func Encode(w io.Writer, notes []transcription.NoteEvent, opts Options) error {
	if err := opts.validate(); err != nil {
		return fmt.Errorf("midi options: %w", err)
	}

	events := buildEvents(notes, opts)

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(opts.TicksPerQuarter)

	var tr smf.Track
	tr.Add(0, smf.MetaTempo(opts.BPM))

	last := uint32(0)
	for _, ev := range events {
		tr.Add(ev.tick-last, ev.msg)
		last = ev.tick
	}
	tr.Close(0)

	if err := s.Add(tr); err != nil {
		return fmt.Errorf("adding midi track: %w", err)
	}
	if _, err := s.WriteTo(w); err != nil {
		return fmt.Errorf("writing midi stream: %w", err)
	}
	return nil
}

// buildEvents flattens notes into an absolute-tick event list sorted by
// (tick, priority).
func buildEvents(notes []transcription.NoteEvent, opts Options) []timedEvent {
	var events []timedEvent

	for _, n := range notes {
		if n.Pitch < 0 || n.Pitch > 127 {
			continue
		}
		key := uint8(n.Pitch)
		velocity := uint8(math.Round(common.Clamp(n.Amplitude, 0, 1) * 127))
		if velocity == 0 {
			velocity = 1
		}

		onTick := secondsToTicks(n.StartTime, opts)
		offTick := secondsToTicks(n.EndTime, opts)
		if offTick <= onTick {
			offTick = onTick + 1
		}

		events = append(events, timedEvent{
			tick: onTick,
			prio: prioNoteOn,
			msg:  midi.NoteOn(opts.Channel, key, velocity),
		})
		events = append(events, timedEvent{
			tick: offTick,
			prio: prioNoteOff,
			msg:  midi.NoteOff(opts.Channel, key),
		})

		for i, bend := range n.PitchBends {
			t := n.StartTime + float64(i)*opts.FrameDuration
			if t >= n.EndTime {
				break
			}
			events = append(events, timedEvent{
				tick: secondsToTicks(t, opts),
				prio: prioBend,
				msg:  midi.Pitchbend(opts.Channel, bendValue(bend, opts.BendRangeSemitones)),
			})
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return events[i].prio < events[j].prio
	})
	return events
}

func secondsToTicks(seconds float64, opts Options) uint32 {
	ticks := seconds * opts.BPM / 60.0 * float64(opts.TicksPerQuarter)
	if ticks < 0 {
		return 0
	}
	return uint32(math.Round(ticks))
}

// bendValue converts a semitone offset to the signed 14-bit pitch bend
// value, clipping at the bend range.
func bendValue(semitones, bendRange float64) int16 {
	v := semitones / bendRange * 8192.0
	return int16(common.Clamp(math.Round(v), -8192, 8191))
}
