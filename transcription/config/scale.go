package config

// ScaleID names an interval pattern used by scale snapping.
type ScaleID string

const (
	ScaleChromatic     ScaleID = "chromatic"
	ScaleMajor         ScaleID = "major"
	ScaleNaturalMinor  ScaleID = "natural_minor"
	ScaleHarmonicMinor ScaleID = "harmonic_minor"
	ScaleMelodicMinor  ScaleID = "melodic_minor"
	ScaleMajorPenta    ScaleID = "major_pentatonic"
	ScaleMinorPenta    ScaleID = "minor_pentatonic"
	ScaleBlues         ScaleID = "blues"
	ScaleDorian        ScaleID = "dorian"
	ScalePhrygian      ScaleID = "phrygian"
	ScaleLydian        ScaleID = "lydian"
	ScaleMixolydian    ScaleID = "mixolydian"
	ScaleLocrian       ScaleID = "locrian"
	ScaleWholeTone     ScaleID = "whole_tone"
)

// Semitone offsets from the root for each scale.
var scaleIntervals = map[ScaleID][]int{
	ScaleChromatic:     {0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
	ScaleMajor:         {0, 2, 4, 5, 7, 9, 11},
	ScaleNaturalMinor:  {0, 2, 3, 5, 7, 8, 10},
	ScaleHarmonicMinor: {0, 2, 3, 5, 7, 8, 11},
	ScaleMelodicMinor:  {0, 2, 3, 5, 7, 9, 11},
	ScaleMajorPenta:    {0, 2, 4, 7, 9},
	ScaleMinorPenta:    {0, 3, 5, 7, 10},
	ScaleBlues:         {0, 3, 5, 6, 7, 10},
	ScaleDorian:        {0, 2, 3, 5, 7, 9, 10},
	ScalePhrygian:      {0, 1, 3, 5, 7, 8, 10},
	ScaleLydian:        {0, 2, 4, 6, 7, 9, 11},
	ScaleMixolydian:    {0, 2, 4, 5, 7, 9, 10},
	ScaleLocrian:       {0, 1, 3, 5, 6, 8, 10},
	ScaleWholeTone:     {0, 2, 4, 6, 8, 10},
}

// Intervals returns the semitone offsets of the scale, or nil for an
// unknown ScaleID.
func (s ScaleID) Intervals() []int {
	iv, ok := scaleIntervals[s]
	if !ok {
		return nil
	}
	out := make([]int, len(iv))
	copy(out, iv)
	return out
}

// Contains reports whether the given MIDI pitch belongs to the scale
// rooted at the given pitch class.
func (s ScaleID) Contains(root, pitch int) bool {
	iv, ok := scaleIntervals[s]
	if !ok {
		return false
	}
	pc := ((pitch-root)%12 + 12) % 12
	for _, off := range iv {
		if off == pc {
			return true
		}
	}
	return false
}

// KnownScales lists every supported ScaleID in a stable order.
func KnownScales() []ScaleID {
	return []ScaleID{
		ScaleChromatic, ScaleMajor, ScaleNaturalMinor, ScaleHarmonicMinor,
		ScaleMelodicMinor, ScaleMajorPenta, ScaleMinorPenta, ScaleBlues,
		ScaleDorian, ScalePhrygian, ScaleLydian, ScaleMixolydian,
		ScaleLocrian, ScaleWholeTone,
	}
}
