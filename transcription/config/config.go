package config

import (
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/cadenza/algorithms/common"
)

// Default detection thresholds and post-processing parameters. These are the
// values the engine uses when the caller passes a zero Config through
// Default().
const (
	DefaultOnsetThreshold    = 0.5
	DefaultFrameThreshold    = 0.3
	DefaultMinNoteDurationMs = 120.0
	DefaultPitchMin          = 21
	DefaultPitchMax          = 108
	DefaultQuantizeBPM       = 120.0
	DefaultQuantizeSubdiv    = 4
	DefaultQuantizeStrength  = 1.0
)

// Config carries every user-tunable parameter of a transcription job:
// decoding thresholds, the accepted pitch range, and the optional
// post-processing steps. A Config is a value; the engine clones it at job
// start so later mutation by the caller cannot affect a running job.
type Config struct {
	// OnsetThreshold is the minimum onset probability at which a local
	// maximum starts a note. Values at the threshold count.
	OnsetThreshold float64 `yaml:"onset_threshold" json:"onset_threshold"`

	// FrameThreshold is the minimum note probability for a frame to
	// sustain a running note. Values at the threshold count.
	FrameThreshold float64 `yaml:"frame_threshold" json:"frame_threshold"`

	// MinNoteDurationMs drops decoded notes shorter than this.
	MinNoteDurationMs float64 `yaml:"min_note_duration_ms" json:"min_note_duration_ms"`

	// PitchMin and PitchMax bound the MIDI pitches kept by decoding and
	// post-processing, inclusive.
	PitchMin int `yaml:"pitch_min" json:"pitch_min"`
	PitchMax int `yaml:"pitch_max" json:"pitch_max"`

	ScaleSnap ScaleSnapConfig `yaml:"scale_snap" json:"scale_snap"`
	Quantize  QuantizeConfig  `yaml:"quantize" json:"quantize"`
}

// ScaleSnapConfig moves note pitches onto the nearest pitch of a scale.
type ScaleSnapConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Root is the tonic as a pitch class, 0 = C through 11 = B.
	Root int `yaml:"root" json:"root"`

	// Scale names the interval pattern; see ScaleID.
	Scale ScaleID `yaml:"scale" json:"scale"`
}

// QuantizeConfig aligns note boundaries to a rhythmic grid.
type QuantizeConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// BPM is the tempo defining the grid.
	BPM float64 `yaml:"bpm" json:"bpm"`

	// Subdivision is the number of grid lines per beat; 4 lines up to
	// sixteenth notes at the given BPM.
	Subdivision int `yaml:"subdivision" json:"subdivision"`

	// Strength in [0,1] interpolates each boundary toward its grid line:
	// 0 leaves notes untouched, 1 snaps them exactly.
	Strength float64 `yaml:"strength" json:"strength"`
}

// Default returns the configuration used when the caller does not supply
// one. Post-processing steps default to disabled.
func Default() Config {
	return Config{
		OnsetThreshold:    DefaultOnsetThreshold,
		FrameThreshold:    DefaultFrameThreshold,
		MinNoteDurationMs: DefaultMinNoteDurationMs,
		PitchMin:          DefaultPitchMin,
		PitchMax:          DefaultPitchMax,
		ScaleSnap: ScaleSnapConfig{
			Enabled: false,
			Root:    0,
			Scale:   ScaleChromatic,
		},
		Quantize: QuantizeConfig{
			Enabled:     false,
			BPM:         DefaultQuantizeBPM,
			Subdivision: DefaultQuantizeSubdiv,
			Strength:    DefaultQuantizeStrength,
		},
	}
}

// Validate checks that every field is inside its documented range.
func (c *Config) Validate() error {
	if c.OnsetThreshold <= 0 || c.OnsetThreshold > 1 {
		return fmt.Errorf("onset_threshold %v out of range (0,1]", c.OnsetThreshold)
	}
	if c.FrameThreshold <= 0 || c.FrameThreshold > 1 {
		return fmt.Errorf("frame_threshold %v out of range (0,1]", c.FrameThreshold)
	}
	if c.MinNoteDurationMs < 0 {
		return fmt.Errorf("min_note_duration_ms %v is negative", c.MinNoteDurationMs)
	}
	if c.PitchMin < 0 || c.PitchMax > 127 || c.PitchMin > c.PitchMax {
		return fmt.Errorf("pitch range [%d,%d] invalid", c.PitchMin, c.PitchMax)
	}
	if c.ScaleSnap.Enabled {
		if c.ScaleSnap.Root < 0 || c.ScaleSnap.Root > 11 {
			return fmt.Errorf("scale_snap.root %d out of range [0,11]", c.ScaleSnap.Root)
		}
		if _, ok := scaleIntervals[c.ScaleSnap.Scale]; !ok {
			return fmt.Errorf("scale_snap.scale %q unknown", c.ScaleSnap.Scale)
		}
	}
	if c.Quantize.Enabled {
		if c.Quantize.BPM <= 0 {
			return fmt.Errorf("quantize.bpm %v must be positive", c.Quantize.BPM)
		}
		if c.Quantize.Subdivision < 1 {
			return fmt.Errorf("quantize.subdivision %d must be at least 1", c.Quantize.Subdivision)
		}
		if c.Quantize.Strength < 0 || c.Quantize.Strength > 1 {
			return fmt.Errorf("quantize.strength %v out of range [0,1]", c.Quantize.Strength)
		}
	}
	return nil
}

// Clone returns an independent copy.
func (c *Config) Clone() Config {
	return *c
}

// WithNoteSensitivity sets FrameThreshold from a sensitivity knob in [0,1]:
// higher sensitivity means a lower threshold and more sustained notes. The
// resulting threshold is clamped to [0.05,0.95] so the extremes stay usable.
func (c Config) WithNoteSensitivity(s float64) Config {
	c.FrameThreshold = common.Clamp(1-s, 0.05, 0.95)
	return c
}

// WithSplitSensitivity sets OnsetThreshold from a sensitivity knob in [0,1]:
// higher sensitivity splits sustained sound into more notes.
func (c Config) WithSplitSensitivity(s float64) Config {
	c.OnsetThreshold = common.Clamp(1-s, 0.05, 0.95)
	return c
}

// MinNoteDurationFrames converts the minimum duration to whole frames at
// the given feature rate, never less than one frame.
func (c *Config) MinNoteDurationFrames(sampleRate, hopSize int) int {
	frames := int(math.Round(c.MinNoteDurationMs / 1000.0 * float64(sampleRate) / float64(hopSize)))
	if frames < 1 {
		return 1
	}
	return frames
}

// GridSeconds returns the quantization grid spacing in seconds.
func (q *QuantizeConfig) GridSeconds() float64 {
	return 60.0 / q.BPM / float64(q.Subdivision)
}

// LoadFile reads a YAML config from disk, applying defaults for absent
// fields before validating.
func LoadFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("opening config: %w", err)
	}
	defer f.Close()
	return LoadReader(f)
}

// LoadReader decodes a YAML config on top of the defaults.
func LoadReader(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
