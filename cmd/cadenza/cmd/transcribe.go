package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/cadenza/logging"
	"github.com/RyanBlaney/cadenza/midifile"
	"github.com/RyanBlaney/cadenza/transcode"
	"github.com/RyanBlaney/cadenza/transcription"
	"github.com/RyanBlaney/cadenza/transcription/config"
)

var (
	modelPath        string
	configPath       string
	midiOut          string
	jsonOut          string
	noteSensitivity  float64
	splitSensitivity float64
	scaleSnapRoot    int
	scaleSnapName    string
	quantizeBPM      float64
)

func init() {
	rootCmd.AddCommand(transcribeCmd)

	transcribeCmd.Flags().StringVar(&modelPath, "model", "", "model file (default: built-in model)")
	transcribeCmd.Flags().StringVar(&configPath, "config", "", "YAML config file")
	transcribeCmd.Flags().StringVarP(&midiOut, "midi", "m", "", "write notes to a MIDI file")
	transcribeCmd.Flags().StringVarP(&jsonOut, "json", "j", "", "write notes as JSON ('-' for stdout)")
	transcribeCmd.Flags().Float64Var(&noteSensitivity, "note-sensitivity", -1, "note sensitivity in [0,1], overrides config")
	transcribeCmd.Flags().Float64Var(&splitSensitivity, "split-sensitivity", -1, "note split sensitivity in [0,1], overrides config")
	transcribeCmd.Flags().IntVar(&scaleSnapRoot, "snap-root", -1, "snap pitches to a scale with this root (0=C..11=B)")
	transcribeCmd.Flags().StringVar(&scaleSnapName, "snap-scale", "", "scale to snap to (e.g. major, natural_minor)")
	transcribeCmd.Flags().Float64Var(&quantizeBPM, "quantize-bpm", 0, "quantize note boundaries to a grid at this tempo")
}

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <audio-file>",
	Short: "Transcribe an audio file to notes",
	Long: `Decodes an audio file with ffmpeg, runs the transcription pipeline
and writes the resulting notes as MIDI and/or JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTranscribe(cmd.Context(), args[0])
	},
}

func runTranscribe(ctx context.Context, audioPath string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if midiOut == "" && jsonOut == "" {
		jsonOut = "-"
	}

	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	var engine *transcription.Engine
	if modelPath != "" {
		engine = transcription.NewEngineFromFile(modelPath)
	} else {
		engine = transcription.NewEngine()
	}
	if !engine.IsInitialized() {
		return fmt.Errorf("engine initialization: %w", engine.InitError())
	}

	decoderCfg := transcode.DefaultDecoderConfig()
	decoderCfg.TargetSampleRate = engine.FeatureSpec().SampleRate
	decoder := transcode.NewDecoder(decoderCfg)

	audio, err := decoder.DecodeFile(ctx, audioPath)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", audioPath, err)
	}

	notes, err := engine.Transcribe(ctx, audio.PCM, cfg)
	if err != nil {
		return fmt.Errorf("transcribing: %w", err)
	}

	logging.Info("transcription finished", logging.Fields{
		"file":  audioPath,
		"notes": len(notes),
	})

	if midiOut != "" {
		opts := midifile.DefaultOptions()
		opts.FrameDuration = engine.FeatureSpec().FrameDuration()
		if cfg.Quantize.Enabled {
			opts.BPM = cfg.Quantize.BPM
		}
		if err := midifile.Write(midiOut, notes, opts); err != nil {
			return fmt.Errorf("writing MIDI: %w", err)
		}
	}

	if jsonOut != "" {
		if err := writeJSON(jsonOut, notes); err != nil {
			return fmt.Errorf("writing JSON: %w", err)
		}
	}
	return nil
}

func buildConfig() (config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.LoadFile(configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	if noteSensitivity >= 0 {
		cfg = cfg.WithNoteSensitivity(noteSensitivity)
	}
	if splitSensitivity >= 0 {
		cfg = cfg.WithSplitSensitivity(splitSensitivity)
	}
	if scaleSnapName != "" {
		cfg.ScaleSnap.Enabled = true
		cfg.ScaleSnap.Scale = config.ScaleID(strings.ToLower(scaleSnapName))
		if scaleSnapRoot >= 0 {
			cfg.ScaleSnap.Root = scaleSnapRoot
		}
	}
	if quantizeBPM > 0 {
		cfg.Quantize.Enabled = true
		cfg.Quantize.BPM = quantizeBPM
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func writeJSON(path string, notes []transcription.NoteEvent) error {
	out := os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(notes)
}
