package transcription

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/RyanBlaney/cadenza/logging"
	"github.com/RyanBlaney/cadenza/transcription/config"
	"github.com/RyanBlaney/cadenza/transcription/model"
)

// State tracks how far the engine's current job has progressed through the
// pipeline. Later operations can re-enter the pipeline from intermediate
// state: re-decoding requires StatePosteriorgramsReady, re-processing
// requires StateNotesDecoded.
type State int

const (
	StateIdle State = iota
	StateFeaturesComputed
	StatePosteriorgramsReady
	StateNotesDecoded
	StatePostProcessed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFeaturesComputed:
		return "features_computed"
	case StatePosteriorgramsReady:
		return "posteriorgrams_ready"
	case StateNotesDecoded:
		return "notes_decoded"
	case StatePostProcessed:
		return "post_processed"
	default:
		return "unknown"
	}
}

// Engine owns one transcription pipeline: feature extraction, streaming
// network inference, note decoding and post-processing. It caches every
// intermediate result of the most recent job so that threshold or
// post-processing changes re-enter the pipeline at the cheapest possible
// stage instead of re-running inference.
//
// One job runs at a time. Transcribe rejects concurrent calls with
// ErrJobInFlight rather than queueing; callers that want queueing put a
// worker in front. Cancellation is coarse: Cancel (or context
// cancellation) is observed between pipeline stages and once per frame
// during assembly.
type Engine struct {
	mu        sync.Mutex
	inFlight  atomic.Bool
	cancelled atomic.Bool
	jobCancel atomic.Value // context.CancelFunc of the running job

	modelSet  *model.ModelSet
	extractor *FeatureExtractor
	cnn       *FrameCNN
	assembler *PosteriorgramAssembler
	decoder   *NoteDecoder
	postproc  *PostProcessor
	initErr   error
	logger    logging.Logger

	// Cached results of the most recent job, guarded by mu.
	state     State
	cfg       config.Config
	features  *FeatureTensor
	contourPG *Posteriorgram
	notePG    *Posteriorgram
	onsetPG   *Posteriorgram
	rawNotes  []NoteEvent
	notes     []NoteEvent
}

// NewEngine creates an engine running the built-in model.
func NewEngine() *Engine {
	return newEngine(model.Builtin(), nil)
}

// NewEngineFromFile creates an engine from a model file. Load failures do
// not return an error: the engine is constructed not-initialized and every
// job on it fails with ErrNotInitialized, mirroring how a host application
// keeps running with transcription disabled when its model asset is bad.
func NewEngineFromFile(path string) *Engine {
	m, err := model.Load(path)
	if err != nil {
		return newEngine(nil, fmt.Errorf("loading model: %w", err))
	}
	return newEngine(m, nil)
}

func newEngine(m *model.ModelSet, initErr error) *Engine {
	e := &Engine{
		state:  StateIdle,
		cfg:    config.Default(),
		logger: logging.WithFields(logging.Fields{"component": "engine"}),
	}
	if initErr != nil {
		e.initErr = initErr
		e.logger.Error(initErr, "engine initialization failed")
		return e
	}

	e.modelSet = m
	e.extractor = NewFeatureExtractor(m.Feature)
	if !e.extractor.IsInitialized() {
		e.initErr = e.extractor.InitError()
		return e
	}
	e.cnn = NewFrameCNN(m)
	e.assembler = NewPosteriorgramAssembler(e.cnn, m.Feature)
	e.decoder = NewNoteDecoder(m.Feature)
	e.postproc = NewPostProcessor(m.Feature)
	return e
}

// IsInitialized reports whether the engine can run jobs.
func (e *Engine) IsInitialized() bool { return e.initErr == nil }

// InitError returns the construction failure, or nil.
func (e *Engine) InitError() error { return e.initErr }

// FeatureSpec returns the model's feature parameters. Only valid on an
// initialized engine.
func (e *Engine) FeatureSpec() model.FeatureSpec { return e.modelSet.Feature }

// State returns the pipeline progress of the cached job.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Transcribe runs the full pipeline on mono audio at the model sample rate
// and returns the post-processed notes. A second call while a job is
// running fails immediately with ErrJobInFlight. Cancellation, via ctx or
// Cancel, abandons the job with ErrCancelled and leaves the previous job's
// cached results intact.
func (e *Engine) Transcribe(ctx context.Context, audio []float64, cfg config.Config) ([]NoteEvent, error) {
	if e.initErr != nil {
		return nil, ErrNotInitialized
	}
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if !e.inFlight.CompareAndSwap(false, true) {
		return nil, ErrJobInFlight
	}
	defer e.inFlight.Store(false)
	e.cancelled.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	e.jobCancel.Store(cancel)

	jobID := uuid.New().String()
	log := e.logger.WithFields(logging.Fields{"job_id": jobID})
	log.Info("transcription started", logging.Fields{
		"samples":  len(audio),
		"duration": float64(len(audio)) / float64(e.modelSet.Feature.SampleRate),
	})

	cfg = cfg.Clone()

	features, numFrames, err := e.extractor.ComputeFeatures(audio)
	if err != nil {
		return nil, err
	}
	log.Debug("features ready", logging.Fields{"frames": numFrames})
	if err := e.checkpoint(ctx); err != nil {
		return nil, err
	}

	contourPG, notePG, onsetPG, err := e.assembler.Assemble(ctx, features)
	if err != nil {
		if e.cancelled.Load() || ctx.Err() != nil {
			return nil, ErrCancelled
		}
		return nil, err
	}
	if err := e.checkpoint(ctx); err != nil {
		return nil, err
	}

	rawNotes, err := e.decoder.Decode(contourPG, notePG, onsetPG, cfg)
	if err != nil {
		return nil, err
	}
	if err := e.checkpoint(ctx); err != nil {
		return nil, err
	}

	notes := e.postproc.Process(rawNotes, cfg)

	e.mu.Lock()
	e.state = StatePostProcessed
	e.cfg = cfg
	e.features = features
	e.contourPG = contourPG
	e.notePG = notePG
	e.onsetPG = onsetPG
	e.rawNotes = rawNotes
	e.notes = notes
	e.mu.Unlock()

	log.Info("transcription complete", logging.Fields{"notes": len(notes)})
	return CloneNotes(notes), nil
}

// Redecode re-runs decoding and post-processing against the cached
// posteriorgrams with a new config, skipping feature extraction and
// inference entirely. Requires a job that reached StatePosteriorgramsReady.
func (e *Engine) Redecode(cfg config.Config) ([]NoteEvent, error) {
	if e.initErr != nil {
		return nil, ErrNotInitialized
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if !e.inFlight.CompareAndSwap(false, true) {
		return nil, ErrJobInFlight
	}
	defer e.inFlight.Store(false)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state < StatePosteriorgramsReady {
		return nil, ErrInvalidState
	}

	cfg = cfg.Clone()
	rawNotes, err := e.decoder.Decode(e.contourPG, e.notePG, e.onsetPG, cfg)
	if err != nil {
		return nil, err
	}
	e.rawNotes = rawNotes
	e.notes = e.postproc.Process(rawNotes, cfg)
	e.cfg = cfg
	e.state = StatePostProcessed
	return CloneNotes(e.notes), nil
}

// Reprocess re-runs only post-processing against the cached raw notes with
// a new config. Requires a job that reached StateNotesDecoded.
func (e *Engine) Reprocess(cfg config.Config) ([]NoteEvent, error) {
	if e.initErr != nil {
		return nil, ErrNotInitialized
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if !e.inFlight.CompareAndSwap(false, true) {
		return nil, ErrJobInFlight
	}
	defer e.inFlight.Store(false)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state < StateNotesDecoded {
		return nil, ErrInvalidState
	}

	cfg = cfg.Clone()
	e.notes = e.postproc.Process(e.rawNotes, cfg)
	e.cfg = cfg
	e.state = StatePostProcessed
	return CloneNotes(e.notes), nil
}

// Notes returns a copy of the most recent post-processed note list.
func (e *Engine) Notes() []NoteEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return CloneNotes(e.notes)
}

// RawNotes returns a copy of the decoder output before post-processing.
func (e *Engine) RawNotes() []NoteEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return CloneNotes(e.rawNotes)
}

// Posteriorgrams returns the cached contour, note and onset posteriorgrams
// of the most recent job, or nils before one completes. They are shared
// read-only snapshots.
func (e *Engine) Posteriorgrams() (contour, note, onset *Posteriorgram) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.contourPG, e.notePG, e.onsetPG
}

// Config returns the config of the most recent job.
func (e *Engine) Config() config.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.Clone()
}

// Cancel requests abandonment of the running job. It is observed at stage
// boundaries and per frame during assembly; a job that already finished is
// unaffected.
func (e *Engine) Cancel() {
	e.cancelled.Store(true)
	if cancel, ok := e.jobCancel.Load().(context.CancelFunc); ok && cancel != nil {
		cancel()
	}
}

// Reset discards all cached job state. Fails with ErrJobInFlight while a
// job is running.
func (e *Engine) Reset() error {
	if !e.inFlight.CompareAndSwap(false, true) {
		return ErrJobInFlight
	}
	defer e.inFlight.Store(false)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = StateIdle
	e.cfg = config.Default()
	e.features = nil
	e.contourPG, e.notePG, e.onsetPG = nil, nil, nil
	e.rawNotes, e.notes = nil, nil
	return nil
}

// checkpoint reports cancellation between pipeline stages.
func (e *Engine) checkpoint(ctx context.Context) error {
	if e.cancelled.Load() {
		return ErrCancelled
	}
	if err := ctx.Err(); err != nil {
		return ErrCancelled
	}
	return nil
}
