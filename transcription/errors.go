package transcription

import "errors"

// Sentinel errors returned by the transcription pipeline. Callers branch on
// these with errors.Is; everything else is wrapped context.
var (
	// ErrNotInitialized is returned when the engine or one of its
	// components failed construction and cannot run inference.
	ErrNotInitialized = errors.New("transcription: not initialized")

	// ErrEmptyAudio is returned when a job is started with no samples.
	ErrEmptyAudio = errors.New("transcription: empty audio")

	// ErrJobInFlight is returned when Transcribe is called while another
	// job is still running on the engine.
	ErrJobInFlight = errors.New("transcription: job already in flight")

	// ErrCancelled is returned when a job is abandoned via Cancel.
	ErrCancelled = errors.New("transcription: job cancelled")

	// ErrInvalidState is returned when an operation requires pipeline
	// results that the engine has not produced yet.
	ErrInvalidState = errors.New("transcription: invalid state for operation")
)
