// Package models contains shared data models used across the ZenLearn reaction service.
package models

import (
	"context"
	"errors"
	"io"
)

// Transcriber turns a recorded speech clip into text.
// Never call specific speech providers directly; always inject this interface.
type Transcriber interface {
	// Transcribe reads the audio file at path and returns its transcript.
	Transcribe(ctx context.Context, path string) (string, error)
	// Name returns the provider identifier (e.g., "openai", "groq").
	Name() string
}

// ReactionGenerator produces the audience reaction for a rendered prompt.
type ReactionGenerator interface {
	// Generate returns the raw model output, expected as "[emotion] text".
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}

// Synthesizer converts reaction text into encoded audio.
type Synthesizer interface {
	// Synthesize returns an audio stream the caller must close.
	Synthesize(ctx context.Context, text, voiceID string) (io.ReadCloser, error)
	// DefaultVoice is the voice used when a request names none.
	DefaultVoice() string
	Name() string
}

// Provider failure classes. Implementations wrap these so callers can match with errors.Is.
var (
	ErrProviderUnavailable = errors.New("ai provider unavailable")
	ErrInferenceTimeout    = errors.New("ai inference timeout")
	ErrInvalidResponse     = errors.New("ai provider returned invalid response")
)
