package mock

import (
	"context"
	"io"
	"strings"
	"sync/atomic"

	"github.com/priyadarshi7/ZenLearn/internal/ai"
	"github.com/priyadarshi7/ZenLearn/pkg/models"
)

// MockTranscriber satisfies models.Transcriber for testing.
type MockTranscriber struct {
	Name_          string
	TranscribeFunc func(ctx context.Context, path string) (string, error)
	Calls          atomic.Int32
}

func (m *MockTranscriber) Name() string { return m.Name_ }

func (m *MockTranscriber) Transcribe(ctx context.Context, path string) (string, error) {
	m.Calls.Add(1)
	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, path)
	}
	return "", nil
}

// MockGenerator satisfies models.ReactionGenerator for testing.
type MockGenerator struct {
	Name_        string
	GenerateFunc func(ctx context.Context, prompt string) (string, error)
	Calls        atomic.Int32
}

func (m *MockGenerator) Name() string { return m.Name_ }

func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.Calls.Add(1)
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt)
	}
	return "", nil
}

// MockSynthesizer satisfies models.Synthesizer for testing.
type MockSynthesizer struct {
	Name_          string
	Voice          string
	SynthesizeFunc func(ctx context.Context, text, voiceID string) (io.ReadCloser, error)
	Calls          atomic.Int32
}

func (m *MockSynthesizer) Name() string { return m.Name_ }

// DefaultVoice returns Voice, or "mock-voice" when unset.
func (m *MockSynthesizer) DefaultVoice() string {
	if m.Voice == "" {
		return "mock-voice"
	}
	return m.Voice
}

func (m *MockSynthesizer) Synthesize(ctx context.Context, text, voiceID string) (io.ReadCloser, error) {
	m.Calls.Add(1)
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, text, voiceID)
	}
	return io.NopCloser(strings.NewReader("")), nil
}

// NewMockTranscriber returns a MockTranscriber that always yields transcript.
func NewMockTranscriber(transcript string) *MockTranscriber {
	return &MockTranscriber{
		Name_: "mock",
		TranscribeFunc: func(_ context.Context, _ string) (string, error) {
			return transcript, nil
		},
	}
}

// NewMockGenerator returns a MockGenerator that always yields output.
func NewMockGenerator(output string) *MockGenerator {
	return &MockGenerator{
		Name_: "mock",
		GenerateFunc: func(_ context.Context, _ string) (string, error) {
			return output, nil
		},
	}
}

// NewMockSynthesizer returns a MockSynthesizer whose stream is audio.
func NewMockSynthesizer(audio []byte) *MockSynthesizer {
	return &MockSynthesizer{
		Name_: "mock",
		SynthesizeFunc: func(_ context.Context, _, _ string) (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(string(audio))), nil
		},
	}
}

// NewFailingTranscriber returns a MockTranscriber that always returns err.
func NewFailingTranscriber(err error) *MockTranscriber {
	return &MockTranscriber{
		Name_: "mock-failing",
		TranscribeFunc: func(_ context.Context, _ string) (string, error) {
			return "", err
		},
	}
}

// NewFailingGenerator returns a MockGenerator that always returns err.
func NewFailingGenerator(err error) *MockGenerator {
	return &MockGenerator{
		Name_: "mock-failing",
		GenerateFunc: func(_ context.Context, _ string) (string, error) {
			return "", err
		},
	}
}

// NewFailingSynthesizer returns a MockSynthesizer that always returns err.
func NewFailingSynthesizer(err error) *MockSynthesizer {
	return &MockSynthesizer{
		Name_: "mock-failing",
		SynthesizeFunc: func(_ context.Context, _, _ string) (io.ReadCloser, error) {
			return nil, err
		},
	}
}

// NewTimeoutTranscriber returns a MockTranscriber that blocks until context is cancelled.
func NewTimeoutTranscriber() *MockTranscriber {
	return &MockTranscriber{
		Name_: "mock-timeout",
		TranscribeFunc: func(ctx context.Context, _ string) (string, error) {
			<-ctx.Done()
			return "", ai.ErrInferenceTimeout
		},
	}
}

// NewBlockingTranscriber returns a MockTranscriber that waits for release to be
// closed (or the context to end) before returning transcript.
func NewBlockingTranscriber(transcript string, release <-chan struct{}) *MockTranscriber {
	return &MockTranscriber{
		Name_: "mock-blocking",
		TranscribeFunc: func(ctx context.Context, _ string) (string, error) {
			select {
			case <-release:
				return transcript, nil
			case <-ctx.Done():
				return "", ctx.Err()
			}
		},
	}
}

var (
	_ models.Transcriber       = (*MockTranscriber)(nil)
	_ models.ReactionGenerator = (*MockGenerator)(nil)
	_ models.Synthesizer       = (*MockSynthesizer)(nil)
)
