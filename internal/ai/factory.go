package ai

import (
	"context"
	"fmt"
	"net/http"

	"github.com/priyadarshi7/ZenLearn/internal/ai/gemini"
	"github.com/priyadarshi7/ZenLearn/internal/ai/openai"
	"github.com/priyadarshi7/ZenLearn/internal/config"
	"github.com/priyadarshi7/ZenLearn/pkg/models"
)

// NewTranscriber constructs the speech-to-text provider selected by cfg.STTProvider.
// Called once at server startup.
func NewTranscriber(cfg config.AIConfig, httpClient *http.Client) (models.Transcriber, error) {
	switch cfg.STTProvider {
	case "openai":
		return openai.NewProvider("openai", cfg.OpenAI, cfg.Temperature, cfg.MaxTokens, httpClient), nil
	case "groq":
		return openai.NewProvider("groq", cfg.Groq, cfg.Temperature, cfg.MaxTokens, httpClient), nil
	default:
		return nil, fmt.Errorf("unknown STT provider %q: must be one of openai, groq", cfg.STTProvider)
	}
}

// NewGenerator constructs the reaction LLM selected by cfg.LLMProvider.
// A gemini generator holds a connection; callers should close it when it implements io.Closer.
func NewGenerator(ctx context.Context, cfg config.AIConfig, httpClient *http.Client) (models.ReactionGenerator, error) {
	switch cfg.LLMProvider {
	case "openai":
		return openai.NewProvider("openai", cfg.OpenAI, cfg.Temperature, cfg.MaxTokens, httpClient), nil
	case "groq":
		return openai.NewProvider("groq", cfg.Groq, cfg.Temperature, cfg.MaxTokens, httpClient), nil
	case "gemini":
		return gemini.NewGenerator(ctx, cfg.Gemini, cfg.Temperature, cfg.MaxTokens)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q: must be one of openai, groq, gemini", cfg.LLMProvider)
	}
}
