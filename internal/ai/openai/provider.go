package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"github.com/priyadarshi7/ZenLearn/internal/config"
	"github.com/priyadarshi7/ZenLearn/pkg/models"
)

// Provider implements models.Transcriber and models.ReactionGenerator against the
// OpenAI API or any OpenAI-compatible endpoint such as Groq.
type Provider struct {
	name            string
	client          openai.Client
	transcribeModel string
	chatModel       string
	temperature     float64
	maxTokens       int
}

// NewProvider creates a Provider. name is reported by Name ("openai", "groq").
// SDK retries are disabled; a failed call fails the stage.
func NewProvider(name string, cfg config.OpenAIConfig, temperature float64, maxTokens int, httpClient *http.Client) *Provider {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	return &Provider{
		name:            name,
		client:          openai.NewClient(opts...),
		transcribeModel: cfg.TranscribeModel,
		chatModel:       cfg.ChatModel,
		temperature:     temperature,
		maxTokens:       maxTokens,
	}
}

func (p *Provider) Name() string { return p.name }

// Transcribe uploads the clip at path to the transcription endpoint.
func (p *Provider) Transcribe(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open clip: %w", err)
	}
	defer f.Close()

	resp, err := p.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  f,
		Model: openai.AudioModel(p.transcribeModel),
	})
	if err != nil {
		return "", classifyError(err)
	}

	return strings.TrimSpace(resp.Text), nil
}

// Generate sends the rendered prompt as a single user message.
func (p *Provider) Generate(ctx context.Context, prompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.chatModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(p.temperature),
	}
	if p.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(p.maxTokens))
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classifyError(err)
	}

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: no completion choices returned", models.ErrInvalidResponse)
	}

	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%w: empty message content", models.ErrInvalidResponse)
	}
	return content, nil
}

// classifyError maps SDK and transport errors to the ai sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", models.ErrInferenceTimeout, err)
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500 {
			return fmt.Errorf("%w: %w", models.ErrProviderUnavailable, err)
		}
		return fmt.Errorf("openai API call failed: %w", err)
	}

	return fmt.Errorf("%w: %w", models.ErrProviderUnavailable, err)
}

var (
	_ models.Transcriber       = (*Provider)(nil)
	_ models.ReactionGenerator = (*Provider)(nil)
)
