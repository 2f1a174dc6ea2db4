package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/priyadarshi7/ZenLearn/internal/config"
	"github.com/priyadarshi7/ZenLearn/pkg/models"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Generator implements models.ReactionGenerator using the Gemini API.
type Generator struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
}

// NewGenerator creates a Gemini-backed generator. The caller must Close it.
func NewGenerator(ctx context.Context, cfg config.GeminiConfig, temperature float64, maxTokens int) (*Generator, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Generator{
		client:      client,
		model:       cfg.Model,
		temperature: float32(temperature),
		maxTokens:   int32(maxTokens),
	}, nil
}

func (g *Generator) Name() string { return "gemini" }

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(g.temperature)
	if g.maxTokens > 0 {
		model.SetMaxOutputTokens(g.maxTokens)
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", classifyError(err)
	}

	text := responseText(resp)
	if text == "" {
		return "", fmt.Errorf("%w: empty gemini response", models.ErrInvalidResponse)
	}
	return text, nil
}

// Close releases the underlying gRPC connection.
func (g *Generator) Close() error {
	return g.client.Close()
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return strings.TrimSpace(sb.String())
}

func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", models.ErrInferenceTimeout, err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != 429 {
		return fmt.Errorf("gemini API call failed: %w", err)
	}

	return fmt.Errorf("%w: %w", models.ErrProviderUnavailable, err)
}

var _ models.ReactionGenerator = (*Generator)(nil)
