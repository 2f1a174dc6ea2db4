// Package elevenlabs is a minimal client for the ElevenLabs text-to-speech API.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/priyadarshi7/ZenLearn/internal/config"
	"github.com/priyadarshi7/ZenLearn/pkg/models"
)

// Sentinel errors for ElevenLabs client failures.
var (
	ErrUnreachable     = errors.New("elevenlabs unreachable")
	ErrTimeout         = errors.New("elevenlabs request timeout")
	ErrSynthesisFailed = errors.New("elevenlabs synthesis failed")
	ErrEmptyText       = errors.New("nothing to synthesize")
)

const maxErrorBody = 2048

// Client implements models.Synthesizer over the ElevenLabs HTTP API.
type Client struct {
	baseURL      string
	apiKey       string
	voiceID      string
	modelID      string
	outputFormat string
	client       *http.Client
}

// NewClient creates a Client. httpClient may route through an outbound proxy.
func NewClient(cfg config.ElevenLabsConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		voiceID:      cfg.VoiceID,
		modelID:      cfg.ModelID,
		outputFormat: cfg.OutputFormat,
		client:       httpClient,
	}
}

func (c *Client) Name() string { return "elevenlabs" }

// DefaultVoice is the voice used when a job names none.
func (c *Client) DefaultVoice() string { return c.voiceID }

type speechRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Synthesize converts text to speech. An empty voiceID selects the configured default.
// The returned body streams encoded audio in the configured output format.
func (c *Client) Synthesize(ctx context.Context, text, voiceID string) (io.ReadCloser, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if voiceID == "" {
		voiceID = c.voiceID
	}

	body, err := json.Marshal(speechRequest{Text: text, ModelID: c.modelID})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	params := url.Values{}
	if c.outputFormat != "" {
		params.Set("output_format", c.outputFormat)
	}
	u := fmt.Sprintf("%s/v1/text-to-speech/%s?%s", c.baseURL, url.PathEscape(voiceID), params.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: status %d: %s", ErrSynthesisFailed, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	return resp.Body, nil
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}

	return fmt.Errorf("%w: %w", ErrUnreachable, err)
}

var _ models.Synthesizer = (*Client)(nil)
