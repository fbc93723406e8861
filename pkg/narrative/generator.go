package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Rowan-T/clover/pkg/httpclient"
	"github.com/Rowan-T/clover/pkg/logging"
	"github.com/Rowan-T/clover/pkg/tracing"
)

// Generator produces a structured narrative from an instruction prompt. It
// is an external collaborator; callers must treat every error as
// recoverable.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (*GeneratedNarrative, error)
}

// GeneratedNarrative is the structured payload expected back from the
// generation service.
type GeneratedNarrative struct {
	Summary             string   `json:"summary"`
	Traits              []string `json:"traits"`
	Interests           []string `json:"interests"`
	SuggestedCategories []string `json:"suggested_categories"`
}

// Config holds text-generation service configuration
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
}

// HTTPGenerator calls a chat-completions style endpoint
type HTTPGenerator struct {
	cfg    Config
	http   *httpclient.Client
	logger logging.Logger
}

// NewHTTPGenerator creates a new HTTPGenerator
func NewHTTPGenerator(cfg Config, http *httpclient.Client, logger logging.Logger) *HTTPGenerator {
	return &HTTPGenerator{
		cfg:    cfg,
		http:   http,
		logger: logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate sends the prompts to the generation service and parses the JSON
// payload from the first choice.
func (g *HTTPGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (*GeneratedNarrative, error) {
	ctx, span := tracing.StartSpan(ctx, "HTTPGenerator.Generate")
	defer span.End()

	payload, err := json.Marshal(chatRequest{
		Model: g.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode generation request: %w", err)
	}

	headers := map[string]string{
		"Authorization": "Bearer " + g.cfg.APIKey,
	}

	resp, err := g.http.PostJSON(ctx, g.cfg.BaseURL+"/chat/completions", payload, headers)
	if err != nil {
		return nil, fmt.Errorf("generation request failed: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("generation service returned HTTP %d", resp.StatusCode)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(resp.Body, &chatResp); err != nil {
		return nil, fmt.Errorf("generation service returned invalid JSON: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("generation service returned no choices")
	}

	content := strings.TrimSpace(chatResp.Choices[0].Message.Content)

	var narrative GeneratedNarrative
	if err := json.Unmarshal([]byte(content), &narrative); err != nil {
		return nil, fmt.Errorf("generation content is not the expected structure: %w", err)
	}

	if strings.TrimSpace(narrative.Summary) == "" {
		return nil, fmt.Errorf("generation content has an empty summary")
	}

	return &narrative, nil
}
