// Package correct sends transcribed text to the remote chat-completion route
// of the proxy and returns a corrected version of the speech.
package correct

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// ErrCorrection is reported when the remote chat call fails, including after
// the fallback attempt.
var ErrCorrection = errors.New("correction failed")

// NoCorrection is the suggestion stored for clips with no real speech.
const NoCorrection = "No correction"

// noSuggestion is stored when the model returned an empty completion.
const noSuggestion = "(No Suggestion)"

const promptTemplate = "Output a grammatically correct version of \n%s\n or output \"No correction\";"

// modelNotFound matches the error detail the provider returns when the
// primary model is unavailable; it is the only condition that triggers the
// fallback model.
var modelNotFound = regexp.MustCompile(`(?i)model_not_found`)

// Config holds correction client settings.
type Config struct {
	Endpoint      string // full URL of the /chat route
	Model         string
	FallbackModel string
	MaxTokens     int
	Temperature   float64
}

// Client posts correction prompts to the proxy's /chat route.
type Client struct {
	endpoint      string
	model         string
	fallbackModel string
	maxTokens     int
	temperature   float64
	httpClient    *http.Client
}

// NewClient creates a correction client.
func NewClient(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = "o3-mini-2025-01-31"
	}
	if cfg.FallbackModel == "" {
		cfg.FallbackModel = "gpt-4"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 100
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	return &Client{
		endpoint:      cfg.Endpoint,
		model:         cfg.Model,
		fallbackModel: cfg.FallbackModel,
		maxTokens:     cfg.MaxTokens,
		temperature:   cfg.Temperature,
		httpClient:    &http.Client{Timeout: 2 * time.Minute},
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Correct returns a corrected version of the transcribed text. Text carrying
// the silence-marker character skips the network entirely. A primary-model
// failure that matches the model-unavailable pattern is retried exactly once
// with the fallback model; any other failure aborts.
func (c *Client) Correct(ctx context.Context, text string) (string, error) {
	if strings.Contains(text, "$") {
		return NoCorrection, nil
	}

	prompt := fmt.Sprintf(promptTemplate, text)

	out, err := c.complete(ctx, c.model, prompt)
	if err == nil {
		return out, nil
	}
	if !modelNotFound.MatchString(err.Error()) {
		return "", fmt.Errorf("%w: %v", ErrCorrection, err)
	}

	out, err = c.complete(ctx, c.fallbackModel, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: fallback: %v", ErrCorrection, err)
	}
	return out, nil
}

func (c *Client) complete(ctx context.Context, model, prompt string) (string, error) {
	reqBody := chatRequest{
		Model:       model,
		Messages:    []message{{Role: "user", Content: prompt}},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		// The raw body text is preserved: it carries the detail the fallback
		// decision pattern-matches on.
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("http %d: %s", resp.StatusCode, string(b))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if len(out.Choices) == 0 {
		return noSuggestion, nil
	}
	content := strings.TrimSpace(out.Choices[0].Message.Content)
	if content == "" {
		return noSuggestion, nil
	}
	return content, nil
}
