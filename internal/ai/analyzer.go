// Package ai integrates the black-box text analysis provider. The engine
// treats any failure here as non-fatal: reports degrade to numbers only.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrAnalysisFailed wraps provider-side failures.
var ErrAnalysisFailed = errors.New("ai analysis failed")

// AnalysisRequest is one analysis call: a fixed system prompt plus a
// structured JSON payload of the numbers to narrate.
type AnalysisRequest struct {
	SystemPrompt string
	Payload      any
	Model        string
}

// Analysis is the provider's answer.
type Analysis struct {
	Text  string
	Model string
}

// Analyzer is the provider contract. Implementations must honor the
// context deadline; callers attach a per-call timeout.
type Analyzer interface {
	Analyze(ctx context.Context, req AnalysisRequest) (*Analysis, error)
}

// Config holds provider connection settings.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// HTTPAnalyzer calls an OpenAI-compatible chat completions endpoint.
type HTTPAnalyzer struct {
	config     Config
	httpClient *http.Client
}

// NewHTTPAnalyzer creates the provider client.
func NewHTTPAnalyzer(config Config) (*HTTPAnalyzer, error) {
	if config.BaseURL == "" {
		return nil, errors.New("ai analyzer: base url is required")
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &HTTPAnalyzer{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Analyze sends the structured payload for narration.
func (a *HTTPAnalyzer) Analyze(ctx context.Context, req AnalysisRequest) (*Analysis, error) {
	payload, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	model := req.Model
	if model == "" {
		model = a.config.Model
	}

	body, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: string(payload)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.config.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.config.APIKey)
	}

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrAnalysisFailed, resp.StatusCode, string(respBody))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty choices", ErrAnalysisFailed)
	}

	return &Analysis{
		Text:  chatResp.Choices[0].Message.Content,
		Model: chatResp.Model,
	}, nil
}
