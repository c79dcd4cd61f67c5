// Package telegram sends messages through the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bqworks/paygrid/internal/channel"
	"github.com/bqworks/paygrid/internal/domain"
	"golang.org/x/time/rate"
)

const (
	defaultAPIBase = "https://api.telegram.org"
	defaultTimeout = 10 * time.Second
)

// Config holds telegram client configuration.
type Config struct {
	BotToken  string
	APIBase   string  // overridable for tests
	RateLimit float64 // messages per second, 0 disables limiting
	Timeout   time.Duration
}

// Client implements channel.Client over the Bot API sendMessage method.
type Client struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a telegram client. The bot token is required; a
// disabled telegram channel is expressed by not constructing a client at
// all, not by a nil-token client.
func NewClient(config Config) (*Client, error) {
	if config.BotToken == "" {
		return nil, errors.New("telegram client: bot token is required")
	}
	if config.APIBase == "" {
		config.APIBase = defaultAPIBase
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	var limiter *rate.Limiter
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
	}

	slog.Info("telegram client configured", "rate_limit", config.RateLimit)

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    limiter,
	}, nil
}

// Kind returns the channel kind.
func (c *Client) Kind() domain.ChannelKind {
	return domain.ChannelKindTelegram
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	ErrorCode   int    `json:"error_code"`
}

// Send pushes one HTML-formatted message to a chat.
func (c *Client) Send(ctx context.Context, msg channel.Message) error {
	if msg.ChatID == "" {
		return &channel.PermanentError{Message: "chat id is empty"}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}

	body, err := json.Marshal(sendMessageRequest{
		ChatID:    msg.ChatID,
		Text:      msg.Text,
		ParseMode: "HTML",
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.config.APIBase, c.config.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &channel.RetryableError{Message: fmt.Sprintf("send request: %v", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	return c.handleResponse(resp, msg.ChatID)
}

func (c *Client) handleResponse(resp *http.Response, chatID string) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err == nil && apiResp.OK {
		slog.Debug("telegram message sent", "chat_id", chatID)
		return nil
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// HTTP 200 with ok=false should not happen, treat as permanent.
		return &channel.PermanentError{Message: fmt.Sprintf("api rejected message: %s", apiResp.Description)}

	case resp.StatusCode == http.StatusBadRequest:
		return &channel.PermanentError{Code: resp.StatusCode, Message: apiResp.Description}

	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return &channel.PermanentError{Code: resp.StatusCode, Message: "invalid bot token or bot blocked by chat"}

	case resp.StatusCode == http.StatusTooManyRequests:
		return &channel.RetryableError{Code: resp.StatusCode, Message: "rate limited by telegram"}

	case resp.StatusCode >= 500:
		return &channel.RetryableError{Code: resp.StatusCode, Message: "telegram server error"}

	default:
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
}
