// Package mattermost sends messages through Mattermost Incoming Webhooks.
// The webhook URL is carried per-message in the chat id, so the client
// itself needs almost no configuration.
package mattermost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bqworks/paygrid/internal/channel"
	"github.com/bqworks/paygrid/internal/domain"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultUsername = "PayGrid"
)

// Config holds mattermost client configuration.
type Config struct {
	DefaultUsername string
	DefaultIconURL  string
	Timeout         time.Duration
}

// Client implements channel.Client over Incoming Webhooks.
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a mattermost client.
func NewClient(config Config) *Client {
	if config.DefaultUsername == "" {
		config.DefaultUsername = defaultUsername
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// Kind returns the channel kind.
func (c *Client) Kind() domain.ChannelKind {
	return domain.ChannelKindMattermost
}

type webhookPayload struct {
	Text     string `json:"text"`
	Username string `json:"username,omitempty"`
	IconURL  string `json:"icon_url,omitempty"`
}

// Send posts the message to the webhook URL carried in msg.ChatID.
func (c *Client) Send(ctx context.Context, msg channel.Message) error {
	if msg.ChatID == "" {
		return &channel.PermanentError{Message: "webhook URL is empty"}
	}

	payload := webhookPayload{
		Text:     msg.Text,
		Username: c.config.DefaultUsername,
		IconURL:  c.config.DefaultIconURL,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, msg.ChatID, bytes.NewReader(body))
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

func (c *Client) handleResponse(resp *http.Response, webhookURL string) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		slog.Debug("mattermost message sent", "webhook", maskWebhookURL(webhookURL))
		return nil

	case http.StatusBadRequest:
		return &channel.PermanentError{Code: resp.StatusCode, Message: fmt.Sprintf("bad request: %s", string(body))}

	case http.StatusUnauthorized, http.StatusForbidden:
		return &channel.PermanentError{Code: resp.StatusCode, Message: "invalid or expired webhook"}

	case http.StatusNotFound:
		return &channel.PermanentError{Code: resp.StatusCode, Message: "webhook not found"}

	case http.StatusTooManyRequests:
		return &channel.RetryableError{Code: resp.StatusCode, Message: "rate limited"}

	default:
		if resp.StatusCode >= 500 {
			return &channel.RetryableError{Code: resp.StatusCode, Message: fmt.Sprintf("server error: %s", string(body))}
		}
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
}

// maskWebhookURL hides part of the URL for logging.
func maskWebhookURL(url string) string {
	if len(url) > 40 {
		return url[:20] + "..." + url[len(url)-10:]
	}
	return url
}
