package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/pvhs-tutoring/peer-tutoring-api/pkg/config"
)

// Sender delivers a text message to a phone number.
type Sender interface {
	Send(ctx context.Context, phone, message string) error
}

// TextbeltClient sends SMS messages through the Textbelt HTTP API.
type TextbeltClient struct {
	url    string
	apiKey string
	sender string
	client *http.Client
	logger *zap.Logger
}

// NewTextbeltClient builds a Textbelt SMS client.
func NewTextbeltClient(cfg config.NotificationsConfig, logger *zap.Logger) *TextbeltClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TextbeltClient{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		sender: cfg.Sender,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type textbeltResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Send posts the message to Textbelt. A missing API key is treated as a
// disabled integration, not an error.
func (c *TextbeltClient) Send(ctx context.Context, phone, message string) error {
	if c.apiKey == "" {
		c.logger.Info("skipping sms delivery, no api key configured", zap.String("phone", phone))
		return nil
	}

	form := url.Values{}
	form.Set("phone", phone)
	form.Set("message", message)
	form.Set("sender", c.sender)
	form.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("send sms: unexpected status %d", resp.StatusCode)
	}

	var body textbeltResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode sms response: %w", err)
	}
	if !body.Success {
		return fmt.Errorf("textbelt rejected message: %s", body.Error)
	}
	return nil
}
