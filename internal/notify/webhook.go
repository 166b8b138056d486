package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	appLog "resvwatch/internal/log"
)

// DefaultTimeout bounds delivery when no client is supplied.
const DefaultTimeout = 30 * time.Second

// Notifier delivers a finished report. A returned error is fatal to the
// run and must leave the snapshot untouched.
type Notifier interface {
	Send(ctx context.Context, content string) error
}

// StatusError is a non-2xx webhook response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("notify: webhook returned %d", e.StatusCode)
	}
	return fmt.Sprintf("notify: webhook returned %d: %s", e.StatusCode, e.Body)
}

// Webhook posts {"content": ...} to a Discord-style webhook URL.
type Webhook struct {
	URL    string
	Client *http.Client
}

// NewWebhook constructs a Webhook. A nil client gets DefaultTimeout.
func NewWebhook(url string, client *http.Client) *Webhook {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &Webhook{URL: url, Client: client}
}

type payload struct {
	Content string `json:"content"`
}

// Send delivers content as a single message.
func (w *Webhook) Send(ctx context.Context, content string) error {
	if w.URL == "" {
		return errors.New("notify: webhook URL is empty")
	}

	body, err := json.Marshal(payload{Content: content})
	if err != nil {
		return fmt.Errorf("notify: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := w.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	appLog.Info("webhook delivered", "status", resp.StatusCode, "bytes", len(content))
	return nil
}
