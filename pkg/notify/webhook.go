package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookConfig holds webhook configuration.
type WebhookConfig struct {
	URL     string            `yaml:"url" json:"url" env:"MORNINGNEWS_WEBHOOK_URL"`
	Headers map[string]string `yaml:"headers" json:"headers"`
}

// WebhookNotifier sends notifications to a webhook URL. Chat bridges for
// platforms without a native channel receive their targets this way.
type WebhookNotifier struct {
	config WebhookConfig
	http   *http.Client
}

// NewWebhookNotifier creates a new webhook notifier.
func NewWebhookNotifier(cfg WebhookConfig) *WebhookNotifier {
	return &WebhookNotifier{
		config: cfg,
		http:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (w *WebhookNotifier) Channel() Channel { return ChannelWebhook }

type webhookPayload struct {
	Target      string `json:"target,omitempty"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	Format      string `json:"format"`
	URL         string `json:"url"`
	ImageBase64 string `json:"image_base64,omitempty"`
}

// Send sends a message to the webhook URL.
func (w *WebhookNotifier) Send(ctx context.Context, msg Message) error {
	return w.post(ctx, "", msg)
}

// SendTo posts the message with the target attached for the receiver to route.
func (w *WebhookNotifier) SendTo(ctx context.Context, target Target, msg Message) error {
	return w.post(ctx, target.String(), msg)
}

func (w *WebhookNotifier) post(ctx context.Context, target string, msg Message) error {
	if w.config.URL == "" {
		return fmt.Errorf("webhook url not configured")
	}
	body, err := json.Marshal(webhookPayload{
		Target:      target,
		Title:       msg.Title,
		Body:        msg.Body,
		Format:      msg.Format,
		URL:         msg.URL,
		ImageBase64: msg.ImageBase64,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", w.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := w.http.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
