// Package notify provides a unified notification dispatch system
// supporting Telegram, Email and Webhook channels.
package notify

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Channel represents a notification channel type.
type Channel string

const (
	ChannelTelegram Channel = "telegram"
	ChannelEmail    Channel = "email"
	ChannelWebhook  Channel = "webhook"
)

// Message represents a notification message. A message carrying an image
// is delivered as a picture; Body is then used only where the channel can
// attach text to a picture.
type Message struct {
	Title       string `json:"title"`
	Body        string `json:"body"`
	HTMLBody    string `json:"html_body,omitempty"` // Rich HTML for email
	Format      string `json:"format"`              // "markdown", "html", "plain"
	URL         string `json:"url,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"` // PNG
}

// HasImage reports whether the message carries a picture.
func (m Message) HasImage() bool {
	return m.ImageBase64 != ""
}

// ImageBytes decodes the attached picture.
func (m Message) ImageBytes() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(m.ImageBase64)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return data, nil
}

// Target is a delivery destination written as "platform:kind:id", e.g.
// "telegram:GroupMessage:-100123". Only the platform is used for routing;
// the id is handed to the channel as the chat, address or room.
type Target struct {
	Platform string
	Kind     string
	ID       string
}

func (t Target) String() string {
	return t.Platform + ":" + t.Kind + ":" + t.ID
}

// Notifier defines the interface for sending notifications.
type Notifier interface {
	// Send delivers to the channel's configured default destination
	// (operator alerts).
	Send(ctx context.Context, msg Message) error
	// SendTo delivers to one explicit destination.
	SendTo(ctx context.Context, target Target, msg Message) error
	Channel() Channel
}

// Dispatcher routes messages to the appropriate notification channels.
type Dispatcher struct {
	notifiers map[Channel]Notifier
	routes    map[string]Channel
	fallback  Channel
	logger    *slog.Logger
}

// NewDispatcher creates a new notification dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		notifiers: make(map[Channel]Notifier),
		routes:    make(map[string]Channel),
		logger:    slog.Default(),
	}
}

// Register adds a notifier to the dispatcher. Targets whose platform equals
// the channel name are routed to it.
func (d *Dispatcher) Register(n Notifier) {
	d.notifiers[n.Channel()] = n
}

// Route sends targets of another platform (e.g. a chat bridge such as
// "aiocqhttp") through ch.
func (d *Dispatcher) Route(platform string, ch Channel) {
	d.routes[strings.ToLower(platform)] = ch
}

// SetFallback picks the channel for platforms with no route. Empty
// disables the fallback.
func (d *Dispatcher) SetFallback(ch Channel) {
	d.fallback = ch
}

// Channels lists the registered channels.
func (d *Dispatcher) Channels() []Channel {
	channels := make([]Channel, 0, len(d.notifiers))
	for ch := range d.notifiers {
		channels = append(channels, ch)
	}
	return channels
}

// Resolve returns the notifier a target is routed to.
func (d *Dispatcher) Resolve(target Target) (Notifier, error) {
	platform := strings.ToLower(target.Platform)
	ch, ok := d.routes[platform]
	if !ok {
		ch = Channel(platform)
	}
	if n, ok := d.notifiers[ch]; ok {
		return n, nil
	}
	if d.fallback != "" {
		if n, ok := d.notifiers[d.fallback]; ok {
			return n, nil
		}
	}
	return nil, fmt.Errorf("no notifier for platform %q", target.Platform)
}

// SendTo delivers msg to a single target.
func (d *Dispatcher) SendTo(ctx context.Context, target Target, msg Message) error {
	n, err := d.Resolve(target)
	if err != nil {
		return err
	}
	if err := n.SendTo(ctx, target, msg); err != nil {
		return fmt.Errorf("%s: %w", n.Channel(), err)
	}
	d.logger.Debug("notification sent", "channel", n.Channel(), "target", target.String(), "image", msg.HasImage())
	return nil
}

// Dispatch delivers msg to the default destination of each named channel.
// Unknown channels are skipped with a warning.
func (d *Dispatcher) Dispatch(ctx context.Context, channels []Channel, msg Message) error {
	var errs []error
	for _, ch := range channels {
		notifier, ok := d.notifiers[ch]
		if !ok {
			d.logger.Warn("notifier not registered", "channel", ch)
			continue
		}
		if err := notifier.Send(ctx, msg); err != nil {
			d.logger.Error("alert failed", "channel", ch, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", ch, err))
			continue
		}
		d.logger.Info("alert sent", "channel", ch, "title", msg.Title)
	}
	if len(errs) > 0 {
		return fmt.Errorf("alert failed on %d/%d channels: %w", len(errs), len(channels), errors.Join(errs...))
	}
	return nil
}

// SendAll delivers msg to the default destination of every registered
// channel.
func (d *Dispatcher) SendAll(ctx context.Context, msg Message) error {
	return d.Dispatch(ctx, d.Channels(), msg)
}
