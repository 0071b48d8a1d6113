// Package publisher validates delivery targets and fans the daily image and
// text out to them.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/RobinCoderZhao/morning-news/pkg/notify"
)

// ErrInvalidTarget is returned for identifiers not of the form "platform:kind:id".
var ErrInvalidTarget = errors.New("invalid target")

// DefaultPause spaces out deliveries to consecutive targets.
const DefaultPause = time.Second

// ParseTarget parses "platform:kind:id". Surrounding whitespace is ignored;
// every part must be non-empty.
func ParseTarget(s string) (notify.Target, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return notify.Target{}, fmt.Errorf("%w %q: want platform:kind:id", ErrInvalidTarget, s)
	}
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			return notify.Target{}, fmt.Errorf("%w %q: empty part", ErrInvalidTarget, s)
		}
	}
	return notify.Target{Platform: parts[0], Kind: parts[1], ID: parts[2]}, nil
}

// CleanTargets parses raw identifiers, dropping (and logging) empty and
// malformed entries. Duplicates are kept once.
func CleanTargets(raw []string, logger *slog.Logger) []notify.Target {
	if logger == nil {
		logger = slog.Default()
	}
	seen := make(map[string]bool, len(raw))
	out := make([]notify.Target, 0, len(raw))
	for _, r := range raw {
		if strings.TrimSpace(r) == "" {
			logger.Warn("empty target skipped")
			continue
		}
		t, err := ParseTarget(r)
		if err != nil {
			logger.Warn("target skipped", "target", r, "error", err)
			continue
		}
		if seen[t.String()] {
			continue
		}
		seen[t.String()] = true
		out = append(out, t)
	}
	return out
}

// Sender delivers one message to one target. *notify.Dispatcher implements it.
type Sender interface {
	SendTo(ctx context.Context, target notify.Target, msg notify.Message) error
}

// Result is the outcome for one target.
type Result struct {
	Target  notify.Target
	OK      bool
	Err     error // image delivery error; set when OK is false
	TextErr error // text delivery error; does not affect OK
}

// Report summarises a publish run.
type Report struct {
	Sent    int
	Total   int
	Results []Result
}

// Failed lists the targets that did not receive the image.
func (r Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.OK {
			out = append(out, res)
		}
	}
	return out
}

// Content is what gets delivered: a PNG image and optional text.
type Content struct {
	Title       string
	ImageBase64 string
	Text        string // empty: image only
	HTML        string // optional rich text for channels that render it
}

// Publisher sends content to targets via a Sender.
type Publisher struct {
	sender Sender
	Pause  time.Duration
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewPublisher creates a publisher with the default pause.
func NewPublisher(sender Sender) *Publisher {
	return &Publisher{
		sender: sender,
		Pause:  DefaultPause,
		logger: slog.Default(),
		sleep:  sleepCtx,
	}
}

// Publish delivers content to every target in order. For each target the
// image goes first; if it fails the target is skipped. The text follows when
// present; a text failure is logged but the target still counts as sent.
// One target failing never stops the others. Cancelling ctx stops the run
// and returns the partial report with ctx's error.
func (p *Publisher) Publish(ctx context.Context, content Content, targets []notify.Target) (Report, error) {
	report := Report{Total: len(targets)}
	if content.ImageBase64 == "" {
		return report, fmt.Errorf("publish: no image")
	}

	for i, t := range targets {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if i > 0 && p.Pause > 0 {
			if err := p.sleep(ctx, p.Pause); err != nil {
				return report, err
			}
		}

		res := p.deliver(ctx, content, t)
		report.Results = append(report.Results, res)
		if res.OK {
			report.Sent++
		}
	}

	p.logger.Info("publish finished", "sent", report.Sent, "total", report.Total)
	return report, nil
}

func (p *Publisher) deliver(ctx context.Context, content Content, t notify.Target) Result {
	res := Result{Target: t}

	img := notify.Message{Title: content.Title, ImageBase64: content.ImageBase64, Format: "plain"}
	if err := p.sender.SendTo(ctx, t, img); err != nil {
		p.logger.Error("image delivery failed", "target", t.String(), "error", err)
		res.Err = err
		return res
	}
	res.OK = true

	if content.Text != "" {
		txt := notify.Message{Title: content.Title, Body: content.Text, HTMLBody: content.HTML, Format: "plain"}
		if err := p.sender.SendTo(ctx, t, txt); err != nil {
			p.logger.Warn("text delivery failed, image already sent", "target", t.String(), "error", err)
			res.TextErr = err
		}
	}
	p.logger.Info("digest delivered", "target", t.String())
	return res
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
