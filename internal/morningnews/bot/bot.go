// Package bot wires the news source, the image renderer and the publisher
// into the scheduled push and the on-demand commands.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/RobinCoderZhao/morning-news/internal/morningnews/publisher"
	"github.com/RobinCoderZhao/morning-news/internal/morningnews/scheduler"
	"github.com/RobinCoderZhao/morning-news/pkg/dailynews"
	"github.com/RobinCoderZhao/morning-news/pkg/notify"
)

// DefaultPushTime is used when no push time is configured.
const DefaultPushTime = "08:00"

// ErrNoTargets is returned when a push has nowhere to go.
var ErrNoTargets = errors.New("no target groups configured")

// Config is the bot section of the application config.
type Config struct {
	TargetGroups      []string `yaml:"target_groups" env:"MORNINGNEWS_TARGET_GROUPS"`
	PushTime          string   `yaml:"push_time" env:"MORNINGNEWS_PUSH_TIME"`
	ShowTextNews      bool     `yaml:"show_text_news" env:"MORNINGNEWS_SHOW_TEXT_NEWS"`
	UseLocalImageDraw bool     `yaml:"use_local_image_draw" env:"MORNINGNEWS_LOCAL_DRAW"`
}

// Source provides the daily record. *sources.Fetcher implements it.
type Source interface {
	FetchDigest(ctx context.Context) (*dailynews.Record, *dailynews.Digest, error)
	DownloadImage(ctx context.Context, rec *dailynews.Record, maxWidth int) ([]byte, error)
}

// Renderer draws a digest. *dailynews.ImageRenderer implements it.
type Renderer interface {
	Render(d *dailynews.Digest) (*dailynews.Rendered, error)
}

// AlertFunc delivers an operator alert. notify.Dispatcher.SendAll fits.
type AlertFunc func(ctx context.Context, msg notify.Message) error

// Bot runs the daily push and answers commands. Its configuration is fixed
// at construction; commands never modify it.
type Bot struct {
	cfg      Config
	clock    scheduler.Clock
	targets  []notify.Target
	source   Source
	renderer Renderer
	pub      *publisher.Publisher
	sched    *scheduler.Daily
	alert    AlertFunc
	width    int
	logger   *slog.Logger
}

// New validates cfg and builds the bot. Malformed targets are dropped with a
// warning; a malformed push time is an error.
func New(cfg Config, source Source, renderer Renderer, sender publisher.Sender) (*Bot, error) {
	if strings.TrimSpace(cfg.PushTime) == "" {
		cfg.PushTime = DefaultPushTime
	}
	clock, err := scheduler.ParseClock(cfg.PushTime)
	if err != nil {
		return nil, fmt.Errorf("parse push time: %w", err)
	}

	logger := slog.Default()
	b := &Bot{
		cfg:      cfg,
		clock:    clock,
		targets:  publisher.CleanTargets(cfg.TargetGroups, logger),
		source:   source,
		renderer: renderer,
		pub:      publisher.NewPublisher(sender),
		width:    int(dailynews.DefaultLayout().Width),
		logger:   logger,
	}
	b.sched = scheduler.NewDaily(clock, scheduler.Job{Name: "daily-news", Fn: b.scheduledPush})
	b.sched.SetReady(func() bool { return len(b.targets) > 0 })

	logger.Info("bot configured",
		"targets", len(b.targets),
		"push_time", clock.String(),
		"show_text_news", cfg.ShowTextNews,
		"use_local_image_draw", cfg.UseLocalImageDraw,
	)
	return b, nil
}

// SetAlert installs the channel scheduled push failures are reported on.
// nil disables alerts.
func (b *Bot) SetAlert(fn AlertFunc) {
	b.alert = fn
}

// Targets returns the validated destinations.
func (b *Bot) Targets() []notify.Target {
	return b.targets
}

// Scheduler returns the daily scheduler.
func (b *Bot) Scheduler() *scheduler.Daily {
	return b.sched
}

// Start runs the daily loop until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	b.sched.Start(ctx)
}

// Edition is one day's prepared content.
type Edition struct {
	Record      *dailynews.Record
	Digest      *dailynews.Digest
	PNG         []byte
	ImageBase64 string
	Text        string // empty unless requested
	HTML        string
}

// Title is the caption and email subject for the edition.
func (e *Edition) Title() string {
	return strings.TrimSpace(dailynews.SourceName + " " + e.date())
}

func (e *Edition) date() string {
	if e.Digest != nil {
		return e.Digest.Date.Format(dailynews.DateLayout)
	}
	if e.Record != nil {
		return strings.TrimSpace(e.Record.Date)
	}
	return ""
}

// Prepare fetches today's record and produces the image, plus the text
// forms when withText is set. A downloaded image only needs the record's
// image url; drawing or text needs a valid digest.
func (b *Bot) Prepare(ctx context.Context, withText bool) (*Edition, error) {
	rec, d, err := b.source.FetchDigest(ctx)
	if rec == nil {
		if err == nil {
			err = errors.New("empty record")
		}
		return nil, fmt.Errorf("fetch news: %w", err)
	}
	if err != nil {
		if b.cfg.UseLocalImageDraw || withText {
			return nil, fmt.Errorf("fetch news: %w", err)
		}
		b.logger.Warn("record incomplete; sending the pre-rendered image only", "error", err)
		d = nil
	}

	var png []byte
	if b.cfg.UseLocalImageDraw {
		out, err := b.renderer.Render(d)
		if err != nil {
			return nil, fmt.Errorf("render image: %w", err)
		}
		if png, err = out.PNG(); err != nil {
			return nil, err
		}
	} else {
		if png, err = b.source.DownloadImage(ctx, rec, b.width); err != nil {
			return nil, fmt.Errorf("download image: %w", err)
		}
	}

	ed := &Edition{
		Record:      rec,
		Digest:      d,
		PNG:         png,
		ImageBase64: dailynews.EncodeBase64(png),
	}
	if withText {
		ed.Text = dailynews.FormatText(d)
		if ed.HTML, err = dailynews.RenderHTML(d); err != nil {
			b.logger.Warn("html digest skipped", "error", err)
		}
	}
	b.logger.Info("edition prepared", "date", ed.date(), "png_bytes", len(png), "text", withText)
	return ed, nil
}

func (e *Edition) content() publisher.Content {
	return publisher.Content{Title: e.Title(), ImageBase64: e.ImageBase64, Text: e.Text, HTML: e.HTML}
}

// Push is the scheduled job: prepare the edition and deliver it to every
// configured target.
func (b *Bot) Push(ctx context.Context) (publisher.Report, error) {
	if len(b.targets) == 0 {
		b.logger.Warn("push skipped: no target groups")
		return publisher.Report{}, ErrNoTargets
	}
	ed, err := b.Prepare(ctx, b.cfg.ShowTextNews)
	if err != nil {
		return publisher.Report{}, err
	}
	report, err := b.pub.Publish(ctx, ed.content(), b.targets)
	if err != nil {
		return report, err
	}
	if report.Sent == 0 {
		return report, fmt.Errorf("push delivered to none of %d targets", report.Total)
	}
	return report, nil
}

func (b *Bot) scheduledPush(ctx context.Context) error {
	report, err := b.Push(ctx)
	if err == nil || errors.Is(err, ErrNoTargets) || b.alert == nil {
		return err
	}
	msg := failureAlert(report, err)
	if aerr := b.alert(ctx, msg); aerr != nil {
		b.logger.Error("push failure alert not delivered", "error", aerr)
	}
	return err
}

func failureAlert(report publisher.Report, err error) notify.Message {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("定时推送失败: %v", err))
	for _, res := range report.Failed() {
		sb.WriteString(fmt.Sprintf("\n❌ %s: %v", res.Target, res.Err))
	}
	return notify.Message{
		Title:  dailynews.SourceName + " 推送失败",
		Body:   sb.String(),
		Format: "plain",
	}
}

// Mode selects what a manual request delivers.
type Mode string

const (
	ModeImage Mode = "image"
	ModeText  Mode = "text"
	ModeAll   Mode = "all"
)

// ParseMode accepts image, text or all (the default for empty input).
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAll, nil
	case ModeImage, ModeText, ModeAll:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q (image|text|all)", dailynews.ErrInvalidInput, s)
	}
}

// WithText reports whether the mode attaches the text digest. The image is
// always sent.
func (m Mode) WithText() bool {
	return m == ModeText || m == ModeAll
}

// Manual delivers today's edition to the requesting conversation.
func (b *Bot) Manual(ctx context.Context, origin string, mode Mode) error {
	target, err := publisher.ParseTarget(origin)
	if err != nil {
		return err
	}
	b.logger.Info("manual request", "origin", origin, "mode", mode)

	ed, err := b.Prepare(ctx, mode.WithText())
	if err != nil {
		return err
	}
	report, err := b.pub.Publish(ctx, ed.content(), []notify.Target{target})
	if err != nil {
		return err
	}
	if report.Sent == 0 {
		return report.Results[0].Err
	}
	return nil
}

// SendTest sends today's image (no text) to every target and returns one
// result line per target.
func (b *Bot) SendTest(ctx context.Context) (string, error) {
	if len(b.targets) == 0 {
		return "❌ 未配置目标群组", ErrNoTargets
	}
	ed, err := b.Prepare(ctx, false)
	if err != nil {
		return "❌ 获取早报或生成图片失败: " + err.Error(), err
	}

	report, err := b.pub.Publish(ctx, ed.content(), b.targets)
	var sb strings.Builder
	sb.WriteString("测试发送结果:")
	for _, res := range report.Results {
		if res.OK {
			sb.WriteString(fmt.Sprintf("\n✅ %s: 成功", res.Target))
		} else {
			sb.WriteString(fmt.Sprintf("\n❌ %s: 失败 (%v)", res.Target, res.Err))
		}
	}
	return sb.String(), err
}
