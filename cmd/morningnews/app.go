package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/RobinCoderZhao/morning-news/internal/morningnews/bot"
	"github.com/RobinCoderZhao/morning-news/internal/morningnews/sources"
	"github.com/RobinCoderZhao/morning-news/pkg/config"
	"github.com/RobinCoderZhao/morning-news/pkg/dailynews"
	"github.com/RobinCoderZhao/morning-news/pkg/notify"
)

const defaultConfigPath = "morningnews.yaml"

// AppConfig is the whole morningnews.yaml.
type AppConfig struct {
	bot.Config `yaml:",inline"`

	LogLevel string              `yaml:"log_level" env:"MORNINGNEWS_LOG_LEVEL"`
	Fonts    dailynews.FontPaths `yaml:"fonts"`
	Render   RenderConfig        `yaml:"render"`
	Sources  sources.Config      `yaml:"sources"`

	Telegram notify.TelegramConfig `yaml:"telegram"`
	Webhook  notify.WebhookConfig  `yaml:"webhook"`
	Email    notify.EmailConfig    `yaml:"email"`
	// Routes maps other platforms (e.g. "aiocqhttp") onto a channel.
	Routes map[string]string `yaml:"routes"`
	// Alerts reports failed scheduled pushes to each channel's default
	// destination (telegram.channel_id, webhook.url, email.to).
	Alerts AlertConfig `yaml:"alerts"`

	API APIConfig `yaml:"api"`
}

// RenderConfig tunes the local composer.
type RenderConfig struct {
	QRURL string `yaml:"qr_url" env:"MORNINGNEWS_QR_URL"`
}

// AlertConfig lists the alert channels. "all" means every registered
// channel; empty disables alerts.
type AlertConfig struct {
	Channels []string `yaml:"channels" env:"MORNINGNEWS_ALERT_CHANNELS"`
}

// APIConfig configures the HTTP control surface.
type APIConfig struct {
	Addr      string `yaml:"addr" env:"MORNINGNEWS_API_ADDR"`
	JWTSecret string `yaml:"jwt_secret" env:"MORNINGNEWS_JWT_SECRET"`
}

func defaultConfig() AppConfig {
	return AppConfig{
		Config: bot.Config{
			PushTime:          bot.DefaultPushTime,
			UseLocalImageDraw: true,
		},
		LogLevel: "info",
		Fonts: dailynews.FontPaths{
			Display: "assets/display.ttf",
			Content: "assets/content.ttf",
		},
		API: APIConfig{Addr: ":8080"},
	}
}

func loadConfig(path string) (AppConfig, error) {
	cfg := defaultConfig()
	if err := config.LoadOrDefault(path, &cfg); err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

// buildDispatcher registers every configured channel. Platforms without a
// channel of their own go through the webhook when one is configured.
func buildDispatcher(cfg AppConfig) *notify.Dispatcher {
	d := notify.NewDispatcher()
	if cfg.Telegram.BotToken != "" {
		d.Register(notify.NewTelegramNotifier(cfg.Telegram))
	}
	if cfg.Webhook.URL != "" {
		d.Register(notify.NewWebhookNotifier(cfg.Webhook))
		d.SetFallback(notify.ChannelWebhook)
	}
	if cfg.Email.SMTPHost != "" {
		d.Register(notify.NewEmailNotifier(cfg.Email))
	}
	for platform, ch := range cfg.Routes {
		d.Route(platform, notify.Channel(strings.ToLower(ch)))
	}
	if len(d.Channels()) == 0 {
		slog.Warn("no delivery channel configured; pushes will fail")
	}
	return d
}

func buildAlert(cfg AlertConfig, d *notify.Dispatcher) bot.AlertFunc {
	var channels []notify.Channel
	for _, name := range cfg.Channels {
		name = strings.ToLower(strings.TrimSpace(name))
		switch name {
		case "":
		case "all":
			return d.SendAll
		default:
			channels = append(channels, notify.Channel(name))
		}
	}
	if len(channels) == 0 {
		return nil
	}
	return func(ctx context.Context, msg notify.Message) error {
		return d.Dispatch(ctx, channels, msg)
	}
}

func newRenderer(cfg AppConfig) *dailynews.ImageRenderer {
	r := dailynews.NewImageRenderer(dailynews.NewFontLoader(cfg.Fonts))
	r.QRURL = cfg.Render.QRURL
	return r
}

// app is the wired bot and its collaborators.
type app struct {
	cfg      AppConfig
	fetcher  *sources.Fetcher
	renderer *dailynews.ImageRenderer
	bot      *bot.Bot
}

func newApp(path string) (*app, error) {
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, err
	}
	setupLogging(cfg.LogLevel)

	fetcher := sources.NewFetcher(cfg.Sources)
	renderer := newRenderer(cfg)
	dispatcher := buildDispatcher(cfg)
	b, err := bot.New(cfg.Config, fetcher, renderer, dispatcher)
	if err != nil {
		return nil, err
	}
	b.SetAlert(buildAlert(cfg.Alerts, dispatcher))
	return &app{cfg: cfg, fetcher: fetcher, renderer: renderer, bot: b}, nil
}
