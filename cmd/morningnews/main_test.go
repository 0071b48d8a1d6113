package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RobinCoderZhao/morning-news/pkg/notify"
)

func TestParseRecord(t *testing.T) {
	envelope := []byte(`{"code":200,"message":"ok","data":{"date":"2026-01-15","news":["a","b"],"tip":"t"}}`)
	rec, err := parseRecord(envelope)
	if err != nil {
		t.Fatalf("parseRecord(envelope): %v", err)
	}
	if rec.Date != "2026-01-15" || len(rec.News) != 2 {
		t.Errorf("unexpected record %+v", rec)
	}

	bare := []byte(`{"date":"2026-01-16","news":["c"],"tip":""}`)
	rec, err = parseRecord(bare)
	if err != nil {
		t.Fatalf("parseRecord(bare): %v", err)
	}
	if rec.Date != "2026-01-16" || rec.News[0] != "c" {
		t.Errorf("unexpected record %+v", rec)
	}

	if _, err := parseRecord([]byte("not json")); err == nil {
		t.Error("expected a decode error")
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "morningnews.yaml")
	content := `
target_groups: ["telegram:GroupMessage:-100123"]
push_time: "07:30"
show_text_news: true
sources:
  timeout: 5s
api:
  jwt_secret: ${TEST_JWT_SECRET}
routes:
  aiocqhttp: webhook
alerts:
  channels: [telegram, email]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TEST_JWT_SECRET", "from-env")
	t.Setenv("MORNINGNEWS_LOCAL_DRAW", "false")

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.PushTime != "07:30" || !cfg.ShowTextNews || len(cfg.TargetGroups) != 1 {
		t.Errorf("bot section not loaded: %+v", cfg.Config)
	}
	if cfg.UseLocalImageDraw {
		t.Error("env override should disable local drawing")
	}
	if cfg.Sources.Timeout != 5*time.Second {
		t.Errorf("Sources.Timeout = %v", cfg.Sources.Timeout)
	}
	if cfg.API.JWTSecret != "from-env" || cfg.API.Addr != ":8080" {
		t.Errorf("unexpected api config %+v", cfg.API)
	}
	if cfg.Fonts.Display != "assets/display.ttf" || cfg.LogLevel != "info" {
		t.Errorf("defaults lost: %+v", cfg)
	}
	if cfg.Routes["aiocqhttp"] != "webhook" {
		t.Errorf("routes = %v", cfg.Routes)
	}
	if len(cfg.Alerts.Channels) != 2 || cfg.Alerts.Channels[1] != "email" {
		t.Errorf("alerts = %v", cfg.Alerts)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.PushTime != "08:00" || !cfg.UseLocalImageDraw {
		t.Errorf("expected defaults, got %+v", cfg.Config)
	}
}

func TestBuildDispatcher(t *testing.T) {
	cfg := defaultConfig()
	cfg.Telegram.BotToken = "T0K"
	cfg.Webhook.URL = "http://127.0.0.1:1/hook"
	cfg.Routes = map[string]string{"qq": "Telegram"}
	d := buildDispatcher(cfg)

	tests := []struct {
		platform string
		want     notify.Channel
	}{
		{"telegram", notify.ChannelTelegram},
		{"qq", notify.ChannelTelegram},
		{"aiocqhttp", notify.ChannelWebhook},
		{"webhook", notify.ChannelWebhook},
	}
	for _, tt := range tests {
		n, err := d.Resolve(notify.Target{Platform: tt.platform, Kind: "GroupMessage", ID: "1"})
		if err != nil {
			t.Fatalf("Resolve(%s): %v", tt.platform, err)
		}
		if n.Channel() != tt.want {
			t.Errorf("Resolve(%s) = %s, want %s", tt.platform, n.Channel(), tt.want)
		}
	}

	if _, err := buildDispatcher(defaultConfig()).Resolve(notify.Target{Platform: "telegram", Kind: "x", ID: "1"}); err == nil {
		t.Error("expected no notifier without configured channels")
	}
}

func TestBuildAlert(t *testing.T) {
	var titles []string
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Target string `json:"target"`
			Title  string `json:"title"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode alert: %v", err)
		}
		if payload.Target != "" {
			t.Errorf("alert should carry no target, got %q", payload.Target)
		}
		titles = append(titles, payload.Title)
	}))
	defer hook.Close()

	cfg := defaultConfig()
	cfg.Webhook.URL = hook.URL
	d := buildDispatcher(cfg)

	if fn := buildAlert(AlertConfig{}, d); fn != nil {
		t.Error("alerts should be off without channels")
	}
	for _, channels := range [][]string{{"all"}, {" Webhook "}} {
		fn := buildAlert(AlertConfig{Channels: channels}, d)
		if fn == nil {
			t.Fatalf("buildAlert(%v) = nil", channels)
		}
		if err := fn(context.Background(), notify.Message{Title: "推送失败", Format: "plain"}); err != nil {
			t.Fatalf("alert via %v: %v", channels, err)
		}
	}
	if len(titles) != 2 || titles[0] != "推送失败" {
		t.Errorf("webhook received %v", titles)
	}
}

func TestRootCommands(t *testing.T) {
	root := rootCmd()
	for _, name := range []string{"run", "serve", "send", "test", "render", "status", "config-help", "token", "mcp", "version"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered", name)
		}
	}
}
