package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/RobinCoderZhao/morning-news/internal/morningnews/bot"
	"github.com/RobinCoderZhao/morning-news/pkg/mcpserver"
)

type fakeBot struct {
	manualOrigin string
	manualMode   bot.Mode
	testErr      error
}

func (f *fakeBot) Status(now time.Time) string {
	return "每日60s早报状态\n当前时间: " + now.Format(time.DateTime)
}

func (f *fakeBot) Prepare(ctx context.Context, withText bool) (*bot.Edition, error) {
	return &bot.Edition{Text: "【每日60秒早报】2026-01-15", ImageBase64: "aW1n"}, nil
}

func (f *fakeBot) Manual(ctx context.Context, origin string, mode bot.Mode) error {
	f.manualOrigin, f.manualMode = origin, mode
	return nil
}

func (f *fakeBot) SendTest(ctx context.Context) (string, error) {
	if f.testErr != nil {
		return "❌ 未配置目标群组", f.testErr
	}
	return "测试发送结果:\n✅ telegram:GroupMessage:1: 成功", nil
}

func newServer(b Bot) *mcpserver.Server {
	s := mcpserver.New("morningnews", "test")
	Register(s, b, func() time.Time { return time.Date(2026, 1, 15, 7, 0, 0, 0, time.UTC) })
	return s
}

func TestStatusAndToday(t *testing.T) {
	s := newServer(&fakeBot{})

	res := s.CallTool(context.Background(), "news_status", nil)
	if res.IsError || !strings.Contains(res.Content[0].Text, "2026-01-15 07:00:00") {
		t.Errorf("unexpected status result %+v", res)
	}

	res = s.CallTool(context.Background(), "news_today", map[string]any{"image": true})
	if res.IsError || len(res.Content) != 2 {
		t.Fatalf("expected text and image content, got %+v", res)
	}
	if res.Content[1].Type != "image" || res.Content[1].MimeType != "image/png" || res.Content[1].Data != "aW1n" {
		t.Errorf("unexpected image content %+v", res.Content[1])
	}
	if res = s.CallTool(context.Background(), "news_today", nil); len(res.Content) != 1 {
		t.Errorf("image should be opt-in, got %d parts", len(res.Content))
	}
}

func TestSend(t *testing.T) {
	fb := &fakeBot{}
	s := newServer(fb)

	res := s.CallTool(context.Background(), "news_send", map[string]any{"origin": "telegram:FriendMessage:9", "mode": "text"})
	if res.IsError {
		t.Fatalf("news_send failed: %+v", res)
	}
	if fb.manualOrigin != "telegram:FriendMessage:9" || fb.manualMode != bot.ModeText {
		t.Errorf("Manual got %q %q", fb.manualOrigin, fb.manualMode)
	}

	if res := s.CallTool(context.Background(), "news_send", map[string]any{"origin": "x:y:z", "mode": "gif"}); !res.IsError {
		t.Error("expected an error for an unknown mode")
	}
	if res := s.CallTool(context.Background(), "news_send", map[string]any{}); !res.IsError {
		t.Error("expected an error without origin")
	}
}

func TestConfigHelpAndTest(t *testing.T) {
	fb := &fakeBot{}
	s := newServer(fb)

	res := s.CallTool(context.Background(), "news_config_help", map[string]any{"origin": "telegram:GroupMessage:5"})
	if res.IsError || !strings.Contains(res.Content[0].Text, "后缀: 5") {
		t.Errorf("unexpected help %+v", res)
	}

	if res := s.CallTool(context.Background(), "news_test", nil); res.IsError {
		t.Errorf("news_test failed: %+v", res)
	}
	fb.testErr = errors.New("no targets")
	res = s.CallTool(context.Background(), "news_test", nil)
	if !res.IsError || !strings.HasPrefix(res.Content[0].Text, "❌") {
		t.Errorf("expected the reply text flagged as an error, got %+v", res)
	}
}
