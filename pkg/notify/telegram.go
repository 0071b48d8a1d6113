package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const telegramAPI = "https://api.telegram.org"

// telegramCaptionLimit is the Bot API limit for photo captions.
const telegramCaptionLimit = 1024

// TelegramConfig holds Telegram bot configuration.
type TelegramConfig struct {
	BotToken  string `yaml:"bot_token" json:"bot_token" env:"MORNINGNEWS_TELEGRAM_TOKEN"`
	ChannelID string `yaml:"channel_id" json:"channel_id"` // default chat for Send
	APIBase   string `yaml:"api_base" json:"api_base"`     // defaults to api.telegram.org
}

// TelegramNotifier sends messages via Telegram Bot API.
type TelegramNotifier struct {
	config TelegramConfig
	http   *http.Client
}

// NewTelegramNotifier creates a new Telegram notifier.
func NewTelegramNotifier(cfg TelegramConfig) *TelegramNotifier {
	if cfg.APIBase == "" {
		cfg.APIBase = telegramAPI
	}
	return &TelegramNotifier{
		config: cfg,
		http:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (t *TelegramNotifier) Channel() Channel { return ChannelTelegram }

// Send sends a message to the configured channel.
func (t *TelegramNotifier) Send(ctx context.Context, msg Message) error {
	return t.send(ctx, t.config.ChannelID, msg)
}

// SendTo sends a message to the chat named by the target id.
func (t *TelegramNotifier) SendTo(ctx context.Context, target Target, msg Message) error {
	return t.send(ctx, target.ID, msg)
}

func (t *TelegramNotifier) send(ctx context.Context, chatID string, msg Message) error {
	if chatID == "" {
		return fmt.Errorf("telegram: no chat id")
	}
	if msg.HasImage() {
		return t.sendPhoto(ctx, chatID, msg)
	}
	return t.sendMessage(ctx, chatID, msg)
}

func (t *TelegramNotifier) sendMessage(ctx context.Context, chatID string, msg Message) error {
	payload := map[string]interface{}{
		"chat_id": chatID,
		"text":    msg.Body,
	}
	if msg.Format == "markdown" {
		text := msg.Body
		if msg.Title != "" {
			text = fmt.Sprintf("*%s*\n\n%s", escapeMarkdown(msg.Title), msg.Body)
		}
		if msg.URL != "" {
			text += fmt.Sprintf("\n\n🔗 [查看详情](%s)", msg.URL)
		}
		payload["text"] = text
		payload["parse_mode"] = "MarkdownV2"
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", t.endpoint("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return t.do(req, "send telegram message")
}

// sendPhoto uploads the PNG as multipart form data; the title becomes the caption.
func (t *TelegramNotifier) sendPhoto(ctx context.Context, chatID string, msg Message) error {
	img, err := msg.ImageBytes()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("chat_id", chatID); err != nil {
		return fmt.Errorf("write form: %w", err)
	}
	if caption := truncateRunes(msg.Title, telegramCaptionLimit); caption != "" {
		if err := mw.WriteField("caption", caption); err != nil {
			return fmt.Errorf("write form: %w", err)
		}
	}
	part, err := mw.CreateFormFile("photo", "news.png")
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(img); err != nil {
		return fmt.Errorf("write photo: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", t.endpoint("sendPhoto"), &buf)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return t.do(req, "send telegram photo")
}

func (t *TelegramNotifier) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", strings.TrimRight(t.config.APIBase, "/"), t.config.BotToken, method)
}

func (t *TelegramNotifier) do(req *http.Request, what string) error {
	resp, err := t.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram API error (%d): %s", resp.StatusCode, string(respBody))
	}
	return nil
}

var markdownV2Escaper = strings.NewReplacer(
	"_", `\_`, "*", `\*`, "[", `\[`, "]", `\]`, "(", `\(`, ")", `\)`, "~", `\~`, "`", "\\`",
	">", `\>`, "#", `\#`, "+", `\+`, "-", `\-`, "=", `\=`, "|", `\|`, "{", `\{`, "}", `\}`,
	".", `\.`, "!", `\!`,
)

// escapeMarkdown escapes special characters for Telegram MarkdownV2.
func escapeMarkdown(text string) string {
	return markdownV2Escaper.Replace(text)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
