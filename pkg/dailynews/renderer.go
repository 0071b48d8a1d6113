package dailynews

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
)

// SourceName is credited at the end of the text digest.
const SourceName = "每日60秒早报"

// FormatText builds the plain-text digest that may follow the image.
func FormatText(d *Digest) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("【%s】%s\n\n", SourceName, d.Date.Format(DateLayout)))
	for i, h := range d.Headlines {
		sb.WriteString(NumberedHeadline(i, h))
		sb.WriteString("\n")
	}
	sb.WriteString(fmt.Sprintf("\n【今日提示】%s\n", d.Tip))
	sb.WriteString("数据来源: " + SourceName)

	return sb.String()
}

// FormatMarkdown renders the digest as Markdown.
func FormatMarkdown(d *Digest) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# %s · %s\n\n", SourceName, d.Date.Format(DateLayout)))
	sb.WriteString(fmt.Sprintf("*%s %s*\n\n", d.Theme().Chinese, d.LunarLabel()))
	for i, h := range d.Headlines {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, escapeMarkdown(strings.TrimSpace(h))))
	}
	sb.WriteString(fmt.Sprintf("\n> %s\n\n", escapeMarkdown(d.Tip)))
	sb.WriteString("---\n\n数据来源: " + SourceName + "\n")

	return sb.String()
}

// RenderHTML converts the Markdown digest to HTML for email bodies.
func RenderHTML(d *Digest) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(FormatMarkdown(d)), &buf); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return buf.String(), nil
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "[", `\[`, "]", `\]`, "<", "&lt;", ">", "&gt;",
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
