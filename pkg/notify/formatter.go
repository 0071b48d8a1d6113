package notify

import (
	"bytes"
	"fmt"
	"html"

	"github.com/yuin/goldmark"
)

// inlineImageCID is the Content-ID of the picture embedded in HTML emails.
const inlineImageCID = "news-image"

// ---- Shared HTML Email Skeleton ----

// EmailHeader renders the gradient header section of an HTML email.
func EmailHeader(title, subtitle string, gradientFrom, gradientTo string) string {
	return fmt.Sprintf(`
<!-- Header -->
<tr><td style="background:linear-gradient(135deg,%s 0%%,%s 100%%);border-radius:16px 16px 0 0;padding:32px 40px;text-align:center;">
  <h1 style="margin:0;font-size:28px;font-weight:800;color:#ffffff;letter-spacing:-0.5px;">%s</h1>
  <p style="margin:8px 0 0;font-size:15px;color:rgba(255,255,255,0.85);font-weight:500;">%s</p>
</td></tr>
`, gradientFrom, gradientTo, html.EscapeString(title), html.EscapeString(subtitle))
}

// EmailWrapperOpen renders the opening HTML for an email body.
func EmailWrapperOpen() string {
	return `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><meta name="viewport" content="width=device-width, initial-scale=1.0"></head>
<body style="margin:0;padding:0;background-color:#f4f4f7;font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,'PingFang SC','Microsoft YaHei',sans-serif;">
<table role="presentation" width="100%" cellpadding="0" cellspacing="0" style="background-color:#f4f4f7;">
<tr><td align="center" style="padding:20px 10px;">
<table role="presentation" width="640" cellpadding="0" cellspacing="0" style="max-width:640px;width:100%;">
`
}

// EmailWrapperClose renders the closing HTML for an email body.
func EmailWrapperClose() string {
	return `
</table>
</td></tr>
</table>
</body>
</html>`
}

// EmailImageRow embeds the inline picture attached to the same email.
func EmailImageRow() string {
	return fmt.Sprintf(`
<!-- Image -->
<tr><td style="background-color:#ffffff;padding:0;">
  <img src="cid:%s" alt="news" width="640" style="display:block;width:100%%;height:auto;border:0;">
</td></tr>
`, inlineImageCID)
}

// EmailContentRow wraps pre-rendered HTML in a body row.
func EmailContentRow(content string) string {
	return fmt.Sprintf(`
<!-- Content -->
<tr><td style="background-color:#ffffff;padding:28px 40px;font-size:15px;line-height:1.7;color:#333344;">
%s
</td></tr>
`, content)
}

// EmailFooter renders the footer section.
func EmailFooter(productName, tagline string, accentColor string) string {
	return fmt.Sprintf(`
<!-- Footer -->
<tr><td style="background-color:#ebebf0;border-radius:0 0 16px 16px;padding:24px 40px;text-align:center;">
  <p style="margin:0;font-size:12px;color:#707080;line-height:1.6;">
    <strong style="color:%s;">%s</strong> · %s
  </p>
</td></tr>
`, accentColor, html.EscapeString(productName), html.EscapeString(tagline))
}

// ---- Markdown to HTML ----

// MarkdownToHTML converts a Markdown body to HTML for email. Conversion
// failures fall back to escaped preformatted text.
func MarkdownToHTML(md string) string {
	if md == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "<pre>" + html.EscapeString(md) + "</pre>"
	}
	return buf.String()
}

// FormatEmailHTML lays out a complete HTML email. When withImage is set the
// inline picture is placed above the content.
func FormatEmailHTML(msg Message, withImage bool) string {
	content := msg.HTMLBody
	if content == "" {
		switch msg.Format {
		case "markdown":
			content = MarkdownToHTML(msg.Body)
		case "html":
			content = msg.Body
		default:
			if msg.Body != "" {
				content = `<pre style="white-space:pre-wrap;font-family:inherit;margin:0;">` + html.EscapeString(msg.Body) + "</pre>"
			}
		}
	}

	var buf bytes.Buffer
	buf.WriteString(EmailWrapperOpen())
	buf.WriteString(EmailHeader(msg.Title, "", "#2b80eb", "#00bfe9"))
	if withImage {
		buf.WriteString(EmailImageRow())
	}
	if content != "" {
		buf.WriteString(EmailContentRow(content))
	}
	buf.WriteString(EmailFooter("Morning News", "每日60秒读懂世界", "#dc143c"))
	buf.WriteString(EmailWrapperClose())
	return buf.String()
}
