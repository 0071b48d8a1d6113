package dailynews

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Measurer reports text metrics for one font face. A *gg.Context satisfies
// it once a face has been set.
type Measurer interface {
	MeasureString(s string) (w, h float64)
	FontHeight() float64
}

const (
	// Non-CJK runs longer than this are pre-split before line fitting.
	longRunRunes = 10
	// Rough advance of a Latin glyph relative to the font size; only used
	// to size the pre-split chunks.
	avgGlyphRatio = 0.6
)

func isCJK(r rune) bool {
	return r >= 0x4E00 && r <= 0x9FFF
}

// WrapText breaks text into lines no wider than maxWidth pixels and returns
// the wrapped text with the pixel height of the block at the given line
// spacing. Empty input yields ("", 0).
func WrapText(m Measurer, text string, fontSize, maxWidth, spacing float64) (string, float64) {
	lines := WrapLines(m, text, fontSize, maxWidth)
	if len(lines) == 0 {
		return "", 0
	}
	return strings.Join(lines, "\n"), BlockHeight(m, len(lines), spacing)
}

// BlockHeight is the height of n stacked lines separated by spacing.
func BlockHeight(m Measurer, n int, spacing float64) float64 {
	if n <= 0 {
		return 0
	}
	return float64(n)*m.FontHeight() + float64(n-1)*spacing
}

// WrapLines is WrapText without the join. Explicit newlines always break;
// trailing empty lines are dropped.
func WrapLines(m Measurer, text string, fontSize, maxWidth float64) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		tokens := presplit(tokenize(para), fontSize, maxWidth)
		if len(tokens) == 0 {
			lines = append(lines, "")
			continue
		}
		lines = append(lines, fitTokens(m, tokens, maxWidth)...)
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// tokenize makes every CJK ideograph its own token and keeps maximal runs of
// anything else (spaces included) together.
func tokenize(para string) []string {
	var tokens []string
	var run strings.Builder
	for _, r := range para {
		if !isCJK(r) {
			run.WriteRune(r)
			continue
		}
		if run.Len() > 0 {
			tokens = append(tokens, run.String())
			run.Reset()
		}
		tokens = append(tokens, string(r))
	}
	if run.Len() > 0 {
		tokens = append(tokens, run.String())
	}
	return tokens
}

func presplit(tokens []string, fontSize, maxWidth float64) []string {
	if fontSize <= 0 {
		return tokens
	}
	width := int(maxWidth / (fontSize * avgGlyphRatio))
	if width < 1 {
		width = 1
	}

	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		first, _ := utf8.DecodeRuneInString(tok)
		if isCJK(first) || utf8.RuneCountInString(tok) <= longRunRunes {
			out = append(out, tok)
			continue
		}
		out = append(out, splitRun(tok, width)...)
	}
	return out
}

// splitRun packs the words of s into chunks of at most width runes, cutting
// words that are longer than a chunk. A leading or trailing space on s is
// kept on the first or last chunk.
func splitRun(s string, width int) []string {
	var chunks []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			chunks = append(chunks, string(cur))
			cur = nil
		}
	}

	if width > 1 && strings.TrimLeftFunc(s, unicode.IsSpace) != s {
		cur = []rune{' '}
	}
	for _, word := range strings.Fields(s) {
		w := []rune(word)
		if strings.TrimSpace(string(cur)) != "" {
			if len(cur)+1+len(w) <= width {
				cur = append(cur, ' ')
				cur = append(cur, w...)
				continue
			}
			flush()
		}
		for len(cur)+len(w) > width {
			n := width - len(cur)
			cur = append(cur, w[:n]...)
			w = w[n:]
			flush()
		}
		cur = append(cur, w...)
	}
	flush()

	if len(chunks) > 0 && strings.TrimRightFunc(s, unicode.IsSpace) != s {
		chunks[len(chunks)-1] += " "
	}
	return chunks
}

// fitTokens greedily fills lines. A token that does not fit on an empty line
// is cut at the widest prefix that fits (never less than one rune) and the
// rest continues on the following line.
func fitTokens(m Measurer, tokens []string, maxWidth float64) []string {
	var lines []string
	cur := ""
	for _, tok := range tokens {
		candidate := cur + separator(cur, tok) + tok
		if width(m, candidate) <= maxWidth {
			cur = candidate
			continue
		}
		if cur != "" {
			lines = append(lines, cur)
		}
		cur = tok
		for width(m, cur) > maxWidth && utf8.RuneCountInString(cur) > 1 {
			head, rest := trimToFit(m, cur, maxWidth)
			lines = append(lines, head)
			cur = rest
		}
	}
	if cur != "" {
		lines = append(lines, cur)
	}
	return lines
}

// separator returns the space placed between two non-CJK neighbours. CJK
// text is set without inter-character spaces.
func separator(line, tok string) string {
	if line == "" {
		return ""
	}
	last, _ := utf8.DecodeLastRuneInString(line)
	first, _ := utf8.DecodeRuneInString(tok)
	if isCJK(last) || isCJK(first) {
		return ""
	}
	return " "
}

func trimToFit(m Measurer, s string, maxWidth float64) (string, string) {
	runes := []rune(s)
	n := len(runes)
	for n > 1 && width(m, string(runes[:n])) > maxWidth {
		n--
	}
	return string(runes[:n]), string(runes[n:])
}

func width(m Measurer, s string) float64 {
	w, _ := m.MeasureString(s)
	return w
}
