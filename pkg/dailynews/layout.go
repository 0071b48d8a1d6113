package dailynews

import (
	"fmt"
	"math"
	"strings"
)

// Layout is the fixed geometry of the digest image. The same Layout value
// drives both the measurement pass and the render pass.
type Layout struct {
	Width          float64
	OuterMargin    float64
	MarginX        float64
	BannerHeight   float64
	SeparatorGap   float64
	DateBarHeight  float64
	LineSpacing    float64 // between wrapped lines of one headline
	ItemSpacing    float64 // between headlines
	HeadlineTop    float64
	HeadlineBottom float64

	WeekdayTop     float64 // banner top to the Chinese weekday label
	WeekdaySpacing float64 // Chinese label to English label
	TipSpacing     float64
	TipBottomInset float64
	TipSideInset   float64
	RuleWidth      float64

	WeekdayCNSize float64
	WeekdayENSize float64
	TipSize       float64
	TitleSize     float64
	DateSize      float64
	NewsSize      float64
}

// DefaultLayout returns the 1000px wide layout.
func DefaultLayout() Layout {
	return Layout{
		Width:          1000,
		OuterMargin:    50,
		MarginX:        50,
		BannerHeight:   300,
		SeparatorGap:   20,
		DateBarHeight:  80,
		LineSpacing:    8,
		ItemSpacing:    25,
		HeadlineTop:    20,
		HeadlineBottom: 0,

		WeekdayTop:     30,
		WeekdaySpacing: 25,
		TipSpacing:     6,
		TipBottomInset: 20,
		TipSideInset:   40,
		RuleWidth:      2,

		WeekdayCNSize: 160,
		WeekdayENSize: 48,
		TipSize:       24,
		TitleSize:     42,
		DateSize:      24,
		NewsSize:      27,
	}
}

// ContentWidth is the maximum width of a headline line.
func (l Layout) ContentWidth() float64 {
	return l.Width - 2*l.MarginX
}

// BannerWidth is the width of the themed banner.
func (l Layout) BannerWidth() float64 {
	return l.Width - 2*l.OuterMargin
}

// CanvasHeight returns the image height for a headline block of the given
// height, rounded up to whole pixels.
func (l Layout) CanvasHeight(headlines float64) int {
	h := l.OuterMargin + l.BannerHeight + l.SeparatorGap + l.DateBarHeight +
		l.HeadlineTop + headlines + l.HeadlineBottom + l.OuterMargin
	return int(math.Ceil(h))
}

// MeasureHeadlines returns the height of the numbered headline block and
// the wrapped height of every item. m must carry the headline face.
func (l Layout) MeasureHeadlines(m Measurer, headlines []string) (float64, []float64) {
	total := 0.0
	items := make([]float64, len(headlines))
	for i, h := range headlines {
		_, items[i] = WrapText(m, NumberedHeadline(i, h), l.NewsSize, l.ContentWidth(), l.LineSpacing)
		total += items[i] + l.ItemSpacing
	}
	return total, items
}

// NumberedHeadline prefixes the i-th (zero-based) headline with its 1-based number.
func NumberedHeadline(i int, headline string) string {
	return fmt.Sprintf("%d. %s", i+1, strings.TrimSpace(headline))
}
