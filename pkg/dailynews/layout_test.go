package dailynews

import (
	"math"
	"testing"
)

func TestLayout_CanvasHeight(t *testing.T) {
	l := DefaultLayout()
	// 50 + 300 + 20 + 80 + 20 + block + 0 + 50
	if got := l.CanvasHeight(100); got != 620 {
		t.Errorf("CanvasHeight(100) = %d, want 620", got)
	}
	if got := l.CanvasHeight(100.2); got != 621 {
		t.Errorf("CanvasHeight rounds up, got %d", got)
	}
}

func TestLayout_Widths(t *testing.T) {
	l := DefaultLayout()
	if l.ContentWidth() != 900 || l.BannerWidth() != 900 {
		t.Errorf("ContentWidth=%v BannerWidth=%v", l.ContentWidth(), l.BannerWidth())
	}
}

func TestLayout_MeasureHeadlines(t *testing.T) {
	l := DefaultLayout()
	m := fixedMeasurer{l.NewsSize}

	total, items := l.MeasureHeadlines(m, sampleHeadlines)
	if len(items) != len(sampleHeadlines) {
		t.Fatalf("expected %d items, got %d", len(sampleHeadlines), len(items))
	}

	sum := 0.0
	for i, h := range items {
		lines := len(WrapLines(m, NumberedHeadline(i, sampleHeadlines[i]), l.NewsSize, l.ContentWidth()))
		if want := BlockHeight(m, lines, l.LineSpacing); h != want {
			t.Errorf("item %d height = %v, want %v", i, h, want)
		}
		sum += h
	}
	if want := sum + float64(len(items))*l.ItemSpacing; math.Abs(total-want) > 1e-9 {
		t.Errorf("total = %v, want %v", total, want)
	}
}

func TestNumberedHeadline(t *testing.T) {
	if got := NumberedHeadline(0, "  头条  "); got != "1. 头条" {
		t.Errorf("got %q", got)
	}
	if got := NumberedHeadline(14, "x"); got != "15. x" {
		t.Errorf("got %q", got)
	}
}
