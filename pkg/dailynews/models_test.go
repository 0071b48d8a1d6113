package dailynews

import (
	"errors"
	"testing"
	"time"
)

func TestNewDigest_Invalid(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
	}{
		{"missing date", Record{News: []string{"a"}}},
		{"blank date", Record{Date: "  ", News: []string{"a"}}},
		{"no headlines", Record{Date: "2026-01-15"}},
		{"bad date", Record{Date: "2026/01/15", News: []string{"a"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDigest(tt.rec)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestNewDigest_Defaults(t *testing.T) {
	d, err := NewDigest(Record{Date: "2026-01-15", News: []string{"头条"}})
	if err != nil {
		t.Fatalf("NewDigest: %v", err)
	}
	if d.WeekdayKey != "Thu" {
		t.Errorf("WeekdayKey = %q, want Thu", d.WeekdayKey)
	}
	if d.LunarDate != "正月十五" {
		t.Errorf("LunarDate = %q, want 正月十五", d.LunarDate)
	}
	if d.Tip != DefaultTip {
		t.Errorf("Tip = %q, want %q", d.Tip, DefaultTip)
	}
	if got := d.GregorianLabel(); got != "2026年01月15日" {
		t.Errorf("GregorianLabel = %q", got)
	}
}

func TestNewDigest_UpstreamFields(t *testing.T) {
	rec := Record{
		Date:      "2026-01-15",
		News:      []string{"一", "二"},
		Tip:       "  早起的鸟儿有虫吃  ",
		DayOfWeek: "星期六",
		LunarDate: "乙巳年冬月廿七",
	}
	d, err := NewDigest(rec)
	if err != nil {
		t.Fatalf("NewDigest: %v", err)
	}
	if d.WeekdayKey != "Sat" {
		t.Errorf("upstream weekday should win, got %q", d.WeekdayKey)
	}
	if d.Tip != "早起的鸟儿有虫吃" {
		t.Errorf("Tip = %q", d.Tip)
	}
	if got := d.LunarLabel(); got != "冬月廿七" {
		t.Errorf("LunarLabel = %q, want 冬月廿七", got)
	}

	// The digest owns its headlines.
	rec.News[0] = "changed"
	if d.Headlines[0] != "一" {
		t.Errorf("digest shares the record's slice")
	}
}

func TestNewDigest_UnknownChineseWeekday(t *testing.T) {
	d, err := NewDigest(Record{Date: "2026-01-15", News: []string{"a"}, DayOfWeek: "周四"})
	if err != nil {
		t.Fatalf("NewDigest: %v", err)
	}
	if d.WeekdayKey != "Thu" {
		t.Errorf("expected computed weekday, got %q", d.WeekdayKey)
	}
}

func TestThemeFor(t *testing.T) {
	if got := ThemeFor("Thu"); got.Accent != (Themes["Thu"].Accent) || got.English != "THURSDAY" {
		t.Errorf("ThemeFor(Thu) = %+v", got)
	}
	for _, key := range []string{"", "thu", "Holiday"} {
		if got := ThemeFor(key); got != DefaultTheme {
			t.Errorf("ThemeFor(%q) = %+v, want default", key, got)
		}
	}
	if len(Themes) != 7 {
		t.Errorf("expected 7 themes, got %d", len(Themes))
	}
}

func TestLunarLabel_NoYear(t *testing.T) {
	d := &Digest{LunarDate: "腊月初八"}
	if got := d.LunarLabel(); got != "腊月初八" {
		t.Errorf("LunarLabel = %q", got)
	}
	d.LunarDate = "乙巳年"
	if got := d.LunarLabel(); got != "乙巳年" {
		t.Errorf("a bare year should be kept, got %q", got)
	}
}

func TestApproxLunarDate(t *testing.T) {
	tests := []struct {
		date string
		want string
	}{
		{"2026-01-01", "正月初一"},
		{"2026-01-15", "正月十五"},
		{"2026-03-31", "三月初一"},
		{"2026-12-30", "腊月三十"},
	}
	for _, tt := range tests {
		d, _ := time.Parse(DateLayout, tt.date)
		if got := ApproxLunarDate(d); got != tt.want {
			t.Errorf("ApproxLunarDate(%s) = %q, want %q", tt.date, got, tt.want)
		}
	}
}
