// Package dailynews renders the daily "60 seconds" news digest.
//
// It turns a small upstream record (date, headlines, tip, optional weekday
// and lunar date) into a fixed-width PNG whose height follows the content,
// plus the plain-text and HTML forms sent alongside the image.
package dailynews

import (
	"errors"
	"fmt"
	"image/color"
	"strings"
	"time"
)

var (
	// ErrInvalidInput is returned when a record lacks a date or headlines,
	// or its date cannot be parsed.
	ErrInvalidInput = errors.New("invalid digest input")

	// ErrResourceUnavailable is returned when a font file is missing or unreadable.
	ErrResourceUnavailable = errors.New("render resource unavailable")
)

// DateLayout is the upstream date format.
const DateLayout = "2006-01-02"

// DefaultTip replaces an empty tip so the banner is never blank.
const DefaultTip = "今日无一言"

// Title is drawn in the middle of the date bar.
const Title = "每日60秒读懂世界"

// Record is the "data" object returned by the news API.
type Record struct {
	Date      string   `json:"date"`
	News      []string `json:"news"`
	Tip       string   `json:"tip"`
	DayOfWeek string   `json:"day_of_week,omitempty"`
	LunarDate string   `json:"lunar_date,omitempty"`
	Image     string   `json:"image,omitempty"`
	Link      string   `json:"link,omitempty"`
}

// Digest is a validated record ready for rendering. It is never mutated
// after NewDigest returns.
type Digest struct {
	Date       time.Time
	WeekdayKey string // "Mon".."Sun"; anything else renders with the default theme
	LunarDate  string
	Tip        string
	Headlines  []string
}

// NewDigest validates rec and fills in the derived fields.
func NewDigest(rec Record) (*Digest, error) {
	if strings.TrimSpace(rec.Date) == "" {
		return nil, fmt.Errorf("%w: missing date", ErrInvalidInput)
	}
	if len(rec.News) == 0 {
		return nil, fmt.Errorf("%w: no headlines", ErrInvalidInput)
	}
	date, err := time.Parse(DateLayout, strings.TrimSpace(rec.Date))
	if err != nil {
		return nil, fmt.Errorf("%w: parse date %q: %v", ErrInvalidInput, rec.Date, err)
	}

	key := weekdayKey(date.Weekday())
	if rec.DayOfWeek != "" {
		if k, ok := keyByChinese[strings.TrimSpace(rec.DayOfWeek)]; ok {
			key = k
		}
	}

	lunar := strings.TrimSpace(rec.LunarDate)
	if lunar == "" {
		lunar = ApproxLunarDate(date)
	}

	tip := strings.TrimSpace(rec.Tip)
	if tip == "" {
		tip = DefaultTip
	}

	headlines := make([]string, len(rec.News))
	copy(headlines, rec.News)

	return &Digest{
		Date:       date,
		WeekdayKey: key,
		LunarDate:  lunar,
		Tip:        tip,
		Headlines:  headlines,
	}, nil
}

// Theme returns the weekday theme for the digest.
func (d *Digest) Theme() WeekdayTheme {
	return ThemeFor(d.WeekdayKey)
}

// GregorianLabel formats the date as shown on the right of the date bar.
func (d *Digest) GregorianLabel() string {
	return d.Date.Format("2006年01月02日")
}

// LunarLabel returns the month and day part of the lunar date, dropping a
// leading "…年" segment when present.
func (d *Digest) LunarLabel() string {
	if _, rest, ok := strings.Cut(d.LunarDate, "年"); ok && rest != "" {
		return rest
	}
	return d.LunarDate
}

// ---- Weekday themes ----

// WeekdayTheme holds the labels and accent color for one weekday.
type WeekdayTheme struct {
	Key     string
	English string
	Chinese string
	Accent  color.RGBA
}

// DefaultTheme is used for keys outside the weekday table.
var DefaultTheme = WeekdayTheme{
	Key:     "default",
	English: "MONDAY",
	Chinese: "星期一",
	Accent:  color.RGBA{70, 130, 180, 255},
}

// Themes maps weekday keys to their theme. Read-only after init.
var Themes = map[string]WeekdayTheme{
	"Mon": {"Mon", "MONDAY", "星期一", color.RGBA{43, 128, 235, 255}},
	"Tue": {"Tue", "TUESDAY", "星期二", color.RGBA{34, 139, 34, 255}},
	"Wed": {"Wed", "WEDNESDAY", "星期三", color.RGBA{255, 140, 0, 255}},
	"Thu": {"Thu", "THURSDAY", "星期四", color.RGBA{0, 191, 233, 255}},
	"Fri": {"Fri", "FRIDAY", "星期五", color.RGBA{220, 20, 60, 255}},
	"Sat": {"Sat", "SATURDAY", "星期六", color.RGBA{255, 165, 0, 255}},
	"Sun": {"Sun", "SUNDAY", "星期日", color.RGBA{255, 69, 0, 255}},
}

var keyByChinese = func() map[string]string {
	m := make(map[string]string, len(Themes))
	for k, t := range Themes {
		m[t.Chinese] = k
	}
	return m
}()

// ThemeFor looks up a weekday key, falling back to DefaultTheme.
func ThemeFor(key string) WeekdayTheme {
	if t, ok := Themes[key]; ok {
		return t
	}
	return DefaultTheme
}

func weekdayKey(wd time.Weekday) string {
	return wd.String()[:3]
}

// ---- Lunar date fallback ----

var (
	lunarMonths = []string{"正月", "二月", "三月", "四月", "五月", "六月",
		"七月", "八月", "九月", "十月", "冬月", "腊月"}
	lunarDays = []string{"初一", "初二", "初三", "初四", "初五", "初六", "初七", "初八", "初九", "初十",
		"十一", "十二", "十三", "十四", "十五", "十六", "十七", "十八", "十九", "二十",
		"廿一", "廿二", "廿三", "廿四", "廿五", "廿六", "廿七", "廿八", "廿九", "三十"}
)

// ApproxLunarDate maps a Gregorian date onto a fixed 12x30 month/day cycle.
// It is not a lunisolar conversion and drifts from the real calendar; it is
// only used when the upstream record carries no lunar date.
func ApproxLunarDate(t time.Time) string {
	month := (int(t.Month()) - 1) % 12
	day := (t.Day() - 1) % 30
	return lunarMonths[month] + lunarDays[day]
}
