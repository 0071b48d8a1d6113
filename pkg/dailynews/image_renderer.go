package dailynews

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"strings"

	"github.com/fogleman/gg"
	qrcode "github.com/skip2/go-qrcode"
)

var (
	textColor  = color.RGBA{0, 0, 0, 255}
	titleColor = color.RGBA{220, 20, 60, 255}
	lightColor = color.RGBA{255, 255, 255, 255}
)

const qrSize = 96

// ImageRenderer composes a Digest into a PNG-ready raster. It holds no
// per-render state and is safe for concurrent use.
type ImageRenderer struct {
	Layout Layout
	Title  string
	QRURL  string // optional; drawn in the banner's top-right corner

	fonts  FontSource
	logger *slog.Logger
}

// NewImageRenderer creates a renderer with the default layout.
func NewImageRenderer(fonts FontSource) *ImageRenderer {
	return &ImageRenderer{
		Layout: DefaultLayout(),
		Title:  Title,
		fonts:  fonts,
		logger: slog.Default(),
	}
}

// Rendered is a finished image plus the measurements it was laid out with.
type Rendered struct {
	Image          image.Image
	Width          int
	Height         int
	HeadlineHeight float64   // from the measurement pass
	ItemHeights    []float64 // from the render pass
	Theme          WeekdayTheme
}

// Render draws the digest. It fails with ErrInvalidInput or
// ErrResourceUnavailable and never returns a partial image.
func (r *ImageRenderer) Render(d *Digest) (*Rendered, error) {
	if d == nil || d.Date.IsZero() || len(d.Headlines) == 0 {
		return nil, fmt.Errorf("%w: digest needs a date and at least one headline", ErrInvalidInput)
	}
	fonts, err := r.fonts.Load()
	if err != nil {
		return nil, fmt.Errorf("load fonts: %w", err)
	}

	l := r.Layout
	faces := newFaceSet(fonts, l)

	// Measurement pass on a scratch canvas.
	scratch := gg.NewContext(int(l.Width), 1)
	scratch.SetFontFace(faces.news.Face)
	headlineH, _ := l.MeasureHeadlines(scratch, d.Headlines)
	height := l.CanvasHeight(headlineH)

	dc := gg.NewContext(int(l.Width), height)
	dc.SetColor(color.White)
	dc.Clear()

	theme := d.Theme()
	r.drawBanner(dc, faces, d, theme)
	y := r.drawDateBar(dc, faces, d)
	items := r.drawHeadlines(dc, faces, d.Headlines, y+l.HeadlineTop)

	r.logger.Debug("news image rendered",
		"date", d.Date.Format(DateLayout),
		"weekday", theme.Key,
		"headlines", len(d.Headlines),
		"height", height,
	)

	return &Rendered{
		Image:          dc.Image(),
		Width:          int(l.Width),
		Height:         height,
		HeadlineHeight: headlineH,
		ItemHeights:    items,
		Theme:          theme,
	}, nil
}

// ---- Drawing helpers ----

func (r *ImageRenderer) drawBanner(dc *gg.Context, fs *faceSet, d *Digest, theme WeekdayTheme) {
	l := r.Layout
	x, top, w := l.OuterMargin, l.OuterMargin, l.BannerWidth()

	dc.SetColor(theme.Accent)
	dc.DrawRectangle(x, top, w, l.BannerHeight)
	dc.Fill()

	dc.SetColor(lightColor)
	cnTop := top + l.WeekdayTop
	cnBottom := drawInkCentered(dc, fs.weekdayCN, theme.Chinese, x, w, cnTop)
	drawInkCentered(dc, fs.weekdayEN, theme.English, x, w, cnBottom+l.WeekdaySpacing)

	dc.SetFontFace(fs.tip.Face)
	tip, tipH := WrapText(dc, d.Tip, fs.tip.size, w-l.TipSideInset, l.TipSpacing)
	tipTop := top + l.BannerHeight - tipH - l.TipBottomInset
	for i, line := range strings.Split(tip, "\n") {
		lw, _ := dc.MeasureString(line)
		baseline := tipTop + fs.tip.ascent + float64(i)*(fs.tip.height+l.TipSpacing)
		dc.DrawString(line, x+(w-lw)/2, baseline)
	}

	if r.QRURL != "" {
		r.drawQR(dc, x+w-qrSize-16, top+16)
	}
}

// drawDateBar draws the rules and the lunar/title/Gregorian row, returning
// the y of the lower rule.
func (r *ImageRenderer) drawDateBar(dc *gg.Context, fs *faceSet, d *Digest) float64 {
	l := r.Layout
	bannerBottom := l.OuterMargin + l.BannerHeight
	top := bannerBottom + l.SeparatorGap
	bottom := top + l.DateBarHeight
	center := top + l.DateBarHeight/2

	r.drawRule(dc, bannerBottom+l.SeparatorGap/2)

	dc.SetColor(textColor)
	drawInkMiddle(dc, fs.date, d.LunarLabel(), l.MarginX, center)

	dc.SetColor(titleColor)
	tw := advance(dc, fs.title, r.Title)
	drawInkMiddle(dc, fs.title, r.Title, (l.Width-tw)/2, center)

	dc.SetColor(textColor)
	greg := d.GregorianLabel()
	gw := advance(dc, fs.date, greg)
	drawInkMiddle(dc, fs.date, greg, l.Width-l.MarginX-gw, center)

	r.drawRule(dc, bottom)
	return bottom
}

// drawHeadlines draws the numbered list from y and returns each item's
// wrapped height.
func (r *ImageRenderer) drawHeadlines(dc *gg.Context, fs *faceSet, headlines []string, y float64) []float64 {
	l := r.Layout
	dc.SetFontFace(fs.news.Face)
	dc.SetColor(textColor)

	items := make([]float64, 0, len(headlines))
	for i, h := range headlines {
		wrapped, itemH := WrapText(dc, NumberedHeadline(i, h), l.NewsSize, l.ContentWidth(), l.LineSpacing)
		for j, line := range strings.Split(wrapped, "\n") {
			dc.DrawString(line, l.MarginX, y+fs.news.ascent+float64(j)*(fs.news.height+l.LineSpacing))
		}
		items = append(items, itemH)
		y += itemH + l.ItemSpacing
	}
	return items
}

func (r *ImageRenderer) drawRule(dc *gg.Context, y float64) {
	l := r.Layout
	dc.SetColor(textColor)
	dc.SetLineWidth(l.RuleWidth)
	dc.DrawLine(l.OuterMargin, y, l.Width-l.OuterMargin, y)
	dc.Stroke()
}

func (r *ImageRenderer) drawQR(dc *gg.Context, x, y float64) {
	q, err := qrcode.New(r.QRURL, qrcode.Medium)
	if err != nil {
		r.logger.Warn("qr code skipped", "url", r.QRURL, "error", err)
		return
	}
	q.DisableBorder = true
	dc.SetColor(lightColor)
	dc.DrawRectangle(x-4, y-4, qrSize+8, qrSize+8)
	dc.Fill()
	dc.DrawImage(q.Image(qrSize), int(x), int(y))
}

// drawInkCentered centres s horizontally in [x, x+w] with its ink top at
// top, returning the y of the ink bottom.
func drawInkCentered(dc *gg.Context, f face, s string, x, w, top float64) float64 {
	inkTop, inkBottom := f.inkBounds(s)
	sw := advance(dc, f, s)
	baseline := top - inkTop
	dc.DrawString(s, x+(w-sw)/2, baseline)
	return baseline + inkBottom
}

// drawInkMiddle draws s from x with its ink vertically centred on cy.
func drawInkMiddle(dc *gg.Context, f face, s string, x, cy float64) {
	inkTop, inkBottom := f.inkBounds(s)
	dc.SetFontFace(f.Face)
	dc.DrawString(s, x, cy-(inkTop+inkBottom)/2)
}

func advance(dc *gg.Context, f face, s string) float64 {
	dc.SetFontFace(f.Face)
	w, _ := dc.MeasureString(s)
	return w
}
