package dailynews

import (
	"fmt"
	"os"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
)

// FontPaths locates the two font files used by the renderer.
type FontPaths struct {
	Display string `yaml:"display" env:"MORNINGNEWS_FONT_DISPLAY"` // banner and date bar
	Content string `yaml:"content" env:"MORNINGNEWS_FONT_CONTENT"` // headlines
}

// FontSet holds parsed fonts. Parsed fonts are read-only and may be shared
// by concurrent renders; faces built from them may not.
type FontSet struct {
	Display *truetype.Font
	Content *truetype.Font
}

// FontSource supplies fonts to the renderer.
type FontSource interface {
	Load() (*FontSet, error)
}

// Load lets a FontSet act as its own FontSource.
func (s *FontSet) Load() (*FontSet, error) {
	return s, nil
}

// ParseFonts parses in-memory font files.
func ParseFonts(display, content []byte) (*FontSet, error) {
	d, err := truetype.Parse(display)
	if err != nil {
		return nil, fmt.Errorf("%w: parse display font: %v", ErrResourceUnavailable, err)
	}
	c, err := truetype.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("%w: parse content font: %v", ErrResourceUnavailable, err)
	}
	return &FontSet{Display: d, Content: c}, nil
}

// FontLoader reads fonts from disk on first use and caches them. A failed
// load is not cached, so a font file restored later is picked up by the
// next render.
type FontLoader struct {
	paths FontPaths

	mu  sync.Mutex
	set *FontSet
}

// NewFontLoader creates a loader for the given paths.
func NewFontLoader(paths FontPaths) *FontLoader {
	return &FontLoader{paths: paths}
}

// Load returns the cached fonts or reads them from disk.
func (l *FontLoader) Load() (*FontSet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.set != nil {
		return l.set, nil
	}

	display, err := readFontFile(l.paths.Display)
	if err != nil {
		return nil, err
	}
	content, err := readFontFile(l.paths.Content)
	if err != nil {
		return nil, err
	}
	set, err := ParseFonts(display, content)
	if err != nil {
		return nil, err
	}
	l.set = set
	return set, nil
}

// Check reports whether both font files are present and parseable without
// caching the result.
func (l *FontLoader) Check() error {
	for _, p := range []string{l.paths.Display, l.paths.Content} {
		data, err := readFontFile(p)
		if err != nil {
			return err
		}
		if _, err := truetype.Parse(data); err != nil {
			return fmt.Errorf("%w: parse %s: %v", ErrResourceUnavailable, p, err)
		}
	}
	return nil
}

func readFontFile(path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: font path not configured", ErrResourceUnavailable)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read font %s: %v", ErrResourceUnavailable, path, err)
	}
	return data, nil
}

// face is a sized font face plus the metrics the renderer positions text with.
type face struct {
	font.Face
	size   float64
	ascent float64
	height float64
}

func newFace(f *truetype.Font, size float64) face {
	ff := truetype.NewFace(f, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	m := ff.Metrics()
	return face{
		Face:   ff,
		size:   size,
		ascent: float64(m.Ascent) / 64,
		height: float64(m.Height) / 64,
	}
}

// inkBounds returns the top and bottom of the glyph ink of s relative to
// the baseline (top is negative above the baseline).
func (f face) inkBounds(s string) (top, bottom float64) {
	b, _ := font.BoundString(f.Face, s)
	return float64(b.Min.Y) / 64, float64(b.Max.Y) / 64
}

// faceSet holds the faces of a single render. It is never shared.
type faceSet struct {
	weekdayCN face
	weekdayEN face
	tip       face
	title     face
	date      face
	news      face
}

func newFaceSet(fonts *FontSet, l Layout) *faceSet {
	return &faceSet{
		weekdayCN: newFace(fonts.Display, l.WeekdayCNSize),
		weekdayEN: newFace(fonts.Display, l.WeekdayENSize),
		tip:       newFace(fonts.Display, l.TipSize),
		title:     newFace(fonts.Display, l.TitleSize),
		date:      newFace(fonts.Display, l.DateSize),
		news:      newFace(fonts.Content, l.NewsSize),
	}
}
