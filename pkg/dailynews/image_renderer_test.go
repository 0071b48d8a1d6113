package dailynews

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

var sampleHeadlines = []string{
	"国务院常务会议研究部署进一步优化营商环境，推动经济持续回升向好。",
	"国家统计局：2025 年全国居民人均可支配收入实际增长 5.1%。",
	"教育部发布通知，要求各地做好寒假期间中小学生安全教育工作。",
	"我国自主研制的大型客机 C919 今年计划交付数量再创新高。",
	"中国气象局预计本周中东部地区将迎来大范围雨雪降温天气过程。",
	"多地出台新政支持新能源汽车消费，部分城市放宽购车指标限制。",
	"央行开展逆回购操作，保持银行体系流动性合理充裕。",
	"国家医保局：新版药品目录正式落地实施，新增药品九十余种。",
	"春运将于下月启动，铁路部门预计发送旅客人数同比增长。",
	"科学家在深海发现新物种，为研究生命起源提供重要线索。",
	"全国多地景区推出冬季旅游优惠活动，冰雪游持续升温。",
	"外交部回应热点问题，强调坚持和平发展道路不动摇。",
	"AI 大模型应用加速落地，多家企业发布新一代产品。",
	"国际油价小幅上涨，市场关注主要产油国最新减产动向。",
	"今日一图：城市夜景灯光秀吸引大批市民驻足观赏。",
}

func testFonts(t *testing.T) *FontSet {
	t.Helper()
	fs, err := ParseFonts(gobold.TTF, goregular.TTF)
	if err != nil {
		t.Fatalf("ParseFonts: %v", err)
	}
	return fs
}

func testDigest(t *testing.T) *Digest {
	t.Helper()
	d, err := NewDigest(Record{
		Date:      "2026-01-15",
		News:      sampleHeadlines,
		Tip:       "生活不是等待风暴过去，而是学会在雨中翩翩起舞。",
		DayOfWeek: "星期四",
	})
	if err != nil {
		t.Fatalf("NewDigest: %v", err)
	}
	return d
}

func TestRender_EndToEnd(t *testing.T) {
	r := NewImageRenderer(testFonts(t))
	out, err := r.Render(testDigest(t))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	if out.Width != 1000 {
		t.Errorf("Width = %d, want 1000", out.Width)
	}
	if want := r.Layout.CanvasHeight(out.HeadlineHeight); out.Height != want {
		t.Errorf("Height = %d, want %d", out.Height, want)
	}
	b := out.Image.Bounds()
	if b.Dx() != out.Width || b.Dy() != out.Height {
		t.Errorf("image bounds %v do not match %dx%d", b, out.Width, out.Height)
	}

	// Measurement and render passes must agree.
	if len(out.ItemHeights) != len(sampleHeadlines) {
		t.Fatalf("expected %d item heights, got %d", len(sampleHeadlines), len(out.ItemHeights))
	}
	sum := 0.0
	for _, h := range out.ItemHeights {
		sum += h
	}
	sum += float64(len(out.ItemHeights)) * r.Layout.ItemSpacing
	if math.Abs(sum-out.HeadlineHeight) > 1e-6 {
		t.Errorf("render pass height %v != measured %v", sum, out.HeadlineHeight)
	}

	if out.Theme.Key != "Thu" {
		t.Errorf("Theme = %q, want Thu", out.Theme.Key)
	}
	got := color.RGBAModel.Convert(out.Image.At(60, 60)).(color.RGBA)
	if got != (color.RGBA{0, 191, 233, 255}) {
		t.Errorf("banner pixel = %v, want Thursday accent", got)
	}
	corner := color.RGBAModel.Convert(out.Image.At(5, 5)).(color.RGBA)
	if corner != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("background pixel = %v, want white", corner)
	}
}

func TestRender_Base64PNG(t *testing.T) {
	r := NewImageRenderer(testFonts(t))
	out, err := r.Render(testDigest(t))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	enc, err := out.Base64()
	if err != nil {
		t.Fatalf("Base64: %v", err)
	}
	data, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		t.Fatalf("decode base64: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")) {
		t.Fatal("payload is not a PNG")
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DecodeConfig: %v", err)
	}
	if cfg.Width != out.Width || cfg.Height != out.Height {
		t.Errorf("decoded %dx%d, rendered %dx%d", cfg.Width, cfg.Height, out.Width, out.Height)
	}
}

func TestRender_MoreHeadlinesTaller(t *testing.T) {
	r := NewImageRenderer(testFonts(t))
	d := testDigest(t)
	short := *d
	short.Headlines = d.Headlines[:3]

	a, err := r.Render(&short)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	b, err := r.Render(d)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if a.Height >= b.Height {
		t.Errorf("3 headlines (%d) should be shorter than 15 (%d)", a.Height, b.Height)
	}
}

func TestRender_InvalidInput(t *testing.T) {
	r := NewImageRenderer(testFonts(t))
	for _, d := range []*Digest{nil, {}, {Date: testDigest(t).Date}} {
		if _, err := r.Render(d); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	}
}

func TestRender_MissingFont(t *testing.T) {
	dir := t.TempDir()
	loader := NewFontLoader(FontPaths{
		Display: filepath.Join(dir, "missing-display.ttf"),
		Content: filepath.Join(dir, "missing-content.ttf"),
	})
	r := NewImageRenderer(loader)
	_, err := r.Render(testDigest(t))
	if !errors.Is(err, ErrResourceUnavailable) {
		t.Fatalf("expected ErrResourceUnavailable, got %v", err)
	}
}

func TestFontLoader_RetriesAfterFailure(t *testing.T) {
	dir := t.TempDir()
	paths := FontPaths{
		Display: filepath.Join(dir, "display.ttf"),
		Content: filepath.Join(dir, "content.ttf"),
	}
	loader := NewFontLoader(paths)
	if err := loader.Check(); !errors.Is(err, ErrResourceUnavailable) {
		t.Fatalf("Check before install: %v", err)
	}
	if _, err := loader.Load(); err == nil {
		t.Fatal("expected load to fail before the fonts exist")
	}

	if err := os.WriteFile(paths.Display, gobold.TTF, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(paths.Content, goregular.TTF, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := loader.Check(); err != nil {
		t.Fatalf("Check after install: %v", err)
	}
	first, err := loader.Load()
	if err != nil {
		t.Fatalf("Load after install: %v", err)
	}
	second, _ := loader.Load()
	if first != second {
		t.Error("expected the loaded fonts to be cached")
	}
}

func TestFontLoader_Unconfigured(t *testing.T) {
	if _, err := NewFontLoader(FontPaths{}).Load(); !errors.Is(err, ErrResourceUnavailable) {
		t.Fatalf("expected ErrResourceUnavailable, got %v", err)
	}
}

func TestParseFonts_Garbage(t *testing.T) {
	if _, err := ParseFonts([]byte("not a font"), goregular.TTF); !errors.Is(err, ErrResourceUnavailable) {
		t.Fatalf("expected ErrResourceUnavailable, got %v", err)
	}
}

func TestRender_Concurrent(t *testing.T) {
	r := NewImageRenderer(testFonts(t))
	d := testDigest(t)

	const workers = 6
	heights := make([]int, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := r.Render(d)
			if err != nil {
				errs[i] = err
				return
			}
			heights[i] = out.Height
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if heights[i] != heights[0] {
			t.Errorf("worker %d height %d != %d", i, heights[i], heights[0])
		}
	}
}

func TestRender_DefaultThemeAndQR(t *testing.T) {
	r := NewImageRenderer(testFonts(t))
	r.QRURL = "https://60s.viki.moe"
	d := testDigest(t)
	odd := *d
	odd.WeekdayKey = "Holiday"

	out, err := r.Render(&odd)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out.Theme != DefaultTheme {
		t.Errorf("Theme = %+v, want default", out.Theme)
	}
	got := color.RGBAModel.Convert(out.Image.At(60, 60)).(color.RGBA)
	if got != DefaultTheme.Accent {
		t.Errorf("banner pixel = %v, want %v", got, DefaultTheme.Accent)
	}
	// The QR code sits on a white square in the banner's top-right corner.
	qr := color.RGBAModel.Convert(out.Image.At(950-16-qrSize-2, 50+16-2)).(color.RGBA)
	if qr != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("QR backing pixel = %v, want white", qr)
	}
}
