package sources

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/disintegration/imaging"

	"github.com/RobinCoderZhao/morning-news/pkg/dailynews"
)

// maxImageBytes bounds a pre-rendered image download.
const maxImageBytes = 20 << 20

// DownloadImage fetches the record's pre-rendered image and returns it as a
// PNG no wider than maxWidth (0 keeps the original size). Any format the
// imaging package decodes is accepted.
func (f *Fetcher) DownloadImage(ctx context.Context, rec *dailynews.Record, maxWidth int) ([]byte, error) {
	if rec == nil || rec.Image == "" {
		return nil, fmt.Errorf("record has no image url")
	}

	ctx, cancel := context.WithTimeout(ctx, f.imageTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", rec.Image, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download image: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	f.logger.Info("image downloaded", "url", rec.Image, "bytes", len(data))

	return NormalizeImage(data, maxWidth)
}

// NormalizeImage decodes data, scales it down to maxWidth keeping the aspect
// ratio, and re-encodes it as PNG.
func NormalizeImage(data []byte, maxWidth int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if maxWidth > 0 && img.Bounds().Dx() > maxWidth {
		img = imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}
