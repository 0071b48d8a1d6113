package dailynews

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
)

// EncodePNG serializes img as a PNG in memory.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeBase64 returns the standard base64 form of data for message payloads.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// PNG encodes the rendered image.
func (r *Rendered) PNG() ([]byte, error) {
	return EncodePNG(r.Image)
}

// Base64 encodes the rendered image as base64 PNG.
func (r *Rendered) Base64() (string, error) {
	data, err := r.PNG()
	if err != nil {
		return "", err
	}
	return EncodeBase64(data), nil
}

// RenderBase64 renders d and returns the base64 PNG.
func (r *ImageRenderer) RenderBase64(d *Digest) (string, error) {
	out, err := r.Render(d)
	if err != nil {
		return "", err
	}
	return out.Base64()
}
