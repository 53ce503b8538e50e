package segmentation

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/roofsight/roofsight/server/internal/clients/staticmap"
)

// CaptureSource supplies satellite captures for the image-driven providers
type CaptureSource interface {
	CaptureURL(lat, lng float64, opts staticmap.CaptureOptions) string
	FetchCapture(ctx context.Context, lat, lng float64, opts staticmap.CaptureOptions) (image.Image, error)
}

// encodePNG serializes a capture for handoff to inference backends
func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode capture: %w", err)
	}
	return buf.Bytes(), nil
}

// encodePNGBase64 serializes a capture as base64 for form-encoded APIs
func encodePNGBase64(img image.Image) (string, error) {
	data, err := encodePNG(img)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
