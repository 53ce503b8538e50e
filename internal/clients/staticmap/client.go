package staticmap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"net/url"
	"strconv"
	"time"

	// Register decoders for the formats the Static Maps API serves
	_ "image/jpeg"
	_ "image/png"

	_ "github.com/chai2010/webp"
)

// ErrAPIKeyNotConfigured indicates the maps key is missing
var ErrAPIKeyNotConfigured = errors.New("static maps API key not configured")

// Client fetches satellite captures from the Google Static Maps API
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
}

// CaptureOptions controls the geometry of a satellite capture. Zoom and size
// must match what the pixel reprojection math is configured with.
type CaptureOptions struct {
	Zoom      int
	ImageSize int
	Scale     int
	Format    string // "png", "jpg" or "webp"
}

// DefaultCaptureOptions matches the reprojection defaults used elsewhere
func DefaultCaptureOptions() CaptureOptions {
	return CaptureOptions{
		Zoom:      20,
		ImageSize: 640,
		Scale:     1,
		Format:    "png",
	}
}

// NewClient creates a new Static Maps client
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: "https://maps.googleapis.com",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CaptureURL builds a satellite capture URL centered on the given point
func (c *Client) CaptureURL(lat, lng float64, opts CaptureOptions) string {
	size := strconv.Itoa(opts.ImageSize)

	params := url.Values{}
	params.Set("center", fmt.Sprintf("%f,%f", lat, lng))
	params.Set("zoom", strconv.Itoa(opts.Zoom))
	params.Set("size", size+"x"+size)
	params.Set("maptype", "satellite")
	if opts.Scale > 1 {
		params.Set("scale", strconv.Itoa(opts.Scale))
	}
	if opts.Format != "" {
		params.Set("format", opts.Format)
	}
	params.Set("key", c.apiKey)

	return c.baseURL + "/maps/api/staticmap?" + params.Encode()
}

// FetchCapture downloads and decodes a satellite capture. PNG, JPEG and WebP
// responses are all handled.
func (c *Client) FetchCapture(ctx context.Context, lat, lng float64, opts CaptureOptions) (image.Image, error) {
	if c.apiKey == "" {
		return nil, ErrAPIKeyNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.CaptureURL(lat, lng, opts), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("static maps API error %d", resp.StatusCode)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("failed to read capture: %w", err)
	}

	img, _, err := image.Decode(&buf)
	if err != nil {
		return nil, fmt.Errorf("failed to decode capture image: %w", err)
	}

	return img, nil
}
