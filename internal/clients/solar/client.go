package solar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Sentinel errors for the failure modes callers branch on. Everything else
// surfaces as a wrapped HTTP error.
var (
	ErrAPIKeyNotConfigured = errors.New("solar API key not configured")
	ErrAPIKeyInvalid       = errors.New("solar API key invalid")
	ErrAPIKeyForbidden     = errors.New("solar API key lacks access to the Solar API")
	ErrNoBuildingData      = errors.New("no building data available for this location")
	ErrBadRequest          = errors.New("invalid solar API request")
)

// Client provides access to the Google Solar API
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new Solar API client
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: "https://solar.googleapis.com",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// BuildingInsights fetches building insights for the building closest to the
// given point. Returns ErrNoBuildingData when the API has no coverage there.
func (c *Client) BuildingInsights(ctx context.Context, lat, lng float64) (*BuildingInsightsResponse, error) {
	if c.apiKey == "" {
		return nil, ErrAPIKeyNotConfigured
	}

	params := url.Values{}
	params.Set("location.latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("location.longitude", strconv.FormatFloat(lng, 'f', -1, 64))
	params.Set("requiredQuality", "LOW")
	params.Set("key", c.apiKey)

	var response BuildingInsightsResponse
	if err := c.getJSON(ctx, "/v1/buildingInsights:findClosest", params, &response); err != nil {
		return nil, err
	}

	return &response, nil
}

// DataLayers fetches raster layer URLs (DSM, RGB, mask, flux, hourly shade)
// covering a circle around the given point.
func (c *Client) DataLayers(ctx context.Context, lat, lng, radiusMeters float64) (*DataLayersResponse, error) {
	if c.apiKey == "" {
		return nil, ErrAPIKeyNotConfigured
	}

	params := url.Values{}
	params.Set("location.latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("location.longitude", strconv.FormatFloat(lng, 'f', -1, 64))
	params.Set("radiusMeters", strconv.FormatFloat(radiusMeters, 'f', -1, 64))
	params.Set("view", "FULL_LAYERS")
	params.Set("requiredQuality", "LOW")
	params.Set("key", c.apiKey)

	var response DataLayersResponse
	if err := c.getJSON(ctx, "/v1/dataLayers:get", params, &response); err != nil {
		return nil, err
	}

	return &response, nil
}

// FetchLayer downloads a GeoTIFF returned by DataLayers. Layer URLs require
// the API key appended as a query parameter.
func (c *Client) FetchLayer(ctx context.Context, layerURL string) ([]byte, error) {
	if c.apiKey == "" {
		return nil, ErrAPIKeyNotConfigured
	}

	u, err := url.Parse(layerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid layer URL: %w", err)
	}
	q := u.Query()
	q.Set("key", c.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, statusError(resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read layer data: %w", err)
	}

	return data, nil
}

// getJSON executes a GET request against the Solar API and decodes the JSON
// response, mapping error status codes to sentinel errors.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return statusError(resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// HTTPError carries a status code that has no sentinel mapping
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("solar API error %d", e.StatusCode)
}

// statusError maps Solar API status codes to sentinel errors
func statusError(code int) error {
	switch code {
	case http.StatusUnauthorized:
		return ErrAPIKeyInvalid
	case http.StatusForbidden:
		return ErrAPIKeyForbidden
	case http.StatusNotFound:
		return ErrNoBuildingData
	case http.StatusBadRequest:
		return ErrBadRequest
	default:
		return &HTTPError{StatusCode: code}
	}
}
