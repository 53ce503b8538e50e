package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

var (
	// ErrAPIKeyNotConfigured indicates the geocoding key is missing
	ErrAPIKeyNotConfigured = errors.New("geocoding API key not configured")
	// ErrNoResults indicates the address could not be resolved
	ErrNoResults = errors.New("no geocoding results for address")
)

// Client provides access to the Google Geocoding API
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
}

// Location is a resolved address with its coordinates
type Location struct {
	FormattedAddress string  `json:"formattedAddress"`
	Latitude         float64 `json:"lat"`
	Longitude        float64 `json:"lng"`
}

// NewClient creates a new Geocoding API client
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: "https://maps.googleapis.com",
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// geocodeResponse is the subset of the Geocoding API response we consume
type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Geocode resolves a street address to coordinates. Returns ErrNoResults when
// the API recognizes the request but finds nothing.
func (c *Client) Geocode(ctx context.Context, address string) (*Location, error) {
	if c.apiKey == "" {
		return nil, ErrAPIKeyNotConfigured
	}
	if address == "" {
		return nil, errors.New("address is empty")
	}

	params := url.Values{}
	params.Set("address", address)
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/maps/api/geocode/json?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("geocoding API error %d", resp.StatusCode)
	}

	var response geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	// The Geocoding API reports failures in-band via the status field
	switch response.Status {
	case "OK":
	case "ZERO_RESULTS":
		return nil, ErrNoResults
	default:
		return nil, fmt.Errorf("geocoding failed with status %s", response.Status)
	}

	if len(response.Results) == 0 {
		return nil, ErrNoResults
	}

	result := response.Results[0]
	return &Location{
		FormattedAddress: result.FormattedAddress,
		Latitude:         result.Geometry.Location.Lat,
		Longitude:        result.Geometry.Location.Lng,
	}, nil
}
