package roboflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrAPIKeyNotConfigured indicates the Roboflow key is missing
var ErrAPIKeyNotConfigured = errors.New("roboflow API key not configured")

// Client provides access to a hosted Roboflow detection model
type Client struct {
	apiKey     string
	modelID    string
	httpClient *http.Client
	baseURL    string
}

// PredictionPoint is one vertex of a detected polygon outline
type PredictionPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Prediction is a single detected object. Instance segmentation models
// populate Points; box models only provide the center/size fields.
type Prediction struct {
	X          float64           `json:"x"`
	Y          float64           `json:"y"`
	Width      float64           `json:"width"`
	Height     float64           `json:"height"`
	Confidence float64           `json:"confidence"`
	Class      string            `json:"class"`
	Points     []PredictionPoint `json:"points"`
}

// DetectionResponse is the model inference result
type DetectionResponse struct {
	Predictions []Prediction `json:"predictions"`
	Image       struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"image"`
}

// NewClient creates a new Roboflow client for the given model
// (e.g. "roof-segmentation/3")
func NewClient(apiKey, modelID string) *Client {
	return &Client{
		apiKey:  apiKey,
		modelID: modelID,
		baseURL: "https://detect.roboflow.com",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Detect runs inference on a base64-encoded image. The hosted API accepts the
// image as a form-encoded body.
func (c *Client) Detect(ctx context.Context, imageBase64 string) (*DetectionResponse, error) {
	if c.apiKey == "" {
		return nil, ErrAPIKeyNotConfigured
	}
	if imageBase64 == "" {
		return nil, errors.New("image payload is empty")
	}

	params := url.Values{}
	params.Set("api_key", c.apiKey)

	endpoint := c.baseURL + "/" + c.modelID + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(imageBase64))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, errors.New("roboflow API key rejected")
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("roboflow API error %d", resp.StatusCode)
	}

	var response DetectionResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &response, nil
}
