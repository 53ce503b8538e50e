package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrAPITokenNotConfigured indicates the Replicate token is missing
	ErrAPITokenNotConfigured = errors.New("replicate API token not configured")
	// ErrPredictionFailed indicates the model run ended in a failure state
	ErrPredictionFailed = errors.New("replicate prediction failed")
	// ErrPollTimeout indicates the prediction did not finish within the
	// polling budget
	ErrPollTimeout = errors.New("replicate prediction timed out")
)

const (
	maxPollAttempts = 30
	pollInterval    = time.Second
)

// Client provides access to the Replicate predictions API
type Client struct {
	apiToken   string
	httpClient *http.Client
	baseURL    string
}

// Prediction is a model run and its (possibly partial) output
type Prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error"`
}

// NewClient creates a new Replicate API client
func NewClient(apiToken string) *Client {
	return &Client{
		apiToken: apiToken,
		baseURL:  "https://api.replicate.com",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CreatePrediction starts a model run for the given version and input
func (c *Client) CreatePrediction(ctx context.Context, version string, input map[string]interface{}) (*Prediction, error) {
	if c.apiToken == "" {
		return nil, ErrAPITokenNotConfigured
	}

	body, err := json.Marshal(map[string]interface{}{
		"version": version,
		"input":   input,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/predictions", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

// GetPrediction fetches the current state of a model run
func (c *Client) GetPrediction(ctx context.Context, id string) (*Prediction, error) {
	if c.apiToken == "" {
		return nil, ErrAPITokenNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/v1/predictions/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiToken)

	return c.do(req)
}

// WaitForPrediction polls a model run until it succeeds, fails, or the
// polling budget is exhausted. Respects context cancellation between polls.
func (c *Client) WaitForPrediction(ctx context.Context, id string) (*Prediction, error) {
	for attempt := 0; attempt < maxPollAttempts; attempt++ {
		prediction, err := c.GetPrediction(ctx, id)
		if err != nil {
			return nil, err
		}

		switch prediction.Status {
		case "succeeded":
			return prediction, nil
		case "failed", "canceled":
			if prediction.Error != "" {
				return nil, fmt.Errorf("%w: %s", ErrPredictionFailed, prediction.Error)
			}
			return nil, ErrPredictionFailed
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}

	return nil, ErrPollTimeout
}

func (c *Client) do(req *http.Request) (*Prediction, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, errors.New("replicate API token rejected")
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("replicate API error %d", resp.StatusCode)
	}

	var prediction Prediction
	if err := json.NewDecoder(resp.Body).Decode(&prediction); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &prediction, nil
}
