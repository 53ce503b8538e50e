package roboflow

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/roof-segmentation/3", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))

		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "aGVsbG8=", string(body))

		w.Write([]byte(`{
			"predictions": [{
				"x": 320, "y": 310, "width": 180, "height": 140,
				"confidence": 0.87, "class": "roof",
				"points": [{"x": 230, "y": 240}, {"x": 410, "y": 240}, {"x": 410, "y": 380}, {"x": 230, "y": 380}]
			}],
			"image": {"width": 640, "height": 640}
		}`))
	}))
	defer server.Close()

	client := NewClient("test-key", "roof-segmentation/3")
	client.baseURL = server.URL

	response, err := client.Detect(context.Background(), "aGVsbG8=")
	require.NoError(t, err)
	require.Len(t, response.Predictions, 1)
	assert.Equal(t, 0.87, response.Predictions[0].Confidence)
	assert.Len(t, response.Predictions[0].Points, 4)
	assert.Equal(t, 640, response.Image.Width)
}

func TestDetect_KeyRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := NewClient("test-key", "roof-segmentation/3")
	client.baseURL = server.URL

	_, err := client.Detect(context.Background(), "aGVsbG8=")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected")
}

func TestDetect_MissingInputs(t *testing.T) {
	client := NewClient("", "roof-segmentation/3")
	_, err := client.Detect(context.Background(), "aGVsbG8=")
	assert.ErrorIs(t, err, ErrAPIKeyNotConfigured)

	client = NewClient("test-key", "roof-segmentation/3")
	_, err = client.Detect(context.Background(), "")
	assert.Error(t, err)
}
