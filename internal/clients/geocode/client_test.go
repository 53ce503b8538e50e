package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeocode_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/geocode/json", r.URL.Path)
		assert.Equal(t, "142 Main St, Murphys, CA", r.URL.Query().Get("address"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status": "OK",
			"results": [{
				"formatted_address": "142 Main St, Murphys, CA 95247, USA",
				"geometry": {"location": {"lat": 38.1327, "lng": -120.4606}}
			}]
		}`))
	}))
	defer server.Close()

	client := NewClient("test-key")
	client.baseURL = server.URL

	location, err := client.Geocode(context.Background(), "142 Main St, Murphys, CA")
	require.NoError(t, err)
	assert.Equal(t, 38.1327, location.Latitude)
	assert.Equal(t, -120.4606, location.Longitude)
	assert.Equal(t, "142 Main St, Murphys, CA 95247, USA", location.FormattedAddress)
}

func TestGeocode_ZeroResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "ZERO_RESULTS", "results": []}`))
	}))
	defer server.Close()

	client := NewClient("test-key")
	client.baseURL = server.URL

	_, err := client.Geocode(context.Background(), "nowhere at all")
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestGeocode_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "REQUEST_DENIED", "results": []}`))
	}))
	defer server.Close()

	client := NewClient("test-key")
	client.baseURL = server.URL

	_, err := client.Geocode(context.Background(), "142 Main St")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REQUEST_DENIED")
}

func TestGeocode_MissingKeyAndAddress(t *testing.T) {
	client := NewClient("")
	_, err := client.Geocode(context.Background(), "142 Main St")
	assert.ErrorIs(t, err, ErrAPIKeyNotConfigured)

	client = NewClient("test-key")
	_, err = client.Geocode(context.Background(), "")
	assert.Error(t, err)
}
