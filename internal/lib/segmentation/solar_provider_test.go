package segmentation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roofsight/roofsight/server/internal/clients/solar"
	"github.com/roofsight/roofsight/server/internal/lib/geo"
)

type fakeInsightsClient struct {
	response *solar.BuildingInsightsResponse
	err      error
}

func (f *fakeInsightsClient) BuildingInsights(ctx context.Context, lat, lng float64) (*solar.BuildingInsightsResponse, error) {
	return f.response, f.err
}

func segmentStat(lat, lng, area, pitch, azimuth float64) solar.RoofSegmentStats {
	return solar.RoofSegmentStats{
		PitchDegrees:   pitch,
		AzimuthDegrees: azimuth,
		Center:         solar.LatLng{Latitude: lat, Longitude: lng},
		Stats:          solar.SizeAndSunshine{AreaMeters2: area},
		BoundingBox: solar.LatLngBox{
			SW: solar.LatLng{Latitude: lat - 0.00005, Longitude: lng - 0.00005},
			NE: solar.LatLng{Latitude: lat + 0.00005, Longitude: lng + 0.00005},
		},
	}
}

func TestSolarProvider_Success(t *testing.T) {
	client := &fakeInsightsClient{
		response: &solar.BuildingInsightsResponse{
			SolarPotential: solar.SolarPotential{
				RoofSegmentStats: []solar.RoofSegmentStats{
					segmentStat(38.1326, -120.4607, 40.0, 22, 180),
					segmentStat(38.1328, -120.4605, 25.5, 22, 0),
					segmentStat(38.1327, -120.4604, 10.0, 10, 90),
				},
			},
		},
	}

	provider := NewSolarProvider(client, geo.NewGeoUtils())
	result := provider.Segment(context.Background(), 38.1327, -120.4606)

	require.False(t, result.Failed(), "unexpected error: %s", result.Error)
	assert.Equal(t, MethodSolar, result.Method)
	require.Len(t, result.Segments, 3)
	assert.InDelta(t, 75.5, result.TotalAreaM2, 1e-9)
	assert.Equal(t, ConfidenceSolar, result.Confidence)
	assert.False(t, result.Simulated)

	// Per-segment metadata carried through
	assert.Equal(t, 22.0, result.Segments[0].PitchDegrees)
	assert.Equal(t, 180.0, result.Segments[0].AzimuthDegrees)
	assert.Equal(t, 38.1326, result.Segments[0].Center.Latitude)

	// Outline is the hull of segment centers
	assert.Equal(t, 3, len(result.Outline))
}

func TestSolarProvider_ErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		expected string
	}{
		{"missing key", solar.ErrAPIKeyNotConfigured, ErrorAPIKeyNotConfigured},
		{"invalid key", solar.ErrAPIKeyInvalid, ErrorAPIKeyInvalid},
		{"forbidden key", solar.ErrAPIKeyForbidden, ErrorAPIKeyForbidden},
		{"no coverage", solar.ErrNoBuildingData, ErrorNoBuildingData},
		{"bad request", solar.ErrBadRequest, ErrorBadRequest},
		{"server error", &solar.HTTPError{StatusCode: 503}, "HTTP_ERROR_503"},
		{"canceled", context.Canceled, ErrorCanceled},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			provider := NewSolarProvider(&fakeInsightsClient{err: tc.err}, geo.NewGeoUtils())

			result := provider.Segment(context.Background(), 38.1327, -120.4606)
			require.True(t, result.Failed())
			assert.Equal(t, tc.expected, result.Error)
			assert.Empty(t, result.Segments)
		})
	}
}

func TestSolarProvider_EmptySegments(t *testing.T) {
	client := &fakeInsightsClient{response: &solar.BuildingInsightsResponse{}}
	provider := NewSolarProvider(client, geo.NewGeoUtils())

	result := provider.Segment(context.Background(), 38.1327, -120.4606)
	require.True(t, result.Failed())
	assert.Equal(t, ErrorNoBuildingData, result.Error)
}
