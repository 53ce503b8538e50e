package segmentation

import (
	"context"
	"errors"
	"fmt"

	"github.com/roofsight/roofsight/server/internal/clients/solar"
	"github.com/roofsight/roofsight/server/internal/lib/geo"
)

// InsightsClient is the Solar API surface the provider depends on
type InsightsClient interface {
	BuildingInsights(ctx context.Context, lat, lng float64) (*solar.BuildingInsightsResponse, error)
}

// SolarProvider derives roof geometry from Solar API building insights. This
// is the reference provider: it reports per-segment pitch, azimuth and
// survey-grade areas straight from the API.
type SolarProvider struct {
	client   InsightsClient
	geoUtils geo.GeoUtils
}

// NewSolarProvider creates the building-insights backed provider
func NewSolarProvider(client InsightsClient, geoUtils geo.GeoUtils) *SolarProvider {
	return &SolarProvider{
		client:   client,
		geoUtils: geoUtils,
	}
}

// Method identifies this provider
func (p *SolarProvider) Method() Method {
	return MethodSolar
}

// Segment fetches building insights and converts each roof segment into our
// representation. The overall outline is the convex hull of segment centers.
func (p *SolarProvider) Segment(ctx context.Context, lat, lng float64) *Result {
	insights, err := p.client.BuildingInsights(ctx, lat, lng)
	if err != nil {
		return failure(MethodSolar, mapSolarError(err), err.Error())
	}

	stats := insights.SolarPotential.RoofSegmentStats
	if len(stats) == 0 {
		return failure(MethodSolar, ErrorNoBuildingData, "building insights contained no roof segments")
	}

	segments := make([]RoofSegment, 0, len(stats))
	centers := make([]geo.Point, 0, len(stats))
	for _, s := range stats {
		center := geo.Point{Latitude: s.Center.Latitude, Longitude: s.Center.Longitude}
		centers = append(centers, center)
		segments = append(segments, RoofSegment{
			Polygon:        boxPolygon(s.BoundingBox),
			Center:         center,
			AreaM2:         s.Stats.AreaMeters2,
			PitchDegrees:   s.PitchDegrees,
			AzimuthDegrees: s.AzimuthDegrees,
			HeightMeters:   s.PlaneHeightAtCenterMeters,
		})
	}

	return &Result{
		Method:      MethodSolar,
		Segments:    segments,
		Outline:     p.geoUtils.ConvexHull(centers),
		TotalAreaM2: sumSegmentAreas(segments),
		Confidence:  ConfidenceSolar,
	}
}

// boxPolygon converts a Solar API bounding box into a closed quad
func boxPolygon(box solar.LatLngBox) geo.Polygon {
	return geo.Polygon{
		{Latitude: box.SW.Latitude, Longitude: box.SW.Longitude},
		{Latitude: box.SW.Latitude, Longitude: box.NE.Longitude},
		{Latitude: box.NE.Latitude, Longitude: box.NE.Longitude},
		{Latitude: box.NE.Latitude, Longitude: box.SW.Longitude},
	}
}

// mapSolarError translates client sentinel errors into result error codes
func mapSolarError(err error) string {
	switch {
	case errors.Is(err, solar.ErrAPIKeyNotConfigured):
		return ErrorAPIKeyNotConfigured
	case errors.Is(err, solar.ErrAPIKeyInvalid):
		return ErrorAPIKeyInvalid
	case errors.Is(err, solar.ErrAPIKeyForbidden):
		return ErrorAPIKeyForbidden
	case errors.Is(err, solar.ErrNoBuildingData):
		return ErrorNoBuildingData
	case errors.Is(err, solar.ErrBadRequest):
		return ErrorBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorCanceled
	default:
		var httpErr *solar.HTTPError
		if errors.As(err, &httpErr) {
			return fmt.Sprintf("HTTP_ERROR_%d", httpErr.StatusCode)
		}
		return ErrorNetworkError
	}
}
