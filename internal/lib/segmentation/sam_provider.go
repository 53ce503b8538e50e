package segmentation

import (
	"context"
	"encoding/json"
	"errors"
	"math"

	"github.com/roofsight/roofsight/server/internal/clients/replicate"
	"github.com/roofsight/roofsight/server/internal/clients/staticmap"
	"github.com/roofsight/roofsight/server/internal/lib/geo"
)

// PredictionClient is the Replicate surface the provider depends on
type PredictionClient interface {
	CreatePrediction(ctx context.Context, version string, input map[string]interface{}) (*replicate.Prediction, error)
	WaitForPrediction(ctx context.Context, id string) (*replicate.Prediction, error)
}

// SAMProvider runs a Segment Anything style model against a satellite capture
// of the roof. When no model credentials are configured, it degrades to a
// clearly-labeled simulated footprint so the rest of the pipeline stays
// exercisable.
type SAMProvider struct {
	predictions  PredictionClient
	captures     CaptureSource
	geoUtils     geo.GeoUtils
	modelVersion string
	opts         staticmap.CaptureOptions
}

// samOutput is the model output shape: one pixel-space polygon per mask,
// with an optional quality score per mask
type samOutput struct {
	Masks  [][][2]float64 `json:"masks"`
	Scores []float64      `json:"scores"`
}

// NewSAMProvider creates the model-backed provider. predictions may be nil
// when no token is configured; Segment then produces simulated results.
func NewSAMProvider(predictions PredictionClient, captures CaptureSource, geoUtils geo.GeoUtils, modelVersion string, opts staticmap.CaptureOptions) *SAMProvider {
	return &SAMProvider{
		predictions:  predictions,
		captures:     captures,
		geoUtils:     geoUtils,
		modelVersion: modelVersion,
		opts:         opts,
	}
}

// Method identifies this provider
func (p *SAMProvider) Method() Method {
	return MethodSAM
}

// Segment runs the model and reprojects the winning mask outline into a
// geographic polygon. The model is prompted with the tile center, and only
// the mask whose centroid lands nearest that center is kept; a 640 px tile
// covers neighboring roofs too, and those must not leak into the total. All
// failures after a prediction was attempted surface as result errors, not
// simulated output.
func (p *SAMProvider) Segment(ctx context.Context, lat, lng float64) *Result {
	if p.predictions == nil || p.modelVersion == "" {
		return p.simulated(lat, lng)
	}

	center := float64(p.opts.ImageSize) / 2
	prediction, err := p.predictions.CreatePrediction(ctx, p.modelVersion, map[string]interface{}{
		"image":            p.captures.CaptureURL(lat, lng, p.opts),
		"point_coords":     [][]float64{{center, center}},
		"point_labels":     []int{1},
		"multimask_output": false,
	})
	if err != nil {
		if errors.Is(err, replicate.ErrAPITokenNotConfigured) {
			return p.simulated(lat, lng)
		}
		return failure(MethodSAM, mapReplicateError(err), err.Error())
	}

	prediction, err = p.predictions.WaitForPrediction(ctx, prediction.ID)
	if err != nil {
		return failure(MethodSAM, mapReplicateError(err), err.Error())
	}

	var output samOutput
	if err := json.Unmarshal(prediction.Output, &output); err != nil {
		return failure(MethodSAM, ErrorBadRequest, "unexpected model output: "+err.Error())
	}
	if len(output.Masks) == 0 {
		return failure(MethodSAM, ErrorNoRoofDetected, "model returned no masks")
	}

	winner := p.closestMask(output, center)
	if winner < 0 {
		return failure(MethodSAM, ErrorNoRoofDetected, "model masks were all degenerate")
	}

	mask := output.Masks[winner]
	pixels := make([]geo.PixelPoint, len(mask))
	for i, px := range mask {
		pixels[i] = geo.PixelPoint{X: px[0], Y: px[1]}
	}
	polygon := p.geoUtils.PixelPolygonToLatLng(pixels, lat, lng, p.opts.Zoom, p.opts.ImageSize)

	segment := RoofSegment{
		Polygon: polygon,
		Center:  polygonCentroid(polygon),
		AreaM2:  p.geoUtils.PolygonArea(polygon),
	}

	confidence := ConfidenceSAM
	if winner < len(output.Scores) && output.Scores[winner] > 0 {
		confidence = output.Scores[winner]
	}

	return &Result{
		Method:      MethodSAM,
		Segments:    []RoofSegment{segment},
		Outline:     polygon,
		TotalAreaM2: segment.AreaM2,
		Confidence:  confidence,
	}
}

// closestMask picks the mask whose pixel centroid is nearest the prompt
// point. Returns -1 when no mask has a usable outline.
func (p *SAMProvider) closestMask(output samOutput, center float64) int {
	best := -1
	bestDist := math.Inf(1)
	for i, mask := range output.Masks {
		if len(mask) < 3 {
			continue
		}
		var cx, cy float64
		for _, px := range mask {
			cx += px[0]
			cy += px[1]
		}
		n := float64(len(mask))
		dx := cx/n - center
		dy := cy/n - center
		if dist := dx*dx + dy*dy; dist < bestDist {
			bestDist = dist
			best = i
		}
	}
	return best
}

// simulated produces a placeholder footprint centered on the request point.
// The longitude span is stretched slightly so the rectangle reads as a
// building rather than a perfect square.
func (p *SAMProvider) simulated(lat, lng float64) *Result {
	const latSize = 0.0001
	const lngSize = latSize * 1.2

	polygon := geo.Polygon{
		{Latitude: lat - latSize/2, Longitude: lng - lngSize/2},
		{Latitude: lat - latSize/2, Longitude: lng + lngSize/2},
		{Latitude: lat + latSize/2, Longitude: lng + lngSize/2},
		{Latitude: lat + latSize/2, Longitude: lng - lngSize/2},
	}

	segment := RoofSegment{
		Polygon: polygon,
		Center:  geo.Point{Latitude: lat, Longitude: lng},
		AreaM2:  p.geoUtils.PolygonArea(polygon),
	}

	return &Result{
		Method:      MethodSAM,
		Segments:    []RoofSegment{segment},
		Outline:     polygon,
		TotalAreaM2: segment.AreaM2,
		Confidence:  ConfidenceSAMSimulated,
		Simulated:   true,
		Note:        "simulated segmentation: no model API token configured",
	}
}

// mapReplicateError translates prediction failures into result error codes
func mapReplicateError(err error) string {
	switch {
	case errors.Is(err, replicate.ErrPredictionFailed):
		return ErrorNoRoofDetected
	case errors.Is(err, replicate.ErrPollTimeout):
		return ErrorNetworkError
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorCanceled
	default:
		return ErrorNetworkError
	}
}

// polygonCentroid is the vertex average, adequate for roof-scale polygons
func polygonCentroid(polygon geo.Polygon) geo.Point {
	if len(polygon) == 0 {
		return geo.Point{}
	}
	var lat, lng float64
	for _, p := range polygon {
		lat += p.Latitude
		lng += p.Longitude
	}
	n := float64(len(polygon))
	return geo.Point{Latitude: lat / n, Longitude: lng / n}
}
