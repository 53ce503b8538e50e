package segmentation

import (
	"context"
	"errors"
	"math"

	"github.com/roofsight/roofsight/server/internal/clients/roboflow"
	"github.com/roofsight/roofsight/server/internal/clients/staticmap"
	"github.com/roofsight/roofsight/server/internal/lib/geo"
)

// DetectionClient is the Roboflow surface the provider depends on
type DetectionClient interface {
	Detect(ctx context.Context, imageBase64 string) (*roboflow.DetectionResponse, error)
}

// RoboflowProvider runs a hosted roof detection model against a satellite
// capture and keeps the detection closest to the capture center, on the
// assumption that the requested roof is the one being pointed at.
type RoboflowProvider struct {
	detections DetectionClient
	captures   CaptureSource
	geoUtils   geo.GeoUtils
	opts       staticmap.CaptureOptions
}

// NewRoboflowProvider creates the detection-backed provider. detections may
// be nil when no key is configured; Segment then produces simulated results.
func NewRoboflowProvider(detections DetectionClient, captures CaptureSource, geoUtils geo.GeoUtils, opts staticmap.CaptureOptions) *RoboflowProvider {
	return &RoboflowProvider{
		detections: detections,
		captures:   captures,
		geoUtils:   geoUtils,
		opts:       opts,
	}
}

// Method identifies this provider
func (p *RoboflowProvider) Method() Method {
	return MethodRoboflow
}

// Segment fetches a capture, runs detection and reprojects the winning
// prediction into a geographic polygon.
func (p *RoboflowProvider) Segment(ctx context.Context, lat, lng float64) *Result {
	if p.detections == nil {
		return p.simulated(lat, lng)
	}

	capture, err := p.captures.FetchCapture(ctx, lat, lng, p.opts)
	if err != nil {
		if errors.Is(err, staticmap.ErrAPIKeyNotConfigured) {
			return p.simulated(lat, lng)
		}
		return failure(MethodRoboflow, ErrorNetworkError, err.Error())
	}

	payload, err := encodePNGBase64(capture)
	if err != nil {
		return failure(MethodRoboflow, ErrorBadRequest, err.Error())
	}

	response, err := p.detections.Detect(ctx, payload)
	if err != nil {
		if errors.Is(err, roboflow.ErrAPIKeyNotConfigured) {
			return p.simulated(lat, lng)
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return failure(MethodRoboflow, ErrorCanceled, err.Error())
		}
		return failure(MethodRoboflow, ErrorNetworkError, err.Error())
	}

	prediction := p.closestToCenter(response.Predictions)
	if prediction == nil {
		return failure(MethodRoboflow, ErrorNoRoofDetected, "no roof detections in capture")
	}

	polygon := p.predictionPolygon(*prediction, lat, lng)
	if len(polygon) < 3 {
		return failure(MethodRoboflow, ErrorNoRoofDetected, "winning detection had no usable outline")
	}

	segment := RoofSegment{
		Polygon: polygon,
		Center:  polygonCentroid(polygon),
		AreaM2:  p.geoUtils.PolygonArea(polygon),
	}

	confidence := prediction.Confidence
	if confidence <= 0 {
		confidence = ConfidenceRoboflow
	}

	return &Result{
		Method:      MethodRoboflow,
		Segments:    []RoofSegment{segment},
		Outline:     polygon,
		TotalAreaM2: segment.AreaM2,
		Confidence:  confidence,
	}
}

// closestToCenter picks the prediction whose center is nearest the capture
// center in pixel space
func (p *RoboflowProvider) closestToCenter(predictions []roboflow.Prediction) *roboflow.Prediction {
	if len(predictions) == 0 {
		return nil
	}

	center := float64(p.opts.ImageSize) / 2
	best := 0
	bestDist := math.Inf(1)
	for i, pred := range predictions {
		dx := pred.X - center
		dy := pred.Y - center
		dist := dx*dx + dy*dy
		if dist < bestDist {
			bestDist = dist
			best = i
		}
	}

	return &predictions[best]
}

// predictionPolygon reprojects a prediction into geographic space, preferring
// the instance-segmentation outline over the bounding box
func (p *RoboflowProvider) predictionPolygon(pred roboflow.Prediction, lat, lng float64) geo.Polygon {
	if len(pred.Points) >= 3 {
		pixels := make([]geo.PixelPoint, len(pred.Points))
		for i, pt := range pred.Points {
			pixels[i] = geo.PixelPoint{X: pt.X, Y: pt.Y}
		}
		return p.geoUtils.PixelPolygonToLatLng(pixels, lat, lng, p.opts.Zoom, p.opts.ImageSize)
	}

	if pred.Width <= 0 || pred.Height <= 0 {
		return nil
	}

	// Box-only models: reproject the four corners
	corners := []geo.PixelPoint{
		{X: pred.X - pred.Width/2, Y: pred.Y - pred.Height/2},
		{X: pred.X + pred.Width/2, Y: pred.Y - pred.Height/2},
		{X: pred.X + pred.Width/2, Y: pred.Y + pred.Height/2},
		{X: pred.X - pred.Width/2, Y: pred.Y + pred.Height/2},
	}
	return p.geoUtils.PixelPolygonToLatLng(corners, lat, lng, p.opts.Zoom, p.opts.ImageSize)
}

// simulated produces a placeholder quad when no detection key is configured
func (p *RoboflowProvider) simulated(lat, lng float64) *Result {
	const size = 0.00012

	polygon := geo.Polygon{
		{Latitude: lat - size/2, Longitude: lng - size/2},
		{Latitude: lat - size/2, Longitude: lng + size/2},
		{Latitude: lat + size/2, Longitude: lng + size/2},
		{Latitude: lat + size/2, Longitude: lng - size/2},
	}

	segment := RoofSegment{
		Polygon: polygon,
		Center:  geo.Point{Latitude: lat, Longitude: lng},
		AreaM2:  p.geoUtils.PolygonArea(polygon),
	}

	return &Result{
		Method:      MethodRoboflow,
		Segments:    []RoofSegment{segment},
		Outline:     polygon,
		TotalAreaM2: segment.AreaM2,
		Confidence:  ConfidenceRoboflowSimulated,
		Simulated:   true,
		Note:        "simulated segmentation: no detection API key configured",
	}
}
