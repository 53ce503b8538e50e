package segmentation

import (
	"context"

	"github.com/roofsight/roofsight/server/internal/lib/geo"
)

// Method identifies which segmentation backend produced a result
type Method string

const (
	MethodSolar    Method = "solar"
	MethodSAM      Method = "sam"
	MethodRoboflow Method = "roboflow"
	MethodOpenCV   Method = "opencv"
	MethodManual   Method = "manual"
)

// Error codes reported in Result.Error. Providers never return Go errors to
// callers; every failure mode is folded into the result so the coordinator
// has a single path to handle.
const (
	ErrorAPIKeyNotConfigured = "API_KEY_NOT_CONFIGURED"
	ErrorAPIKeyInvalid       = "API_KEY_INVALID"
	ErrorAPIKeyForbidden     = "API_KEY_FORBIDDEN"
	ErrorNoBuildingData      = "NO_BUILDING_DATA"
	ErrorNetworkError        = "NETWORK_ERROR"
	ErrorBadRequest          = "BAD_REQUEST"
	ErrorNoRoofDetected      = "NO_ROOF_DETECTED"
	ErrorCanceled            = "CANCELED"
)

// Baseline confidences per method. Live results use the first column;
// simulated fallbacks report lower confidence.
const (
	ConfidenceSolar             = 0.85
	ConfidenceSAM               = 0.9
	ConfidenceSAMSimulated      = 0.75
	ConfidenceRoboflow          = 0.8
	ConfidenceRoboflowSimulated = 0.72
	ConfidenceOpenCV            = 0.7
	ConfidenceManual            = 1.0
)

// RoofSegment is one planar roof surface identified by a provider. Pitch,
// azimuth and height are only populated by providers that know them.
type RoofSegment struct {
	Polygon        geo.Polygon `json:"polygon"`
	Center         geo.Point   `json:"center"`
	AreaM2         float64     `json:"areaM2"`
	PitchDegrees   float64     `json:"pitchDegrees,omitempty"`
	AzimuthDegrees float64     `json:"azimuthDegrees,omitempty"`
	HeightMeters   float64     `json:"heightMeters,omitempty"`
}

// Result is the complete outcome of one segmentation run. Exactly one of
// Segments or Error is meaningful: a failed run carries an error code and no
// segments. Simulated results must explain themselves in Note.
type Result struct {
	Method      Method           `json:"method"`
	Segments    []RoofSegment    `json:"segments,omitempty"`
	Outline     geo.Polygon      `json:"outline,omitempty"`
	Bounds      *geo.BoundingBox `json:"bounds,omitempty"`
	TotalAreaM2 float64          `json:"totalAreaM2"`
	Confidence  float64          `json:"confidence"`
	Simulated   bool             `json:"simulated"`
	Note        string           `json:"note,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// Failed reports whether the run produced no usable segments
func (r *Result) Failed() bool {
	return r.Error != ""
}

// Provider runs roof segmentation for a location. Implementations must not
// panic or leak errors: any failure is reported through Result.Error.
type Provider interface {
	Method() Method
	Segment(ctx context.Context, lat, lng float64) *Result
}

// failure builds an error-carrying result for the given method
func failure(method Method, code, note string) *Result {
	return &Result{
		Method: method,
		Error:  code,
		Note:   note,
	}
}

// sumSegmentAreas totals the per-segment areas of a result
func sumSegmentAreas(segments []RoofSegment) float64 {
	total := 0.0
	for _, s := range segments {
		total += s.AreaM2
	}
	return total
}
