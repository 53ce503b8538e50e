package assess

import (
	"time"

	"github.com/roofsight/roofsight/server/internal/lib/geo"
)

// Input is everything a summary is generated from: the segmentation outcome
// plus the panel estimate derived from it
type Input struct {
	Method          string        `json:"method"`
	Location        geo.Point     `json:"location"`
	Address         string        `json:"address,omitempty"`
	TotalAreaM2     float64       `json:"totalAreaM2"`
	IncludedAreaM2  float64       `json:"includedAreaM2"`
	SegmentCount    int           `json:"segmentCount"`
	ExcludedCount   int           `json:"excludedCount"`
	Confidence      float64       `json:"confidence"`
	Simulated       bool          `json:"simulated"`
	SunshineHoursYr float64       `json:"sunshineHoursPerYear,omitempty"`
	Panels          PanelEstimate `json:"panels"`
}

// PanelEstimate is the panel capacity derived from usable roof area
type PanelEstimate struct {
	PanelCount   int     `json:"panelCount"`
	CapacityKw   float64 `json:"capacityKw"`
	PanelAreaM2  float64 `json:"panelAreaM2"`
	UsableAreaM2 float64 `json:"usableAreaM2"`
}

// Summary is the generated roof assessment
type Summary struct {
	Headline       string    `json:"headline"`
	Narrative      string    `json:"narrative"`
	Recommendation string    `json:"recommendation"` // "excellent" | "good" | "fair" | "poor"
	GeneratedBy    string    `json:"generatedBy"`    // "model" | "template"
	ProcessedAt    time.Time `json:"processedAt"`
}

// validRecommendations are the only values the recommendation field may take
var validRecommendations = map[string]bool{
	"excellent": true,
	"good":      true,
	"fair":      true,
	"poor":      true,
}
