package assess

import (
	"crypto/sha256"
	"fmt"
)

// ContentHasher keys assessments by what they describe, so the same roof
// segmented the same way reuses its cached summary
type ContentHasher struct{}

// NewContentHasher creates a content hasher
func NewContentHasher() *ContentHasher {
	return &ContentHasher{}
}

// HashInput builds a stable hash over the fields that affect the summary.
// Coordinates are rounded to ~1m so capture jitter doesn't bust the cache,
// and areas to 0.1 m² for the same reason.
func (h *ContentHasher) HashInput(input Input) string {
	signature := fmt.Sprintf("%s|%.5f,%.5f|%.1f|%.1f|%d|%d|%t|%d",
		input.Method,
		input.Location.Latitude,
		input.Location.Longitude,
		input.TotalAreaM2,
		input.IncludedAreaM2,
		input.SegmentCount,
		input.ExcludedCount,
		input.Simulated,
		input.Panels.PanelCount,
	)

	hash := sha256.Sum256([]byte(signature))
	return fmt.Sprintf("%x", hash)
}
