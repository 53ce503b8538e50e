package main

import (
	"fmt"
	"log"

	"github.com/roofsight/roofsight/server/internal/lib/assess"
	"github.com/roofsight/roofsight/server/internal/lib/geo"
)

func main() {
	hasher := assess.NewContentHasher()

	input := assess.Input{
		Method:         "solar",
		Location:       geo.Point{Latitude: 38.1327, Longitude: -120.4606},
		TotalAreaM2:    75.5,
		IncludedAreaM2: 50.0,
		SegmentCount:   3,
		ExcludedCount:  1,
		Confidence:     0.85,
	}
	input.Panels = assess.EstimatePanels(input.IncludedAreaM2, 0, 0, 0, 0)

	// Test deterministic hashing
	hash1 := hasher.HashInput(input)
	hash2 := hasher.HashInput(input)

	// Same input should produce identical hashes
	if hash1 != hash2 {
		log.Fatal("Same input should produce same content hash")
	}

	fmt.Printf("Hash generation working\n")
	fmt.Printf("Content Hash: %s\n", hash1)
	fmt.Printf("Panel estimate: %d panels, %.1f kW\n",
		input.Panels.PanelCount, input.Panels.CapacityKw)

	// Sub-meter coordinate jitter must not bust the cache
	jittered := input
	jittered.Location.Latitude += 0.000004
	if hasher.HashInput(jittered) != hash1 {
		log.Fatal("Coordinate jitter below rounding precision should not change the hash")
	}
	fmt.Printf("Jitter tolerance working\n")

	// Excluding a segment must produce a different hash
	changed := input
	changed.IncludedAreaM2 = 25.5
	changed.ExcludedCount = 2
	if hasher.HashInput(changed) == hash1 {
		log.Fatal("Changed exclusions should change the hash")
	}
	fmt.Printf("Exclusion sensitivity working\n")
}
