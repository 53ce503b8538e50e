package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/roofsight/roofsight/server/internal/clients/solar"
)

func main() {
	var (
		apiKey   = flag.String("api-key", "", "Google API key (or set GOOGLE_API_KEY env var)")
		location = flag.String("location", "38.132700,-120.460600", "Building coordinates (lat,lng)")
		layers   = flag.Bool("layers", false, "Also fetch data layer URLs")
		radius   = flag.Float64("radius", 50, "Data layer radius in meters")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		fmt.Printf("Google Solar API Test Tool\n\n")
		fmt.Printf("Tests the Solar API client implementation.\n\n")
		fmt.Printf("Usage: %s [options]\n\n", os.Args[0])
		fmt.Printf("Options:\n")
		flag.PrintDefaults()
		fmt.Printf("\nExamples:\n")
		fmt.Printf("  %s -api-key=YOUR_KEY\n", os.Args[0])
		fmt.Printf("  %s -location=\"37.7749,-122.4194\" -layers\n", os.Args[0])
		fmt.Printf("  GOOGLE_API_KEY=your_key %s\n", os.Args[0])
		return
	}

	// Get API key from flag or environment
	key := *apiKey
	if key == "" {
		key = os.Getenv("GOOGLE_API_KEY")
	}
	if key == "" {
		log.Fatal("Google API key required. Use -api-key flag or GOOGLE_API_KEY env var")
	}

	var lat, lng float64
	if _, err := fmt.Sscanf(*location, "%f,%f", &lat, &lng); err != nil {
		log.Fatalf("Invalid location coordinates: %v", err)
	}

	fmt.Printf("Google Solar API Test\n")
	fmt.Printf("=====================\n")
	fmt.Printf("Location: %.6f, %.6f\n", lat, lng)
	fmt.Printf("API Key: %s...\n", key[:min(len(key), 10)])
	fmt.Printf("\n")

	client := solar.NewClient(key)
	ctx := context.Background()

	insights, err := client.BuildingInsights(ctx, lat, lng)
	if err != nil {
		log.Fatalf("Building insights request failed: %v", err)
	}

	fmt.Printf("Building insights:\n")
	fmt.Printf("  Name: %s\n", insights.Name)
	fmt.Printf("  Roof segments: %d\n", len(insights.SolarPotential.RoofSegmentStats))
	fmt.Printf("  Whole roof area: %.1f m²\n", insights.SolarPotential.WholeRoofStats.AreaMeters2)
	fmt.Printf("  Max panels: %d (%.0fW each)\n",
		insights.SolarPotential.MaxArrayPanelsCount,
		insights.SolarPotential.PanelCapacityWatts)
	fmt.Printf("  Max sunshine: %.0f hours/year\n", insights.SolarPotential.MaxSunshineHoursPerYear)

	for i, segment := range insights.SolarPotential.RoofSegmentStats {
		fmt.Printf("    Segment %d: %.1f m², pitch %.1f°, azimuth %.1f°\n",
			i+1, segment.Stats.AreaMeters2, segment.PitchDegrees, segment.AzimuthDegrees)
	}

	if *layers {
		fmt.Printf("\nData layers (radius %.0fm):\n", *radius)
		dataLayers, err := client.DataLayers(ctx, lat, lng, *radius)
		if err != nil {
			log.Fatalf("Data layers request failed: %v", err)
		}
		fmt.Printf("  DSM:          %s\n", dataLayers.DsmURL)
		fmt.Printf("  RGB:          %s\n", dataLayers.RgbURL)
		fmt.Printf("  Mask:         %s\n", dataLayers.MaskURL)
		fmt.Printf("  Annual flux:  %s\n", dataLayers.AnnualFluxURL)
		fmt.Printf("  Monthly flux: %s\n", dataLayers.MonthlyFluxURL)
		fmt.Printf("  Hourly shade: %d URLs\n", len(dataLayers.HourlyShadeURLs))
	}
}
