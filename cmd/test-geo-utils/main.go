package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/roofsight/roofsight/server/internal/lib/geo"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	geoUtils := geo.NewGeoUtils()

	switch command {
	case "point-distance":
		handlePointDistance(geoUtils)
	case "polygon-area":
		handlePolygonArea(geoUtils)
	case "convex-hull":
		handleConvexHull(geoUtils)
	case "pixel-to-latlng":
		handlePixelToLatLng(geoUtils)
	case "decode-polyline":
		handleDecodePolyline(geoUtils)
	case "help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handlePointDistance(geoUtils geo.GeoUtils) {
	fs := flag.NewFlagSet("point-distance", flag.ExitOnError)
	lat1 := fs.Float64("lat1", 0, "Latitude of first point")
	lng1 := fs.Float64("lng1", 0, "Longitude of first point")
	lat2 := fs.Float64("lat2", 0, "Latitude of second point")
	lng2 := fs.Float64("lng2", 0, "Longitude of second point")

	fs.Parse(os.Args[2:])

	if *lat1 == 0 && *lng1 == 0 && *lat2 == 0 && *lng2 == 0 {
		fmt.Println("Example usage:")
		fmt.Println("  test-geo-utils point-distance --lat1 38.1327 --lng1 -120.4606 --lat2 38.2663 --lng2 -120.3516")
		fmt.Println("  (Distance between Murphys and Arnold)")
		os.Exit(1)
	}

	p1 := geo.Point{Latitude: *lat1, Longitude: *lng1}
	p2 := geo.Point{Latitude: *lat2, Longitude: *lng2}

	distance, err := geoUtils.PointToPoint(p1, p2)
	if err != nil {
		log.Fatalf("Error calculating distance: %v", err)
	}

	fmt.Printf("Distance between points:\n")
	fmt.Printf("  Point 1: (%.6f, %.6f)\n", p1.Latitude, p1.Longitude)
	fmt.Printf("  Point 2: (%.6f, %.6f)\n", p2.Latitude, p2.Longitude)
	fmt.Printf("  Distance: %.2f meters (%.2f km, %.2f miles)\n",
		distance, distance/1000, distance*0.000621371)
}

func handlePolygonArea(geoUtils geo.GeoUtils) {
	fs := flag.NewFlagSet("polygon-area", flag.ExitOnError)
	coordStr := fs.String("coords", "", "Polygon vertices as \"lat,lng;lat,lng;...\"")

	fs.Parse(os.Args[2:])

	if *coordStr == "" {
		fmt.Println("Example usage:")
		fmt.Println("  test-geo-utils polygon-area --coords \"38.1327,-120.4606;38.1327,-120.4604;38.1329,-120.4604;38.1329,-120.4606\"")
		fmt.Println("  (Area of a small roof-sized rectangle)")
		os.Exit(1)
	}

	points, err := parseCoordinatePairs(*coordStr)
	if err != nil {
		log.Fatalf("Error parsing coordinates: %v", err)
	}

	area := geoUtils.PolygonArea(points)

	fmt.Printf("Polygon area:\n")
	fmt.Printf("  Vertices: %d\n", len(points))
	fmt.Printf("  Area: %.2f m² (%.4f acres)\n", area, area*0.000247105)
}

func handleConvexHull(geoUtils geo.GeoUtils) {
	fs := flag.NewFlagSet("convex-hull", flag.ExitOnError)
	coordStr := fs.String("coords", "", "Points as \"lat,lng;lat,lng;...\"")

	fs.Parse(os.Args[2:])

	if *coordStr == "" {
		fmt.Println("Example usage:")
		fmt.Println("  test-geo-utils convex-hull --coords \"38.1327,-120.4606;38.1328,-120.4605;38.1329,-120.4604;38.1327,-120.4604\"")
		os.Exit(1)
	}

	points, err := parseCoordinatePairs(*coordStr)
	if err != nil {
		log.Fatalf("Error parsing coordinates: %v", err)
	}

	hull := geoUtils.ConvexHull(points)

	fmt.Printf("Convex hull:\n")
	fmt.Printf("  Input points: %d\n", len(points))
	fmt.Printf("  Hull vertices: %d\n", len(hull))
	for i, point := range hull {
		fmt.Printf("    %d: (%.6f, %.6f)\n", i+1, point.Latitude, point.Longitude)
	}
	fmt.Printf("  Hull area: %.2f m²\n", geoUtils.PolygonArea(hull))
}

func handlePixelToLatLng(geoUtils geo.GeoUtils) {
	fs := flag.NewFlagSet("pixel-to-latlng", flag.ExitOnError)
	pixelX := fs.Float64("x", 0, "Pixel X coordinate")
	pixelY := fs.Float64("y", 0, "Pixel Y coordinate")
	centerLat := fs.Float64("lat", 0, "Capture center latitude")
	centerLng := fs.Float64("lng", 0, "Capture center longitude")
	zoom := fs.Int("zoom", 20, "Capture zoom level")
	imageSize := fs.Int("size", 640, "Capture image size in pixels")

	fs.Parse(os.Args[2:])

	if *centerLat == 0 && *centerLng == 0 {
		fmt.Println("Example usage:")
		fmt.Println("  test-geo-utils pixel-to-latlng --x 100 --y 200 --lat 38.1327 --lng -120.4606 --zoom 20 --size 640")
		fmt.Println("  (Reproject a capture pixel into coordinates)")
		os.Exit(1)
	}

	point := geoUtils.PixelToLatLng(*pixelX, *pixelY, *centerLat, *centerLng, *zoom, *imageSize)

	fmt.Printf("Pixel reprojection:\n")
	fmt.Printf("  Pixel: (%.1f, %.1f) in %dx%d capture at zoom %d\n",
		*pixelX, *pixelY, *imageSize, *imageSize, *zoom)
	fmt.Printf("  Center: (%.6f, %.6f)\n", *centerLat, *centerLng)
	fmt.Printf("  Result: (%.6f, %.6f)\n", point.Latitude, point.Longitude)
}

func handleDecodePolyline(geoUtils geo.GeoUtils) {
	fs := flag.NewFlagSet("decode-polyline", flag.ExitOnError)
	polylineStr := fs.String("polyline", "", "Encoded polyline string to decode")
	verbose := fs.Bool("verbose", false, "Show all decoded points")

	fs.Parse(os.Args[2:])

	if *polylineStr == "" {
		fmt.Println("Example usage:")
		fmt.Println("  test-geo-utils decode-polyline --polyline \"_p~iF~ps|U_ulLnnqC_mqNvxq`@\"")
		fmt.Println("  test-geo-utils decode-polyline --polyline \"encoded_string\" --verbose")
		os.Exit(1)
	}

	points, err := geoUtils.DecodePolyline(*polylineStr)
	if err != nil {
		log.Fatalf("Error decoding polyline: %v", err)
	}

	fmt.Printf("Polyline decoded successfully:\n")
	fmt.Printf("  Input: %s\n", *polylineStr)
	fmt.Printf("  Points: %d\n", len(points))

	if len(points) > 0 {
		fmt.Printf("  Start: (%.6f, %.6f)\n", points[0].Latitude, points[0].Longitude)
		if len(points) > 1 {
			fmt.Printf("  End: (%.6f, %.6f)\n", points[len(points)-1].Latitude, points[len(points)-1].Longitude)
		}
	}

	if *verbose && len(points) > 0 {
		fmt.Printf("  All points:\n")
		for i, point := range points {
			fmt.Printf("    %d: (%.6f, %.6f)\n", i+1, point.Latitude, point.Longitude)
		}
	}
}

func printUsage() {
	fmt.Printf(`test-geo-utils - Geographic utility testing tool

USAGE:
    test-geo-utils <command> [options]

COMMANDS:
    point-distance      Calculate great-circle distance between two points
    polygon-area        Calculate geodesic area of a polygon
    convex-hull         Compute the convex hull of a point set
    pixel-to-latlng     Reproject a capture pixel into coordinates
    decode-polyline     Decode Google polyline string to coordinates
    help               Show this help message

EXAMPLES:
    # Distance between Murphys and Arnold
    test-geo-utils point-distance --lat1 38.1327 --lng1 -120.4606 --lat2 38.2663 --lng2 -120.3516

    # Area of a traced roof rectangle
    test-geo-utils polygon-area --coords "38.1327,-120.4606;38.1327,-120.4604;38.1329,-120.4604;38.1329,-120.4606"

    # Hull of segment centers
    test-geo-utils convex-hull --coords "38.1327,-120.4606;38.1328,-120.4605;38.1329,-120.4604"

    # Where does capture pixel (100, 200) land?
    test-geo-utils pixel-to-latlng --x 100 --y 200 --lat 38.1327 --lng -120.4606
`)
}

// Helper function to parse coordinate pairs from string
func parseCoordinatePairs(coordStr string) ([]geo.Point, error) {
	if coordStr == "" {
		return nil, fmt.Errorf("empty coordinate string")
	}

	pairs := strings.Split(coordStr, ";")
	points := make([]geo.Point, 0, len(pairs))

	for _, pair := range pairs {
		coords := strings.Split(strings.TrimSpace(pair), ",")
		if len(coords) != 2 {
			return nil, fmt.Errorf("invalid coordinate pair: %s", pair)
		}

		lat, err := strconv.ParseFloat(strings.TrimSpace(coords[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid latitude: %s", coords[0])
		}

		lng, err := strconv.ParseFloat(strings.TrimSpace(coords[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid longitude: %s", coords[1])
		}

		points = append(points, geo.Point{Latitude: lat, Longitude: lng})
	}

	return points, nil
}
