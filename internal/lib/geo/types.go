package geo

// Point represents a geographic coordinate in WGS84 degrees
type Point struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// PixelPoint represents image-space pixel coordinates, origin top-left
type PixelPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Polygon is an ordered vertex sequence. The first and last point are not
// required to be equal; insertion order defines the winding.
type Polygon []Point

// BoundingBox represents a geographic bounding box by its southwest and
// northeast corners
type BoundingBox struct {
	SW Point `json:"sw"`
	NE Point `json:"ne"`
}

// GeoUtils interface defines geographic calculation utilities
type GeoUtils interface {
	// Calculate great-circle distance between two points in meters
	PointToPoint(p1, p2 Point) (float64, error)

	// Calculate the area enclosed by a geographic polygon in square meters.
	// Polygons with fewer than 3 vertices yield 0.
	PolygonArea(polygon Polygon) float64

	// Convert pixel coordinates within a square satellite capture back to
	// geographic coordinates
	PixelToLatLng(pixelX, pixelY, centerLat, centerLng float64, zoom, imageSize int) Point

	// Reproject a whole pixel-space outline into a geographic polygon
	PixelPolygonToLatLng(pixels []PixelPoint, centerLat, centerLng float64, zoom, imageSize int) Polygon

	// Build the convex hull of a point set as an ordered polygon
	ConvexHull(points []Point) Polygon

	// Decode Google polyline string to point sequence
	DecodePolyline(encoded string) ([]Point, error)

	// Calculate distance between coordinate pairs (convenience method)
	DistanceFromCoords(lat1, lon1, lat2, lon2 float64) (float64, error)
}

// NewGeoUtils is implemented in geo.go
