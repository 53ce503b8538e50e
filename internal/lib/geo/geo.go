package geo

import (
	"errors"
	"math"

	"github.com/twpayne/go-polyline"
)

// earthRadius is the mean Earth radius in meters
const earthRadius = 6371000

// metersPerDegreeLat is the approximate ground length of one degree of
// latitude; longitude is scaled by cos(latitude)
const metersPerDegreeLat = 111320

// geoUtils implements the GeoUtils interface
type geoUtils struct{}

// NewGeoUtils creates a new GeoUtils implementation
func NewGeoUtils() GeoUtils {
	return &geoUtils{}
}

// PointToPoint calculates great-circle distance between two points using Haversine formula
func (g *geoUtils) PointToPoint(p1, p2 Point) (float64, error) {
	if !isValidCoordinate(p1) || !isValidCoordinate(p2) {
		return 0, errors.New("invalid coordinates: latitude must be [-90, 90], longitude must be [-180, 180]")
	}

	if p1.Latitude == p2.Latitude && p1.Longitude == p2.Longitude {
		return 0, nil
	}

	lat1 := p1.Latitude * math.Pi / 180
	lon1 := p1.Longitude * math.Pi / 180
	lat2 := p2.Latitude * math.Pi / 180
	lon2 := p2.Longitude * math.Pi / 180

	dlat := lat2 - lat1
	dlon := lon2 - lon1

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c, nil
}

// PolygonArea calculates the enclosed area of a geographic polygon using a
// shoelace accumulation adapted for spherical coordinates. The sine term
// corrects for meridian convergence; at roof scale (tens of meters) the
// remaining curvature error is negligible. Winding direction does not affect
// the result.
func (g *geoUtils) PolygonArea(polygon Polygon) float64 {
	if len(polygon) < 3 {
		return 0
	}

	n := len(polygon)
	area := 0.0

	for i := 0; i < n; i++ {
		j := (i + 1) % n
		lat1 := polygon[i].Latitude * math.Pi / 180
		lat2 := polygon[j].Latitude * math.Pi / 180
		lng1 := polygon[i].Longitude * math.Pi / 180
		lng2 := polygon[j].Longitude * math.Pi / 180

		area += (lng2 - lng1) * (2 + math.Sin(lat1) + math.Sin(lat2))
	}

	return math.Abs(area * earthRadius * earthRadius / 2)
}

// PixelToLatLng converts pixel coordinates within a square satellite capture
// (centered at centerLat/centerLng at the given zoom) back to geographic
// coordinates. The zoom and imageSize must match the parameters the capture
// was produced with; no validation is possible here.
func (g *geoUtils) PixelToLatLng(pixelX, pixelY, centerLat, centerLng float64, zoom, imageSize int) Point {
	// Web-Mercator ground resolution at the capture center
	metersPerPixel := 156543.03392 * math.Cos(centerLat*math.Pi/180) / math.Pow(2, float64(zoom))

	offsetX := pixelX - float64(imageSize)/2
	offsetY := pixelY - float64(imageSize)/2

	// Image Y grows downward, latitude grows upward
	offsetMetersX := offsetX * metersPerPixel
	offsetMetersY := -offsetY * metersPerPixel

	latOffset := offsetMetersY / metersPerDegreeLat
	lngOffset := offsetMetersX / (metersPerDegreeLat * math.Cos(centerLat*math.Pi/180))

	return Point{
		Latitude:  centerLat + latOffset,
		Longitude: centerLng + lngOffset,
	}
}

// PixelPolygonToLatLng reprojects a pixel-space outline into a geographic
// polygon, vertex by vertex, under the same capture parameters.
func (g *geoUtils) PixelPolygonToLatLng(pixels []PixelPoint, centerLat, centerLng float64, zoom, imageSize int) Polygon {
	polygon := make(Polygon, len(pixels))
	for i, px := range pixels {
		polygon[i] = g.PixelToLatLng(px.X, px.Y, centerLat, centerLng, zoom, imageSize)
	}
	return polygon
}

// PolygonBounds computes the axis-aligned bounding box of a polygon. ok is
// false for polygons with fewer than 3 vertices.
func PolygonBounds(polygon Polygon) (BoundingBox, bool) {
	if len(polygon) < 3 {
		return BoundingBox{}, false
	}

	box := BoundingBox{SW: polygon[0], NE: polygon[0]}
	for _, p := range polygon[1:] {
		if p.Latitude < box.SW.Latitude {
			box.SW.Latitude = p.Latitude
		}
		if p.Latitude > box.NE.Latitude {
			box.NE.Latitude = p.Latitude
		}
		if p.Longitude < box.SW.Longitude {
			box.SW.Longitude = p.Longitude
		}
		if p.Longitude > box.NE.Longitude {
			box.NE.Longitude = p.Longitude
		}
	}
	return box, true
}

// ConvexHull builds the convex hull of a point set using a Graham scan.
// Fewer than 3 points are returned unchanged. Collinear boundary points are
// dropped.
func (g *geoUtils) ConvexHull(points []Point) Polygon {
	if len(points) < 3 {
		return Polygon(points)
	}

	// Work on a copy so callers keep their ordering
	pts := make([]Point, len(points))
	copy(pts, points)

	// Pivot: minimum longitude, ties broken by minimum latitude
	start := 0
	for i := 1; i < len(pts); i++ {
		if pts[i].Longitude < pts[start].Longitude ||
			(pts[i].Longitude == pts[start].Longitude && pts[i].Latitude < pts[start].Latitude) {
			start = i
		}
	}
	pts[0], pts[start] = pts[start], pts[0]
	pivot := pts[0]

	// Sort remaining points by polar angle around the pivot
	rest := pts[1:]
	sortByAngle(rest, pivot)

	hull := Polygon{pivot}
	for _, point := range rest {
		for len(hull) > 1 && cross(hull[len(hull)-2], hull[len(hull)-1], point) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, point)
	}

	return hull
}

// sortByAngle orders points by their polar angle around pivot
func sortByAngle(points []Point, pivot Point) {
	// Insertion sort keeps the implementation dependency-free; segment
	// center sets are small (typically < 20 points)
	for i := 1; i < len(points); i++ {
		p := points[i]
		angle := math.Atan2(p.Latitude-pivot.Latitude, p.Longitude-pivot.Longitude)
		j := i - 1
		for j >= 0 {
			a := math.Atan2(points[j].Latitude-pivot.Latitude, points[j].Longitude-pivot.Longitude)
			if a <= angle {
				break
			}
			points[j+1] = points[j]
			j--
		}
		points[j+1] = p
	}
}

// cross computes the 2D cross product of (o->a) and (o->b) in lng/lat space
func cross(o, a, b Point) float64 {
	return (a.Longitude-o.Longitude)*(b.Latitude-o.Latitude) -
		(a.Latitude-o.Latitude)*(b.Longitude-o.Longitude)
}

// DecodePolyline decodes Google polyline string to point sequence
func (g *geoUtils) DecodePolyline(encoded string) ([]Point, error) {
	if encoded == "" {
		return nil, errors.New("encoded polyline string is empty")
	}

	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, errors.New("failed to decode polyline: " + err.Error())
	}

	points := make([]Point, len(coords))
	for i, coord := range coords {
		points[i] = Point{
			Latitude:  coord[0],
			Longitude: coord[1],
		}

		if !isValidCoordinate(points[i]) {
			return nil, errors.New("decoded polyline contains invalid coordinates")
		}
	}

	return points, nil
}

// DistanceFromCoords calculates distance between two coordinate pairs
// Convenience method for raw latitude/longitude values
func (g *geoUtils) DistanceFromCoords(lat1, lon1, lat2, lon2 float64) (float64, error) {
	point1 := Point{Latitude: lat1, Longitude: lon1}
	point2 := Point{Latitude: lat2, Longitude: lon2}

	return g.PointToPoint(point1, point2)
}

// NewPoint creates a Point from latitude and longitude values with validation
func NewPoint(latitude, longitude float64) (Point, error) {
	point := Point{Latitude: latitude, Longitude: longitude}
	if !isValidCoordinate(point) {
		return Point{}, errors.New("invalid coordinates: latitude must be [-90, 90], longitude must be [-180, 180]")
	}
	return point, nil
}

// NewPointUnsafe creates a Point without validation (for performance-critical paths)
func NewPointUnsafe(latitude, longitude float64) Point {
	return Point{Latitude: latitude, Longitude: longitude}
}

// isValidCoordinate validates latitude and longitude values
func isValidCoordinate(point Point) bool {
	return point.Latitude >= -90 && point.Latitude <= 90 &&
		point.Longitude >= -180 && point.Longitude <= 180
}
