package export

import (
	"fmt"
	"image/color"
	"io"

	"github.com/twpayne/go-kml/v2"

	"github.com/roofsight/roofsight/server/internal/lib/geo"
	"github.com/roofsight/roofsight/server/internal/lib/segmentation"
)

// WriteSessionKML renders a populated session as a KML document: one polygon
// placemark per roof segment, styled by inclusion, plus the overall outline.
// Fails when the session has no result to export.
func WriteSessionKML(w io.Writer, session segmentation.SessionSnapshot) error {
	if session.Result == nil || len(session.Result.Segments) == 0 {
		return fmt.Errorf("session has no segments to export")
	}

	excluded := make(map[int]bool, len(session.ExcludedIndices))
	for _, i := range session.ExcludedIndices {
		excluded[i] = true
	}

	elements := []kml.Element{
		kml.Name(fmt.Sprintf("Roof segmentation (%s)", session.Method)),
		kml.Description(fmt.Sprintf("Included area: %.1f m²", session.IncludedAreaM2)),
		sharedStyle("included", color.RGBA{R: 0x3A, G: 0xA7, B: 0x55, A: 0x99}),
		sharedStyle("excluded", color.RGBA{R: 0xE5, G: 0x39, B: 0x35, A: 0x66}),
		sharedStyle("outline", color.RGBA{R: 0xFF, G: 0xCA, B: 0x28, A: 0x40}),
	}

	for i, segment := range session.Result.Segments {
		if len(segment.Polygon) < 3 {
			continue
		}

		style := "#included"
		label := fmt.Sprintf("Segment %d (%.1f m²)", i+1, segment.AreaM2)
		if excluded[i] {
			style = "#excluded"
			label += " (excluded)"
		}

		elements = append(elements, kml.Placemark(
			kml.Name(label),
			kml.StyleURL(style),
			polygonElement(segment.Polygon),
		))
	}

	if len(session.Result.Outline) >= 3 {
		elements = append(elements, kml.Placemark(
			kml.Name("Roof outline"),
			kml.StyleURL("#outline"),
			polygonElement(session.Result.Outline),
		))
	}

	doc := kml.KML(kml.Document(elements...))
	return doc.WriteIndent(w, "", "  ")
}

// polygonElement converts a polygon to a closed KML ring
func polygonElement(polygon geo.Polygon) kml.Element {
	coords := make([]kml.Coordinate, 0, len(polygon)+1)
	for _, p := range polygon {
		coords = append(coords, kml.Coordinate{Lon: p.Longitude, Lat: p.Latitude})
	}
	// KML rings are explicitly closed
	coords = append(coords, kml.Coordinate{Lon: polygon[0].Longitude, Lat: polygon[0].Latitude})

	return kml.Polygon(
		kml.OuterBoundaryIs(
			kml.LinearRing(
				kml.Coordinates(coords...),
			),
		),
	)
}

func sharedStyle(id string, fill color.RGBA) kml.Element {
	return kml.SharedStyle(id,
		kml.PolyStyle(
			kml.Color(fill),
		),
		kml.LineStyle(
			kml.Color(color.RGBA{R: fill.R, G: fill.G, B: fill.B, A: 0xFF}),
			kml.Width(2),
		),
	)
}
