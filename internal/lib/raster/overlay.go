package raster

import (
	"math"

	"github.com/paulmach/orb"
)

// maxOverlayPx caps overlay placement dimensions; anything past this means
// the georeferencing produced garbage and drawing it would hang renderers
const maxOverlayPx = 100000

// Viewport describes the satellite capture an overlay is placed onto
type Viewport struct {
	CenterLat float64
	CenterLng float64
	Zoom      int
	ImageSize int
}

// Placement is the pixel rectangle an overlay occupies within a viewport.
// Renderable is false when the overlay cannot be drawn safely; callers must
// skip the draw rather than clamp.
type Placement struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Renderable bool    `json:"renderable"`
}

// OverlayProjector places georeferenced rasters onto capture viewports
type OverlayProjector struct {
	viewport Viewport
}

// NewOverlayProjector creates a projector for a capture viewport
func NewOverlayProjector(viewport Viewport) *OverlayProjector {
	return &OverlayProjector{viewport: viewport}
}

// Place computes where a raster extent lands in viewport pixels. The extent
// is in WGS84 (orb bounds are lng/lat ordered). Degenerate extents, NaN
// coordinates and absurd output sizes all come back non-renderable.
func (p *OverlayProjector) Place(bound orb.Bound) Placement {
	sw := bound.Min
	ne := bound.Max

	if anyNaN(sw[0], sw[1], ne[0], ne[1]) {
		return Placement{}
	}

	left, top := p.toPixel(ne[1], sw[0])
	right, bottom := p.toPixel(sw[1], ne[0])

	width := right - left
	height := bottom - top

	if anyNaN(left, top, width, height) {
		return Placement{}
	}
	if width <= 0 || height <= 0 || width > maxOverlayPx || height > maxOverlayPx {
		return Placement{}
	}

	return Placement{
		X:          left,
		Y:          top,
		Width:      width,
		Height:     height,
		Renderable: true,
	}
}

// toPixel converts a geographic point into viewport pixel coordinates,
// inverting the pixel-to-lat/lng math used during segmentation
func (p *OverlayProjector) toPixel(lat, lng float64) (x, y float64) {
	metersPerPixel := 156543.03392 * math.Cos(p.viewport.CenterLat*math.Pi/180) / math.Pow(2, float64(p.viewport.Zoom))

	latOffsetMeters := (lat - p.viewport.CenterLat) * 111320
	lngOffsetMeters := (lng - p.viewport.CenterLng) * 111320 * math.Cos(p.viewport.CenterLat*math.Pi/180)

	half := float64(p.viewport.ImageSize) / 2
	x = half + lngOffsetMeters/metersPerPixel
	y = half - latOffsetMeters/metersPerPixel
	return x, y
}

func anyNaN(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}
