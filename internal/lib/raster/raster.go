package raster

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Raster is a geo-referenced grid of sample bands. Implementations decode
// whatever container the layer arrived in (GeoTIFF bands, shade stacks) into
// float samples; consumers only ever see this surface.
type Raster interface {
	Width() int
	Height() int
	BandCount() int
	// Sample returns the value at (x, y) of the given band. Out-of-range
	// coordinates return the no-data value.
	Sample(band, x, y int) float64
	// NoData is the sentinel for missing samples
	NoData() float64
	// Bound is the geographic extent in WGS84
	Bound() orb.Bound
}

// Grid is an in-memory Raster backed by dense float slices
type Grid struct {
	width  int
	height int
	bands  [][]float64
	noData float64
	bound  orb.Bound
}

// NewGrid creates a raster from row-major band data. Every band must hold
// width*height samples.
func NewGrid(width, height int, bands [][]float64, noData float64, bound orb.Bound) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid raster dimensions %dx%d", width, height)
	}
	if len(bands) == 0 {
		return nil, errors.New("raster needs at least one band")
	}
	for i, band := range bands {
		if len(band) != width*height {
			return nil, fmt.Errorf("band %d holds %d samples, want %d", i, len(band), width*height)
		}
	}
	return &Grid{
		width:  width,
		height: height,
		bands:  bands,
		noData: noData,
		bound:  bound,
	}, nil
}

func (g *Grid) Width() int      { return g.width }
func (g *Grid) Height() int     { return g.height }
func (g *Grid) BandCount() int  { return len(g.bands) }
func (g *Grid) NoData() float64 { return g.noData }
func (g *Grid) Bound() orb.Bound {
	return g.bound
}

func (g *Grid) Sample(band, x, y int) float64 {
	if band < 0 || band >= len(g.bands) || x < 0 || x >= g.width || y < 0 || y >= g.height {
		return g.noData
	}
	return g.bands[band][y*g.width+x]
}

// BoundPolygon converts a raster extent to a closed ring, for overlay
// debugging and KML export
func BoundPolygon(bound orb.Bound) orb.Polygon {
	return orb.Polygon{bound.ToRing()}
}

// BandRange scans a band for its finite min and max, skipping no-data
// samples. ok is false when the band holds no usable samples.
func BandRange(r Raster, band int) (min, max float64, ok bool) {
	min = math.Inf(1)
	max = math.Inf(-1)
	for y := 0; y < r.Height(); y++ {
		for x := 0; x < r.Width(); x++ {
			v := r.Sample(band, x, y)
			if v == r.NoData() || math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
			ok = true
		}
	}
	return min, max, ok
}
