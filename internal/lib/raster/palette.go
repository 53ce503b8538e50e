package raster

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
)

// Palette is an ordered list of color stops interpolated linearly across
// the normalized 0..1 range
type Palette struct {
	Name  string
	Stops []color.RGBA
}

// The standard layer palettes. Iron and rainbow render flux, sunlight and
// binary render shade and mask layers.
var (
	PaletteIron     = mustPalette("iron", "00000A", "91009C", "E64616", "FEB400", "FFFFF6")
	PaletteRainbow  = mustPalette("rainbow", "3949AB", "81D4FA", "66BB6A", "FFE082", "E53935")
	PaletteSunlight = mustPalette("sunlight", "212121", "FFCA28")
	PaletteBinary   = mustPalette("binary", "212121", "B3E5FC")
)

// PaletteByName resolves a palette from its wire name
func PaletteByName(name string) (Palette, error) {
	switch name {
	case "iron":
		return PaletteIron, nil
	case "rainbow":
		return PaletteRainbow, nil
	case "sunlight":
		return PaletteSunlight, nil
	case "binary":
		return PaletteBinary, nil
	default:
		return Palette{}, fmt.Errorf("unknown palette %q", name)
	}
}

func mustPalette(name string, hexes ...string) Palette {
	stops := make([]color.RGBA, len(hexes))
	for i, h := range hexes {
		v, err := strconv.ParseUint(h, 16, 32)
		if err != nil {
			panic("bad palette stop " + h)
		}
		stops[i] = color.RGBA{
			R: uint8(v >> 16),
			G: uint8(v >> 8),
			B: uint8(v),
			A: 255,
		}
	}
	return Palette{Name: name, Stops: stops}
}

// At interpolates the palette at t in [0, 1]. Values outside the range clamp
// to the end stops.
func (p Palette) At(t float64) color.RGBA {
	if len(p.Stops) == 0 {
		return color.RGBA{A: 255}
	}
	if math.IsNaN(t) || t <= 0 {
		return p.Stops[0]
	}
	if t >= 1 {
		return p.Stops[len(p.Stops)-1]
	}

	scaled := t * float64(len(p.Stops)-1)
	i := int(scaled)
	frac := scaled - float64(i)

	a := p.Stops[i]
	b := p.Stops[i+1]
	return color.RGBA{
		R: lerpByte(a.R, b.R, frac),
		G: lerpByte(a.G, b.G, frac),
		B: lerpByte(a.B, b.B, frac),
		A: 255,
	}
}

func lerpByte(a, b uint8, t float64) uint8 {
	return uint8(math.Round(float64(a) + (float64(b)-float64(a))*t))
}

// Colorize renders one band of a raster through a palette. Samples are
// normalized against the band's own range. A band with no spread renders
// entirely opaque black, and no-data samples come out fully transparent.
func Colorize(r Raster, band int, palette Palette) (*image.RGBA, error) {
	if band < 0 || band >= r.BandCount() {
		return nil, fmt.Errorf("band %d out of range [0, %d)", band, r.BandCount())
	}

	img := image.NewRGBA(image.Rect(0, 0, r.Width(), r.Height()))

	min, max, ok := BandRange(r, band)
	if !ok || max == min {
		// Flat band (an all-zero hourly shade slice, for instance) renders
		// black rather than a misleading gradient
		black := color.RGBA{A: 255}
		for y := 0; y < r.Height(); y++ {
			for x := 0; x < r.Width(); x++ {
				if r.Sample(band, x, y) == r.NoData() {
					continue
				}
				img.SetRGBA(x, y, black)
			}
		}
		return img, nil
	}

	for y := 0; y < r.Height(); y++ {
		for x := 0; x < r.Width(); x++ {
			v := r.Sample(band, x, y)
			if v == r.NoData() || math.IsNaN(v) {
				continue
			}
			img.SetRGBA(x, y, palette.At((v-min)/(max-min)))
		}
	}

	return img, nil
}
