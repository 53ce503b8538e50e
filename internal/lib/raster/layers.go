package raster

// Layer kinds as listed by the Solar API data layers endpoint
const (
	LayerDSM         = "dsm"
	LayerRGB         = "rgb"
	LayerMask        = "mask"
	LayerAnnualFlux  = "annualFlux"
	LayerMonthlyFlux = "monthlyFlux"
	LayerHourlyShade = "hourlyShade"
)

// LayerBand selects which band of a layer raster to render. Monthly flux
// stacks one band per month and hourly shade one per hour; every other layer
// is single-band. Out-of-range selections clamp rather than error so a stale
// UI slider can never break rendering.
func LayerBand(layer string, month, hour int) int {
	switch layer {
	case LayerMonthlyFlux:
		return clampBand(month, 12)
	case LayerHourlyShade:
		return clampBand(hour, 24)
	default:
		return 0
	}
}

// LayerPalette is the default palette for a layer kind
func LayerPalette(layer string) Palette {
	switch layer {
	case LayerMask:
		return PaletteBinary
	case LayerHourlyShade:
		return PaletteSunlight
	case LayerDSM:
		return PaletteRainbow
	default:
		// Flux layers
		return PaletteIron
	}
}

func clampBand(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
