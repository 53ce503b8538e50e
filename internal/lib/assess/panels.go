package assess

import "math"

// Default panel geometry, used when building insights did not supply panel
// specs (manual and image-derived segmentations)
const (
	DefaultPanelWidthM   = 1.045
	DefaultPanelHeightM  = 1.879
	DefaultPanelWatts    = 400.0
	// Racking, setbacks and obstructions keep real arrays well under the
	// geometric maximum
	usableAreaFraction = 0.85
)

// EstimatePanels sizes an array for the included roof area. maxPanels caps
// the count when the Solar API reported a layout limit; pass 0 for no cap.
func EstimatePanels(includedAreaM2, panelWidthM, panelHeightM, panelWatts float64, maxPanels int) PanelEstimate {
	if panelWidthM <= 0 || panelHeightM <= 0 {
		panelWidthM = DefaultPanelWidthM
		panelHeightM = DefaultPanelHeightM
	}
	if panelWatts <= 0 {
		panelWatts = DefaultPanelWatts
	}

	panelArea := panelWidthM * panelHeightM
	usable := includedAreaM2 * usableAreaFraction
	if usable < 0 {
		usable = 0
	}

	count := int(math.Floor(usable / panelArea))
	if count < 0 {
		count = 0
	}
	if maxPanels > 0 && count > maxPanels {
		count = maxPanels
	}

	return PanelEstimate{
		PanelCount:   count,
		CapacityKw:   float64(count) * panelWatts / 1000,
		PanelAreaM2:  panelArea,
		UsableAreaM2: usable,
	}
}
