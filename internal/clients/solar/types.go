package solar

// LatLng mirrors the Solar API coordinate representation
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// LatLngBox is a geographic bounding box from the Solar API
type LatLngBox struct {
	SW LatLng `json:"sw"`
	NE LatLng `json:"ne"`
}

// BuildingInsightsResponse is the subset of buildingInsights:findClosest we
// consume
type BuildingInsightsResponse struct {
	Name           string         `json:"name"`
	Center         LatLng         `json:"center"`
	BoundingBox    LatLngBox      `json:"boundingBox"`
	ImageryDate    *Date          `json:"imageryDate,omitempty"`
	ImageryQuality string         `json:"imageryQuality,omitempty"`
	SolarPotential SolarPotential `json:"solarPotential"`
}

// Date is the Solar API calendar date representation
type Date struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

// SolarPotential carries roof geometry and panel capacity estimates
type SolarPotential struct {
	MaxArrayPanelsCount     int                `json:"maxArrayPanelsCount"`
	MaxArrayAreaMeters2     float64            `json:"maxArrayAreaMeters2"`
	MaxSunshineHoursPerYear float64            `json:"maxSunshineHoursPerYear"`
	PanelCapacityWatts      float64            `json:"panelCapacityWatts"`
	PanelHeightMeters       float64            `json:"panelHeightMeters"`
	PanelWidthMeters        float64            `json:"panelWidthMeters"`
	WholeRoofStats          SizeAndSunshine    `json:"wholeRoofStats"`
	RoofSegmentStats        []RoofSegmentStats `json:"roofSegmentStats"`
	SolarPanels             []SolarPanel       `json:"solarPanels"`
}

// SizeAndSunshine aggregates area and sunshine quantiles for a roof surface
type SizeAndSunshine struct {
	AreaMeters2       float64   `json:"areaMeters2"`
	SunshineQuantiles []float64 `json:"sunshineQuantiles"`
	GroundAreaMeters2 float64   `json:"groundAreaMeters2"`
}

// RoofSegmentStats describes one planar roof segment
type RoofSegmentStats struct {
	PitchDegrees              float64         `json:"pitchDegrees"`
	AzimuthDegrees            float64         `json:"azimuthDegrees"`
	Stats                     SizeAndSunshine `json:"stats"`
	Center                    LatLng          `json:"center"`
	BoundingBox               LatLngBox       `json:"boundingBox"`
	PlaneHeightAtCenterMeters float64         `json:"planeHeightAtCenterMeters"`
}

// SolarPanel is a single panel placement from the API's max-array layout
type SolarPanel struct {
	Center            LatLng  `json:"center"`
	Orientation       string  `json:"orientation"`
	YearlyEnergyDcKwh float64 `json:"yearlyEnergyDcKwh"`
	SegmentIndex      int     `json:"segmentIndex"`
}

// DataLayersResponse lists downloadable raster layers for a location. Each
// URL requires the API key appended before fetching.
type DataLayersResponse struct {
	ImageryDate     *Date    `json:"imageryDate,omitempty"`
	ImageryQuality  string   `json:"imageryQuality,omitempty"`
	DsmURL          string   `json:"dsmUrl"`
	RgbURL          string   `json:"rgbUrl"`
	MaskURL         string   `json:"maskUrl"`
	AnnualFluxURL   string   `json:"annualFluxUrl"`
	MonthlyFluxURL  string   `json:"monthlyFluxUrl"`
	HourlyShadeURLs []string `json:"hourlyShadeUrls"`
}
