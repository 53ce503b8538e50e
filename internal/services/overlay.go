package services

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"log"
	"net/http"
	"strconv"

	"github.com/paulmach/orb"

	"github.com/roofsight/roofsight/server/internal/cache"
	"github.com/roofsight/roofsight/server/internal/clients/solar"
	"github.com/roofsight/roofsight/server/internal/config"
	"github.com/roofsight/roofsight/server/internal/lib/raster"
)

// LayerSource is the subset of the Solar API client the overlay service
// needs: listing the raster layers for a location and downloading them.
type LayerSource interface {
	DataLayers(ctx context.Context, lat, lng, radiusMeters float64) (*solar.DataLayersResponse, error)
	FetchLayer(ctx context.Context, layerURL string) ([]byte, error)
}

// OverlayService renders Solar API data layers into map overlays and computes
// where georeferenced rasters land on satellite captures.
type OverlayService struct {
	layers LayerSource
	cache  *cache.Cache
	config *config.Config
}

// NewOverlayService creates the overlay HTTP service
func NewOverlayService(layers LayerSource, cacheInstance *cache.Cache, cfg *config.Config) *OverlayService {
	return &OverlayService{
		layers: layers,
		cache:  cacheInstance,
		config: cfg,
	}
}

// renderParams is a parsed render query string
type renderParams struct {
	lat, lng float64
	layer    string
	month    int
	hour     int
	palette  raster.Palette
	masked   bool
	format   string
}

// HandleLayerRender downloads one data layer for a location, decodes it and
// serves it as a colorized PNG overlay. Flux layers are clipped to the roof
// mask by default; format=json returns the placement metadata instead of
// the image.
// GET /api/v1/overlay/render?lat=..&lng=..&layer=annualFlux
func (s *OverlayService) HandleLayerRender(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}

	params, err := parseRenderParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	layers, err := s.dataLayers(r.Context(), params.lat, params.lng)
	if err != nil {
		writeSolarError(w, err)
		return
	}

	grid, err := s.fetchGrid(r.Context(), layers, params.layer, params.month, params.lat, params.lng)
	if err != nil {
		s.writeRenderError(w, err)
		return
	}

	if params.format == "json" {
		s.writeRenderInfo(w, grid, params)
		return
	}

	img, err := s.renderLayer(grid, params)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	if params.masked {
		mask, err := s.fetchGrid(r.Context(), layers, raster.LayerMask, 0, params.lat, params.lng)
		if err != nil {
			s.writeRenderError(w, err)
			return
		}
		if err := raster.ApplyMask(img, mask); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	bound := grid.Bound()
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Raster-Bounds", fmt.Sprintf("%.6f,%.6f,%.6f,%.6f",
		bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1]))
	if err := png.Encode(w, img); err != nil {
		log.Printf("Failed to encode overlay PNG: %v", err)
	}
}

func parseRenderParams(r *http.Request) (renderParams, error) {
	q := r.URL.Query()

	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
	if errLat != nil || errLng != nil {
		return renderParams{}, fmt.Errorf("lat and lng query parameters required")
	}

	layer := q.Get("layer")
	if layer == "" {
		layer = raster.LayerAnnualFlux
	}
	switch layer {
	case raster.LayerDSM, raster.LayerRGB, raster.LayerMask,
		raster.LayerAnnualFlux, raster.LayerMonthlyFlux, raster.LayerHourlyShade:
	default:
		return renderParams{}, fmt.Errorf("unknown layer %q", layer)
	}

	month, _ := strconv.Atoi(q.Get("month"))
	hour, _ := strconv.Atoi(q.Get("hour"))

	palette := raster.LayerPalette(layer)
	if name := q.Get("palette"); name != "" {
		p, err := raster.PaletteByName(name)
		if err != nil {
			return renderParams{}, err
		}
		palette = p
	}

	// Flux overlays only make sense on the roof itself
	masked := layer == raster.LayerAnnualFlux || layer == raster.LayerMonthlyFlux
	if v := q.Get("masked"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return renderParams{}, fmt.Errorf("invalid masked value %q", v)
		}
		masked = b
	}

	return renderParams{
		lat:     lat,
		lng:     lng,
		layer:   layer,
		month:   month,
		hour:    hour,
		palette: palette,
		masked:  masked,
		format:  q.Get("format"),
	}, nil
}

// dataLayers resolves the layer listing through the same cache key the layer
// listing endpoint uses, so a render after a listing costs no extra API call
func (s *OverlayService) dataLayers(ctx context.Context, lat, lng float64) (*solar.DataLayersResponse, error) {
	cacheKey := fmt.Sprintf("layers:%.5f,%.5f", lat, lng)

	var cached solar.DataLayersResponse
	if found, err := s.cache.Get(cacheKey, &cached); err == nil && found {
		return &cached, nil
	}

	fresh, err := s.layers.DataLayers(ctx, lat, lng, s.config.Segmentation.DataLayerRadiusMeters)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(cacheKey, fresh, s.config.Cache.LayersTTL, "solar_api"); err != nil {
		log.Printf("Failed to cache data layers: %v", err)
	}

	return fresh, nil
}

// layerURL picks the download URL for a layer kind. Hourly shade ships one
// file per month.
func layerURL(layers *solar.DataLayersResponse, layer string, month int) (string, error) {
	switch layer {
	case raster.LayerDSM:
		return layers.DsmURL, nil
	case raster.LayerRGB:
		return layers.RgbURL, nil
	case raster.LayerMask:
		return layers.MaskURL, nil
	case raster.LayerAnnualFlux:
		return layers.AnnualFluxURL, nil
	case raster.LayerMonthlyFlux:
		return layers.MonthlyFluxURL, nil
	case raster.LayerHourlyShade:
		if len(layers.HourlyShadeURLs) == 0 {
			return "", nil
		}
		if month < 0 {
			month = 0
		}
		if month >= len(layers.HourlyShadeURLs) {
			month = len(layers.HourlyShadeURLs) - 1
		}
		return layers.HourlyShadeURLs[month], nil
	}
	return "", fmt.Errorf("unknown layer %q", layer)
}

// errLayerUnavailable marks layers the Solar API did not provide for this
// location
type errLayerUnavailable string

func (e errLayerUnavailable) Error() string {
	return fmt.Sprintf("layer %q not available for this location", string(e))
}

func (s *OverlayService) fetchGrid(ctx context.Context, layers *solar.DataLayersResponse, layer string, month int, lat, lng float64) (*raster.Grid, error) {
	u, err := layerURL(layers, layer, month)
	if err != nil {
		return nil, err
	}
	if u == "" {
		return nil, errLayerUnavailable(layer)
	}

	data, err := s.layers.FetchLayer(ctx, u)
	if err != nil {
		return nil, err
	}

	grid, err := raster.DecodeGeoTIFF(data, raster.GeoTIFFOptions{
		FallbackZone:     raster.ZoneFromLongitude(lng),
		FallbackSouthern: lat < 0,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s layer: %w", layer, err)
	}
	return grid, nil
}

func (s *OverlayService) writeRenderError(w http.ResponseWriter, err error) {
	if _, ok := err.(errLayerUnavailable); ok {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeSolarError(w, err)
}

// renderLayer turns a decoded grid into an RGBA overlay. The rgb layer
// carries true color bands and bypasses the palette.
func (s *OverlayService) renderLayer(grid *raster.Grid, params renderParams) (*image.RGBA, error) {
	if params.layer == raster.LayerRGB {
		return renderTrueColor(grid)
	}
	band := raster.LayerBand(params.layer, params.month, params.hour)
	return raster.Colorize(grid, band, params.palette)
}

func renderTrueColor(grid *raster.Grid) (*image.RGBA, error) {
	if grid.BandCount() < 3 {
		return nil, fmt.Errorf("rgb layer holds %d bands, want 3", grid.BandCount())
	}
	img := image.NewRGBA(image.Rect(0, 0, grid.Width(), grid.Height()))
	for y := 0; y < grid.Height(); y++ {
		for x := 0; x < grid.Width(); x++ {
			i := img.PixOffset(x, y)
			img.Pix[i] = clampByte(grid.Sample(0, x, y))
			img.Pix[i+1] = clampByte(grid.Sample(1, x, y))
			img.Pix[i+2] = clampByte(grid.Sample(2, x, y))
			img.Pix[i+3] = 255
		}
	}
	return img, nil
}

func clampByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}

// renderInfo is the format=json response: everything a map client needs to
// place the overlay without decoding the image itself
type renderInfo struct {
	Layer  string `json:"layer"`
	Band   int    `json:"band"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Bounds struct {
		West  float64 `json:"west"`
		South float64 `json:"south"`
		East  float64 `json:"east"`
		North float64 `json:"north"`
	} `json:"bounds"`
	Ring orb.Ring `json:"ring"`
}

func (s *OverlayService) writeRenderInfo(w http.ResponseWriter, grid *raster.Grid, params renderParams) {
	bound := grid.Bound()

	info := renderInfo{
		Layer:  params.layer,
		Band:   raster.LayerBand(params.layer, params.month, params.hour),
		Width:  grid.Width(),
		Height: grid.Height(),
		Ring:   raster.BoundPolygon(bound)[0],
	}
	info.Bounds.West = bound.Min[0]
	info.Bounds.South = bound.Min[1]
	info.Bounds.East = bound.Max[0]
	info.Bounds.North = bound.Max[1]

	writeJSON(w, http.StatusOK, info)
}

// placementRequest describes a capture viewport and a raster extent
type placementRequest struct {
	CenterLat float64 `json:"centerLat"`
	CenterLng float64 `json:"centerLng"`
	Zoom      int     `json:"zoom"`
	ImageSize int     `json:"imageSize"`
	Bounds    struct {
		West  float64 `json:"west"`
		South float64 `json:"south"`
		East  float64 `json:"east"`
		North float64 `json:"north"`
	} `json:"bounds"`
}

// HandleOverlayPlacement projects a raster extent into capture pixels.
// POST /api/v1/overlay/placement
func (s *OverlayService) HandleOverlayPlacement(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req placementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Zoom <= 0 || req.ImageSize <= 0 {
		writeError(w, http.StatusBadRequest, "zoom and imageSize must be positive")
		return
	}

	projector := raster.NewOverlayProjector(raster.Viewport{
		CenterLat: req.CenterLat,
		CenterLng: req.CenterLng,
		Zoom:      req.Zoom,
		ImageSize: req.ImageSize,
	})

	placement := projector.Place(orb.Bound{
		Min: orb.Point{req.Bounds.West, req.Bounds.South},
		Max: orb.Point{req.Bounds.East, req.Bounds.North},
	})

	writeJSON(w, http.StatusOK, placement)
}

// paletteInfo is one palette as served to clients
type paletteInfo struct {
	Name  string   `json:"name"`
	Stops []string `json:"stops"`
}

// HandlePalettes lists the layer rendering palettes.
// GET /api/v1/overlay/palettes
func (s *OverlayService) HandlePalettes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}

	palettes := []raster.Palette{
		raster.PaletteIron,
		raster.PaletteRainbow,
		raster.PaletteSunlight,
		raster.PaletteBinary,
	}

	out := make([]paletteInfo, len(palettes))
	for i, p := range palettes {
		stops := make([]string, len(p.Stops))
		for j, stop := range p.Stops {
			stops[j] = fmt.Sprintf("%02X%02X%02X", stop.R, stop.G, stop.B)
		}
		out[i] = paletteInfo{Name: p.Name, Stops: stops}
	}

	writeJSON(w, http.StatusOK, out)
}
