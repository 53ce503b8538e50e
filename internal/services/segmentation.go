package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/roofsight/roofsight/server/internal/cache"
	"github.com/roofsight/roofsight/server/internal/clients/geocode"
	"github.com/roofsight/roofsight/server/internal/clients/solar"
	"github.com/roofsight/roofsight/server/internal/config"
	"github.com/roofsight/roofsight/server/internal/lib/assess"
	"github.com/roofsight/roofsight/server/internal/lib/export"
	"github.com/roofsight/roofsight/server/internal/lib/geo"
	"github.com/roofsight/roofsight/server/internal/lib/segmentation"
)

// SolarAPI is the subset of the Solar API client the service layer needs.
type SolarAPI interface {
	BuildingInsights(ctx context.Context, lat, lng float64) (*solar.BuildingInsightsResponse, error)
	DataLayers(ctx context.Context, lat, lng, radiusMeters float64) (*solar.DataLayersResponse, error)
}

// Geocoder resolves street addresses to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*geocode.Location, error)
}

// SegmentationService exposes the segmentation workflow over HTTP: running
// providers, reading and editing the session, and deriving assessments.
type SegmentationService struct {
	coordinator   *segmentation.Coordinator
	solarClient   SolarAPI
	geocodeClient Geocoder
	enhancer      *assess.CachedSummaryEnhancer
	geoUtils      geo.GeoUtils
	cache         *cache.Cache
	config        *config.Config
}

// NewSegmentationService creates the segmentation HTTP service
func NewSegmentationService(
	coordinator *segmentation.Coordinator,
	solarClient SolarAPI,
	geocodeClient Geocoder,
	enhancer *assess.CachedSummaryEnhancer,
	geoUtils geo.GeoUtils,
	cacheInstance *cache.Cache,
	cfg *config.Config,
) *SegmentationService {
	return &SegmentationService{
		coordinator:   coordinator,
		solarClient:   solarClient,
		geocodeClient: geocodeClient,
		enhancer:      enhancer,
		geoUtils:      geoUtils,
		cache:         cacheInstance,
		config:        cfg,
	}
}

// segmentRequest starts a segmentation run. Either coordinates or an address
// must be present; an address is geocoded first.
type segmentRequest struct {
	Method    string   `json:"method"`
	Latitude  *float64 `json:"lat,omitempty"`
	Longitude *float64 `json:"lng,omitempty"`
	Address   string   `json:"address,omitempty"`
}

// HandleSegment runs a segmentation provider for a location.
// POST /api/v1/segment
func (s *SegmentationService) HandleSegment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req segmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	lat, lng, err := s.resolveLocation(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	method := segmentation.Method(req.Method)
	log.Printf("Segmentation requested: method=%s lat=%.5f lng=%.5f", method, lat, lng)

	result, err := s.coordinator.SegmentRoof(r.Context(), method, lat, lng)
	switch {
	case errors.Is(err, segmentation.ErrAlreadyCalculating):
		writeError(w, http.StatusConflict, "a segmentation run is already in progress")
		return
	case errors.Is(err, segmentation.ErrUnknownMethod):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if result.Failed() {
		log.Printf("Segmentation failed: method=%s error=%s", method, result.Error)
	}

	writeJSON(w, http.StatusOK, s.coordinator.Session())
}

// HandleSession reads or clears the active session.
// GET/DELETE /api/v1/session
func (s *SegmentationService) HandleSession(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.coordinator.Session())
	case http.MethodDelete:
		s.coordinator.Reset()
		writeJSON(w, http.StatusOK, s.coordinator.Session())
	default:
		writeError(w, http.StatusMethodNotAllowed, "GET or DELETE required")
	}
}

// HandleToggleSegment flips a segment in or out of the area totals.
// POST /api/v1/session/toggle?index=N
func (s *SegmentationService) HandleToggleSegment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	index, err := strconv.Atoi(r.URL.Query().Get("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "index query parameter required")
		return
	}

	session, err := s.coordinator.ToggleSegment(index)
	if err != nil {
		if errors.Is(err, segmentation.ErrNoActiveResult) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// HandleExportKML streams the session as a KML document.
// GET /api/v1/session/export.kml
func (s *SegmentationService) HandleExportKML(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}

	session := s.coordinator.Session()
	if session.State != segmentation.StatePopulated {
		writeError(w, http.StatusConflict, "no populated session to export")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.google-earth.kml+xml")
	w.Header().Set("Content-Disposition", `attachment; filename="roof-segmentation.kml"`)
	if err := export.WriteSessionKML(w, session); err != nil {
		log.Printf("KML export failed: %v", err)
	}
}

// HandleGeocode resolves an address to coordinates.
// GET /api/v1/geocode?address=...
func (s *SegmentationService) HandleGeocode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}

	address := r.URL.Query().Get("address")
	if address == "" {
		writeError(w, http.StatusBadRequest, "address query parameter required")
		return
	}

	location, err := s.geocodeClient.Geocode(r.Context(), address)
	if err != nil {
		if errors.Is(err, geocode.ErrNoResults) {
			writeError(w, http.StatusNotFound, "address not found")
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, location)
}

// HandleLayers lists raster data layers for a location, cached per rounded
// coordinate so repeated pans stay off the metered API.
// GET /api/v1/layers?lat=..&lng=..
func (s *SegmentationService) HandleLayers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}

	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if errLat != nil || errLng != nil {
		writeError(w, http.StatusBadRequest, "lat and lng query parameters required")
		return
	}

	cacheKey := fmt.Sprintf("layers:%.5f,%.5f", lat, lng)
	var layers solar.DataLayersResponse
	if found, err := s.cache.Get(cacheKey, &layers); err == nil && found {
		writeJSON(w, http.StatusOK, layers)
		return
	}

	fresh, err := s.solarClient.DataLayers(r.Context(), lat, lng, s.config.Segmentation.DataLayerRadiusMeters)
	if err != nil {
		writeSolarError(w, err)
		return
	}

	if err := s.cache.Set(cacheKey, fresh, s.config.Cache.LayersTTL, "solar_api"); err != nil {
		log.Printf("Failed to cache data layers: %v", err)
	}

	writeJSON(w, http.StatusOK, fresh)
}

// HandleAssessment generates a summary of the current session.
// GET /api/v1/assessment
func (s *SegmentationService) HandleAssessment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}

	session := s.coordinator.Session()
	if session.State != segmentation.StatePopulated || session.Result == nil {
		writeError(w, http.StatusConflict, "no populated session to assess")
		return
	}

	input := s.assessmentInput(r.Context(), session)

	summary, err := s.enhancer.Summarize(r.Context(), input)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Input   assess.Input   `json:"input"`
		Summary assess.Summary `json:"summary"`
	}{Input: input, Summary: summary})
}

// assessmentInput assembles the summary input, enriching with cached
// building insights when the Solar API has coverage
func (s *SegmentationService) assessmentInput(ctx context.Context, session segmentation.SessionSnapshot) assess.Input {
	input := assess.Input{
		Method:         string(session.Method),
		Location:       session.Location,
		TotalAreaM2:    session.Result.TotalAreaM2,
		IncludedAreaM2: session.IncludedAreaM2,
		SegmentCount:   len(session.Result.Segments),
		ExcludedCount:  len(session.ExcludedIndices),
		Confidence:     session.Result.Confidence,
		Simulated:      session.Result.Simulated,
	}

	panelW, panelH, panelWatts := 0.0, 0.0, 0.0
	maxPanels := 0
	if insights, err := s.buildingInsights(ctx, session.Location.Latitude, session.Location.Longitude); err == nil {
		input.SunshineHoursYr = insights.SolarPotential.MaxSunshineHoursPerYear
		panelW = insights.SolarPotential.PanelWidthMeters
		panelH = insights.SolarPotential.PanelHeightMeters
		panelWatts = insights.SolarPotential.PanelCapacityWatts
		maxPanels = insights.SolarPotential.MaxArrayPanelsCount
	}

	input.Panels = assess.EstimatePanels(session.IncludedAreaM2, panelW, panelH, panelWatts, maxPanels)
	return input
}

// buildingInsights fetches insights through the cache
func (s *SegmentationService) buildingInsights(ctx context.Context, lat, lng float64) (*solar.BuildingInsightsResponse, error) {
	cacheKey := fmt.Sprintf("insights:%.5f,%.5f", lat, lng)

	var cached solar.BuildingInsightsResponse
	if found, err := s.cache.Get(cacheKey, &cached); err == nil && found {
		return &cached, nil
	}

	insights, err := s.solarClient.BuildingInsights(ctx, lat, lng)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(cacheKey, insights, s.config.Cache.InsightsTTL, "solar_api"); err != nil {
		log.Printf("Failed to cache building insights: %v", err)
	}

	return insights, nil
}

// resolveLocation extracts coordinates from a segment request, geocoding the
// address when no coordinates were given
func (s *SegmentationService) resolveLocation(ctx context.Context, req segmentRequest) (float64, float64, error) {
	if req.Latitude != nil && req.Longitude != nil {
		if _, err := geo.NewPoint(*req.Latitude, *req.Longitude); err != nil {
			return 0, 0, err
		}
		return *req.Latitude, *req.Longitude, nil
	}

	if req.Address == "" {
		return 0, 0, errors.New("either lat/lng or address is required")
	}

	location, err := s.geocodeClient.Geocode(ctx, req.Address)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to geocode address: %w", err)
	}

	return location.Latitude, location.Longitude, nil
}

// writeSolarError maps Solar API client errors onto HTTP statuses
func writeSolarError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, solar.ErrAPIKeyNotConfigured):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, solar.ErrAPIKeyInvalid), errors.Is(err, solar.ErrAPIKeyForbidden):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, solar.ErrNoBuildingData):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, solar.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
