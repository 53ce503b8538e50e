package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"

	"github.com/dpup/prefab"

	"github.com/roofsight/roofsight/server/internal/cache"
	"github.com/roofsight/roofsight/server/internal/clients/geocode"
	"github.com/roofsight/roofsight/server/internal/clients/replicate"
	"github.com/roofsight/roofsight/server/internal/clients/roboflow"
	"github.com/roofsight/roofsight/server/internal/clients/solar"
	"github.com/roofsight/roofsight/server/internal/clients/staticmap"
	"github.com/roofsight/roofsight/server/internal/config"
	"github.com/roofsight/roofsight/server/internal/lib/assess"
	"github.com/roofsight/roofsight/server/internal/lib/geo"
	"github.com/roofsight/roofsight/server/internal/lib/segmentation"
	"github.com/roofsight/roofsight/server/internal/services"
)

func main() {
	// Load configuration using Prefab's config system
	appConfig := loadConfig()

	// Initialize cache with background cleanup
	cacheInstance := cache.New()
	cacheInstance.StartPeriodicCleanup(context.Background(), appConfig.Cache.CleanupInterval)

	// Initialize external API clients. One Google key serves the Solar,
	// Geocoding and Static Maps APIs.
	solarClient := solar.NewClient(appConfig.Google.APIKey)
	geocodeClient := geocode.NewClient(appConfig.Google.APIKey)
	staticmapClient := staticmap.NewClient(appConfig.Google.APIKey)
	replicateClient := replicate.NewClient(appConfig.Segmentation.Replicate.APIToken)
	roboflowClient := roboflow.NewClient(
		appConfig.Segmentation.Roboflow.APIKey,
		appConfig.Segmentation.Roboflow.ModelID,
	)

	geoUtils := geo.NewGeoUtils()
	captureOpts := staticmap.CaptureOptions{
		Zoom:      appConfig.Google.Capture.Zoom,
		ImageSize: appConfig.Google.Capture.ImageSize,
		Scale:     1,
		Format:    appConfig.Google.Capture.Format,
	}

	// Register every segmentation backend; availability is decided per run
	// from configured credentials
	coordinator := segmentation.NewCoordinator([]segmentation.Provider{
		segmentation.NewSolarProvider(solarClient, geoUtils),
		segmentation.NewSAMProvider(replicateClient, staticmapClient, geoUtils,
			appConfig.Segmentation.Replicate.ModelVersion, captureOpts),
		segmentation.NewRoboflowProvider(roboflowClient, staticmapClient, geoUtils, captureOpts),
		segmentation.NewOpenCVProvider(staticmapClient, geoUtils, captureOpts),
		segmentation.NewManualProvider(geoUtils),
	})

	// Summaries fall back to templates when no OpenAI key is configured
	enhancer := assess.NewCachedSummaryEnhancer(
		assess.NewSummaryEnhancer(appConfig.Assessment.OpenAIAPIKey, appConfig.Assessment.Model),
		cacheInstance,
		appConfig.Assessment.CacheTTL,
	)
	if appConfig.Assessment.OpenAIAPIKey != "" {
		log.Printf("OpenAI assessment summaries enabled (model: %s)", appConfig.Assessment.Model)
	} else {
		log.Printf("OpenAI key not configured, assessment summaries use templates")
	}

	segmentationService := services.NewSegmentationService(
		coordinator, solarClient, geocodeClient, enhancer, geoUtils, cacheInstance, appConfig)
	traceService := services.NewTraceService(coordinator, geoUtils)
	overlayService := services.NewOverlayService(solarClient, cacheInstance, appConfig)

	log.Printf("Roof segmentation server starting")

	// Server configuration (port, etc.) is loaded from prefab.yaml/env vars
	server := prefab.New(
		prefab.WithHTTPHandlerFunc("/", homepageHandler),
		prefab.WithHTTPHandlerFunc("/api/v1/segment", segmentationService.HandleSegment),
		prefab.WithHTTPHandlerFunc("/api/v1/session", segmentationService.HandleSession),
		prefab.WithHTTPHandlerFunc("/api/v1/session/toggle", segmentationService.HandleToggleSegment),
		prefab.WithHTTPHandlerFunc("/api/v1/session/export.kml", segmentationService.HandleExportKML),
		prefab.WithHTTPHandlerFunc("/api/v1/geocode", segmentationService.HandleGeocode),
		prefab.WithHTTPHandlerFunc("/api/v1/layers", segmentationService.HandleLayers),
		prefab.WithHTTPHandlerFunc("/api/v1/assessment", segmentationService.HandleAssessment),
		prefab.WithHTTPHandlerFunc("/api/v1/trace", traceService.HandleTraceSocket),
		prefab.WithHTTPHandlerFunc("/api/v1/trace/polyline", traceService.HandleTracePolyline),
		prefab.WithHTTPHandlerFunc("/api/v1/overlay/render", overlayService.HandleLayerRender),
		prefab.WithHTTPHandlerFunc("/api/v1/overlay/placement", overlayService.HandleOverlayPlacement),
		prefab.WithHTTPHandlerFunc("/api/v1/overlay/palettes", overlayService.HandlePalettes),
	)

	// Start the server (blocks until shutdown)
	if err := server.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// loadConfig loads configuration using Prefab's config system
// Configuration is loaded from prefab.yaml and environment variables with PF__ prefix
func loadConfig() *config.Config {
	appConfig := config.DefaultConfig()

	// Unmarshal specific sections from Prefab's config using exact key paths
	if err := prefab.Config.Unmarshal("google", &appConfig.Google); err != nil {
		log.Fatalf("Failed to unmarshal google section: %v", err)
	}

	if err := prefab.Config.Unmarshal("segmentation", &appConfig.Segmentation); err != nil {
		log.Fatalf("Failed to unmarshal segmentation section: %v", err)
	}

	if err := prefab.Config.Unmarshal("assessment", &appConfig.Assessment); err != nil {
		log.Fatalf("Failed to unmarshal assessment section: %v", err)
	}

	if err := prefab.Config.Unmarshal("cache", &appConfig.Cache); err != nil {
		log.Fatalf("Failed to unmarshal cache section: %v", err)
	}

	return appConfig
}

// homepageHandler serves a simple HTML homepage at the server root
func homepageHandler(w http.ResponseWriter, r *http.Request) {
	// Only handle the root path
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	html := `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>roofsight</title>
    <style>
        body {
            font-family: 'Courier New', Consolas, monospace;
            background: #000;
            color: #0f0;
            padding: 20px;
            line-height: 1.4;
        }
        a { color: #0ff; text-decoration: none; }
        a:hover { text-decoration: underline; }
        pre { margin: 0; }
        .header { color: #ff0; }
        .section { margin: 20px 0; }
    </style>
</head>
<body>
<pre>
<span class="header">roofsight</span>

Rooftop solar potential API server. Segments roof outlines from satellite
imagery and estimates usable panel area.

<span class="header">API Endpoints:</span>

Segmentation:
  POST /api/v1/segment               - Run a segmentation provider
  GET  /api/v1/session               - Current segmentation session
  POST /api/v1/session/toggle        - Include/exclude a roof segment
  GET  /api/v1/session/export.kml    - Export session as KML

Manual tracing:
  WS   /api/v1/trace                 - Interactive roof tracing
  POST /api/v1/trace/polyline        - Trace from an encoded polyline

Layers &amp; overlays:
  GET  /api/v1/layers                - Solar data layers for a location
  GET  /api/v1/overlay/render        - Render a data layer as a PNG overlay
  POST /api/v1/overlay/placement     - Project a layer onto a capture
  GET  /api/v1/overlay/palettes      - Layer rendering palettes

Assessment:
  GET  /api/v1/assessment            - Panel estimate and summary
  GET  /api/v1/geocode               - Resolve an address

<span class="header">Data Sources:</span>
  • Google Solar API       - Building insights and data layers
  • Google Static Maps     - Satellite captures
  • Replicate / Roboflow   - ML roof segmentation

<span class="header">Example Usage:</span>
  curl -X POST /api/v1/segment -d '{"method": "solar", "lat": 38.1327, "lng": -120.4606}'
  curl /api/v1/assessment
</pre>
</body>
</html>`

	if _, err := fmt.Fprint(w, html); err != nil {
		slog.Error("Failed to write homepage HTML", "error", err)
	}
}
