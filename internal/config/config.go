package config

import (
	"time"
)

// Config represents the complete server configuration
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Google       GoogleConfig       `yaml:"google"`
	Segmentation SegmentationConfig `yaml:"segmentation"`
	Assessment   AssessmentConfig   `yaml:"assessment"`
	Cache        CacheConfig        `yaml:"cache"`
}

// ServerConfig holds server-specific settings
type ServerConfig struct {
	Port        int      `yaml:"port"`
	CorsOrigins []string `yaml:"cors_origins"`
}

// GoogleConfig holds the Google API credentials and capture geometry. The
// same key serves the Solar, Geocoding and Static Maps APIs.
type GoogleConfig struct {
	APIKey  string        `yaml:"api_key"`
	Capture CaptureConfig `yaml:"capture"`
}

// CaptureConfig controls satellite capture geometry. Zoom and image size
// feed directly into the pixel reprojection math; change them together.
type CaptureConfig struct {
	Zoom      int    `yaml:"zoom"`
	ImageSize int    `yaml:"image_size"`
	Format    string `yaml:"format"`
}

// SegmentationConfig holds the per-provider credentials
type SegmentationConfig struct {
	Replicate ReplicateConfig `yaml:"replicate"`
	Roboflow  RoboflowConfig  `yaml:"roboflow"`
	// DataLayerRadiusMeters is the radius requested from the Solar API
	// data layers endpoint
	DataLayerRadiusMeters float64 `yaml:"data_layer_radius_meters"`
}

// ReplicateConfig holds Replicate model settings for ML segmentation
type ReplicateConfig struct {
	APIToken     string `yaml:"api_token"`
	ModelVersion string `yaml:"model_version"`
}

// RoboflowConfig holds hosted detection model settings
type RoboflowConfig struct {
	APIKey  string `yaml:"api_key"`
	ModelID string `yaml:"model_id"`
}

// AssessmentConfig holds summary generation settings
type AssessmentConfig struct {
	OpenAIAPIKey string        `yaml:"openai_api_key"`
	Model        string        `yaml:"model"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
}

// CacheConfig holds cache tuning
type CacheConfig struct {
	InsightsTTL     time.Duration `yaml:"insights_ttl"`
	LayersTTL       time.Duration `yaml:"layers_ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			CorsOrigins: []string{"*"},
		},
		Google: GoogleConfig{
			Capture: CaptureConfig{
				Zoom:      20,
				ImageSize: 640,
				Format:    "png",
			},
		},
		Segmentation: SegmentationConfig{
			Roboflow: RoboflowConfig{
				ModelID: "roof-segmentation/3",
			},
			DataLayerRadiusMeters: 50,
		},
		Assessment: AssessmentConfig{
			Model:    "gpt-4o-mini",
			CacheTTL: 24 * time.Hour,
		},
		Cache: CacheConfig{
			// Imagery and insights change on survey cadence, not hourly
			InsightsTTL:     6 * time.Hour,
			LayersTTL:       6 * time.Hour,
			CleanupInterval: 15 * time.Minute,
		},
	}
}
