package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Server
	Port        int    `envconfig:"PORT" default:"3000"`
	Environment string `envconfig:"ENV" default:"development"`

	// Device
	DeviceID string `envconfig:"DEVICE_ID" required:"true"`
	SiteID   string `envconfig:"SITE_ID" default:"default"`

	// Local API protection. Empty hash disables auth (development mode).
	APIKeyHash   string `envconfig:"API_KEY_HASH" default:""`
	RateLimitMax int    `envconfig:"RATE_LIMIT_MAX" default:"30"`

	// Database (device-local store)
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Embedding
	EmbedderType string `envconfig:"EMBEDDER_TYPE" default:"histogram"`
	ModelPath    string `envconfig:"MODEL_PATH" default:"./models/projection.bin"`

	// Verification thresholds
	SimilarityThreshold     float64 `envconfig:"SIMILARITY_THRESHOLD" default:"0.75"`
	DistanceThreshold       float64 `envconfig:"DISTANCE_THRESHOLD" default:"0.80"`
	LivenessThreshold       float64 `envconfig:"LIVENESS_THRESHOLD" default:"0.85"`
	IdentificationThreshold float64 `envconfig:"IDENTIFICATION_THRESHOLD" default:"0.70"`
	RequireLiveness         bool    `envconfig:"REQUIRE_LIVENESS" default:"true"`

	// Remote services
	RemoteBaseURL  string        `envconfig:"REMOTE_BASE_URL" required:"true"`
	RemoteAPIKey   string        `envconfig:"REMOTE_API_KEY" default:""`
	RemoteTimeout  time.Duration `envconfig:"REMOTE_TIMEOUT" default:"10s"`
	IdentityRemote string        `envconfig:"IDENTITY_REMOTE" default:"none"`
	AWSRegion      string        `envconfig:"AWS_REGION" default:"us-east-1"`

	// Sync
	SyncInterval time.Duration `envconfig:"SYNC_INTERVAL" default:"30s"`
	SettleDelay  time.Duration `envconfig:"SETTLE_DELAY" default:"3s"`

	// Connectivity probing
	ProbeURL      string        `envconfig:"PROBE_URL" default:""`
	ProbeInterval time.Duration `envconfig:"PROBE_INTERVAL" default:"10s"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
