package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(*Config) bool
	}{
		{
			name: "loads with all required vars",
			envVars: map[string]string{
				"PORT":            "8080",
				"ENV":             "production",
				"DEVICE_ID":       "kiosk-01",
				"DATABASE_URL":    "postgres://localhost/ponto",
				"REMOTE_BASE_URL": "https://api.example.com",
			},
			wantErr: false,
			check: func(c *Config) bool {
				return c.Port == 8080 &&
					c.Environment == "production" &&
					c.DeviceID == "kiosk-01" &&
					c.RemoteBaseURL == "https://api.example.com"
			},
		},
		{
			name: "uses defaults when optional vars missing",
			envVars: map[string]string{
				"DEVICE_ID":       "kiosk-01",
				"DATABASE_URL":    "postgres://localhost/ponto",
				"REMOTE_BASE_URL": "https://api.example.com",
			},
			wantErr: false,
			check: func(c *Config) bool {
				return c.Port == 3000 &&
					c.Environment == "development" &&
					c.EmbedderType == "histogram" &&
					c.SimilarityThreshold == 0.75 &&
					c.DistanceThreshold == 0.80 &&
					c.LivenessThreshold == 0.85 &&
					c.SyncInterval == 30*time.Second
			},
		},
		{
			name: "fails when DEVICE_ID missing",
			envVars: map[string]string{
				"DATABASE_URL":    "postgres://localhost/ponto",
				"REMOTE_BASE_URL": "https://api.example.com",
			},
			wantErr: true,
			check:   nil,
		},
		{
			name: "fails when DATABASE_URL missing",
			envVars: map[string]string{
				"DEVICE_ID":       "kiosk-01",
				"REMOTE_BASE_URL": "https://api.example.com",
			},
			wantErr: true,
			check:   nil,
		},
		{
			name: "fails when REMOTE_BASE_URL missing",
			envVars: map[string]string{
				"DEVICE_ID":    "kiosk-01",
				"DATABASE_URL": "postgres://localhost/ponto",
			},
			wantErr: true,
			check:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg, err := Load()

			if tt.wantErr {
				if err == nil {
					t.Errorf("Load() expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("Load() unexpected error: %v", err)
			}

			if tt.check != nil && !tt.check(cfg) {
				t.Errorf("Load() config did not match expectations: %+v", cfg)
			}
		})
	}
}

func TestEnvironmentHelpers(t *testing.T) {
	dev := &Config{Environment: "development"}
	prod := &Config{Environment: "production"}

	if !dev.IsDevelopment() || dev.IsProduction() {
		t.Errorf("development helpers wrong")
	}
	if !prod.IsProduction() || prod.IsDevelopment() {
		t.Errorf("production helpers wrong")
	}
}
