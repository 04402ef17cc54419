package storage

import (
	"testing"
)

func TestConfig_Enabled(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{
			name:     "empty config",
			config:   Config{},
			expected: false,
		},
		{
			name: "only endpoint set",
			config: Config{
				Endpoint: "http://localhost:9000",
			},
			expected: false,
		},
		{
			name: "endpoint and access key set",
			config: Config{
				Endpoint:  "http://localhost:9000",
				AccessKey: "minioadmin",
			},
			expected: false,
		},
		{
			name: "all required fields set",
			config: Config{
				Endpoint:  "http://localhost:9000",
				AccessKey: "minioadmin",
				SecretKey: "minioadmin",
			},
			expected: true,
		},
		{
			name: "missing secret key",
			config: Config{
				Endpoint:  "http://localhost:9000",
				AccessKey: "minioadmin",
				SecretKey: "",
			},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.config.Enabled()
			if result != tt.expected {
				t.Errorf("Config.Enabled() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestNewConfig_Defaults(t *testing.T) {
	t.Setenv("STORAGE_ENDPOINT", "http://localhost:9000")
	t.Setenv("STORAGE_ACCESS_KEY", "minioadmin")
	t.Setenv("STORAGE_SECRET_KEY", "minioadmin")
	t.Setenv("STORAGE_REGION", "")
	t.Setenv("STORAGE_BUCKET_SNAPSHOTS", "")

	cfg := NewConfig()

	if cfg.Region != "us-east-1" {
		t.Errorf("Region = %q, want us-east-1", cfg.Region)
	}
	if cfg.BucketSnapshots != "memory-snapshots" {
		t.Errorf("BucketSnapshots = %q, want memory-snapshots", cfg.BucketSnapshots)
	}
	if !cfg.Enabled() {
		t.Error("Enabled() = false, want true")
	}
}

func TestService_Enabled(t *testing.T) {
	tests := []struct {
		name     string
		service  Service
		expected bool
	}{
		{
			name:     "nil client",
			service:  Service{client: nil},
			expected: false,
		},
		{
			name:     "empty service",
			service:  Service{},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.service.Enabled()
			if result != tt.expected {
				t.Errorf("Service.Enabled() = %v, want %v", result, tt.expected)
			}
		})
	}
}
