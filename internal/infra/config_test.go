package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PORT", "")
	t.Setenv("STORAGE_BASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.StorageBaseURL != "http://localhost:8080/assets" {
		t.Fatalf("StorageBaseURL mismatch: got %q", cfg.StorageBaseURL)
	}
	if cfg.StorageSigningKey != "test-secret" {
		t.Fatalf("StorageSigningKey should fall back to JWT_SECRET, got %q", cfg.StorageSigningKey)
	}
	if cfg.GeneralRateMax != 100 || cfg.GeneralRateWindow != time.Minute {
		t.Fatalf("general limiter defaults: %d/%s", cfg.GeneralRateMax, cfg.GeneralRateWindow)
	}
	if cfg.GenerationRateMax != 10 || cfg.GenerationRateWindow != time.Minute {
		t.Fatalf("generation limiter defaults: %d/%s", cfg.GenerationRateMax, cfg.GenerationRateWindow)
	}
	if cfg.JobRetention != 24*time.Hour {
		t.Fatalf("JobRetention = %s", cfg.JobRetention)
	}
	if cfg.JanitorEnabled {
		t.Fatalf("janitor must be disabled by default")
	}
	if cfg.ModeVideoEnabled || !cfg.ModeTextEnabled || !cfg.ModeImageEnabled {
		t.Fatalf("unexpected mode flags: text=%v image=%v video=%v", cfg.ModeTextEnabled, cfg.ModeImageEnabled, cfg.ModeVideoEnabled)
	}
	if cfg.ForwardSeed || cfg.ForwardSampleCount || cfg.ForwardNegativePrompt || cfg.ForwardGenerateAudio || cfg.ForwardResolution {
		t.Fatalf("parameter forwarding must default to off")
	}
	if cfg.QuotaLocation != time.UTC {
		t.Fatalf("QuotaLocation = %v", cfg.QuotaLocation)
	}
}

func TestLoadConfigInheritsPortInStorageBaseURL(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PORT", "1919")
	t.Setenv("STORAGE_BASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	expected := "http://localhost:1919/assets"
	if cfg.StorageBaseURL != expected {
		t.Fatalf("StorageBaseURL mismatch: got %q want %q", cfg.StorageBaseURL, expected)
	}
}

func TestLoadConfigSortsDurations(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("VIDEO_ALLOWED_DURATIONS", "8, 4,6")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	expected := []int{4, 6, 8}
	if len(cfg.AllowedDurations) != len(expected) {
		t.Fatalf("AllowedDurations mismatch: got %#v want %#v", cfg.AllowedDurations, expected)
	}
	for i, d := range expected {
		if cfg.AllowedDurations[i] != d {
			t.Fatalf("AllowedDurations[%d] = %d, want %d", i, cfg.AllowedDurations[i], d)
		}
	}
}

func TestLoadConfigRejectsInvalidSettings(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing secret", env: map[string]string{"JWT_SECRET": ""}},
		{name: "google without client", env: map[string]string{"AUTH_MODE": "google"}},
		{name: "vertex without project", env: map[string]string{"JWT_SECRET": "s", "PROVIDER": "vertex"}},
		{name: "gcs without bucket", env: map[string]string{"JWT_SECRET": "s", "STORAGE_BACKEND": "gcs"}},
		{name: "bad timezone", env: map[string]string{"JWT_SECRET": "s", "QUOTA_TIMEZONE": "Mars/Olympus"}},
		{name: "unknown provider", env: map[string]string{"JWT_SECRET": "s", "PROVIDER": "sora"}},
		{name: "vertex output with local storage", env: map[string]string{
			"JWT_SECRET": "s", "PROVIDER": "vertex", "VERTEX_PROJECT_ID": "p",
			"VERTEX_OUTPUT_GCS_URI": "gs://out", "STORAGE_BACKEND": "local",
		}},
		{name: "vertex output not a gcs uri", env: map[string]string{
			"JWT_SECRET": "s", "PROVIDER": "vertex", "VERTEX_PROJECT_ID": "p",
			"VERTEX_OUTPUT_GCS_URI": "s3://out", "STORAGE_BACKEND": "gcs", "GCS_BUCKET": "b",
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := LoadConfig(); err == nil {
				t.Fatalf("LoadConfig() expected error")
			}
		})
	}
}

func TestLoadConfigAcceptsVertexOutputWithGCSStorage(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("PROVIDER", "vertex")
	t.Setenv("VERTEX_PROJECT_ID", "p")
	t.Setenv("VERTEX_OUTPUT_GCS_URI", "gs://out")
	t.Setenv("STORAGE_BACKEND", "gcs")
	t.Setenv("GCS_BUCKET", "out")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.VertexOutputGCS != "gs://out" {
		t.Fatalf("VertexOutputGCS = %q", cfg.VertexOutputGCS)
	}
}

func TestJWTSettingsMatchLoadConfig(t *testing.T) {
	t.Setenv("JWT_SECRET", "  padded secret ")
	t.Setenv("JWT_ISSUER", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	jwt := LoadJWTSettings()
	if jwt.Secret != cfg.JWTSecret || jwt.Issuer != cfg.JWTIssuer {
		t.Fatalf("JWT settings diverge: %+v vs %q/%q", jwt, cfg.JWTSecret, cfg.JWTIssuer)
	}
	if jwt.Secret != "  padded secret " || jwt.Issuer != "veo-backend" {
		t.Fatalf("unexpected JWT settings: %+v", jwt)
	}
}
