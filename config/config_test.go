package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadFromDefaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{"DATABASE_URL": "postgres://localhost/app"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "5000" {
		t.Fatalf("expected default port 5000, got %s", cfg.Port)
	}
	if cfg.Env != EnvDevelopment || cfg.IsProduction() {
		t.Fatalf("expected development env, got %s", cfg.Env)
	}
	if cfg.Scoring.MaxAttempts != 3 {
		t.Fatalf("expected 3 score attempts, got %d", cfg.Scoring.MaxAttempts)
	}
	if cfg.Scoring.RetryBackoff != time.Second {
		t.Fatalf("expected 1s backoff, got %s", cfg.Scoring.RetryBackoff)
	}
	if cfg.Scoring.ComparePacing != 500*time.Millisecond {
		t.Fatalf("expected 500ms pacing, got %s", cfg.Scoring.ComparePacing)
	}
	if cfg.SessionTTL != 30*24*time.Hour {
		t.Fatalf("expected 30 day sessions, got %s", cfg.SessionTTL)
	}
	if cfg.PhotoStorage != PhotoStorageInline {
		t.Fatalf("expected inline photo storage, got %s", cfg.PhotoStorage)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "http://localhost:5000" {
		t.Fatalf("unexpected origins %v", cfg.AllowedOrigins)
	}
}

func TestLoadFromOverrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"DATABASE_URL":        "postgres://localhost/app",
		"APP_ENV":             "Production",
		"FACEPP_API_KEY":      "key",
		"FACEPP_API_SECRET":   "secret",
		"ALLOWED_ORIGINS":     "https://a.example, https://b.example ,",
		"SCORE_RETRY_BACKOFF": "250ms",
		"COMPARE_PACING":      "0s",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !cfg.IsProduction() {
		t.Fatalf("expected production env")
	}
	if got := strings.Join(cfg.AllowedOrigins, "|"); got != "https://a.example|https://b.example" {
		t.Fatalf("unexpected origins %q", got)
	}
	if cfg.Scoring.RetryBackoff != 250*time.Millisecond || cfg.Scoring.ComparePacing != 0 {
		t.Fatalf("unexpected scoring config %+v", cfg.Scoring)
	}
}

func TestLoadFromValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing database url",
			env:     map[string]string{},
			wantErr: "DATABASE_URL",
		},
		{
			name:    "production without facepp credentials",
			env:     map[string]string{"DATABASE_URL": "x", "APP_ENV": "production"},
			wantErr: "FACEPP_API_KEY",
		},
		{
			name:    "r2 without bucket",
			env:     map[string]string{"DATABASE_URL": "x", "PHOTO_STORAGE": "r2"},
			wantErr: "R2_BUCKET_NAME",
		},
		{
			name:    "unknown photo storage",
			env:     map[string]string{"DATABASE_URL": "x", "PHOTO_STORAGE": "disk"},
			wantErr: "PHOTO_STORAGE",
		},
		{
			name:    "zero attempts",
			env:     map[string]string{"DATABASE_URL": "x", "SCORE_MAX_ATTEMPTS": "0"},
			wantErr: "SCORE_MAX_ATTEMPTS",
		},
		{
			name:    "bad duration",
			env:     map[string]string{"DATABASE_URL": "x", "COMPARE_PACING": "soon"},
			wantErr: "ComparePacing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(tt.env)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
