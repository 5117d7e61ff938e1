package config

import (
	"testing"
	"time"
)

func TestGetModelPricing(t *testing.T) {
	cfg := Load() // Load actual config with embedded prices

	tests := []struct {
		model    string
		standard RequestPricing
		batch    RequestPricing
	}{
		{"gpt-4.1-mini", RequestPricing{Input: 0.40, Output: 1.60}, RequestPricing{Input: 0.20, Output: 0.80}},
		{"gemini-2.5-flash", RequestPricing{Input: 0.30, Output: 2.50}, RequestPricing{Input: 0.15, Output: 1.25}},
		{"llama3.2-vision", RequestPricing{}, RequestPricing{}},
		{"unknown-model-xyz", RequestPricing{}, RequestPricing{}},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			pricing := cfg.GetModelPricing(tt.model)
			if pricing.Standard != tt.standard {
				t.Errorf("standard pricing = %+v, want %+v", pricing.Standard, tt.standard)
			}
			if pricing.Batch != tt.batch {
				t.Errorf("batch pricing = %+v, want %+v", pricing.Batch, tt.batch)
			}
		})
	}
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATABASE_URL", "EMBEDDING_URL", "EMBEDDING_MODEL", "EMBEDDING_DIM",
		"MATCH_THRESHOLD", "DUPLICATE_THRESHOLD", "EMOTION_PROVIDER", "EMOTION_URL",
		"CAMERA_DEVICE", "CASCADE_PATH", "MIN_FACE_SIZE", "FRAME_INTERVAL_MS",
		"HNSW_NEIGHBORS", "WEB_PORT", "WEB_HOST", "WEB_ALLOWED_ORIGINS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg := Load()

	if cfg.Database.URL != DefaultDatabaseURL {
		t.Errorf("expected database URL %q, got %q", DefaultDatabaseURL, cfg.Database.URL)
	}
	if cfg.Database.Backend() != BackendSQLite {
		t.Errorf("expected sqlite backend, got %s", cfg.Database.Backend())
	}
	if cfg.Embedding.URL != DefaultEmbeddingURL || cfg.Embedding.Model != DefaultEmbeddingModel {
		t.Errorf("unexpected embedding config: %+v", cfg.Embedding)
	}
	if cfg.Embedding.Dim != 128 {
		t.Errorf("expected default dim 128, got %d", cfg.Embedding.Dim)
	}
	if cfg.Matching.MatchThreshold != 0.35 || cfg.Matching.DuplicateThreshold != 0.35 {
		t.Errorf("expected thresholds 0.35/0.35, got %+v", cfg.Matching)
	}
	if cfg.Emotion.Provider != "deepface" {
		t.Errorf("expected deepface provider, got %q", cfg.Emotion.Provider)
	}
	if cfg.Emotion.URL != DefaultEmbeddingURL {
		t.Errorf("expected emotion URL to default to embedding URL, got %q", cfg.Emotion.URL)
	}
	if cfg.Capture.FrameInterval != 100*time.Millisecond {
		t.Errorf("expected 100ms frame interval, got %v", cfg.Capture.FrameInterval)
	}
	if cfg.Capture.MinFaceSize != 80 || cfg.Capture.CameraDevice != 0 {
		t.Errorf("unexpected capture config: %+v", cfg.Capture)
	}
	if cfg.Audit.Neighbors != 8 {
		t.Errorf("expected 8 audit neighbors, got %d", cfg.Audit.Neighbors)
	}
	if cfg.Web.Port != 8080 || cfg.Web.Host != "0.0.0.0" || len(cfg.Web.AllowedOrigins) != 0 {
		t.Errorf("unexpected web config: %+v", cfg.Web)
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("EMBEDDING_DIM", "512")
	t.Setenv("MATCH_THRESHOLD", "0.4")
	t.Setenv("DUPLICATE_THRESHOLD", "0.2")
	t.Setenv("EMOTION_PROVIDER", "OpenAI")
	t.Setenv("CAMERA_DEVICE", "2")
	t.Setenv("FRAME_INTERVAL_MS", "250")
	t.Setenv("WEB_ALLOWED_ORIGINS", "http://a.test, http://b.test,,")

	cfg := Load()

	if cfg.Embedding.Dim != 512 {
		t.Errorf("expected dim 512, got %d", cfg.Embedding.Dim)
	}
	if cfg.Matching.MatchThreshold != 0.4 {
		t.Errorf("expected match threshold 0.4, got %v", cfg.Matching.MatchThreshold)
	}
	if cfg.Matching.DuplicateThreshold != 0.2 {
		t.Errorf("expected duplicate threshold 0.2, got %v", cfg.Matching.DuplicateThreshold)
	}
	if cfg.Emotion.Provider != "openai" {
		t.Errorf("expected provider to be lowercased, got %q", cfg.Emotion.Provider)
	}
	if cfg.Capture.CameraDevice != 2 {
		t.Errorf("expected camera 2, got %d", cfg.Capture.CameraDevice)
	}
	if cfg.Capture.FrameInterval != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %v", cfg.Capture.FrameInterval)
	}
	if len(cfg.Web.AllowedOrigins) != 2 || cfg.Web.AllowedOrigins[1] != "http://b.test" {
		t.Errorf("unexpected origins: %v", cfg.Web.AllowedOrigins)
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"EMBEDDING_DIM", "invalid"},
		{"EMBEDDING_DIM", "-100"},
		{"EMBEDDING_DIM", "0"},
		{"MATCH_THRESHOLD", "abc"},
		{"MATCH_THRESHOLD", "0"},
		{"MATCH_THRESHOLD", "3"},
		{"CAMERA_DEVICE", "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			cfg := Load()

			if cfg.Embedding.Dim != DefaultEmbeddingDim {
				t.Errorf("expected default dim, got %d", cfg.Embedding.Dim)
			}
			if cfg.Matching.MatchThreshold != DefaultMatchThreshold {
				t.Errorf("expected default match threshold, got %v", cfg.Matching.MatchThreshold)
			}
			if cfg.Capture.CameraDevice != 0 {
				t.Errorf("expected default camera, got %d", cfg.Capture.CameraDevice)
			}
		})
	}
}

func TestDatabaseConfig_Backend(t *testing.T) {
	tests := []struct {
		url     string
		backend Backend
		sqlite  string
	}{
		{"postgres://u:p@localhost/facemood", BackendPostgres, ""},
		{"postgresql://localhost/facemood", BackendPostgres, ""},
		{"mysql://u:p@localhost/facemood", BackendMariaDB, ""},
		{"mariadb://u:p@localhost/facemood", BackendMariaDB, ""},
		{"facemood.db", BackendSQLite, "facemood.db"},
		{"sqlite:///var/lib/facemood.db", BackendSQLite, "/var/lib/facemood.db"},
		{"file:data/facemood.db", BackendSQLite, "data/facemood.db"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			cfg := DatabaseConfig{URL: tt.url}
			if got := cfg.Backend(); got != tt.backend {
				t.Errorf("Backend() = %s, want %s", got, tt.backend)
			}
			if tt.backend == BackendSQLite {
				if got := cfg.SQLitePath(); got != tt.sqlite {
					t.Errorf("SQLitePath() = %q, want %q", got, tt.sqlite)
				}
			}
		})
	}
}

func TestLoad_ProviderCredentials(t *testing.T) {
	t.Setenv("OPENAI_TOKEN", "sk-test-token-123")
	t.Setenv("GEMINI_API_KEY", "gemini-api-key-456")
	t.Setenv("OLLAMA_URL", "http://localhost:11434")
	t.Setenv("OLLAMA_MODEL", "llava:13b")

	cfg := Load()

	if cfg.OpenAI.Token != "sk-test-token-123" {
		t.Errorf("expected OpenAI token, got '%s'", cfg.OpenAI.Token)
	}
	if cfg.Gemini.APIKey != "gemini-api-key-456" {
		t.Errorf("expected Gemini key, got '%s'", cfg.Gemini.APIKey)
	}
	if cfg.Ollama.URL != "http://localhost:11434" || cfg.Ollama.Model != "llava:13b" {
		t.Errorf("unexpected Ollama config: %+v", cfg.Ollama)
	}
}
