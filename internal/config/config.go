package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed prices.yaml
var pricesYAML []byte

// Default values used when the corresponding environment variable is unset or invalid.
const (
	DefaultDatabaseURL        = "facemood.db"
	DefaultEmbeddingURL       = "http://localhost:5005"
	DefaultEmbeddingModel     = "Facenet"
	DefaultEmbeddingDim       = 128
	DefaultMatchThreshold     = 0.35
	DefaultDuplicateThreshold = 0.35
	DefaultEmotionProvider    = "deepface"
	DefaultCascadePath        = "haarcascade_frontalface_default.xml"
	DefaultMinFaceSize        = 80
	DefaultFrameIntervalMS    = 100
)

type Config struct {
	Database  DatabaseConfig
	Embedding EmbeddingConfig
	Matching  MatchingConfig
	Emotion   EmotionConfig
	OpenAI    OpenAIConfig
	Gemini    GeminiConfig
	Ollama    OllamaConfig
	Capture   CaptureConfig
	Audit     AuditConfig
	Web       WebConfig
	Prices    PricesConfig
}

type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
	BackendMariaDB  Backend = "mariadb"
)

type DatabaseConfig struct {
	URL          string // postgres://..., mysql://... or a SQLite file path
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

// Backend selects the storage backend from the URL scheme.
func (c *DatabaseConfig) Backend() Backend {
	switch {
	case strings.HasPrefix(c.URL, "postgres://"), strings.HasPrefix(c.URL, "postgresql://"):
		return BackendPostgres
	case strings.HasPrefix(c.URL, "mysql://"), strings.HasPrefix(c.URL, "mariadb://"):
		return BackendMariaDB
	}
	return BackendSQLite
}

// SQLitePath returns the database file path for the SQLite backend.
func (c *DatabaseConfig) SQLitePath() string {
	path := strings.TrimPrefix(c.URL, "sqlite://")
	return strings.TrimPrefix(path, "file:")
}

type EmbeddingConfig struct {
	URL   string // defaults to http://localhost:5005
	Model string // defaults to Facenet
	Dim   int    // defaults to 128
}

type MatchingConfig struct {
	MatchThreshold     float64 // recognition accepts distance < MatchThreshold
	DuplicateThreshold float64 // enrollment rejects distance < DuplicateThreshold
}

type EmotionConfig struct {
	Provider string // deepface, openai, gemini, ollama
	URL      string // DeepFace service, defaults to the embedding URL
}

type OpenAIConfig struct {
	Token string
	Model string
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type OllamaConfig struct {
	URL   string // defaults to http://localhost:11434
	Model string // defaults to llama3.2-vision:11b
}

type CaptureConfig struct {
	CameraDevice  int
	CascadePath   string
	MinFaceSize   int
	FrameInterval time.Duration
}

type AuditConfig struct {
	Neighbors int    // HNSW candidates inspected per identity
	IndexPath string // optional path to persist the audit HNSW graph
}

type WebConfig struct {
	Port           int
	Host           string
	AllowedOrigins []string
}

type PricesConfig struct {
	Models map[string]ModelPricing `yaml:"models"`
}

type ModelPricing struct {
	Standard RequestPricing `yaml:"standard"`
	Batch    RequestPricing `yaml:"batch"`
}

type RequestPricing struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envNonNegativeInt is like envInt but accepts zero (device indexes).
func envNonNegativeInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	return defaultVal
}

// envThreshold reads a cosine distance threshold in (0, 2].
// Returns the default value if the env var is unset, empty, or out of range.
func envThreshold(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f <= 2 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func Load() *Config {
	var prices PricesConfig
	if err := yaml.Unmarshal(pricesYAML, &prices); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded prices.yaml: " + err.Error())
	}

	embeddingURL := envString("EMBEDDING_URL", DefaultEmbeddingURL)

	return &Config{
		Database: DatabaseConfig{
			URL:          envString("DATABASE_URL", DefaultDatabaseURL),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Embedding: EmbeddingConfig{
			URL:   embeddingURL,
			Model: envString("EMBEDDING_MODEL", DefaultEmbeddingModel),
			Dim:   envInt("EMBEDDING_DIM", DefaultEmbeddingDim),
		},
		Matching: MatchingConfig{
			MatchThreshold:     envThreshold("MATCH_THRESHOLD", DefaultMatchThreshold),
			DuplicateThreshold: envThreshold("DUPLICATE_THRESHOLD", DefaultDuplicateThreshold),
		},
		Emotion: EmotionConfig{
			Provider: strings.ToLower(envString("EMOTION_PROVIDER", DefaultEmotionProvider)),
			URL:      envString("EMOTION_URL", embeddingURL),
		},
		OpenAI: OpenAIConfig{
			Token: os.Getenv("OPENAI_TOKEN"),
			Model: envString("OPENAI_MODEL", "gpt-4.1-mini"),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
			Model:  envString("GEMINI_MODEL", "gemini-2.5-flash"),
		},
		Ollama: OllamaConfig{
			URL:   os.Getenv("OLLAMA_URL"),
			Model: os.Getenv("OLLAMA_MODEL"),
		},
		Capture: CaptureConfig{
			CameraDevice:  envNonNegativeInt("CAMERA_DEVICE", 0),
			CascadePath:   envString("CASCADE_PATH", DefaultCascadePath),
			MinFaceSize:   envInt("MIN_FACE_SIZE", DefaultMinFaceSize),
			FrameInterval: time.Duration(envInt("FRAME_INTERVAL_MS", DefaultFrameIntervalMS)) * time.Millisecond,
		},
		Audit: AuditConfig{
			Neighbors: envInt("HNSW_NEIGHBORS", 8),
			IndexPath: os.Getenv("HNSW_INDEX_PATH"),
		},
		Web: WebConfig{
			Port:           envInt("WEB_PORT", 8080),
			Host:           envString("WEB_HOST", "0.0.0.0"),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		Prices: prices,
	}
}

// GetModelPricing returns pricing for a specific model, with fallback defaults
func (c *Config) GetModelPricing(modelName string) ModelPricing {
	if pricing, ok := c.Prices.Models[modelName]; ok {
		return pricing
	}
	// Return zero pricing if model not found
	return ModelPricing{}
}
