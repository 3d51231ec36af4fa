// Package config loads the tourism RAG service's runtime configuration
// from environment variables (optionally populated from a .env file via
// godotenv), with an optional config.yaml overlay for fields better
// suited to structured editing (penalty weights, session timings).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EmbeddingConfig points at an HTTP embedding endpoint compatible with
// the OpenAI embeddings request/response shape.
type EmbeddingConfig struct {
	BaseURL   string `yaml:"base_url"`
	Path      string `yaml:"path"`
	APIKey    string `yaml:"-"`
	APIHeader string `yaml:"api_header"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
	Timeout   int    `yaml:"timeout_seconds"`
	// BatchSize bounds how many chunk texts are sent per embedding
	// request during ingestion.
	BatchSize int `yaml:"batch_size"`
	// CacheCapacity bounds the process-wide embedding-reuse LRU.
	// Re-ingesting an unchanged
	// chunk, or re-embedding a query already seen this process, hits
	// the cache instead of the network.
	CacheCapacity int `yaml:"cache_capacity"`
}

// OpenAIConfig configures the OpenAI chat provider.
type OpenAIConfig struct {
	APIKey  string `yaml:"-"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// AnthropicConfig configures the Anthropic chat provider.
type AnthropicConfig struct {
	APIKey    string `yaml:"-"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// GoogleConfig configures the Google Gemini chat provider.
type GoogleConfig struct {
	APIKey string `yaml:"-"`
	Model  string `yaml:"model"`
}

// LLMConfig selects and configures the active chat provider.
type LLMConfig struct {
	Provider  string          `yaml:"provider"` // "openai" | "anthropic" | "google"
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	Google    GoogleConfig    `yaml:"google"`
}

// PostgresConfig configures the durable session store.
type PostgresConfig struct {
	DSN         string `yaml:"-"`
	MaxConns    int32  `yaml:"max_conns"`
	MaxIdleTime int    `yaml:"max_idle_minutes"`
}

// RedisConfig configures the session-lock client.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"-"`
	DB       int    `yaml:"db"`
}

// QdrantConfig configures the primary vector store backend.
type QdrantConfig struct {
	DSN        string `yaml:"dsn"`
	Collection string `yaml:"collection"`
	Dimension  int    `yaml:"dimension"`
	Metric     string `yaml:"metric"` // "cosine" | "dot" | "euclid"
}

// ChunkingConfig bounds the chunker's token window.
type ChunkingConfig struct {
	MaxTokens int     `yaml:"max_tokens"`
	Overlap   float64 `yaml:"overlap"`
}

// RetrievalConfig holds the retriever's tunable penalty weights.
type RetrievalConfig struct {
	DefaultK            int     `yaml:"default_k"`
	OverfetchFactor      int     `yaml:"overfetch_factor"`
	FallbackThreshold    int     `yaml:"fallback_threshold"`
	PriceOvershootWeight float64 `yaml:"price_overshoot_weight"`
	MonthAdjacentWeight  float64 `yaml:"month_adjacent_weight"`
	MonthFarWeight       float64 `yaml:"month_far_weight"`
	DurationWeight       float64 `yaml:"duration_weight"`
	CategoryWeight       float64 `yaml:"category_weight"`
	FamilyConflictWeight float64 `yaml:"family_conflict_weight"`
}

// SessionConfig controls session ring size and idle expiry.
type SessionConfig struct {
	RingSize    int           `yaml:"ring_size"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	LockTTL     time.Duration `yaml:"lock_ttl"`
}

// PDFConfig selects the extractor backend (currently only "ledongthuc").
type PDFConfig struct {
	Backend string `yaml:"backend"`
}

// OtelConfig configures the OpenTelemetry metrics exporter stage
// latency/count instruments are recorded through (internal/rag/obs).
// When Endpoint is empty, metrics are recorded against the OpenTelemetry
// no-op global MeterProvider rather than failing startup: the query
// orchestrator still calls IncCounter/ObserveHistogram unconditionally, and an
// operator who wants real export just sets OTEL_METRICS_ENDPOINT.
type OtelConfig struct {
	Endpoint       string `yaml:"endpoint"`
	ServiceName    string `yaml:"service_name"`
	ExportInterval int    `yaml:"export_interval_seconds"`
}

// Config is the fully assembled runtime configuration.
type Config struct {
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Qdrant    QdrantConfig    `yaml:"qdrant"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Session   SessionConfig   `yaml:"session"`
	PDF       PDFConfig       `yaml:"pdf"`
	Otel      OtelConfig      `yaml:"otel"`
}

func defaults() Config {
	return Config{
		Embedding: EmbeddingConfig{
			BaseURL:       "https://api.openai.com",
			Path:          "/v1/embeddings",
			APIHeader:     "Authorization",
			Model:         "text-embedding-3-small",
			Dimension:     1536,
			Timeout:       5,
			BatchSize:     16,
			CacheCapacity: 50000,
		},
		LLM: LLMConfig{
			Provider: "openai",
			OpenAI:   OpenAIConfig{Model: "gpt-4o-mini"},
			Anthropic: AnthropicConfig{
				Model:     "claude-3-7-sonnet-latest",
				MaxTokens: 1024,
			},
			Google: GoogleConfig{Model: "gemini-2.0-flash"},
		},
		Postgres: PostgresConfig{MaxConns: 8, MaxIdleTime: 5},
		Qdrant: QdrantConfig{
			Collection: "tourism_chunks",
			Dimension:  1536,
			Metric:     "cosine",
		},
		Chunking: ChunkingConfig{MaxTokens: 1024, Overlap: 0.2},
		Retrieval: RetrievalConfig{
			DefaultK:             8,
			OverfetchFactor:      4,
			FallbackThreshold:    3,
			PriceOvershootWeight: 0.5,
			MonthAdjacentWeight:  0.3,
			MonthFarWeight:       0.6,
			DurationWeight:       0.5,
			CategoryWeight:       0.3,
			FamilyConflictWeight: 0.4,
		},
		Session: SessionConfig{
			RingSize:    3,
			IdleTimeout: 24 * time.Hour,
			LockTTL:     30 * time.Second,
		},
		PDF: PDFConfig{Backend: "ledongthuc"},
		Otel: OtelConfig{
			ServiceName:    "turag",
			ExportInterval: 10,
		},
	}
}

// Load reads .env (if present), applies defaults, overlays config.yaml
// (if CONFIG_FILE or ./config.yaml exists), then lets environment
// variables win over both.
func Load() (Config, error) {
	_ = godotenv.Overload()

	cfg := defaults()

	yamlPath := os.Getenv("CONFIG_FILE")
	if yamlPath == "" {
		yamlPath = "config.yaml"
	}
	if b, err := os.ReadFile(yamlPath); err == nil {
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", yamlPath, err)
		}
	}

	applyEnv(&cfg)

	if cfg.LLM.Provider != "" {
		switch strings.ToLower(cfg.LLM.Provider) {
		case "openai", "anthropic", "google":
		default:
			return Config{}, fmt.Errorf("unsupported LLM_PROVIDER %q", cfg.LLM.Provider)
		}
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}

	str("EMBED_BASE_URL", &cfg.Embedding.BaseURL)
	str("EMBED_PATH", &cfg.Embedding.Path)
	str("EMBED_API_KEY", &cfg.Embedding.APIKey)
	str("EMBED_API_HEADER", &cfg.Embedding.APIHeader)
	str("EMBED_MODEL", &cfg.Embedding.Model)
	num("EMBED_DIMENSION", &cfg.Embedding.Dimension)
	num("EMBED_TIMEOUT_SECONDS", &cfg.Embedding.Timeout)
	num("EMBED_BATCH_SIZE", &cfg.Embedding.BatchSize)
	num("EMBED_CACHE_CAPACITY", &cfg.Embedding.CacheCapacity)

	str("LLM_PROVIDER", &cfg.LLM.Provider)
	str("OPENAI_API_KEY", &cfg.LLM.OpenAI.APIKey)
	str("OPENAI_BASE_URL", &cfg.LLM.OpenAI.BaseURL)
	str("OPENAI_MODEL", &cfg.LLM.OpenAI.Model)
	str("ANTHROPIC_API_KEY", &cfg.LLM.Anthropic.APIKey)
	str("ANTHROPIC_BASE_URL", &cfg.LLM.Anthropic.BaseURL)
	str("ANTHROPIC_MODEL", &cfg.LLM.Anthropic.Model)
	num("ANTHROPIC_MAX_TOKENS", &cfg.LLM.Anthropic.MaxTokens)
	str("GOOGLE_API_KEY", &cfg.LLM.Google.APIKey)
	str("GOOGLE_MODEL", &cfg.LLM.Google.Model)

	str("POSTGRES_DSN", &cfg.Postgres.DSN)
	str("REDIS_ADDR", &cfg.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.Redis.Password)
	num("REDIS_DB", &cfg.Redis.DB)

	str("QDRANT_DSN", &cfg.Qdrant.DSN)
	str("QDRANT_COLLECTION", &cfg.Qdrant.Collection)
	num("QDRANT_DIMENSION", &cfg.Qdrant.Dimension)
	str("QDRANT_METRIC", &cfg.Qdrant.Metric)

	num("CHUNK_MAX_TOKENS", &cfg.Chunking.MaxTokens)

	num("RETRIEVAL_DEFAULT_K", &cfg.Retrieval.DefaultK)
	num("RETRIEVAL_OVERFETCH_FACTOR", &cfg.Retrieval.OverfetchFactor)
	num("RETRIEVAL_FALLBACK_THRESHOLD", &cfg.Retrieval.FallbackThreshold)

	num("SESSION_RING_SIZE", &cfg.Session.RingSize)
	dur("SESSION_IDLE_TIMEOUT", &cfg.Session.IdleTimeout)
	dur("SESSION_LOCK_TTL", &cfg.Session.LockTTL)

	str("PDF_BACKEND", &cfg.PDF.Backend)

	str("OTEL_METRICS_ENDPOINT", &cfg.Otel.Endpoint)
	str("OTEL_SERVICE_NAME", &cfg.Otel.ServiceName)
	num("OTEL_EXPORT_INTERVAL_SECONDS", &cfg.Otel.ExportInterval)
}
