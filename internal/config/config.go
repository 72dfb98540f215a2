// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, storage paths, the retrieval pipeline (chunking, embedding,
// ranking), language-model backends, rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Supported embedding providers.
const (
	EmbeddingLocal  = "local"
	EmbeddingOllama = "ollama"
	EmbeddingOpenAI = "openai"
)

// Supported language-model providers.
const (
	LLMOllama      = "ollama"
	LLMAzureOpenAI = "azure_openai"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-rag-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// RAGConfig holds chunking and retrieval parameters.
type RAGConfig struct {
	ChunkSize           int     // words per chunk
	ChunkOverlap        int     // words carried into the next chunk
	DefaultTopK         int     // search default, [1,50]
	SimilarityThreshold float64 // search floor, [0,1]
	MaxContextChunks    int     // grounding chunks per chat turn
	MaxHistoryMessages  int     // prior messages replayed to the model
	TitleMaxLen         int     // auto-title length in runes
}

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	Provider  string // local|ollama|openai
	Model     string
	Dimension int
	BaseURL   string
	APIKey    string
	CacheSize int
	BatchSize int
	Workers   int
	Timeout   time.Duration
}

// OllamaConfig configures the Ollama chat backend.
type OllamaConfig struct {
	BaseURL string
	Model   string
}

// AzureOpenAIConfig configures the Azure OpenAI chat backend.
type AzureOpenAIConfig struct {
	Endpoint   string
	APIKey     string
	Deployment string
	APIVersion string
}

// Configured reports whether enough settings are present to call Azure.
func (a AzureOpenAIConfig) Configured() bool {
	return a.Endpoint != "" && a.APIKey != "" && a.Deployment != ""
}

// LLMConfig groups the language-model backends.
type LLMConfig struct {
	DefaultProvider string
	Timeout         time.Duration
	Ollama          OllamaConfig
	Azure           AzureOpenAIConfig
}

// IngestConfig sizes the background ingestion pool.
type IngestConfig struct {
	Workers   int
	QueueSize int
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // 0 disables (token streams are long-lived)
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Storage
	DBPath         string // SQLite path
	UploadDir      string // root for uploaded files
	MaxUploadBytes int64  // per upload request
	SeedFile       string // optional YAML with personas/settings

	// Pipeline
	RAG       RAGConfig
	Embedding EmbeddingConfig
	LLM       LLMConfig
	Ingest    IngestConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 0),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api")),

		// Storage
		DBPath:         getenv("DB_PATH", "localrag.db"),
		UploadDir:      getenv("UPLOAD_DIR", "./uploads"),
		MaxUploadBytes: int64(getint("MAX_UPLOAD_BYTES", 50<<20)),
		SeedFile:       getenv("SEED_FILE", ""),

		RAG: RAGConfig{
			ChunkSize:           getint("CHUNK_SIZE", 512),
			ChunkOverlap:        getint("CHUNK_OVERLAP", 50),
			DefaultTopK:         getint("DEFAULT_TOP_K", 5),
			SimilarityThreshold: getfloat("SIMILARITY_THRESHOLD", 0.3),
			MaxContextChunks:    getint("MAX_CONTEXT_CHUNKS", 1),
			MaxHistoryMessages:  getint("MAX_HISTORY_MESSAGES", 4),
			TitleMaxLen:         getint("TITLE_MAX_LEN", 100),
		},
		Embedding: EmbeddingConfig{
			Provider:  strings.ToLower(getenv("EMBEDDING_PROVIDER", EmbeddingLocal)),
			Model:     getenv("EMBEDDING_MODEL", "all-MiniLM-L6-v2"),
			Dimension: getint("EMBEDDING_DIMENSION", 384),
			BaseURL:   strings.TrimRight(getenv("EMBEDDING_BASE_URL", ""), "/"),
			APIKey:    getenv("EMBEDDING_API_KEY", ""),
			CacheSize: getint("EMBEDDING_CACHE_SIZE", 10000),
			BatchSize: getint("EMBEDDING_BATCH_SIZE", 64),
			Workers:   getint("EMBEDDING_WORKERS", 4),
			Timeout:   getdur("EMBEDDING_TIMEOUT", 60*time.Second),
		},
		LLM: LLMConfig{
			DefaultProvider: strings.ToLower(getenv("DEFAULT_LLM_PROVIDER", LLMOllama)),
			Timeout:         getdur("LLM_TIMEOUT", 300*time.Second),
			Ollama: OllamaConfig{
				BaseURL: strings.TrimRight(getenv("OLLAMA_BASE_URL", "http://localhost:11434"), "/"),
				Model:   getenv("OLLAMA_MODEL", "llama3.2"),
			},
			Azure: AzureOpenAIConfig{
				Endpoint:   strings.TrimRight(getenv("AZURE_OPENAI_ENDPOINT", ""), "/"),
				APIKey:     getenv("AZURE_OPENAI_API_KEY", ""),
				Deployment: getenv("AZURE_OPENAI_DEPLOYMENT", ""),
				APIVersion: getenv("AZURE_OPENAI_API_VERSION", "2024-02-15-preview"),
			},
		},
		Ingest: IngestConfig{
			Workers:   getint("INGEST_WORKERS", 2),
			QueueSize: getint("INGEST_QUEUE_SIZE", 64),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-rag-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if len(cfg.CORS.AllowedOrigins) == 1 && cfg.CORS.AllowedOrigins[0] == "*" {
		cfg.CORS.AllowedOrigins = nil
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (cfg Config) validate() error {
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return errors.New("timeouts must be positive durations")
	}
	if cfg.WriteTimeout < 0 {
		return errors.New("WRITE_TIMEOUT must be >= 0")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return errors.New("DB_PATH must not be empty")
	}
	if strings.TrimSpace(cfg.UploadDir) == "" {
		return errors.New("UPLOAD_DIR must not be empty")
	}
	if cfg.MaxUploadBytes <= 0 {
		return errors.New("MAX_UPLOAD_BYTES must be > 0")
	}

	// Pipeline
	if cfg.RAG.ChunkSize <= 0 {
		return errors.New("CHUNK_SIZE must be > 0")
	}
	if cfg.RAG.ChunkOverlap < 0 || cfg.RAG.ChunkOverlap >= cfg.RAG.ChunkSize {
		return errors.New("CHUNK_OVERLAP must be >= 0 and < CHUNK_SIZE")
	}
	if cfg.RAG.DefaultTopK < 1 || cfg.RAG.DefaultTopK > 50 {
		return errors.New("DEFAULT_TOP_K must be between 1 and 50")
	}
	if cfg.RAG.SimilarityThreshold < 0 || cfg.RAG.SimilarityThreshold > 1 {
		return errors.New("SIMILARITY_THRESHOLD must be between 0 and 1")
	}
	if cfg.RAG.MaxContextChunks < 1 || cfg.RAG.MaxContextChunks > 50 {
		return errors.New("MAX_CONTEXT_CHUNKS must be between 1 and 50")
	}
	if cfg.RAG.MaxHistoryMessages < 0 {
		return errors.New("MAX_HISTORY_MESSAGES must be >= 0")
	}
	if cfg.RAG.TitleMaxLen < 1 {
		return errors.New("TITLE_MAX_LEN must be >= 1")
	}
	switch cfg.Embedding.Provider {
	case EmbeddingLocal:
	case EmbeddingOllama, EmbeddingOpenAI:
		if cfg.Embedding.BaseURL == "" {
			return errors.New("EMBEDDING_BASE_URL is required for remote embedding providers")
		}
	default:
		return errors.New("EMBEDDING_PROVIDER must be one of: local, ollama, openai")
	}
	if cfg.Embedding.Dimension <= 0 {
		return errors.New("EMBEDDING_DIMENSION must be > 0")
	}
	if cfg.Embedding.BatchSize <= 0 || cfg.Embedding.Workers <= 0 {
		return errors.New("EMBEDDING_BATCH_SIZE and EMBEDDING_WORKERS must be > 0")
	}
	switch cfg.LLM.DefaultProvider {
	case LLMOllama, LLMAzureOpenAI:
	default:
		return errors.New("DEFAULT_LLM_PROVIDER must be one of: ollama, azure_openai")
	}
	if cfg.LLM.Timeout <= 0 {
		return errors.New("LLM_TIMEOUT must be > 0")
	}
	if cfg.Ingest.Workers < 1 || cfg.Ingest.QueueSize < 1 {
		return errors.New("INGEST_WORKERS and INGEST_QUEUE_SIZE must be >= 1")
	}

	if cfg.RateRPS < 0 {
		return errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	return nil
}

// lookup returns the trimmed value of k, or "" when unset.
func lookup(k string) string {
	v, _ := os.LookupEnv(k)
	return strings.TrimSpace(v)
}

// parsed reads k through parse, keeping def when k is unset or malformed.
func parsed[T any](k string, def T, parse func(string) (T, error)) T {
	raw := lookup(k)
	if raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		return def
	}
	return v
}

func getenv(k, def string) string {
	if v := lookup(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int { return parsed(k, def, strconv.Atoi) }

func getdur(k string, def time.Duration) time.Duration {
	return parsed(k, def, time.ParseDuration)
}

func getfloat(k string, def float64) float64 {
	return parsed(k, def, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

var errNotBool = errors.New("not a boolean")

func getbool(k string, def bool) bool {
	return parsed(k, def, func(s string) (bool, error) {
		switch strings.ToLower(s) {
		case "1", "true", "yes", "y", "on":
			return true, nil
		case "0", "false", "no", "n", "off":
			return false, nil
		}
		return false, errNotBool
	})
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalizeBasePath returns p with one leading slash and no trailing slash;
// blank input yields "/".
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	return "/" + p
}
