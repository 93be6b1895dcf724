// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	CORSOrigins    []string      `yaml:"cors_origins"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
}

type LogConfig struct {
	Level      string `yaml:"level"`    // trace|debug|info|warn|error
	Format     string `yaml:"format"`   // json|console
	Sampling   bool   `yaml:"sampling"` // enable sampling in prod
	File       string `yaml:"file"`     // optional rotated log file
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxAgeDays int    `yaml:"max_age_days"`
	MaxBackups int    `yaml:"max_backups"`
}

type AIConfig struct {
	Provider        string   `yaml:"provider"` // gemini | openai | noop
	GeminiKey       string   `yaml:"gemini_key"`
	GeminiURL       string   `yaml:"gemini_url"`
	OpenAIKey       string   `yaml:"openai_key"`
	OpenAIBaseURL   string   `yaml:"openai_base_url"`
	DefaultModel    string   `yaml:"default_model"`
	RerankModel     string   `yaml:"rerank_model"`
	EmbeddingModel  string   `yaml:"embedding_model"`
	Temperature     *float32 `yaml:"temperature"`
	MaxOutputTokens int      `yaml:"max_output_tokens"`
	ConcurrentLimit int      `yaml:"concurrent_limit"` // max concurrent AI calls
}

type VectorStoreConfig struct {
	Backend           string `yaml:"backend"` // file | postgres
	PersistDir        string `yaml:"persist_dir"`
	DatabaseURL       string `yaml:"database_url"`
	DefaultCollection string `yaml:"default_collection"`
}

type RetrievalConfig struct {
	K          int      `yaml:"k"`
	FetchK     int      `yaml:"fetch_k"`
	Lambda     *float32 `yaml:"lambda"`      // 0..1, 1 is pure relevance
	SearchType string   `yaml:"search_type"` // mmr | similarity
}

type RerankConfig struct {
	Enabled     *bool  `yaml:"enabled"`
	Parallelism int    `yaml:"parallelism"`
	Prompt      string `yaml:"prompt"`
}

type IngestConfig struct {
	UploadDir    string `yaml:"upload_dir"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	SeedDir      string `yaml:"seed_dir"`
	SeedGlob     string `yaml:"seed_glob"`
	Workers      int    `yaml:"workers"`
}

type BlobConfig struct {
	Backend string `yaml:"backend"` // local | minio
	MinIO   struct {
		Endpoint  string `yaml:"endpoint"`
		AccessKey string `yaml:"access_key"`
		SecretKey string `yaml:"secret_key"`
		Bucket    string `yaml:"bucket"`
		Secure    bool   `yaml:"secure"`
	} `yaml:"minio"`
}

type RedisConfig struct {
	URL       string        `yaml:"url"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	RateLimit int           `yaml:"rate_limit"` // requests per window per client; 0 disables
	Window    time.Duration `yaml:"window"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	AI          AIConfig          `yaml:"ai"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Rerank      RerankConfig      `yaml:"rerank"`
	Ingest      IngestConfig      `yaml:"ingest"`
	Blob        BlobConfig        `yaml:"blob"`
	Redis       RedisConfig       `yaml:"redis"`
	Auth        AuthConfig        `yaml:"auth"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path (a missing file means "all
// defaults"), overlays the environment (including a .env file) and applies
// defaults.
func LoadConfig(path string, dev bool) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// env + defaults only
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.Runtime.Dev = dev
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	envOr(&cfg.AI.GeminiKey, "GOOGLE_API_KEY")
	envOr(&cfg.AI.OpenAIKey, "OPENAI_API_KEY")
	envOr(&cfg.VectorStore.PersistDir, "VECTOR_STORE_DIR")
	envOr(&cfg.VectorStore.DatabaseURL, "DATABASE_URL")
	envOr(&cfg.Redis.URL, "REDIS_URL")
	envOr(&cfg.Auth.JWTSecret, "JWT_SECRET")
}

func envOr(dst *string, key string) {
	if *dst != "" {
		return
	}
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = 2 * time.Minute
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"*"}
	}
	if cfg.Server.MaxUploadBytes <= 0 {
		cfg.Server.MaxUploadBytes = 32 << 20
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}

	cfg.AI.Provider = strings.ToLower(strings.TrimSpace(cfg.AI.Provider))
	if cfg.AI.Provider == "" {
		switch {
		case cfg.AI.GeminiKey != "":
			cfg.AI.Provider = "gemini"
		case cfg.AI.OpenAIKey != "":
			cfg.AI.Provider = "openai"
		case cfg.Runtime.Dev:
			cfg.AI.Provider = "noop"
		}
	}
	if cfg.AI.DefaultModel == "" {
		if cfg.AI.Provider == "openai" {
			cfg.AI.DefaultModel = "gpt-4o-mini"
		} else {
			cfg.AI.DefaultModel = "gemini-2.0-flash-001"
		}
	}
	if cfg.AI.RerankModel == "" {
		cfg.AI.RerankModel = cfg.AI.DefaultModel
	}
	if cfg.AI.EmbeddingModel == "" {
		if cfg.AI.Provider == "openai" {
			cfg.AI.EmbeddingModel = "text-embedding-3-small"
		} else {
			cfg.AI.EmbeddingModel = "text-embedding-004"
		}
	}
	if cfg.AI.Temperature == nil {
		t := float32(0.7)
		cfg.AI.Temperature = &t
	}
	if cfg.AI.MaxOutputTokens <= 0 {
		cfg.AI.MaxOutputTokens = 2048
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 16
	}
	if cfg.AI.OpenAIBaseURL == "" {
		cfg.AI.OpenAIBaseURL = "https://api.openai.com/v1"
	}

	if cfg.VectorStore.Backend == "" {
		cfg.VectorStore.Backend = "file"
	}
	if cfg.VectorStore.DefaultCollection == "" {
		cfg.VectorStore.DefaultCollection = "default_collection"
	}

	if cfg.Retrieval.K <= 0 {
		cfg.Retrieval.K = 5
	}
	if cfg.Retrieval.FetchK < cfg.Retrieval.K {
		cfg.Retrieval.FetchK = max(20, cfg.Retrieval.K)
	}
	if cfg.Retrieval.Lambda == nil {
		l := float32(0.5)
		cfg.Retrieval.Lambda = &l
	}
	if cfg.Retrieval.SearchType == "" {
		cfg.Retrieval.SearchType = "mmr"
	}

	if cfg.Rerank.Enabled == nil {
		on := true
		cfg.Rerank.Enabled = &on
	}
	if cfg.Rerank.Parallelism <= 0 {
		cfg.Rerank.Parallelism = 4
	}

	if cfg.Ingest.UploadDir == "" {
		cfg.Ingest.UploadDir = "uploads"
	}
	if cfg.VectorStore.Backend == "file" && cfg.VectorStore.PersistDir == "" {
		cfg.VectorStore.PersistDir = filepath.Join(cfg.Ingest.UploadDir, "vector_store")
	}
	if cfg.Ingest.ChunkSize <= 0 {
		cfg.Ingest.ChunkSize = 1000
	}
	if cfg.Ingest.ChunkOverlap <= 0 || cfg.Ingest.ChunkOverlap >= cfg.Ingest.ChunkSize {
		cfg.Ingest.ChunkOverlap = min(200, cfg.Ingest.ChunkSize/5)
	}
	if cfg.Ingest.SeedGlob == "" {
		cfg.Ingest.SeedGlob = "*.*"
	}
	if cfg.Ingest.Workers <= 0 {
		cfg.Ingest.Workers = 4
	}

	if cfg.Blob.Backend == "" {
		cfg.Blob.Backend = "local"
	}
	if cfg.Redis.Window <= 0 {
		cfg.Redis.Window = time.Minute
	}
	if cfg.Auth.TokenTTL <= 0 {
		cfg.Auth.TokenTTL = 24 * time.Hour
	}
}

// Validate performs minimal validation. The persist dir is not checked
// here; an unusable one surfaces as a configuration error on retrieval.
func (c *Config) Validate() error {
	switch c.AI.Provider {
	case "gemini":
		if c.AI.GeminiKey == "" {
			return errors.New("ai.gemini_key (or GOOGLE_API_KEY) is required for provider gemini")
		}
	case "openai":
		if c.AI.OpenAIKey == "" {
			return errors.New("ai.openai_key (or OPENAI_API_KEY) is required for provider openai")
		}
	case "noop":
	case "":
		return errors.New("no AI provider configured: set ai.gemini_key or ai.openai_key, or run with -dev")
	default:
		return fmt.Errorf("unknown ai.provider %q", c.AI.Provider)
	}

	switch c.VectorStore.Backend {
	case "file":
	case "postgres":
		if c.VectorStore.DatabaseURL == "" {
			return errors.New("vector_store.database_url (or DATABASE_URL) is required for backend postgres")
		}
	default:
		return fmt.Errorf("unknown vector_store.backend %q", c.VectorStore.Backend)
	}

	switch c.Retrieval.SearchType {
	case "mmr", "similarity":
	default:
		return fmt.Errorf("unknown retrieval.search_type %q", c.Retrieval.SearchType)
	}
	if l := c.Retrieval.Lambda; l != nil && (*l < 0 || *l > 1) {
		return fmt.Errorf("retrieval.lambda %v is outside [0, 1]", *l)
	}

	if p := c.Rerank.Prompt; p != "" && (!strings.Contains(p, "{question}") || !strings.Contains(p, "{context}")) {
		return errors.New("rerank.prompt must contain {question} and {context}")
	}

	switch c.Blob.Backend {
	case "local":
	case "minio":
		if c.Blob.MinIO.Endpoint == "" || c.Blob.MinIO.Bucket == "" {
			return errors.New("blob.minio.endpoint and blob.minio.bucket are required for backend minio")
		}
	default:
		return fmt.Errorf("unknown blob.backend %q", c.Blob.Backend)
	}
	return nil
}
