package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for ekaya-bidflow.
// Configuration can come from a YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3443"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// StoreBackend selects the repository implementation: "postgres" or "memory".
	StoreBackend string `yaml:"store_backend" env:"STORE_BACKEND" env-default:"postgres"`

	Auth       AuthConfig       `yaml:"auth"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Storage    StorageConfig    `yaml:"storage"`
	AI         AIConfig         `yaml:"ai"`
	Generation GenerationConfig `yaml:"generation"`
	Events     EventsConfig     `yaml:"events"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	// TokenSecret signs locally issued login tokens (HS256). Secret - env only.
	TokenSecret string        `yaml:"-" env:"AUTH_TOKEN_SECRET"`
	TokenTTL    time.Duration `yaml:"token_ttl" env:"AUTH_TOKEN_TTL" env-default:"12h"`
	Issuer      string        `yaml:"issuer" env:"AUTH_ISSUER" env-default:"ekaya-bidflow"`

	// SessionSecret signs the browser session cookie. Secret - env only.
	SessionSecret string `yaml:"-" env:"AUTH_SESSION_SECRET"`
	SecureCookies bool   `yaml:"secure_cookies" env:"AUTH_SECURE_COOKIES" env-default:"true"`

	// JWKSEndpointsStr is a comma-separated list of issuer=jwks_url pairs for
	// external identity providers. Format: "issuer1=url1,issuer2=url2"
	JWKSEndpointsStr string `yaml:"jwks_endpoints" env:"JWKS_ENDPOINTS" env-default:""`

	// JWKSEndpoints is the parsed map from JWKSEndpointsStr (not from config file).
	JWKSEndpoints map[string]string `yaml:"-"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"ekaya"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"ekaya_bidflow"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`
}

// RedisConfig holds Redis configuration. Redis is optional; when Host is
// empty the generation limiter runs in-process.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// StorageConfig selects and configures the file store.
type StorageConfig struct {
	// Backend is one of "local", "s3", "gcs".
	Backend   string `yaml:"backend" env:"STORAGE_BACKEND" env-default:"local"`
	LocalPath string `yaml:"local_path" env:"STORAGE_LOCAL_PATH" env-default:"uploads"`

	S3Bucket          string `yaml:"s3_bucket" env:"STORAGE_S3_BUCKET" env-default:""`
	S3Region          string `yaml:"s3_region" env:"STORAGE_S3_REGION" env-default:"us-east-1"`
	S3Endpoint        string `yaml:"s3_endpoint" env:"STORAGE_S3_ENDPOINT" env-default:""`
	S3ForcePathStyle  bool   `yaml:"s3_force_path_style" env:"STORAGE_S3_FORCE_PATH_STYLE" env-default:"false"`
	S3AccessKeyID     string `yaml:"-" env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string `yaml:"-" env:"AWS_SECRET_ACCESS_KEY"`

	GCSBucket          string `yaml:"gcs_bucket" env:"STORAGE_GCS_BUCKET" env-default:""`
	GCSCredentialsFile string `yaml:"gcs_credentials_file" env:"GOOGLE_APPLICATION_CREDENTIALS" env-default:""`
}

// AIConfig configures the generation and embedding models.
type AIConfig struct {
	// Provider is one of "openai" (any OpenAI-compatible endpoint), "anthropic" or "none".
	Provider       string  `yaml:"provider" env:"AI_PROVIDER" env-default:"none"`
	LLMBaseURL     string  `yaml:"llm_base_url" env:"AI_LLM_BASE_URL" env-default:"https://api.openai.com/v1"`
	LLMModel       string  `yaml:"llm_model" env:"AI_LLM_MODEL" env-default:"gpt-4o"`
	APIKey         string  `yaml:"-" env:"AI_API_KEY"`
	Temperature    float64 `yaml:"temperature" env:"AI_TEMPERATURE" env-default:"0.2"`
	EmbeddingURL   string  `yaml:"embedding_url" env:"AI_EMBEDDING_URL" env-default:""`
	EmbeddingModel string  `yaml:"embedding_model" env:"AI_EMBEDDING_MODEL" env-default:""`
	EmbeddingKey   string  `yaml:"-" env:"AI_EMBEDDING_API_KEY"`
	EmbeddingDims  int     `yaml:"embedding_dims" env:"AI_EMBEDDING_DIMS" env-default:"1024"`
}

// EmbeddingEnabled returns true if an embedding endpoint is configured.
func (c *AIConfig) EmbeddingEnabled() bool {
	return c.EmbeddingURL != "" && c.EmbeddingModel != ""
}

// GenerationConfig bounds the bid generation pipeline.
type GenerationConfig struct {
	Timeout                 time.Duration `yaml:"timeout" env:"GENERATION_TIMEOUT" env-default:"300s"`
	MaxConcurrentPerCompany int           `yaml:"max_concurrent_tasks" env:"GENERATION_MAX_CONCURRENT_TASKS" env-default:"5"`
	KnowledgeTopK           int           `yaml:"knowledge_top_k" env:"GENERATION_KNOWLEDGE_TOP_K" env-default:"5"`
	// Breaker trips after this many consecutive generator failures.
	BreakerFailures uint32        `yaml:"breaker_failures" env:"GENERATION_BREAKER_FAILURES" env-default:"5"`
	BreakerTimeout  time.Duration `yaml:"breaker_timeout" env:"GENERATION_BREAKER_TIMEOUT" env-default:"60s"`
}

// EventsConfig configures the NATS publisher. Empty URL disables publishing.
type EventsConfig struct {
	NATSURL       string `yaml:"nats_url" env:"NATS_URL" env-default:""`
	SubjectPrefix string `yaml:"subject_prefix" env:"NATS_SUBJECT_PREFIX" env-default:"bidflow"`
}

// SchedulerConfig configures background jobs.
type SchedulerConfig struct {
	QualificationSweepEnabled  bool   `yaml:"qualification_sweep_enabled" env:"QUALIFICATION_SWEEP_ENABLED" env-default:"true"`
	QualificationSweepSchedule string `yaml:"qualification_sweep_schedule" env:"QUALIFICATION_SWEEP_SCHEDULE" env-default:"0 30 2 * * *"`
	ExpiringWithinDays         int    `yaml:"expiring_within_days" env:"QUALIFICATION_EXPIRING_WITHIN_DAYS" env-default:"90"`
}

// Load reads configuration from path (usually config.yaml) with environment
// variable overrides. A missing file is not an error; the environment and
// defaults are used instead.
func Load(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg.Auth.JWKSEndpoints = parseJWKSEndpoints(cfg.Auth.JWKSEndpointsStr)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = (&url.URL{
			Scheme: "http",
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case "postgres", "memory":
	default:
		return fmt.Errorf("store_backend must be postgres or memory, got %q", c.StoreBackend)
	}
	switch c.Storage.Backend {
	case "local":
	case "s3":
		if c.Storage.S3Bucket == "" {
			return fmt.Errorf("storage.s3_bucket is required for the s3 backend")
		}
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	switch c.AI.Provider {
	case "openai", "anthropic", "none":
	default:
		return fmt.Errorf("unknown ai provider %q", c.AI.Provider)
	}
	if c.Generation.Timeout <= 0 {
		return fmt.Errorf("generation.timeout must be positive")
	}
	return nil
}

// parseJWKSEndpoints parses the JWKS endpoints string into a map.
// Format: "issuer1=url1,issuer2=url2"
func parseJWKSEndpoints(value string) map[string]string {
	endpoints := make(map[string]string)
	if value == "" {
		return endpoints
	}

	for _, pair := range strings.Split(value, ",") {
		issuer, jwksURL, ok := strings.Cut(pair, "=")
		if ok {
			endpoints[strings.TrimSpace(issuer)] = strings.TrimSpace(jwksURL)
		}
	}
	return endpoints
}

// ConnectionString returns a PostgreSQL connection URL.
func (c *DatabaseConfig) ConnectionString() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", ResolveHostForDocker(c.Host), c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}
