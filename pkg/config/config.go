package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: environment variables are read here and nowhere else
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Logging
	LogLevel  string
	LogFormat string

	Cache    CacheConfig
	Redis    RedisConfig
	Database DatabaseConfig

	// Upstream sources
	Yahoo YahooConfig
	HTTP  HTTPConfig

	Fetch FetchConfig
	Retry RetryConfig

	Together TogetherConfig

	// Universe and named datasets (YAML)
	UniverseFile string

	// Cron expression for the dataset refresh job (seconds field included)
	RefreshCron string

	MetricsEnabled bool
}

// CacheConfig selects the snapshot store backends
type CacheConfig struct {
	Backend       string // sqlite, redis, postgres, memory
	Dir           string // sqlite file location
	DatasetDir    string // one file per named dataset
	DatasetFormat string // csv, parquet
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool

	// KeyPrefix namespaces every key this process writes
	KeyPrefix string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// YahooConfig points at the chart/quoteSummary API and the public quote pages
type YahooConfig struct {
	BaseURL         string
	QuotePageURL    string
	FallbackEnabled bool
}

// HTTPConfig is shared by every outbound client
type HTTPConfig struct {
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables pacing
	RateBurst int
	UserAgent string
}

// FetchConfig tunes the fetch orchestrator
type FetchConfig struct {
	Workers       int
	CallTimeout   time.Duration
	JitterMin     time.Duration
	JitterMax     time.Duration
	FetchProfiles bool
}

// RetryConfig feeds collector.RetryPolicy
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// TogetherConfig holds the question-answering API settings
type TogetherConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxTokens  int
	SampleSize int
}

// Load reads configuration from environment variables
// ⭐ SSOT: the only caller of os.Getenv()
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		Cache: CacheConfig{
			Backend:       getEnv("CACHE_BACKEND", "sqlite"),
			Dir:           getEnv("CACHE_DIR", "./cache"),
			DatasetDir:    getEnv("DATASET_DIR", "./data"),
			DatasetFormat: getEnv("DATASET_FORMAT", "csv"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),

			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "stockboard"),
		},

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Yahoo: YahooConfig{
			BaseURL:         getEnv("YAHOO_BASE_URL", "https://query1.finance.yahoo.com"),
			QuotePageURL:    getEnv("YAHOO_QUOTE_URL", "https://finance.yahoo.com/quote"),
			FallbackEnabled: getEnvAsBool("FALLBACK_ENABLED", true),
		},

		HTTP: HTTPConfig{
			Timeout:   getEnvAsDuration("HTTP_TIMEOUT", "30s"),
			RateLimit: getEnvAsFloat("HTTP_RATE_LIMIT", 2),
			RateBurst: getEnvAsInt("HTTP_RATE_BURST", 1),
			UserAgent: getEnv("HTTP_USER_AGENT", "Mozilla/5.0 (compatible; stockboard/1.0)"),
		},

		Fetch: FetchConfig{
			Workers:       getEnvAsInt("FETCH_WORKERS", 3),
			CallTimeout:   getEnvAsDuration("FETCH_CALL_TIMEOUT", "30s"),
			JitterMin:     getEnvAsDuration("FETCH_JITTER_MIN", "1s"),
			JitterMax:     getEnvAsDuration("FETCH_JITTER_MAX", "3s"),
			FetchProfiles: getEnvAsBool("FETCH_PROFILES", true),
		},

		Retry: RetryConfig{
			MaxAttempts:    getEnvAsInt("RETRY_MAX_ATTEMPTS", 3),
			InitialBackoff: getEnvAsDuration("RETRY_INITIAL_BACKOFF", "2s"),
			MaxBackoff:     getEnvAsDuration("RETRY_MAX_BACKOFF", "30s"),
		},

		Together: TogetherConfig{
			APIKey:     getEnv("TOGETHER_API_KEY", ""),
			BaseURL:    getEnv("TOGETHER_BASE_URL", "https://api.together.xyz/v1"),
			Model:      getEnv("TOGETHER_MODEL", "deepseek-ai/DeepSeek-V3"),
			MaxTokens:  getEnvAsInt("QA_MAX_TOKENS", 1000),
			SampleSize: getEnvAsInt("QA_SAMPLE_SIZE", 100),
		},

		UniverseFile: getEnv("UNIVERSE_FILE", "configs/universe.yaml"),
		RefreshCron:  getEnv("REFRESH_CRON", "0 0 18 * * 1-5"),

		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	switch c.Cache.Backend {
	case "sqlite", "memory":
	case "redis":
		if !c.Redis.Enabled {
			return fmt.Errorf("CACHE_BACKEND=redis requires REDIS_ENABLED=true")
		}
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("CACHE_BACKEND=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("CACHE_BACKEND must be one of: sqlite, redis, postgres, memory")
	}

	if c.Cache.DatasetFormat != "csv" && c.Cache.DatasetFormat != "parquet" {
		return fmt.Errorf("DATASET_FORMAT must be one of: csv, parquet")
	}

	if c.Fetch.Workers < 1 {
		return fmt.Errorf("FETCH_WORKERS must be at least 1")
	}

	if c.Fetch.JitterMin > c.Fetch.JitterMax {
		return fmt.Errorf("FETCH_JITTER_MIN (%s) exceeds FETCH_JITTER_MAX (%s)", c.Fetch.JitterMin, c.Fetch.JitterMax)
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1")
	}

	return nil
}

// IsProduction reports whether ENV=production
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{".env"}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
