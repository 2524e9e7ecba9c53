package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Environment        string
	ServerPort         int
	LogLevel           string
	BackendURL         string
	BackendAPIKey      string
	DatabaseURL        string
	DBMaxOpenConns     int
	DBMaxIdleConns     int
	JWTSecret          string
	JWTIssuer          string
	SessionTTL         time.Duration
	VerificationTTL    time.Duration
	RedisURL           string
	RedisNamespace     string
	MongoURI           string
	MongoDatabase      string
	CORSAllowedOrigins []string
	DefaultPageSize    int
	MaxPageSize        int
	RateLimitRequests  int
	RateLimitWindow    time.Duration
	MaxUploadMB        int
	ImageSweepInterval time.Duration
}

// fileConfig is the optional YAML overlay for non-secret knobs
type fileConfig struct {
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`
	Server      struct {
		Port               int      `yaml:"port"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
		MaxUploadMB        int      `yaml:"max_upload_mb"`
	} `yaml:"server"`
	Database struct {
		MaxOpenConns int `yaml:"max_open_conns"`
		MaxIdleConns int `yaml:"max_idle_conns"`
	} `yaml:"database"`
	Session struct {
		TTLMinutes             int `yaml:"ttl_minutes"`
		VerificationTTLMinutes int `yaml:"verification_ttl_minutes"`
	} `yaml:"session"`
	Redis struct {
		URL       string `yaml:"url"`
		Namespace string `yaml:"namespace"`
	} `yaml:"redis"`
	Mongo struct {
		URI      string `yaml:"uri"`
		Database string `yaml:"database"`
	} `yaml:"mongo"`
	Pagination struct {
		DefaultPageSize int `yaml:"default_page_size"`
		MaxPageSize     int `yaml:"max_page_size"`
	} `yaml:"pagination"`
	RateLimit struct {
		Requests      int `yaml:"requests"`
		WindowSeconds int `yaml:"window_seconds"`
	} `yaml:"rate_limit"`
	Storage struct {
		ImageSweepMinutes *int `yaml:"image_sweep_minutes"`
	} `yaml:"storage"`
}

// Load reads configuration from an optional .env file, an optional YAML file
// named by CONFIG_FILE, and environment variables. Environment wins.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	var err error
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.BackendURL = strings.TrimRight(os.Getenv("BACKEND_URL"), "/")
	cfg.BackendAPIKey = os.Getenv("BACKEND_API_KEY")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.JWTIssuer = getEnv("JWT_ISSUER", cfg.JWTIssuer)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.RedisNamespace = getEnv("REDIS_NAMESPACE", cfg.RedisNamespace)
	cfg.MongoURI = getEnv("MONGO_URI", cfg.MongoURI)
	cfg.MongoDatabase = getEnv("MONGO_DATABASE", cfg.MongoDatabase)
	cfg.CORSAllowedOrigins = parseCSVEnv("CORS_ALLOWED_ORIGINS", cfg.CORSAllowedOrigins)

	if cfg.ServerPort, err = getIntEnv("SERVER_PORT", cfg.ServerPort); err != nil {
		return nil, err
	}
	if cfg.DBMaxOpenConns, err = getIntEnv("DB_MAX_OPEN_CONNS", cfg.DBMaxOpenConns); err != nil {
		return nil, err
	}
	if cfg.DBMaxIdleConns, err = getIntEnv("DB_MAX_IDLE_CONNS", cfg.DBMaxIdleConns); err != nil {
		return nil, err
	}
	if cfg.DefaultPageSize, err = getIntEnv("DEFAULT_PAGE_SIZE", cfg.DefaultPageSize); err != nil {
		return nil, err
	}
	if cfg.MaxPageSize, err = getIntEnv("MAX_PAGE_SIZE", cfg.MaxPageSize); err != nil {
		return nil, err
	}
	if cfg.RateLimitRequests, err = getIntEnv("RATE_LIMIT_REQUESTS", cfg.RateLimitRequests); err != nil {
		return nil, err
	}
	if cfg.MaxUploadMB, err = getIntEnv("MAX_UPLOAD_MB", cfg.MaxUploadMB); err != nil {
		return nil, err
	}

	sessionMinutes, err := getIntEnv("SESSION_TTL_MINUTES", int(cfg.SessionTTL/time.Minute))
	if err != nil {
		return nil, err
	}
	cfg.SessionTTL = time.Duration(sessionMinutes) * time.Minute

	windowSeconds, err := getIntEnv("RATE_LIMIT_WINDOW_SECONDS", int(cfg.RateLimitWindow/time.Second))
	if err != nil {
		return nil, err
	}
	cfg.RateLimitWindow = time.Duration(windowSeconds) * time.Second

	sweepMinutes, err := getIntEnv("IMAGE_SWEEP_MINUTES", int(cfg.ImageSweepInterval/time.Minute))
	if err != nil {
		return nil, err
	}
	cfg.ImageSweepInterval = time.Duration(sweepMinutes) * time.Minute

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Environment:     "development",
		ServerPort:      8080,
		LogLevel:        "info",
		DBMaxOpenConns:  25,
		DBMaxIdleConns:  5,
		JWTIssuer:       "rentaladmin",
		SessionTTL:      24 * time.Hour,
		VerificationTTL: 24 * time.Hour,
		RedisURL:        "redis://localhost:6379",
		RedisNamespace:  "rentaladmin",
		MongoURI:        "mongodb://localhost:27017",
		MongoDatabase:   "rentaladmin",
		CORSAllowedOrigins: []string{
			"http://localhost:5173",
			"http://localhost:3000",
		},
		DefaultPageSize:   12,
		MaxPageSize:       100,
		RateLimitRequests: 120,
		RateLimitWindow:   time.Minute,
		MaxUploadMB:       32,

		// 0 disables the orphaned image sweeper
		ImageSweepInterval: time.Hour,
	}
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &fc); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	setString(&c.Environment, fc.Environment)
	setString(&c.LogLevel, fc.LogLevel)
	setInt(&c.ServerPort, fc.Server.Port)
	setInt(&c.MaxUploadMB, fc.Server.MaxUploadMB)
	if len(fc.Server.CORSAllowedOrigins) > 0 {
		c.CORSAllowedOrigins = fc.Server.CORSAllowedOrigins
	}
	setInt(&c.DBMaxOpenConns, fc.Database.MaxOpenConns)
	setInt(&c.DBMaxIdleConns, fc.Database.MaxIdleConns)
	if fc.Session.TTLMinutes > 0 {
		c.SessionTTL = time.Duration(fc.Session.TTLMinutes) * time.Minute
	}
	if fc.Session.VerificationTTLMinutes > 0 {
		c.VerificationTTL = time.Duration(fc.Session.VerificationTTLMinutes) * time.Minute
	}
	setString(&c.RedisURL, fc.Redis.URL)
	setString(&c.RedisNamespace, fc.Redis.Namespace)
	setString(&c.MongoURI, fc.Mongo.URI)
	setString(&c.MongoDatabase, fc.Mongo.Database)
	setInt(&c.DefaultPageSize, fc.Pagination.DefaultPageSize)
	setInt(&c.MaxPageSize, fc.Pagination.MaxPageSize)
	setInt(&c.RateLimitRequests, fc.RateLimit.Requests)
	if fc.RateLimit.WindowSeconds > 0 {
		c.RateLimitWindow = time.Duration(fc.RateLimit.WindowSeconds) * time.Second
	}
	if fc.Storage.ImageSweepMinutes != nil {
		c.ImageSweepInterval = time.Duration(*fc.Storage.ImageSweepMinutes) * time.Minute
	}
	return nil
}

func (c *Config) validate() error {
	var missing []string
	for _, kv := range []struct{ key, value string }{
		{"BACKEND_URL", c.BackendURL},
		{"BACKEND_API_KEY", c.BackendAPIKey},
		{"DATABASE_URL", c.DatabaseURL},
		{"JWT_SECRET", c.JWTSecret},
	} {
		if kv.value == "" {
			missing = append(missing, kv.key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if c.MaxPageSize < 1 {
		return fmt.Errorf("invalid MAX_PAGE_SIZE: %d", c.MaxPageSize)
	}
	if c.DefaultPageSize < 1 || c.DefaultPageSize > c.MaxPageSize {
		return fmt.Errorf("invalid DEFAULT_PAGE_SIZE: %d", c.DefaultPageSize)
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func parseCSVEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
