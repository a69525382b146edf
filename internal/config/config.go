package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the recovery analytics service.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Log       LogConfig
	Metrics   MetricsConfig
	Ads       AdsConfig
	Analytics AnalyticsConfig
}

type ServerConfig struct {
	Addr            string
	Env             string
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	Enabled   bool
	MasterKey string
	SkipPaths []string
}

type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
	IPRPS   float64
	IPBurst int
}

type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled   bool
	Path      string
	Namespace string
}

// AdsConfig configures the ads platform insights client.
type AdsConfig struct {
	BaseURL    string
	APIVersion string
	Timeout    time.Duration
	MaxRetries int
	// PageLimit caps how many result pages are followed per insights call.
	PageLimit int
}

// AnalyticsConfig holds report defaults and per-tenant limits.
type AnalyticsConfig struct {
	DefaultPeriod int
	Timezone      string
	ROITimeout    time.Duration
	// ConnCacheTTL is how long ads connection lookups are cached. Zero disables the cache.
	ConnCacheTTL time.Duration
	// DailyQuota is the number of analytics requests a tenant may make per
	// UTC day. Zero disables the quota.
	DailyQuota int64
}

// Location resolves the configured reporting timezone.
func (a AnalyticsConfig) Location() (*time.Location, error) {
	return time.LoadLocation(a.Timezone)
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is applied first when present;
// variables already set in the environment win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Addr:            getEnv("RECOVERY_HTTP_ADDR", ":8080"),
			Env:             getEnv("RECOVERY_ENV", "development"),
			ShutdownTimeout: getDurationEnv("RECOVERY_SHUTDOWN_TIMEOUT", 30*time.Second),
			RequestTimeout:  getDurationEnv("RECOVERY_REQUEST_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("RECOVERY_DB_HOST", "localhost"),
			Port:     getIntEnv("RECOVERY_DB_PORT", 5432),
			User:     getEnv("RECOVERY_DB_USER", "recovery"),
			Password: getEnv("RECOVERY_DB_PASSWORD", "recovery_secret"),
			DBName:   getEnv("RECOVERY_DB_NAME", "recovery"),
			SSLMode:  getEnv("RECOVERY_DB_SSLMODE", "disable"),
			MaxConns: getIntEnv("RECOVERY_DB_MAX_CONNS", 25),
			MinConns: getIntEnv("RECOVERY_DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Enabled:  getBoolEnv("RECOVERY_REDIS_ENABLED", true),
			Addr:     getEnv("RECOVERY_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("RECOVERY_REDIS_PASSWORD", ""),
			DB:       getIntEnv("RECOVERY_REDIS_DB", 0),
		},
		Auth: AuthConfig{
			Enabled:   getBoolEnv("RECOVERY_AUTH_ENABLED", true),
			MasterKey: getEnv("RECOVERY_API_KEY_MASTER", ""),
			SkipPaths: getSliceEnv("RECOVERY_AUTH_SKIP_PATHS", []string{"/health", "/metrics"}),
		},
		RateLimit: RateLimitConfig{
			Enabled: getBoolEnv("RECOVERY_RATE_LIMIT_ENABLED", true),
			RPS:     getFloatEnv("RECOVERY_RATE_LIMIT_RPS", 200),
			Burst:   getIntEnv("RECOVERY_RATE_LIMIT_BURST", 50),
			IPRPS:   getFloatEnv("RECOVERY_RATE_LIMIT_IP_RPS", 10),
			IPBurst: getIntEnv("RECOVERY_RATE_LIMIT_IP_BURST", 20),
		},
		Log: LogConfig{
			Level:  getEnv("RECOVERY_LOG_LEVEL", "info"),
			Format: getEnv("RECOVERY_LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled:   getBoolEnv("RECOVERY_METRICS_ENABLED", true),
			Path:      getEnv("RECOVERY_METRICS_PATH", "/metrics"),
			Namespace: getEnv("RECOVERY_METRICS_NAMESPACE", "recovery"),
		},
		Ads: AdsConfig{
			BaseURL:    getEnv("RECOVERY_ADS_BASE_URL", "https://graph.facebook.com"),
			APIVersion: getEnv("RECOVERY_ADS_API_VERSION", "v19.0"),
			Timeout:    getDurationEnv("RECOVERY_ADS_TIMEOUT", 10*time.Second),
			MaxRetries: getIntEnv("RECOVERY_ADS_MAX_RETRIES", 3),
			PageLimit:  getIntEnv("RECOVERY_ADS_PAGE_LIMIT", 10),
		},
		Analytics: AnalyticsConfig{
			DefaultPeriod: getIntEnv("RECOVERY_DEFAULT_PERIOD", 30),
			Timezone:      getEnv("RECOVERY_TIMEZONE", "America/Sao_Paulo"),
			ROITimeout:    getDurationEnv("RECOVERY_ROI_TIMEOUT", 8*time.Second),
			ConnCacheTTL:  getDurationEnv("RECOVERY_CONN_CACHE_TTL", 5*time.Minute),
			DailyQuota:    int64(getIntEnv("RECOVERY_DAILY_QUOTA", 0)),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Auth.Enabled && c.Auth.MasterKey == "" {
		return fmt.Errorf("RECOVERY_API_KEY_MASTER is required when auth is enabled")
	}
	if c.Analytics.DefaultPeriod <= 0 {
		return fmt.Errorf("RECOVERY_DEFAULT_PERIOD must be positive, got %d", c.Analytics.DefaultPeriod)
	}
	if _, err := c.Analytics.Location(); err != nil {
		return fmt.Errorf("RECOVERY_TIMEZONE: %w", err)
	}
	if c.Ads.PageLimit <= 0 {
		return fmt.Errorf("RECOVERY_ADS_PAGE_LIMIT must be positive, got %d", c.Ads.PageLimit)
	}
	if c.Analytics.DailyQuota > 0 && !c.Redis.Enabled {
		return fmt.Errorf("RECOVERY_DAILY_QUOTA requires redis")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Helper functions for reading environment variables

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getFloatEnv(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getSliceEnv(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				result = append(result, p)
			}
		}
		return result
	}
	return def
}
