package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the OrderPulse dashboard.
type Config struct {
	Server     ServerConfig
	Shops      ShopsConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	ClickHouse ClickHouseConfig
	Ledger     LedgerConfig
	RateLimit  RateLimitConfig
	Log        LogConfig
	Metrics    MetricsConfig
}

type ServerConfig struct {
	Addr            string
	Env             string
	ShutdownTimeout time.Duration
}

// ShopsConfig lists the fixed set of shops the dashboard tracks.
type ShopsConfig struct {
	Names []string
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
	Addr     string
	Password string
	DB       int
}

// ClickHouseConfig configures the optional order archive warehouse.
type ClickHouseConfig struct {
	Enabled  bool
	Addr     string
	Database string
	User     string
	Password string
}

// LedgerConfig tunes the ledger's subscription and bulk-delete behavior.
type LedgerConfig struct {
	// PollInterval is the snapshot refresh period used when Redis change
	// notifications are unavailable.
	PollInterval time.Duration
	// DeleteBatch is the reset operation's bulk-delete batch size.
	DeleteBatch int
}

type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// Load reads configuration from the environment (and a .env file when
// present) with sensible defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Addr:            getEnv("ORDERPULSE_HTTP_ADDR", ":8080"),
			Env:             getEnv("ORDERPULSE_ENV", "development"),
			ShutdownTimeout: getDurationEnv("ORDERPULSE_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Shops: ShopsConfig{
			Names: getSliceEnv("ORDERPULSE_SHOPS", []string{"버거킹", "김밥천국", "스타벅스"}),
		},
		Database: DatabaseConfig{
			Host:     getEnv("ORDERPULSE_DB_HOST", "localhost"),
			Port:     getIntEnv("ORDERPULSE_DB_PORT", 5432),
			User:     getEnv("ORDERPULSE_DB_USER", "orderpulse"),
			Password: getEnv("ORDERPULSE_DB_PASSWORD", "orderpulse_secret"),
			DBName:   getEnv("ORDERPULSE_DB_NAME", "orderpulse"),
			SSLMode:  getEnv("ORDERPULSE_DB_SSLMODE", "disable"),
			MaxConns: getIntEnv("ORDERPULSE_DB_MAX_CONNS", 25),
			MinConns: getIntEnv("ORDERPULSE_DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Addr:     getEnv("ORDERPULSE_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("ORDERPULSE_REDIS_PASSWORD", ""),
			DB:       getIntEnv("ORDERPULSE_REDIS_DB", 0),
		},
		ClickHouse: ClickHouseConfig{
			Enabled:  getBoolEnv("ORDERPULSE_CLICKHOUSE_ENABLED", false),
			Addr:     getEnv("ORDERPULSE_CLICKHOUSE_ADDR", "localhost:9000"),
			Database: getEnv("ORDERPULSE_CLICKHOUSE_DB", "orderpulse"),
			User:     getEnv("ORDERPULSE_CLICKHOUSE_USER", "default"),
			Password: getEnv("ORDERPULSE_CLICKHOUSE_PASSWORD", ""),
		},
		Ledger: LedgerConfig{
			PollInterval: getDurationEnv("ORDERPULSE_LEDGER_POLL_INTERVAL", 2*time.Second),
			DeleteBatch:  getIntEnv("ORDERPULSE_LEDGER_DELETE_BATCH", 500),
		},
		RateLimit: RateLimitConfig{
			Enabled: getBoolEnv("ORDERPULSE_RATE_LIMIT_ENABLED", true),
			RPS:     getFloatEnv("ORDERPULSE_RATE_LIMIT_RPS", 50),
			Burst:   getIntEnv("ORDERPULSE_RATE_LIMIT_BURST", 25),
		},
		Log: LogConfig{
			Level:  getEnv("ORDERPULSE_LOG_LEVEL", "info"),
			Format: getEnv("ORDERPULSE_LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getBoolEnv("ORDERPULSE_METRICS_ENABLED", true),
			Path:    getEnv("ORDERPULSE_METRICS_PATH", "/metrics"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if len(c.Shops.Names) == 0 {
		return fmt.Errorf("ORDERPULSE_SHOPS must name at least one shop")
	}
	if c.Ledger.DeleteBatch <= 0 {
		return fmt.Errorf("ORDERPULSE_LEDGER_DELETE_BATCH must be positive")
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
