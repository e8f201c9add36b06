package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Backend names accepted by STUDYSPRINT_KV_BACKEND.
const (
	BackendAuto     = "auto"
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config contains all runtime configuration loaded from environment variables (prefix STUDYSPRINT_).
type Config struct {
	HTTPAddr  string `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	LogColor  bool   `env:"LOG_COLOR" envDefault:"true"`

	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
	ReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout   time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MaxHeaderBytes    int           `env:"HTTP_MAX_HEADER_BYTES" envDefault:"1048576"`
	MaxBodyBytes      int64         `env:"HTTP_MAX_BODY_BYTES" envDefault:"1048576"`

	// KVBackend selects the substrate. "auto" picks postgres, then redis, then memory
	// depending on which URL is set.
	KVBackend string `env:"KV_BACKEND" envDefault:"auto"`

	DatabaseURL   string        `env:"DATABASE_URL"`
	DBMaxConns    int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns    int32         `env:"DB_MIN_CONNS" envDefault:"0"`
	DBSchema      string        `env:"DB_SCHEMA" envDefault:"studysprint"`
	DBAutoMigrate bool          `env:"DB_AUTO_MIGRATE" envDefault:"true"`
	PurgeInterval time.Duration `env:"KV_PURGE_INTERVAL" envDefault:"10m"`

	RedisURL       string `env:"REDIS_URL"`
	RedisKeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"studysprint:"`

	// If true, /readyz returns 503 on the in-memory backend.
	ReadinessRequireStore bool `env:"READINESS_REQUIRE_STORE" envDefault:"false"`

	// If true, STUDYSPRINT_TOKEN_HMAC_KEY must be set (>= 32 bytes).
	RequireTokenHMAC bool `env:"REQUIRE_TOKEN_HMAC" envDefault:"false"`

	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"true"`
}

// LoadConfig loads .env (when present) and then the process environment.
// Variables already set in the environment win over .env.
func LoadConfig() (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "STUDYSPRINT_"}); err != nil {
		return Config{}, fmt.Errorf("app config: %w", err)
	}
	cfg.KVBackend = strings.ToLower(strings.TrimSpace(cfg.KVBackend))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Validate rejects contradictory settings.
func (c Config) Validate() error {
	switch c.KVBackend {
	case BackendAuto, BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("app config: KV_BACKEND=postgres requires DATABASE_URL")
		}
	case BackendRedis:
		if c.RedisURL == "" {
			return errors.New("app config: KV_BACKEND=redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("app config: unknown KV_BACKEND %q", c.KVBackend)
	}

	switch c.LogFormat {
	case "json", "pretty":
	default:
		return fmt.Errorf("app config: unknown LOG_FORMAT %q", c.LogFormat)
	}

	if c.DBMinConns > c.DBMaxConns {
		return errors.New("app config: DB_MIN_CONNS exceeds DB_MAX_CONNS")
	}
	// The embedded migration creates the default schema only.
	if c.DBAutoMigrate && c.DBSchema != "studysprint" {
		return errors.New("app config: DB_AUTO_MIGRATE requires DB_SCHEMA=studysprint")
	}
	if c.MaxBodyBytes <= 0 {
		return errors.New("app config: HTTP_MAX_BODY_BYTES must be positive")
	}
	return nil
}

// backend resolves "auto" against the configured URLs.
func (c Config) backend() string {
	if c.KVBackend != BackendAuto && c.KVBackend != "" {
		return c.KVBackend
	}
	switch {
	case c.DatabaseURL != "":
		return BackendPostgres
	case c.RedisURL != "":
		return BackendRedis
	default:
		return BackendMemory
	}
}
