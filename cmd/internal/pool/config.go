package pool

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v11"
)

// DefaultMaxBytes caps a pool document at 8 MiB.
const DefaultMaxBytes int64 = 8 << 20

// Config selects and tunes the pool source.
type Config struct {
	URL          string        `env:"POOL_URL"`
	CacheTTL     time.Duration `env:"POOL_CACHE_TTL" envDefault:"5m"`
	FetchTimeout time.Duration `env:"POOL_FETCH_TIMEOUT" envDefault:"10s"`
	MaxBytes     int64         `env:"POOL_MAX_BYTES" envDefault:"8388608"`
	S3           S3Config      `envPrefix:"POOL_S3_"`
}

// DefaultConfig returns the zero-environment defaults (no pool configured).
func DefaultConfig() Config {
	return Config{
		CacheTTL:     5 * time.Minute,
		FetchTimeout: 10 * time.Second,
		MaxBytes:     DefaultMaxBytes,
		S3:           S3Config{Region: "us-east-1"},
	}
}

// LoadConfigFromEnv reads STUDYSPRINT_POOL_* variables.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "STUDYSPRINT_"}); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Enabled reports whether a pool URL is configured.
func (c Config) Enabled() bool { return c.URL != "" }

// Validate checks the tuning values. An empty URL is valid (pool disabled).
func (c Config) Validate() error {
	switch {
	case c.CacheTTL < 0:
		return errors.New("pool: cache ttl must be >= 0")
	case c.FetchTimeout <= 0:
		return errors.New("pool: fetch timeout must be positive")
	case c.MaxBytes <= 0:
		return errors.New("pool: max bytes must be positive")
	}
	return nil
}
