package session

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config controls token lifetime and entropy.
type Config struct {
	// TokenTTL is the lifetime of a session token from issuance.
	TokenTTL time.Duration `env:"TOKEN_TTL" envDefault:"24h"`

	// TokenBytes is the number of random bytes in a token (hex encoded on the wire).
	TokenBytes int `env:"TOKEN_BYTES" envDefault:"32"`
}

// DefaultConfig returns the built-in defaults (24h tokens, 32 random bytes).
func DefaultConfig() Config {
	return Config{
		TokenTTL:   24 * time.Hour,
		TokenBytes: 32,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Optional:
//   - STUDYSPRINT_TOKEN_TTL (Go duration, > 0, <= 30 days)
//   - STUDYSPRINT_TOKEN_BYTES (32..64)
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "STUDYSPRINT_"}); err != nil {
		return Config{}, ErrConfig
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks bounds.
func (c Config) Validate() error {
	if c.TokenTTL <= 0 || c.TokenTTL > 30*24*time.Hour {
		return ErrConfig
	}
	if c.TokenBytes < 32 || c.TokenBytes > 64 {
		return ErrConfig
	}
	return nil
}
