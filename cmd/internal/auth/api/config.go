package authapi

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v11"

	"studysprint/cmd/internal/httpx"
)

// Config controls auth API transport behavior.
type Config struct {
	// TrustProxy makes audit records and login throttling use X-Forwarded-For / X-Real-IP.
	TrustProxy   bool  `env:"AUTH_TRUST_PROXY" envDefault:"false"`
	MaxBodyBytes int64 `env:"AUTH_MAX_BODY_BYTES" envDefault:"1048576"`

	// Failed logins per client IP inside LoginIPWindow before the IP is refused.
	LoginIPMax    int           `env:"AUTH_LOGIN_IP_MAX" envDefault:"20"`
	LoginIPWindow time.Duration `env:"AUTH_LOGIN_IP_WINDOW" envDefault:"5m"`

	// A username's failure count restarts after LoginUserWindow without failures.
	LoginUserWindow time.Duration `env:"AUTH_LOGIN_USER_WINDOW" envDefault:"15m"`

	// Progressive per-username lockout.
	LockoutShortThreshold  int           `env:"AUTH_LOGIN_LOCKOUT_SHORT_THRESHOLD" envDefault:"5"`
	LockoutShortDuration   time.Duration `env:"AUTH_LOGIN_LOCKOUT_SHORT_DURATION" envDefault:"5m"`
	LockoutLongThreshold   int           `env:"AUTH_LOGIN_LOCKOUT_LONG_THRESHOLD" envDefault:"10"`
	LockoutLongDuration    time.Duration `env:"AUTH_LOGIN_LOCKOUT_LONG_DURATION" envDefault:"30m"`
	LockoutSevereThreshold int           `env:"AUTH_LOGIN_LOCKOUT_SEVERE_THRESHOLD" envDefault:"20"`
	LockoutSevereDuration  time.Duration `env:"AUTH_LOGIN_LOCKOUT_SEVERE_DURATION" envDefault:"2h"`
}

// DefaultConfig returns the defaults used when no environment is set.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes: httpx.DefaultMaxBodyBytes,

		LoginIPMax:    20,
		LoginIPWindow: 5 * time.Minute,

		LoginUserWindow: 15 * time.Minute,

		LockoutShortThreshold:  5,
		LockoutShortDuration:   5 * time.Minute,
		LockoutLongThreshold:   10,
		LockoutLongDuration:    30 * time.Minute,
		LockoutSevereThreshold: 20,
		LockoutSevereDuration:  2 * time.Hour,
	}
}

// LoadConfigFromEnv reads STUDYSPRINT_AUTH_* variables.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "STUDYSPRINT_"}); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects a non-positive body cap and inconsistent throttle settings.
// A zero max or threshold disables that limit.
func (c Config) Validate() error {
	if c.MaxBodyBytes <= 0 {
		return errors.New("authapi: max body bytes must be positive")
	}
	if c.LoginIPMax < 0 || c.LockoutShortThreshold < 0 || c.LockoutLongThreshold < 0 || c.LockoutSevereThreshold < 0 {
		return errors.New("authapi: login limits must not be negative")
	}
	if c.LoginIPMax > 0 && c.LoginIPWindow <= 0 {
		return errors.New("authapi: login ip window must be positive")
	}
	if c.LoginUserWindow <= 0 {
		return errors.New("authapi: login user window must be positive")
	}

	tiers := []struct {
		threshold int
		duration  time.Duration
	}{
		{c.LockoutShortThreshold, c.LockoutShortDuration},
		{c.LockoutLongThreshold, c.LockoutLongDuration},
		{c.LockoutSevereThreshold, c.LockoutSevereDuration},
	}
	prev := 0
	for _, tier := range tiers {
		if tier.threshold == 0 {
			continue
		}
		if tier.duration <= 0 {
			return errors.New("authapi: lockout duration must be positive")
		}
		if tier.threshold < prev {
			return errors.New("authapi: lockout thresholds must be ascending")
		}
		prev = tier.threshold
	}
	return nil
}
