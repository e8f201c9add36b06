package password

import (
	"fmt"
	"runtime"

	"github.com/caarlos0/env/v11"
)

// Algorithm names a supported key-derivation function.
type Algorithm string

const (
	// AlgorithmPBKDF2SHA512 is PBKDF2-HMAC-SHA512 (default).
	AlgorithmPBKDF2SHA512 Algorithm = "pbkdf2-sha512"
	// AlgorithmArgon2id is Argon2id.
	AlgorithmArgon2id Algorithm = "argon2id"
)

// DefaultPBKDF2Iterations is the PBKDF2-HMAC-SHA512 work factor for new hashes.
// It follows the OWASP 2023 recommendation for SHA-512 (210k).
const DefaultPBKDF2Iterations = 210_000

// PBKDF2Params controls PBKDF2 hashing cost and sizes (bytes).
type PBKDF2Params struct {
	Iterations uint32 `env:"PBKDF2_ITERATIONS"`
	SaltLength uint32 `env:"PBKDF2_SALT_LEN"`
	KeyLength  uint32 `env:"PBKDF2_KEY_LEN"`
}

// Argon2idParams controls Argon2id hashing cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32 `env:"ARGON2_MEMORY_KIB"`
	Iterations  uint32 `env:"ARGON2_ITERATIONS"`
	Parallelism uint8  `env:"ARGON2_PARALLELISM"`
	SaltLength  uint32 `env:"ARGON2_SALT_LEN"`
	KeyLength   uint32 `env:"ARGON2_KEY_LEN"`
}

// Policy controls password validation and anti-DoS boundaries.
type Policy struct {
	MinLength int `env:"PASSWORD_MIN_LEN"`
	MaxLength int `env:"PASSWORD_MAX_LEN"`
	// If true, enable an extra, minimal weak-pattern rejection.
	RejectVeryWeak bool `env:"PASSWORD_REJECT_VERY_WEAK"`
}

// Config is the single configuration surface for this package.
type Config struct {
	Algorithm Algorithm `env:"PASSWORD_ALGORITHM"`
	PBKDF2    PBKDF2Params
	Argon2id  Argon2idParams
	Policy    Policy
}

// DefaultConfig returns the production baseline.
func DefaultConfig() Config {
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}

	return Config{
		Algorithm: AlgorithmPBKDF2SHA512,
		PBKDF2: PBKDF2Params{
			Iterations: DefaultPBKDF2Iterations,
			SaltLength: 16,
			KeyLength:  64,
		},
		Argon2id: Argon2idParams{
			MemoryKiB:   64 * 1024,
			Iterations:  3,
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4] above.
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: Policy{
			MinLength:      6,
			MaxLength:      256,
			RejectVeryWeak: false,
		},
	}
}

// FromEnv overlays STUDYSPRINT_-prefixed environment variables on DefaultConfig.
//
// Env surface (all prefixed with STUDYSPRINT_):
// - PASSWORD_ALGORITHM (pbkdf2-sha512 | argon2id)
// - PASSWORD_MIN_LEN, PASSWORD_MAX_LEN, PASSWORD_REJECT_VERY_WEAK
// - PBKDF2_ITERATIONS, PBKDF2_SALT_LEN, PBKDF2_KEY_LEN
// - ARGON2_MEMORY_KIB, ARGON2_ITERATIONS, ARGON2_PARALLELISM, ARGON2_SALT_LEN, ARGON2_KEY_LEN
func FromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "STUDYSPRINT_"}); err != nil {
		return Config{}, fmt.Errorf("password config: %w", err)
	}
	if err := cfg.Check(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Check validates bounds of every parameter.
func (c Config) Check() error {
	switch c.Algorithm {
	case AlgorithmPBKDF2SHA512, AlgorithmArgon2id:
	default:
		return fmt.Errorf("PASSWORD_ALGORITHM: unsupported %q", c.Algorithm)
	}

	checks := []struct {
		name      string
		v, lo, hi uint64
	}{
		{"PASSWORD_MIN_LEN", uint64(max(c.Policy.MinLength, 0)), 1, 1024},
		{"PASSWORD_MAX_LEN", uint64(max(c.Policy.MaxLength, 0)), 1, 4096},
		{"PBKDF2_ITERATIONS", uint64(c.PBKDF2.Iterations), 1000, 10_000_000},
		{"PBKDF2_SALT_LEN", uint64(c.PBKDF2.SaltLength), 8, 64},
		{"PBKDF2_KEY_LEN", uint64(c.PBKDF2.KeyLength), 16, 128},
		{"ARGON2_MEMORY_KIB", uint64(c.Argon2id.MemoryKiB), 8 * 1024, 1024 * 1024},
		{"ARGON2_ITERATIONS", uint64(c.Argon2id.Iterations), 1, 20},
		{"ARGON2_PARALLELISM", uint64(c.Argon2id.Parallelism), 1, 64},
		{"ARGON2_SALT_LEN", uint64(c.Argon2id.SaltLength), 8, 64},
		{"ARGON2_KEY_LEN", uint64(c.Argon2id.KeyLength), 16, 64},
	}
	for _, ck := range checks {
		if ck.v < ck.lo || ck.v > ck.hi {
			return fmt.Errorf("%s: out of range [%d..%d]", ck.name, ck.lo, ck.hi)
		}
	}

	if c.Policy.MinLength > c.Policy.MaxLength {
		return fmt.Errorf(
			"password policy invalid: min_len(%d) > max_len(%d)",
			c.Policy.MinLength,
			c.Policy.MaxLength,
		)
	}
	return nil
}
