package password

import (
	"os"
	"testing"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{
		"STUDYSPRINT_PASSWORD_ALGORITHM",
		"STUDYSPRINT_PASSWORD_MIN_LEN",
		"STUDYSPRINT_PASSWORD_MAX_LEN",
		"STUDYSPRINT_PBKDF2_ITERATIONS",
	} {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}

	def := DefaultConfig()
	if cfg.Algorithm != AlgorithmPBKDF2SHA512 {
		t.Fatalf("algorithm=%q", cfg.Algorithm)
	}
	if cfg.Policy.MinLength != def.Policy.MinLength || cfg.Policy.MinLength != 6 {
		t.Fatalf("min length mismatch: %d", cfg.Policy.MinLength)
	}
	if cfg.PBKDF2.Iterations != DefaultPBKDF2Iterations {
		t.Fatalf("iterations mismatch: %d", cfg.PBKDF2.Iterations)
	}
}

func TestFromEnv_Override(t *testing.T) {
	t.Setenv("STUDYSPRINT_PASSWORD_ALGORITHM", "argon2id")
	t.Setenv("STUDYSPRINT_PASSWORD_MIN_LEN", "10")
	t.Setenv("STUDYSPRINT_PASSWORD_MAX_LEN", "200")
	t.Setenv("STUDYSPRINT_PASSWORD_REJECT_VERY_WEAK", "true")
	t.Setenv("STUDYSPRINT_PBKDF2_ITERATIONS", "5000")
	t.Setenv("STUDYSPRINT_ARGON2_MEMORY_KIB", "32768")
	t.Setenv("STUDYSPRINT_ARGON2_ITERATIONS", "4")
	t.Setenv("STUDYSPRINT_ARGON2_PARALLELISM", "2")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}

	if cfg.Algorithm != AlgorithmArgon2id {
		t.Fatalf("algorithm override failed: %q", cfg.Algorithm)
	}
	if cfg.Policy.MinLength != 10 || cfg.Policy.MaxLength != 200 || !cfg.Policy.RejectVeryWeak {
		t.Fatalf("policy override failed: %+v", cfg.Policy)
	}
	if cfg.PBKDF2.Iterations != 5000 {
		t.Fatalf("pbkdf2 override failed: %+v", cfg.PBKDF2)
	}
	if cfg.Argon2id.MemoryKiB != 32768 || cfg.Argon2id.Iterations != 4 || cfg.Argon2id.Parallelism != 2 {
		t.Fatalf("argon2 override failed: %+v", cfg.Argon2id)
	}
}

func TestFromEnv_InvalidMinMax(t *testing.T) {
	t.Setenv("STUDYSPRINT_PASSWORD_MIN_LEN", "20")
	t.Setenv("STUDYSPRINT_PASSWORD_MAX_LEN", "10")

	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestFromEnv_InvalidValues(t *testing.T) {
	cases := map[string]string{
		"STUDYSPRINT_PASSWORD_ALGORITHM": "md5",
		"STUDYSPRINT_PBKDF2_ITERATIONS":  "10",
		"STUDYSPRINT_PBKDF2_SALT_LEN":    "not-a-number",
	}
	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			t.Setenv(k, v)
			if _, err := FromEnv(); err == nil {
				t.Fatalf("%s=%q: expected error", k, v)
			}
		})
	}
}
