package session

import (
	"os"
	"testing"
	"time"
)

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	unsetEnv(t, "STUDYSPRINT_TOKEN_TTL", "STUDYSPRINT_TOKEN_BYTES")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Fatalf("cfg=%+v want defaults %+v", cfg, DefaultConfig())
	}
	if cfg.TokenTTL != 24*time.Hour {
		t.Fatalf("ttl=%v", cfg.TokenTTL)
	}
}

func TestLoadConfigFromEnv_InvalidDurations(t *testing.T) {
	for _, v := range []string{"-5m", "0s", "not-a-duration", "2000h"} {
		t.Run(v, func(t *testing.T) {
			t.Setenv("STUDYSPRINT_TOKEN_TTL", v)
			if _, err := LoadConfigFromEnv(); err != ErrConfig {
				t.Fatalf("TOKEN_TTL=%q: expected ErrConfig, got %v", v, err)
			}
		})
	}
}

func TestLoadConfigFromEnv_InvalidTokenBytes(t *testing.T) {
	t.Setenv("STUDYSPRINT_TOKEN_BYTES", "16")
	if _, err := LoadConfigFromEnv(); err != ErrConfig {
		t.Fatalf("expected ErrConfig for small token bytes, got %v", err)
	}
}

func TestLoadConfigFromEnv_Valid(t *testing.T) {
	t.Setenv("STUDYSPRINT_TOKEN_TTL", "12h")
	t.Setenv("STUDYSPRINT_TOKEN_BYTES", "48")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TokenTTL != 12*time.Hour || cfg.TokenBytes != 48 {
		t.Fatalf("cfg mismatch: %+v", cfg)
	}
}

func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}
}
