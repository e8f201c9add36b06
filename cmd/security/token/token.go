package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

const (
	// HMACEnvKey is the env var name for the token HMAC secret.
	// #nosec G101 -- not a credential; it's an environment variable name.
	HMACEnvKey = "STUDYSPRINT_TOKEN_HMAC_KEY"

	// DefaultTokenBytes is the entropy of a session token (hex encoded to 64 chars).
	DefaultTokenBytes = 32
)

// NewOpaque returns nBytes of crypto randomness as lowercase hex.
// The plain value goes to the client once; the server stores only its hash.
func NewOpaque(nBytes int) (string, error) {
	if nBytes <= 0 {
		nBytes = DefaultTokenBytes
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("token: random: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashSHA256Hex returns a SHA-256 hex digest of s.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashHMACSHA256Hex returns an HMAC-SHA256 hex digest of s using key.
func HashHMACSHA256Hex(s string, key []byte) string {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(s))
	return hex.EncodeToString(m.Sum(nil))
}

// HMACKeyFromEnv returns the configured HMAC key bytes (trimmed), enforcing a minimum byte length.
// If the env var is missing/blank -> ErrHMACKeyMissing.
// If too short -> ErrHMACKeyTooShort.
func HMACKeyFromEnv(minBytes int) ([]byte, error) {
	raw := strings.TrimSpace(os.Getenv(HMACEnvKey))
	if raw == "" {
		return nil, ErrHMACKeyMissing
	}
	b := []byte(raw)
	if minBytes > 0 && len(b) < minBytes {
		return nil, ErrHMACKeyTooShort
	}
	return b, nil
}

// HMACEnabled reports whether the env key is present (non-empty after trim).
func HMACEnabled() bool {
	return strings.TrimSpace(os.Getenv(HMACEnvKey)) != ""
}

// Hasher maps a plain session token to its storage identifier.
type Hasher struct {
	key []byte
}

// NewHasher returns an HMAC-SHA256 hasher, or plain SHA-256 when key is empty.
func NewHasher(key []byte) Hasher {
	return Hasher{key: append([]byte(nil), key...)}
}

// HasherFromEnv builds a Hasher from STUDYSPRINT_TOKEN_HMAC_KEY (SHA-256 when unset).
func HasherFromEnv() Hasher {
	return NewHasher([]byte(strings.TrimSpace(os.Getenv(HMACEnvKey))))
}

// HMAC reports whether h is keyed.
func (h Hasher) HMAC() bool { return len(h.key) > 0 }

// Hex returns the 64-char hex storage identifier for tok.
func (h Hasher) Hex(tok string) string {
	if len(h.key) == 0 {
		return HashSHA256Hex(tok)
	}
	return HashHMACSHA256Hex(tok, h.key)
}
