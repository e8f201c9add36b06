package app

import (
	"errors"

	"studysprint/cmd/security/token"
)

// minHMACKeyBytes is the minimum secret length for HMAC-SHA256 token hashing, measured in bytes.
const minHMACKeyBytes = 32

// ValidateSecurityConfig enforces the token hashing policy at startup. It fails instead of
// falling back to plain SHA-256 when HMAC is required.
func ValidateSecurityConfig(cfg Config) error {
	if !cfg.RequireTokenHMAC {
		return nil
	}

	if _, err := token.HMACKeyFromEnv(minHMACKeyBytes); err != nil {
		switch {
		case errors.Is(err, token.ErrHMACKeyMissing):
			return errors.New("security policy: STUDYSPRINT_REQUIRE_TOKEN_HMAC=true but STUDYSPRINT_TOKEN_HMAC_KEY is missing")
		case errors.Is(err, token.ErrHMACKeyTooShort):
			return errors.New("security policy: STUDYSPRINT_REQUIRE_TOKEN_HMAC=true but STUDYSPRINT_TOKEN_HMAC_KEY is too short (min 32 bytes)")
		default:
			return err
		}
	}

	if !token.HasherFromEnv().HMAC() {
		return errors.New("security policy: STUDYSPRINT_REQUIRE_TOKEN_HMAC=true but token hasher is not in HMAC mode")
	}
	return nil
}
