// Package token provides session-token generation and hashing primitives.
//
// Tokens are opaque random strings. Only a digest is persisted:
// - Default dev mode: SHA-256(token) when no HMAC key is configured.
// - Production-enforced mode: HMAC-SHA256(token, key) when policy requires it.
//
// Environment:
// - STUDYSPRINT_TOKEN_HMAC_KEY: when set, enables HMAC mode.
// Policy:
//   - If RequireTokenHMAC=true, callers MUST enforce a minimum key size (>= 32 bytes).
package token
