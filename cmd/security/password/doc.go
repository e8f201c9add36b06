// Package password provides password hashing and verification.
//
// It derives keys with PBKDF2-HMAC-SHA512 by default (Argon2id is selectable) and includes:
// - Configurable parameters (via STUDYSPRINT_ environment variables)
// - Password policy validation
// - Verification bounded against untrusted stored parameters
//
// Hash and salt are hex encoded; the salt is per-password random and reused only to verify.
package password
