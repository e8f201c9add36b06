package kv

import "errors"

var (
	// ErrNotFound is returned by Get when the key is absent or expired.
	ErrNotFound = errors.New("kv: not found")

	// ErrContention is returned by Records.Update when every CAS attempt lost a race.
	ErrContention = errors.New("kv: too much contention")

	// ErrInvalidKey rejects empty keys.
	ErrInvalidKey = errors.New("kv: invalid key")
)
