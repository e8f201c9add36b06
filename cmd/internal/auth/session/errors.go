package session

import "errors"

var (
	// ErrTokenNotFound is returned when no record matches the token digest.
	ErrTokenNotFound = errors.New("session token not found")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid session config")
)
