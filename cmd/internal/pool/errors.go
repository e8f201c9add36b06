package pool

import "errors"

var (
	// ErrNotConfigured is returned when no pool URL is set.
	ErrNotConfigured = errors.New("pool: not configured")

	// ErrNotArray rejects documents whose top level is not a JSON array.
	ErrNotArray = errors.New("pool: document is not a JSON array")

	// ErrNotFound means the source answered but the document does not exist.
	ErrNotFound = errors.New("pool: document not found")

	// ErrTooLarge rejects documents above the configured byte cap.
	ErrTooLarge = errors.New("pool: document too large")

	// ErrUnsupportedScheme rejects pool URLs other than http(s), s3 and file.
	ErrUnsupportedScheme = errors.New("pool: unsupported url scheme")
)
