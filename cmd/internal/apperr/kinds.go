package apperr

import "errors"

// Sentinel error kinds (stable for errors.Is and for mapping to API status codes).
var (
	ErrInvalidInput     = errors.New("invalid_input")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotFound         = errors.New("not_found")
	ErrConflict         = errors.New("conflict")
	ErrMethodNotAllowed = errors.New("method_not_allowed")
	ErrInternal         = errors.New("internal")
)
