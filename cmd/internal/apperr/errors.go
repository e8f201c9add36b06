// Package apperr defines the error kinds shared by the service layers and their HTTP mapping.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// OpError is a typed operation error with a stable Op + Kind contract for callers/tests.
// Msg is safe to show to clients; Err is the underlying cause and is only logged.
type OpError struct {
	Op   string
	Kind error
	Msg  string
	Err  error
}

func (e OpError) Error() string {
	switch {
	case e.Msg == "" && e.Err == nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	case e.Err == nil:
		return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Msg)
	default:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
}

func (e OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Invalid builds an ErrInvalidInput error.
func Invalid(op, msg string) error { return OpError{Op: op, Kind: ErrInvalidInput, Msg: msg} }

// Unauthorized builds an ErrUnauthorized error.
func Unauthorized(op, msg string) error { return OpError{Op: op, Kind: ErrUnauthorized, Msg: msg} }

// Conflict builds an ErrConflict error.
func Conflict(op, msg string) error { return OpError{Op: op, Kind: ErrConflict, Msg: msg} }

// Internal wraps a substrate or programming failure. The cause never reaches clients.
func Internal(op string, err error) error {
	return OpError{Op: op, Kind: ErrInternal, Msg: "internal error", Err: err}
}

// IsInvalidInput reports whether err represents ErrInvalidInput.
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }

// IsUnauthorized reports whether err represents ErrUnauthorized.
func IsUnauthorized(err error) bool { return errors.Is(err, ErrUnauthorized) }

// IsConflict reports whether err represents ErrConflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsNotFound reports whether err represents ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// HTTPStatus maps an error to its response status, code and client-safe message.
// Anything that is not a known client-side kind becomes a generic 500.
func HTTPStatus(err error) (status int, code, msg string) {
	var op OpError
	hasOp := errors.As(err, &op)

	switch {
	case errors.Is(err, ErrInvalidInput):
		status, code = http.StatusBadRequest, "invalid_input"
	case errors.Is(err, ErrUnauthorized):
		status, code = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, ErrMethodNotAllowed):
		status, code = http.StatusMethodNotAllowed, "method_not_allowed"
	case errors.Is(err, ErrConflict):
		status, code = http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "server_error", "internal error"
	}

	msg = http.StatusText(status)
	if hasOp && op.Msg != "" {
		msg = op.Msg
	}
	return status, code, msg
}
