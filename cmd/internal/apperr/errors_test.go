package apperr

import (
	"errors"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")

	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{name: "invalid", err: Invalid("op", "username too short"), wantStatus: 400, wantCode: "invalid_input", wantMsg: "username too short"},
		{name: "unauthorized", err: Unauthorized("op", "invalid credentials"), wantStatus: 401, wantCode: "unauthorized", wantMsg: "invalid credentials"},
		{name: "conflict", err: Conflict("op", "username taken"), wantStatus: 409, wantCode: "conflict", wantMsg: "username taken"},
		{name: "bare kind", err: ErrMethodNotAllowed, wantStatus: 405, wantCode: "method_not_allowed", wantMsg: "Method Not Allowed"},
		{name: "internal hides cause", err: Internal("op", cause), wantStatus: 500, wantCode: "server_error", wantMsg: "internal error"},
		{name: "unknown", err: cause, wantStatus: http.StatusInternalServerError, wantCode: "server_error", wantMsg: "internal error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			status, code, msg := HTTPStatus(tc.err)
			if status != tc.wantStatus || code != tc.wantCode || msg != tc.wantMsg {
				t.Fatalf("HTTPStatus()=(%d,%q,%q) want (%d,%q,%q)", status, code, msg, tc.wantStatus, tc.wantCode, tc.wantMsg)
			}
		})
	}
}

func TestOpError_UnwrapsKindAndCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("disk full")
	err := Internal("study.Record", cause)

	if !errors.Is(err, ErrInternal) {
		t.Fatalf("expected ErrInternal kind")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable")
	}
	if IsInvalidInput(err) || IsUnauthorized(err) {
		t.Fatalf("unexpected kind match")
	}
}
