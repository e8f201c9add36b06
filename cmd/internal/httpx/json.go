// Package httpx holds the JSON and bearer-token helpers shared by the API handlers.
package httpx

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"studysprint/cmd/internal/apperr"
)

// DefaultMaxBodyBytes caps request bodies.
const DefaultMaxBodyBytes int64 = 1 << 20

// ErrorBody is the JSON error envelope: {"error": "...", "code": "..."}.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// WriteJSON writes v with status and no-store caching.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a JSON error with an explicit status.
func WriteError(w http.ResponseWriter, status int, code, msg string) {
	WriteJSON(w, status, ErrorBody{Error: msg, Code: code})
}

// WriteErr maps err through apperr.HTTPStatus and writes it. It returns the status so
// callers can decide whether to log (5xx only).
func WriteErr(w http.ResponseWriter, err error) int {
	status, code, msg := apperr.HTTPStatus(err)
	WriteError(w, status, code, msg)
	return status
}

// DecodeLenient decodes a JSON object into dst. A missing, oversized or malformed body
// leaves dst at its zero value, so handlers treat it as an empty object and validate fields.
func DecodeLenient(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) {
	if r.Body == nil {
		return
	}
	defer func() { _ = r.Body.Close() }()

	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBytes))
	if err != nil || len(strings.TrimSpace(string(body))) == 0 {
		return
	}

	// A decode error resets dst so a partially valid body never leaks half-filled fields.
	if err := json.Unmarshal(body, dst); err != nil {
		resetZero(dst)
	}
}

// Method rejects requests whose method is not one of allowed with a JSON 405.
func Method(w http.ResponseWriter, r *http.Request, allowed ...string) bool {
	for _, m := range allowed {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	return false
}
