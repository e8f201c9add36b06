// Package studyapi exposes session start, save and history listing over HTTP.
// Every endpoint resolves the caller from the bearer token; request bodies never name the user.
package studyapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"studysprint/cmd/internal/httpx"
	"studysprint/cmd/internal/study"
)

// Verifier resolves a bearer token to a username.
type Verifier interface {
	Verify(ctx context.Context, now time.Time, tok string) (string, error)
}

// PoolSizer reports the size of the configured question pool.
type PoolSizer interface {
	Size(ctx context.Context) (int, error)
}

// Handler serves the study endpoints.
type Handler struct {
	log       *slog.Logger
	auth      Verifier
	scheduler *study.Scheduler
	history   *study.History
	pool      PoolSizer
	maxBody   int64
	now       func() time.Time
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handler)

// WithPool lets start fall back to the pool size when totalItems is omitted.
func WithPool(p PoolSizer) HandlerOption {
	return func(h *Handler) { h.pool = p }
}

// WithMaxBodyBytes caps request bodies.
func WithMaxBodyBytes(n int64) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.maxBody = n
		}
	}
}

// WithClock overrides time.Now (tests).
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler constructs a study Handler.
func NewHandler(log *slog.Logger, auth Verifier, scheduler *study.Scheduler, history *study.History, opts ...HandlerOption) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if auth == nil || scheduler == nil || history == nil {
		return nil, errors.New("studyapi: missing dependency")
	}

	h := &Handler{
		log:       log,
		auth:      auth,
		scheduler: scheduler,
		history:   history,
		maxBody:   httpx.DefaultMaxBodyBytes,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// Register wires the study routes onto mux, including the legacy function paths.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/api/sessions/next", h.handleStart)
	mux.HandleFunc("/api/sessions/save", h.handleSave)
	mux.HandleFunc("/api/sessions/list", h.handleList)

	mux.HandleFunc("/.netlify/functions/sessions-next", h.handleStart)
	mux.HandleFunc("/.netlify/functions/sessions-save", h.handleSave)
	mux.HandleFunc("/.netlify/functions/sessions-list", h.handleList)
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	if !httpx.Method(w, r, http.MethodPost) {
		return
	}
	username, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	var req startRequest
	httpx.DecodeLenient(w, r, h.maxBody, &req)

	ctx := r.Context()

	numQ := req.NumQ
	if numQ == 0 && req.Minutes > 0 {
		numQ = study.QuestionsForMinutes(req.Minutes)
	}

	total := req.TotalItems
	if total == 0 && h.pool != nil {
		n, err := h.pool.Size(ctx)
		if err != nil {
			h.log.Warn("study.start.pool_size.fail", "err", err)
			httpx.WriteError(w, http.StatusBadGateway, "upstream_error", "question pool unavailable")
			return
		}
		total = n
	}

	alloc, err := h.scheduler.Allocate(ctx, username, numQ, total)
	if err != nil {
		h.fail(w, "study.start.fail", err)
		return
	}

	sessionID, err := study.NewSessionID(h.now().UTC())
	if err != nil {
		h.log.Error("study.start.session_id.fail", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.log.Info("study.start.ok", "username", username, "session_id", sessionID, "start", alloc.Start, "count", len(alloc.Raw))
	httpx.WriteJSON(w, http.StatusOK, startResponse{
		Indices:   alloc.Raw,
		Positions: alloc.Positions,
		SessionID: sessionID,
	})
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	if !httpx.Method(w, r, http.MethodPost) {
		return
	}
	username, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	var req saveRequest
	httpx.DecodeLenient(w, r, h.maxBody, &req)

	if _, err := h.history.Record(r.Context(), h.now().UTC(), username, req.SessionID, req.Minutes, req.Items); err != nil {
		h.fail(w, "study.save.fail", err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, saveResponse{OK: true})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	if !httpx.Method(w, r, http.MethodGet) {
		return
	}
	username, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	sessions, err := h.history.List(r.Context(), username)
	if err != nil {
		h.fail(w, "study.list.fail", err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, listResponse{Sessions: sessions})
}

func (h *Handler) requireAuth(w http.ResponseWriter, r *http.Request) (string, bool) {
	tok, ok := httpx.BearerToken(r)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return "", false
	}
	username, err := h.auth.Verify(r.Context(), h.now().UTC(), tok)
	if err != nil {
		h.fail(w, "study.auth.fail", err)
		return "", false
	}
	return username, true
}

func (h *Handler) fail(w http.ResponseWriter, event string, err error) {
	if status := httpx.WriteErr(w, err); status >= http.StatusInternalServerError {
		h.log.Error(event, "err", err)
	}
}
