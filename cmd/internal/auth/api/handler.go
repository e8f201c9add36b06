// Package authapi exposes AuthService over HTTP.
package authapi

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"studysprint/cmd/internal/apperr"
	"studysprint/cmd/internal/auth"
	"studysprint/cmd/internal/httpx"
	"studysprint/cmd/internal/metrics"
	"studysprint/cmd/kv"
)

// Handler wires the auth endpoints to auth.Service.
type Handler struct {
	log      *slog.Logger
	cfg      Config
	svc      *auth.Service
	metrics  *metrics.Metrics
	throttle *loginThrottle
	now      func() time.Time
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handler)

// WithMetrics records auth outcomes on m.
func WithMetrics(m *metrics.Metrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// WithLoginThrottle enables failed-login throttling with counters kept in st.
func WithLoginThrottle(st kv.Store) HandlerOption {
	return func(h *Handler) {
		if st != nil {
			h.throttle = newLoginThrottle(st, h.cfg)
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

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, svc *auth.Service, cfg Config, opts ...HandlerOption) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if svc == nil {
		return nil, errors.New("authapi: nil service")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	h := &Handler{
		log: log,
		cfg: cfg,
		svc: svc,
		now: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// Register wires auth routes onto mux, including the legacy function paths.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/api/auth/register", h.handleRegister)
	mux.HandleFunc("/api/auth/login", h.handleLogin)
	mux.HandleFunc("/api/auth/verify", h.handleVerify)
	mux.HandleFunc("/api/auth/logout", h.handleLogout)

	mux.HandleFunc("/.netlify/functions/auth-register", h.handleRegister)
	mux.HandleFunc("/.netlify/functions/auth-login", h.handleLogin)
	mux.HandleFunc("/.netlify/functions/auth-verify", h.handleVerify)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !httpx.Method(w, r, http.MethodPost) {
		return
	}

	var req credentialsRequest
	httpx.DecodeLenient(w, r, h.cfg.MaxBodyBytes, &req)

	if err := h.svc.Register(r.Context(), h.now().UTC(), req.Username, req.Password); err != nil {
		h.audit(r, "register", resultOf(err))
		h.fail(w, "auth.register.fail", err)
		return
	}

	h.audit(r, "register", "ok", slog.String("username", req.Username))
	httpx.WriteJSON(w, http.StatusOK, successResponse{Success: true})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !httpx.Method(w, r, http.MethodPost) {
		return
	}

	var req credentialsRequest
	httpx.DecodeLenient(w, r, h.cfg.MaxBodyBytes, &req)

	ctx := r.Context()
	now := h.now().UTC()
	ip := httpx.ClientIP(r, h.cfg.TrustProxy)

	if blocked, retryAfter, err := h.throttle.check(ctx, now, ip, req.Username); err != nil {
		h.log.Error("auth.login.throttle.fail", "err", err)
		httpx.WriteError(w, http.StatusServiceUnavailable, "server_busy", "please retry later")
		return
	} else if blocked {
		h.audit(r, "login", "rate_limited", slog.Int64("retry_after_s", retryAfterSeconds(retryAfter)))
		writeRateLimited(w, retryAfter)
		return
	}

	issued, err := h.svc.Login(ctx, now, req.Username, req.Password)
	if err != nil {
		if apperr.IsUnauthorized(err) {
			if terr := h.throttle.recordFailure(ctx, now, ip, req.Username); terr != nil {
				h.log.Warn("auth.login.throttle_record.fail", "err", terr)
			}
		}
		h.audit(r, "login", resultOf(err))
		h.fail(w, "auth.login.fail", err)
		return
	}

	if err := h.throttle.reset(ctx, issued.Username); err != nil {
		h.log.Warn("auth.login.throttle_reset.fail", "err", err)
	}

	h.audit(r, "login", "ok", slog.String("username", issued.Username))
	httpx.WriteJSON(w, http.StatusOK, loginResponse{
		Token:     issued.Token,
		ExpiresAt: issued.ExpiresAt,
	})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	if !httpx.Method(w, r, http.MethodGet) {
		return
	}

	username, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	httpx.WriteJSON(w, http.StatusOK, verifyResponse{Username: username, Authenticated: true})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if !httpx.Method(w, r, http.MethodPost) {
		return
	}

	username, ok := h.requireAuth(w, r)
	if !ok {
		return
	}
	tok, _ := httpx.BearerToken(r)

	if err := h.svc.Revoke(r.Context(), tok); err != nil {
		h.fail(w, "auth.logout.fail", err)
		return
	}

	h.audit(r, "logout", "ok", slog.String("username", username))
	httpx.WriteJSON(w, http.StatusOK, successResponse{Success: true})
}

// requireAuth resolves the bearer token or writes a 401.
func (h *Handler) requireAuth(w http.ResponseWriter, r *http.Request) (string, bool) {
	tok, ok := httpx.BearerToken(r)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return "", false
	}

	username, err := h.svc.Verify(r.Context(), h.now().UTC(), tok)
	if err != nil {
		h.fail(w, "auth.verify.fail", err)
		return "", false
	}
	return username, true
}

// fail writes err and logs server-side failures with their cause.
func (h *Handler) fail(w http.ResponseWriter, event string, err error) {
	if status := httpx.WriteErr(w, err); status >= http.StatusInternalServerError {
		h.log.Error(event, "err", err)
	}
}

func resultOf(err error) string {
	switch {
	case apperr.IsInvalidInput(err):
		return "invalid"
	case apperr.IsUnauthorized(err):
		return "unauthorized"
	case apperr.IsConflict(err):
		return "conflict"
	default:
		return "error"
	}
}
