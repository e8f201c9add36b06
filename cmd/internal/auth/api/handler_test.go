package authapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"studysprint/cmd/identity"
	"studysprint/cmd/internal/auth"
	"studysprint/cmd/internal/auth/session"
	"studysprint/cmd/internal/httpx"
	"studysprint/cmd/internal/metrics"
	"studysprint/cmd/kv"
	"studysprint/cmd/security/password"
	"studysprint/cmd/security/token"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testServer struct {
	mux   *http.ServeMux
	clock *testClock
	logs  *bytes.Buffer
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	return newTestServerWithConfig(t, DefaultConfig())
}

func newTestServerWithConfig(t *testing.T, cfg Config) testServer {
	t.Helper()

	mem := kv.NewMemoryStore()
	pw := password.DefaultConfig()
	pw.PBKDF2.Iterations = 1000

	logs := &bytes.Buffer{}
	log := slog.New(slog.NewJSONHandler(logs, nil))

	svc, err := auth.NewService(
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		identity.NewStore(mem),
		session.NewStore(mem, token.NewHasher(nil), 0),
		pw,
		session.DefaultConfig(),
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	clock := &testClock{now: time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC)}
	h, err := NewHandler(log, svc, cfg, WithClock(clock.Now), WithMetrics(metrics.New()), WithLoginThrottle(mem))
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	mux := http.NewServeMux()
	h.Register(mux)
	return testServer{mux: mux, clock: clock, logs: logs}
}

func (s testServer) do(method, path, body, bearer string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	s.mux.ServeHTTP(rr, req)
	return rr
}

func (s testServer) login(t *testing.T, user, pass string) string {
	t.Helper()

	rr := s.do(http.MethodPost, "/api/auth/login", `{"username":"`+user+`","password":"`+pass+`"}`, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("login status=%d body=%s", rr.Code, rr.Body.String())
	}
	var resp loginResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if resp.Token == "" {
		t.Fatalf("empty token")
	}
	return resp.Token
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) httpx.ErrorBody {
	t.Helper()
	var body httpx.ErrorBody
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rr.Body.String(), err)
	}
	return body
}

func TestRegister(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{name: "ok", body: `{"username":"alice","password":"secret1"}`, status: http.StatusOK},
		{name: "duplicate", body: `{"username":"alice","password":"other12"}`, status: http.StatusConflict, code: "conflict"},
		{name: "short username", body: `{"username":"al","password":"secret1"}`, status: http.StatusBadRequest, code: "invalid_input"},
		{name: "short password", body: `{"username":"bob","password":"12345"}`, status: http.StatusBadRequest, code: "invalid_input"},
		{name: "malformed json", body: `{"username":`, status: http.StatusBadRequest, code: "invalid_input"},
		{name: "no body", body: ``, status: http.StatusBadRequest, code: "invalid_input"},
	}

	// Sequential: "duplicate" depends on "ok".
	for _, tc := range tests {
		rr := s.do(http.MethodPost, "/api/auth/register", tc.body, "")
		if rr.Code != tc.status {
			t.Fatalf("%s: status=%d want %d body=%s", tc.name, rr.Code, tc.status, rr.Body.String())
		}
		if tc.code == "" {
			if !strings.Contains(rr.Body.String(), `"success":true`) {
				t.Fatalf("%s: body=%s", tc.name, rr.Body.String())
			}
			continue
		}
		if got := decodeError(t, rr); got.Code != tc.code || got.Error == "" {
			t.Fatalf("%s: error body=%+v", tc.name, got)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	tests := []struct {
		method, path, allow string
	}{
		{http.MethodGet, "/api/auth/register", "POST"},
		{http.MethodGet, "/api/auth/login", "POST"},
		{http.MethodPost, "/api/auth/verify", "GET"},
		{http.MethodGet, "/api/auth/logout", "POST"},
		{http.MethodPut, "/.netlify/functions/auth-login", "POST"},
	}
	for _, tc := range tests {
		rr := s.do(tc.method, tc.path, "", "")
		if rr.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s %s: status=%d", tc.method, tc.path, rr.Code)
		}
		if got := rr.Header().Get("Allow"); got != tc.allow {
			t.Fatalf("%s %s: Allow=%q want %q", tc.method, tc.path, got, tc.allow)
		}
	}
}

func TestLoginVerifyFlow(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	if rr := s.do(http.MethodPost, "/api/auth/register", `{"username":"alice","password":"secret1"}`, ""); rr.Code != http.StatusOK {
		t.Fatalf("register status=%d", rr.Code)
	}

	tok := s.login(t, "alice", "secret1")

	rr := s.do(http.MethodGet, "/api/auth/verify", "", tok)
	if rr.Code != http.StatusOK {
		t.Fatalf("verify status=%d body=%s", rr.Code, rr.Body.String())
	}
	var v verifyResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode verify: %v", err)
	}
	if v.Username != "alice" || !v.Authenticated {
		t.Fatalf("verify body=%+v", v)
	}

	// Legacy path resolves the same token.
	if rr := s.do(http.MethodGet, "/.netlify/functions/auth-verify", "", tok); rr.Code != http.StatusOK {
		t.Fatalf("legacy verify status=%d", rr.Code)
	}

	s.clock.Advance(24*time.Hour + time.Second)
	if rr := s.do(http.MethodGet, "/api/auth/verify", "", tok); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expired verify status=%d", rr.Code)
	}
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	if rr := s.do(http.MethodPost, "/api/auth/register", `{"username":"alice","password":"secret1"}`, ""); rr.Code != http.StatusOK {
		t.Fatalf("register status=%d", rr.Code)
	}

	unknown := s.do(http.MethodPost, "/api/auth/login", `{"username":"mallory","password":"secret1"}`, "")
	wrong := s.do(http.MethodPost, "/api/auth/login", `{"username":"alice","password":"nope123"}`, "")

	if unknown.Code != http.StatusUnauthorized || wrong.Code != http.StatusUnauthorized {
		t.Fatalf("status unknown=%d wrong=%d", unknown.Code, wrong.Code)
	}
	if unknown.Body.String() != wrong.Body.String() {
		t.Fatalf("bodies differ: %q vs %q", unknown.Body.String(), wrong.Body.String())
	}

	missing := s.do(http.MethodPost, "/api/auth/login", `{"username":"alice"}`, "")
	if missing.Code != http.StatusBadRequest {
		t.Fatalf("missing password status=%d", missing.Code)
	}
}

func TestVerify_MissingOrBadToken(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	for _, bearer := range []string{"", "not-a-real-token"} {
		rr := s.do(http.MethodGet, "/api/auth/verify", "", bearer)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("bearer %q: status=%d", bearer, rr.Code)
		}
		if got := decodeError(t, rr); got.Code != "unauthorized" {
			t.Fatalf("bearer %q: code=%q", bearer, got.Code)
		}
	}
}

func TestLogout(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	if rr := s.do(http.MethodPost, "/api/auth/register", `{"username":"alice","password":"secret1"}`, ""); rr.Code != http.StatusOK {
		t.Fatalf("register status=%d", rr.Code)
	}
	tok := s.login(t, "alice", "secret1")
	other := s.login(t, "alice", "secret1")

	if rr := s.do(http.MethodPost, "/api/auth/logout", "", tok); rr.Code != http.StatusOK {
		t.Fatalf("logout status=%d body=%s", rr.Code, rr.Body.String())
	}
	if rr := s.do(http.MethodGet, "/api/auth/verify", "", tok); rr.Code != http.StatusUnauthorized {
		t.Fatalf("revoked token still valid: %d", rr.Code)
	}
	if rr := s.do(http.MethodGet, "/api/auth/verify", "", other); rr.Code != http.StatusOK {
		t.Fatalf("unrelated token revoked: %d", rr.Code)
	}
	if rr := s.do(http.MethodPost, "/api/auth/logout", "", tok); rr.Code != http.StatusUnauthorized {
		t.Fatalf("second logout status=%d", rr.Code)
	}
}

func TestAuditNeverLogsSecrets(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	s.do(http.MethodPost, "/api/auth/register", `{"username":"alice","password":"secret1"}`, "")
	tok := s.login(t, "alice", "secret1")
	s.do(http.MethodPost, "/api/auth/login", `{"username":"alice","password":"badpass1"}`, "")

	out := s.logs.String()
	if !strings.Contains(out, `"msg":"auth.audit"`) {
		t.Fatalf("no audit records: %s", out)
	}
	for _, secret := range []string{"secret1", "badpass1", tok} {
		if strings.Contains(out, secret) {
			t.Fatalf("secret %q leaked into logs", secret)
		}
	}
}

func TestNewHandler_RejectsNilService(t *testing.T) {
	t.Parallel()

	if _, err := NewHandler(nil, nil, DefaultConfig()); err == nil {
		t.Fatalf("expected error")
	}
}
