package studyapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"studysprint/cmd/identity"
	"studysprint/cmd/internal/apperr"
	"studysprint/cmd/internal/auth"
	"studysprint/cmd/internal/auth/session"
	"studysprint/cmd/internal/study"
	"studysprint/cmd/kv"
	"studysprint/cmd/security/password"
	"studysprint/cmd/security/token"
)

var t0 = time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC)

type staticVerifier map[string]string

func (v staticVerifier) Verify(_ context.Context, _ time.Time, tok string) (string, error) {
	if u, ok := v[tok]; ok {
		return u, nil
	}
	return "", apperr.Unauthorized("test.Verify", "invalid token")
}

type fixedPool struct {
	n   int
	err error
}

func (p fixedPool) Size(context.Context) (int, error) { return p.n, p.err }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newMux(t *testing.T, v Verifier, opts ...HandlerOption) *http.ServeMux {
	t.Helper()

	mem := kv.NewMemoryStore()
	sched := study.NewScheduler(discard(), study.NewCursorStore(mem))
	hist := study.NewHistory(discard(), mem)

	opts = append([]HandlerOption{WithClock(func() time.Time { return t0 })}, opts...)
	h, err := NewHandler(discard(), v, sched, hist, opts...)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	mux := http.NewServeMux()
	h.Register(mux)
	return mux
}

func do(mux http.Handler, method, path, body, bearer string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func decodeStart(t *testing.T, rr *httptest.ResponseRecorder) startResponse {
	t.Helper()
	if rr.Code != http.StatusOK {
		t.Fatalf("start status=%d body=%s", rr.Code, rr.Body.String())
	}
	var resp startResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode start: %v", err)
	}
	return resp
}

func TestAuthRequired(t *testing.T) {
	t.Parallel()

	mux := newMux(t, staticVerifier{"tok-a": "alice"})

	tests := []struct {
		method, path, bearer string
	}{
		{http.MethodPost, "/api/sessions/next", ""},
		{http.MethodPost, "/api/sessions/save", "bogus"},
		{http.MethodGet, "/api/sessions/list", ""},
		{http.MethodGet, "/.netlify/functions/sessions-list", "bogus"},
	}
	for _, tc := range tests {
		if rr := do(mux, tc.method, tc.path, `{}`, tc.bearer); rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: status=%d", tc.method, tc.path, rr.Code)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()

	mux := newMux(t, staticVerifier{"tok-a": "alice"})

	tests := []struct {
		method, path, allow string
	}{
		{http.MethodGet, "/api/sessions/next", "POST"},
		{http.MethodGet, "/api/sessions/save", "POST"},
		{http.MethodPost, "/api/sessions/list", "GET"},
	}
	for _, tc := range tests {
		rr := do(mux, tc.method, tc.path, "", "tok-a")
		if rr.Code != http.StatusMethodNotAllowed || rr.Header().Get("Allow") != tc.allow {
			t.Fatalf("%s %s: status=%d allow=%q", tc.method, tc.path, rr.Code, rr.Header().Get("Allow"))
		}
	}
}

func TestStart_AdvancesCursor(t *testing.T) {
	t.Parallel()

	mux := newMux(t, staticVerifier{"tok-a": "alice", "tok-b": "bob"})

	first := decodeStart(t, do(mux, http.MethodPost, "/api/sessions/next", `{"numQ":3,"totalItems":4}`, "tok-a"))
	if len(first.SessionID) != 26 {
		t.Fatalf("sessionId=%q", first.SessionID)
	}
	second := decodeStart(t, do(mux, http.MethodPost, "/.netlify/functions/sessions-next", `{"numQ":3,"totalItems":4}`, "tok-a"))

	wantRaw := []int64{3, 4, 5}
	wantPos := []int{3, 0, 1}
	for i := range wantRaw {
		if second.Indices[i] != wantRaw[i] || second.Positions[i] != wantPos[i] {
			t.Fatalf("second allocation=%+v", second)
		}
	}
	if first.SessionID == second.SessionID {
		t.Fatalf("session ids must differ")
	}

	// bob starts from zero.
	other := decodeStart(t, do(mux, http.MethodPost, "/api/sessions/next", `{"numQ":1,"totalItems":4}`, "tok-b"))
	if other.Indices[0] != 0 {
		t.Fatalf("bob indices=%v", other.Indices)
	}
}

func TestStart_Defaults(t *testing.T) {
	t.Parallel()

	t.Run("numQ from minutes", func(t *testing.T) {
		t.Parallel()
		mux := newMux(t, staticVerifier{"tok": "alice"})
		resp := decodeStart(t, do(mux, http.MethodPost, "/api/sessions/next", `{"minutes":30,"totalItems":10}`, "tok"))
		if len(resp.Indices) != 3 {
			t.Fatalf("indices=%v", resp.Indices)
		}
	})

	t.Run("totalItems from pool", func(t *testing.T) {
		t.Parallel()
		mux := newMux(t, staticVerifier{"tok": "alice"}, WithPool(fixedPool{n: 2}))
		decodeStart(t, do(mux, http.MethodPost, "/api/sessions/next", `{"numQ":1}`, "tok"))
		resp := decodeStart(t, do(mux, http.MethodPost, "/api/sessions/next", `{"numQ":2}`, "tok"))
		if resp.Positions[0] != 1 || resp.Positions[1] != 0 {
			t.Fatalf("positions=%v", resp.Positions)
		}
	})

	t.Run("pool failure", func(t *testing.T) {
		t.Parallel()
		mux := newMux(t, staticVerifier{"tok": "alice"}, WithPool(fixedPool{err: errors.New("down")}))
		if rr := do(mux, http.MethodPost, "/api/sessions/next", `{"numQ":1}`, "tok"); rr.Code != http.StatusBadGateway {
			t.Fatalf("status=%d", rr.Code)
		}
	})

	t.Run("missing fields", func(t *testing.T) {
		t.Parallel()
		mux := newMux(t, staticVerifier{"tok": "alice"})
		for _, body := range []string{`{}`, `{"numQ":2}`, `{"totalItems":5}`, `not json`} {
			if rr := do(mux, http.MethodPost, "/api/sessions/next", body, "tok"); rr.Code != http.StatusBadRequest {
				t.Fatalf("body %q: status=%d", body, rr.Code)
			}
		}
	})
}

func TestSaveAndList(t *testing.T) {
	t.Parallel()

	mux := newMux(t, staticVerifier{"tok-a": "alice", "tok-b": "bob"})

	rr := do(mux, http.MethodGet, "/api/sessions/list", "", "tok-a")
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != `{"sessions":[]}` {
		t.Fatalf("empty list: status=%d body=%s", rr.Code, rr.Body.String())
	}

	for _, body := range []string{`{}`, `{"sessionId":"S1","minutes":10}`, `{"sessionId":"S1","items":[1]}`, `{"minutes":10,"items":[1]}`} {
		if rr := do(mux, http.MethodPost, "/api/sessions/save", body, "tok-a"); rr.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status=%d", body, rr.Code)
		}
	}

	rr = do(mux, http.MethodPost, "/api/sessions/save", `{"sessionId":"S1","minutes":10,"items":[0,1,2]}`, "tok-a")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"ok":true`) {
		t.Fatalf("save: status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = do(mux, http.MethodPost, "/api/sessions/save", `{"sessionId":"S1","minutes":20,"items":[0,1,2]}`, "tok-a")
	if rr.Code != http.StatusConflict {
		t.Fatalf("conflicting save status=%d", rr.Code)
	}

	rr = do(mux, http.MethodGet, "/api/sessions/list", "", "tok-a")
	var list listResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Sessions) != 1 || list.Sessions[0].SessionID != "S1" || list.Sessions[0].Minutes != 10 {
		t.Fatalf("list=%+v", list)
	}
	if !list.Sessions[0].StartedAt.Equal(t0) {
		t.Fatalf("startedAt=%v", list.Sessions[0].StartedAt)
	}

	rr = do(mux, http.MethodGet, "/api/sessions/list", "", "tok-b")
	if strings.TrimSpace(rr.Body.String()) != `{"sessions":[]}` {
		t.Fatalf("bob sees alice's sessions: %s", rr.Body.String())
	}
}

// End to end through the real auth service: register, login, start, save, list.
func TestEndToEnd(t *testing.T) {
	t.Parallel()

	mem := kv.NewMemoryStore()
	pw := password.DefaultConfig()
	pw.PBKDF2.Iterations = 1000

	svc, err := auth.NewService(discard(), identity.NewStore(mem), session.NewStore(mem, token.NewHasher(nil), 0), pw, session.DefaultConfig())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	ctx := context.Background()
	if err := svc.Register(ctx, t0, "alice", "secret1"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	iss, err := svc.Login(ctx, t0, "alice", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	h, err := NewHandler(discard(), svc,
		study.NewScheduler(discard(), study.NewCursorStore(mem)),
		study.NewHistory(discard(), mem),
		WithClock(func() time.Time { return t0 }),
	)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	mux := http.NewServeMux()
	h.Register(mux)

	start := decodeStart(t, do(mux, http.MethodPost, "/api/sessions/next", `{"numQ":3,"totalItems":10}`, iss.Token))
	if len(start.Indices) != 3 || start.Indices[0] != 0 || start.Indices[2] != 2 {
		t.Fatalf("indices=%v", start.Indices)
	}

	body := `{"sessionId":"` + start.SessionID + `","minutes":10,"items":[0,1,2]}`
	if rr := do(mux, http.MethodPost, "/api/sessions/save", body, iss.Token); rr.Code != http.StatusOK {
		t.Fatalf("save status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr := do(mux, http.MethodGet, "/api/sessions/list", "", iss.Token)
	var list listResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Sessions) != 1 || list.Sessions[0].SessionID != start.SessionID {
		t.Fatalf("list=%+v", list)
	}

	// Expired tokens lose access.
	h.now = func() time.Time { return t0.Add(25 * time.Hour) }
	if rr := do(mux, http.MethodGet, "/api/sessions/list", "", iss.Token); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expired token status=%d", rr.Code)
	}
}
