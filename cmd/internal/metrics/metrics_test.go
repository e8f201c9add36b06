package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestStatusClass(t *testing.T) {
	t.Parallel()

	cases := map[int]string{200: "2xx", 302: "3xx", 404: "4xx", 503: "5xx", 42: "unknown", 700: "unknown"}
	for in, want := range cases {
		if got := StatusClass(in); got != want {
			t.Fatalf("StatusClass(%d)=%q want %q", in, got, want)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.ObserveHTTP("/x", "GET", 200, time.Millisecond)
	m.AuthEvent("login", "ok")
	m.Allocation(3, 1)
	m.Recorded("ok")
	m.PoolLoad("ok")
	if m.Registry() != nil {
		t.Fatalf("nil metrics must have nil registry")
	}
}

func TestCounters(t *testing.T) {
	t.Parallel()

	m := New()
	m.AuthEvent("login", "fail")
	m.AuthEvent("login", "fail")
	m.Allocation(3, 1)
	m.Allocation(2, 4)

	if got := testutil.ToFloat64(m.authEvents.WithLabelValues("login", "fail")); got != 2 {
		t.Fatalf("auth events=%v want 2", got)
	}
	if got := testutil.ToFloat64(m.allocatedItems); got != 5 {
		t.Fatalf("allocated items=%v want 5", got)
	}
	if got := testutil.ToFloat64(m.allocations); got != 2 {
		t.Fatalf("allocations=%v want 2", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveHTTP("/api/auth/login", http.MethodPost, 401, 5*time.Millisecond)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `studysprint_http_requests_total{class="4xx",method="POST",route="/api/auth/login"} 1`) {
		t.Fatalf("request counter missing from output:\n%s", body)
	}
}
