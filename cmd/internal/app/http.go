package app

import (
	"net/http"
	"time"

	authapi "studysprint/cmd/internal/auth/api"
	"studysprint/cmd/internal/httpx"
	"studysprint/cmd/internal/metrics"
	"studysprint/cmd/internal/pool"
	studyapi "studysprint/cmd/internal/study/api"
)

type routes struct {
	log     Logger
	cfg     Config
	sub     *substrate
	metrics *metrics.Metrics
	auth    *authapi.Handler
	study   *studyapi.Handler
	pool    *pool.Loader
	now     func() time.Time
}

type pingResponse struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func registerHTTP(mux *http.ServeMux, rt routes) {
	if rt.now == nil {
		rt.now = time.Now
	}

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if rt.cfg.ReadinessRequireStore && rt.sub.backend == BackendMemory {
			http.Error(w, "durable store not configured", http.StatusServiceUnavailable)
			return
		}
		if err := rt.sub.Ping(r.Context(), 2*time.Second); err != nil {
			http.Error(w, "store not ready", http.StatusServiceUnavailable)
			rt.log.Info("readyz.store.not_ready", "backend", rt.sub.backend, "err", err)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	ping := func(w http.ResponseWriter, r *http.Request) {
		if !httpx.Method(w, r, http.MethodGet) {
			return
		}
		httpx.WriteJSON(w, http.StatusOK, pingResponse{
			Message:   "studysprint is up",
			Timestamp: rt.now().UTC(),
		})
	}
	mux.HandleFunc("/api/ping", ping)
	mux.HandleFunc("/.netlify/functions/test", ping)

	mux.HandleFunc("/api/questions", pool.Handler(rt.log, rt.pool))

	rt.auth.Register(mux)
	rt.study.Register(mux)
}
