// Package app wires the studysprint server runtime: config, logging, substrate, and HTTP routes.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"studysprint/cmd/identity"
	"studysprint/cmd/internal/auth"
	authapi "studysprint/cmd/internal/auth/api"
	"studysprint/cmd/internal/auth/session"
	"studysprint/cmd/internal/metrics"
	"studysprint/cmd/internal/pool"
	"studysprint/cmd/internal/study"
	studyapi "studysprint/cmd/internal/study/api"
	"studysprint/cmd/security/password"
	"studysprint/cmd/security/token"
)

// App is the server runtime: it owns the substrate and the HTTP handler tree.
type App struct {
	cfg Config
	log Logger

	sub     *substrate
	metrics *metrics.Metrics
	handler http.Handler
}

// New constructs a fully wired App from config and logger.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogColor)
	}
	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	sub, err := openSubstrate(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	a, err := newApp(ctx, cfg, log, sub)
	if err != nil {
		_ = sub.Close(ctx)
		return nil, err
	}
	return a, nil
}

func newApp(ctx context.Context, cfg Config, log Logger, sub *substrate) (*App, error) {
	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	pwCfg, err := password.FromEnv()
	if err != nil {
		return nil, err
	}
	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	authCfg, err := authapi.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	poolCfg, err := pool.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}

	hasher := token.HasherFromEnv()
	if !hasher.HMAC() {
		log.Warn("security.token_hmac.disabled", "hint", "set STUDYSPRINT_TOKEN_HMAC_KEY")
	}

	authSvc, err := auth.NewService(
		log,
		identity.NewStore(sub.store),
		session.NewStore(sub.store, hasher, sessCfg.TokenTTL),
		pwCfg,
		sessCfg,
	)
	if err != nil {
		return nil, err
	}
	authHandler, err := authapi.NewHandler(log, authSvc, authCfg, authapi.WithMetrics(m), authapi.WithLoginThrottle(sub.store))
	if err != nil {
		return nil, err
	}

	var loader *pool.Loader
	studyOpts := []studyapi.HandlerOption{studyapi.WithMaxBodyBytes(cfg.MaxBodyBytes)}
	if poolCfg.Enabled() {
		src, err := pool.NewSource(ctx, poolCfg, &http.Client{Timeout: poolCfg.FetchTimeout})
		if err != nil {
			return nil, err
		}
		loader, err = pool.NewLoader(log, src, poolCfg, pool.WithLoaderMetrics(m))
		if err != nil {
			return nil, err
		}
		studyOpts = append(studyOpts, studyapi.WithPool(loader))
		log.Info("pool.configured", "source", src.String(), "cache_ttl", poolCfg.CacheTTL.String())
	}

	studyHandler, err := studyapi.NewHandler(
		log,
		authSvc,
		study.NewScheduler(log, study.NewCursorStore(sub.store), study.WithSchedulerMetrics(m)),
		study.NewHistory(log, sub.store, study.WithHistoryMetrics(m)),
		studyOpts...,
	)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	registerHTTP(mux, routes{
		log:     log,
		cfg:     cfg,
		sub:     sub,
		metrics: m,
		auth:    authHandler,
		study:   studyHandler,
		pool:    loader,
	})

	h := WithRequestLogging(mux, log, m)
	h = WithSecurityHeaders(h)
	h = WithRequestID(h)

	return &App{
		cfg:     cfg,
		log:     log,
		sub:     sub,
		metrics: m,
		handler: h,
	}, nil
}

// Handler returns the root HTTP handler (tests drive it with httptest).
func (a *App) Handler() http.Handler { return a.handler }

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "kv_backend", a.sub.backend, "metrics", a.metrics != nil)

	bgCtx, stopBg := context.WithCancel(ctx)
	defer stopBg()
	go a.sub.purgeLoop(bgCtx, a.cfg.PurgeInterval, a.log)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		_ = a.sub.Close(context.Background())
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	stopBg()
	if err := a.sub.Close(shutdownCtx); err != nil {
		a.log.Error("store.close.fail", "err", err)
	}

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
