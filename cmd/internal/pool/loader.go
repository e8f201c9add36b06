package pool

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"studysprint/cmd/internal/metrics"
)

// Loader caches the parsed pool for CacheTTL. Concurrent misses share one fetch.
// When a refresh fails and a previous copy exists, the stale copy is served.
type Loader struct {
	log     *slog.Logger
	src     Source
	cfg     Config
	metrics *metrics.Metrics
	now     func() time.Time

	group singleflight.Group

	mu       sync.RWMutex
	cards    []Card
	loadedAt time.Time
}

// LoaderOption configures Loader.
type LoaderOption func(*Loader)

// WithLoaderMetrics records fetch outcomes on m.
func WithLoaderMetrics(m *metrics.Metrics) LoaderOption {
	return func(l *Loader) { l.metrics = m }
}

// WithLoaderClock overrides time.Now (tests).
func WithLoaderClock(now func() time.Time) LoaderOption {
	return func(l *Loader) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLoader constructs a Loader over src.
func NewLoader(log *slog.Logger, src Source, cfg Config, opts ...LoaderOption) (*Loader, error) {
	if src == nil {
		return nil, ErrNotConfigured
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	l := &Loader{log: log, src: src, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l, nil
}

// Cards returns the cached pool, refreshing it when older than CacheTTL.
// The returned slice is shared; callers must not modify it.
func (l *Loader) Cards(ctx context.Context) ([]Card, error) {
	if cards, ok := l.fresh(); ok {
		return cards, nil
	}

	ch := l.group.DoChan("pool", func() (any, error) {
		// Detached from the first caller so one canceled request does not fail the others.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.cfg.FetchTimeout)
		defer cancel()
		return l.refresh(fctx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]Card), nil
	}
}

// Size returns the number of cards in the pool.
func (l *Loader) Size(ctx context.Context) (int, error) {
	cards, err := l.Cards(ctx)
	if err != nil {
		return 0, err
	}
	return len(cards), nil
}

func (l *Loader) fresh() ([]Card, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.cards == nil {
		return nil, false
	}
	if l.cfg.CacheTTL > 0 && l.now().Sub(l.loadedAt) >= l.cfg.CacheTTL {
		return nil, false
	}
	return l.cards, true
}

func (l *Loader) refresh(ctx context.Context) ([]Card, error) {
	start := l.now()

	raw, err := l.src.Fetch(ctx, l.cfg.MaxBytes)
	var cards []Card
	if err == nil {
		cards, err = Parse(raw)
	}

	if err != nil {
		l.metrics.PoolLoad(loadResult(err))
		l.mu.RLock()
		stale := l.cards
		l.mu.RUnlock()
		if stale != nil {
			l.log.Warn("pool.refresh.fail_serving_stale", "source", l.src.String(), "err", err)
			return stale, nil
		}
		l.log.Error("pool.load.fail", "source", l.src.String(), "err", err)
		return nil, err
	}

	l.mu.Lock()
	l.cards = cards
	l.loadedAt = l.now()
	l.mu.Unlock()

	l.metrics.PoolLoad("ok")
	l.log.Info("pool.load.ok", "source", l.src.String(), "count", len(cards), "duration_ms", l.now().Sub(start).Milliseconds())
	return cards, nil
}

func loadResult(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNotArray):
		return "invalid"
	case errors.Is(err, ErrTooLarge):
		return "too_large"
	default:
		return "error"
	}
}
