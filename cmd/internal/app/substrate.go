package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"studysprint/cmd/kv"
)

// substrate owns the key-value backend and whatever connection resources sit under it.
type substrate struct {
	backend string
	store   kv.Store
	pool    *pgxpool.Pool
	pg      *kv.PostgresStore
}

// openSubstrate connects the configured backend. Postgres migrations run here when enabled.
func openSubstrate(ctx context.Context, cfg Config, log Logger) (*substrate, error) {
	backend := cfg.backend()

	switch backend {
	case BackendMemory:
		log.Info("kv.backend.memory")
		return &substrate{backend: backend, store: kv.NewMemoryStore()}, nil

	case BackendRedis:
		st, err := kv.DialRedis(ctx, cfg.RedisURL, kv.WithKeyPrefix(cfg.RedisKeyPrefix))
		if err != nil {
			return nil, err
		}
		log.Info("kv.backend.redis", "key_prefix", cfg.RedisKeyPrefix)
		return &substrate{backend: backend, store: st}, nil

	case BackendPostgres:
		pool, err := NewDBPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		if cfg.DBAutoMigrate {
			if err := kv.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, err
			}
			log.Info("kv.migrate.ok")
		}
		pg, err := kv.NewPostgresStore(pool, kv.WithSchema(cfg.DBSchema))
		if err != nil {
			pool.Close()
			return nil, err
		}
		log.Info("kv.backend.postgres", "schema", cfg.DBSchema)
		return &substrate{backend: backend, store: pg, pool: pool, pg: pg}, nil
	}

	return nil, fmt.Errorf("unknown kv backend %q", backend)
}

// Ping reports whether the backend is reachable within timeout.
func (s *substrate) Ping(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.store.Ping(ctx)
}

// purgeLoop deletes expired Postgres rows every interval until ctx is done.
// Other backends expire keys natively.
func (s *substrate) purgeLoop(ctx context.Context, interval time.Duration, log Logger) {
	if s.pg == nil || interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.pg.PurgeExpired(ctx)
			if err != nil {
				if ctx.Err() == nil {
					log.Warn("kv.purge.fail", "err", err)
				}
				continue
			}
			if n > 0 {
				log.Info("kv.purge.ok", "deleted", n)
			}
		}
	}
}

// Close releases the store, then the pool it borrowed.
func (s *substrate) Close(_ context.Context) error {
	err := s.store.Close()
	if s.pool != nil {
		s.pool.Close()
	}
	return err
}
