package kv

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"studysprint/cmd/kv/migrations"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresStore is a Store backed by a single kv_entries table.
//
// Ownership model:
// - PostgresStore does NOT own the pgx pool. Close() is a no-op.
//
// Atomicity:
// - CompareAndSwap is one statement; Postgres row locking serializes writers of the same key only.
// - Expired rows are invisible to reads and are treated as absent by CompareAndSwap.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures PostgresStore.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the schema holding kv_entries (default "studysprint").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return errors.New("kv: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return errors.New("kv: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore over a caller-owned pool.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "studysprint",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, errors.New("kv: nil pool")
	}
	return st, nil
}

// Migrate applies the embedded goose migrations using the pool's connection settings.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return errors.New("kv: nil pool")
	}
	db := stdlib.OpenDBFromPool(pool)
	defer func() { _ = db.Close() }()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("kv: goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("kv: migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) table() string {
	return pgx.Identifier{s.schema, "kv_entries"}.Sanitize()
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	if !validKey(key) {
		return nil, ErrInvalidKey
	}

	q := fmt.Sprintf(`
SELECT value
FROM %s
WHERE key = $1
  AND (expires_at IS NULL OR expires_at > now())
`, s.table())

	var v []byte
	if err := s.pool.QueryRow(ctx, q, key).Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

func (s *PostgresStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if !validKey(key) {
		return ErrInvalidKey
	}

	q := fmt.Sprintf(`
INSERT INTO %s (key, value, expires_at, updated_at)
VALUES ($1, $2, now() + $3::bigint * interval '1 microsecond', now())
ON CONFLICT (key) DO UPDATE
SET value = EXCLUDED.value,
    expires_at = EXCLUDED.expires_at,
    updated_at = now()
`, s.table())

	_, err := s.pool.Exec(ctx, q, key, nonNil(value), ttlMicros(ttl))
	return err
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if !validKey(key) {
		return ErrInvalidKey
	}
	q := fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, s.table())
	_, err := s.pool.Exec(ctx, q, key)
	return err
}

func (s *PostgresStore) CompareAndSwap(ctx context.Context, key string, old, next []byte, ttl time.Duration) (bool, error) {
	if !validKey(key) {
		return false, ErrInvalidKey
	}

	if old == nil {
		// Absent-or-expired insert. A live row makes the conflict branch a no-op.
		q := fmt.Sprintf(`
INSERT INTO %[1]s (key, value, expires_at, updated_at)
VALUES ($1, $2, now() + $3::bigint * interval '1 microsecond', now())
ON CONFLICT (key) DO UPDATE
SET value = EXCLUDED.value,
    expires_at = EXCLUDED.expires_at,
    updated_at = now()
WHERE %[1]s.expires_at IS NOT NULL AND %[1]s.expires_at <= now()
`, s.table())

		tag, err := s.pool.Exec(ctx, q, key, nonNil(next), ttlMicros(ttl))
		if err != nil {
			return false, err
		}
		return tag.RowsAffected() == 1, nil
	}

	q := fmt.Sprintf(`
UPDATE %s
SET value = $3,
    expires_at = now() + $4::bigint * interval '1 microsecond',
    updated_at = now()
WHERE key = $1
  AND value = $2
  AND (expires_at IS NULL OR expires_at > now())
`, s.table())

	tag, err := s.pool.Exec(ctx, q, key, old, nonNil(next), ttlMicros(ttl))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// PurgeExpired deletes expired rows and returns how many were removed.
func (s *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	q := fmt.Sprintf(`DELETE FROM %s WHERE expires_at IS NOT NULL AND expires_at <= now()`, s.table())
	tag, err := s.pool.Exec(ctx, q)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	conn.Release()
	return nil
}

// Close is a no-op because the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

// ttlMicros is the TTL handed to Postgres, which adds it to its own now(). nil means no expiry.
func ttlMicros(ttl time.Duration) *int64 {
	if ttl <= 0 {
		return nil
	}
	us := ttl.Microseconds()
	if us == 0 {
		us = 1
	}
	return &us
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
