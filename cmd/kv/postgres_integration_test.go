package kv

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"studysprint/cmd/identity/ids"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

func mustOpenTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("STUDYSPRINT_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("STUDYSPRINT_TEST_DATABASE_URL not set; skipping Postgres integration tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(ctx, pool))
	return pool
}

func testPrefix(t *testing.T) string {
	t.Helper()
	id, err := ids.NewULID(time.Now())
	require.NoError(t, err)
	return "test-" + strings.ToLower(id) + ":"
}

func TestPostgresStore_Contract(t *testing.T) {
	pool := mustOpenTestPool(t)

	s, err := NewPostgresStore(pool)
	require.NoError(t, err)
	runStoreContract(t, s, testPrefix(t))
}

func TestPostgresStore_ExpiryAndPurge(t *testing.T) {
	pool := mustOpenTestPool(t)
	ctx := context.Background()

	s, err := NewPostgresStore(pool)
	require.NoError(t, err)

	key := testPrefix(t) + "ttl"
	require.NoError(t, s.Set(ctx, key, []byte("v"), time.Millisecond))
	time.Sleep(20 * time.Millisecond)

	_, err = s.Get(ctx, key)
	require.ErrorIs(t, err, ErrNotFound)

	ok, err := s.CompareAndSwap(ctx, key, nil, []byte("fresh"), 0)
	require.NoError(t, err)
	require.True(t, ok, "expired row must count as absent")
	t.Cleanup(func() { _ = s.Delete(ctx, key) })

	_, err = s.PurgeExpired(ctx)
	require.NoError(t, err)
}

func TestPostgresStore_InvalidSchema(t *testing.T) {
	t.Parallel()

	_, err := NewPostgresStore(nil, WithSchema("bad-schema;"))
	require.Error(t, err)

	_, err = NewPostgresStore(nil)
	require.Error(t, err)
}

func TestPostgresStore_ExpiryUsesDatabaseClock(t *testing.T) {
	pool := mustOpenTestPool(t)
	ctx := context.Background()

	s, err := NewPostgresStore(pool)
	require.NoError(t, err)

	key := testPrefix(t) + "clock"
	t.Cleanup(func() { _ = s.Delete(ctx, key) })

	lifetime := func() float64 {
		t.Helper()
		var secs float64
		q := `SELECT extract(epoch FROM expires_at - updated_at)::float8 FROM ` + s.table() + ` WHERE key = $1`
		require.NoError(t, pool.QueryRow(ctx, q, key).Scan(&secs))
		return secs
	}

	require.NoError(t, s.Set(ctx, key, []byte("a"), time.Hour))
	require.InDelta(t, 3600, lifetime(), 0.001)

	ok, err := s.CompareAndSwap(ctx, key, []byte("a"), []byte("b"), 90*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	require.InDelta(t, 90, lifetime(), 0.001)

	require.NoError(t, s.Set(ctx, key, []byte("c"), 0))
	var expires *time.Time
	require.NoError(t, pool.QueryRow(ctx, `SELECT expires_at FROM `+s.table()+` WHERE key = $1`, key).Scan(&expires))
	require.Nil(t, expires)
}
