package kv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store backed by Redis.
// CompareAndSwap uses optimistic WATCH/MULTI on the single key, so writers of different keys
// never block each other.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
	ownClient bool
}

// RedisOption configures RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix namespaces every key, e.g. "studysprint:".
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.keyPrefix = prefix }
}

// NewRedisStore wraps a caller-owned client.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("kv: nil redis client")
	}
	s := &RedisStore{client: client}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// DialRedis parses a redis:// or rediss:// URL, connects and pings.
// The returned store owns the client and closes it in Close.
func DialRedis(ctx context.Context, url string, opts ...RedisOption) (*RedisStore, error) {
	if url == "" {
		return nil, errors.New("kv: empty redis url")
	}
	ropts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("kv: parse redis url: %w", err)
	}
	client := redis.NewClient(ropts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("kv: redis ping: %w", err)
	}

	s, err := NewRedisStore(client, opts...)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	s.ownClient = true
	return s, nil
}

func (s *RedisStore) k(key string) string { return s.keyPrefix + key }

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	if !validKey(key) {
		return nil, ErrInvalidKey
	}
	v, err := s.client.Get(ctx, s.k(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if !validKey(key) {
		return ErrInvalidKey
	}
	return s.client.Set(ctx, s.k(key), value, redisTTL(ttl)).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if !validKey(key) {
		return ErrInvalidKey
	}
	return s.client.Del(ctx, s.k(key)).Err()
}

func (s *RedisStore) CompareAndSwap(ctx context.Context, key string, old, next []byte, ttl time.Duration) (bool, error) {
	if !validKey(key) {
		return false, ErrInvalidKey
	}
	rk := s.k(key)
	swapped := false

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, rk).Bytes()
		exists := true
		switch {
		case errors.Is(err, redis.Nil):
			exists = false
		case err != nil:
			return err
		}

		if old == nil && exists {
			return nil
		}
		if old != nil && (!exists || !bytes.Equal(cur, old)) {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, rk, next, redisTTL(ttl))
			return nil
		})
		if err != nil {
			return err
		}
		swapped = true
		return nil
	}, rk)

	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return swapped, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	if s.ownClient {
		return s.client.Close()
	}
	return nil
}

// redisTTL maps "no expiry" to go-redis's 0 (KeepTTL is never wanted here).
func redisTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	return ttl
}
