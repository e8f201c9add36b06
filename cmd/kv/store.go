package kv

import (
	"context"
	"net/url"
	"strings"
	"time"
)

// Store is the substrate contract. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value for key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set writes value under key. ttl <= 0 means the entry never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// CompareAndSwap writes next only if the current value equals old.
	// A nil old means "only if absent". It reports whether the write happened.
	CompareAndSwap(ctx context.Context, key string, old, next []byte, ttl time.Duration) (bool, error)

	// Ping checks backend reachability.
	Ping(ctx context.Context) error

	// Close releases resources owned by the store (never a caller-owned pool or client).
	Close() error
}

// Key joins a prefix and escaped parts with ':'.
// Parts are query-escaped so a part containing ':' cannot alias another key.
func Key(prefix string, parts ...string) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, p := range parts {
		b.WriteByte(':')
		b.WriteString(url.QueryEscape(p))
	}
	return b.String()
}

func validKey(key string) bool {
	return strings.TrimSpace(key) != ""
}
