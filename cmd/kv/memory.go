package kv

import (
	"bytes"
	"context"
	"sync"
	"time"
)

type memEntry struct {
	value     []byte
	expiresAt time.Time // zero = no expiry
}

func (e memEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryStore is an in-memory Store for development and tests.
// The mutex guards only the map access, never a caller's read-modify-write.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memEntry
	now   func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the clock used for TTL checks.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		items: make(map[string]memEntry),
		now:   time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !validKey(key) {
		return nil, ErrInvalidKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookupLocked(key)
	if !ok {
		return nil, ErrNotFound
	}
	return bytes.Clone(e.value), nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validKey(key) {
		return ErrInvalidKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = s.entry(value, ttl)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validKey(key) {
		return ErrInvalidKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key)
	return nil
}

func (s *MemoryStore) CompareAndSwap(ctx context.Context, key string, old, next []byte, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !validKey(key) {
		return false, ErrInvalidKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.lookupLocked(key)
	switch {
	case old == nil && ok:
		return false, nil
	case old != nil && (!ok || !bytes.Equal(cur.value, old)):
		return false, nil
	}

	s.items[key] = s.entry(next, ttl)
	return true, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func (s *MemoryStore) Close() error { return nil }

// Len reports the number of live entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for _, e := range s.items {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

func (s *MemoryStore) lookupLocked(key string) (memEntry, bool) {
	e, ok := s.items[key]
	if !ok {
		return memEntry{}, false
	}
	if e.expired(s.now()) {
		delete(s.items, key)
		return memEntry{}, false
	}
	return e, true
}

func (s *MemoryStore) entry(value []byte, ttl time.Duration) memEntry {
	e := memEntry{value: bytes.Clone(value)}
	if e.value == nil {
		e.value = []byte{}
	}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	return e
}
