package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

const (
	defaultMaxAttempts = 32
	minBackoff         = time.Millisecond
	maxBackoff         = 50 * time.Millisecond
)

// Records is a typed view over a Store: values of T are stored as JSON under Key(prefix, id...).
type Records[T any] struct {
	store       Store
	prefix      string
	ttl         time.Duration
	maxAttempts int
}

type recordsOptions struct {
	ttl         time.Duration
	maxAttempts int
}

// RecordsOption configures Records.
type RecordsOption func(*recordsOptions)

// WithTTL sets the substrate TTL applied on every write (0 = no expiry).
func WithTTL(ttl time.Duration) RecordsOption {
	return func(o *recordsOptions) { o.ttl = ttl }
}

// WithMaxAttempts bounds the CAS retry loop used by Update.
func WithMaxAttempts(n int) RecordsOption {
	return func(o *recordsOptions) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// NewRecords binds a typed record family to store under prefix.
func NewRecords[T any](store Store, prefix string, opts ...RecordsOption) *Records[T] {
	o := recordsOptions{maxAttempts: defaultMaxAttempts}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return &Records[T]{
		store:       store,
		prefix:      prefix,
		ttl:         o.ttl,
		maxAttempts: o.maxAttempts,
	}
}

// Key returns the substrate key for id.
func (r *Records[T]) Key(id ...string) string { return Key(r.prefix, id...) }

// Get loads and decodes the record. Missing records return ErrNotFound.
func (r *Records[T]) Get(ctx context.Context, id ...string) (T, error) {
	var zero T
	raw, err := r.store.Get(ctx, r.Key(id...))
	if err != nil {
		return zero, err
	}
	return r.decode(raw)
}

// Put overwrites the record unconditionally.
func (r *Records[T]) Put(ctx context.Context, v T, id ...string) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("kv: encode %s: %w", r.prefix, err)
	}
	return r.store.Set(ctx, r.Key(id...), raw, r.ttl)
}

// Insert writes the record only if none exists. It reports whether the write happened.
func (r *Records[T]) Insert(ctx context.Context, v T, id ...string) (bool, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return false, fmt.Errorf("kv: encode %s: %w", r.prefix, err)
	}
	return r.store.CompareAndSwap(ctx, r.Key(id...), nil, raw, r.ttl)
}

// Delete removes the record. Missing records are not an error.
func (r *Records[T]) Delete(ctx context.Context, id ...string) error {
	return r.store.Delete(ctx, r.Key(id...))
}

// Update applies fn as an atomic read-modify-write on a single key.
//
// fn receives the current value (zero when absent) and whether it existed. The new value is
// written with CompareAndSwap against the exact bytes read; on a lost race fn is re-run on the
// fresh value. fn may therefore run more than once and must not have side effects.
// Returns the value that was written.
func (r *Records[T]) Update(ctx context.Context, fn func(cur T, found bool) (T, error), id ...string) (T, error) {
	var zero T
	key := r.Key(id...)
	backoff := minBackoff

	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		cur := zero
		found := true

		raw, err := r.store.Get(ctx, key)
		switch {
		case errors.Is(err, ErrNotFound):
			found = false
			raw = nil
		case err != nil:
			return zero, err
		default:
			if cur, err = r.decode(raw); err != nil {
				return zero, err
			}
		}

		next, err := fn(cur, found)
		if err != nil {
			return zero, err
		}
		enc, err := json.Marshal(next)
		if err != nil {
			return zero, fmt.Errorf("kv: encode %s: %w", r.prefix, err)
		}

		ok, err := r.store.CompareAndSwap(ctx, key, raw, enc, r.ttl)
		if err != nil {
			return zero, err
		}
		if ok {
			return next, nil
		}

		if err := sleepCtx(ctx, jitter(backoff)); err != nil {
			return zero, err
		}
		backoff = min(backoff*2, maxBackoff)
	}

	return zero, fmt.Errorf("%w: %s", ErrContention, key)
}

func (r *Records[T]) decode(raw []byte) (T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("kv: decode %s: %w", r.prefix, err)
	}
	return v, nil
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d/2 + rand.N(d/2+1)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
