package study

import (
	"context"
	"errors"
	"math"

	"studysprint/cmd/kv"
)

// errCursorOverflow guards the int64 cursor. Unreachable in practice.
var errCursorOverflow = errors.New("study: cursor overflow")

// CursorStore holds username -> next raw index.
type CursorStore struct {
	cursors *kv.Records[int64]
}

// NewCursorStore binds the cursor family to the substrate.
func NewCursorStore(st kv.Store) *CursorStore {
	return &CursorStore{cursors: kv.NewRecords[int64](st, "cursor")}
}

// Get returns the current cursor, 0 when the user has never allocated.
func (c *CursorStore) Get(ctx context.Context, username string) (int64, error) {
	v, err := c.cursors.Get(ctx, username)
	if errors.Is(err, kv.ErrNotFound) {
		return 0, nil
	}
	return v, err
}

// Advance moves the cursor forward by n and returns the value it held before.
// attempts is the number of CAS rounds it took.
func (c *CursorStore) Advance(ctx context.Context, username string, n int64) (start int64, attempts int, err error) {
	_, err = c.cursors.Update(ctx, func(cur int64, _ bool) (int64, error) {
		attempts++
		if cur < 0 {
			cur = 0
		}
		if cur > math.MaxInt64-n {
			return 0, errCursorOverflow
		}
		start = cur
		return cur + n, nil
	}, username)
	if err != nil {
		return 0, attempts, err
	}
	return start, attempts, nil
}
