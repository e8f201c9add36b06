package study

import (
	"context"
	"log/slog"

	"studysprint/cmd/internal/apperr"
	"studysprint/cmd/internal/metrics"
)

// MaxAllocation bounds one allocation.
const MaxAllocation = 1000

// Allocation is the result of one Allocate call.
type Allocation struct {
	// Start is the cursor value the allocation began at.
	Start int64
	// Raw holds Start..Start+count-1. These are the values to persist.
	Raw []int64
	// Positions holds Raw reduced modulo the pool size given to Allocate.
	Positions []int
}

// Scheduler hands out non-overlapping index ranges per user.
type Scheduler struct {
	log     *slog.Logger
	cursors *CursorStore
	metrics *metrics.Metrics
}

// SchedulerOption configures Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerMetrics records allocations on m.
func WithSchedulerMetrics(m *metrics.Metrics) SchedulerOption {
	return func(s *Scheduler) { s.metrics = m }
}

// NewScheduler constructs a Scheduler over cursors.
func NewScheduler(log *slog.Logger, cursors *CursorStore, opts ...SchedulerOption) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	s := &Scheduler{log: log, cursors: cursors}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Allocate reserves count consecutive raw indices for username and advances the cursor past them.
func (s *Scheduler) Allocate(ctx context.Context, username string, count, poolSize int) (Allocation, error) {
	const op = "study.Allocate"

	switch {
	case username == "":
		return Allocation{}, apperr.Invalid(op, "username is required")
	case count <= 0:
		return Allocation{}, apperr.Invalid(op, "numQ must be positive")
	case count > MaxAllocation:
		return Allocation{}, apperr.Invalid(op, "numQ is too large")
	case poolSize <= 0:
		return Allocation{}, apperr.Invalid(op, "totalItems must be positive")
	}

	start, attempts, err := s.cursors.Advance(ctx, username, int64(count))
	if err != nil {
		s.log.Error("study.allocate.fail", "username", username, "attempts", attempts, "err", err)
		return Allocation{}, apperr.Internal(op, err)
	}

	a := Allocation{
		Start:     start,
		Raw:       make([]int64, count),
		Positions: make([]int, count),
	}
	for i := range count {
		raw := start + int64(i)
		a.Raw[i] = raw
		a.Positions[i] = Position(raw, poolSize)
	}

	s.metrics.Allocation(count, attempts)
	if attempts > 1 {
		s.log.Debug("study.allocate.contended", "username", username, "attempts", attempts)
	}
	return a, nil
}

// Position maps a raw index onto a pool of poolSize items. Negative raws and empty pools map to 0.
func Position(raw int64, poolSize int) int {
	if poolSize <= 0 || raw < 0 {
		return 0
	}
	return int(raw % int64(poolSize))
}
