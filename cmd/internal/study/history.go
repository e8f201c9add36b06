package study

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"studysprint/cmd/internal/apperr"
	"studysprint/cmd/internal/metrics"
	"studysprint/cmd/kv"
)

// MaxSessionIDLength bounds client supplied session ids.
const MaxSessionIDLength = 128

// History stores study sessions under study:<user>:<id> and a per-user index under list:<user>.
//
// The full record is written before the index append, so an index entry always has a record.
type History struct {
	log      *slog.Logger
	sessions *kv.Records[Session]
	index    *kv.Records[[]Summary]
	metrics  *metrics.Metrics
}

// HistoryOption configures History.
type HistoryOption func(*History)

// WithHistoryMetrics records outcomes on m.
func WithHistoryMetrics(m *metrics.Metrics) HistoryOption {
	return func(h *History) { h.metrics = m }
}

// NewHistory binds the history families to the substrate.
func NewHistory(log *slog.Logger, st kv.Store, opts ...HistoryOption) *History {
	if log == nil {
		log = slog.Default()
	}
	h := &History{
		log:      log,
		sessions: kv.NewRecords[Session](st, "study"),
		index:    kv.NewRecords[[]Summary](st, "list"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Record persists a session and appends it to the user's index. now becomes the session's
// StartedAt, so it is the recording time rather than the allocation time.
//
// Recording an existing sessionId with identical minutes and items is a no-op that repairs a
// missing index entry; with different content it fails with Conflict.
func (h *History) Record(ctx context.Context, now time.Time, username, sessionID string, minutes int, items []int64) (Session, error) {
	const op = "study.Record"

	switch {
	case username == "":
		return Session{}, apperr.Invalid(op, "username is required")
	case sessionID == "":
		return Session{}, apperr.Invalid(op, "sessionId is required")
	case len(sessionID) > MaxSessionIDLength:
		return Session{}, apperr.Invalid(op, "sessionId is too long")
	case minutes <= 0:
		return Session{}, apperr.Invalid(op, "minutes must be positive")
	case len(items) == 0:
		return Session{}, apperr.Invalid(op, "items are required")
	case len(items) > MaxAllocation:
		return Session{}, apperr.Invalid(op, "too many items")
	}
	for _, it := range items {
		if it < 0 {
			return Session{}, apperr.Invalid(op, "items must be non-negative")
		}
	}

	sess := Session{
		SessionID: sessionID,
		Username:  username,
		StartedAt: now.UTC(),
		Minutes:   minutes,
		Items:     slices.Clone(items),
	}

	inserted, err := h.sessions.Insert(ctx, sess, username, sessionID)
	if err != nil {
		h.metrics.Recorded("error")
		return Session{}, apperr.Internal(op, err)
	}
	if !inserted {
		existing, err := h.sessions.Get(ctx, username, sessionID)
		if err != nil {
			h.metrics.Recorded("error")
			return Session{}, apperr.Internal(op, err)
		}
		if existing.Minutes != minutes || !slices.Equal(existing.Items, items) {
			h.metrics.Recorded("conflict")
			return Session{}, apperr.Conflict(op, "session already recorded with different content")
		}
		sess = existing
	}

	_, err = h.index.Update(ctx, func(cur []Summary, _ bool) ([]Summary, error) {
		if slices.ContainsFunc(cur, func(s Summary) bool { return s.SessionID == sessionID }) {
			return cur, nil
		}
		return append(cur, sess.Summary()), nil
	}, username)
	if err != nil {
		h.log.Error("study.record.index.fail", "username", username, "session_id", sessionID, "err", err)
		h.metrics.Recorded("error")
		return Session{}, apperr.Internal(op, err)
	}

	if inserted {
		h.metrics.Recorded("ok")
	} else {
		h.metrics.Recorded("duplicate")
	}
	return sess, nil
}

// Get loads one full session record.
func (h *History) Get(ctx context.Context, username, sessionID string) (Session, error) {
	const op = "study.Get"

	s, err := h.sessions.Get(ctx, username, sessionID)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return Session{}, apperr.OpError{Op: op, Kind: apperr.ErrNotFound, Msg: "session not found"}
		}
		return Session{}, apperr.Internal(op, err)
	}
	return s, nil
}

// List returns the user's index in append order. A user with no sessions gets an empty slice.
func (h *History) List(ctx context.Context, username string) ([]Summary, error) {
	const op = "study.List"

	if username == "" {
		return nil, apperr.Invalid(op, "username is required")
	}

	list, err := h.index.Get(ctx, username)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return []Summary{}, nil
		}
		return nil, apperr.Internal(op, err)
	}
	if list == nil {
		list = []Summary{}
	}
	return list, nil
}
