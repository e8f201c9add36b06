package study

import (
	"time"

	"studysprint/cmd/identity/ids"
)

// Session is the full, immutable record of one study session.
//
// StartedAt is the time the session was recorded (the save call), not the time its items were
// allocated; the wire name stays "startedAt" for existing clients.
type Session struct {
	SessionID string `json:"sessionId"`
	Username  string `json:"username"`
	// StartedAt is when Record first stored the session. Re-recording keeps the original value.
	StartedAt time.Time `json:"startedAt"`
	Minutes   int       `json:"minutes"`
	Items     []int64   `json:"items"`
}

// Summary is the per-user index entry for a Session.
type Summary struct {
	SessionID string    `json:"sessionId"`
	StartedAt time.Time `json:"startedAt"`
	Minutes   int       `json:"minutes"`
	Items     []int64   `json:"items"`
}

// Summary projects s onto its index entry.
func (s Session) Summary() Summary {
	return Summary{
		SessionID: s.SessionID,
		StartedAt: s.StartedAt,
		Minutes:   s.Minutes,
		Items:     s.Items,
	}
}

// NewSessionID returns a ULID: 48-bit millisecond timestamp plus 80 bits of crypto randomness.
func NewSessionID(now time.Time) (string, error) {
	return ids.NewULID(now)
}
