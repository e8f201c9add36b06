package session

import (
	"context"
	"errors"
	"time"

	"studysprint/cmd/kv"
	"studysprint/cmd/security/token"
)

// Record is the server-side view of an issued token.
type Record struct {
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the record is past its expiry at now.
func (r Record) Expired(now time.Time) bool { return now.After(r.ExpiresAt) }

// Store maps token digests to records. Plain tokens never reach the substrate.
type Store struct {
	records *kv.Records[Record]
	hasher  token.Hasher
}

// NewStore binds a token store to the substrate. ttl is handed to the backend as a
// garbage-collection hint; expiry is still decided by Record.ExpiresAt.
func NewStore(st kv.Store, hasher token.Hasher, ttl time.Duration) *Store {
	return &Store{
		records: kv.NewRecords[Record](st, "session", kv.WithTTL(ttl)),
		hasher:  hasher,
	}
}

// Insert stores rec under the digest of tok.
func (s *Store) Insert(ctx context.Context, tok string, rec Record) error {
	return s.records.Put(ctx, rec, s.hasher.Hex(tok))
}

// Lookup returns the record for tok or ErrTokenNotFound.
func (s *Store) Lookup(ctx context.Context, tok string) (Record, error) {
	rec, err := s.records.Get(ctx, s.hasher.Hex(tok))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return Record{}, ErrTokenNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

// Delete removes the record for tok. Missing records are not an error.
func (s *Store) Delete(ctx context.Context, tok string) error {
	return s.records.Delete(ctx, s.hasher.Hex(tok))
}
