package identity

import (
	"context"
	"errors"

	"studysprint/cmd/internal/apperr"
	"studysprint/cmd/kv"
)

// Store is the credential store: username -> User.
type Store struct {
	users *kv.Records[User]
}

// NewStore binds a credential store to the substrate.
func NewStore(st kv.Store) *Store {
	return &Store{users: kv.NewRecords[User](st, "user")}
}

// Create inserts u. It fails with a Conflict kind if the username is taken.
func (s *Store) Create(ctx context.Context, u User) error {
	const op = "identity.Create"

	if u.Username == "" {
		return apperr.Invalid(op, "username is required")
	}

	ok, err := s.users.Insert(ctx, u, u.Username)
	if err != nil {
		return apperr.Internal(op, err)
	}
	if !ok {
		return apperr.Conflict(op, "username already exists")
	}
	return nil
}

// Get loads a user by exact username. Missing users return a NotFound kind.
func (s *Store) Get(ctx context.Context, username string) (User, error) {
	const op = "identity.Get"

	if username == "" {
		return User{}, apperr.OpError{Op: op, Kind: apperr.ErrNotFound}
	}

	u, err := s.users.Get(ctx, username)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return User{}, apperr.OpError{Op: op, Kind: apperr.ErrNotFound}
		}
		return User{}, apperr.Internal(op, err)
	}
	return u, nil
}
