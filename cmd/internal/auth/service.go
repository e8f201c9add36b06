// Package auth implements registration, login and bearer-token verification.
//
// Every protected operation resolves its caller through Service.Verify; nothing else
// grants access. Login failures never reveal whether the username exists.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"studysprint/cmd/identity"
	"studysprint/cmd/internal/apperr"
	"studysprint/cmd/internal/auth/session"
	"studysprint/cmd/security/password"
	"studysprint/cmd/security/token"
)

const invalidCredentials = "invalid credentials"

// Issued is the result of a successful login. Token is shown to the client once.
type Issued struct {
	Token     string
	Username  string
	ExpiresAt time.Time
}

// Service wires credentials, password hashing and token sessions together.
type Service struct {
	log    *slog.Logger
	users  *identity.Store
	tokens *session.Store
	pw     password.Config
	cfg    session.Config

	// dummy is verified when the user is missing so both failure paths cost one KDF run.
	dummy password.Digest
}

// NewService constructs a Service.
func NewService(log *slog.Logger, users *identity.Store, tokens *session.Store, pw password.Config, cfg session.Config) (*Service, error) {
	if log == nil {
		log = slog.Default()
	}
	if users == nil || tokens == nil {
		return nil, errors.New("auth: nil store")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dummy, err := pw.Dummy()
	if err != nil {
		return nil, err
	}

	return &Service{
		log:    log,
		users:  users,
		tokens: tokens,
		pw:     pw,
		cfg:    cfg,
		dummy:  dummy,
	}, nil
}

// Register creates a new user. It does not log the user in.
func (s *Service) Register(ctx context.Context, now time.Time, username, pw string) error {
	const op = "auth.Register"

	switch err := identity.ValidateUsername(username); {
	case errors.Is(err, identity.ErrUsernameTooShort):
		return apperr.Invalid(op, "username must be at least 3 characters")
	case errors.Is(err, identity.ErrUsernameTooLong):
		return apperr.Invalid(op, "username is too long")
	}

	digest, err := s.pw.Hash(pw)
	switch {
	case errors.Is(err, password.ErrPasswordTooShort):
		return apperr.Invalid(op, "password must be at least 6 characters")
	case errors.Is(err, password.ErrPasswordTooLong):
		return apperr.Invalid(op, "password is too long")
	case errors.Is(err, password.ErrWeakPassword):
		return apperr.Invalid(op, "password is too weak")
	case err != nil:
		return apperr.Internal(op, err)
	}

	u := identity.User{
		Username:  username,
		Digest:    digest,
		CreatedAt: now.UTC(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return err
	}

	s.log.Info("auth.register.ok", "username", username)
	return nil
}

// Login checks credentials and issues a fresh token valid for the configured TTL.
func (s *Service) Login(ctx context.Context, now time.Time, username, pw string) (Issued, error) {
	const op = "auth.Login"

	if username == "" || pw == "" {
		return Issued{}, apperr.Invalid(op, "username and password are required")
	}

	u, err := s.users.Get(ctx, username)
	if err != nil {
		if !apperr.IsNotFound(err) {
			return Issued{}, err
		}
		_, _ = s.pw.Verify(s.dummy, pw)
		s.log.Info("auth.login.fail", "reason", "unknown_user")
		return Issued{}, apperr.Unauthorized(op, invalidCredentials)
	}

	ok, err := s.pw.Verify(u.Digest, pw)
	if err != nil {
		s.log.Warn("auth.login.digest_invalid", "username", username, "err", err)
		return Issued{}, apperr.Unauthorized(op, invalidCredentials)
	}
	if !ok {
		s.log.Info("auth.login.fail", "reason", "bad_password")
		return Issued{}, apperr.Unauthorized(op, invalidCredentials)
	}

	tok, err := token.NewOpaque(s.cfg.TokenBytes)
	if err != nil {
		return Issued{}, apperr.Internal(op, err)
	}

	now = now.UTC()
	rec := session.Record{
		Username:  u.Username,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.TokenTTL),
	}
	if err := s.tokens.Insert(ctx, tok, rec); err != nil {
		return Issued{}, apperr.Internal(op, err)
	}

	s.log.Info("auth.login.ok", "username", u.Username)
	return Issued{Token: tok, Username: u.Username, ExpiresAt: rec.ExpiresAt}, nil
}

// Verify resolves a token to its username. Unknown, empty and expired tokens are
// Unauthorized; an expired record is deleted as a side effect.
func (s *Service) Verify(ctx context.Context, now time.Time, tok string) (string, error) {
	const op = "auth.Verify"

	if tok == "" {
		return "", apperr.Unauthorized(op, "missing token")
	}

	rec, err := s.tokens.Lookup(ctx, tok)
	if err != nil {
		if errors.Is(err, session.ErrTokenNotFound) {
			return "", apperr.Unauthorized(op, "invalid token")
		}
		return "", apperr.Internal(op, err)
	}

	if rec.Expired(now) {
		if err := s.tokens.Delete(ctx, tok); err != nil {
			s.log.Warn("auth.verify.expired_delete.fail", "err", err)
		}
		return "", apperr.Unauthorized(op, "token expired")
	}

	return rec.Username, nil
}

// Revoke deletes the token record. Revoking an unknown token is not an error.
func (s *Service) Revoke(ctx context.Context, tok string) error {
	const op = "auth.Revoke"

	if tok == "" {
		return apperr.Unauthorized(op, "missing token")
	}
	if err := s.tokens.Delete(ctx, tok); err != nil {
		return apperr.Internal(op, err)
	}
	return nil
}
