package identity

import (
	"errors"
	"time"
	"unicode/utf8"

	"studysprint/cmd/security/password"
)

// Username length bounds, in runes.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 64
)

var (
	ErrUsernameTooShort = errors.New("username too short")
	ErrUsernameTooLong  = errors.New("username too long")
)

// User is a credential holder. The embedded digest carries hash, salt and KDF parameters.
type User struct {
	Username string `json:"username"`
	password.Digest
	CreatedAt time.Time `json:"createdAt"`
}

// ValidateUsername enforces length bounds only; any characters are allowed.
func ValidateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	switch {
	case n < MinUsernameLength:
		return ErrUsernameTooShort
	case n > MaxUsernameLength:
		return ErrUsernameTooLong
	}
	return nil
}
