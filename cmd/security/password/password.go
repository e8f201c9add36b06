package password

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

// Digest is the stored form of a password: hex hash + hex salt plus the parameters that produced it.
// Verification always reuses the stored parameters, so the work factor can be raised for new
// hashes without invalidating old ones.
type Digest struct {
	Algorithm   Algorithm `json:"algorithm"`
	Hash        string    `json:"passwordHash"`
	Salt        string    `json:"passwordSalt"`
	Iterations  uint32    `json:"iterations"`
	MemoryKiB   uint32    `json:"memoryKiB,omitempty"`
	Parallelism uint8     `json:"parallelism,omitempty"`
}

// Hash validates the password against the policy and derives a new Digest with a fresh random salt.
func (c Config) Hash(password string) (Digest, error) {
	if err := c.Validate(password); err != nil {
		return Digest{}, err
	}
	return c.derive(password)
}

// derive skips policy checks; used for Hash and for building timing dummies.
func (c Config) derive(password string) (Digest, error) {
	switch c.Algorithm {
	case AlgorithmArgon2id:
		salt, err := randomSalt(c.Argon2id.SaltLength)
		if err != nil {
			return Digest{}, err
		}
		p := c.Argon2id
		key := argon2.IDKey([]byte(password), salt, p.Iterations, p.MemoryKiB, p.Parallelism, p.KeyLength)
		return Digest{
			Algorithm:   AlgorithmArgon2id,
			Hash:        hex.EncodeToString(key),
			Salt:        hex.EncodeToString(salt),
			Iterations:  p.Iterations,
			MemoryKiB:   p.MemoryKiB,
			Parallelism: p.Parallelism,
		}, nil

	case AlgorithmPBKDF2SHA512, "":
		salt, err := randomSalt(c.PBKDF2.SaltLength)
		if err != nil {
			return Digest{}, err
		}
		p := c.PBKDF2
		key := pbkdf2.Key([]byte(password), salt, int(p.Iterations), int(p.KeyLength), sha512.New)
		return Digest{
			Algorithm:  AlgorithmPBKDF2SHA512,
			Hash:       hex.EncodeToString(key),
			Salt:       hex.EncodeToString(salt),
			Iterations: p.Iterations,
		}, nil

	default:
		return Digest{}, fmt.Errorf("password: unsupported algorithm %q", c.Algorithm)
	}
}

// Dummy derives a digest of a fixed throwaway password with the configured parameters.
// Verifying against it costs the same as verifying a real user's hash.
func (c Config) Dummy() (Digest, error) {
	return c.derive("dummy-password-for-timing-only")
}

// Verify checks whether password matches d.
// Returns (true, nil) for a match, (false, nil) for mismatch,
// and (false, ErrInvalidHash) for malformed/unsupported digests.
func (c Config) Verify(d Digest, password string) (bool, error) {
	salt, err := hex.DecodeString(d.Salt)
	if err != nil || len(salt) < 8 || len(salt) > 64 {
		return false, ErrInvalidHash
	}
	expected, err := hex.DecodeString(d.Hash)
	if err != nil || len(expected) < 16 || len(expected) > 128 {
		return false, ErrInvalidHash
	}

	var key []byte
	switch d.Algorithm {
	case AlgorithmPBKDF2SHA512:
		// Anti-DoS boundary: stored parameters are untrusted input.
		if d.Iterations == 0 || d.Iterations > max(c.PBKDF2.Iterations*2, DefaultPBKDF2Iterations*2) {
			return false, ErrInvalidHash
		}
		key = pbkdf2.Key([]byte(password), salt, int(d.Iterations), len(expected), sha512.New)

	case AlgorithmArgon2id:
		if d.Iterations == 0 || d.MemoryKiB == 0 || d.Parallelism == 0 {
			return false, ErrInvalidHash
		}
		if d.MemoryKiB > c.Argon2id.MemoryKiB*2 ||
			d.Iterations > c.Argon2id.Iterations*2 ||
			d.Parallelism > c.Argon2id.Parallelism*2 {
			return false, ErrInvalidHash
		}
		key = argon2.IDKey(
			[]byte(password),
			salt,
			d.Iterations,
			d.MemoryKiB,
			d.Parallelism,
			uint32(len(expected)), // #nosec G115 -- bounded to 128 above.
		)

	default:
		return false, ErrInvalidHash
	}

	// Constant-time over the full length; a length mismatch is a mismatch.
	return subtle.ConstantTimeCompare(key, expected) == 1, nil
}

func randomSalt(n uint32) ([]byte, error) {
	salt := make([]byte, n)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("salt: %w", err)
	}
	return salt, nil
}
