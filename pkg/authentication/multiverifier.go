package authentication

import (
	"errors"
	"strings"
)

// MultiVerifier detects the hash format and delegates to the matching
// verifier.
type MultiVerifier struct {
	unixCrypt *UnixCrypt
	argon2id  *Argon2ID
}

// NewMultiVerifier creates a verifier supporting Unix crypt and Argon2id
func NewMultiVerifier() *MultiVerifier {
	return &MultiVerifier{
		unixCrypt: NewUnixCrypt(),
		argon2id:  NewArgon2ID(),
	}
}

// VerifyPassword detects the hash type and verifies with the matching algorithm
func (v *MultiVerifier) VerifyPassword(password, hashedPassword string) error {
	if hashedPassword == "" {
		return errors.New("empty hash")
	}

	if strings.HasPrefix(hashedPassword, "$argon2id$") {
		return v.argon2id.VerifyPassword(password, hashedPassword)
	}
	if len(hashedPassword) == 13 && !strings.Contains(hashedPassword, "$") {
		// Unix crypt format: 13 characters, no $ symbols
		return v.unixCrypt.VerifyPassword(password, hashedPassword)
	}

	return errors.New("unsupported hash format")
}
