package authentication

import (
	"errors"

	"github.com/digitive/crypt"
)

// UnixCrypt verifies traditional Unix crypt(3) password hashes
type UnixCrypt struct{}

// NewUnixCrypt creates a new Unix crypt verifier
func NewUnixCrypt() *UnixCrypt {
	return &UnixCrypt{}
}

// Hash takes a plaintext password and returns its hashed version
func (h *UnixCrypt) Hash(password string) (string, error) {
	if len(password) < 2 {
		return "", errors.New("password too short to derive salt")
	}
	// Use the first two characters of the password as the salt
	return crypt.Crypt(password, password[:2])
}

// VerifyPassword checks if a password matches its hashed version
func (h *UnixCrypt) VerifyPassword(password, hashedPassword string) error {
	// Salt is the first 2 characters of the hash
	if len(hashedPassword) < 2 {
		return errors.New("invalid hash: too short")
	}
	salt := hashedPassword[:2]

	computed, err := crypt.Crypt(password, salt)
	if err != nil {
		return err
	}

	if computed != hashedPassword {
		return ErrInvalidCredentials
	}

	return nil
}
