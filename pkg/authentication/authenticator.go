package authentication

import (
	"fmt"

	"github.com/fjordsec/fjordftpd/pkg/users"
)

// Authenticator validates credentials against a user repository
type Authenticator struct {
	repo     *users.Repository
	verifier PasswordVerifier
}

// NewAuthenticator creates a new authenticator. A nil verifier defaults to
// multi-format detection.
func NewAuthenticator(repo *users.Repository, verifier PasswordVerifier) (*Authenticator, error) {
	if repo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if verifier == nil {
		verifier = NewMultiVerifier()
	}

	return &Authenticator{
		repo:     repo,
		verifier: verifier,
	}, nil
}

// Authenticate checks the provided credentials and returns the account on
// success.
func (a *Authenticator) Authenticate(username, password string) (*users.User, error) {
	user, err := a.repo.GetUser(username)
	if err != nil {
		if err == users.ErrUserNotFound {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("loading user: %w", err)
	}

	if err := a.verifier.VerifyPassword(password, user.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// UserExists checks if a user exists and returns any error encountered
func (a *Authenticator) UserExists(username string) (bool, error) {
	return a.repo.UserExists(username)
}
