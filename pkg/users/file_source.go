package users

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fjordsec/fjordftpd/pkg/logging"
)

// FileSource implements Source from a JSON accounts file. The file holds a
// single object with a "users" array; it is re-read on every load so edits
// take effect without a restart (the Repository caches on top).
type FileSource struct {
	filePath string
}

// NewFileSource creates a new FileSource
func NewFileSource(filePath string) *FileSource {
	return &FileSource{
		filePath: filePath,
	}
}

type accountsFile struct {
	Users []*User `json:"users"`
}

// LoadUser implements Source
func (s *FileSource) LoadUser(username string) (*User, error) {
	if username == "" {
		return nil, fmt.Errorf("invalid username")
	}

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			logging.App.Debug("Accounts file not found", "path", s.filePath)
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("reading accounts file: %w", err)
	}

	var accounts accountsFile
	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, fmt.Errorf("parsing accounts file: %w", err)
	}

	for _, user := range accounts.Users {
		if user.Username != username {
			continue
		}
		if user.PasswordHash == "" {
			logging.App.Debug("Account has no password hash", "username", username)
			return nil, ErrInvalidHash
		}
		return user, nil
	}

	logging.App.Debug("User not present in accounts file", "username", username, "path", s.filePath)
	return nil, ErrUserNotFound
}
