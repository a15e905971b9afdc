package users

// User represents an account in the system. The ACL engine only consults
// Username and the user-level IP lists; the rest belongs to the serving
// layer.
type User struct {
	Username     string   `json:"username"`
	PasswordHash string   `json:"password_hash"`
	Role         string   `json:"role,omitempty"`
	HomeDir      string   `json:"home_dir,omitempty"`
	Permissions  []string `json:"permissions,omitempty"`
	IPInclusions []string `json:"ip_inclusions,omitempty"`
	IPExclusions []string `json:"ip_exclusions,omitempty"`
}

// Source represents a source of user data
type Source interface {
	// LoadUser loads user data for a given username
	LoadUser(username string) (*User, error)
}

// Role constants
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
	RoleGuest = "guest"
)
