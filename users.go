package secretsite

import "time"

// User is an identity record. ID is opaque, generated at creation and
// immutable; it is the key under which the session serializes the identity.
// Local accounts populate Username and PasswordHash; accounts created via
// Google populate GoogleID. Lookups resolve through exactly one of the two.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	GoogleID     string
	Name         string
	Picture      string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity is the projection of a User stored in the session.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Picture  string `json:"picture"`
}

// NewIdentity projects the session-safe fields of a user. The allow-list is
// ID, Username, Name and Picture; credentials never cross this boundary.
func NewIdentity(u *User) *Identity {
	return &Identity{
		ID:       u.ID,
		Username: u.Username,
		Name:     u.Name,
		Picture:  u.Picture,
	}
}

// DisplayName picks the friendliest non-empty label for page headers.
func (i *Identity) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	return i.Username
}

// UserStore is the persistence contract for user records.
type UserStore interface {
	// CreateLocalUser persists a new local-credential account. Returns
	// ErrDuplicateUsername if the username is already registered.
	CreateLocalUser(username, passwordHash string) (*User, error)

	// GetUserByUsername retrieves a user by their unique username.
	GetUserByUsername(username string) (*User, error)

	// GetUserById retrieves a user by their ID.
	GetUserById(id string) (*User, error)

	// FindOrCreateByGoogleID returns the user owning the given provider
	// subject, creating one if absent. The operation is atomic: concurrent
	// calls with the same subject resolve to a single record.
	FindOrCreateByGoogleID(googleID, name, picture string) (*User, error)

	// UpdatePassword replaces the stored hash for a local account.
	UpdatePassword(username, passwordHash string) error
}
