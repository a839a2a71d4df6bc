package secretsite

import (
	"errors"
	"fmt"
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

// Allows local username/password based authentication
type LocalAuth struct {
	// Store resolves and persists user records
	Store UserStore

	// Minimum accepted password length. Defaults to 8.
	MinPasswordLength int
}

// Usernames may be plain handles or email addresses.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._%+@-]{3,254}$`)

// A well-formed bcrypt hash that matches no password we ever accept. Compared
// against when the username is unknown so a lookup miss costs the same as a
// password mismatch.
var unknownUserHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

func (a *LocalAuth) minPasswordLength() int {
	if a.MinPasswordLength > 0 {
		return a.MinPasswordLength
	}
	return 8
}

// ValidateSignup checks the registration form fields. Returns nil when the
// credentials are acceptable.
func (a *LocalAuth) ValidateSignup(username, password string) *AuthError {
	if username == "" {
		return NewAuthError(ErrCodeMissingField, "Username is required", "username")
	}
	if password == "" {
		return NewAuthError(ErrCodeMissingField, "Password is required", "password")
	}
	if !usernamePattern.MatchString(username) {
		return NewAuthError(ErrCodeInvalidUsername, "Username must be 3-254 characters and contain only letters, numbers and . _ % + @ -", "username")
	}
	if len(password) < a.minPasswordLength() {
		return NewAuthError(ErrCodeWeakPassword, fmt.Sprintf("Password must be at least %d characters", a.minPasswordLength()), "password")
	}
	return nil
}

// Register creates a local account: a per-user random salt and hash via bcrypt,
// persisted alongside the username. Returns ErrDuplicateUsername when the
// username is already registered.
func (a *LocalAuth) Register(username, password string) (*User, error) {
	if authErr := a.ValidateSignup(username, password); authErr != nil {
		return nil, authErr
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	return a.Store.CreateLocalUser(username, string(hash))
}

// Authenticate re-derives the hash with the stored salt and compares in
// constant time. Unknown usernames and wrong passwords are indistinguishable:
// both yield ErrInvalidCredentials.
func (a *LocalAuth) Authenticate(username, password string) (*User, error) {
	user, err := a.Store.GetUserByUsername(username)
	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			return nil, err
		}
		bcrypt.CompareHashAndPassword(unknownUserHash, []byte(password))
		return nil, ErrInvalidCredentials
	}

	// OAuth-only accounts have no local credentials to match.
	if user.PasswordHash == "" {
		bcrypt.CompareHashAndPassword(unknownUserHash, []byte(password))
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// SetPassword validates and re-hashes a password for an existing local
// account. Used by the password reset flow.
func (a *LocalAuth) SetPassword(username, password string) error {
	if password == "" {
		return NewAuthError(ErrCodeMissingField, "Password is required", "password")
	}
	if len(password) < a.minPasswordLength() {
		return NewAuthError(ErrCodeWeakPassword, fmt.Sprintf("Password must be at least %d characters", a.minPasswordLength()), "password")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return a.Store.UpdatePassword(username, string(hash))
}
