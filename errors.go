package secretsite

import (
	"errors"
	"fmt"
)

// Expected authentication outcomes. Handlers branch on these with errors.Is
// and recover by redirecting to the right form; anything else is a server
// error.
var (
	// ErrDuplicateUsername is returned when registering a username that is
	// already taken.
	ErrDuplicateUsername = errors.New("username is already taken")

	// ErrInvalidCredentials covers both unknown usernames and wrong passwords
	// so a caller cannot tell which part failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAuthFailed is returned when an external provider callback cannot be
	// verified (state mismatch, denied consent, exchange failure).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrUserNotFound is returned by stores for lookups that match nothing.
	ErrUserNotFound = errors.New("user not found")

	// ErrStoreUnavailable wraps data-store connectivity failures. Not
	// recoverable by a request handler.
	ErrStoreUnavailable = errors.New("user store unavailable")
)

// Error codes carried by AuthError
const (
	ErrCodeMissingField    = "missing_field"
	ErrCodeInvalidUsername = "invalid_username"
	ErrCodeWeakPassword    = "weak_password"
	ErrCodeUsernameTaken   = "username_taken"
	ErrCodeInvalidCreds    = "invalid_credentials"
)

// AuthError is a form-level validation error: a machine-readable code, a
// message safe to show the user, and the offending field.
type AuthError struct {
	Code    string
	Message string
	Field   string
}

func (e *AuthError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAuthError(code, message, field string) *AuthError {
	return &AuthError{Code: code, Message: message, Field: field}
}
