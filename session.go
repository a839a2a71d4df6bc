package secretsite

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Session variable names
const (
	SessionKeyIdentity = "identity"
	SessionKeyUserId   = "loggedInUserId"
	SessionKeyFlash    = "flash"
)

// SessionAuth maps opaque client-held session tokens (scs cookies) to a
// serialized Identity, and mirrors the login state into a signed JWT cookie
// for handlers that only see headers.
type SessionAuth struct {
	Session *scs.SessionManager

	// Name of the cookie carrying the signed auth token
	AuthTokenCookieName string

	// JWT related fields
	JwtIssuer    string
	JWTSecretKey string

	// How long an auth token cookie is valid for. Defaults to 1 hour.
	AuthTokenTTL time.Duration
}

// NewSessionAuth builds a session manager whose cookie lives until the browser
// session ends. Callers wanting persistent sessions flip Session.Cookie.Persist
// after construction.
func NewSessionAuth(jwtSecretKey string) *SessionAuth {
	session := scs.New()
	session.Cookie.Persist = false
	session.Cookie.HttpOnly = true
	session.Cookie.SameSite = http.SameSiteLaxMode

	return &SessionAuth{
		Session:             session,
		AuthTokenCookieName: "authToken",
		JwtIssuer:           "secretsite",
		JWTSecretKey:        jwtSecretKey,
		AuthTokenTTL:        time.Hour,
	}
}

func (s *SessionAuth) authTokenTTL() time.Duration {
	if s.AuthTokenTTL > 0 {
		return s.AuthTokenTTL
	}
	return time.Hour
}

// Establish serializes the user's identity into the session and issues the
// auth token cookie. The session token is renewed first so a token handed out
// before login cannot be fixed onto the authenticated session.
func (s *SessionAuth) Establish(w http.ResponseWriter, r *http.Request, user *User) error {
	if err := s.Session.RenewToken(r.Context()); err != nil {
		return fmt.Errorf("failed to renew session token: %w", err)
	}

	payload, err := json.Marshal(NewIdentity(user))
	if err != nil {
		return fmt.Errorf("failed to serialize identity: %w", err)
	}
	s.Session.Put(r.Context(), SessionKeyIdentity, payload)
	s.Session.Put(r.Context(), SessionKeyUserId, user.ID)

	tokenString, err := s.signAuthToken(user.ID)
	if err != nil {
		// The session is still valid; the JWT cookie is a convenience.
		slog.Warn("error signing auth token", "err", err)
		return nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.AuthTokenCookieName,
		Value:    tokenString,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.authTokenTTL().Seconds()),
		Expires:  time.Now().Add(s.authTokenTTL()),
	})
	return nil
}

// Restore returns the identity bound to the request's session token. Absent,
// expired or tampered tokens restore to unauthenticated; Restore never fails.
func (s *SessionAuth) Restore(r *http.Request) (*Identity, bool) {
	payload := s.Session.GetBytes(r.Context(), SessionKeyIdentity)
	if len(payload) == 0 {
		return nil, false
	}
	var identity Identity
	if err := json.Unmarshal(payload, &identity); err != nil || identity.ID == "" {
		return nil, false
	}
	return &identity, true
}

// Invalidate destroys the server-side session and clears the auth cookie.
func (s *SessionAuth) Invalidate(w http.ResponseWriter, r *http.Request) error {
	http.SetCookie(w, &http.Cookie{
		Name:    s.AuthTokenCookieName,
		Path:    "/",
		MaxAge:  -1,
		Expires: time.Now(),
	})
	return s.Session.Destroy(r.Context())
}

// SessionGetter adapts the scs session for the Middleware contract.
func (s *SessionAuth) SessionGetter(r *http.Request, param string) any {
	return s.Session.Get(r.Context(), param)
}

func (s *SessionAuth) signAuthToken(userId string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userId,
		"iss": s.JwtIssuer,
		"exp": now.Add(s.authTokenTTL()).Unix(),
		"iat": now.Unix(),
	})
	return token.SignedString([]byte(s.JWTSecretKey))
}

// VerifyAuthToken parses and validates a signed auth token, returning the
// logged-in user id it asserts.
func (s *SessionAuth) VerifyAuthToken(tokenString string) (loggedInUserId string, t any, err error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.JWTSecretKey), nil
	})
	if err != nil {
		return "", nil, err
	}
	if !token.Valid {
		return "", nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims == nil {
		return "", nil, fmt.Errorf("claims is not a map")
	}
	sub, err := claims.GetSubject()
	if sub == "" {
		return "", nil, fmt.Errorf("subject not found")
	} else if err != nil {
		return "", nil, err
	}
	return sub, token, nil
}
