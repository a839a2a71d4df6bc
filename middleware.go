package secretsite

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

type userParamNameKey string

// Middleware restores the logged-in user on each request and, for protected
// routes, enforces that one exists.
type Middleware struct {
	AuthTokenCookieName string
	UserParamName       string
	CallbackURLParam    string
	SessionGetter       func(r *http.Request, param string) any
	GetRedirURL         func(r *http.Request) string
	VerifyToken         func(tokenString string) (loggedInUserId string, token any, err error)
}

// Ensures that config values have reasonable defaults.
func (a *Middleware) EnsureReasonableDefaults() {
	if a.UserParamName == "" {
		a.UserParamName = SessionKeyUserId
	}
	if a.CallbackURLParam == "" {
		a.CallbackURLParam = "callbackURL"
	}
}

// GetLoggedInUserId returns the ID of the logged in user for the current
// request, or "" when the request is anonymous. The session is consulted
// first, then the signed auth token cookie.
func (a *Middleware) GetLoggedInUserId(r *http.Request) string {
	v := r.Context().Value(userParamNameKey(a.UserParamName))
	if v != nil {
		if loggedInUserId, ok := v.(string); ok && loggedInUserId != "" {
			return loggedInUserId
		}
	}

	if userParam := a.getLoggedInUserId(r); userParam != "" {
		return userParam
	}

	if a.VerifyToken == nil || a.AuthTokenCookieName == "" {
		return ""
	}

	// Fall back to the auth token cookie - non-session callers may only have
	// that.
	for _, cookie := range r.Cookies() {
		if cookie.Name != a.AuthTokenCookieName || len(cookie.Value) == 0 {
			continue
		}
		loggedInUserId, _, err := a.VerifyToken(cookie.Value)
		if err == nil && loggedInUserId != "" {
			return loggedInUserId
		} else if err != nil {
			slog.Warn("error verifying auth token", "error", err)
		}
	}
	return ""
}

// ExtractUser fetches the user from the request and makes the UserId available
// to other handlers.
//
// Note this does not perform any redirects if a valid user does not exist.
// To also enforce a user exists, use the EnsureUser handler which both
// extracts the user and ensures one is logged in.
func (a *Middleware) ExtractUser(next http.Handler) http.Handler {
	a.EnsureReasonableDefaults()
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			userParam := a.GetLoggedInUserId(r)
			next.ServeHTTP(w, a.setLoggedInUserId(userParam, r))
		},
	)
}

// EnsureUser guards protected routes: anonymous requests are redirected to the
// login URL with the original path carried in the callbackURL parameter.
func (a *Middleware) EnsureUser(next http.Handler) http.Handler {
	a.EnsureReasonableDefaults()
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			userParam := a.GetLoggedInUserId(r)
			if userParam == "" {
				redirUrl := ""
				if a.GetRedirURL != nil {
					redirUrl = a.GetRedirURL(r)
				}
				if redirUrl != "" {
					originalUrl := r.URL.Path
					encodedUrl := strings.Replace(url.QueryEscape(originalUrl), "+", "%20", -1)
					fullRedirUrl := fmt.Sprintf("%s?%s=%s", redirUrl, a.CallbackURLParam, encodedUrl)
					http.Redirect(w, r, fullRedirUrl, http.StatusFound)
				} else {
					http.Error(w, "Login Required", http.StatusUnauthorized)
				}
				return
			}
			next.ServeHTTP(w, a.setLoggedInUserId(userParam, r))
		},
	)
}

// Gets the logged in user from the session
func (a *Middleware) getLoggedInUserId(r *http.Request) string {
	if a.SessionGetter == nil {
		return ""
	}
	out := a.SessionGetter(r, a.UserParamName)
	if out == nil {
		return ""
	}
	if s, ok := out.(string); ok {
		return s
	}
	return ""
}

// Set the logged in user id into the request's context so it is available to
// all handlers downstream.
func (a *Middleware) setLoggedInUserId(userId string, r *http.Request) *http.Request {
	contextWithUser := context.WithValue(r.Context(), userParamNameKey(a.UserParamName), userId)
	return r.WithContext(contextWithUser)
}
