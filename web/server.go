// Package web wires the authentication strategies, the session manager and the
// page templates behind the application's HTTP routes.
package web

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mhalligan/secretsite"
	oauth2 "github.com/mhalligan/secretsite/oauth2"
)

//go:embed templates/*.html
var templateFS embed.FS

// Config carries everything a Server needs. All collaborators are passed in
// explicitly; the package keeps no ambient state.
type Config struct {
	Local    *secretsite.LocalAuth
	Google   *oauth2.GoogleOAuth2
	Sessions *secretsite.SessionAuth
	Store    secretsite.UserStore

	// Optional: enables the password reset flow when both are set
	Tokens secretsite.TokenStore
	Email  secretsite.SendEmail

	// BaseURL is used when generating reset links
	BaseURL string

	Logger *slog.Logger
}

// Server dispatches HTTP verb+path pairs to the authentication strategies and
// renders the pages.
type Server struct {
	cfg        Config
	logger     *slog.Logger
	middleware *secretsite.Middleware
	templates  *template.Template
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Local == nil || cfg.Sessions == nil || cfg.Store == nil {
		return nil, fmt.Errorf("web: Local, Sessions and Store are required")
	}

	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		templates: templates,
		middleware: &secretsite.Middleware{
			AuthTokenCookieName: cfg.Sessions.AuthTokenCookieName,
			SessionGetter:       cfg.Sessions.SessionGetter,
			VerifyToken:         cfg.Sessions.VerifyAuthToken,
			GetRedirURL: func(r *http.Request) string {
				return "/login"
			},
		},
	}
	return s, nil
}

// Handler returns the application's routes wrapped in session loading, so the
// identity is restorable on every request - authenticated or not.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/", s.handleHome).Methods(http.MethodGet)
	r.HandleFunc("/login", s.handleLoginForm).Methods(http.MethodGet)
	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/register", s.handleRegisterForm).Methods(http.MethodGet)
	r.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	r.Handle("/secrets", s.middleware.EnsureUser(http.HandlerFunc(s.handleSecrets))).Methods(http.MethodGet)
	r.HandleFunc("/logout", s.handleLogout).Methods(http.MethodGet)

	if s.cfg.Google != nil {
		r.HandleFunc("/auth/google", s.handleGoogleBegin).Methods(http.MethodGet)
		r.HandleFunc("/auth/google/callback", s.handleGoogleCallback).Methods(http.MethodGet)
	}

	if s.cfg.Tokens != nil && s.cfg.Email != nil {
		r.HandleFunc("/forgot-password", s.handleForgotPasswordForm).Methods(http.MethodGet)
		r.HandleFunc("/forgot-password", s.handleForgotPassword).Methods(http.MethodPost)
		r.HandleFunc("/reset-password", s.handleResetPasswordForm).Methods(http.MethodGet)
		r.HandleFunc("/reset-password", s.handleResetPassword).Methods(http.MethodPost)
	}

	return s.cfg.Sessions.Session.LoadAndSave(r)
}

// pageData is what every template receives.
type pageData struct {
	Identity *secretsite.Identity
	Flash    string
	Token    string
	HasGoogle bool
	HasReset  bool
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data pageData) {
	if data.Identity == nil {
		data.Identity, _ = s.cfg.Sessions.Restore(r)
	}
	data.HasGoogle = s.cfg.Google != nil
	data.HasReset = s.cfg.Tokens != nil && s.cfg.Email != nil

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("template render failed", "template", name, "err", err)
	}
}

// serverError handles the unrecoverable cases - store connectivity and the
// like. The client sees a generic page, never the underlying error.
func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	http.Error(w, "Something went wrong. Please try again later.", http.StatusInternalServerError)
}

// flash stores a one-shot message shown on the next rendered form.
func (s *Server) flash(r *http.Request, msg string) {
	s.cfg.Sessions.Session.Put(r.Context(), secretsite.SessionKeyFlash, msg)
}

func (s *Server) popFlash(r *http.Request) string {
	return s.cfg.Sessions.Session.PopString(r.Context(), secretsite.SessionKeyFlash)
}

// establish logs the user in and redirects to the protected page. Returns
// false when the session could not be established (already responded).
func (s *Server) establish(w http.ResponseWriter, r *http.Request, user *secretsite.User) bool {
	if err := s.cfg.Sessions.Establish(w, r, user); err != nil {
		s.serverError(w, r, err)
		return false
	}
	return true
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "home.html", pageData{})
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "login.html", pageData{Flash: s.popFlash(r)})
}

func (s *Server) handleRegisterForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "register.html", pageData{Flash: s.popFlash(r)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.flash(r, "Invalid form submission.")
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	username := r.FormValue("username")
	password := r.FormValue("password")

	user, err := s.cfg.Local.Authenticate(username, password)
	switch {
	case errors.Is(err, secretsite.ErrInvalidCredentials):
		s.flash(r, "Invalid username or password.")
		http.Redirect(w, r, "/login", http.StatusFound)
	case err != nil:
		s.serverError(w, r, err)
	default:
		if s.establish(w, r, user) {
			http.Redirect(w, r, "/secrets", http.StatusFound)
		}
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.flash(r, "Invalid form submission.")
		http.Redirect(w, r, "/register", http.StatusFound)
		return
	}
	username := r.FormValue("username")
	password := r.FormValue("password")

	user, err := s.cfg.Local.Register(username, password)
	if err != nil {
		var authErr *secretsite.AuthError
		switch {
		case errors.Is(err, secretsite.ErrDuplicateUsername):
			s.flash(r, "That username is already registered.")
			http.Redirect(w, r, "/register", http.StatusFound)
		case errors.As(err, &authErr):
			s.flash(r, authErr.Message)
			http.Redirect(w, r, "/register", http.StatusFound)
		default:
			s.serverError(w, r, err)
		}
		return
	}

	// Registration doubles as the first login.
	if s.establish(w, r, user) {
		http.Redirect(w, r, "/secrets", http.StatusFound)
	}
}

func (s *Server) handleSecrets(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.cfg.Sessions.Restore(r)
	if !ok {
		// EnsureUser admitted the request off the auth token cookie alone;
		// rebuild the identity from the store.
		userId := s.middleware.GetLoggedInUserId(r)
		user, err := s.cfg.Store.GetUserById(userId)
		if err != nil {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		identity = secretsite.NewIdentity(user)
	}
	s.render(w, r, "secrets.html", pageData{Identity: identity})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Sessions.Invalidate(w, r); err != nil {
		s.logger.Warn("error invalidating session", "err", err)
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleGoogleBegin(w http.ResponseWriter, r *http.Request) {
	s.cfg.Google.BeginAuth(w, r)
}

func (s *Server) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	profile, _, err := s.cfg.Google.CompleteAuth(w, r)
	if err != nil {
		if !errors.Is(err, secretsite.ErrAuthFailed) {
			s.serverError(w, r, err)
			return
		}
		s.logger.Warn("google callback rejected", "err", err)
		s.flash(r, "Google sign-in failed. Please try again.")
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	user, err := s.cfg.Store.FindOrCreateByGoogleID(profile.Subject, profile.Name, profile.Picture)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	// Only the provider and subject are logged, never the full profile.
	s.logger.Info("external login", "provider", "google", "subject", profile.Subject)

	if s.establish(w, r, user) {
		http.Redirect(w, r, "/secrets", http.StatusFound)
	}
}

func (s *Server) handleForgotPasswordForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "forgot.html", pageData{Flash: s.popFlash(r)})
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/forgot-password", http.StatusFound)
		return
	}
	username := r.FormValue("username")
	if username == "" {
		s.flash(r, "Username is required.")
		http.Redirect(w, r, "/forgot-password", http.StatusFound)
		return
	}

	// Whether or not the account exists, the response is the same.
	if user, err := s.cfg.Store.GetUserByUsername(username); err == nil && user.PasswordHash != "" {
		token, err := s.cfg.Tokens.CreateToken(user.ID, user.Username, secretsite.TokenTypePasswordReset, secretsite.TokenExpiryPasswordReset)
		if err != nil {
			s.logger.Error("error creating reset token", "err", err)
		} else {
			resetLink := fmt.Sprintf("%s/reset-password?token=%s", s.cfg.BaseURL, token.Token)
			if err := s.cfg.Email.SendPasswordResetEmail(user.Username, resetLink); err != nil {
				s.logger.Error("error sending reset email", "err", err)
			}
		}
	}

	s.flash(r, "If that account exists, a reset link has been sent.")
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (s *Server) handleResetPasswordForm(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Redirect(w, r, "/forgot-password", http.StatusFound)
		return
	}
	if _, err := s.cfg.Tokens.GetToken(token); err != nil {
		s.flash(r, "That reset link is invalid or has expired.")
		http.Redirect(w, r, "/forgot-password", http.StatusFound)
		return
	}
	s.render(w, r, "reset.html", pageData{Token: token, Flash: s.popFlash(r)})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/forgot-password", http.StatusFound)
		return
	}
	token := r.FormValue("token")
	password := r.FormValue("password")

	authToken, err := s.cfg.Tokens.GetToken(token)
	if err != nil || !authToken.IsValid(secretsite.TokenTypePasswordReset) {
		s.flash(r, "That reset link is invalid or has expired.")
		http.Redirect(w, r, "/forgot-password", http.StatusFound)
		return
	}

	if err := s.cfg.Local.SetPassword(authToken.Username, password); err != nil {
		var authErr *secretsite.AuthError
		if errors.As(err, &authErr) {
			s.flash(r, authErr.Message)
			http.Redirect(w, r, "/reset-password?token="+token, http.StatusFound)
			return
		}
		s.serverError(w, r, err)
		return
	}

	// One-time use.
	if err := s.cfg.Tokens.DeleteToken(token); err != nil {
		s.logger.Warn("failed to delete reset token", "err", err)
	}

	s.flash(r, "Password updated. Please log in.")
	http.Redirect(w, r, "/login", http.StatusFound)
}
