package secretsite_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mhalligan/secretsite"
)

func stubSessionGetter(values map[string]any) func(r *http.Request, param string) any {
	return func(r *http.Request, param string) any {
		return values[param]
	}
}

func TestEnsureUserRedirectsAnonymous(t *testing.T) {
	m := &secretsite.Middleware{
		SessionGetter: stubSessionGetter(nil),
		GetRedirURL: func(r *http.Request) string {
			return "/login"
		},
	}
	handler := m.EnsureUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("protected handler reached by anonymous request")
	}))

	r := httptest.NewRequest(http.MethodGet, "/secrets", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	if got := w.Header().Get("Location"); got != "/login?callbackURL=%2Fsecrets" {
		t.Errorf("Location = %q, want /login?callbackURL=%%2Fsecrets", got)
	}
}

func TestEnsureUserWithoutRedirURL(t *testing.T) {
	m := &secretsite.Middleware{SessionGetter: stubSessionGetter(nil)}
	handler := m.EnsureUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("protected handler reached by anonymous request")
	}))

	r := httptest.NewRequest(http.MethodGet, "/secrets", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestEnsureUserPassesThroughAuthenticated(t *testing.T) {
	m := &secretsite.Middleware{
		SessionGetter: stubSessionGetter(map[string]any{
			secretsite.SessionKeyUserId: "u7",
		}),
		GetRedirURL: func(r *http.Request) string { return "/login" },
	}

	var seenUserId string
	handler := m.EnsureUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUserId = m.GetLoggedInUserId(r)
	}))

	r := httptest.NewRequest(http.MethodGet, "/secrets", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if seenUserId != "u7" {
		t.Errorf("downstream user id = %q, want u7", seenUserId)
	}
}

func TestGetLoggedInUserIdTokenFallback(t *testing.T) {
	sessions := secretsite.NewSessionAuth("fallback-secret")
	m := &secretsite.Middleware{
		AuthTokenCookieName: sessions.AuthTokenCookieName,
		SessionGetter:       stubSessionGetter(nil),
		VerifyToken:         sessions.VerifyAuthToken,
	}
	m.EnsureReasonableDefaults()

	// Establish against a recorder just to get a signed token cookie.
	user := &secretsite.User{ID: "u9", Username: "frank"}
	rec := httptest.NewRecorder()
	establishReq := httptest.NewRequest(http.MethodGet, "/login", nil)
	var tokenValue string
	sessions.Session.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := sessions.Establish(w, r, user); err != nil {
			t.Fatalf("Establish failed: %v", err)
		}
	})).ServeHTTP(rec, establishReq)
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessions.AuthTokenCookieName {
			tokenValue = c.Value
		}
	}
	if tokenValue == "" {
		t.Fatal("no auth token cookie issued")
	}

	// A request carrying only the token cookie, no session.
	r := httptest.NewRequest(http.MethodGet, "/secrets", nil)
	r.AddCookie(&http.Cookie{Name: sessions.AuthTokenCookieName, Value: tokenValue})
	if got := m.GetLoggedInUserId(r); got != "u9" {
		t.Errorf("GetLoggedInUserId = %q, want u9", got)
	}

	// A tampered token is ignored.
	r2 := httptest.NewRequest(http.MethodGet, "/secrets", nil)
	r2.AddCookie(&http.Cookie{Name: sessions.AuthTokenCookieName, Value: tokenValue + "x"})
	if got := m.GetLoggedInUserId(r2); got != "" {
		t.Errorf("tampered token yielded user id %q", got)
	}
}
