package oauth2

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	xoauth2 "golang.org/x/oauth2"

	"github.com/mhalligan/secretsite"
)

// mockProvider is a fake OAuth2 provider serving the token exchange and the
// userinfo endpoint.
type mockProvider struct {
	server *httptest.Server

	// What the userinfo endpoint answers with
	userInfoStatus int
	userInfoBody   string

	// Codes the token endpoint will exchange
	validCode string
}

func newMockProvider(t *testing.T) *mockProvider {
	t.Helper()
	p := &mockProvider{
		userInfoStatus: http.StatusOK,
		userInfoBody:   `{"id": "g-123", "email": "alice@example.com", "name": "Alice", "picture": "https://example.com/alice.png"}`,
		validCode:      "good-code",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		if r.FormValue("code") != p.validCode {
			http.Error(w, `{"error": "invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token": "mock-access-token", "token_type": "Bearer", "expires_in": 3600}`)
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Authorization"), "mock-access-token") {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.WriteHeader(p.userInfoStatus)
		fmt.Fprint(w, p.userInfoBody)
	})

	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

// newTestGoogle builds a GoogleOAuth2 pointed at the mock provider.
func newTestGoogle(p *mockProvider) *GoogleOAuth2 {
	g := NewGoogleOAuth2("test-client-id", "test-client-secret", "http://localhost/auth/google/callback")
	g.Config().Endpoint = xoauth2.Endpoint{
		AuthURL:  p.server.URL + "/auth",
		TokenURL: p.server.URL + "/token",
	}
	g.UserInfoURL = p.server.URL + "/userinfo"
	return g
}

// callbackRequest fakes the provider redirecting back to us: the state cookie
// from BeginAuth plus the given query parameters.
func callbackRequest(state string, params url.Values) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/auth/google/callback?"+params.Encode(), nil)
	if state != "" {
		r.AddCookie(&http.Cookie{Name: StateCookieName, Value: state})
	}
	return r
}

func TestBeginAuth(t *testing.T) {
	p := newMockProvider(t)
	g := newTestGoogle(p)

	r := httptest.NewRequest(http.MethodGet, "/auth/google", nil)
	w := httptest.NewRecorder()
	g.BeginAuth(w, r)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}

	var state string
	for _, c := range w.Result().Cookies() {
		if c.Name == StateCookieName {
			state = c.Value
		}
	}
	if state == "" {
		t.Fatal("no state cookie set")
	}

	location, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(location.String(), p.server.URL+"/auth") {
		t.Errorf("redirected to %q, want the provider's auth URL", location)
	}
	q := location.Query()
	if q.Get("state") != state {
		t.Errorf("state param %q does not match cookie %q", q.Get("state"), state)
	}
	if q.Get("client_id") != "test-client-id" {
		t.Errorf("client_id = %q", q.Get("client_id"))
	}
	if q.Get("redirect_uri") != "http://localhost/auth/google/callback" {
		t.Errorf("redirect_uri = %q", q.Get("redirect_uri"))
	}
}

func TestBeginAuthRemembersCallbackURL(t *testing.T) {
	p := newMockProvider(t)
	g := newTestGoogle(p)

	r := httptest.NewRequest(http.MethodGet, "/auth/google?callbackURL=%2Fsecrets", nil)
	w := httptest.NewRecorder()
	g.BeginAuth(w, r)

	var found bool
	for _, c := range w.Result().Cookies() {
		if c.Name == CallbackURLCookieName && c.Value == "/secrets" {
			found = true
		}
	}
	if !found {
		t.Error("callbackURL cookie not set")
	}
}

func TestCompleteAuth(t *testing.T) {
	p := newMockProvider(t)
	g := newTestGoogle(p)

	r := callbackRequest("state-1", url.Values{"state": {"state-1"}, "code": {"good-code"}})
	w := httptest.NewRecorder()
	profile, token, err := g.CompleteAuth(w, r)
	if err != nil {
		t.Fatalf("CompleteAuth failed: %v", err)
	}
	if token == nil || token.AccessToken != "mock-access-token" {
		t.Errorf("token = %+v", token)
	}
	if profile.Subject != "g-123" {
		t.Errorf("Subject = %q, want g-123", profile.Subject)
	}
	if profile.Email != "alice@example.com" || profile.Name != "Alice" {
		t.Errorf("profile = %+v", profile)
	}

	// The state cookie is single-use.
	var cleared bool
	for _, c := range w.Result().Cookies() {
		if c.Name == StateCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("state cookie not cleared after the callback")
	}
}

func TestCompleteAuthFailures(t *testing.T) {
	cases := []struct {
		name   string
		cookie string
		params url.Values
	}{
		{"missing state cookie", "", url.Values{"state": {"s"}, "code": {"good-code"}}},
		{"state mismatch", "state-a", url.Values{"state": {"state-b"}, "code": {"good-code"}}},
		{"provider error param", "s", url.Values{"state": {"s"}, "error": {"access_denied"}}},
		{"missing code", "s", url.Values{"state": {"s"}}},
		{"bad code", "s", url.Values{"state": {"s"}, "code": {"forged-code"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newMockProvider(t)
			g := newTestGoogle(p)

			r := callbackRequest(tc.cookie, tc.params)
			w := httptest.NewRecorder()
			_, _, err := g.CompleteAuth(w, r)
			if !errors.Is(err, secretsite.ErrAuthFailed) {
				t.Errorf("err = %v, want ErrAuthFailed", err)
			}
		})
	}
}

func TestCompleteAuthUserInfoFailure(t *testing.T) {
	p := newMockProvider(t)
	p.userInfoStatus = http.StatusInternalServerError
	p.userInfoBody = "oops"
	g := newTestGoogle(p)

	r := callbackRequest("s", url.Values{"state": {"s"}, "code": {"good-code"}})
	_, _, err := g.CompleteAuth(httptest.NewRecorder(), r)
	if !errors.Is(err, secretsite.ErrAuthFailed) {
		t.Errorf("err = %v, want ErrAuthFailed", err)
	}
}

func TestCompleteAuthEmptySubject(t *testing.T) {
	p := newMockProvider(t)
	p.userInfoBody = `{"email": "anon@example.com"}`
	g := newTestGoogle(p)

	r := callbackRequest("s", url.Values{"state": {"s"}, "code": {"good-code"}})
	_, _, err := g.CompleteAuth(httptest.NewRecorder(), r)
	if !errors.Is(err, secretsite.ErrAuthFailed) {
		t.Errorf("profile without subject accepted: err = %v", err)
	}
}
