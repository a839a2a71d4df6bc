package oauth2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/mhalligan/secretsite"
)

const defaultUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

type GoogleOAuth2 struct {
	*BaseOAuth2

	// UserInfoURL is the endpoint queried for the authenticated user's
	// profile. Defaults to the Google v2 userinfo endpoint.
	UserInfoURL string
}

func NewGoogleOAuth2(clientId string, clientSecret string, callbackUrl string) *GoogleOAuth2 {
	if clientId == "" {
		clientId = os.Getenv("OAUTH2_GOOGLE_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("OAUTH2_GOOGLE_CLIENT_SECRET")
	}
	if callbackUrl == "" {
		callbackUrl = os.Getenv("OAUTH2_GOOGLE_CALLBACK_URL")
	}

	out := &GoogleOAuth2{
		BaseOAuth2: NewBaseOAuth2(clientId, clientSecret, callbackUrl),
	}
	out.oauthConfig.Endpoint = google.Endpoint
	out.oauthConfig.Scopes = []string{
		"https://www.googleapis.com/auth/userinfo.email",
		"https://www.googleapis.com/auth/userinfo.profile",
	}
	return out
}

// BeginAuth sets the state nonce cookie and redirects to the provider's
// consent page. A callbackURL query parameter, if present, is remembered in a
// short-lived cookie so the login can return the user where they started.
func (g *GoogleOAuth2) BeginAuth(w http.ResponseWriter, r *http.Request) {
	callbackURL := r.URL.Query().Get("callbackURL")
	if callbackURL != "" {
		http.SetCookie(w, &http.Cookie{
			Name:    CallbackURLCookieName,
			Value:   callbackURL,
			Path:    "/",
			Expires: time.Now().Add(24 * time.Hour),
			MaxAge:  120, // keep this short
		})
	}
	oauthState := generateStateOauthCookie(w)
	http.Redirect(w, r, g.oauthConfig.AuthCodeURL(oauthState), http.StatusFound)
}

// CompleteAuth verifies the state handshake, exchanges the authorization code
// and fetches the user's profile. Every verification failure is reported as
// ErrAuthFailed - an unverifiable callback is never treated as a login, and
// never as a new-user signal.
func (g *GoogleOAuth2) CompleteAuth(w http.ResponseWriter, r *http.Request) (*Profile, *oauth2.Token, error) {
	oauthState, _ := r.Cookie(StateCookieName)
	if oauthState == nil {
		return nil, nil, fmt.Errorf("%w: missing state cookie", secretsite.ErrAuthFailed)
	}
	clearCookie(w, StateCookieName)

	if r.FormValue("state") != oauthState.Value {
		return nil, nil, fmt.Errorf("%w: state mismatch", secretsite.ErrAuthFailed)
	}
	if errParam := r.FormValue("error"); errParam != "" {
		// The user denied consent or the provider errored out.
		return nil, nil, fmt.Errorf("%w: provider returned %q", secretsite.ErrAuthFailed, errParam)
	}

	code := r.FormValue("code")
	if code == "" {
		return nil, nil, fmt.Errorf("%w: missing authorization code", secretsite.ErrAuthFailed)
	}

	token, err := g.oauthConfig.Exchange(r.Context(), code)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: code exchange: %v", secretsite.ErrAuthFailed, err)
	}

	profile, err := g.fetchUserInfo(r.Context(), token)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", secretsite.ErrAuthFailed, err)
	}
	if profile.Subject == "" {
		return nil, nil, fmt.Errorf("%w: provider profile has no subject id", secretsite.ErrAuthFailed)
	}
	return profile, token, nil
}

func (g *GoogleOAuth2) userInfoURL() string {
	if g.UserInfoURL != "" {
		return g.UserInfoURL
	}
	return defaultUserInfoURL
}

func (g *GoogleOAuth2) fetchUserInfo(ctx context.Context, token *oauth2.Token) (*Profile, error) {
	client := g.oauthConfig.Client(ctx, token)
	response, err := client.Get(g.userInfoURL())
	if err != nil {
		return nil, fmt.Errorf("failed getting user info: %v", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info request returned %d", response.StatusCode)
	}

	contents, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed reading user info response: %v", err)
	}

	var info struct {
		Id      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.Unmarshal(contents, &info); err != nil {
		return nil, fmt.Errorf("failed decoding user info: %v", err)
	}

	return &Profile{
		Subject: info.Id,
		Email:   info.Email,
		Name:    info.Name,
		Picture: info.Picture,
	}, nil
}
