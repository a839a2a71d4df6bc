// Package oauth2 implements the external login strategy: redirect to a
// provider's consent page, verify the callback, and hand back a typed profile
// carrying the provider's stable subject identifier.
package oauth2

import (
	"os"

	"golang.org/x/oauth2"
)

// Profile is the verified result of a completed OAuth flow: the provider's
// stable subject identifier plus the display fields this application keeps.
type Profile struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

// BaseOAuth2 holds the provider-agnostic pieces of an OAuth2 login flow.
type BaseOAuth2 struct {
	ClientId     string
	ClientSecret string
	CallbackURL  string
	oauthConfig  oauth2.Config
}

func NewBaseOAuth2(clientId string, clientSecret string, callbackUrl string) *BaseOAuth2 {
	if clientId == "" {
		clientId = os.Getenv("OAUTH2_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("OAUTH2_CLIENT_SECRET")
	}
	if callbackUrl == "" {
		callbackUrl = os.Getenv("OAUTH2_CALLBACK_URL")
	}
	return &BaseOAuth2{
		ClientId:     clientId,
		ClientSecret: clientSecret,
		CallbackURL:  callbackUrl,
		oauthConfig: oauth2.Config{
			ClientID:     clientId,
			ClientSecret: clientSecret,
			RedirectURL:  callbackUrl,
		},
	}
}

// Config exposes the underlying oauth2 config, mainly so tests can point the
// endpoints at a fake provider.
func (b *BaseOAuth2) Config() *oauth2.Config {
	return &b.oauthConfig
}
