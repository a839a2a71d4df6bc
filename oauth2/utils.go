package oauth2

import (
	"crypto/rand"
	"encoding/base64"
	"log"
	"net/http"
	"time"
)

// Cookie names used by the auth handshake
const (
	StateCookieName       = "oauthstate"
	CallbackURLCookieName = "oauthCallbackURL"
)

// generateStateOauthCookie creates the random state nonce the callback must
// echo back, and sets it as a short-lived cookie.
func generateStateOauthCookie(w http.ResponseWriter) string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		log.Println("Error generating rand: ", err)
	}
	state := base64.URLEncoding.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		MaxAge:   600,
		Expires:  time.Now().Add(10 * time.Minute),
	})
	return state
}

func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:    name,
		Value:   "",
		Path:    "/",
		MaxAge:  -1,
		Expires: time.Now(),
	})
}
