// Package secretsite implements the authentication core of a small web
// application: local username/password accounts, Google OAuth2 login, and
// cookie-backed sessions gating a protected page.
//
// The package separates the concerns into a handful of pieces:
//
// User: an identity record. Local accounts carry a username and a bcrypt
// password hash; accounts created through Google carry the provider's stable
// subject identifier instead. A user is resolvable by exactly one of the two.
//
// Identity: the minimal projection of a User that is serialized into the
// session. NewIdentity is the only place fields cross that boundary, and it
// carries an explicit allow-list - the password hash never leaves the store.
//
// LocalAuth: the username/password strategy. Registration hashes with a
// per-user random salt (bcrypt); login compares in constant time and reports
// unknown usernames and wrong passwords identically.
//
// SessionAuth: issues an opaque session token as a cookie (alexedwards/scs),
// maps it server-side to the serialized Identity, and restores the identity on
// every request. A signed JWT auth-token cookie mirrors the login state for
// consumers that only see headers.
//
// Middleware: loads the logged-in user into the request context and, for
// protected routes, redirects anonymous requests to the login page.
//
// # Basic Usage
//
//	store := gorm.NewUserStore(db)
//	local := &secretsite.LocalAuth{Store: store}
//	sessions := secretsite.NewSessionAuth(jwtSecret)
//	google := oauth2.NewGoogleOAuth2(clientId, clientSecret, callbackUrl)
//
//	srv, err := web.NewServer(web.Config{
//	    Local:    local,
//	    Google:   google,
//	    Sessions: sessions,
//	    Store:    store,
//	})
//	http.ListenAndServe(":3000", srv.Handler())
//
// # Security
//
// Passwords are hashed using bcrypt with default cost; the salt is embedded in
// the hash, so identical plaintexts never share a stored hash. Password reset
// tokens are cryptographically secure 32-byte values, hex-encoded, expire after
// an hour and are deleted after single use. Session tokens are renewed on every
// privilege change.
package secretsite
