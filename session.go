package authcore

import (
	"net/http"
	"time"
)

// DefaultCredentialCookie is the only cookie the auth core reads or writes.
const DefaultCredentialCookie = "token"

// SessionBinder attaches the credential token to responses and reads it
// back from requests.
type SessionBinder struct {
	CookieName string

	// Secure is on in production deployments only
	Secure bool

	// Defaults to TokenExpiryCredential
	MaxAge time.Duration

	// Optional cookie domain. Empty means host-only.
	Domain string
}

func NewSessionBinder(secure bool) *SessionBinder {
	return &SessionBinder{
		CookieName: DefaultCredentialCookie,
		Secure:     secure,
		MaxAge:     TokenExpiryCredential,
	}
}

func (b *SessionBinder) cookieName() string {
	if b.CookieName == "" {
		return DefaultCredentialCookie
	}
	return b.CookieName
}

// Set must be called before the response body is written.
func (b *SessionBinder) Set(w http.ResponseWriter, token string) {
	maxAge := b.MaxAge
	if maxAge <= 0 {
		maxAge = TokenExpiryCredential
	}
	http.SetCookie(w, &http.Cookie{
		Name:     b.cookieName(),
		Value:    token,
		Path:     "/",
		Domain:   b.Domain,
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
		Secure:   b.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Clear expires the cookie on the client. Safe to call when no cookie is set.
func (b *SessionBinder) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     b.cookieName(),
		Value:    "",
		Path:     "/",
		Domain:   b.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   b.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Token returns the credential cookie value, or "" when absent.
func (b *SessionBinder) Token(r *http.Request) string {
	cookie, err := r.Cookie(b.cookieName())
	if err != nil {
		return ""
	}
	return cookie.Value
}
