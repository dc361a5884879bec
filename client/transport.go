package client

import (
	"net/http"
	"time"

	oa "github.com/panyam/authcore"
)

// CookieTransport attaches a fixed credential cookie to every request.
// Useful for scripts that already hold a token.
type CookieTransport struct {
	Base       http.RoundTripper
	Token      string
	CookieName string
}

func (t *CookieTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Token != "" {
		req = withCookie(req, t.CookieName, t.Token)
	}
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// NewCookieTransport creates a CookieTransport over http.DefaultTransport
func NewCookieTransport(token string) *CookieTransport {
	return &CookieTransport{
		Base:       http.DefaultTransport,
		Token:      token,
		CookieName: oa.DefaultCredentialCookie,
	}
}

// withCookie clones req so the caller's request is left untouched.
func withCookie(req *http.Request, name, value string) *http.Request {
	if name == "" {
		name = oa.DefaultCredentialCookie
	}
	req = req.Clone(req.Context())
	req.AddCookie(&http.Cookie{Name: name, Value: value})
	return req
}

// credentialTransport reads the stored cookie before each request and
// records any credential cookie the server sets or clears.
type credentialTransport struct {
	client *AuthClient
	base   http.RoundTripper
}

func (t *credentialTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c := t.client
	if token := c.currentToken(); token != "" {
		req = withCookie(req, c.cookieName, token)
	}
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	for _, cookie := range resp.Cookies() {
		if cookie.Name != c.cookieName {
			continue
		}
		if cookie.Value == "" || cookie.MaxAge < 0 {
			err = c.forget()
		} else {
			err = c.remember(cookie)
		}
		if err != nil {
			resp.Body.Close()
			return nil, err
		}
	}
	if resp.StatusCode == http.StatusUnauthorized {
		// the server no longer accepts what we hold
		if err := c.forget(); err != nil {
			resp.Body.Close()
			return nil, err
		}
	}
	return resp, nil
}

func cookieExpiry(cookie *http.Cookie, now time.Time) time.Time {
	if cookie.MaxAge > 0 {
		return now.Add(time.Duration(cookie.MaxAge) * time.Second)
	}
	return cookie.Expires
}
