package oauth2

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"
	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
)

const (
	// StateLifetime bounds the window between redirect and callback
	StateLifetime = 10 * time.Minute

	StateCookieName = "authcore_oauth"

	DefaultFailureURL = "/login/failed"
)

var (
	ErrStateMismatch = errors.New("oauth state missing or mismatched")
	ErrStateExpired  = errors.New("oauth state expired")
)

// ProfileHandler completes a successful callback. It must write the
// response; a returned error sends the user agent to the failure URL instead.
type ProfileHandler func(w http.ResponseWriter, r *http.Request, profile *Profile) error

// NewStateSession returns the session manager that carries state values
// between redirect and callback. Only the state lives in it.
func NewStateSession(secure bool) *scs.SessionManager {
	session := scs.New()
	session.Store = memstore.New()
	session.Lifetime = StateLifetime
	session.IdleTimeout = 0
	session.Cookie.Name = StateCookieName
	session.Cookie.HttpOnly = true
	session.Cookie.Path = "/"
	session.Cookie.Persist = false
	// Lax so the cookie survives the top level redirect back from the provider
	session.Cookie.SameSite = http.SameSiteLaxMode
	session.Cookie.Secure = secure
	return session
}

// Coordinator runs the authorization code flow for a fixed set of
// providers.
type Coordinator struct {
	Session       *scs.SessionManager
	HandleProfile ProfileHandler
	FailureURL    string

	// StateTTL bounds redirect to callback; zero means StateLifetime
	StateTTL time.Duration
	Clock    clockwork.Clock

	providers map[string]Provider
	order     []string
}

func NewCoordinator(session *scs.SessionManager, handle ProfileHandler, providers ...Provider) *Coordinator {
	c := &Coordinator{
		Session:       session,
		HandleProfile: handle,
		FailureURL:    DefaultFailureURL,
		Clock:         clockwork.NewRealClock(),
		providers:     map[string]Provider{},
	}
	for _, p := range providers {
		c.providers[p.Name()] = p
		c.order = append(c.order, p.Name())
	}
	return c
}

// Providers lists the mounted provider names in registration order.
func (c *Coordinator) Providers() []string { return c.order }

func (c *Coordinator) Provider(name string) (Provider, bool) {
	p, ok := c.providers[name]
	return p, ok
}

// Mount registers /{name} and /{name}/callback for every provider on r.
func (c *Coordinator) Mount(r *mux.Router) {
	for _, name := range c.order {
		r.Handle("/"+name, c.Session.LoadAndSave(c.StartHandler(name))).Methods(http.MethodGet)
		r.Handle("/"+name+"/callback", c.Session.LoadAndSave(c.CallbackHandler(name))).Methods(http.MethodGet)
	}
}

func stateKey(provider string) string { return "state:" + provider }

func (c *Coordinator) now() time.Time {
	if c.Clock == nil {
		return time.Now()
	}
	return c.Clock.Now()
}

func (c *Coordinator) stateTTL() time.Duration {
	if c.StateTTL <= 0 {
		return StateLifetime
	}
	return c.StateTTL
}

// sessionState is what the session holds for one pending login: the state
// and its deadline in unix nanoseconds.
func sessionState(state string, deadline time.Time) string {
	return strconv.FormatInt(deadline.UnixNano(), 10) + "|" + state
}

func parseSessionState(v string) (state string, deadline time.Time, ok bool) {
	ns, state, found := strings.Cut(v, "|")
	if !found {
		return "", time.Time{}, false
	}
	n, err := strconv.ParseInt(ns, 10, 64)
	if err != nil {
		return "", time.Time{}, false
	}
	return state, time.Unix(0, n), true
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// StartHandler redirects to the provider's authorize URL with a fresh state
// bound to the user agent through the session cookie.
func (c *Coordinator) StartHandler(name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := c.providers[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		state, err := generateState()
		if err != nil {
			slog.Error("error generating oauth state", "provider", name, "err", err)
			c.fail(w, r, name, err)
			return
		}
		if err := c.Session.RenewToken(r.Context()); err != nil {
			c.fail(w, r, name, err)
			return
		}
		c.Session.Put(r.Context(), stateKey(name), sessionState(state, c.now().Add(c.stateTTL())))
		http.Redirect(w, r, p.Config().AuthCodeURL(state), http.StatusFound)
	})
}

// CallbackHandler verifies state, exchanges the code and hands the profile
// to HandleProfile. Every failure redirects to FailureURL.
func (c *Coordinator) CallbackHandler(name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := c.providers[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		ctx := r.Context()
		query := r.URL.Query()

		// the state is single use whatever happens next
		expected, deadline, pending := parseSessionState(c.Session.PopString(ctx, stateKey(name)))

		if e := query.Get("error"); e != "" {
			c.fail(w, r, name, fmt.Errorf("provider returned error: %s", e))
			return
		}
		got := query.Get("state")
		if !pending || expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(got)) != 1 {
			c.fail(w, r, name, ErrStateMismatch)
			return
		}
		if c.now().After(deadline) {
			c.fail(w, r, name, ErrStateExpired)
			return
		}
		code := query.Get("code")
		if code == "" {
			c.fail(w, r, name, errors.New("missing code"))
			return
		}

		exchangeCtx := ctx
		if b, ok := p.(interface {
			ExchangeContext(context.Context) context.Context
		}); ok {
			exchangeCtx = b.ExchangeContext(ctx)
		}
		token, err := p.Config().Exchange(exchangeCtx, code)
		if err != nil {
			c.fail(w, r, name, fmt.Errorf("code exchange: %w", err))
			return
		}
		profile, err := p.FetchProfile(ctx, token)
		if err != nil {
			c.fail(w, r, name, err)
			return
		}
		if err := c.HandleProfile(w, r, profile); err != nil {
			c.fail(w, r, name, err)
		}
	})
}

// Forget drops any outstanding state for the current user agent. The
// request must have passed through Session.LoadAndSave.
func (c *Coordinator) Forget(w http.ResponseWriter, r *http.Request) {
	if err := c.Session.Destroy(r.Context()); err != nil {
		slog.Warn("error clearing oauth session", "err", err)
	}
}

func (c *Coordinator) fail(w http.ResponseWriter, r *http.Request, provider string, err error) {
	slog.Info("oauth login failed, redirecting", "provider", provider, "err", err)
	target := c.FailureURL
	if target == "" {
		target = DefaultFailureURL
	}
	http.Redirect(w, r, target, http.StatusFound)
}
