package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"

	oa "github.com/panyam/authcore"
)

// AuthClient talks to one authcore server and keeps its credential cookie.
type AuthClient struct {
	mu            sync.Mutex
	serverURL     string
	store         CredentialStore
	httpClient    *http.Client
	baseTransport http.RoundTripper
	cookieName    string
	clock         clockwork.Clock
}

// APIError is a non-2xx response. Fields is set for 422 responses.
type APIError struct {
	Status  int
	Message string
	Fields  []oa.FieldError
}

func (e *APIError) Error() string {
	if len(e.Fields) > 0 {
		msgs := make([]string, len(e.Fields))
		for i, f := range e.Fields {
			msgs[i] = f.Path + ": " + f.Message
		}
		return fmt.Sprintf("HTTP %d: %s", e.Status, strings.Join(msgs, "; "))
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

// Result is the {success, message, user} envelope of the auth routes.
type Result struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	User    *oa.User `json:"user,omitempty"`
}

// ClientOption configures an AuthClient
type ClientOption func(*AuthClient)

// WithHTTPClient sets a custom base HTTP client (for timeouts, TLS config, etc.)
// The transport from this client will be wrapped with cookie handling.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *AuthClient) {
		if client == nil {
			return
		}
		if client.Transport != nil {
			c.baseTransport = client.Transport
		}
		c.httpClient.Timeout = client.Timeout
	}
}

// WithTransport sets a custom base transport (for connection pooling, proxies, etc.)
func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *AuthClient) {
		c.baseTransport = transport
	}
}

func WithCookieName(name string) ClientOption {
	return func(c *AuthClient) {
		c.cookieName = name
	}
}

func WithClock(clock clockwork.Clock) ClientOption {
	return func(c *AuthClient) {
		c.clock = clock
	}
}

// NewAuthClient creates a client for serverURL. A nil store keeps
// credentials in memory only.
func NewAuthClient(serverURL string, store CredentialStore, opts ...ClientOption) *AuthClient {
	u, err := url.Parse(serverURL)
	if err == nil && u.Scheme != "" && u.Host != "" {
		serverURL = fmt.Sprintf("%s://%s", u.Scheme, u.Host)
	}
	if store == nil {
		store = NewMemoryStore()
	}

	c := &AuthClient{
		serverURL:     serverURL,
		store:         store,
		httpClient:    &http.Client{},
		baseTransport: http.DefaultTransport,
		cookieName:    oa.DefaultCredentialCookie,
		clock:         clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.httpClient.Transport = &credentialTransport{client: c, base: c.baseTransport}
	// OAuth callbacks redirect to the front end; callers see the 302 itself
	c.httpClient.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return c
}

// HTTPClient returns the underlying client. Requests through it carry the
// credential cookie.
func (c *AuthClient) HTTPClient() *http.Client {
	return c.httpClient
}

func (c *AuthClient) ServerURL() string {
	return c.serverURL
}

// Credential returns the stored credential for this server, or nil.
func (c *AuthClient) Credential() (*ServerCredential, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Credential(c.serverURL)
}

// IsLoggedIn reports whether an unexpired credential is held. It does not
// ask the server; use CheckAuth for that.
func (c *AuthClient) IsLoggedIn() bool {
	return c.currentToken() != ""
}

func (c *AuthClient) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	cred, err := c.store.Credential(c.serverURL)
	if err != nil || cred == nil || cred.IsExpiredAt(c.clock.Now()) {
		return ""
	}
	return cred.Token
}

func (c *AuthClient) remember(cookie *http.Cookie) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	cred := &ServerCredential{
		Token:     cookie.Value,
		ExpiresAt: cookieExpiry(cookie, now),
		CreatedAt: now,
	}
	if err := c.store.PutCredential(c.serverURL, cred); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	return nil
}

// annotate copies user details onto the stored credential after a call
// that returned the account.
func (c *AuthClient) annotate(u *oa.User) error {
	if u == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cred, err := c.store.Credential(c.serverURL)
	if err != nil || cred == nil {
		return err
	}
	cred.UserID = u.ID
	cred.UserEmail = u.EmailAddress()
	cred.IsAdmin = u.IsAdmin
	return c.store.PutCredential(c.serverURL, cred)
}

func (c *AuthClient) forget() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.DropCredential(c.serverURL)
}

// do sends a JSON request and decodes a 2xx body into out. Other statuses
// become *APIError.
func (c *AuthClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("invalid response from server: %w", err)
	}
	return nil
}

func decodeError(status int, data []byte) error {
	apiErr := &APIError{Status: status, Message: http.StatusText(status)}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return apiErr
	}
	if trimmed[0] == '[' {
		if json.Unmarshal(trimmed, &apiErr.Fields) == nil && len(apiErr.Fields) > 0 {
			apiErr.Message = apiErr.Fields[0].Message
		}
		return apiErr
	}
	var envelope struct {
		Message string `json:"message"`
		Error   *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(trimmed, &envelope) == nil {
		switch {
		case envelope.Message != "":
			apiErr.Message = envelope.Message
		case envelope.Error != nil:
			apiErr.Message = envelope.Error.Message
		}
	}
	return apiErr
}

func (c *AuthClient) authCall(ctx context.Context, method, path string, body any) (*Result, error) {
	var res Result
	if err := c.do(ctx, method, path, body, &res); err != nil {
		return nil, err
	}
	if err := c.annotate(res.User); err != nil {
		return nil, err
	}
	return &res, nil
}

// Signup registers an account. The server signs the caller in immediately.
func (c *AuthClient) Signup(ctx context.Context, name, email, password string) (*Result, error) {
	return c.authCall(ctx, http.MethodPost, "/auth/signup", map[string]string{
		"name": name, "email": email, "password": password,
	})
}

func (c *AuthClient) Login(ctx context.Context, email, password string) (*Result, error) {
	return c.authCall(ctx, http.MethodPost, "/auth/login", map[string]string{
		"email": email, "password": password,
	})
}

func (c *AuthClient) VerifyEmail(ctx context.Context, code string) (*Result, error) {
	return c.authCall(ctx, http.MethodPost, "/auth/verify-email", map[string]string{"code": code})
}

func (c *AuthClient) ResendVerification(ctx context.Context, email string) (*Result, error) {
	return c.authCall(ctx, http.MethodPost, "/auth/resend-verification", map[string]string{"email": email})
}

// Logout clears the server cookie and the stored credential. The local
// credential is dropped even if the server call fails.
func (c *AuthClient) Logout(ctx context.Context) error {
	_, err := c.authCall(ctx, http.MethodPost, "/auth/logout", nil)
	if ferr := c.forget(); err == nil {
		err = ferr
	}
	return err
}

// CheckAuth asks the server who the held credential belongs to.
func (c *AuthClient) CheckAuth(ctx context.Context) (*oa.User, error) {
	res, err := c.authCall(ctx, http.MethodGet, "/auth/check-auth", nil)
	if err != nil {
		return nil, err
	}
	return res.User, nil
}

func (c *AuthClient) ForgotPassword(ctx context.Context, email string) (*Result, error) {
	return c.authCall(ctx, http.MethodPost, "/auth/forgot-password", map[string]string{"email": email})
}

func (c *AuthClient) ResetPassword(ctx context.Context, token, password string) (*Result, error) {
	return c.authCall(ctx, http.MethodPost, "/auth/reset-password/"+url.PathEscape(token),
		map[string]string{"password": password})
}

// GetUser fetches a sanitized record. Requires a credential.
func (c *AuthClient) GetUser(ctx context.Context, id string) (*oa.User, error) {
	var u oa.User
	if err := c.do(ctx, http.MethodGet, "/user/find/"+url.PathEscape(id), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateUser sends the given subset of name, email, password and avatar.
func (c *AuthClient) UpdateUser(ctx context.Context, id string, fields map[string]string) (*oa.User, error) {
	var u oa.User
	if err := c.do(ctx, http.MethodPut, "/user/update/"+url.PathEscape(id), fields, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *AuthClient) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/user/delete/"+url.PathEscape(id), nil, nil)
}

// ListUsers is admin only. newest limits the result to the five most
// recent accounts.
func (c *AuthClient) ListUsers(ctx context.Context, newest bool) ([]*oa.User, error) {
	path := "/user"
	if newest {
		path += "?new=true"
	}
	var users []*oa.User
	if err := c.do(ctx, http.MethodGet, path, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}
