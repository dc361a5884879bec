package authcore_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	oa "github.com/panyam/authcore"
	"github.com/panyam/authcore/stores"
)

const (
	testSecret    = "test-jwt-secret"
	testClientURL = "http://app.test"
)

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// recordingMailer captures what would have been sent.
type recordingMailer struct {
	mu       sync.Mutex
	codes    map[string]string
	resets   map[string]string
	welcomed []string
	success  []string
	fail     error
}

func newRecordingMailer() *recordingMailer {
	return &recordingMailer{codes: map[string]string{}, resets: map[string]string{}}
}

func (m *recordingMailer) SendVerification(_ context.Context, email, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.codes[email] = code
	return nil
}

func (m *recordingMailer) SendWelcome(_ context.Context, email, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.welcomed = append(m.welcomed, email)
	return nil
}

func (m *recordingMailer) SendPasswordReset(_ context.Context, email, resetURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.resets[email] = resetURL
	return nil
}

func (m *recordingMailer) SendResetSuccess(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.success = append(m.success, email)
	return nil
}

func (m *recordingMailer) code(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[email]
}

// resetToken extracts the token from the mailed link.
func (m *recordingMailer) resetToken(t *testing.T, email string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	link := m.resets[email]
	token, ok := strings.CutPrefix(link, testClientURL+"/reset-password/")
	if !ok || token == "" {
		t.Fatalf("no reset link mailed to %s (got %q)", email, link)
	}
	return token
}

type testEnv struct {
	svc     *oa.Service
	handler http.Handler
	users   *stores.FSUserStore
	mailer  *recordingMailer
	clock   *clockwork.FakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := clockwork.NewFakeClockAt(t0)
	users := stores.NewFSUserStore(t.TempDir())
	users.Now = clock.Now
	mailer := newRecordingMailer()
	svc := (&oa.Service{
		Users:     users,
		Mailer:    mailer,
		Hasher:    &oa.BcryptHasher{Cost: 4},
		Clock:     clock,
		JWTSecret: testSecret,
		ClientURL: testClientURL,
	}).EnsureDefaults()
	return &testEnv{svc: svc, handler: svc.Handler(), users: users, mailer: mailer, clock: clock}
}

// do sends a JSON request, optionally with a credential cookie.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: oa.DefaultCredentialCookie, Value: token})
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

// signup registers a user and returns the credential cookie value.
func (e *testEnv) signup(t *testing.T, name, email, password string) string {
	t.Helper()
	rr := e.do(t, "POST", "/auth/signup", "", map[string]string{"name": name, "email": email, "password": password})
	if rr.Code != http.StatusCreated {
		t.Fatalf("signup %s: status %d body %s", email, rr.Code, rr.Body.String())
	}
	return credentialCookie(t, rr).Value
}

func (e *testEnv) userByEmail(t *testing.T, email string) *oa.User {
	t.Helper()
	u, err := e.users.GetUserByEmail(context.Background(), email)
	if err != nil {
		t.Fatalf("lookup %s: %v", email, err)
	}
	return u
}

// addAdmin inserts an admin account directly and returns its token.
func (e *testEnv) addAdmin(t *testing.T, email string) (*oa.User, string) {
	t.Helper()
	addr := email
	admin := &oa.User{Name: "Admin", Email: &addr, IsAdmin: true, IsVerified: true}
	if err := e.users.InsertUser(context.Background(), admin); err != nil {
		t.Fatalf("insert admin: %v", err)
	}
	token, err := e.svc.Gate.Codec.Issue(admin.ID, true)
	if err != nil {
		t.Fatalf("issue admin token: %v", err)
	}
	return admin, token
}

func credentialCookie(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == oa.DefaultCredentialCookie {
			return c
		}
	}
	t.Fatalf("no %s cookie in response (headers %v)", oa.DefaultCredentialCookie, rr.Header())
	return nil
}

type envelope struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	User    *oa.User `json:"user"`
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return env
}

func expectFailure(t *testing.T, rr *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, rr.Code, rr.Body.String())
	}
	env := decodeEnvelope(t, rr)
	if env.Success || env.Message != message {
		t.Errorf("expected {success:false, message:%q}, got %+v", message, env)
	}
}

var errMailDown = errors.New("smtp: connection refused")
