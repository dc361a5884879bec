package authcore_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	oa "github.com/panyam/authcore"
)

func TestSignupVerifyLogin(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "POST", "/auth/signup", "", map[string]string{
		"name": "Ada Lovelace", "email": "ada@example.org", "password": "analytical",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("signup: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	created := decodeEnvelope(t, rr)
	if created.Message != "User created successfully" || created.User == nil || created.User.IsVerified {
		t.Errorf("unexpected signup body %+v", created)
	}
	if strings.Contains(rr.Body.String(), "password") {
		t.Error("signup response leaks password fields")
	}

	code := env.mailer.code("ada@example.org")
	if len(code) != 6 {
		t.Fatalf("expected a 6 digit code, got %q", code)
	}

	rr = env.do(t, "POST", "/auth/verify-email", "", map[string]string{"code": code})
	if rr.Code != http.StatusOK {
		t.Fatalf("verify: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !decodeEnvelope(t, rr).User.IsVerified {
		t.Error("expected user.isVerified after verify-email")
	}
	if stored := env.userByEmail(t, "ada@example.org"); !stored.Verification.IsZero() {
		t.Errorf("verification token should be cleared, got %+v", stored.Verification)
	}
	if len(env.mailer.welcomed) != 1 {
		t.Errorf("expected one welcome mail, got %v", env.mailer.welcomed)
	}

	rr = env.do(t, "POST", "/auth/login", "", map[string]string{"email": "ada@example.org", "password": "analytical"})
	if rr.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	cookie := credentialCookie(t, rr)
	if !cookie.HttpOnly || cookie.SameSite != http.SameSiteStrictMode {
		t.Errorf("cookie should be HttpOnly and SameSite=Strict: %+v", cookie)
	}
	if cookie.MaxAge != int(oa.TokenExpiryCredential/time.Second) {
		t.Errorf("cookie MaxAge = %d", cookie.MaxAge)
	}

	rr = env.do(t, "GET", "/auth/check-auth", cookie.Value, nil)
	if rr.Code != http.StatusOK || decodeEnvelope(t, rr).User.EmailAddress() != "ada@example.org" {
		t.Errorf("check-auth with fresh cookie: %d %s", rr.Code, rr.Body.String())
	}
}

func TestDuplicateSignup(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "Ada Lovelace", "ada@example.org", "analytical")

	rr := env.do(t, "POST", "/auth/signup", "", map[string]string{
		"name": "Ada Lovelace", "email": "ADA@example.org", "password": "analytical",
	})
	expectFailure(t, rr, http.StatusBadRequest, "User already exists")

	all, err := env.users.ListUsers(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("expected exactly one record, got %d", len(all))
	}
}

func TestConcurrentSignupCreatesOneRecord(t *testing.T) {
	env := newTestEnv(t)
	const n = 8
	statuses := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rr := env.do(t, "POST", "/auth/signup", "", map[string]string{
				"name": "Racer", "email": "race@example.org", "password": "password1",
			})
			statuses[i] = rr.Code
		}(i)
	}
	wg.Wait()

	created := 0
	for _, s := range statuses {
		if s == http.StatusCreated {
			created++
		} else if s != http.StatusBadRequest {
			t.Errorf("unexpected status %d", s)
		}
	}
	if created != 1 {
		t.Errorf("expected one successful signup, got %d (%v)", created, statuses)
	}
	all, _ := env.users.ListUsers(context.Background(), 0)
	if len(all) != 1 {
		t.Errorf("expected one record, got %d", len(all))
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "Ada Lovelace", "ada@example.org", "analytical")

	wrong := env.do(t, "POST", "/auth/login", "", map[string]string{"email": "ada@example.org", "password": "babbage1"})
	expectFailure(t, wrong, http.StatusBadRequest, "Invalid credentials")

	unknown := env.do(t, "POST", "/auth/login", "", map[string]string{"email": "nobody@example.org", "password": "whatever1"})
	expectFailure(t, unknown, http.StatusBadRequest, "Invalid credentials")

	if wrong.Body.String() != unknown.Body.String() {
		t.Errorf("bodies differ: %q vs %q", wrong.Body.String(), unknown.Body.String())
	}

	// too short to reach the store at all
	short := env.do(t, "POST", "/auth/login", "", map[string]string{"email": "nobody@example.org", "password": "x"})
	if short.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for short password, got %d", short.Code)
	}
}

// countingHasher records every password comparison.
type countingHasher struct {
	oa.PasswordHasher
	checks []string
}

func (h *countingHasher) CheckPassword(password, hash string) bool {
	h.checks = append(h.checks, hash)
	return h.PasswordHasher.CheckPassword(password, hash)
}

func TestLoginHashesForMissingAccounts(t *testing.T) {
	env := newTestEnv(t)
	email := "octo@example.org"
	if err := env.users.InsertUser(context.Background(), &oa.User{Name: "Octo", Email: &email, IsVerified: true}); err != nil {
		t.Fatalf("insert federated user: %v", err)
	}
	hasher := &countingHasher{PasswordHasher: env.svc.Hasher}
	env.svc.Local.Hasher = hasher

	for _, email := range []string{"nobody@example.org", "octo@example.org"} {
		hasher.checks = nil
		rr := env.do(t, "POST", "/auth/login", "", map[string]string{"email": email, "password": "whatever1"})
		expectFailure(t, rr, http.StatusBadRequest, "Invalid credentials")
		if len(hasher.checks) != 1 || hasher.checks[0] != "" {
			t.Errorf("%s: password checks = %q, want one comparison against the placeholder", email, hasher.checks)
		}
	}
}

func TestExpiredVerificationCode(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "Ada Lovelace", "ada@example.org", "analytical")
	code := env.mailer.code("ada@example.org")

	env.clock.Advance(oa.TokenExpiryEmailVerification + time.Second)
	rr := env.do(t, "POST", "/auth/verify-email", "", map[string]string{"code": code})
	expectFailure(t, rr, http.StatusBadRequest, "Invalid or expired verification code")

	if env.userByEmail(t, "ada@example.org").IsVerified {
		t.Error("account must stay unverified")
	}
}

func TestVerificationCodeValidUntilExpiry(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "Ada Lovelace", "ada@example.org", "analytical")
	env.clock.Advance(oa.TokenExpiryEmailVerification - time.Second)

	rr := env.do(t, "POST", "/auth/verify-email", "", map[string]string{"code": env.mailer.code("ada@example.org")})
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200 one second before expiry, got %d", rr.Code)
	}
}

func TestResendVerification(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "Ada Lovelace", "ada@example.org", "analytical")
	first := env.mailer.code("ada@example.org")

	env.clock.Advance(25 * time.Hour)
	rr := env.do(t, "POST", "/auth/resend-verification", "", map[string]string{"email": "ada@example.org"})
	if rr.Code != http.StatusOK {
		t.Fatalf("resend: %d %s", rr.Code, rr.Body.String())
	}
	second := env.mailer.code("ada@example.org")
	if second == "" {
		t.Fatal("no code mailed")
	}
	rr = env.do(t, "POST", "/auth/verify-email", "", map[string]string{"code": second})
	if rr.Code != http.StatusOK {
		t.Errorf("fresh code rejected (first was %s): %d", first, rr.Code)
	}

	rr = env.do(t, "POST", "/auth/resend-verification", "", map[string]string{"email": "ada@example.org"})
	expectFailure(t, rr, http.StatusBadRequest, "Unable to resend verification code")
}

func TestPasswordResetRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "Ada Lovelace", "ada@example.org", "analytical")

	rr := env.do(t, "POST", "/auth/forgot-password", "", map[string]string{"email": "ada@example.org"})
	if rr.Code != http.StatusOK {
		t.Fatalf("forgot: %d %s", rr.Code, rr.Body.String())
	}
	token := env.mailer.resetToken(t, "ada@example.org")
	if len(token) != 40 {
		t.Errorf("expected 40 hex chars, got %q", token)
	}
	if strings.Contains(rr.Body.String(), token) {
		t.Error("reset token must not be echoed in the response")
	}

	rr = env.do(t, "POST", "/auth/reset-password/"+token, "", map[string]string{"password": "newPass12"})
	if rr.Code != http.StatusOK {
		t.Fatalf("reset: %d %s", rr.Code, rr.Body.String())
	}
	if stored := env.userByEmail(t, "ada@example.org"); !stored.Reset.IsZero() {
		t.Errorf("reset token should be cleared, got %+v", stored.Reset)
	}
	if len(env.mailer.success) != 1 {
		t.Errorf("expected reset success mail")
	}

	if rr := env.do(t, "POST", "/auth/login", "", map[string]string{"email": "ada@example.org", "password": "newPass12"}); rr.Code != http.StatusOK {
		t.Errorf("login with new password: %d", rr.Code)
	}
	if rr := env.do(t, "POST", "/auth/login", "", map[string]string{"email": "ada@example.org", "password": "analytical"}); rr.Code != http.StatusBadRequest {
		t.Errorf("login with old password: %d", rr.Code)
	}

	// single use
	rr = env.do(t, "POST", "/auth/reset-password/"+token, "", map[string]string{"password": "another12"})
	expectFailure(t, rr, http.StatusBadRequest, "Invalid or expired reset token")
}

func TestResetTokenExpires(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "Ada Lovelace", "ada@example.org", "analytical")
	env.do(t, "POST", "/auth/forgot-password", "", map[string]string{"email": "ada@example.org"})
	token := env.mailer.resetToken(t, "ada@example.org")

	env.clock.Advance(oa.TokenExpiryPasswordReset + time.Second)
	rr := env.do(t, "POST", "/auth/reset-password/"+token, "", map[string]string{"password": "newPass12"})
	expectFailure(t, rr, http.StatusBadRequest, "Invalid or expired reset token")
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, "POST", "/auth/forgot-password", "", map[string]string{"email": "ghost@example.org"})
	expectFailure(t, rr, http.StatusBadRequest, "User not found")
}

func TestOwnerOrAdminGate(t *testing.T) {
	env := newTestEnv(t)
	u1Token := env.signup(t, "User One", "one@example.org", "password1")
	env.signup(t, "User Two", "two@example.org", "password2")
	u1 := env.userByEmail(t, "one@example.org")
	u2 := env.userByEmail(t, "two@example.org")

	rr := env.do(t, "PUT", "/user/update/"+u2.ID, u1Token, map[string]string{"name": "Hijacked"})
	expectFailure(t, rr, http.StatusForbidden, "You are not allowed to do that!")

	rr = env.do(t, "PUT", "/user/update/"+u1.ID, u1Token, map[string]string{"name": "Renamed One"})
	if rr.Code != http.StatusOK {
		t.Fatalf("owner update: %d %s", rr.Code, rr.Body.String())
	}
	var updated oa.User
	json.Unmarshal(rr.Body.Bytes(), &updated)
	if updated.Name != "Renamed One" {
		t.Errorf("name = %q", updated.Name)
	}
	if updated.IsVerified {
		t.Error("profile update must not verify the account")
	}

	_, adminToken := env.addAdmin(t, "root@example.org")
	rr = env.do(t, "PUT", "/user/update/"+u2.ID, adminToken, map[string]string{"name": "Renamed Two"})
	if rr.Code != http.StatusOK {
		t.Errorf("admin update: %d %s", rr.Code, rr.Body.String())
	}
}

func TestUpdateRejectsTakenEmail(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "User One", "one@example.org", "password1")
	env.signup(t, "User Two", "two@example.org", "password2")
	u1 := env.userByEmail(t, "one@example.org")

	rr := env.do(t, "PUT", "/user/update/"+u1.ID, token, map[string]string{"email": "TWO@example.org"})
	expectFailure(t, rr, http.StatusBadRequest, "User already exists")

	rr = env.do(t, "PUT", "/user/update/"+u1.ID, token, map[string]string{"password": "short"})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("short password: %d", rr.Code)
	}
}

func TestRequestWithoutCookie(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, "GET", "/auth/check-auth", "", nil)
	expectFailure(t, rr, http.StatusUnauthorized, "Unauthorized - no token provided")

	rr = env.do(t, "GET", "/auth/check-auth", "not-a-jwt", nil)
	expectFailure(t, rr, http.StatusUnauthorized, "Unauthorized - invalid token")
}

func TestCredentialExpiresAfterSevenDays(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "Ada Lovelace", "ada@example.org", "analytical")

	env.clock.Advance(oa.TokenExpiryCredential - time.Second)
	if rr := env.do(t, "GET", "/auth/check-auth", token, nil); rr.Code != http.StatusOK {
		t.Errorf("just before expiry: %d", rr.Code)
	}
	env.clock.Advance(2 * time.Second)
	rr := env.do(t, "GET", "/auth/check-auth", token, nil)
	expectFailure(t, rr, http.StatusUnauthorized, "Unauthorized - invalid token")
}

func TestCheckAuthDeletedUser(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "Ada Lovelace", "ada@example.org", "analytical")
	u := env.userByEmail(t, "ada@example.org")
	env.users.DeleteUser(context.Background(), u.ID)

	rr := env.do(t, "GET", "/auth/check-auth", token, nil)
	expectFailure(t, rr, http.StatusBadRequest, "User not found")
}

func TestLogoutClearsCookie(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "Ada Lovelace", "ada@example.org", "analytical")

	rr := env.do(t, "POST", "/auth/logout", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("logout: %d", rr.Code)
	}
	cookie := credentialCookie(t, rr)
	if cookie.Value != "" || cookie.MaxAge >= 0 {
		t.Errorf("expected cleared cookie, got %+v", cookie)
	}
	if decodeEnvelope(t, rr).Message != "Logged out successfully" {
		t.Errorf("unexpected body %s", rr.Body.String())
	}
}

func TestLoginSuccessAndFailure(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "Ada Lovelace", "ada@example.org", "analytical")

	rr := env.do(t, "GET", "/auth/login/success", token, nil)
	if rr.Code != http.StatusOK || decodeEnvelope(t, rr).Message != "Successful" {
		t.Errorf("login/success with cookie: %d %s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, "GET", "/auth/login/success", "", nil)
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != "" {
		t.Errorf("login/success without cookie should be an empty 200, got %d %q", rr.Code, rr.Body.String())
	}

	rr = env.do(t, "GET", "/auth/login/failure", "", nil)
	expectFailure(t, rr, http.StatusUnauthorized, "Failure")
}

func TestSignupMailFailure(t *testing.T) {
	env := newTestEnv(t)
	env.mailer.fail = errMailDown

	rr := env.do(t, "POST", "/auth/signup", "", map[string]string{
		"name": "Ada Lovelace", "email": "ada@example.org", "password": "analytical",
	})
	expectFailure(t, rr, http.StatusBadRequest, "Error sending email")

	// the record stays and can recover through resend-verification
	if env.userByEmail(t, "ada@example.org").IsVerified {
		t.Error("account should be unverified")
	}
	env.mailer.fail = nil
	rr = env.do(t, "POST", "/auth/resend-verification", "", map[string]string{"email": "ada@example.org"})
	if rr.Code != http.StatusOK {
		t.Errorf("resend after mail failure: %d %s", rr.Code, rr.Body.String())
	}
}

func TestSignupValidation(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, "POST", "/auth/signup", "", map[string]string{"name": "Al", "email": "nope", "password": "short"})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
	var errs []oa.FieldError
	if err := json.Unmarshal(rr.Body.Bytes(), &errs); err != nil {
		t.Fatal(err)
	}
	paths := map[string]bool{}
	for _, e := range errs {
		paths[e.Path] = true
	}
	for _, p := range []string{"name", "email", "password"} {
		if !paths[p] {
			t.Errorf("missing field error for %s in %+v", p, errs)
		}
	}
}

func TestUserAdminRoutes(t *testing.T) {
	env := newTestEnv(t)
	userToken := env.signup(t, "User One", "one@example.org", "password1")
	for i, email := range []string{"b@example.org", "c@example.org", "d@example.org", "e@example.org", "f@example.org"} {
		env.clock.Advance(time.Minute)
		env.signup(t, "Member "+string(rune('A'+i)), email, "password1")
	}
	_, adminToken := env.addAdmin(t, "root@example.org")

	if rr := env.do(t, "GET", "/user", userToken, nil); rr.Code != http.StatusForbidden {
		t.Errorf("non-admin list: %d", rr.Code)
	}

	rr := env.do(t, "GET", "/user", adminToken, nil)
	var all []oa.User
	json.Unmarshal(rr.Body.Bytes(), &all)
	if rr.Code != http.StatusOK || len(all) != 7 {
		t.Fatalf("admin list: %d, %d users", rr.Code, len(all))
	}

	rr = env.do(t, "GET", "/user/?new=true", adminToken, nil)
	var newest []oa.User
	json.Unmarshal(rr.Body.Bytes(), &newest)
	if len(newest) != 5 {
		t.Errorf("?new=true returned %d users", len(newest))
	}

	rr = env.do(t, "GET", "/user/stats", adminToken, nil)
	var stats []oa.MonthlySignups
	json.Unmarshal(rr.Body.Bytes(), &stats)
	if rr.Code != http.StatusOK || len(stats) != 1 || stats[0].Month != 6 || stats[0].Total != 7 {
		t.Errorf("stats: %d %+v", rr.Code, stats)
	}
}

func TestFindAndDeleteUser(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "User One", "one@example.org", "password1")
	u := env.userByEmail(t, "one@example.org")

	rr := env.do(t, "GET", "/user/find/"+u.ID, token, nil)
	if rr.Code != http.StatusOK || strings.Contains(rr.Body.String(), "passwordHash") {
		t.Errorf("find: %d %s", rr.Code, rr.Body.String())
	}
	rr = env.do(t, "GET", "/user/find/nope", token, nil)
	expectFailure(t, rr, http.StatusNotFound, "User not found")

	if rr := env.do(t, "DELETE", "/user/delete/"+u.ID, token, nil); rr.Code != http.StatusOK {
		t.Fatalf("delete: %d", rr.Code)
	}
	if _, err := env.users.GetUserById(context.Background(), u.ID); err == nil {
		t.Error("record still present after delete")
	}
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, "GET", "/nope", "", nil)
	if rr.Code != http.StatusNotFound || !strings.Contains(rr.Body.String(), `"Not Found"`) {
		t.Errorf("404: %d %s", rr.Code, rr.Body.String())
	}
}
