package authcore

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
)

var (
	ErrUserExists          = NewAuthError(KindConflict, "User already exists")
	ErrInvalidCredentials  = NewAuthError(KindInvalidCredentials, "Invalid credentials")
	ErrInvalidVerification = NewAuthError(KindInvalidOrExpiredToken, "Invalid or expired verification code")
	ErrInvalidResetToken   = NewAuthError(KindInvalidOrExpiredToken, "Invalid or expired reset token")
	ErrNoSuchUser          = NewAuthError(KindNotFound, "User not found")
	ErrCannotResend        = NewAuthError(KindNotFound, "Unable to resend verification code")
)

// LocalAuth is the password based auth controller. It owns the signup,
// verification, login, logout and password reset flows.
type LocalAuth struct {
	Users  UserStore
	Hasher PasswordHasher
	Codec  *TokenCodec
	Binder *SessionBinder
	Mailer Mailer
	Clock  clockwork.Clock

	// Front end origin used to build password reset links
	ClientURL string

	// OnLogout runs after the credential cookie is cleared. The service uses
	// it to drop any half finished OAuth state.
	OnLogout func(w http.ResponseWriter, r *http.Request)
}

func (a *LocalAuth) now() time.Time {
	if a.Clock == nil {
		return time.Now()
	}
	return a.Clock.Now()
}

// bindCredential issues a token for u and sets the cookie. Must run before
// any body is written.
func (a *LocalAuth) bindCredential(w http.ResponseWriter, u *User) error {
	token, err := a.Codec.Issue(u.ID, u.IsAdmin)
	if err != nil {
		return err
	}
	a.Binder.Set(w, token)
	return nil
}

// lookupByEmail maps a store miss to notFound and passes other errors through.
func (a *LocalAuth) lookupByEmail(ctx context.Context, email string, notFound error) (*User, error) {
	user, err := a.Users.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, notFound
	}
	return user, err
}

// HandleLogin checks email and password. Unknown email and wrong password
// produce the same error.
func (a *LocalAuth) HandleLogin(w http.ResponseWriter, r *http.Request) {
	in, verrs := ValidateLogin(r)
	if len(verrs) > 0 {
		writeValidationErrors(w, verrs)
		return
	}
	ctx := r.Context()

	user, err := a.lookupByEmail(ctx, NormalizeEmail(in.Email), ErrInvalidCredentials)
	if errors.Is(err, ErrInvalidCredentials) {
		// same hashing cost as a wrong password
		a.Hasher.CheckPassword(in.Password, "")
	}
	if err != nil {
		writeFailure(w, AsAuthError(err).WithStatus(http.StatusBadRequest))
		return
	}
	if !a.Hasher.CheckPassword(in.Password, user.PasswordHash) {
		writeFailure(w, ErrInvalidCredentials)
		return
	}

	now := a.now()
	user, err = a.Users.UpdateUser(ctx, user.ID, UserPatch{LastLoginAt: &now})
	if err != nil {
		writeFailure(w, AsAuthError(err).WithStatus(http.StatusBadRequest))
		return
	}
	if err := a.bindCredential(w, user); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Logged in successfully",
		"user":    user,
	})
}

// HandleLogout clears the credential cookie. It never touches the store.
func (a *LocalAuth) HandleLogout(w http.ResponseWriter, r *http.Request) {
	a.Binder.Clear(w)
	if a.OnLogout != nil {
		a.OnLogout(w, r)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Logged out successfully",
	})
}

// HandleCheckAuth returns the record behind the identity RequireAuth put on
// the context.
func (a *LocalAuth) HandleCheckAuth(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		writeFailure(w, ErrNoCredential)
		return
	}
	user, err := a.Users.GetUserById(r.Context(), id.UserID)
	if errors.Is(err, ErrUserNotFound) {
		err = ErrNoSuchUser
	}
	if err != nil {
		writeFailure(w, AsAuthError(err).WithStatus(http.StatusBadRequest))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
}

// HandleLoginSuccess reports the current session. Without a valid cookie it
// answers 200 with an empty body.
func (a *LocalAuth) HandleLoginSuccess(w http.ResponseWriter, r *http.Request) {
	token := a.Binder.Token(r)
	if token == "" {
		w.WriteHeader(http.StatusOK)
		return
	}
	id, err := a.Codec.Validate(token)
	if err != nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	user, err := a.Users.GetUserById(r.Context(), id.UserID)
	if err != nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Successful",
		"user":    user,
	})
}

func (a *LocalAuth) HandleLoginFailure(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusUnauthorized, map[string]any{
		"success": false,
		"message": "Failure",
	})
}

func (a *LocalAuth) resetURL(token string) string {
	return strings.TrimSuffix(a.ClientURL, "/") + "/reset-password/" + token
}
