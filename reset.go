package authcore

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
)

// HandleForgotPassword stores a reset token on the account and mails the
// reset link. The token itself never appears in the response.
func (a *LocalAuth) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	fail := func(err error) {
		writeFailure(w, AsAuthError(err).WithStatus(http.StatusBadRequest))
	}
	body, err := readBody(r)
	if err != nil {
		fail(ErrNoSuchUser)
		return
	}
	ctx := r.Context()

	user, err := a.lookupByEmail(ctx, NormalizeEmail(body["email"]), ErrNoSuchUser)
	if err != nil {
		fail(err)
		return
	}

	token, err := GenerateResetToken()
	if err != nil {
		fail(err)
		return
	}
	reset := &FlowToken{Token: token, ExpiresAt: a.now().Add(TokenExpiryPasswordReset)}
	if _, err := a.Users.UpdateUser(ctx, user.ID, UserPatch{Reset: reset}); err != nil {
		fail(err)
		return
	}
	if err := a.Mailer.SendPasswordReset(ctx, user.EmailAddress(), a.resetURL(token)); err != nil {
		fail(mailError(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Password reset link sent to your email",
	})
}

// HandleResetPassword consumes the reset token named by the {token} path
// variable and replaces the password hash.
func (a *LocalAuth) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	fail := func(err error) {
		writeFailure(w, AsAuthError(err).WithStatus(http.StatusBadRequest))
	}
	token := mux.Vars(r)["token"]
	if token == "" {
		fail(ErrInvalidResetToken)
		return
	}
	body, err := readBody(r)
	if err != nil {
		writeValidationErrors(w, []FieldError{{Path: "body", Message: err.Error()}})
		return
	}
	password, verr := validatePassword(body["password"])
	if verr != nil {
		writeValidationErrors(w, []FieldError{*verr})
		return
	}
	ctx := r.Context()

	user, err := a.Users.GetUserByResetToken(ctx, token, a.now())
	if errors.Is(err, ErrUserNotFound) {
		err = ErrInvalidResetToken
	}
	if err != nil {
		fail(err)
		return
	}

	hash, err := a.Hasher.HashPassword(password)
	if err != nil {
		fail(err)
		return
	}
	user, err = a.Users.UpdateUser(ctx, user.ID, UserPatch{
		PasswordHash: &hash,
		Reset:        ClearToken(),
	})
	if err != nil {
		fail(err)
		return
	}
	if err := a.Mailer.SendResetSuccess(ctx, user.EmailAddress()); err != nil {
		fail(mailError(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Password reset successful",
	})
}
