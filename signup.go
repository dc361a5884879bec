package authcore

import (
	"errors"
	"net/http"
	"strings"
)

// HandleSignup creates an unverified account, logs it in and mails a
// verification code. Failures after the insert leave the record in place;
// the client recovers through HandleResendVerification.
func (a *LocalAuth) HandleSignup(w http.ResponseWriter, r *http.Request) {
	in, verrs := ValidateSignup(r)
	if len(verrs) > 0 {
		writeValidationErrors(w, verrs)
		return
	}
	ctx := r.Context()
	fail := func(err error) {
		writeFailure(w, AsAuthError(err).WithStatus(http.StatusBadRequest))
	}

	if _, err := a.Users.GetUserByEmail(ctx, in.Email); err == nil {
		fail(ErrUserExists)
		return
	} else if !errors.Is(err, ErrUserNotFound) {
		fail(err)
		return
	}

	hash, err := a.Hasher.HashPassword(in.Password)
	if err != nil {
		fail(err)
		return
	}
	code, err := GenerateVerificationCode()
	if err != nil {
		fail(err)
		return
	}

	now := a.now()
	email := in.Email
	user := &User{
		Name:         in.Name,
		Email:        &email,
		Avatar:       DefaultAvatar,
		PasswordHash: hash,
		Verification: FlowToken{Token: code, ExpiresAt: now.Add(TokenExpiryEmailVerification)},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.Users.InsertUser(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			err = ErrUserExists
		}
		fail(err)
		return
	}

	if err := a.bindCredential(w, user); err != nil {
		fail(err)
		return
	}
	if err := a.Mailer.SendVerification(ctx, email, code); err != nil {
		fail(mailError(err))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "User created successfully",
		"user":    user,
	})
}

// HandleVerifyEmail consumes a verification code. The token pair is cleared
// in the same write that sets isVerified, before the welcome mail goes out.
func (a *LocalAuth) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeFailure(w, ErrInvalidVerification)
		return
	}
	code := strings.TrimSpace(body["code"])
	if code == "" {
		writeFailure(w, ErrInvalidVerification)
		return
	}
	ctx := r.Context()

	user, err := a.Users.GetUserByVerificationToken(ctx, code, a.now())
	if errors.Is(err, ErrUserNotFound) {
		writeFailure(w, ErrInvalidVerification)
		return
	} else if err != nil {
		writeFailure(w, err)
		return
	}

	verified := true
	user, err = a.Users.UpdateUser(ctx, user.ID, UserPatch{
		IsVerified:   &verified,
		Verification: ClearToken(),
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	if err := a.Mailer.SendWelcome(ctx, user.EmailAddress(), user.Name); err != nil {
		writeFailure(w, AsAuthError(mailError(err)).WithStatus(http.StatusInternalServerError))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Email verified successfully",
		"user":    user,
	})
}

// HandleResendVerification issues a fresh code for an unverified account.
// Unknown and already verified emails get the same answer.
func (a *LocalAuth) HandleResendVerification(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeFailure(w, ErrCannotResend)
		return
	}
	ctx := r.Context()

	user, err := a.lookupByEmail(ctx, NormalizeEmail(body["email"]), ErrCannotResend)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if user.IsVerified || user.EmailAddress() == "" {
		writeFailure(w, ErrCannotResend)
		return
	}

	code, err := GenerateVerificationCode()
	if err != nil {
		writeFailure(w, err)
		return
	}
	token := &FlowToken{Token: code, ExpiresAt: a.now().Add(TokenExpiryEmailVerification)}
	if _, err := a.Users.UpdateUser(ctx, user.ID, UserPatch{Verification: token}); err != nil {
		writeFailure(w, err)
		return
	}
	if err := a.Mailer.SendVerification(ctx, user.EmailAddress(), code); err != nil {
		writeFailure(w, mailError(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Verification code sent to your email",
	})
}
