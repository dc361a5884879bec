package authcore

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// ErrorKind classifies failures so handlers can pick a status code.
type ErrorKind int

const (
	KindServer ErrorKind = iota
	KindValidation
	KindConflict
	KindInvalidCredentials
	KindInvalidOrExpiredToken
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindMail
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindConflict:
		return "conflict"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindInvalidOrExpiredToken:
		return "invalid_or_expired_token"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindMail:
		return "mail_error"
	}
	return "server_error"
}

// Status is the default HTTP status for the kind. Flows that need a
// different mapping set AuthError.StatusCode explicitly.
func (k ErrorKind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindConflict, KindInvalidCredentials, KindInvalidOrExpiredToken, KindNotFound:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// AuthError is the error type returned by every handler-facing operation.
type AuthError struct {
	Kind       ErrorKind
	Message    string
	Field      string
	StatusCode int
	Err        error
}

func NewAuthError(kind ErrorKind, message string) *AuthError {
	return &AuthError{Kind: kind, Message: message}
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AuthError) Unwrap() error { return e.Err }

// Is matches another AuthError of the same kind and message, so package
// level sentinels keep working after WithStatus or Wrap copies them.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == e.Message
}

// Status returns the explicit status if set, else the kind's default.
func (e *AuthError) Status() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	return e.Kind.Status()
}

// WithStatus returns a copy carrying a flow-specific status code.
func (e *AuthError) WithStatus(code int) *AuthError {
	out := *e
	out.StatusCode = code
	return &out
}

// Wrap attaches the underlying cause.
func (e *AuthError) Wrap(err error) *AuthError {
	out := *e
	out.Err = err
	return &out
}

// AsAuthError converts any error into an AuthError, defaulting to KindServer.
func AsAuthError(err error) *AuthError {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae
	}
	return &AuthError{Kind: KindServer, Message: "Server error", Err: err}
}

// FieldError is one entry of a 422 response body.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("error encoding response", "err", err)
	}
}

// writeFailure renders the controller-boundary error body
// {success:false, message}.
func writeFailure(w http.ResponseWriter, err error) {
	ae := AsAuthError(err)
	if ae.Kind == KindServer && ae.Err != nil {
		slog.Error("request failed", "err", ae.Err)
	}
	writeJSON(w, ae.Status(), map[string]any{
		"success": false,
		"message": ae.Message,
	})
}

func writeValidationErrors(w http.ResponseWriter, errs []FieldError) {
	writeJSON(w, http.StatusUnprocessableEntity, errs)
}

// HTTPError carries a status through panics to the recovery middleware.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string { return e.Message }

// Recoverer is the global error middleware: a panic inside next becomes
// {error:{message}} with the carried status (500 unless an *HTTPError or
// *AuthError says otherwise).
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			status := http.StatusInternalServerError
			message := "Internal Server Error"
			switch v := rec.(type) {
			case *HTTPError:
				status, message = v.Status, v.Message
			case *AuthError:
				status, message = v.Status(), v.Message
			case error:
				message = v.Error()
			case string:
				message = v
			}
			slog.Error("recovered from panic", "path", r.URL.Path, "panic", rec)
			writeJSON(w, status, map[string]any{
				"error": map[string]any{"message": message},
			})
		}()
		next.ServeHTTP(w, r)
	})
}
