package authcore

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
)

type identityKey struct{}

var (
	ErrNoCredential = &AuthError{Kind: KindUnauthorized, Message: "Unauthorized - no token provided"}
	ErrNotAllowed   = &AuthError{Kind: KindForbidden, Message: "You are not allowed to do that!"}
)

// IdentityFromContext returns the identity attached by RequireAuth.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok && id != nil
}

// ContextWithIdentity attaches id to ctx. Exposed for transports other than
// HTTP (see the grpc package) and for tests.
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// Gate holds the request-time authorization middlewares.
type Gate struct {
	Codec  *TokenCodec
	Binder *SessionBinder
}

// Authenticate resolves the identity for r without writing a response.
func (g *Gate) Authenticate(r *http.Request) (*Identity, error) {
	token := g.Binder.Token(r)
	if token == "" {
		return nil, ErrNoCredential
	}
	return g.Codec.Validate(token)
}

// RequireAuth rejects requests without a valid credential cookie (401) and
// attaches the Identity to the request context otherwise.
func (g *Gate) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := g.Authenticate(r)
		if err != nil {
			if !errors.Is(err, ErrNoCredential) {
				slog.Warn("error verifying token", "path", r.URL.Path, "err", err)
			}
			writeFailure(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), id)))
	})
}

// RequireOwnerOrAdmin runs after RequireAuth and admits the caller if the
// path variable param names their own id, or if they are an admin.
func (g *Gate) RequireOwnerOrAdmin(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return g.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, _ := IdentityFromContext(r.Context())
			if id.IsAdmin || id.UserID == mux.Vars(r)[param] {
				next.ServeHTTP(w, r)
				return
			}
			writeFailure(w, ErrNotAllowed)
		}))
	}
}

// RequireAdmin runs after RequireAuth and admits admins only.
func (g *Gate) RequireAdmin(next http.Handler) http.Handler {
	return g.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := IdentityFromContext(r.Context())
		if !id.IsAdmin {
			writeFailure(w, ErrNotAllowed)
			return
		}
		next.ServeHTTP(w, r)
	}))
}
