package grpc

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	oa "github.com/panyam/authcore"
)

// TokenValidator is satisfied by *authcore.TokenCodec.
type TokenValidator interface {
	Validate(token string) (*oa.Identity, error)
}

// InterceptorConfig configures the auth interceptor behavior.
type InterceptorConfig struct {
	// Config holds the metadata key configuration.
	*Config

	Validator TokenValidator

	// RequireAuth when true rejects unauthenticated requests.
	// When false, requests proceed without an identity.
	RequireAuth bool

	// PublicMethods skip authentication. Keys are full method names like
	// "/package.Service/Method".
	PublicMethods map[string]bool

	// AdminMethods additionally require isAdmin.
	AdminMethods map[string]bool
}

// DefaultInterceptorConfig returns a config that requires auth for all methods.
func DefaultInterceptorConfig(v TokenValidator) *InterceptorConfig {
	return &InterceptorConfig{
		Config:        DefaultConfig(),
		Validator:     v,
		RequireAuth:   true,
		PublicMethods: make(map[string]bool),
		AdminMethods:  make(map[string]bool),
	}
}

// NewPublicMethodsConfig creates a config with the specified public methods.
func NewPublicMethodsConfig(v TokenValidator, publicMethods ...string) *InterceptorConfig {
	config := DefaultInterceptorConfig(v)
	for _, method := range publicMethods {
		config.PublicMethods[method] = true
	}
	return config
}

// OptionalAuthConfig returns a config that allows unauthenticated requests.
func OptionalAuthConfig(v TokenValidator) *InterceptorConfig {
	config := DefaultInterceptorConfig(v)
	config.RequireAuth = false
	return config
}

func (c *InterceptorConfig) ensureDefaults() {
	if c.Config == nil {
		c.Config = DefaultConfig()
	}
	c.Config.EnsureDefaults()
}

// authenticate resolves the identity for method and returns the context to
// continue with.
func (c *InterceptorConfig) authenticate(ctx context.Context, method string) (context.Context, error) {
	public := c.PublicMethods[method]
	token := TokenFromContext(ctx, c.Config)
	if token == "" {
		if c.RequireAuth && !public {
			return nil, status.Error(codes.Unauthenticated, oa.ErrNoCredential.Message)
		}
		return ctx, nil
	}

	id, err := c.Validator.Validate(token)
	if err != nil {
		ae := oa.AsAuthError(err)
		if ae.Kind == oa.KindServer {
			slog.Error("error validating grpc credential", "method", method, "err", err)
			return nil, status.Error(codes.Internal, ae.Message)
		}
		if c.RequireAuth && !public {
			return nil, status.Error(codes.Unauthenticated, ae.Message)
		}
		return ctx, nil
	}

	if c.AdminMethods[method] && !id.IsAdmin {
		return nil, status.Error(codes.PermissionDenied, oa.ErrNotAllowed.Message)
	}
	return oa.ContextWithIdentity(ctx, id), nil
}

// UnaryAuthInterceptor validates the credential token and attaches the
// identity to the handler's context.
func UnaryAuthInterceptor(config *InterceptorConfig) grpc.UnaryServerInterceptor {
	config.ensureDefaults()
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, err := config.authenticate(ctx, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// authStream overrides Context so handlers see the identity.
type authStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *authStream) Context() context.Context { return s.ctx }

// StreamAuthInterceptor is the streaming counterpart of UnaryAuthInterceptor.
func StreamAuthInterceptor(config *InterceptorConfig) grpc.StreamServerInterceptor {
	config.ensureDefaults()
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := config.authenticate(ss.Context(), info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &authStream{ServerStream: ss, ctx: ctx})
	}
}

// AuthorizeOwnerOrAdmin is the per-call owner check for handlers that act
// on a user id taken from the request message.
func AuthorizeOwnerOrAdmin(ctx context.Context, userID string) error {
	id, ok := oa.IdentityFromContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, oa.ErrNoCredential.Message)
	}
	if id.IsAdmin || id.UserID == userID {
		return nil
	}
	return status.Error(codes.PermissionDenied, oa.ErrNotAllowed.Message)
}

// StatusFromError maps an authcore error onto a gRPC status.
func StatusFromError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, oa.ErrUserNotFound) {
		return status.Error(codes.NotFound, "User not found")
	}
	ae := oa.AsAuthError(err)
	code := codes.Internal
	switch ae.Kind {
	case oa.KindValidation:
		code = codes.InvalidArgument
	case oa.KindConflict:
		code = codes.AlreadyExists
	case oa.KindInvalidCredentials, oa.KindInvalidOrExpiredToken, oa.KindUnauthorized:
		code = codes.Unauthenticated
	case oa.KindForbidden:
		code = codes.PermissionDenied
	case oa.KindNotFound:
		code = codes.NotFound
	}
	return status.Error(code, ae.Message)
}
