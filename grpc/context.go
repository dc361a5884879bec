// Package grpc carries the credential token over gRPC metadata and applies
// the same authentication and owner/admin rules as the HTTP gates.
package grpc

import (
	"context"
	"strings"

	"google.golang.org/grpc/metadata"

	oa "github.com/panyam/authcore"
)

const (
	// DefaultMetadataKeyToken carries "Bearer <token>"
	DefaultMetadataKeyToken = "authorization"

	// DefaultMetadataKeyCookie is checked when a gateway forwards the
	// browser's Cookie header.
	DefaultMetadataKeyCookie = "cookie"
)

// Config holds the metadata key configuration.
type Config struct {
	MetadataKeyToken  string
	MetadataKeyCookie string

	// CookieName is the credential cookie looked up in MetadataKeyCookie.
	CookieName string
}

func DefaultConfig() *Config {
	return &Config{
		MetadataKeyToken:  DefaultMetadataKeyToken,
		MetadataKeyCookie: DefaultMetadataKeyCookie,
		CookieName:        oa.DefaultCredentialCookie,
	}
}

// EnsureDefaults fills in default values for any unset fields.
func (c *Config) EnsureDefaults() {
	if c.MetadataKeyToken == "" {
		c.MetadataKeyToken = DefaultMetadataKeyToken
	}
	if c.MetadataKeyCookie == "" {
		c.MetadataKeyCookie = DefaultMetadataKeyCookie
	}
	if c.CookieName == "" {
		c.CookieName = oa.DefaultCredentialCookie
	}
}

// TokenFromContext returns the credential token in the incoming metadata,
// or "" when none was sent. The bearer header wins over the cookie.
func TokenFromContext(ctx context.Context, config *Config) string {
	if config == nil {
		config = DefaultConfig()
	}
	config.EnsureDefaults()

	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	for _, v := range md.Get(config.MetadataKeyToken) {
		if token, found := strings.CutPrefix(v, "Bearer "); found && token != "" {
			return strings.TrimSpace(token)
		}
	}
	for _, header := range md.Get(config.MetadataKeyCookie) {
		for _, part := range strings.Split(header, ";") {
			name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
			if ok && name == config.CookieName && value != "" {
				return value
			}
		}
	}
	return ""
}

// TokenToOutgoingContext attaches token as a bearer credential to outgoing
// calls.
func TokenToOutgoingContext(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, DefaultMetadataKeyToken, "Bearer "+token)
}

// UserIDFromContext returns the authenticated user id the interceptor
// attached, or "".
func UserIDFromContext(ctx context.Context) string {
	if id, ok := oa.IdentityFromContext(ctx); ok {
		return id.UserID
	}
	return ""
}

// IsAuthenticated returns true if there is an authenticated user in the context.
func IsAuthenticated(ctx context.Context) bool {
	return UserIDFromContext(ctx) != ""
}
