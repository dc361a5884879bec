package authcore

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

var (
	ErrInvalidCredentialToken = &AuthError{
		Kind:       KindInvalidOrExpiredToken,
		Message:    "Unauthorized - invalid token",
		StatusCode: http.StatusUnauthorized,
	}
	errMissingSigningSecret = &AuthError{Kind: KindServer, Message: "Server error"}
)

// Identity is what a valid credential token proves about the caller.
type Identity struct {
	UserID  string `json:"userId"`
	IsAdmin bool   `json:"isAdmin"`
}

type credentialClaims struct {
	UserID  string `json:"userId"`
	IsAdmin bool   `json:"isAdmin"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies the credential token carried in the
// session cookie. The secret is read once at startup and never mutated.
type TokenCodec struct {
	Secret []byte
	Issuer string

	// Defaults to TokenExpiryCredential
	Expiry time.Duration

	// Defaults to the real clock
	Clock clockwork.Clock
}

func NewTokenCodec(secret string, clock clockwork.Clock) *TokenCodec {
	return &TokenCodec{
		Secret: []byte(secret),
		Issuer: "authcore",
		Expiry: TokenExpiryCredential,
		Clock:  clock,
	}
}

func (c *TokenCodec) now() time.Time {
	if c.Clock == nil {
		return time.Now()
	}
	return c.Clock.Now()
}

func (c *TokenCodec) expiry() time.Duration {
	if c.Expiry <= 0 {
		return TokenExpiryCredential
	}
	return c.Expiry
}

// Issue returns an HS256 token with claims {userId, isAdmin, exp}.
func (c *TokenCodec) Issue(userID string, isAdmin bool) (string, error) {
	if len(c.Secret) == 0 {
		return "", errMissingSigningSecret.Wrap(fmt.Errorf("jwt secret not configured"))
	}
	now := c.now()
	claims := credentialClaims{
		UserID:  userID,
		IsAdmin: isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    c.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.expiry())),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.Secret)
	if err != nil {
		return "", errMissingSigningSecret.Wrap(err)
	}
	return signed, nil
}

// Validate checks signature and expiry. A token is accepted up to and
// including its exp second. Bad or expired tokens return
// ErrInvalidCredentialToken; a codec without a secret is a server fault.
func (c *TokenCodec) Validate(tokenString string) (*Identity, error) {
	if len(c.Secret) == 0 {
		return nil, errMissingSigningSecret.Wrap(fmt.Errorf("jwt secret not configured"))
	}
	claims := &credentialClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return c.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
		// exp itself is still inside the validity window
		jwt.WithLeeway(time.Second),
	)
	if err != nil {
		return nil, ErrInvalidCredentialToken.Wrap(err)
	}
	if !token.Valid {
		return nil, ErrInvalidCredentialToken.Wrap(errors.New("invalid token"))
	}
	if claims.UserID == "" {
		return nil, ErrInvalidCredentialToken.Wrap(errors.New("userId claim missing"))
	}
	return &Identity{UserID: claims.UserID, IsAdmin: claims.IsAdmin}, nil
}
