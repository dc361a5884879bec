//go:build !wasm
// +build !wasm

package gae

import (
	"time"

	"cloud.google.com/go/datastore"

	oa "github.com/panyam/authcore"
)

// Kind constants for Datastore entities
const (
	KindUser     = "User"
	KindEmail    = "Email"
	KindUsername = "Username"
)

// UserEntity is the Datastore entity for accounts
type UserEntity struct {
	Key                        *datastore.Key `datastore:"__key__"`
	Name                       string         `datastore:"name,noindex"`
	Email                      string         `datastore:"email"`
	HasEmail                   bool           `datastore:"has_email,noindex"`
	Username                   string         `datastore:"username"`
	PasswordHash               string         `datastore:"password_hash,noindex"`
	IsVerified                 bool           `datastore:"is_verified"`
	IsAdmin                    bool           `datastore:"is_admin"`
	Avatar                     string         `datastore:"avatar,noindex"`
	LastLoginAt                time.Time      `datastore:"last_login_at,noindex"`
	VerificationToken          string         `datastore:"verification_token"`
	VerificationTokenExpiresAt time.Time      `datastore:"verification_token_expires_at,noindex"`
	ResetPasswordToken         string         `datastore:"reset_password_token"`
	ResetPasswordExpiresAt     time.Time      `datastore:"reset_password_expires_at,noindex"`
	CreatedAt                  time.Time      `datastore:"created_at"`
	UpdatedAt                  time.Time      `datastore:"updated_at,noindex"`
}

// ReservationEntity claims an email or username for one account.
type ReservationEntity struct {
	Key       *datastore.Key `datastore:"__key__"`
	UserID    string         `datastore:"user_id"`
	CreatedAt time.Time      `datastore:"created_at,noindex"`
}

func (e *UserEntity) ToUser() *oa.User {
	u := &oa.User{
		ID:           e.Key.Name,
		Name:         e.Name,
		Username:     e.Username,
		PasswordHash: e.PasswordHash,
		IsVerified:   e.IsVerified,
		IsAdmin:      e.IsAdmin,
		Avatar:       e.Avatar,
		LastLoginAt:  e.LastLoginAt,
		Verification: oa.FlowToken{Token: e.VerificationToken, ExpiresAt: e.VerificationTokenExpiresAt},
		Reset:        oa.FlowToken{Token: e.ResetPasswordToken, ExpiresAt: e.ResetPasswordExpiresAt},
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
	if e.HasEmail {
		email := e.Email
		u.Email = &email
	}
	return u
}

func UserToEntity(u *oa.User, key *datastore.Key) *UserEntity {
	return &UserEntity{
		Key:                        key,
		Name:                       u.Name,
		Email:                      u.EmailAddress(),
		HasEmail:                   u.Email != nil,
		Username:                   u.Username,
		PasswordHash:               u.PasswordHash,
		IsVerified:                 u.IsVerified,
		IsAdmin:                    u.IsAdmin,
		Avatar:                     u.Avatar,
		LastLoginAt:                u.LastLoginAt,
		VerificationToken:          u.Verification.Token,
		VerificationTokenExpiresAt: u.Verification.ExpiresAt,
		ResetPasswordToken:         u.Reset.Token,
		ResetPasswordExpiresAt:     u.Reset.ExpiresAt,
		CreatedAt:                  u.CreatedAt,
		UpdatedAt:                  u.UpdatedAt,
	}
}
