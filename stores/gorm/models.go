//go:build !wasm
// +build !wasm

package gorm

import (
	"strings"
	"time"

	oa "github.com/panyam/authcore"
)

// UserModel is the GORM model for accounts
type UserModel struct {
	ID                         string  `gorm:"primaryKey;size:64"`
	Name                       string  `gorm:"size:255"`
	Email                      *string `gorm:"size:320"`
	EmailKey                   *string `gorm:"size:320;uniqueIndex"`
	Username                   string  `gorm:"size:255"`
	UsernameKey                *string `gorm:"size:255;uniqueIndex"`
	PasswordHash               string  `gorm:"size:255"`
	IsVerified                 bool    `gorm:"default:false"`
	IsAdmin                    bool    `gorm:"default:false"`
	Avatar                     string  `gorm:"size:1024"`
	LastLoginAt                time.Time
	VerificationToken          *string `gorm:"size:16;index"`
	VerificationTokenExpiresAt *time.Time
	ResetPasswordToken         *string `gorm:"size:64;index"`
	ResetPasswordExpiresAt     *time.Time
	CreatedAt                  time.Time `gorm:"index"`
	UpdatedAt                  time.Time
}

func (UserModel) TableName() string {
	return "users"
}

func lowerKey(s string) *string {
	if s == "" {
		return nil
	}
	k := strings.ToLower(s)
	return &k
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func (m *UserModel) ToUser() *oa.User {
	return &oa.User{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		Username:     m.Username,
		PasswordHash: m.PasswordHash,
		IsVerified:   m.IsVerified,
		IsAdmin:      m.IsAdmin,
		Avatar:       m.Avatar,
		LastLoginAt:  m.LastLoginAt,
		Verification: oa.FlowToken{Token: deref(m.VerificationToken), ExpiresAt: deref(m.VerificationTokenExpiresAt)},
		Reset:        oa.FlowToken{Token: deref(m.ResetPasswordToken), ExpiresAt: deref(m.ResetPasswordExpiresAt)},
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func UserToModel(u *oa.User) *UserModel {
	return &UserModel{
		ID:                         u.ID,
		Name:                       u.Name,
		Email:                      u.Email,
		EmailKey:                   lowerKey(u.EmailAddress()),
		Username:                   u.Username,
		UsernameKey:                lowerKey(u.Username),
		PasswordHash:               u.PasswordHash,
		IsVerified:                 u.IsVerified,
		IsAdmin:                    u.IsAdmin,
		Avatar:                     u.Avatar,
		LastLoginAt:                u.LastLoginAt,
		VerificationToken:          optionalString(u.Verification.Token),
		VerificationTokenExpiresAt: optionalTime(u.Verification.ExpiresAt),
		ResetPasswordToken:         optionalString(u.Reset.Token),
		ResetPasswordExpiresAt:     optionalTime(u.Reset.ExpiresAt),
		CreatedAt:                  u.CreatedAt,
		UpdatedAt:                  u.UpdatedAt,
	}
}

// patchColumns lists the column updates for a patch. Clearing a flow token
// nulls both columns.
func patchColumns(patch oa.UserPatch, now time.Time) map[string]any {
	cols := map[string]any{"updated_at": now}
	if patch.Name != nil {
		cols["name"] = *patch.Name
	}
	if patch.Email != nil {
		cols["email"] = *patch.Email
		cols["email_key"] = lowerKey(*patch.Email)
	}
	if patch.Avatar != nil {
		cols["avatar"] = *patch.Avatar
	}
	if patch.PasswordHash != nil {
		cols["password_hash"] = *patch.PasswordHash
	}
	if patch.IsVerified != nil {
		cols["is_verified"] = *patch.IsVerified
	}
	if patch.LastLoginAt != nil {
		cols["last_login_at"] = *patch.LastLoginAt
	}
	if t := patch.Verification; t != nil {
		cols["verification_token"] = optionalString(t.Token)
		cols["verification_token_expires_at"] = optionalTime(t.ExpiresAt)
	}
	if t := patch.Reset; t != nil {
		cols["reset_password_token"] = optionalString(t.Token)
		cols["reset_password_expires_at"] = optionalTime(t.ExpiresAt)
	}
	return cols
}
