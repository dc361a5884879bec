package mongo

import (
	"time"

	oa "github.com/panyam/authcore"
)

// userDocument mirrors the users collection. Field names follow the
// collection's existing camelCase layout.
type userDocument struct {
	ID                         string     `bson:"_id"`
	Name                       string     `bson:"name"`
	Email                      *string    `bson:"email,omitempty"`
	Username                   string     `bson:"username,omitempty"`
	Password                   string     `bson:"password"`
	IsVerified                 bool       `bson:"isVerified"`
	IsAdmin                    bool       `bson:"isAdmin"`
	Avatar                     string     `bson:"avatar,omitempty"`
	LastLogin                  time.Time  `bson:"lastLogin"`
	VerificationToken          string     `bson:"verificationToken,omitempty"`
	VerificationTokenExpiresAt *time.Time `bson:"verificationTokenExpiresAt,omitempty"`
	ResetPasswordToken         string     `bson:"resetPasswordToken,omitempty"`
	ResetPasswordExpiresAt     *time.Time `bson:"resetPasswordExpiresAt,omitempty"`
	CreatedAt                  time.Time  `bson:"createdAt"`
	UpdatedAt                  time.Time  `bson:"updatedAt"`
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func toDocument(u *oa.User) *userDocument {
	return &userDocument{
		ID:                         u.ID,
		Name:                       u.Name,
		Email:                      u.Email,
		Username:                   u.Username,
		Password:                   u.PasswordHash,
		IsVerified:                 u.IsVerified,
		IsAdmin:                    u.IsAdmin,
		Avatar:                     u.Avatar,
		LastLogin:                  u.LastLoginAt,
		VerificationToken:          u.Verification.Token,
		VerificationTokenExpiresAt: optionalTime(u.Verification.ExpiresAt),
		ResetPasswordToken:         u.Reset.Token,
		ResetPasswordExpiresAt:     optionalTime(u.Reset.ExpiresAt),
		CreatedAt:                  u.CreatedAt,
		UpdatedAt:                  u.UpdatedAt,
	}
}

func (d *userDocument) toUser() *oa.User {
	return &oa.User{
		ID:           d.ID,
		Name:         d.Name,
		Email:        d.Email,
		Username:     d.Username,
		PasswordHash: d.Password,
		IsVerified:   d.IsVerified,
		IsAdmin:      d.IsAdmin,
		Avatar:       d.Avatar,
		LastLoginAt:  d.LastLogin,
		Verification: oa.FlowToken{Token: d.VerificationToken, ExpiresAt: derefTime(d.VerificationTokenExpiresAt)},
		Reset:        oa.FlowToken{Token: d.ResetPasswordToken, ExpiresAt: derefTime(d.ResetPasswordExpiresAt)},
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}
