package authcore

import (
	"context"
	"errors"
	"time"
)

// DefaultAvatar is assigned to new accounts that do not bring a picture.
const DefaultAvatar = "/noavatar.jpg"

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrDuplicateEmail    = errors.New("email already registered")
	ErrDuplicateUsername = errors.New("username already registered")
)

// User is the single account record. Secret fields never serialize to JSON,
// so encoding a User yields the sanitized form.
type User struct {
	ID          string    `json:"_id"`
	Name        string    `json:"name"`
	Email       *string   `json:"email"`
	Username    string    `json:"username,omitempty"`
	IsVerified  bool      `json:"isVerified"`
	IsAdmin     bool      `json:"isAdmin"`
	Avatar      string    `json:"avatar,omitempty"`
	LastLoginAt time.Time `json:"lastLogin"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	// "" marks an account with no local password (federated signup)
	PasswordHash string `json:"-"`

	Verification FlowToken `json:"-"`
	Reset        FlowToken `json:"-"`
}

// FlowToken is a one-shot token paired with its expiry. The zero value means
// no token is outstanding.
type FlowToken struct {
	Token     string
	ExpiresAt time.Time
}

func (t FlowToken) IsZero() bool { return t.Token == "" }

// ValidAt reports whether the token is set and strictly unexpired at now.
func (t FlowToken) ValidAt(now time.Time) bool {
	return t.Token != "" && now.Before(t.ExpiresAt)
}

// EmailAddress returns the email or "" for records created without one.
func (u *User) EmailAddress() string {
	if u.Email == nil {
		return ""
	}
	return *u.Email
}

// HasPassword reports whether the account can log in with a local password.
func (u *User) HasPassword() bool { return u.PasswordHash != "" }

// UserPatch lists the mutable fields of a record. A nil field is left alone.
// Verification and Reset replace the whole token pair; pointing at a zero
// FlowToken clears both halves in the same write.
type UserPatch struct {
	Name         *string
	Email        *string
	Avatar       *string
	PasswordHash *string
	IsVerified   *bool
	LastLoginAt  *time.Time

	Verification *FlowToken
	Reset        *FlowToken
}

// ClearToken is the patch value that removes a token pair.
func ClearToken() *FlowToken { return &FlowToken{} }

// IsEmpty reports whether the patch changes nothing.
func (p UserPatch) IsEmpty() bool {
	return p.Name == nil && p.Email == nil && p.Avatar == nil && p.PasswordHash == nil &&
		p.IsVerified == nil && p.LastLoginAt == nil && p.Verification == nil && p.Reset == nil
}

// Apply copies the set fields of p onto u. Stores that persist whole
// documents use it to keep patch semantics identical across backends.
func (p UserPatch) Apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		email := *p.Email
		u.Email = &email
	}
	if p.Avatar != nil {
		u.Avatar = *p.Avatar
	}
	if p.PasswordHash != nil {
		u.PasswordHash = *p.PasswordHash
	}
	if p.IsVerified != nil {
		u.IsVerified = *p.IsVerified
	}
	if p.LastLoginAt != nil {
		u.LastLoginAt = *p.LastLoginAt
	}
	if p.Verification != nil {
		u.Verification = *p.Verification
	}
	if p.Reset != nil {
		u.Reset = *p.Reset
	}
}

// UserStore persists account records. Implementations enforce email
// uniqueness (InsertUser and UpdateUser fail with ErrDuplicateEmail) and
// return ErrUserNotFound for misses. Updates are last-writer-wins.
type UserStore interface {
	GetUserById(ctx context.Context, id string) (*User, error)

	// GetUserByEmail matches case-insensitively
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// GetUserByVerificationToken only matches tokens whose expiry is after now
	GetUserByVerificationToken(ctx context.Context, code string, now time.Time) (*User, error)

	// GetUserByResetToken only matches tokens whose expiry is after now
	GetUserByResetToken(ctx context.Context, token string, now time.Time) (*User, error)

	// InsertUser stores a new record. ID, CreatedAt and UpdatedAt are filled
	// in when empty.
	InsertUser(ctx context.Context, user *User) error

	// UpdateUser applies patch and returns the record as stored
	UpdateUser(ctx context.Context, id string, patch UserPatch) (*User, error)

	DeleteUser(ctx context.Context, id string) error

	// ListUsers returns up to limit records, newest first. limit <= 0 means all.
	ListUsers(ctx context.Context, limit int) ([]*User, error)
}
