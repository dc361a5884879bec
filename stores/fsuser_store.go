package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	oa "github.com/panyam/authcore"
)

// fsUser is the on-disk form of an account. Unlike oa.User it keeps the
// password hash and the flow tokens.
type fsUser struct {
	ID                         string     `json:"id"`
	Name                       string     `json:"name"`
	Email                      *string    `json:"email"`
	Username                   string     `json:"username,omitempty"`
	PasswordHash               string     `json:"password_hash,omitempty"`
	IsVerified                 bool       `json:"is_verified"`
	IsAdmin                    bool       `json:"is_admin"`
	Avatar                     string     `json:"avatar,omitempty"`
	LastLoginAt                time.Time  `json:"last_login_at"`
	VerificationToken          string     `json:"verification_token,omitempty"`
	VerificationTokenExpiresAt *time.Time `json:"verification_token_expires_at,omitempty"`
	ResetPasswordToken         string     `json:"reset_password_token,omitempty"`
	ResetPasswordExpiresAt     *time.Time `json:"reset_password_expires_at,omitempty"`
	CreatedAt                  time.Time  `json:"created_at"`
	UpdatedAt                  time.Time  `json:"updated_at"`
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

func toFSUser(u *oa.User) *fsUser {
	return &fsUser{
		ID:                         u.ID,
		Name:                       u.Name,
		Email:                      u.Email,
		Username:                   u.Username,
		PasswordHash:               u.PasswordHash,
		IsVerified:                 u.IsVerified,
		IsAdmin:                    u.IsAdmin,
		Avatar:                     u.Avatar,
		LastLoginAt:                u.LastLoginAt,
		VerificationToken:          u.Verification.Token,
		VerificationTokenExpiresAt: optionalTime(u.Verification.ExpiresAt),
		ResetPasswordToken:         u.Reset.Token,
		ResetPasswordExpiresAt:     optionalTime(u.Reset.ExpiresAt),
		CreatedAt:                  u.CreatedAt,
		UpdatedAt:                  u.UpdatedAt,
	}
}

func (f *fsUser) toUser() *oa.User {
	return &oa.User{
		ID:           f.ID,
		Name:         f.Name,
		Email:        f.Email,
		Username:     f.Username,
		PasswordHash: f.PasswordHash,
		IsVerified:   f.IsVerified,
		IsAdmin:      f.IsAdmin,
		Avatar:       f.Avatar,
		LastLoginAt:  f.LastLoginAt,
		Verification: oa.FlowToken{Token: f.VerificationToken, ExpiresAt: derefTime(f.VerificationTokenExpiresAt)},
		Reset:        oa.FlowToken{Token: f.ResetPasswordToken, ExpiresAt: derefTime(f.ResetPasswordExpiresAt)},
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// FSUserStore stores accounts as JSON files. Meant for development and
// tests.
//
// # File Structure
//
//	{StoragePath}/
//	├── users/{id}.json
//	├── emails/{lowercased email}       # holds the owning user id
//	└── usernames/{lowercased username}
//
// Email and username index files are created with O_EXCL, so two racing
// inserts for the same address cannot both succeed, even across processes
// sharing the directory. Record rewrites are atomic (temp file + rename);
// within a process a mutex serializes read-modify-write updates.
type FSUserStore struct {
	StoragePath string

	// Now stamps CreatedAt/UpdatedAt. Defaults to time.Now.
	Now func() time.Time

	mu sync.Mutex
}

func NewFSUserStore(storagePath string) *FSUserStore {
	return &FSUserStore{StoragePath: storagePath}
}

func (s *FSUserStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *FSUserStore) getUserPath(userId string) string {
	return filepath.Join(s.StoragePath, "users", url.PathEscape(userId)+".json")
}

func (s *FSUserStore) indexPath(kind, key string) string {
	return filepath.Join(s.StoragePath, kind, url.PathEscape(strings.ToLower(key)))
}

// reserve claims key under kind for userId. Re-reserving a key already owned
// by userId succeeds.
func (s *FSUserStore) reserve(kind, key, userId string) error {
	path := s.indexPath(kind, key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err == nil {
		_, err = f.WriteString(userId)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		return err
	}
	if !os.IsExist(err) {
		return err
	}
	owner, rerr := s.lookupIndex(kind, key)
	if rerr == nil && owner == userId {
		return nil
	}
	if kind == "emails" {
		return fmt.Errorf("%w: %s", oa.ErrDuplicateEmail, key)
	}
	return fmt.Errorf("%w: %s", oa.ErrDuplicateUsername, key)
}

func (s *FSUserStore) release(kind, key string) {
	if key == "" {
		return
	}
	os.Remove(s.indexPath(kind, key))
}

func (s *FSUserStore) lookupIndex(kind, key string) (string, error) {
	data, err := os.ReadFile(s.indexPath(kind, key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", oa.ErrUserNotFound
		}
		return "", err
	}
	return string(data), nil
}

func (s *FSUserStore) readUser(userId string) (*fsUser, error) {
	data, err := os.ReadFile(s.getUserPath(userId))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", oa.ErrUserNotFound, userId)
		}
		return nil, err
	}
	var rec fsUser
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *FSUserStore) writeUser(rec *fsUser) error {
	path := s.getUserPath(rec.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomicFile(path, data, 0600)
}

func (s *FSUserStore) GetUserById(ctx context.Context, id string) (*oa.User, error) {
	rec, err := s.readUser(id)
	if err != nil {
		return nil, err
	}
	return rec.toUser(), nil
}

func (s *FSUserStore) getByIndex(kind, key string) (*oa.User, error) {
	if key == "" {
		return nil, oa.ErrUserNotFound
	}
	id, err := s.lookupIndex(kind, key)
	if err != nil {
		return nil, err
	}
	return s.GetUserById(context.Background(), id)
}

func (s *FSUserStore) GetUserByEmail(ctx context.Context, email string) (*oa.User, error) {
	return s.getByIndex("emails", email)
}

func (s *FSUserStore) GetUserByUsername(ctx context.Context, username string) (*oa.User, error) {
	return s.getByIndex("usernames", username)
}

// scan walks every record. Token lookups use it; they are rare enough that
// the dev store does not index them.
func (s *FSUserStore) scan(ctx context.Context, match func(*fsUser) bool) ([]*fsUser, error) {
	dir := filepath.Join(s.StoragePath, "users")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []*fsUser
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		var rec fsUser
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		if match(&rec) {
			out = append(out, &rec)
		}
	}
	return out, nil
}

func (s *FSUserStore) GetUserByVerificationToken(ctx context.Context, code string, now time.Time) (*oa.User, error) {
	if code == "" {
		return nil, oa.ErrUserNotFound
	}
	found, err := s.scan(ctx, func(r *fsUser) bool {
		return r.VerificationToken == code && now.Before(derefTime(r.VerificationTokenExpiresAt))
	})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, oa.ErrUserNotFound
	}
	return found[0].toUser(), nil
}

func (s *FSUserStore) GetUserByResetToken(ctx context.Context, token string, now time.Time) (*oa.User, error) {
	if token == "" {
		return nil, oa.ErrUserNotFound
	}
	found, err := s.scan(ctx, func(r *fsUser) bool {
		return r.ResetPasswordToken == token && now.Before(derefTime(r.ResetPasswordExpiresAt))
	})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, oa.ErrUserNotFound
	}
	return found[0].toUser(), nil
}

func (s *FSUserStore) InsertUser(ctx context.Context, user *oa.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := s.now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := os.Stat(s.getUserPath(user.ID)); err == nil {
		return fmt.Errorf("user id already exists: %s", user.ID)
	}

	email := user.EmailAddress()
	if email != "" {
		if err := s.reserve("emails", email, user.ID); err != nil {
			return err
		}
	}
	if user.Username != "" {
		if err := s.reserve("usernames", user.Username, user.ID); err != nil {
			s.release("emails", email)
			return err
		}
	}
	if err := s.writeUser(toFSUser(user)); err != nil {
		s.release("emails", email)
		s.release("usernames", user.Username)
		return err
	}
	return nil
}

func (s *FSUserStore) UpdateUser(ctx context.Context, id string, patch oa.UserPatch) (*oa.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.readUser(id)
	if err != nil {
		return nil, err
	}
	user := rec.toUser()
	oldEmail := user.EmailAddress()
	patch.Apply(user)
	user.UpdatedAt = s.now()

	newEmail := user.EmailAddress()
	emailChanged := !strings.EqualFold(oldEmail, newEmail)
	if emailChanged && newEmail != "" {
		if err := s.reserve("emails", newEmail, id); err != nil {
			return nil, err
		}
	}
	if err := s.writeUser(toFSUser(user)); err != nil {
		if emailChanged {
			s.release("emails", newEmail)
		}
		return nil, err
	}
	if emailChanged {
		s.release("emails", oldEmail)
	}
	return user, nil
}

func (s *FSUserStore) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.readUser(id)
	if err != nil {
		return err
	}
	if err := os.Remove(s.getUserPath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if rec.Email != nil {
		s.release("emails", *rec.Email)
	}
	s.release("usernames", rec.Username)
	return nil
}

func (s *FSUserStore) ListUsers(ctx context.Context, limit int) ([]*oa.User, error) {
	recs, err := s.scan(ctx, func(*fsUser) bool { return true })
	if err != nil {
		return nil, err
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].CreatedAt.After(recs[j].CreatedAt) })
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	out := make([]*oa.User, len(recs))
	for i, r := range recs {
		out[i] = r.toUser()
	}
	return out, nil
}

var _ oa.UserStore = (*FSUserStore)(nil)
