//go:build !wasm
// +build !wasm

package gorm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	oa "github.com/panyam/authcore"
)

// Open connects to PostgreSQL with duplicate-key translation turned on.
func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
}

// AutoMigrate runs database migrations for the users table
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&UserModel{})
}

// UserStore implements oa.UserStore using GORM
type UserStore struct {
	db *gorm.DB

	// Now stamps CreatedAt/UpdatedAt. Defaults to time.Now.
	Now func() time.Time
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// mapWriteError turns unique violations into the store sentinels. Drivers
// without error translation are matched on the message.
func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	dup := errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint")
	if !dup {
		return err
	}
	if strings.Contains(msg, "username") {
		return fmt.Errorf("%w: %v", oa.ErrDuplicateUsername, err)
	}
	return fmt.Errorf("%w: %v", oa.ErrDuplicateEmail, err)
}

func (s *UserStore) first(ctx context.Context, query string, args ...any) (*oa.User, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).Where(query, args...).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, oa.ErrUserNotFound
		}
		return nil, err
	}
	return model.ToUser(), nil
}

func (s *UserStore) GetUserById(ctx context.Context, id string) (*oa.User, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*oa.User, error) {
	if email == "" {
		return nil, oa.ErrUserNotFound
	}
	return s.first(ctx, "email_key = ?", strings.ToLower(email))
}

func (s *UserStore) GetUserByUsername(ctx context.Context, username string) (*oa.User, error) {
	if username == "" {
		return nil, oa.ErrUserNotFound
	}
	return s.first(ctx, "username_key = ?", strings.ToLower(username))
}

func (s *UserStore) GetUserByVerificationToken(ctx context.Context, code string, now time.Time) (*oa.User, error) {
	if code == "" {
		return nil, oa.ErrUserNotFound
	}
	return s.first(ctx, "verification_token = ? AND verification_token_expires_at > ?", code, now)
}

func (s *UserStore) GetUserByResetToken(ctx context.Context, token string, now time.Time) (*oa.User, error) {
	if token == "" {
		return nil, oa.ErrUserNotFound
	}
	return s.first(ctx, "reset_password_token = ? AND reset_password_expires_at > ?", token, now)
}

func (s *UserStore) InsertUser(ctx context.Context, user *oa.User) error {
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
	return mapWriteError(s.db.WithContext(ctx).Create(UserToModel(user)).Error)
}

func (s *UserStore) UpdateUser(ctx context.Context, id string, patch oa.UserPatch) (*oa.User, error) {
	var model UserModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&UserModel{}).Where("id = ?", id).Updates(patchColumns(patch, s.now()))
		if res.Error != nil {
			return mapWriteError(res.Error)
		}
		if res.RowsAffected == 0 {
			return oa.ErrUserNotFound
		}
		return tx.First(&model, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return model.ToUser(), nil
}

func (s *UserStore) DeleteUser(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&UserModel{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return oa.ErrUserNotFound
	}
	return nil
}

func (s *UserStore) ListUsers(ctx context.Context, limit int) ([]*oa.User, error) {
	var models []UserModel
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*oa.User, len(models))
	for i := range models {
		out[i] = models[i].ToUser()
	}
	return out, nil
}

var _ oa.UserStore = (*UserStore)(nil)
