//go:build !wasm
// +build !wasm

package gae

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	oa "github.com/panyam/authcore"
)

// UserStore implements oa.UserStore using Google Cloud Datastore
type UserStore struct {
	client    *datastore.Client
	namespace string

	// Now stamps CreatedAt/UpdatedAt. Defaults to time.Now.
	Now func() time.Time
}

// NewUserStore creates a new Datastore-backed UserStore
func NewUserStore(client *datastore.Client, namespace string) *UserStore {
	return &UserStore{client: client, namespace: namespace}
}

func (s *UserStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *UserStore) namespacedKey(kind, name string) *datastore.Key {
	key := datastore.NameKey(kind, name, nil)
	key.Namespace = s.namespace
	return key
}

func (s *UserStore) query(kind string) *datastore.Query {
	q := datastore.NewQuery(kind)
	if s.namespace != "" {
		q = q.Namespace(s.namespace)
	}
	return q
}

func (s *UserStore) GetUserById(ctx context.Context, id string) (*oa.User, error) {
	var entity UserEntity
	if err := s.client.Get(ctx, s.namespacedKey(KindUser, id), &entity); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return nil, fmt.Errorf("%w: %s", oa.ErrUserNotFound, id)
		}
		return nil, err
	}
	return entity.ToUser(), nil
}

func (s *UserStore) getByReservation(ctx context.Context, kind, value string) (*oa.User, error) {
	if value == "" {
		return nil, oa.ErrUserNotFound
	}
	var res ReservationEntity
	if err := s.client.Get(ctx, s.namespacedKey(kind, strings.ToLower(value)), &res); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return nil, oa.ErrUserNotFound
		}
		return nil, err
	}
	return s.GetUserById(ctx, res.UserID)
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*oa.User, error) {
	return s.getByReservation(ctx, KindEmail, email)
}

func (s *UserStore) GetUserByUsername(ctx context.Context, username string) (*oa.User, error) {
	return s.getByReservation(ctx, KindUsername, username)
}

// firstValid runs an equality query on field and returns the first record
// whose expiry (read by expiresAt) is after now. Expiry is checked here
// rather than in the query so no composite index is needed.
func (s *UserStore) firstValid(ctx context.Context, field, value string, now time.Time, expiresAt func(*UserEntity) time.Time) (*oa.User, error) {
	if value == "" {
		return nil, oa.ErrUserNotFound
	}
	it := s.client.Run(ctx, s.query(KindUser).FilterField(field, "=", value))
	for {
		var entity UserEntity
		_, err := it.Next(&entity)
		if err == iterator.Done {
			return nil, oa.ErrUserNotFound
		}
		if err != nil {
			return nil, err
		}
		if now.Before(expiresAt(&entity)) {
			return entity.ToUser(), nil
		}
	}
}

func (s *UserStore) GetUserByVerificationToken(ctx context.Context, code string, now time.Time) (*oa.User, error) {
	return s.firstValid(ctx, "verification_token", code, now, func(e *UserEntity) time.Time {
		return e.VerificationTokenExpiresAt
	})
}

func (s *UserStore) GetUserByResetToken(ctx context.Context, token string, now time.Time) (*oa.User, error) {
	return s.firstValid(ctx, "reset_password_token", token, now, func(e *UserEntity) time.Time {
		return e.ResetPasswordExpiresAt
	})
}

// reserve claims value for userId inside tx.
func (s *UserStore) reserve(tx *datastore.Transaction, kind, value, userId string, dup error) error {
	key := s.namespacedKey(kind, strings.ToLower(value))
	var existing ReservationEntity
	err := tx.Get(key, &existing)
	if err == nil {
		if existing.UserID == userId {
			return nil
		}
		return fmt.Errorf("%w: %s", dup, value)
	}
	if !errors.Is(err, datastore.ErrNoSuchEntity) {
		return err
	}
	_, err = tx.Put(key, &ReservationEntity{Key: key, UserID: userId, CreatedAt: s.now()})
	return err
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
	key := s.namespacedKey(KindUser, user.ID)

	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var existing UserEntity
		if err := tx.Get(key, &existing); err == nil {
			return fmt.Errorf("user id already exists: %s", user.ID)
		} else if !errors.Is(err, datastore.ErrNoSuchEntity) {
			return err
		}
		if email := user.EmailAddress(); email != "" {
			if err := s.reserve(tx, KindEmail, email, user.ID, oa.ErrDuplicateEmail); err != nil {
				return err
			}
		}
		if user.Username != "" {
			if err := s.reserve(tx, KindUsername, user.Username, user.ID, oa.ErrDuplicateUsername); err != nil {
				return err
			}
		}
		_, err := tx.Put(key, UserToEntity(user, key))
		return err
	})
	return err
}

func (s *UserStore) UpdateUser(ctx context.Context, id string, patch oa.UserPatch) (*oa.User, error) {
	key := s.namespacedKey(KindUser, id)
	var updated *oa.User
	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var entity UserEntity
		if err := tx.Get(key, &entity); err != nil {
			if errors.Is(err, datastore.ErrNoSuchEntity) {
				return oa.ErrUserNotFound
			}
			return err
		}
		user := entity.ToUser()
		oldEmail := user.EmailAddress()
		patch.Apply(user)
		user.UpdatedAt = s.now()

		newEmail := user.EmailAddress()
		if !strings.EqualFold(oldEmail, newEmail) {
			if newEmail != "" {
				if err := s.reserve(tx, KindEmail, newEmail, id, oa.ErrDuplicateEmail); err != nil {
					return err
				}
			}
			if oldEmail != "" {
				if err := tx.Delete(s.namespacedKey(KindEmail, strings.ToLower(oldEmail))); err != nil {
					return err
				}
			}
		}
		if _, err := tx.Put(key, UserToEntity(user, key)); err != nil {
			return err
		}
		updated = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *UserStore) DeleteUser(ctx context.Context, id string) error {
	key := s.namespacedKey(KindUser, id)
	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var entity UserEntity
		if err := tx.Get(key, &entity); err != nil {
			if errors.Is(err, datastore.ErrNoSuchEntity) {
				return oa.ErrUserNotFound
			}
			return err
		}
		keys := []*datastore.Key{key}
		if entity.HasEmail && entity.Email != "" {
			keys = append(keys, s.namespacedKey(KindEmail, strings.ToLower(entity.Email)))
		}
		if entity.Username != "" {
			keys = append(keys, s.namespacedKey(KindUsername, strings.ToLower(entity.Username)))
		}
		return tx.DeleteMulti(keys)
	})
	return err
}

func (s *UserStore) ListUsers(ctx context.Context, limit int) ([]*oa.User, error) {
	q := s.query(KindUser).Order("-created_at")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*oa.User
	it := s.client.Run(ctx, q)
	for {
		var entity UserEntity
		_, err := it.Next(&entity)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, entity.ToUser())
	}
	return out, nil
}

var _ oa.UserStore = (*UserStore)(nil)
