// Package mongo implements the account store on MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	oa "github.com/panyam/authcore"
)

const usersCollection = "users"

// caseInsensitive is shared by the unique indexes and the lookups that must
// hit them.
var caseInsensitive = &options.Collation{Locale: "en", Strength: 2}

// UserStore implements oa.UserStore on a users collection.
type UserStore struct {
	coll *mongo.Collection

	// Now stamps CreatedAt/UpdatedAt. Defaults to time.Now.
	Now func() time.Time
}

func NewUserStore(db *mongo.Database) *UserStore {
	return &UserStore{coll: db.Collection(usersCollection)}
}

// Connect dials uri, verifies the connection and returns a store on dbName
// with its indexes in place. Close the returned client on shutdown.
func Connect(ctx context.Context, uri, dbName string) (*UserStore, *mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("pinging mongo: %w", err)
	}
	slog.Info("connected to MongoDB", "db", dbName)

	store := NewUserStore(client.Database(dbName))
	if err := store.EnsureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, nil, err
	}
	return store, client, nil
}

// EnsureIndexes creates the unique email and username indexes. Both are
// partial so that records without the field do not collide.
func (s *UserStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().
				SetName("email_unique").
				SetUnique(true).
				SetCollation(caseInsensitive).
				SetPartialFilterExpression(bson.M{"email": bson.M{"$type": "string"}}),
		},
		{
			Keys: bson.D{{Key: "username", Value: 1}},
			Options: options.Index().
				SetName("username_unique").
				SetUnique(true).
				SetCollation(caseInsensitive).
				SetPartialFilterExpression(bson.M{"username": bson.M{"$type": "string"}}),
		},
		{Keys: bson.D{{Key: "verificationToken", Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: "resetPasswordToken", Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("creating user indexes: %w", err)
	}
	return nil
}

func (s *UserStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// mapWriteError turns duplicate key failures into the store sentinels.
func mapWriteError(err error) error {
	if err == nil || !mongo.IsDuplicateKeyError(err) {
		return err
	}
	if strings.Contains(err.Error(), "username") {
		return fmt.Errorf("%w: %v", oa.ErrDuplicateUsername, err)
	}
	return fmt.Errorf("%w: %v", oa.ErrDuplicateEmail, err)
}

func (s *UserStore) findOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*oa.User, error) {
	var doc userDocument
	err := s.coll.FindOne(ctx, filter, opts...).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, oa.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toUser(), nil
}

func (s *UserStore) GetUserById(ctx context.Context, id string) (*oa.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*oa.User, error) {
	if email == "" {
		return nil, oa.ErrUserNotFound
	}
	return s.findOne(ctx, bson.M{"email": email}, options.FindOne().SetCollation(caseInsensitive))
}

func (s *UserStore) GetUserByUsername(ctx context.Context, username string) (*oa.User, error) {
	if username == "" {
		return nil, oa.ErrUserNotFound
	}
	return s.findOne(ctx, bson.M{"username": username}, options.FindOne().SetCollation(caseInsensitive))
}

func (s *UserStore) GetUserByVerificationToken(ctx context.Context, code string, now time.Time) (*oa.User, error) {
	if code == "" {
		return nil, oa.ErrUserNotFound
	}
	return s.findOne(ctx, bson.M{
		"verificationToken":          code,
		"verificationTokenExpiresAt": bson.M{"$gt": now},
	})
}

func (s *UserStore) GetUserByResetToken(ctx context.Context, token string, now time.Time) (*oa.User, error) {
	if token == "" {
		return nil, oa.ErrUserNotFound
	}
	return s.findOne(ctx, bson.M{
		"resetPasswordToken":     token,
		"resetPasswordExpiresAt": bson.M{"$gt": now},
	})
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
	_, err := s.coll.InsertOne(ctx, toDocument(user))
	return mapWriteError(err)
}

// updateDocument translates a patch into $set and $unset. Clearing a flow
// token unsets both halves in the same write.
func updateDocument(patch oa.UserPatch, now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	unset := bson.M{}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Email != nil {
		set["email"] = *patch.Email
	}
	if patch.Avatar != nil {
		set["avatar"] = *patch.Avatar
	}
	if patch.PasswordHash != nil {
		set["password"] = *patch.PasswordHash
	}
	if patch.IsVerified != nil {
		set["isVerified"] = *patch.IsVerified
	}
	if patch.LastLoginAt != nil {
		set["lastLogin"] = *patch.LastLoginAt
	}
	if t := patch.Verification; t != nil {
		if t.IsZero() {
			unset["verificationToken"] = ""
			unset["verificationTokenExpiresAt"] = ""
		} else {
			set["verificationToken"] = t.Token
			set["verificationTokenExpiresAt"] = t.ExpiresAt
		}
	}
	if t := patch.Reset; t != nil {
		if t.IsZero() {
			unset["resetPasswordToken"] = ""
			unset["resetPasswordExpiresAt"] = ""
		} else {
			set["resetPasswordToken"] = t.Token
			set["resetPasswordExpiresAt"] = t.ExpiresAt
		}
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return update
}

func (s *UserStore) UpdateUser(ctx context.Context, id string, patch oa.UserPatch) (*oa.User, error) {
	var doc userDocument
	err := s.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		updateDocument(patch, s.now()),
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, oa.ErrUserNotFound
	}
	if err != nil {
		return nil, mapWriteError(err)
	}
	return doc.toUser(), nil
}

func (s *UserStore) DeleteUser(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return oa.ErrUserNotFound
	}
	return nil
}

func (s *UserStore) ListUsers(ctx context.Context, limit int) ([]*oa.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*oa.User
	for cur.Next(ctx) {
		var doc userDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toUser())
	}
	return out, cur.Err()
}

var _ oa.UserStore = (*UserStore)(nil)
