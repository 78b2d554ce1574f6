package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/Abrar11050/exam-conductor/internal/model"
	"github.com/Abrar11050/exam-conductor/internal/store"
)

// CreateUser inserts a new user. It returns model.ErrConflict when the
// username is taken.
func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now().UTC()
	if _, err := s.users.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return model.ErrConflict
		}
		slog.Error("failed to create user", "username", u.Username, "error", err)
		return fmt.Errorf("failed to create user: %w", err)
	}
	slog.Info("created user", "id", u.ID, "username", u.Username, "role", u.Role)
	return nil
}

func (s *Store) findUser(ctx context.Context, filter bson.M) (*model.User, error) {
	var u model.User
	err := s.users.FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.findUser(ctx, bson.M{"username": username})
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return s.findUser(ctx, bson.M{"_id": id})
}

func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	cursor, err := s.users.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	var users []model.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, nil
}

func (s *Store) SetUserActive(ctx context.Context, id string, active bool) (bool, error) {
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"active": active}})
	if err != nil {
		return false, fmt.Errorf("failed to update user: %w", err)
	}
	return res.MatchedCount > 0, nil
}

func (s *Store) UserCount(ctx context.Context) (int, error) {
	n, err := s.users.CountDocuments(ctx, bson.M{})
	return int(n), err
}

// CreateAuthSession creates a new auth session token for a user.
func (s *Store) CreateAuthSession(ctx context.Context, userID string) (string, error) {
	token, err := store.GenerateToken()
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	sess := model.AuthSession{ID: token, UserID: userID, CreatedAt: now, ExpiresAt: now.Add(store.AuthSessionTTL)}
	if _, err := s.sessions.InsertOne(ctx, sess); err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	return token, nil
}

// GetAuthSession returns the session for token, or nil if it is missing or
// expired. The TTL index removes expired sessions lazily, so expiry is
// checked here too.
func (s *Store) GetAuthSession(ctx context.Context, token string) (*model.AuthSession, error) {
	var sess model.AuthSession
	err := s.sessions.FindOne(ctx, bson.M{"_id": token}).Decode(&sess)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if time.Now().After(sess.ExpiresAt) {
		return nil, nil
	}
	return &sess, nil
}

func (s *Store) DeleteAuthSession(ctx context.Context, token string) error {
	_, err := s.sessions.DeleteOne(ctx, bson.M{"_id": token})
	return err
}
