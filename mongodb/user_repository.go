package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/presh-ai/training-portal/domain"
)

// UserRepository is the MongoDB implementation of domain.UserRepository.
type UserRepository struct {
	users      *mongo.Collection
	activities *mongo.Collection
}

// NewUserRepository creates the repository and ensures its indexes exist.
// The unique email index is what makes concurrent get-or-create safe: the
// first writer wins and every loser sees a duplicate-key error.
func NewUserRepository(ctx context.Context, db *mongo.Database) (*UserRepository, error) {
	repo := &UserRepository{
		users:      db.Collection(UsersCollection),
		activities: db.Collection(ActivitiesCollection),
	}

	_, err := repo.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create email index: %w", err)
	}

	_, err = repo.activities.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create activity user_id index: %w", err)
	}

	return repo, nil
}

// GetUserByID retrieves a user by its record id.
func (r *UserRepository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	err := r.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by id: %w", err)
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by exact email match.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	err := r.users.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return &user, nil
}

// CreateUserWithEnrollment inserts the user and its enrollment activity as one
// unit. Standalone deployments have no multi-document transactions, so the
// unit is enforced by compensation: an activity-insert failure deletes the
// just-created user, leaving no half-provisioned state.
func (r *UserRepository) CreateUserWithEnrollment(
	ctx context.Context,
	user *domain.User,
	activity *domain.LearningActivity,
) error {
	now := time.Now().UTC()
	if user.ID == "" {
		user.ID = NewObjectID()
	}
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err := r.users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrEmailTaken
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	if activity.ID == "" {
		activity.ID = NewObjectID()
	}
	activity.UserID = user.ID
	activity.CreatedAt = now

	if _, err := r.activities.InsertOne(ctx, activity); err != nil {
		if _, delErr := r.users.DeleteOne(ctx, bson.M{"_id": user.ID}); delErr != nil {
			log.Error().Err(delErr).
				Str("user_id", user.ID).
				Msg("Failed to roll back user after activity insert failure")
		}
		return fmt.Errorf("failed to insert enrollment activity: %w", err)
	}

	return nil
}

// ListActivities returns a user's activity log, newest first.
func (r *UserRepository) ListActivities(ctx context.Context, userID string) ([]*domain.LearningActivity, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.activities.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer cursor.Close(ctx)

	var activities []*domain.LearningActivity
	if err := cursor.All(ctx, &activities); err != nil {
		return nil, fmt.Errorf("failed to decode activities: %w", err)
	}
	return activities, nil
}

var _ domain.UserRepository = (*UserRepository)(nil)
