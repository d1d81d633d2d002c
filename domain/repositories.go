package domain

import "context"

// UserRepository persists users and their learning activities.
type UserRepository interface {
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// CreateUserWithEnrollment persists a new user together with its
	// enrollment activity as one unit: if the activity insert fails the user
	// insert is rolled back. Returns ErrEmailTaken when a record with the
	// same email already exists, including under a concurrent-create race.
	CreateUserWithEnrollment(ctx context.Context, user *User, activity *LearningActivity) error

	// ListActivities returns a user's activity log, newest first.
	ListActivities(ctx context.Context, userID string) ([]*LearningActivity, error)
}
