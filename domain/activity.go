package domain

import "time"

// ActivityTypeEnrollment marks a user's first successful join.
const ActivityTypeEnrollment = "enrollment"

// LearningActivity is an append-only log entry in a user's training history.
type LearningActivity struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	UserID       string    `bson:"user_id" json:"user_id"`
	ActivityType string    `bson:"activity_type" json:"activity_type"`
	Description  string    `bson:"description" json:"description"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
}
