package domain

import "time"

// DefaultRole is assigned to every user provisioned through the login flow.
const DefaultRole = "Marketing Strategist"

// User represents a portal member. Records are created exactly once, on the
// first successful authorized login, and are never re-synced from the IdP.
type User struct {
	ID               string    `bson:"_id,omitempty" json:"id"`
	Name             string    `bson:"name" json:"name"`
	Email            string    `bson:"email" json:"email"`
	Role             string    `bson:"role" json:"role"`
	CurrentTrack     int       `bson:"current_track" json:"currentTrack"`
	CurrentModule    int       `bson:"current_module" json:"currentModule"`
	CompletedModules []string  `bson:"completed_modules" json:"completedModules"`
	Certifications   []string  `bson:"certifications" json:"certifications"`
	CreatedAt        time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at" json:"updated_at"`
}
