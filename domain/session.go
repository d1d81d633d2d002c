package domain

import (
	"context"
	"time"
)

// Session is the server-side state bound to one browser. It holds the
// authenticated identity after a successful login and, transiently, the
// anti-forgery state for an in-flight login attempt.
type Session struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id,omitempty"`
	UserEmail  string    `json:"user_email,omitempty"`
	UserName   string    `json:"user_name,omitempty"`
	OAuthState string    `json:"oauth_state,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Authenticated reports whether the session carries a logged-in identity.
func (s *Session) Authenticated() bool {
	return s != nil && s.UserID != ""
}

// SessionStore persists sessions keyed by their opaque id. Implementations
// must honor ExpiresAt; Get on an expired or unknown id returns
// ErrSessionNotFound.
type SessionStore interface {
	Save(ctx context.Context, session *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}
