package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/presh-ai/training-portal/domain"
)

// SessionCookieName is the cookie carrying the opaque server-side session id.
const SessionCookieName = "portal_session"

// SessionService manages the lifecycle of server-side sessions on top of a
// pluggable store (in-memory or Redis).
type SessionService struct {
	store domain.SessionStore
	ttl   time.Duration
}

// NewSessionService creates a new SessionService with the given session TTL.
func NewSessionService(store domain.SessionStore, ttl time.Duration) *SessionService {
	return &SessionService{store: store, ttl: ttl}
}

// New creates and persists an empty session.
func (s *SessionService) New(ctx context.Context) (*domain.Session, error) {
	now := time.Now().UTC()
	session := &domain.Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return session, nil
}

// Get retrieves a session by id. Returns domain.ErrSessionNotFound for
// unknown or expired ids.
func (s *SessionService) Get(ctx context.Context, id string) (*domain.Session, error) {
	return s.store.Get(ctx, id)
}

// Save persists changes made to a session.
func (s *SessionService) Save(ctx context.Context, session *domain.Session) error {
	return s.store.Save(ctx, session)
}

// Issue writes the authenticated identity into the session and clears the
// transient login state.
func (s *SessionService) Issue(ctx context.Context, session *domain.Session, user *domain.User) error {
	session.UserID = user.ID
	session.UserEmail = user.Email
	session.UserName = user.Name
	session.OAuthState = ""
	return s.store.Save(ctx, session)
}

// Clear removes the session entirely. Used by logout.
func (s *SessionService) Clear(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}
