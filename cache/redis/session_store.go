package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/presh-ai/training-portal/domain"
)

// SessionStore implements domain.SessionStore on Redis. Entries expire via
// the key TTL derived from the session's ExpiresAt.
type SessionStore struct {
	client     *redis.Client
	prefix     string
	defaultTTL time.Duration
}

// NewSessionStore creates a new SessionStore instance.
func NewSessionStore(client *redis.Client, prefix string, defaultTTL time.Duration) *SessionStore {
	return &SessionStore{
		client:     client,
		prefix:     prefix,
		defaultTTL: defaultTTL,
	}
}

// redisKey returns the Redis key for a given session id.
func (s *SessionStore) redisKey(id string) string {
	return fmt.Sprintf("%s:session:%s", s.prefix, id)
}

// Save stores the session as JSON with a TTL matching its expiry.
func (s *SessionStore) Save(ctx context.Context, session *domain.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ttl := s.defaultTTL
	if !session.ExpiresAt.IsZero() {
		ttl = time.Until(session.ExpiresAt)
	}
	if ttl <= 0 {
		return s.Delete(ctx, session.ID)
	}

	if err := s.client.Set(ctx, s.redisKey(session.ID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session in Redis: %w", err)
	}
	return nil
}

// Get retrieves a session from Redis.
func (s *SessionStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	payload, err := s.client.Get(ctx, s.redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session from Redis: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// Delete removes a session from Redis.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.redisKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session from Redis: %w", err)
	}
	return nil
}

var _ domain.SessionStore = (*SessionStore)(nil)
