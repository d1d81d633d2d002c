package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/presh-ai/training-portal/domain"
)

// MemorySessionStore implements domain.SessionStore using ttlcache.
// It is the default backend when no Redis address is configured.
type MemorySessionStore struct {
	cache *ttlcache.Cache[string, *domain.Session]
}

// NewMemorySessionStore creates a new in-memory session store with automatic
// expiry of stale entries.
func NewMemorySessionStore(defaultTTL time.Duration) *MemorySessionStore {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, *domain.Session](defaultTTL),
		ttlcache.WithDisableTouchOnHit[string, *domain.Session](),
	)

	// Start the cleanup process
	go cache.Start()

	return &MemorySessionStore{
		cache: cache,
	}
}

// Save implements domain.SessionStore.Save.
func (s *MemorySessionStore) Save(_ context.Context, session *domain.Session) error {
	ttl := ttlcache.DefaultTTL
	if !session.ExpiresAt.IsZero() {
		ttl = time.Until(session.ExpiresAt)
	}
	s.cache.Set(session.ID, session, ttl)
	return nil
}

// Get implements domain.SessionStore.Get.
func (s *MemorySessionStore) Get(_ context.Context, id string) (*domain.Session, error) {
	item := s.cache.Get(id)
	if item == nil {
		return nil, domain.ErrSessionNotFound
	}
	return item.Value(), nil
}

// Delete implements domain.SessionStore.Delete.
func (s *MemorySessionStore) Delete(_ context.Context, id string) error {
	s.cache.Delete(id)
	return nil
}

// Close stops the cleanup goroutine.
func (s *MemorySessionStore) Close() error {
	s.cache.Stop()
	return nil
}

var _ domain.SessionStore = (*MemorySessionStore)(nil)
