package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/presh-ai/training-portal/domain"
)

func TestMemorySessionStore_SaveGetDelete(t *testing.T) {
	store := NewMemorySessionStore(time.Hour)
	defer store.Close()

	ctx := context.Background()
	session := &domain.Session{
		ID:        "s1",
		UserID:    "u1",
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}

	require.NoError(t, store.Save(ctx, session))

	loaded, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "u1", loaded.UserID)

	require.NoError(t, store.Delete(ctx, "s1"))
	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestMemorySessionStore_UnknownID(t *testing.T) {
	store := NewMemorySessionStore(time.Hour)
	defer store.Close()

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestMemorySessionStore_ExpiredSessionIsGone(t *testing.T) {
	store := NewMemorySessionStore(time.Hour)
	defer store.Close()

	ctx := context.Background()
	session := &domain.Session{
		ID:        "s1",
		ExpiresAt: time.Now().UTC().Add(10 * time.Millisecond),
	}
	require.NoError(t, store.Save(ctx, session))

	time.Sleep(50 * time.Millisecond)
	_, err := store.Get(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}
