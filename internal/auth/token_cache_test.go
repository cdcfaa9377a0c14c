package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func TestRefreshSessionIsSingleUse(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewSessionStore(client, time.Hour)
	ctx := context.Background()

	token, err := store.CreateRefresh(ctx, "user-1")
	require.NoError(t, err)

	userID, err := store.ConsumeRefresh(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)

	userID, err = store.ConsumeRefresh(ctx, token)
	require.NoError(t, err)
	assert.Empty(t, userID)
}

func TestRefreshSessionExpires(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewSessionStore(client, time.Hour)
	ctx := context.Background()

	token, err := store.CreateRefresh(ctx, "user-1")
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)

	userID, err := store.ConsumeRefresh(ctx, token)
	require.NoError(t, err)
	assert.Empty(t, userID)
}

func TestDeleteRefresh(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewSessionStore(client, time.Hour)
	ctx := context.Background()

	token, err := store.CreateRefresh(ctx, "user-1")
	require.NoError(t, err)
	require.NoError(t, store.DeleteRefresh(ctx, token))

	userID, err := store.ConsumeRefresh(ctx, token)
	require.NoError(t, err)
	assert.Empty(t, userID)
}

func TestRevoke(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewSessionStore(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Revoke(ctx, "jti-1", time.Now().Add(time.Minute)))

	revoked, err := store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = store.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)

	// already expired tokens need no blacklist entry
	require.NoError(t, store.Revoke(ctx, "jti-3", time.Now().Add(-time.Minute)))
	assert.False(t, mr.Exists(revokedKeyPrefix+"jti-3"))

	mr.FastForward(2 * time.Minute)
	revoked, err = store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}
