package redis

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a Redis client backed by miniredis
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		mr.Close()
		t.Fatalf("Failed to connect to miniredis: %v", err)
	}

	return client, mr
}

func cleanupTestRedis(client *redis.Client, mr *miniredis.Miniredis) {
	if client != nil {
		client.Close()
	}
	if mr != nil {
		mr.Close()
	}
}

func TestIdempotency_BeginCompleteReplay(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	r := NewRedis(client, logger.NewNop(), time.Second*10, time.Hour)
	ctx := context.Background()

	existing, started, err := r.Begin(ctx, "user:u1:abc")
	require.NoError(t, err)
	assert.True(t, started)
	assert.Nil(t, existing)

	// A second request while the first is running
	existing, started, err = r.Begin(ctx, "user:u1:abc")
	require.NoError(t, err)
	assert.False(t, started)
	assert.Nil(t, existing)

	require.NoError(t, r.Complete(ctx, "user:u1:abc", models.IdempotencyRecord{
		BookingNumber: "BK-20261023-ABC123",
		Fingerprint:   "f1",
	}))

	existing, started, err = r.Begin(ctx, "user:u1:abc")
	require.NoError(t, err)
	assert.False(t, started)
	require.NotNil(t, existing)
	assert.Equal(t, "BK-20261023-ABC123", existing.BookingNumber)
	assert.Equal(t, "f1", existing.Fingerprint)

	assert.Equal(t, time.Hour, mr.TTL(keyPrefix+"user:u1:abc"))
}

func TestIdempotency_AbortOnlyReleasesPending(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	r := NewRedis(client, logger.NewNop(), time.Second*10, time.Hour)
	ctx := context.Background()

	_, started, err := r.Begin(ctx, "guest:k1")
	require.NoError(t, err)
	require.True(t, started)

	require.NoError(t, r.Abort(ctx, "guest:k1"))
	assert.False(t, mr.Exists(keyPrefix+"guest:k1"))

	_, started, err = r.Begin(ctx, "guest:k1")
	require.NoError(t, err)
	assert.True(t, started, "aborted key can be claimed again")

	require.NoError(t, r.Complete(ctx, "guest:k1", models.IdempotencyRecord{BookingNumber: "BK-20261023-ZZZ999", Fingerprint: "f2"}))
	require.NoError(t, r.Abort(ctx, "guest:k1"))

	existing, _, err := r.Begin(ctx, "guest:k1")
	require.NoError(t, err)
	require.NotNil(t, existing, "abort must not erase a finished key")
	assert.Equal(t, "BK-20261023-ZZZ999", existing.BookingNumber)

	// Aborting an unknown key is a no-op
	assert.NoError(t, r.Abort(ctx, "guest:missing"))
}

func TestIdempotency_PendingClaimExpires(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	r := NewRedis(client, logger.NewNop(), 5*time.Second, time.Hour)
	ctx := context.Background()

	_, started, err := r.Begin(ctx, "guest:slow")
	require.NoError(t, err)
	require.True(t, started)

	mr.FastForward(6 * time.Second)

	_, started, err = r.Begin(ctx, "guest:slow")
	require.NoError(t, err)
	assert.True(t, started)
}

func TestIdempotency_ConcurrentBegin(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	r := NewRedis(client, logger.NewNop(), 0, 0)
	ctx := context.Background()

	const numGoroutines = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, started, err := r.Begin(ctx, "user:u1:race")
			if err != nil {
				t.Errorf("begin: %v", err)
				return
			}
			if started {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners, fmt.Sprintf("exactly one of %d requests should win", numGoroutines))
}
