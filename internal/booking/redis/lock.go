package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"

	"github.com/go-redis/redis/v8"
)

const (
	keyPrefix     = "booking_idem:"
	pendingMarker = "__pending__"
)

// releaseIfPending deletes the key only while it still holds the pending marker,
// so a late Abort never erases a completed booking number.
var releaseIfPending = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis stores Idempotency-Key claims for booking creation.
type Redis struct {
	Client *redis.Client
	Logger *logger.Logger
	// LockTTL bounds how long an unfinished request holds its key.
	LockTTL time.Duration
	// ResultTTL is how long a finished key replays its booking.
	ResultTTL time.Duration
}

func NewRedis(client *redis.Client, log *logger.Logger, lockTTL, resultTTL time.Duration) *Redis {
	if lockTTL <= 0 {
		lockTTL = 10 * time.Second
	}
	if resultTTL <= 0 {
		resultTTL = 24 * time.Hour
	}
	return &Redis{
		Client:    client,
		Logger:    log,
		LockTTL:   lockTTL,
		ResultTTL: resultTTL,
	}
}

// Begin claims key for a new request. When the key is taken it returns the
// record stored for it, or nil while the first request is still running.
func (r *Redis) Begin(ctx context.Context, key string) (*models.IdempotencyRecord, bool, error) {
	k := keyPrefix + key
	ok, err := r.Client.SetNX(ctx, k, pendingMarker, r.LockTTL).Result()
	if err != nil {
		return nil, false, fmt.Errorf("claim %s: %w", k, err)
	}
	if ok {
		return nil, true, nil
	}

	val, err := r.Client.Get(ctx, k).Result()
	if err == redis.Nil {
		// expired between SETNX and GET; the caller may retry
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", k, err)
	}
	if val == pendingMarker {
		return nil, false, nil
	}

	var record models.IdempotencyRecord
	if err := json.Unmarshal([]byte(val), &record); err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", k, err)
	}
	return &record, false, nil
}

// Complete records the booking produced for key and the request fingerprint.
func (r *Redis) Complete(ctx context.Context, key string, record models.IdempotencyRecord) error {
	k := keyPrefix + key
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode %s: %w", k, err)
	}
	if err := r.Client.Set(ctx, k, payload, r.ResultTTL).Err(); err != nil {
		return fmt.Errorf("store %s: %w", k, err)
	}
	if r.Logger != nil {
		r.Logger.Debug("REDIS", fmt.Sprintf("Idempotency key %s -> %s", k, record.BookingNumber))
	}
	return nil
}

// Abort frees key after a failed request so the client can retry it.
func (r *Redis) Abort(ctx context.Context, key string) error {
	k := keyPrefix + key
	if err := releaseIfPending.Run(ctx, r.Client, []string{k}, pendingMarker).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release %s: %w", k, err)
	}
	return nil
}
