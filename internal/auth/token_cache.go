package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	refreshKeyPrefix = "auth:refresh:"
	revokedKeyPrefix = "auth:revoked:"
)

// SessionStore keeps refresh sessions and revoked access-token IDs in Redis.
type SessionStore struct {
	Client     *redis.Client
	RefreshTTL time.Duration
}

func NewSessionStore(client *redis.Client, refreshTTL time.Duration) *SessionStore {
	return &SessionStore{Client: client, RefreshTTL: refreshTTL}
}

// CreateRefresh opens a refresh session for userID and returns its token.
func (s *SessionStore) CreateRefresh(ctx context.Context, userID string) (string, error) {
	if s.Client == nil {
		return "", fmt.Errorf("redis client not initialized")
	}

	token := uuid.NewString() + uuid.NewString()[:8]
	if err := s.Client.Set(ctx, refreshKeyPrefix+token, userID, s.RefreshTTL).Err(); err != nil {
		return "", fmt.Errorf("failed to store refresh session: %w", err)
	}
	return token, nil
}

// ConsumeRefresh deletes the session and returns its user. Each refresh token
// works once; "" means unknown or expired.
func (s *SessionStore) ConsumeRefresh(ctx context.Context, token string) (string, error) {
	userID, err := s.Client.GetDel(ctx, refreshKeyPrefix+token).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read refresh session: %w", err)
	}
	return userID, nil
}

func (s *SessionStore) DeleteRefresh(ctx context.Context, token string) error {
	if err := s.Client.Del(ctx, refreshKeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("failed to delete refresh session: %w", err)
	}
	return nil
}

// Revoke blacklists an access token ID until it would have expired anyway.
func (s *SessionStore) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := s.Client.Set(ctx, revokedKeyPrefix+jti, 1, ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (s *SessionStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.Client.Exists(ctx, revokedKeyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}
	return n > 0, nil
}
