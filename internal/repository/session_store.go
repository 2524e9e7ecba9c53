package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aryan0dhankhar/rentaladmin/internal/domain"
	"github.com/aryan0dhankhar/rentaladmin/internal/infrastructure/redis"
)

const (
	revokedSessionPrefix = "session:revoked:"
	verificationPrefix   = "verify:"
)

// RedisSessionStore implements domain.SessionStore using Redis
type RedisSessionStore struct {
	redis  *redis.Client
	logger *slog.Logger
}

// NewRedisSessionStore creates a new session store
func NewRedisSessionStore(redisClient *redis.Client, logger *slog.Logger) *RedisSessionStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisSessionStore{
		redis:  redisClient,
		logger: logger,
	}
}

// Revoke marks a session id as signed out until ttl elapses
func (s *RedisSessionStore) Revoke(ctx context.Context, sessionID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Second
	}
	if err := s.redis.Set(ctx, revokedSessionPrefix+sessionID, "1", ttl); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	s.logger.Debug("session revoked", slog.String("session_id", sessionID))
	return nil
}

// IsRevoked reports whether the session id was signed out
func (s *RedisSessionStore) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	ok, err := s.redis.Exists(ctx, revokedSessionPrefix+sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to check session: %w", err)
	}
	return ok, nil
}

// SaveVerification stores a one-time email verification token
func (s *RedisSessionStore) SaveVerification(ctx context.Context, token, userID string, ttl time.Duration) error {
	if err := s.redis.Set(ctx, verificationPrefix+token, userID, ttl); err != nil {
		return fmt.Errorf("failed to store verification token: %w", err)
	}
	return nil
}

// ConsumeVerification returns the user id for token and deletes it
func (s *RedisSessionStore) ConsumeVerification(ctx context.Context, token string) (string, error) {
	userID, err := s.redis.GetDel(ctx, verificationPrefix+token)
	if err != nil {
		if errors.Is(err, redis.ErrKeyNotFound) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("failed to consume verification token: %w", err)
	}
	return userID, nil
}
