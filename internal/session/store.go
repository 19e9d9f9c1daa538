// Package session maps opaque auth tokens to user IDs with a TTL.
// Redis exclusively owns the mapping, nothing else writes these keys
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "auth_"

// ErrInvalidToken is returned when a token is absent, expired or destroyed
var ErrInvalidToken = errors.New("invalid or expired token")

type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{
		rdb: rdb,
		ttl: ttl,
	}
}

// Create generates a fresh opaque token and binds it to userID until
// the TTL runs out or Destroy is called
func (s *Store) Create(ctx context.Context, userID string) (string, error) {
	token := uuid.NewString()

	err := s.rdb.Set(ctx, keyPrefix+token, userID, s.ttl).Err()
	if err != nil {
		return "", fmt.Errorf("failed to store session, %w", err)
	}

	return token, nil
}

// Resolve returns the user ID a live token belongs to
func (s *Store) Resolve(ctx context.Context, token string) (string, error) {
	userID, err := s.rdb.Get(ctx, keyPrefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrInvalidToken
		}

		return "", fmt.Errorf("failed to look up session, %w", err)
	}

	return userID, nil
}

// Destroy removes a token. Removing an absent token is not an error
func (s *Store) Destroy(ctx context.Context, token string) error {
	err := s.rdb.Del(ctx, keyPrefix+token).Err()
	if err != nil {
		return fmt.Errorf("failed to destroy session, %w", err)
	}

	return nil
}

// Ping reports whether redis is reachable. Used by the status endpoint
func (s *Store) Ping(ctx context.Context) bool {
	return s.rdb.Ping(ctx).Err() == nil
}
