// Package redisstore implements the ephemeral review session store on
// Redis. State lives under one key per learner with a TTL, so an abandoned
// session evaporates on its own.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/heartmarshall/leerming-backend/internal/config"
	"github.com/heartmarshall/leerming-backend/internal/domain"
)

const sessionKeyPrefix = "review:session:"

// SessionStore persists in-flight review session state in Redis.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionStore creates a session store over an existing Redis client.
func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

// NewClient creates a Redis client from config and pings it for fail-fast
// validation.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// Get returns the learner's session state.
// Returns domain.ErrNotFound when no session is stored.
func (s *SessionStore) Get(ctx context.Context, ownerID uuid.UUID) (*domain.SessionState, error) {
	raw, err := s.client.Get(ctx, sessionKey(ownerID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("session state %s: %w", ownerID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get session state: %w", err)
	}

	var state domain.SessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decode session state: %w", err)
	}

	return &state, nil
}

// Put stores the learner's session state, refreshing the TTL.
func (s *SessionStore) Put(ctx context.Context, state *domain.SessionState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}

	if err := s.client.Set(ctx, sessionKey(state.OwnerID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("store session state: %w", err)
	}

	return nil
}

// Delete removes the learner's session state. Deleting a missing session is
// a no-op.
func (s *SessionStore) Delete(ctx context.Context, ownerID uuid.UUID) error {
	if err := s.client.Del(ctx, sessionKey(ownerID)).Err(); err != nil {
		return fmt.Errorf("delete session state: %w", err)
	}

	return nil
}

func sessionKey(ownerID uuid.UUID) string {
	return sessionKeyPrefix + ownerID.String()
}
