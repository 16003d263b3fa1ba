package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares cart references between instances.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (r *RedisStore) Get(ctx context.Context, tenantID, contactID string) (string, error) {
	orderID, err := r.client.Get(ctx, sessionKey(tenantID, contactID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	if err != nil {
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	return orderID, nil
}

func (r *RedisStore) Set(ctx context.Context, tenantID, contactID, orderID string) error {
	if err := r.client.Set(ctx, sessionKey(tenantID, contactID), orderID, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Clear(ctx context.Context, tenantID, contactID string) error {
	if err := r.client.Del(ctx, sessionKey(tenantID, contactID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func sessionKey(tenantID, contactID string) string {
	return "session:" + Key(tenantID, contactID)
}
