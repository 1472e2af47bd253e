package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore handles Redis operations shared by the realtime feed and rate limiting.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Client exposes the underlying client for pub/sub.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// rateLimitKey returns the key for a fixed-window counter.
func rateLimitKey(subject string, windowSecs int64, now time.Time) string {
	return fmt.Sprintf("ratelimit:%s:%d", subject, now.Unix()/windowSecs)
}

// CheckAndIncrement counts one request for subject in the current window.
// Returns (allowed, remaining, resetAt).
func (s *RedisStore) CheckAndIncrement(ctx context.Context, subject string, limit int, window time.Duration) (bool, int, time.Time, error) {
	now := time.Now()
	windowSecs := int64(window.Seconds())
	if windowSecs < 1 {
		windowSecs = 1
	}
	key := rateLimitKey(subject, windowSecs, now)

	pipe := s.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 2*time.Duration(windowSecs)*time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, time.Time{}, err
	}

	count := int(incr.Val())
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	resetAt := time.Unix((now.Unix()/windowSecs+1)*windowSecs, 0)

	return count <= limit, remaining, resetAt, nil
}
