package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisAttemptRepo implements domain.AttemptLimiter using Redis counters.
// Each failed login increments "auth:login_attempts:<email>"; the key expires
// after the window, so the lockout lifts by itself.
type RedisAttemptRepo struct {
	client      *redis.Client
	maxAttempts int
	window      time.Duration
}

// NewRedisAttemptRepo creates a new repository instance.
// maxAttempts <= 0 disables throttling.
func NewRedisAttemptRepo(client *redis.Client, maxAttempts int, window time.Duration) *RedisAttemptRepo {
	return &RedisAttemptRepo{client: client, maxAttempts: maxAttempts, window: window}
}

func attemptKey(key string) string {
	return fmt.Sprintf("auth:login_attempts:%s", key)
}

// Allow reports whether the failure counter for key is still under the limit.
func (r *RedisAttemptRepo) Allow(ctx context.Context, key string) (bool, error) {
	if r.maxAttempts <= 0 {
		return true, nil
	}

	n, err := r.client.Get(ctx, attemptKey(key)).Int()
	if err != nil {
		if err == redis.Nil {
			return true, nil
		}
		return false, fmt.Errorf("redis error: %w", err)
	}

	return n < r.maxAttempts, nil
}

// Fail increments the counter, starting the window on the first failure.
func (r *RedisAttemptRepo) Fail(ctx context.Context, key string) error {
	if r.maxAttempts <= 0 {
		return nil
	}

	k := attemptKey(key)
	n, err := r.client.Incr(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("failed to record login attempt in redis: %w", err)
	}
	if n == 1 {
		if err := r.client.Expire(ctx, k, r.window).Err(); err != nil {
			return fmt.Errorf("failed to set attempt window in redis: %w", err)
		}
	}
	return nil
}

// Reset removes the counter immediately after a successful login.
func (r *RedisAttemptRepo) Reset(ctx context.Context, key string) error {
	if r.maxAttempts <= 0 {
		return nil
	}
	return r.client.Del(ctx, attemptKey(key)).Err()
}
