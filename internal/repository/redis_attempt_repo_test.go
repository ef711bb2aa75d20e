package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupAttemptRepo(t *testing.T, max int) (*RedisAttemptRepo, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisAttemptRepo(client, max, time.Minute), mr
}

func TestRedisAttemptRepo_LocksAfterMaxFailures(t *testing.T) {
	repo, _ := setupAttemptRepo(t, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := repo.Allow(ctx, "a@x.com")
		require.NoError(t, err)
		assert.True(t, ok)
		require.NoError(t, repo.Fail(ctx, "a@x.com"))
	}

	ok, err := repo.Allow(ctx, "a@x.com")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Allow(ctx, "b@x.com")
	require.NoError(t, err)
	assert.True(t, ok, "counters are per key")
}

func TestRedisAttemptRepo_WindowExpires(t *testing.T) {
	repo, mr := setupAttemptRepo(t, 1)
	ctx := context.Background()

	require.NoError(t, repo.Fail(ctx, "a@x.com"))
	assert.Equal(t, time.Minute, mr.TTL("auth:login_attempts:a@x.com"))

	ok, err := repo.Allow(ctx, "a@x.com")
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(time.Minute + time.Second)

	ok, err = repo.Allow(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisAttemptRepo_Reset(t *testing.T) {
	repo, mr := setupAttemptRepo(t, 1)
	ctx := context.Background()

	require.NoError(t, repo.Fail(ctx, "a@x.com"))
	require.NoError(t, repo.Reset(ctx, "a@x.com"))
	assert.False(t, mr.Exists("auth:login_attempts:a@x.com"))

	ok, err := repo.Allow(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisAttemptRepo_Disabled(t *testing.T) {
	repo, mr := setupAttemptRepo(t, 0)
	ctx := context.Background()

	require.NoError(t, repo.Fail(ctx, "a@x.com"))
	assert.False(t, mr.Exists("auth:login_attempts:a@x.com"))

	ok, err := repo.Allow(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisAttemptRepo_RedisDown(t *testing.T) {
	repo, mr := setupAttemptRepo(t, 3)
	mr.Close()

	_, err := repo.Allow(context.Background(), "a@x.com")
	assert.Error(t, err)
	assert.Error(t, repo.Fail(context.Background(), "a@x.com"))
}
