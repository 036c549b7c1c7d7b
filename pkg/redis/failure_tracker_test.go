package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Requires a reachable Redis; set TEST_REDIS_ADDR (e.g. localhost:6379) to run.
func TestFailureTracker(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	ctx := context.Background()
	require.NoError(t, rdb.Ping(ctx).Err())

	tracker := NewFailureTracker(rdb, time.Minute)
	recipient := "tracker-test@example.com"
	require.NoError(t, tracker.Reset(ctx, recipient))

	for want := 1; want <= 3; want++ {
		got, err := tracker.RecordFailure(ctx, recipient)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	ttl, err := rdb.TTL(ctx, streakKey(recipient)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, tracker.Reset(ctx, recipient))
	got, err := tracker.RecordFailure(ctx, recipient)
	require.NoError(t, err)
	assert.Equal(t, 1, got)
	require.NoError(t, tracker.Reset(ctx, recipient))
}
