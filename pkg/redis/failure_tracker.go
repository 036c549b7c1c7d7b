package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/smartshop/smartshop-backend/pkg/logger"
)

const streakKeyPrefix = "mail:failures:"

// FailureTracker keeps per-recipient consecutive delivery failure counters in Redis.
// Counters expire after ttl without new failures.
type FailureTracker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewFailureTracker(client *redis.Client, ttl time.Duration) *FailureTracker {
	return &FailureTracker{client: client, ttl: ttl}
}

func streakKey(recipient string) string {
	return streakKeyPrefix + recipient
}

// RecordFailure increments the recipient streak and returns the new value
func (t *FailureTracker) RecordFailure(ctx context.Context, recipient string) (int, error) {
	key := streakKey(recipient)

	pipe := t.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, t.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Error("Failed to record delivery failure in Redis", err, map[string]interface{}{
			"recipient": recipient,
		})
		return 0, fmt.Errorf("redis incr: %w", err)
	}
	return int(incr.Val()), nil
}

// Reset clears the streak after a successful delivery
func (t *FailureTracker) Reset(ctx context.Context, recipient string) error {
	if err := t.client.Del(ctx, streakKey(recipient)).Err(); err != nil {
		logger.Error("Failed to reset delivery streak in Redis", err, map[string]interface{}{
			"recipient": recipient,
		})
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
