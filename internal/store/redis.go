// Package store persists consumer idempotency marks and feedback
// invalidation reports in redis.
package store

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pushgate/apns/internal/protocol"
)

const invalidationKey = "apns:invalidated"

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr string) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

// IsProcessed reports whether a queue envelope was already handled.
func (r *RedisStore) IsProcessed(ctx context.Context, msgID string) (bool, error) {
	count, err := r.client.Exists(ctx, "processed:"+msgID).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkProcessed records an envelope as handled for ttl.
func (r *RedisStore) MarkProcessed(ctx context.Context, msgID string, ttl time.Duration) error {
	return r.client.Set(ctx, "processed:"+msgID, "1", ttl).Err()
}

// RecordInvalidation stores one feedback record, keyed by token with
// the invalidation epoch as score. Re-reports of the same token keep
// the newest timestamp.
func (r *RedisStore) RecordInvalidation(ctx context.Context, rec protocol.FeedbackRecord) error {
	return r.client.ZAdd(ctx, invalidationKey, redis.Z{
		Score:  float64(rec.Epoch),
		Member: rec.TokenHex(),
	}).Err()
}

// InvalidatedSince lists tokens invalidated at or after epoch.
func (r *RedisStore) InvalidatedSince(ctx context.Context, epoch int64) ([]string, error) {
	return r.client.ZRangeByScore(ctx, invalidationKey, &redis.ZRangeBy{
		Min: strconv.FormatInt(epoch, 10),
		Max: "+inf",
	}).Result()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
