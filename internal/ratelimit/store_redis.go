package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "bloodbank:ratelimit:"

// RedisStore keeps the sliding window in a sorted set scored by arrival time,
// so every instance sharing the Redis sees the same count.
type RedisStore struct {
	client redis.Cmdable
	now    func() time.Time
}

func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	now := s.now()
	k := keyPrefix + key
	member := strconv.FormatInt(now.UnixNano(), 10) + ":" + uuid.NewString()
	cutoff := strconv.FormatInt(now.Add(-window).UnixNano(), 10)

	var (
		count  *redis.IntCmd
		oldest *redis.ZSliceCmd
	)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRemRangeByScore(ctx, k, "-inf", cutoff)
		p.ZAdd(ctx, k, redis.Z{Score: float64(now.UnixNano()), Member: member})
		count = p.ZCard(ctx, k)
		oldest = p.ZRangeWithScores(ctx, k, 0, 0)
		p.PExpire(ctx, k, window)
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("rate limit window %s: %w", key, err)
	}

	resetAt := now.Add(window)
	if z := oldest.Val(); len(z) > 0 {
		resetAt = time.Unix(0, int64(z[0].Score)).Add(window)
	}

	n := int(count.Val())
	if n > limit {
		// The rejected request must not hold a slot.
		if err := s.client.ZRem(ctx, k, member).Err(); err != nil {
			return Result{}, fmt.Errorf("rate limit release %s: %w", key, err)
		}
		return Result{Limit: limit, ResetAt: resetAt, RetryAfter: resetAt.Sub(now)}, nil
	}
	return Result{Allowed: true, Limit: limit, Remaining: limit - n, ResetAt: resetAt}, nil
}
