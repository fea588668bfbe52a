package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "onboard:ratelimit:"

// Redis implements Store with one sorted set per key, scored by admission
// time in nanoseconds, so every replica shares the window.
type Redis struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client, now: time.Now}
}

// AllowN trims and counts in one transaction, then records the admission.
// Two concurrent callers may both pass at the limit edge; the window
// tolerates that overshoot.
func (s *Redis) AllowN(ctx context.Context, key string, cost, limit int, window time.Duration) (Result, error) {
	now := s.now()
	key = redisKeyPrefix + key
	cutoff := strconv.FormatInt(now.Add(-window).UnixNano(), 10)

	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", cutoff)
	card := pipe.ZCard(ctx, key)
	oldest := pipe.ZRangeWithScores(ctx, key, 0, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("read window: %w", err)
	}

	count := int(card.Val())
	resetAt := now.Add(window)
	if zs := oldest.Val(); len(zs) > 0 {
		resetAt = time.Unix(0, int64(zs[0].Score)).Add(window)
	}
	if count+cost > limit {
		return Result{Allowed: false, Limit: limit, Remaining: 0, ResetAt: resetAt}, nil
	}

	if cost == 0 {
		return Result{Allowed: true, Limit: limit, Remaining: limit - count, ResetAt: resetAt}, nil
	}
	members := make([]redis.Z, 0, cost)
	for range cost {
		members = append(members, redis.Z{Score: float64(now.UnixNano()), Member: uuid.NewString()})
	}
	pipe = s.client.TxPipeline()
	pipe.ZAdd(ctx, key, members...)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("record admission: %w", err)
	}
	if count == 0 {
		resetAt = now.Add(window)
	}
	return Result{Allowed: true, Limit: limit, Remaining: limit - count - cost, ResetAt: resetAt}, nil
}
