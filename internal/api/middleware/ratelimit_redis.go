package middleware

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter is a sliding-window limiter shared by every API instance.
// Each key is a sorted set of request timestamps. Redis errors fail open.
type RedisRateLimiter struct {
	client   *redis.Client
	requests int
	window   time.Duration
	prefix   string
	logger   *slog.Logger
}

func NewRedisRateLimiter(client *redis.Client, requests, windowSeconds int, logger *slog.Logger) *RedisRateLimiter {
	if requests <= 0 {
		requests = 100
	}
	if windowSeconds <= 0 {
		windowSeconds = 60
	}
	return &RedisRateLimiter{
		client:   client,
		requests: requests,
		window:   time.Duration(windowSeconds) * time.Second,
		prefix:   "ratelimit:",
		logger:   logger,
	}
}

func (rl *RedisRateLimiter) Limit() int {
	return rl.requests
}

func (rl *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, int, time.Time) {
	now := time.Now()
	redisKey := rl.prefix + key
	windowStart := now.Add(-rl.window).UnixMicro()
	member := uuid.NewString()

	var count *redis.IntCmd
	var oldest *redis.ZSliceCmd
	_, err := rl.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, redisKey, "-inf", strconv.FormatInt(windowStart, 10))
		count = pipe.ZCard(ctx, redisKey)
		oldest = pipe.ZRangeWithScores(ctx, redisKey, 0, 0)
		return nil
	})
	if err != nil {
		rl.logger.Warn("rate limiter unavailable", "error", err)
		return true, rl.requests, now.Add(rl.window)
	}

	used := int(count.Val())
	if used >= rl.requests {
		reset := now.Add(rl.window)
		if z := oldest.Val(); len(z) > 0 {
			reset = time.UnixMicro(int64(z[0].Score)).Add(rl.window)
		}
		return false, 0, reset
	}

	_, err = rl.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixMicro()), Member: member})
		pipe.PExpire(ctx, redisKey, rl.window)
		return nil
	})
	if err != nil {
		rl.logger.Warn("rate limiter unavailable", "error", err)
	}

	return true, rl.requests - used - 1, now.Add(rl.window)
}
