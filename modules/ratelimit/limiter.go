// Package ratelimit throttles per-connection events with a sliding window
// kept in Redis, so limits hold across reconnects to other instances.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix is the Redis key prefix for limiter windows.
const DefaultKeyPrefix = "ratelimit:"

// slidingWindowScript records one hit if the window has room. KEYS[2] holds
// the counter that keeps members of one millisecond distinct.
// Returns {allowed, remaining, reset_at_ms}.
var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local counter_key = KEYS[2]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

	local current = redis.call('ZCARD', key)

	if current < limit then
		local counter = redis.call('INCR', counter_key)
		redis.call('ZADD', key, now, now .. ':' .. counter)
		local expire_seconds = math.ceil(window_ms / 1000)
		redis.call('EXPIRE', key, expire_seconds)
		redis.call('EXPIRE', counter_key, expire_seconds)
		return {1, limit - current - 1, 0}
	else
		local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
		local reset_at = 0
		if oldest and #oldest >= 2 then
			reset_at = tonumber(oldest[2]) + window_ms
		end
		return {0, 0, reset_at}
	end
`)

// Result contains the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	Limit     int
}

// Limiter implements sliding window rate limiting using Redis.
type Limiter struct {
	client    *redis.Client
	keyPrefix string
	limit     int
	window    time.Duration
}

// NewLimiter creates a limiter allowing limit hits per window for each key.
func NewLimiter(client *redis.Client, keyPrefix string, limit int, window time.Duration) *Limiter {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &Limiter{
		client:    client,
		keyPrefix: keyPrefix,
		limit:     limit,
		window:    window,
	}
}

// Check records a hit for key and reports whether it is allowed.
func (l *Limiter) Check(ctx context.Context, key string) (*Result, error) {
	now := time.Now()
	windowStart := now.Add(-l.window)

	windowKey, counterKey := l.keys(key)
	result, err := slidingWindowScript.Run(ctx, l.client, []string{windowKey, counterKey},
		now.UnixMilli(), windowStart.UnixMilli(), l.limit, l.window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("redis script error: %w", err)
	}
	if len(result) != 3 {
		return nil, fmt.Errorf("unexpected Redis response length: %d", len(result))
	}

	resetAt := now.Add(l.window)
	if result[2] > 0 {
		resetAt = time.UnixMilli(result[2])
	}

	return &Result{
		Allowed:   result[0] == 1,
		Remaining: int(result[1]),
		ResetAt:   resetAt,
		Limit:     l.limit,
	}, nil
}

// Allow reports whether one more event for key fits in the window.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	res, err := l.Check(ctx, key)
	if err != nil {
		return false, err
	}
	return res.Allowed, nil
}

// Reset clears the window of key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	windowKey, counterKey := l.keys(key)
	return l.client.Del(ctx, windowKey, counterKey).Err()
}

func (l *Limiter) keys(key string) (window, counter string) {
	window = l.keyPrefix + key
	return window, window + ":counter"
}
