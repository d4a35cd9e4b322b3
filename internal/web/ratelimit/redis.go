package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// slidingWindow trims entries older than the window, then admits the request
// if fewer than limit remain. Scores are unix milliseconds.
// Returns {allowed, count, oldest score}.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window_start = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])
local member = ARGV[5]

redis.call('ZREMRANGEBYSCORE', key, 0, window_start)
local current = redis.call('ZCARD', key)
local allowed = 0
if current < limit then
	redis.call('ZADD', key, now, member)
	current = current + 1
	allowed = 1
end
redis.call('PEXPIRE', key, ttl)

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local oldest_score = ARGV[1]
if oldest[2] then
	oldest_score = oldest[2]
end
return {allowed, current, oldest_score}
`)

// RedisLimiter is a sliding-window limiter shared by every server process
type RedisLimiter struct {
	client redis.UniversalClient
	limit  int
	window time.Duration
	prefix string
	seq    atomic.Uint64
}

// RedisLimiterConfig configures a RedisLimiter
type RedisLimiterConfig struct {
	Client redis.UniversalClient
	Limit  int
	Window time.Duration
	Prefix string
}

// NewRedisLimiter validates cfg and returns a limiter
func NewRedisLimiter(cfg RedisLimiterConfig) (*RedisLimiter, error) {
	if cfg.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if cfg.Limit <= 0 {
		return nil, errors.New("limit must be greater than 0")
	}
	if cfg.Window <= 0 {
		return nil, errors.New("window must be greater than 0")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "dz:ratelimit:"
	}
	return &RedisLimiter{
		client: cfg.Client,
		limit:  cfg.Limit,
		window: cfg.Window,
		prefix: cfg.Prefix,
	}, nil
}

// Allow records one request for key if the window has room
func (l *RedisLimiter) Allow(ctx context.Context, key string) (*Info, error) {
	now := time.Now()
	nowMs := now.UnixMilli()
	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + strconv.FormatUint(l.seq.Add(1), 36)

	res, err := slidingWindow.Run(ctx, l.client, []string{l.prefix + key},
		nowMs,
		nowMs-l.window.Milliseconds(),
		l.limit,
		l.window.Milliseconds(),
		member,
	).Slice()
	if err != nil {
		return nil, fmt.Errorf("redis rate limit check failed: %w", err)
	}
	if len(res) != 3 {
		return nil, errors.New("unexpected redis script result")
	}

	allowed, _ := res[0].(int64)
	count, _ := res[1].(int64)
	oldestStr, _ := res[2].(string)
	oldest, err := strconv.ParseFloat(oldestStr, 64)
	if err != nil {
		oldest = float64(nowMs)
	}

	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return &Info{
		Limit:     l.limit,
		Remaining: remaining,
		ResetAt:   time.UnixMilli(int64(oldest)).Add(l.window),
		Allowed:   allowed == 1,
	}, nil
}

// Reset clears the window for key
func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.prefix+key).Err()
}
