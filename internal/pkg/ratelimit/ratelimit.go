package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const tokenBucketLua = `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local requested = tonumber(ARGV[4])

if rate <= 0 or burst <= 0 then
  return {1, 0, burst}
end

local data = redis.call("HMGET", key, "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])
if tokens == nil then
  tokens = burst
end
if ts == nil then
  ts = now
end

local delta = math.max(0, now - ts)
local refill = (delta * rate) / 1000.0
tokens = math.min(burst, tokens + refill)

local allowed = tokens >= requested
local wait_ms = 0
if allowed then
  tokens = tokens - requested
else
  wait_ms = math.ceil((requested - tokens) * 1000.0 / rate)
end

redis.call("HMSET", key, "tokens", tokens, "ts", now)
redis.call("PEXPIRE", key, math.ceil((burst / rate) * 1000.0 * 2))

return {allowed and 1 or 0, wait_ms, tokens}
`

// RateLimiter 是基于 Redis 的按 key 令牌桶，例如按邮箱限制验证码发送频率。
type RateLimiter struct {
	rdb    *redis.Client
	prefix string
	rate   float64
	burst  float64
	logger *slog.Logger
	script *redis.Script
	now    func() time.Time
}

// NewRedisRateLimiter creates a limiter; rate is tokens per second, burst the bucket size.
func NewRedisRateLimiter(rdb *redis.Client, logger *slog.Logger, prefix string, rate float64, burst float64) *RateLimiter {
	if prefix == "" {
		prefix = "astromissions:ratelimit:"
	}
	return &RateLimiter{
		rdb:    rdb,
		prefix: prefix,
		rate:   rate,
		burst:  burst,
		logger: logger,
		script: redis.NewScript(tokenBucketLua),
		now:    time.Now,
	}
}

// Allow 尝试为 id 消耗一个令牌，不阻塞。
//
// 返回值:
//
//	bool: 是否放行
//	time.Duration: 被拒绝时建议的等待时间
//	error: Redis 调用失败
func (r *RateLimiter) Allow(ctx context.Context, id string) (bool, time.Duration, error) {
	if r == nil || r.rdb == nil || r.rate <= 0 || r.burst <= 0 {
		return true, 0, nil
	}
	allowed, waitMs, err := r.tryAcquire(ctx, r.prefix+id)
	if err != nil {
		if r.logger != nil {
			r.logger.Warn("ratelimit eval failed", slog.String("key", id), slog.String("error", err.Error()))
		}
		return false, 0, err
	}
	return allowed, time.Duration(waitMs) * time.Millisecond, nil
}

func (r *RateLimiter) tryAcquire(ctx context.Context, key string) (bool, int64, error) {
	now := r.now().UnixMilli()
	res, err := r.script.Run(ctx, r.rdb, []string{key}, r.rate, r.burst, now, 1).Result()
	if err != nil {
		return false, 0, fmt.Errorf("ratelimit eval: %w", err)
	}

	values, ok := res.([]interface{})
	if !ok || len(values) < 2 {
		return false, 0, fmt.Errorf("ratelimit invalid result")
	}

	allowed := toInt64(values[0]) == 1
	waitMs := toInt64(values[1])
	return allowed, waitMs, nil
}

func toInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if t == "" {
			return 0
		}
		if parsed, err := strconv.ParseInt(t, 10, 64); err == nil {
			return parsed
		}
	}
	return 0
}
