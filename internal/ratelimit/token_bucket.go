// Package ratelimit implements a Redis-backed token bucket shared by every
// API replica.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultKeyPrefix = "curveflow:ratelimit"

var ErrInvalidConfig = errors.New("invalid rate limit config")

type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, subject string) (Decision, error)
}

type Config struct {
	Capacity  int
	Window    time.Duration
	KeyPrefix string
}

type RedisTokenBucket struct {
	client      redis.UniversalClient
	capacity    int64
	refillPerMS float64
	ttl         time.Duration
	keyPrefix   string
	now         func() time.Time
}

// tokenBucketScript refills the bucket for the elapsed time and takes the
// requested tokens in one round trip. Returns {allowed, remaining, retry_ms}.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill_per_ms = tonumber(ARGV[2])
local now_ms = tonumber(ARGV[3])
local requested = tonumber(ARGV[4])
local ttl_ms = tonumber(ARGV[5])

local state = redis.call("HMGET", key, "tokens", "ts")
local tokens = tonumber(state[1]) or capacity
local ts = tonumber(state[2]) or now_ms

tokens = math.min(capacity, tokens + math.max(0, now_ms - ts) * refill_per_ms)

local allowed = 0
local retry_ms = 0
if tokens >= requested then
  tokens = tokens - requested
  allowed = 1
else
  retry_ms = math.ceil((requested - tokens) / refill_per_ms)
end

redis.call("HSET", key, "tokens", tostring(tokens), "ts", tostring(now_ms))
redis.call("PEXPIRE", key, ttl_ms)

return {allowed, math.floor(tokens), retry_ms}
`)

func NewRedisTokenBucket(client redis.UniversalClient, cfg Config) (*RedisTokenBucket, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: redis client is required", ErrInvalidConfig)
	}
	if cfg.Capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be positive", ErrInvalidConfig)
	}
	if cfg.Window <= 0 {
		return nil, fmt.Errorf("%w: window must be positive", ErrInvalidConfig)
	}

	prefix := strings.TrimSpace(cfg.KeyPrefix)
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	windowMS := max(1, cfg.Window.Milliseconds())

	return &RedisTokenBucket{
		client:      client,
		capacity:    int64(cfg.Capacity),
		refillPerMS: float64(cfg.Capacity) / float64(windowMS),
		ttl:         2 * cfg.Window,
		keyPrefix:   prefix,
		now:         time.Now,
	}, nil
}

func (l *RedisTokenBucket) Allow(ctx context.Context, subject string) (Decision, error) {
	return l.AllowN(ctx, subject, 1)
}

func (l *RedisTokenBucket) AllowN(ctx context.Context, subject string, n int) (Decision, error) {
	if n <= 0 {
		return Decision{Allowed: true}, nil
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = "anonymous"
	}

	raw, err := tokenBucketScript.Run(
		ctx,
		l.client,
		[]string{l.keyPrefix + ":" + subject},
		l.capacity,
		l.refillPerMS,
		l.now().UTC().UnixMilli(),
		n,
		l.ttl.Milliseconds(),
	).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("run token bucket script: %w", err)
	}

	values, ok := raw.([]any)
	if !ok || len(values) != 3 {
		return Decision{}, fmt.Errorf("unexpected token bucket reply %v", raw)
	}
	var parsed [3]int64
	for i, v := range values {
		if parsed[i], err = toInt64(v); err != nil {
			return Decision{}, fmt.Errorf("parse token bucket reply[%d]: %w", i, err)
		}
	}

	return Decision{
		Allowed:    parsed[0] == 1,
		Remaining:  parsed[1],
		RetryAfter: time.Duration(parsed[2]) * time.Millisecond,
	}, nil
}

func toInt64(in any) (int64, error) {
	switch v := in.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("unsupported type %T", in)
	}
}
