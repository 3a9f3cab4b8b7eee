// Package ratelimit guards event invocation, adapted in place from a
// common/ratelimit package: same embedded-Lua fixed-window counter run
// atomically against Redis, trimmed to the two limits this engine's
// transports actually need (a global service-wide limit and a per-user
// limit), since board execution has no workflow-tier concept to key a
// third counter on.
package ratelimit

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed rate_limit.lua
var rateLimitScript string

// Logger is the minimal logging surface RateLimiter needs.
type Logger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// Result mirrors a RateLimitResult shape.
type Result struct {
	Allowed           bool
	CurrentCount      int64
	Limit             int64
	RetryAfterSeconds int64
}

// redisScripter is the slice of *redis.Client this package actually
// calls, so tests can fake it without a live Redis.
type redisScripter interface {
	EvalSha(ctx context.Context, sha1 string, keys []string, args ...interface{}) (interface{}, error)
	ScriptLoad(ctx context.Context, script string) (string, error)
}

// RateLimiter checks fixed-window limits atomically via an embedded Lua
// script, exactly as common/ratelimit's limiter.go does.
type RateLimiter struct {
	redis  scriptRunner
	script string
	logger Logger
}

// scriptRunner is satisfied by *redis.Script bound to a *redis.Client;
// kept as an interface so this package doesn't need to import
// redis.Script's concrete Run signature directly at the type level.
type scriptRunner interface {
	Run(ctx context.Context, keys []string, args ...interface{}) (interface{}, error)
}

// NewRateLimiter builds a RateLimiter over an already-bound script
// runner (see internal/ratelimit/redis.go for the redis.Script adapter
// wired up in cmd/flowengine).
func NewRateLimiter(runner scriptRunner, logger Logger) *RateLimiter {
	return &RateLimiter{redis: runner, logger: logger}
}

// CheckGlobalLimit checks the global, service-wide window.
func (r *RateLimiter) CheckGlobalLimit(ctx context.Context, limit int64, windowSec int) (*Result, error) {
	return r.check(ctx, "rate_limit:global", limit, windowSec)
}

// CheckUserLimit checks a per-user window, keyed by the identity
// external/users.Directory resolves for the inbound event.
func (r *RateLimiter) CheckUserLimit(ctx context.Context, username string, limit int64, windowSec int) (*Result, error) {
	return r.check(ctx, fmt.Sprintf("rate_limit:user:%s", username), limit, windowSec)
}

func (r *RateLimiter) check(ctx context.Context, key string, limit int64, windowSec int) (*Result, error) {
	out, err := r.redis.Run(ctx, []string{key}, limit, windowSec)
	if err != nil {
		r.logger.Error("rate limit check failed", "key", key, "error", err)
		return nil, fmt.Errorf("ratelimit: check %s: %w", key, err)
	}

	arr, ok := out.([]interface{})
	if !ok || len(arr) != 4 {
		return nil, fmt.Errorf("ratelimit: unexpected script result shape")
	}
	res := &Result{
		Allowed:           toInt64(arr[0]) == 1,
		CurrentCount:      toInt64(arr[1]),
		Limit:             toInt64(arr[2]),
		RetryAfterSeconds: toInt64(arr[3]),
	}
	if !res.Allowed {
		r.logger.Warn("rate limit exceeded", "key", key, "current", res.CurrentCount, "limit", limit)
	}
	return res, nil
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}
