package ratelimit

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// redisScript adapts a *redis.Script bound to a *redis.Client to the
// scriptRunner interface RateLimiter depends on.
type redisScript struct {
	client *redis.Client
	script *redis.Script
}

// NewRedisRunner builds the scriptRunner cmd/flowengine hands to
// NewRateLimiter, loading the embedded Lua script once per process.
func NewRedisRunner(client *redis.Client) *redisScript {
	return &redisScript{client: client, script: redis.NewScript(rateLimitScript)}
}

func (s *redisScript) Run(ctx context.Context, keys []string, args ...interface{}) (interface{}, error) {
	return s.script.Run(ctx, s.client, keys, args...).Result()
}
