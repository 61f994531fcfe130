package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis wraps the shared client behind the admission queue and the health
// endpoint.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects with fail-fast timeouts: a broker outage should degrade
// the API to queueless operation, not hang recognition requests. Blocking
// pops are unaffected, go-redis raises its read deadline for those itself.
func NewRedis(addr string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     8,
	})
	return &Redis{Client: client}
}

// Healthy reports whether redis answers a ping.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}
