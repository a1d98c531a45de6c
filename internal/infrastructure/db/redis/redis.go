// Package redis holds the Redis-backed rate limiter shared by every instance
// of the service.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Every login waits on one limiter round trip, so a slow Redis must fail
	// the attempt quickly rather than hold the request.
	defaultTimeout  = 250 * time.Millisecond
	defaultPoolSize = 10
)

// Config is the limiter's view of Redis.
type Config struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
	// Timeout bounds dialing, each socket read and write, and the startup ping.
	Timeout time.Duration
}

func (c Config) options() *redis.Options {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	pool := c.PoolSize
	if pool <= 0 {
		pool = defaultPoolSize
	}
	return &redis.Options{
		Addr:         c.Addr,
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     pool,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		// Hitting the per-command deadline is the fail-closed path; let it
		// cancel the command rather than waiting for the socket timeout.
		ContextTimeoutEnabled: true,
	}
}

// Connect builds the limiter client and pings it once. The service refuses to
// start with the redis backend selected but unreachable.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	opts := cfg.options()
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout+opts.ReadTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return client, nil
}
