package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/99minutos/auth-service/internal/core/ports"
	"github.com/99minutos/auth-service/internal/core/ratelimit"
)

// DefaultKeyPrefix namespaces limiter counters when the Redis database is
// shared with other services.
const DefaultKeyPrefix = "auth:rl:"

// checkAndRecordScript counts one attempt. The first hit opens a window;
// any hit beyond the limit re-arms the key for the block duration.
//
//	KEYS[1] counter key
//	ARGV[1] window ms, ARGV[2] block ms, ARGV[3] max attempts
//
// Returns {count, pttl}.
var checkAndRecordScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
elseif count > tonumber(ARGV[3]) then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return {count, redis.call("PTTL", KEYS[1])}
`)

// RateLimiter is the shared-counter variant of ratelimit.Limiter for
// deployments with more than one instance. Keys expire on their own, so
// SweepExpired has nothing to do.
type RateLimiter struct {
	client *redis.Client
	cfg    ratelimit.Config
	prefix string
	now    func() time.Time
}

// LimiterOption configures a RateLimiter.
type LimiterOption func(*RateLimiter)

// WithKeyPrefix replaces DefaultKeyPrefix. An empty prefix is ignored.
func WithKeyPrefix(prefix string) LimiterOption {
	return func(l *RateLimiter) {
		if prefix != "" {
			l.prefix = prefix
		}
	}
}

// NewRateLimiter wraps client. Zero config values use the ratelimit defaults.
func NewRateLimiter(client *redis.Client, cfg ratelimit.Config, opts ...LimiterOption) *RateLimiter {
	if cfg.Window <= 0 {
		cfg.Window = ratelimit.DefaultWindow
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = ratelimit.DefaultMaxAttempts
	}
	if cfg.Block <= 0 {
		cfg.Block = ratelimit.DefaultBlock
	}
	l := &RateLimiter{client: client, cfg: cfg, prefix: DefaultKeyPrefix, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

var _ ports.RateLimiter = (*RateLimiter)(nil)

func (l *RateLimiter) CheckAndRecord(ctx context.Context, identifier string) (bool, error) {
	res, err := checkAndRecordScript.Run(ctx, l.client, []string{l.key(identifier)},
		l.cfg.Window.Milliseconds(), l.cfg.Block.Milliseconds(), l.cfg.MaxAttempts,
	).Int64Slice()
	if err != nil {
		return false, fmt.Errorf("rate limit check: %w", err)
	}
	if len(res) < 1 {
		return false, errors.New("rate limit check: unexpected script reply")
	}
	return res[0] <= int64(l.cfg.MaxAttempts), nil
}

func (l *RateLimiter) Remaining(ctx context.Context, identifier string) (int, error) {
	n, err := l.client.Get(ctx, l.key(identifier)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return l.cfg.MaxAttempts, nil
		}
		return 0, fmt.Errorf("rate limit remaining: %w", err)
	}
	return max(l.cfg.MaxAttempts-n, 0), nil
}

func (l *RateLimiter) ResetTime(ctx context.Context, identifier string) (time.Time, bool, error) {
	ttl, err := l.client.PTTL(ctx, l.key(identifier)).Result()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("rate limit ttl: %w", err)
	}
	// go-redis reports missing keys and keys without expiry as negative durations.
	if ttl <= 0 {
		return time.Time{}, false, nil
	}
	return l.now().Add(ttl), true, nil
}

func (l *RateLimiter) Reset(ctx context.Context, identifier string) error {
	if err := l.client.Del(ctx, l.key(identifier)).Err(); err != nil {
		return fmt.Errorf("rate limit reset: %w", err)
	}
	return nil
}

func (l *RateLimiter) SweepExpired(context.Context) (int, error) {
	return 0, nil
}

func (l *RateLimiter) key(identifier string) string {
	return l.prefix + identifier
}
