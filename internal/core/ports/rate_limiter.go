package ports

import (
	"context"
	"time"
)

// RateLimiter bounds attempts per identifier within a window. The in-memory
// implementation is per process; the Redis one is shared across instances.
type RateLimiter interface {
	// CheckAndRecord counts one attempt and reports whether it is allowed.
	CheckAndRecord(ctx context.Context, identifier string) (bool, error)
	Remaining(ctx context.Context, identifier string) (int, error)
	// ResetTime returns when the identifier's window ends; ok is false when
	// there is no active window.
	ResetTime(ctx context.Context, identifier string) (t time.Time, ok bool, err error)
	Reset(ctx context.Context, identifier string) error
	SweepExpired(ctx context.Context) (int, error)
}
