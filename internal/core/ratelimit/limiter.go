// Package ratelimit implements the per-process sliding-window limiter that
// gates credential verification.
//
// Each identifier owns a window. The first attempt opens a window of length
// Window; attempts beyond MaxAttempts inside it are denied and push the reset
// time to now+Block, so a blocked caller who keeps retrying extends its own
// block. State lives in memory only; use the Redis limiter when several
// instances must share budgets.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultWindow      = 15 * time.Minute
	DefaultMaxAttempts = 5
	DefaultBlock       = 30 * time.Minute
)

// Config tunes the limiter. Zero values fall back to the defaults above.
type Config struct {
	Window      time.Duration
	MaxAttempts int
	Block       time.Duration
}

func (c Config) withDefaults() Config {
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.Block <= 0 {
		c.Block = DefaultBlock
	}
	return c
}

type entry struct {
	count   int
	resetAt time.Time
}

// Limiter is safe for concurrent use.
type Limiter struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

// New returns an in-memory Limiter.
func New(cfg Config) *Limiter {
	return &Limiter{
		cfg:     cfg.withDefaults(),
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// CheckAndRecord counts one attempt for identifier. The read-increment-write
// runs under the lock, so concurrent callers at count N cannot both pass.
func (l *Limiter) CheckAndRecord(_ context.Context, identifier string) (bool, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[identifier]
	if !ok || now.After(e.resetAt) {
		l.entries[identifier] = &entry{count: 1, resetAt: now.Add(l.cfg.Window)}
		return true, nil
	}

	e.count++
	if e.count > l.cfg.MaxAttempts {
		e.resetAt = now.Add(l.cfg.Block)
		return false, nil
	}
	return true, nil
}

// Remaining returns how many attempts are left in the current window.
func (l *Limiter) Remaining(_ context.Context, identifier string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.active(identifier)
	if !ok {
		return l.cfg.MaxAttempts, nil
	}
	return max(l.cfg.MaxAttempts-e.count, 0), nil
}

// ResetTime returns when the identifier's window (or block) ends.
func (l *Limiter) ResetTime(_ context.Context, identifier string) (time.Time, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.active(identifier)
	if !ok {
		return time.Time{}, false, nil
	}
	return e.resetAt, true, nil
}

// Reset clears identifier's state.
func (l *Limiter) Reset(_ context.Context, identifier string) error {
	l.mu.Lock()
	delete(l.entries, identifier)
	l.mu.Unlock()
	return nil
}

// SweepExpired drops entries whose window has passed and returns how many
// were removed.
func (l *Limiter) SweepExpired(_ context.Context) (int, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for id, e := range l.entries {
		if now.After(e.resetAt) {
			delete(l.entries, id)
			removed++
		}
	}
	return removed, nil
}

// RunSweeper calls SweepExpired every interval until ctx is cancelled.
// onSweep, when non-nil, receives the number of entries removed by each pass.
func (l *Limiter) RunSweeper(ctx context.Context, interval time.Duration, log zerolog.Logger, onSweep func(removed int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, _ := l.SweepExpired(ctx)
			if removed > 0 {
				log.Debug().Int("removed", removed).Msg("rate limit entries swept")
			}
			if onSweep != nil {
				onSweep(removed)
			}
		}
	}
}

// Len returns the number of tracked identifiers.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// active must be called with mu held.
func (l *Limiter) active(identifier string) (*entry, bool) {
	e, ok := l.entries[identifier]
	if !ok || l.now().After(e.resetAt) {
		return nil, false
	}
	return e, true
}
