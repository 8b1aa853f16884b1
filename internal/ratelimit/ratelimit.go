package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	// DefaultLimit is the request budget per window per connection.
	DefaultLimit = 30
	// DefaultWindow is the sliding-window length.
	DefaultWindow = 60 * time.Second
	// DefaultCooldown is applied after a 429 when the provider gave no
	// retry hint.
	DefaultCooldown = 30 * time.Second
)

// Registry holds one limiter per connection id for the life of the process.
// Limiters are created lazily on first use and never expire: rate-limit state
// must survive across requests, not per request.
type Registry struct {
	mu       sync.Mutex
	limiters map[string]*limiter
	limit    int
	window   time.Duration
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

type limiter struct {
	mu            sync.Mutex
	stamps        []time.Time // request times inside the current window
	cooldownUntil time.Time
}

// NewRegistry creates a registry with the default limit and window.
func NewRegistry() *Registry {
	return NewRegistryWithLimits(DefaultLimit, DefaultWindow)
}

// NewRegistryWithLimits creates a registry with an explicit budget.
func NewRegistryWithLimits(limit int, window time.Duration) *Registry {
	return &Registry{
		limiters: make(map[string]*limiter),
		limit:    limit,
		window:   window,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (r *Registry) get(connectionID string) *limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[connectionID]
	if !ok {
		l = &limiter{}
		r.limiters[connectionID] = l
	}
	return l
}

// Wait blocks until the connection may issue another outbound call: first for
// any active cooldown, then for the sliding window to admit a new request.
// It returns early only when ctx is cancelled.
func (r *Registry) Wait(ctx context.Context, connectionID string) error {
	l := r.get(connectionID)
	for {
		d := r.nextDelay(l)
		if d <= 0 {
			return nil
		}
		if err := r.sleep(ctx, d); err != nil {
			return err
		}
	}
}

// nextDelay computes how long the caller must wait, recording the request
// when it is admitted immediately.
func (r *Registry) nextDelay(l *limiter) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := r.now()
	if now.Before(l.cooldownUntil) {
		return l.cooldownUntil.Sub(now)
	}

	cutoff := now.Add(-r.window)
	kept := l.stamps[:0]
	for _, s := range l.stamps {
		if s.After(cutoff) {
			kept = append(kept, s)
		}
	}
	l.stamps = kept

	if len(l.stamps) < r.limit {
		l.stamps = append(l.stamps, now)
		return 0
	}
	// Oldest stamp leaving the window frees a slot.
	return l.stamps[0].Add(r.window).Sub(now)
}

// SetCooldown puts the connection into a cooldown after a 429-style response.
// retryAfter <= 0 falls back to the default cooldown. Subsequent Wait calls
// on the same connection block until the cooldown elapses.
func (r *Registry) SetCooldown(connectionID string, retryAfter time.Duration) {
	if retryAfter <= 0 {
		retryAfter = DefaultCooldown
	}
	l := r.get(connectionID)
	l.mu.Lock()
	defer l.mu.Unlock()
	until := r.now().Add(retryAfter)
	if until.After(l.cooldownUntil) {
		l.cooldownUntil = until
	}
}

// Pending returns how many requests the connection has made inside the
// current window. Intended for metrics and tests.
func (r *Registry) Pending(connectionID string) int {
	l := r.get(connectionID)
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := r.now().Add(-r.window)
	n := 0
	for _, s := range l.stamps {
		if s.After(cutoff) {
			n++
		}
	}
	return n
}
