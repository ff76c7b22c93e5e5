// Package ratelimit paces outbound calls to third-party APIs.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter enforces per-key (service name) request rates using token buckets.
// A nil *Limiter, or one built with rpm <= 0, never blocks.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	burst    int
}

// New creates a limiter allowing rpm requests per minute with the given burst.
func New(rpm, burst int) *Limiter {
	if burst <= 0 {
		burst = 1
	}
	r := rate.Limit(0)
	if rpm > 0 {
		r = rate.Limit(float64(rpm) / 60.0)
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		r:        r,
		burst:    burst,
	}
}

// Enabled returns true if the limiter is active.
func (l *Limiter) Enabled() bool {
	return l != nil && l.r > 0
}

// Wait blocks until a request for key may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	if !l.Enabled() {
		return nil
	}
	lim := l.get(key)
	if lim.Tokens() < 1 {
		slog.Debug("ratelimit: waiting", "key", key)
	}
	return lim.Wait(ctx)
}

// Allow reports whether a request for key may proceed now.
func (l *Limiter) Allow(key string) bool {
	if !l.Enabled() {
		return true
	}
	return l.get(key).Allow()
}

func (l *Limiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.r, l.burst)
		l.limiters[key] = lim
	}
	return lim
}
