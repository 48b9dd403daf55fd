// Package ratelimit throttles write commands per target so a flood of UI
// requests cannot saturate the low-speed control bus.
package ratelimit

import (
	"errors"
	"sync"
	"time"
)

// ErrThrottled rejects a write arriving inside the target's rate window.
// Throttled requests are rejected, never queued.
var ErrThrottled = errors.New("rate limit exceeded")

// DefaultWindow is the minimum spacing between accepted writes per target.
const DefaultWindow = 100 * time.Millisecond

// Limiter allows at most one accepted write per target within a window.
// A target is one control id or one PTZ axis; unrelated targets never
// throttle each other.
type Limiter struct {
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

// NewLimiter creates a limiter with the given window.
func NewLimiter(window time.Duration) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		window: window,
		now:    time.Now,
		last:   make(map[string]time.Time),
	}
}

// Allow records an accepted write for target, or returns ErrThrottled if
// one was already accepted inside the window.
func (l *Limiter) Allow(target string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if last, ok := l.last[target]; ok && now.Sub(last) < l.window {
		return ErrThrottled
	}
	l.last[target] = now

	if len(l.last) > 256 {
		l.pruneLocked(now)
	}
	return nil
}

// pruneLocked drops entries whose window has long passed.
func (l *Limiter) pruneLocked(now time.Time) {
	for target, last := range l.last {
		if now.Sub(last) >= l.window {
			delete(l.last, target)
		}
	}
}
