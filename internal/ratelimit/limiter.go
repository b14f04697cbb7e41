// Package ratelimit throttles outbound calls to the classification
// service to a fixed quota per rolling window. Acquire only ever delays a
// caller, it never rejects one.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrInvalidQuota indicates the limiter was constructed with a
// non-positive quota or window
var ErrInvalidQuota = errors.New("rate limit quota and window must be positive")

// Limiter admits at most quota acquisitions within any rolling window.
// Waiters are admitted as slots age out of the window; ordering among
// concurrent waiters is not guaranteed.
type Limiter struct {
	quota  int
	window time.Duration

	mu     sync.Mutex
	stamps []time.Time

	now func() time.Time // injectable for tests
}

// New creates a Limiter admitting quota calls per rolling window
func New(quota int, window time.Duration) (*Limiter, error) {
	if quota <= 0 || window <= 0 {
		return nil, ErrInvalidQuota
	}
	return &Limiter{
		quota:  quota,
		window: window,
		stamps: make([]time.Time, 0, quota),
		now:    time.Now,
	}, nil
}

// Acquire blocks until a call slot is available under the quota or the
// context is cancelled. On success the slot is consumed immediately.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.now()
		l.prune(now)

		if len(l.stamps) < l.quota {
			l.stamps = append(l.stamps, now)
			l.mu.Unlock()
			return nil
		}

		// Oldest admission leaves the window first; sleep until then
		// and re-contend. Another waiter may take the freed slot, in
		// which case we loop and wait again.
		wait := l.stamps[0].Add(l.window).Sub(now)
		l.mu.Unlock()

		if wait <= 0 {
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// InFlight returns the number of admissions still inside the window
func (l *Limiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	return len(l.stamps)
}

// prune drops admissions that have aged out of the rolling window.
// Caller must hold mu.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	idx := 0
	for idx < len(l.stamps) && !l.stamps[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		l.stamps = append(l.stamps[:0], l.stamps[idx:]...)
	}
}
