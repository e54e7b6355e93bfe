package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Configuration errors returned by New.
var (
	ErrInvalidMaxRequests = errors.New("max requests must be positive")
	ErrInvalidWindow      = errors.New("window must be positive")
)

// Limiter admits at most maxRequests starts within any trailing window.
// It is safe for concurrent use; Acquire is an explicit suspension point
// and callers must not assume it returns immediately.
type Limiter struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration

	// starts holds admission timestamps in ascending order. Entries older
	// than the window are pruned on every acquisition so the slice never
	// grows beyond maxRequests for long.
	starts []time.Time

	now func() time.Time
}

// New creates a sliding-window limiter admitting maxRequests starts per
// window.
func New(maxRequests int, window time.Duration) (*Limiter, error) {
	if maxRequests < 1 {
		return nil, ErrInvalidMaxRequests
	}
	if window <= 0 {
		return nil, ErrInvalidWindow
	}
	return &Limiter{
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
	}, nil
}

// Acquire blocks until starting a new unit of work would not exceed the
// limiter's maximum within the trailing window, then records the start.
// Returns the context's error if ctx is cancelled while waiting.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.now()
		l.prune(now)
		if len(l.starts) < l.maxRequests {
			l.starts = append(l.starts, now)
			l.mu.Unlock()
			return nil
		}
		// Full window: the next slot opens when the oldest start ages out.
		wait := l.starts[0].Add(l.window).Sub(now)
		l.mu.Unlock()

		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// prune drops starts that have aged out of the window. Caller holds mu.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	idx := 0
	for idx < len(l.starts) && !l.starts[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		l.starts = append(l.starts[:0], l.starts[idx:]...)
	}
}
