package extraction

import (
	"context"
	"sync"
	"time"
)

// Limiter admits request starts. Acquire blocks until a start is permitted.
type Limiter interface {
	Acquire(ctx context.Context) error
}

// SlotLimiter bounds outbound request starts to a fixed quota per sliding
// window. Callers over quota are delayed until the oldest recorded start
// ages out of the window; no caller is ever rejected.
type SlotLimiter struct {
	limit  int
	window time.Duration

	mu     sync.Mutex
	starts []time.Time

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewSlotLimiter creates a SlotLimiter admitting at most limit starts per
// window.
func NewSlotLimiter(limit int, window time.Duration) *SlotLimiter {
	return &SlotLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// Acquire blocks until one new request start is admitted, then records it.
// Concurrent acquirers may consume slots while we sleep, so the quota is
// re-checked from scratch after every wait.
func (l *SlotLimiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.now()
		cutoff := now.Add(-l.window)
		expired := 0
		for expired < len(l.starts) && !l.starts[expired].After(cutoff) {
			expired++
		}
		l.starts = append(l.starts[:0], l.starts[expired:]...)

		if len(l.starts) < l.limit {
			l.starts = append(l.starts, now)
			l.mu.Unlock()
			return nil
		}

		wait := l.starts[0].Add(l.window).Sub(now)
		l.mu.Unlock()

		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
