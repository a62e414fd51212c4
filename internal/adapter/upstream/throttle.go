package upstream

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Throttle enforces a minimum gap between consecutive calls to one upstream.
type Throttle struct {
	delay time.Duration
	clock clockwork.Clock

	mu   sync.Mutex
	last time.Time
}

// NewThrottle creates a throttle. A nil clock means real time.
func NewThrottle(delay time.Duration, clock clockwork.Clock) *Throttle {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Throttle{delay: delay, clock: clock}
}

// Wait blocks until at least delay has passed since the previous Wait
// returned. The first call never blocks.
func (t *Throttle) Wait(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.last.IsZero() {
		remaining := t.delay - t.clock.Since(t.last)
		if !sleepWithContext(ctx, t.clock, remaining) {
			return ctx.Err()
		}
	}
	t.last = t.clock.Now()
	return nil
}
