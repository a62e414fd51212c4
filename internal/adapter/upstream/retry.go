package upstream

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/reservoir-data-etl/internal/domain"
)

// Policy bounds how an operation is retried. The wait before attempt n+1 is
// n*Step, so backoff grows linearly.
type Policy struct {
	MaxAttempts int
	Step        time.Duration

	// Clock drives the backoff waits. Nil means real time.
	Clock clockwork.Clock

	// OnRetry, when set, is called before each wait with the attempt that
	// just failed (1-based) and its error.
	OnRetry func(attempt int, err error)
}

// DefaultPolicy is three attempts with a two second step.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, Step: 2 * time.Second}
}

// WithRetry runs op until it succeeds, returns a non-retryable error, or the
// attempts are used up. Only domain.ErrSourceUnavailable is retried, and not
// when the upstream answered with a client error. The last error is returned.
func WithRetry(ctx context.Context, policy Policy, op func(ctx context.Context) error) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	clock := policy.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if !Retryable(err) || attempt == attempts {
			return err
		}
		if policy.OnRetry != nil {
			policy.OnRetry(attempt, err)
		}
		if !sleepWithContext(ctx, clock, time.Duration(attempt)*policy.Step) {
			return errors.Join(err, ctx.Err())
		}
	}
	return err
}

// Retryable reports whether err is worth another attempt.
func Retryable(err error) bool {
	if !errors.Is(err, domain.ErrSourceUnavailable) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}

// sleepWithContext blocks for d or until ctx is cancelled. Returns false if
// the context was cancelled.
func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
