package engine

import (
	"context"
	"log/slog"
	"time"
)

// Backoff retries an operation with exponentially growing delays: the wait
// before attempt n+1 is BaseDelay * 2^(n-1).
type Backoff struct {
	Attempts  int
	BaseDelay time.Duration
	// Sleep waits for d or until ctx is done. Nil means a real timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultBackoff is three attempts starting at one second.
var DefaultBackoff = Backoff{Attempts: 3, BaseDelay: time.Second}

// Do runs op until it succeeds or the attempts are exhausted. It returns the
// number of retries performed and the last error.
func (b Backoff) Do(ctx context.Context, name string, op func(attempt int) error) (int, error) {
	attempts := b.Attempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := b.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var err error
	retries := 0
	delay := b.BaseDelay
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(attempt); err == nil {
			return retries, nil
		}
		if attempt == attempts {
			break
		}
		slog.Warn("attempt failed, retrying", "op", name, "attempt", attempt, "of", attempts, "delay", delay, "error", err)
		if serr := sleep(ctx, delay); serr != nil {
			return retries, serr
		}
		retries++
		delay *= 2
	}
	return retries, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
