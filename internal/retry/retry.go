// Package retry runs remote calls with capped exponential backoff.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// Policy handles retry logic with exponential backoff.
type Policy struct {
	Attempts  int           // total attempts, including the first
	Base      time.Duration // delay before the second attempt
	Max       time.Duration // delay cap
	Retryable func(error) bool
}

// Transient is the default policy predicate.
func Transient(err error) bool {
	return domain.IsTransient(err)
}

// Delay returns the wait before attempt n (n >= 2): Base doubled per prior
// retry, capped at Max.
func (p Policy) Delay(n int) time.Duration {
	d := p.Base
	for i := 2; i < n; i++ {
		d *= 2
		if p.Max > 0 && d >= p.Max {
			return p.Max
		}
	}
	if p.Max > 0 && d > p.Max {
		return p.Max
	}
	return d
}

// Do runs fn until it succeeds, returns a non-retryable error, the attempts
// run out, or ctx is done. It returns the number of attempts made.
func (p Policy) Do(ctx context.Context, fn func(context.Context) error) (int, error) {
	attempts := max(p.Attempts, 1)
	retryable := p.Retryable
	if retryable == nil {
		retryable = Transient
	}

	var lastErr error
	for n := 1; n <= attempts; n++ {
		if n > 1 {
			if err := sleep(ctx, p.Delay(n)); err != nil {
				return n - 1, fmt.Errorf("%w (last error: %v)", err, lastErr)
			}
		}
		err := fn(ctx)
		if err == nil {
			return n, nil
		}
		lastErr = err
		if !retryable(err) {
			return n, err
		}
	}
	if attempts == 1 {
		return 1, lastErr
	}
	return attempts, fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
