// Package retry runs an operation again after transient failures.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	appLog "dsigen/internal/log"
)

// ErrExhausted wraps the last failure once every attempt has been used.
var ErrExhausted = errors.New("retry: attempts exhausted")

// Policy bounds the attempts of an operation. The wait before attempt n+1
// is Backoff * Factor^(n-1), capped at MaxBackoff when set.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
	Factor      float64
	MaxBackoff  time.Duration
}

// Default is three attempts two seconds apart.
func Default() Policy {
	return Policy{MaxAttempts: 3, Backoff: 2 * time.Second, Factor: 1}
}

type permanent struct{ err error }

func (p permanent) Error() string { return p.err.Error() }
func (p permanent) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanent{err: err}
}

func (p Policy) wait(attempt int) time.Duration {
	d := float64(p.Backoff)
	for i := 1; i < attempt; i++ {
		if p.Factor > 0 {
			d *= p.Factor
		}
	}
	if p.MaxBackoff > 0 && time.Duration(d) > p.MaxBackoff {
		return p.MaxBackoff
	}
	return time.Duration(d)
}

// Do calls fn until it succeeds, returns a Permanent error, ctx ends or
// MaxAttempts is reached.
func (p Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		last = fn(ctx)
		if last == nil {
			if attempt > 1 {
				appLog.Info("retry succeeded", "op", op, "attempt", attempt)
			}
			return nil
		}
		var perm permanent
		if errors.As(last, &perm) {
			return perm.err
		}
		if attempt == attempts {
			break
		}

		wait := p.wait(attempt)
		appLog.Warn("attempt failed, retrying", "op", op, "attempt", attempt, "of", attempts, "wait", wait.String(), "reason", last.Error())
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return fmt.Errorf("%w: %s after %d attempts: %w", ErrExhausted, op, attempts, last)
}
