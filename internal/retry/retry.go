// Package retry runs fallible operations under a bounded retry policy with
// exponential backoff.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy bounds how an operation is retried. The zero value runs the
// operation once.
type Policy struct {
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int
	// BaseDelay is doubled on every retry and capped at MaxDelay. Zero
	// retries immediately.
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// Retryable reports whether err is transient. Nil retries every error
	// not marked Permanent.
	Retryable func(err error) bool
	// OnRetry is called before sleeping ahead of attempt number attempt (1-based).
	OnRetry func(attempt int, err error)
}

// Default mirrors the backoff used by the embedding client: 200ms doubling,
// capped at 5s.
func Default(maxRetries int) Policy {
	return Policy{MaxRetries: maxRetries, BaseDelay: 200 * time.Millisecond, MaxDelay: 5 * time.Second}
}

// Permanent marks err so that Do returns it without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// BackOff builds the delay schedule for p. Delays carry no jitter.
func (p Policy) BackOff() backoff.BackOff {
	if p.BaseDelay <= 0 {
		return &backoff.ZeroBackOff{}
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = backoff.DefaultMaxInterval
	}
	return &backoff.ExponentialBackOff{
		InitialInterval:     p.BaseDelay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         maxDelay,
	}
}

// Do calls op until it succeeds, returns a non-retryable error, the retry
// budget is spent or ctx ends. The last operation error is returned, never
// the context error.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var last error
	attempt := 0
	v, err := backoff.Retry(ctx, func() (T, error) {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		last = err
		if p.Retryable != nil && !p.Retryable(err) {
			return zero, backoff.Permanent(err)
		}
		return zero, err
	},
		backoff.WithBackOff(p.BackOff()),
		backoff.WithMaxTries(uint(max(p.MaxRetries, 0))+1),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, _ time.Duration) {
			attempt++
			if p.OnRetry != nil {
				p.OnRetry(attempt, err)
			}
		}),
	)
	if err == nil {
		return v, nil
	}
	if last != nil {
		err = last
	}
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return zero, perm.Unwrap()
	}
	return zero, err
}
