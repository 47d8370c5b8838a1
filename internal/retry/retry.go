// Package retry wraps network-facing operations with bounded
// exponential backoff. Validation and build failures never pass the
// retry predicate; they short-circuit to the caller unchanged.
package retry

import (
	"context"
	"strconv"
	"time"

	"github.com/agentlaunch-dev/agentlaunch/pkg/errdefs"
)

// Options configures a retry loop.
type Options struct {
	// MaxRetries is the total number of invocations, not the number of
	// re-invocations. The operation runs at most MaxRetries times.
	MaxRetries int
	// BaseDelay is the delay before the second attempt.
	BaseDelay time.Duration
	// MaxDelay caps the exponential growth.
	MaxDelay time.Duration
	// ShouldRetry decides whether a failed attempt is transient. A nil
	// predicate retries everything except validation and build errors.
	ShouldRetry func(error) bool
}

// DefaultOptions is the policy used for cloud and identity-provider calls.
func DefaultOptions() Options {
	return Options{
		MaxRetries: 3,
		BaseDelay:  2 * time.Second,
		MaxDelay:   30 * time.Second,
	}
}

func (o Options) normalized() Options {
	if o.MaxRetries < 1 {
		o.MaxRetries = 1
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = time.Second
	}
	if o.MaxDelay < o.BaseDelay {
		o.MaxDelay = o.BaseDelay
	}
	if o.ShouldRetry == nil {
		o.ShouldRetry = defaultShouldRetry
	}
	return o
}

func defaultShouldRetry(err error) bool {
	switch errdefs.KindOf(err) {
	case errdefs.KindValidation, errdefs.KindBuild:
		return false
	default:
		return true
	}
}

// backoffDelay returns the delay before attempt n (zero-based),
// doubling from base up to the cap.
func backoffDelay(opts Options, attempt int) time.Duration {
	delay := opts.BaseDelay << uint(attempt)
	if delay > opts.MaxDelay || delay < opts.BaseDelay {
		delay = opts.MaxDelay
	}
	return delay
}

// Do runs fn until it succeeds, fails non-retryably, or exhausts
// opts.MaxRetries attempts. Cancellation is checked between attempts and
// honored during delay windows; it does not interrupt a running fn.
// After exhaustion the last error is wrapped as retry-exhausted.
func Do[T any](ctx context.Context, op string, opts Options, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	opts = opts.normalized()

	var lastErr error
	for attempt := 0; attempt < opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, backoffDelay(opts, attempt-1)); err != nil {
				return zero, err
			}
		}
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !opts.ShouldRetry(err) {
			return zero, err
		}
	}

	return zero, errdefs.Wrap(errdefs.KindRetryExhausted, op,
		"operation failed after repeated attempts", lastErr).
		WithContext("attempts", strconv.Itoa(opts.MaxRetries)).
		WithMitigation(
			"check network connectivity and service health",
			"re-run the command; completed steps are skipped",
		)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
