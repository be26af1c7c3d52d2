package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

type RetryPolicy struct {
	// Total attempts, including the first one.
	Attempts       int
	InitialBackoff time.Duration
}

// Retry runs op with exponential backoff until it succeeds, returns an error
// IsRetryable rejects, or the attempts run out. The last error is returned.
// An attempt that hits its own deadline is retried as long as ctx is still live.
func Retry[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	if policy.InitialBackoff > 0 {
		b.InitialInterval = policy.InitialBackoff
	}
	attempts := policy.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	res, err := backoff.Retry(ctx, func() (T, error) {
		res, err := op(ctx)
		if err == nil || attemptTimedOut(ctx, err) {
			return res, err
		}
		if !IsRetryable(ctx, err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.WarnContext(ctx, "llm call failed, retrying", "error", err, "backoff_ms", next.Milliseconds())
		}),
	)

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Unwrap()
	}
	return res, err
}

// attemptTimedOut reports a deadline that belongs to a single attempt rather than to ctx.
func attemptTimedOut(ctx context.Context, err error) bool {
	if ctx.Err() != nil || !errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	slog.WarnContext(ctx, "llm call timed out, will retry")
	return true
}
