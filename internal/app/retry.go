package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/dummybank/payment-service/pkg/ospclient"
)

// RetryPolicy bounds gateway retries: Attempts total tries, Delay between them.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// DefaultRetryPolicy is three attempts two seconds apart.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Delay: 2 * time.Second}

// withRetry runs op until it succeeds, fails permanently, or the attempts run out.
// Only transient gateway errors are retried; the last error is returned.
func withRetry[T any](ctx context.Context, logger *slog.Logger, policy RetryPolicy, name string, op func(context.Context) (T, error)) (T, error) {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var (
		result  T
		attempt int
	)
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(policy.Delay), uint64(attempts-1)),
		ctx,
	)
	err := backoff.RetryNotify(func() error {
		attempt++
		value, err := op(ctx)
		if err != nil {
			if !ospclient.IsTransient(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = value
		return nil
	}, b, func(err error, wait time.Duration) {
		logger.WarnContext(ctx, "gateway call failed; retrying", "op", name, "attempt", attempt, "max_attempts", attempts, "wait", wait, "err", err)
	})
	return result, err
}
