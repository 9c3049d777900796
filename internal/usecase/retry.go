package usecase

import (
	"context"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"sheger-et-bot/internal/domain"
)

// Transactions that fail on transient storage errors are retried as a whole.
// Every mutation inside them is a compare-and-set, so a replay cannot apply twice.
const (
	retryBaseDelay  = 50 * time.Millisecond
	retryMaxDelay   = time.Second
	retryMaxRetries = 3
)

func persistenceRetry[T any]() retrypolicy.RetryPolicy[T] {
	return retrypolicy.NewBuilder[T]().
		WithBackoff(retryBaseDelay, retryMaxDelay).
		WithMaxRetries(retryMaxRetries).
		WithJitterFactor(0.1).
		ReturnLastFailure().
		HandleIf(func(_ T, err error) bool {
			return domain.IsRetryable(err)
		}).
		Build()
}

func withRetry[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	return failsafe.With(persistenceRetry[T]()).WithContext(ctx).Get(fn)
}
