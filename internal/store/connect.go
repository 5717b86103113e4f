package store

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// ConnectWithRetry calls ping with exponential backoff until it succeeds,
// maxElapsed passes or ctx is done.
func ConnectWithRetry(ctx context.Context, name string, maxElapsed time.Duration, ping func(context.Context) error, logger *zap.Logger) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxInterval = 5 * time.Second
	policy.MaxElapsedTime = maxElapsed

	attempt := 0
	operation := func() error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return ping(pingCtx)
	}

	notify := func(err error, wait time.Duration) {
		logger.Warn("Store not reachable, retrying",
			zap.String("store", name),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", wait),
			zap.Error(err))
	}

	return backoff.RetryNotify(operation, backoff.WithContext(policy, ctx), notify)
}
