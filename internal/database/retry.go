package database

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// connectAttempts bounds how long startup waits for a dependency to come up.
const connectAttempts = 5

// pingWithRetry calls ping until it succeeds or the attempts run out.
func pingWithRetry(ctx context.Context, what string, log zerolog.Logger, ping func(context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	policy := backoff.WithContext(backoff.WithMaxRetries(b, connectAttempts-1), ctx)

	return backoff.RetryNotify(func() error {
		return ping(ctx)
	}, policy, func(err error, wait time.Duration) {
		log.Warn().Err(err).Str("target", what).Dur("wait", wait).Msg("Not reachable yet, retrying")
	})
}
