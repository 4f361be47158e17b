package routing

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// RetryRouter retries a failing inner router with exponential backoff up to a
// bounded attempt count, then degrades to a straight-line estimate flagged
// Approximate. The simulation run continues either way.
type RetryRouter struct {
	inner       Router
	fallback    *PlaneRouter
	maxRetries  uint64
	maxInterval time.Duration
}

// NewRetryRouter wraps inner with retry-then-fallback behavior.
// maxRetries counts retries after the first attempt.
func NewRetryRouter(inner Router, maxRetries uint64) *RetryRouter {
	return &RetryRouter{
		inner:       inner,
		fallback:    &PlaneRouter{DetourFactor: 1.3},
		maxRetries:  maxRetries,
		maxInterval: 2 * time.Second,
	}
}

func (r *RetryRouter) Route(ctx context.Context, from, to Point) (Leg, error) {
	var leg Leg

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = r.maxInterval

	op := func() error {
		var err error
		leg, err = r.inner.Route(ctx, from, to)
		return err
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, r.maxRetries), ctx))
	if err == nil {
		return leg, nil
	}
	if ctx.Err() != nil {
		// Run is being torn down; the caller discards this result.
		return Leg{}, ctx.Err()
	}

	logrus.Warnf("routing oracle unavailable after %d retries, using straight-line estimate: %v", r.maxRetries, err)
	return r.fallback.Route(ctx, from, to)
}
