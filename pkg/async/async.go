// Package async provides panic-safe background execution for maintenance
// tasks such as the expired token sweep.
package async

import (
	"context"
	"time"

	"github.com/parleyhq/parley/pkg/observability"
)

// Go runs fn in a goroutine with a per-run timeout and panic recovery. A
// panic or returned error is logged and never crashes the process.
func Go(parent context.Context, logger *observability.Logger, timeout time.Duration, name string, fn func(context.Context) error) {
	go func() {
		runSafely(parent, logger, timeout, name, fn)
	}()
}

// Every runs fn on a fixed interval until ctx is cancelled. The first run
// happens after one interval, not immediately. Each run gets the same
// timeout and recovery treatment as Go.
func Every(ctx context.Context, logger *observability.Logger, interval, timeout time.Duration, name string, fn func(context.Context) error) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runSafely(ctx, logger, timeout, name, fn)
			}
		}
	}()
}

func runSafely(parent context.Context, logger *observability.Logger, timeout time.Duration, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	defer observability.RecoverPanic(logger.WithField("task", name), "background task")

	if err := fn(ctx); err != nil && !isCancellation(err, parent) {
		logger.WithError(err).WithField("task", name).Error("Background task failed")
	}
}

// isCancellation suppresses the error noise produced when a task is cut
// short by process shutdown rather than by its own failure.
func isCancellation(err error, parent context.Context) bool {
	return parent.Err() != nil && (err == context.Canceled || err == parent.Err())
}
