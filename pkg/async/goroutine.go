// Package async provides a panic-safe replacement for bare `go func()` used
// for fire-and-forget work such as outbound email.
package async

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/atelierhq/atelier/pkg/observability"
)

// Go runs fn in a goroutine with panic recovery and a bounded lifetime. The
// task context is detached from the caller so request cancellation does not
// abort work already committed (an invitation row exists whether or not its
// email goes out).
func Go(logger *observability.Logger, timeout time.Duration, taskName string, fn func(context.Context) error) {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				logger.WithField("task", taskName).
					WithField("panic", r).
					WithField("stack", string(debug.Stack())).
					Error("background task panicked")
			}
		}()

		if err := fn(ctx); err != nil {
			logger.WithError(err).
				WithField("task", taskName).
				Warn("background task failed")
		}
	}()
}
