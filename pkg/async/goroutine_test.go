package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/atelierhq/atelier/pkg/observability"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, nil)
}

func TestGoRunsTask(t *testing.T) {
	done := make(chan struct{})

	Go(testLogger(), time.Second, "test task", func(ctx context.Context) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task never ran")
	}
}

func TestGoRecoversPanic(t *testing.T) {
	var after atomic.Bool
	done := make(chan struct{})

	Go(testLogger(), time.Second, "panicking task", func(ctx context.Context) error {
		defer close(done)
		panic("boom")
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task never ran")
	}

	// A panicked task must not take the process down; anything after here
	// proves the recover fired.
	Go(testLogger(), time.Second, "follow-up", func(ctx context.Context) error {
		after.Store(true)
		return nil
	})
	require.Eventually(t, after.Load, 2*time.Second, 5*time.Millisecond)
}

func TestGoEnforcesTimeout(t *testing.T) {
	expired := make(chan struct{})

	Go(testLogger(), 10*time.Millisecond, "slow task", func(ctx context.Context) error {
		<-ctx.Done()
		close(expired)
		return ctx.Err()
	})

	select {
	case <-expired:
	case <-time.After(2 * time.Second):
		t.Fatal("task context never expired")
	}
}

func TestGoLogsErrorWithoutCrashing(t *testing.T) {
	done := make(chan struct{})

	Go(testLogger(), time.Second, "failing task", func(ctx context.Context) error {
		defer close(done)
		return errors.New("delivery refused")
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task never ran")
	}
}
