package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStarted(t *testing.T, opts ...Option) *Scheduler {
	t.Helper()
	s, err := New(opts...)
	require.NoError(t, err)
	s.Start()
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func TestAtRunsOnce(t *testing.T) {
	s := newStarted(t)

	var runs atomic.Int32
	_, err := s.After("warning", 50*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return runs.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())

	lastRun, lastErr := s.Status()
	assert.False(t, lastRun.IsZero())
	assert.NoError(t, lastErr)
}

func TestAtInThePastRunsImmediately(t *testing.T) {
	s := newStarted(t)

	done := make(chan struct{})
	_, err := s.At("overdue", time.Now().Add(-time.Hour), func(ctx context.Context) error {
		close(done)
		return nil
	})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("overdue job did not run")
	}
}

func TestCancelPreventsRun(t *testing.T) {
	s := newStarted(t)

	var runs atomic.Int32
	id, err := s.After("warning", 200*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})
	require.NoError(t, err)

	pending := s.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "warning", pending[0].Name)

	require.NoError(t, s.Cancel(id))
	require.NoError(t, s.Cancel(id), "second cancel is silent")

	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, int32(0), runs.Load())
	assert.Empty(t, s.Pending())
}

func TestCancelRejectsMalformedID(t *testing.T) {
	s := newStarted(t)
	assert.Error(t, s.Cancel("not-a-uuid"))
}

func TestFailingJobRetries(t *testing.T) {
	var exhausted atomic.Bool
	s := newStarted(t,
		WithRetry(&RetryStrategy{MaxRetries: 2, InitialDelay: 10 * time.Millisecond, MaxDelay: 20 * time.Millisecond, BackoffFactor: 2}),
		WithCallbacks(&Callbacks{OnRetryExhausted: func(results []*JobResult) {
			exhausted.Store(len(results) == 3)
		}}),
	)

	var attempts atomic.Int32
	_, err := s.After("deliver", 10*time.Millisecond, func(ctx context.Context) error {
		attempts.Add(1)
		return errors.New("relay down")
	})
	require.NoError(t, err)

	require.Eventually(t, exhausted.Load, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(3), attempts.Load())

	_, lastErr := s.Status()
	assert.EqualError(t, lastErr, "relay down")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "45 seconds", FormatDuration(45*time.Second))
	assert.Equal(t, "5 minutes", FormatDuration(5*time.Minute))
	assert.Equal(t, "2.5 hours", FormatDuration(150*time.Minute))
	assert.Equal(t, "2.0 days", FormatDuration(48*time.Hour))
}

func TestEveryRepeatsUntilCancelled(t *testing.T) {
	s := newStarted(t)

	var runs atomic.Int32
	id, err := s.Every("prune", 30*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, s.Cancel(id))

	time.Sleep(50 * time.Millisecond)
	n := runs.Load()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, n, runs.Load())
}

func TestEveryRejectsNonPositiveInterval(t *testing.T) {
	s := newStarted(t)
	_, err := s.Every("prune", 0, func(ctx context.Context) error { return nil })
	assert.Error(t, err)
}
