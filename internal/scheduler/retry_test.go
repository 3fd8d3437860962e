package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
)

func TestDefaultRetryStrategy(t *testing.T) {
	r := DefaultRetryStrategy()

	if r.MaxRetries != 5 {
		t.Errorf("expected MaxRetries=5, got %d", r.MaxRetries)
	}
	if r.InitialDelay != 10*time.Second {
		t.Errorf("expected InitialDelay=10s, got %v", r.InitialDelay)
	}
	if r.MaxDelay != 5*time.Minute {
		t.Errorf("expected MaxDelay=5m, got %v", r.MaxDelay)
	}
	if r.BackoffFactor != 2.0 {
		t.Errorf("expected BackoffFactor=2.0, got %f", r.BackoffFactor)
	}
}

func TestNoRetry(t *testing.T) {
	r := NoRetry()

	if r.MaxRetries != 0 {
		t.Errorf("expected MaxRetries=0, got %d", r.MaxRetries)
	}
	if r.ShouldRetry(1) {
		t.Error("NoRetry should never allow retries")
	}
}

func TestRetryStrategy_NextDelay(t *testing.T) {
	r := &RetryStrategy{
		MaxRetries:    4,
		InitialDelay:  1 * time.Minute,
		MaxDelay:      5 * time.Minute,
		BackoffFactor: 2.0,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 0},
		{1, 1 * time.Minute},
		{2, 2 * time.Minute},
		{3, 4 * time.Minute},
		{4, 5 * time.Minute},
		{5, 0},
	}

	for _, tt := range tests {
		if got := r.NextDelay(tt.attempt); got != tt.want {
			t.Errorf("NextDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRetryStrategy_ShouldRetry(t *testing.T) {
	r := &RetryStrategy{MaxRetries: 2}

	if !r.ShouldRetry(1) || !r.ShouldRetry(2) {
		t.Error("expected retries after attempts 1 and 2")
	}
	if r.ShouldRetry(3) {
		t.Error("expected no retry after attempt 3")
	}

	var nilStrategy *RetryStrategy
	if nilStrategy.ShouldRetry(1) {
		t.Error("nil strategy should not retry")
	}
}

func TestRetryStrategy_BackOffStopsAfterMaxRetries(t *testing.T) {
	r := &RetryStrategy{
		MaxRetries:    2,
		InitialDelay:  time.Millisecond,
		MaxDelay:      2 * time.Millisecond,
		BackoffFactor: 2.0,
	}

	calls := 0
	err := backoff.Retry(func() error {
		calls++
		return errors.New("unavailable")
	}, r.BackOff(context.Background()))

	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestNoRetry_BackOffCallsOnce(t *testing.T) {
	calls := 0
	_ = backoff.Retry(func() error {
		calls++
		return errors.New("unavailable")
	}, NoRetry().BackOff(context.Background()))

	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestJobResult(t *testing.T) {
	start := time.Date(2026, 10, 17, 22, 10, 5, 0, time.UTC)
	r := &JobResult{
		ScheduledTime: start.Add(-5 * time.Second),
		StartTime:     start,
		EndTime:       start.Add(2 * time.Second),
		Attempt:       2,
	}

	if r.Duration() != 2*time.Second {
		t.Errorf("expected duration 2s, got %v", r.Duration())
	}
	if r.Lateness() != 5*time.Second {
		t.Errorf("expected lateness 5s, got %v", r.Lateness())
	}
	if !r.IsRetry() {
		t.Error("attempt 2 is a retry")
	}
}
