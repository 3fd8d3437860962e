package scheduler

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryStrategy defines the retry behavior for failed jobs and remote calls
type RetryStrategy struct {
	// MaxRetries is the maximum number of retry attempts (0 = no retries)
	MaxRetries int
	// InitialDelay is the delay before the first retry
	InitialDelay time.Duration
	// MaxDelay is the maximum delay between retries
	MaxDelay time.Duration
	// BackoffFactor is the multiplier applied to delay after each attempt
	BackoffFactor float64
}

// DefaultRetryStrategy returns the strategy used for relay deliveries
func DefaultRetryStrategy() *RetryStrategy {
	return &RetryStrategy{
		MaxRetries:    5,
		InitialDelay:  10 * time.Second,
		MaxDelay:      5 * time.Minute,
		BackoffFactor: 2.0,
	}
}

// NoRetry returns a strategy that never retries
func NoRetry() *RetryStrategy {
	return &RetryStrategy{
		MaxRetries: 0,
	}
}

// NextDelay calculates the delay before the next retry attempt.
// attempt is 1-indexed (1 = first retry)
func (r *RetryStrategy) NextDelay(attempt int) time.Duration {
	if r == nil || attempt < 1 || attempt > r.MaxRetries {
		return 0
	}

	delay := float64(r.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= r.BackoffFactor
		if time.Duration(delay) > r.MaxDelay {
			return r.MaxDelay
		}
	}
	if time.Duration(delay) > r.MaxDelay {
		return r.MaxDelay
	}
	return time.Duration(delay)
}

// ShouldRetry returns true if another retry should be attempted
func (r *RetryStrategy) ShouldRetry(attempt int) bool {
	return r != nil && attempt <= r.MaxRetries
}

// BackOff converts the strategy into a backoff policy bound to ctx.
func (r *RetryStrategy) BackOff(ctx context.Context) backoff.BackOff {
	if r == nil || r.MaxRetries == 0 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.InitialDelay
	bo.MaxInterval = r.MaxDelay
	bo.Multiplier = r.BackoffFactor
	bo.RandomizationFactor = 0.1
	bo.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(bo, uint64(r.MaxRetries)), ctx)
}

// JobResult holds the result of one job attempt
type JobResult struct {
	Name string
	// ScheduledTime is when the job was due
	ScheduledTime time.Time
	// StartTime is when this attempt started
	StartTime time.Time
	// EndTime is when this attempt completed
	EndTime time.Time
	// Success indicates if the attempt succeeded
	Success bool
	// Error holds any error that occurred
	Error error
	// Attempt is the attempt number (1 = first attempt, 2+ = retries)
	Attempt int
	// WillRetry indicates if another retry will be attempted
	WillRetry bool
}

// Duration returns how long the attempt took
func (r *JobResult) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// Lateness returns how far after its due time the attempt started
func (r *JobResult) Lateness() time.Duration {
	return r.StartTime.Sub(r.ScheduledTime)
}

// IsRetry returns true if this was a retry attempt
func (r *JobResult) IsRetry() bool {
	return r.Attempt > 1
}
