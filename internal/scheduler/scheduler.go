// Package scheduler runs one-shot jobs at absolute times and recurring jobs
// at a fixed interval. It backs the local warning trigger, the relay's
// deliveries and its housekeeping. Jobs live only in memory: a
// process that dies takes its pending jobs with it.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/lcrostarosa/vigil/internal/logging"
)

// JobFunc is the body of a scheduled job.
type JobFunc func(ctx context.Context) error

// JobInfo describes a pending job
type JobInfo struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	NextRun time.Time `json:"next_run"`
}

// Scheduler wraps a gocron scheduler with cancellable jobs.
type Scheduler struct {
	s         gocron.Scheduler
	clock     clockwork.Clock
	callbacks *Callbacks
	retry     *RetryStrategy

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	running   bool
	lastRun   time.Time
	lastError error
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithClock sets the clock jobs are timed against.
func WithClock(c clockwork.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithCallbacks sets job lifecycle hooks.
func WithCallbacks(c *Callbacks) Option {
	return func(s *Scheduler) { s.callbacks = c }
}

// WithRetry sets the retry strategy for failing jobs.
func WithRetry(r *RetryStrategy) Option {
	return func(s *Scheduler) { s.retry = r }
}

// New creates a stopped scheduler.
func New(opts ...Option) (*Scheduler, error) {
	sch := &Scheduler{
		clock: clockwork.NewRealClock(),
		retry: NoRetry(),
	}
	for _, o := range opts {
		o(sch)
	}

	s, err := gocron.NewScheduler(
		gocron.WithClock(sch.clock),
		gocron.WithLogger(gocronLogger{logging.Named("scheduler").Sugar()}),
	)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	sch.s = s
	sch.ctx, sch.cancel = context.WithCancel(context.Background())
	return sch, nil
}

// Start begins running jobs.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.s.Start()
}

// Stop cancels running jobs and drops pending ones.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.cancel()
	return s.s.Shutdown()
}

// At schedules fn to run once at the given time. A time that is not in the
// future runs immediately. The returned id cancels the job.
func (s *Scheduler) At(name string, at time.Time, fn JobFunc) (string, error) {
	start := gocron.OneTimeJobStartImmediately()
	if at.After(s.clock.Now()) {
		start = gocron.OneTimeJobStartDateTime(at)
	}

	job, err := s.s.NewJob(
		gocron.OneTimeJob(start),
		gocron.NewTask(s.run, name, at, fn),
		gocron.WithName(name),
	)
	if err != nil {
		return "", fmt.Errorf("schedule %s: %w", name, err)
	}
	return job.ID().String(), nil
}

// After schedules fn to run once after d.
func (s *Scheduler) After(name string, d time.Duration, fn JobFunc) (string, error) {
	return s.At(name, s.clock.Now().Add(d), fn)
}

// Every runs fn every interval until the job is cancelled or the scheduler
// stops. A run still in progress when the next one is due skips that turn.
func (s *Scheduler) Every(name string, interval time.Duration, fn JobFunc) (string, error) {
	if interval <= 0 {
		return "", fmt.Errorf("schedule %s: interval must be positive", name)
	}
	job, err := s.s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { s.run(name, s.clock.Now(), fn) }),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", fmt.Errorf("schedule %s: %w", name, err)
	}
	return job.ID().String(), nil
}

// Cancel removes a pending job. Unknown or finished jobs are not an error.
func (s *Scheduler) Cancel(id string) error {
	jobID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid job id %q: %w", id, err)
	}
	if err := s.s.RemoveJob(jobID); err != nil && !errors.Is(err, gocron.ErrJobNotFound) {
		return fmt.Errorf("cancel job: %w", err)
	}
	return nil
}

// Pending lists jobs that have not run yet, soonest first.
func (s *Scheduler) Pending() []JobInfo {
	var out []JobInfo
	for _, j := range s.s.Jobs() {
		next, err := j.NextRun()
		if err != nil || next.IsZero() {
			continue
		}
		out = append(out, JobInfo{ID: j.ID().String(), Name: j.Name(), NextRun: next})
	}
	sort.Slice(out, func(i, k int) bool { return out[i].NextRun.Before(out[k].NextRun) })
	return out
}

// Status returns the outcome of the most recent job.
func (s *Scheduler) Status() (lastRun time.Time, lastError error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastError
}

func (s *Scheduler) run(name string, scheduled time.Time, fn JobFunc) {
	var results []*JobResult
	for attempt := 1; ; attempt++ {
		result := &JobResult{
			Name:          name,
			ScheduledTime: scheduled,
			StartTime:     s.clock.Now(),
			Attempt:       attempt,
		}
		s.callbacks.callOnStart(result)

		err := fn(s.ctx)
		result.EndTime = s.clock.Now()
		result.Error = err
		result.Success = err == nil

		s.mu.Lock()
		s.lastRun = result.EndTime
		s.lastError = err
		s.mu.Unlock()

		if err == nil {
			s.callbacks.callOnSuccess(result)
			return
		}

		result.WillRetry = s.retry.ShouldRetry(attempt) && s.ctx.Err() == nil
		results = append(results, result)
		s.callbacks.callOnFailure(result)
		if !result.WillRetry {
			if len(results) > 1 {
				s.callbacks.callOnRetryExhausted(results)
			}
			return
		}

		select {
		case <-s.ctx.Done():
			return
		case <-s.clock.After(s.retry.NextDelay(attempt)):
		}
	}
}

// gocronLogger adapts zap to gocron's key/value logger.
type gocronLogger struct {
	l *zap.SugaredLogger
}

func (g gocronLogger) Debug(msg string, args ...any) { g.l.Debugw(msg, args...) }
func (g gocronLogger) Error(msg string, args ...any) { g.l.Errorw(msg, args...) }
func (g gocronLogger) Info(msg string, args ...any)  { g.l.Debugw(msg, args...) }
func (g gocronLogger) Warn(msg string, args ...any)  { g.l.Warnw(msg, args...) }

// FormatDuration formats a duration nicely
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%.1f hours", d.Hours())
	}
	return fmt.Sprintf("%.1f days", d.Hours()/24)
}
