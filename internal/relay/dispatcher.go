package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/lcrostarosa/vigil/internal/escalation"
	"github.com/lcrostarosa/vigil/internal/logging"
	"github.com/lcrostarosa/vigil/internal/metrics"
	"github.com/lcrostarosa/vigil/internal/scheduler"
)

// Dispatcher arms one scheduler job per pending task and delivers it through
// a Sender. The store is the source of truth; jobs are rebuilt from it by Load.
type Dispatcher struct {
	store   *TaskStore
	sender  Sender
	sched   *scheduler.Scheduler
	retry   *scheduler.RetryStrategy
	clock   clockwork.Clock
	metrics metrics.Recorder
	log     *zap.Logger

	mu   sync.Mutex
	jobs map[string]string // task id -> job id
}

// DispatcherOption configures a Dispatcher
type DispatcherOption func(*Dispatcher)

// WithDispatchClock sets the clock deliveries are timed against
func WithDispatchClock(c clockwork.Clock) DispatcherOption {
	return func(d *Dispatcher) { d.clock = c }
}

// WithDispatchRetry sets the delivery retry strategy
func WithDispatchRetry(r *scheduler.RetryStrategy) DispatcherOption {
	return func(d *Dispatcher) { d.retry = r }
}

// WithDispatchMetrics sets the metrics recorder
func WithDispatchMetrics(m metrics.Recorder) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher creates a stopped dispatcher
func NewDispatcher(store *TaskStore, sender Sender, opts ...DispatcherOption) (*Dispatcher, error) {
	d := &Dispatcher{
		store:   store,
		sender:  sender,
		retry:   scheduler.DefaultRetryStrategy(),
		clock:   clockwork.NewRealClock(),
		metrics: metrics.NoopRecorder{},
		log:     logging.Named("relay"),
		jobs:    make(map[string]string),
	}
	for _, o := range opts {
		o(d)
	}
	if d.sender == nil {
		d.sender = LogSender{}
	}

	sched, err := scheduler.New(
		scheduler.WithClock(d.clock),
		scheduler.WithRetry(d.retry),
		scheduler.WithCallbacks(scheduler.LoggingCallbacks(d.log.Sugar().Debugf)),
	)
	if err != nil {
		return nil, err
	}
	d.sched = sched
	return d, nil
}

// Start arms every pending task from the store and starts delivering.
// Tasks whose time passed while the relay was down are delivered at once.
func (d *Dispatcher) Start(ctx context.Context) (int, error) {
	pending, err := d.store.List(ctx, StatusPending)
	if err != nil {
		return 0, err
	}
	for _, rec := range pending {
		if err := d.arm(rec); err != nil {
			return 0, err
		}
	}
	d.sched.Start()
	d.metrics.SetRelayPending(len(pending))
	d.log.Info("dispatcher started", zap.Int("pending", len(pending)))
	return len(pending), nil
}

// Stop drops armed jobs. Pending tasks stay in the store.
func (d *Dispatcher) Stop() error {
	return d.sched.Stop()
}

// Schedule stores t, replacing any task with the same id, and arms it.
func (d *Dispatcher) Schedule(ctx context.Context, t escalation.Task) (Record, error) {
	rec, err := d.store.Put(ctx, t, d.clock.Now())
	if err != nil {
		return Record{}, err
	}
	if err := d.arm(rec); err != nil {
		return Record{}, err
	}
	d.metrics.IncRelayTask("scheduled")
	d.refreshPending(ctx)
	d.log.Info("task scheduled",
		zap.String("task_id", rec.TaskID),
		zap.Time("scheduled_time", rec.ScheduledTime),
		zap.Int64("generation", rec.Generation))
	return rec, nil
}

// Cancel cancels a pending task. Unknown and finished tasks are ignored.
func (d *Dispatcher) Cancel(ctx context.Context, id string) (bool, error) {
	found, err := d.store.Cancel(ctx, id, d.clock.Now())
	if err != nil {
		return false, err
	}
	d.disarm(id)
	if found {
		d.metrics.IncRelayTask("cancelled")
		d.log.Info("task cancelled", zap.String("task_id", id))
	}
	d.refreshPending(ctx)
	return found, nil
}

// Prune deletes finished tasks older than age
func (d *Dispatcher) Prune(ctx context.Context, age time.Duration) (int64, error) {
	return d.store.Prune(ctx, d.clock.Now().Add(-age))
}

// PruneEvery registers a housekeeping job that deletes tasks finished more
// than age ago, once per interval. It stops with the dispatcher.
func (d *Dispatcher) PruneEvery(interval, age time.Duration) error {
	_, err := d.sched.Every("prune finished tasks", interval, func(ctx context.Context) error {
		n, err := d.Prune(ctx, age)
		if err != nil {
			d.log.Warn("prune failed", zap.Error(err))
			return err
		}
		if n > 0 {
			d.log.Info("pruned finished tasks", zap.Int64("count", n))
		}
		return nil
	})
	return err
}

func (d *Dispatcher) arm(rec Record) error {
	d.disarm(rec.TaskID)

	jobID, err := d.sched.At("deliver "+rec.TaskID, rec.ScheduledTime, d.deliver(rec.TaskID, rec.Generation))
	if err != nil {
		return fmt.Errorf("arm task %s: %w", rec.TaskID, err)
	}
	d.mu.Lock()
	d.jobs[rec.TaskID] = jobID
	d.mu.Unlock()
	return nil
}

func (d *Dispatcher) disarm(id string) {
	d.mu.Lock()
	jobID, ok := d.jobs[id]
	delete(d.jobs, id)
	d.mu.Unlock()
	if !ok {
		return
	}
	if err := d.sched.Cancel(jobID); err != nil {
		d.log.Warn("could not remove delivery job", zap.String("task_id", id), zap.Error(err))
	}
}

// deliver returns the job body for one generation of a task. It re-reads the
// task before every attempt so a cancel or replace wins over a pending retry.
func (d *Dispatcher) deliver(id string, gen int64) scheduler.JobFunc {
	return func(ctx context.Context) error {
		rec, ok, err := d.store.Get(ctx, id)
		if err != nil {
			return err
		}
		if !ok || rec.Status != StatusPending || rec.Generation != gen {
			return nil
		}

		start := d.clock.Now()
		if err := d.sender.Send(ctx, rec.Task); err != nil {
			attempt := rec.Attempts + 1
			if rerr := d.store.RecordAttempt(ctx, id, gen, err.Error(), start); rerr != nil {
				d.log.Warn("could not record attempt", zap.String("task_id", id), zap.Error(rerr))
			}
			if !d.retry.ShouldRetry(attempt) {
				if ferr := d.store.MarkFailed(ctx, id, gen, err.Error(), d.clock.Now()); ferr != nil {
					d.log.Error("could not mark task failed", zap.String("task_id", id), zap.Error(ferr))
				}
				d.metrics.IncRelayTask("failed")
				d.log.Error("delivery failed, giving up",
					zap.String("task_id", id),
					zap.Int("attempts", attempt),
					zap.Error(err))
				d.forget(id, gen)
				d.refreshPending(ctx)
				return err
			}
			d.metrics.IncRelayTask("retry")
			return err
		}

		if err := d.store.MarkDelivered(ctx, id, gen, d.clock.Now()); err != nil {
			d.log.Error("delivered but could not record it", zap.String("task_id", id), zap.Error(err))
		}
		d.metrics.IncRelayTask("delivered")
		d.metrics.ObserveDeliveryLateness(start.Sub(rec.ScheduledTime))
		d.forget(id, gen)
		d.refreshPending(ctx)
		d.log.Info("task delivered",
			zap.String("task_id", id),
			zap.Duration("late", start.Sub(rec.ScheduledTime)))
		return nil
	}
}

// forget drops the job handle if it still belongs to generation gen.
func (d *Dispatcher) forget(id string, gen int64) {
	rec, ok, err := d.store.Get(context.Background(), id)
	if err != nil || (ok && rec.Generation != gen) {
		return
	}
	d.mu.Lock()
	delete(d.jobs, id)
	d.mu.Unlock()
}

func (d *Dispatcher) refreshPending(ctx context.Context) {
	n, err := d.store.Count(ctx, StatusPending)
	if err != nil {
		return
	}
	d.metrics.SetRelayPending(n)
}
