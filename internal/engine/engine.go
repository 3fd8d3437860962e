// Package engine implements the watchdog state machine: it watches one
// nightly window, arms a local warning at window end when no activity was
// seen, and hands the final escalation to a remote scheduler.
//
// All mutations run under a single lock. The durable state lives in the kv
// store (records, pending alert, cancellation outbox); trigger handles are
// process-local and rebuilt from the store after a restart.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	apperrors "github.com/lcrostarosa/vigil/internal/errors"
	"github.com/lcrostarosa/vigil/internal/escalation"
	"github.com/lcrostarosa/vigil/internal/kv"
	"github.com/lcrostarosa/vigil/internal/ledger"
	"github.com/lcrostarosa/vigil/internal/logging"
	"github.com/lcrostarosa/vigil/internal/metrics"
	"github.com/lcrostarosa/vigil/internal/records"
	"github.com/lcrostarosa/vigil/internal/settings"
)

// SettingsKey is the store key of the settings singleton.
const SettingsKey = "settings"

const (
	// DefaultPollInterval is the period of the monitoring tick.
	DefaultPollInterval = 30 * time.Second
	// DefaultGraceSlack is added to the escalation delay when deciding whether
	// a scheduled warning time can stand in for an unrecorded one.
	DefaultGraceSlack = 10 * time.Minute
	// wakeFactor ticks of silence are treated as a suspend and resume.
	wakeFactor = 3
)

// Trigger arms local warnings. Handles are lost when the process exits.
type Trigger interface {
	Schedule(ctx context.Context, title, body string, delay time.Duration) (string, error)
	Cancel(ctx context.Context, id string) error
}

type logTrigger struct{ log *zap.Logger }

func (t logTrigger) Schedule(ctx context.Context, title, body string, delay time.Duration) (string, error) {
	t.log.Info("local warning (no trigger)", zap.String("title", title), zap.Duration("delay", delay))
	return "", nil
}

func (logTrigger) Cancel(context.Context, string) error { return nil }

// Engine is the watchdog.
type Engine struct {
	store    kv.Store
	records  *records.Store
	ledger   *ledger.Ledger
	outbox   *ledger.Outbox
	settings *kv.Doc[settings.Settings]
	trigger  Trigger
	remote   escalation.Scheduler

	clock        clockwork.Clock
	metrics      metrics.Recorder
	callbacks    *Callbacks
	log          *zap.Logger
	pollInterval time.Duration
	graceSlack   time.Duration

	mu sync.Mutex
	// process-local, guarded by mu
	triggerID  string
	triggerKey string
	installID  string
	surfaced   string
	onAbnormal func(Event)

	ticking  atomic.Bool
	resumeCh chan struct{}

	runMu   sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running atomic.Bool
}

// Option configures an Engine
type Option func(*Engine)

// WithClock sets the clock. Tests use a fake clock.
func WithClock(c clockwork.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithMetrics sets the metrics recorder
func WithMetrics(r metrics.Recorder) Option {
	return func(e *Engine) { e.metrics = r }
}

// WithCallbacks sets transition hooks
func WithCallbacks(c *Callbacks) Option {
	return func(e *Engine) { e.callbacks = c }
}

// WithPollInterval sets the tick period
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.pollInterval = d
		}
	}
}

// WithGraceSlack sets the slack added to the escalation delay when
// reconstructing the warning moment
func WithGraceSlack(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.graceSlack = d
		}
	}
}

// New creates an engine over store. trig and remote may be nil, in which
// case warnings and escalations are only logged. Offline commands use that
// to edit state without a running daemon.
func New(store kv.Store, trig Trigger, remote escalation.Scheduler, opts ...Option) *Engine {
	e := &Engine{
		store:        store,
		trigger:      trig,
		remote:       remote,
		clock:        clockwork.NewRealClock(),
		metrics:      metrics.NoopRecorder{},
		log:          logging.Named("engine"),
		pollInterval: DefaultPollInterval,
		graceSlack:   DefaultGraceSlack,
		resumeCh:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.trigger == nil {
		e.trigger = logTrigger{log: e.log}
	}
	if e.remote == nil {
		e.remote = escalation.LogScheduler{}
	}
	e.records = records.NewStore(store, e.clock)
	e.ledger = ledger.New(store, e.clock)
	e.outbox = ledger.NewOutbox(store)
	e.settings = kv.NewDoc[settings.Settings](store, SettingsKey)
	return e
}

// Start launches the monitoring loop in the background. onAbnormal is
// called whenever the escalation dialog should be shown.
func (e *Engine) Start(ctx context.Context, onAbnormal func(Event)) error {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if e.running.Load() {
		return apperrors.ErrAlreadyRunning
	}

	e.mu.Lock()
	e.onAbnormal = onAbnormal
	e.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	e.running.Store(true)

	go func() {
		defer close(e.done)
		defer e.running.Store(false)
		if err := e.Run(runCtx); err != nil {
			e.log.Error("monitoring loop stopped", zap.Error(err))
		}
	}()
	return nil
}

// Stop ends the monitoring loop and disarms the local warning. Durable
// state, including any remote escalation, is left as is.
func (e *Engine) Stop() error {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if e.cancel == nil {
		return apperrors.ErrNotRunning
	}
	e.cancel()
	<-e.done
	e.cancel = nil

	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelTriggerLocked(context.Background())
	e.onAbnormal = nil
	return nil
}

// Running reports whether the monitoring loop is active
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Run drives the engine until ctx is done: a reconciliation at start, then
// a tick every poll interval, and a foreground pass for every Resume. A tick
// that is still running when the next one is due causes that one to be
// skipped.
func (e *Engine) Run(ctx context.Context) error {
	ticker := e.clock.NewTicker(e.pollInterval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	if _, err := e.CheckPendingEscalation(ctx); err != nil {
		e.log.Warn("startup reconciliation failed", zap.Error(err))
	}
	e.Tick(ctx)
	last := e.clock.Now()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.Chan():
			now := e.clock.Now()
			gap := now.Sub(last)
			wake := gap > wakeFactor*e.pollInterval
			last = now

			if !e.ticking.CompareAndSwap(false, true) {
				e.metrics.IncTickSkipped()
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer e.ticking.Store(false)
				if wake {
					e.log.Info("clock jumped, reconciling", zap.Duration("gap", gap))
					if _, err := e.CheckPendingEscalation(ctx); err != nil {
						e.log.Warn("wake reconciliation failed", zap.Error(err))
					}
				}
				e.tick(ctx)
			}()

		case <-e.resumeCh:
			if _, err := e.Foreground(ctx); err != nil {
				e.log.Warn("resume handling failed", zap.Error(err))
			}
		}
	}
}

// Resume signals that the device came back to the foreground. Signals are
// coalesced; the running loop handles them in order with ticks.
func (e *Engine) Resume() {
	select {
	case e.resumeCh <- struct{}{}:
	default:
	}
}

// Tick runs one monitoring step unless another one is in flight.
func (e *Engine) Tick(ctx context.Context) {
	if !e.ticking.CompareAndSwap(false, true) {
		e.metrics.IncTickSkipped()
		return
	}
	defer e.ticking.Store(false)
	e.tick(ctx)
}

func (e *Engine) tick(ctx context.Context) {
	start := e.clock.Now()
	e.mu.Lock()
	err := e.tickLocked(ctx)
	e.mu.Unlock()
	e.metrics.ObserveTick(e.clock.Since(start))
	if err != nil {
		e.metrics.IncStoreError("tick")
		e.log.Warn("tick aborted", zap.Error(err))
	}
}
