package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/lcrostarosa/vigil/internal/errors"
	"github.com/lcrostarosa/vigil/internal/escalation"
	"github.com/lcrostarosa/vigil/internal/ledger"
	"github.com/lcrostarosa/vigil/internal/records"
	"github.com/lcrostarosa/vigil/internal/settings"
	"github.com/lcrostarosa/vigil/internal/window"
)

// cycle is the view of the current settings every step works from.
type cycle struct {
	settings settings.Settings
	window   window.Window
	delay    time.Duration
	now      time.Time
	key      string
}

func (e *Engine) loadCycleLocked(ctx context.Context) (cycle, error) {
	s, ok, err := e.settings.Load(ctx)
	if err != nil {
		return cycle{}, fmt.Errorf("load settings: %w", err)
	}
	if !ok {
		return cycle{}, apperrors.ErrNotConfigured
	}
	w, err := s.Window()
	if err != nil {
		return cycle{}, err
	}
	now := e.clock.Now()
	return cycle{
		settings: s,
		window:   w,
		delay:    s.EscalationDelay(),
		now:      now,
		key:      w.CycleKey(now),
	}, nil
}

// tolerance bounds how stale a scheduled warning time may be and still be
// trusted as the moment the warning fired.
func (e *Engine) tolerance(c cycle) time.Duration {
	return c.delay + e.graceSlack
}

func (e *Engine) tickLocked(ctx context.Context) error {
	c, err := e.loadCycleLocked(ctx)
	if errors.Is(err, apperrors.ErrNotConfigured) {
		return nil
	}
	if err != nil {
		return err
	}

	e.flushOutboxLocked(ctx)

	rec, ok, err := e.records.Get(ctx, c.key)
	if err != nil {
		return err
	}

	if c.window.Contains(c.now) {
		if !ok {
			rec = records.New(c.key, c.window, c.now)
			if err := e.records.Upsert(ctx, rec); err != nil {
				return err
			}
			e.emit(Event{DateKey: c.key, State: StateArmed, At: c.now})
		}
		if rec.Resolved() || rec.IsAbnormal {
			return nil
		}
		return e.armWarningLocked(ctx, c)
	}

	// Outside the window with no record means monitoring never started for
	// this cycle. That is not evidence of anything.
	if !ok {
		return nil
	}
	return e.evaluateLocked(ctx, c, rec)
}

// armWarningLocked records the pending warning for the end of the current
// window and arms the local trigger for it. Both steps are idempotent.
func (e *Engine) armWarningLocked(ctx context.Context, c cycle) error {
	end := c.window.NextEnd(c.now)
	if _, err := e.ledger.Arm(ctx, end, c.key); err != nil {
		return err
	}
	if e.triggerID != "" && e.triggerKey == c.key {
		return nil
	}

	id, err := e.trigger.Schedule(ctx, warningTitle, warningBody(c.window, c.delay), end.Sub(c.now))
	if err != nil {
		e.log.Warn("could not arm local warning", zap.Error(err))
		return nil
	}
	e.triggerID, e.triggerKey = id, c.key
	e.log.Debug("local warning armed",
		zap.String("date", c.key),
		zap.Time("at", end))
	return nil
}

// evaluateLocked decides the outcome of a cycle whose record exists and
// whose window may have ended.
func (e *Engine) evaluateLocked(ctx context.Context, c cycle, rec records.DayRecord) error {
	end, err := rec.WindowEndAt(c.now.Location())
	if err != nil {
		return err
	}
	if c.now.Before(end) || rec.Resolved() {
		return nil
	}

	alert, has, err := e.ledger.Current(ctx, rec.Date)
	if err != nil {
		return err
	}
	if has && alert.Handled() {
		return nil
	}
	if !rec.IsAbnormal {
		return e.enterAbnormalLocked(ctx, c, rec, alert, has)
	}
	return e.maintainAbnormalLocked(ctx, c, rec, alert, has)
}

// enterAbnormalLocked performs the transition to abnormal. The ledger is
// written first and the record flag last, so a failed write leaves the cycle
// unmarked and the next tick repeats the whole transition, warning included.
// The guard on the record flag makes it safe to reach from ticks, resumes
// and the trigger.
func (e *Engine) enterAbnormalLocked(ctx context.Context, c cycle, rec records.DayRecord, alert ledger.PendingAlert, has bool) error {
	marked := rec
	if !marked.MarkAbnormal() {
		return nil
	}

	if !has {
		a, err := e.ledger.Arm(ctx, c.now, rec.Date)
		if err != nil {
			return err
		}
		alert = a
	}

	warnedAt, _ := alert.WarningTime(c.now, e.tolerance(c))
	deadline := c.now.Add(c.delay)
	taskID, err := e.taskIDLocked(ctx, rec.Date)
	if err != nil {
		return err
	}
	if _, err := e.ledger.Update(ctx, func(a *ledger.PendingAlert) bool {
		if a.WarnedAt == nil {
			a.WarnedAt = &warnedAt
		} else {
			warnedAt = *a.WarnedAt
		}
		// Kept from an attempt whose record write failed.
		if a.Deadline == nil {
			a.Deadline = &deadline
		} else {
			deadline = *a.Deadline
		}
		a.TaskID = taskID
		return true
	}); err != nil {
		return err
	}
	if err := e.records.Upsert(ctx, marked); err != nil {
		return err
	}

	e.fireWarningLocked(ctx, c, rec.Date)
	e.scheduleRemoteLocked(ctx, c, rec.Date, taskID, deadline)

	e.log.Info("no check-in during window",
		zap.String("date", rec.Date),
		zap.Time("deadline", deadline))
	e.surfaceLocked(Event{
		DateKey:   rec.Date,
		State:     StateAbnormal,
		At:        c.now,
		Deadline:  &deadline,
		Remaining: e.remaining(warnedAt, c),
	}, true)
	return nil
}

// maintainAbnormalLocked keeps an abnormal cycle moving: it retries a remote
// schedule that never succeeded and detects the end of the grace period.
func (e *Engine) maintainAbnormalLocked(ctx context.Context, c cycle, rec records.DayRecord, alert ledger.PendingAlert, has bool) error {
	if !has || alert.Deadline == nil {
		// The ledger was lost after the record was marked. Rebuild it without
		// touching the record, and warn again unless a warning is on file.
		unwarned := !has || alert.WarnedAt == nil
		if !has {
			a, err := e.ledger.Arm(ctx, c.now, rec.Date)
			if err != nil {
				return err
			}
			alert = a
		}
		warnedAt, _ := alert.WarningTime(c.now, e.tolerance(c))
		deadline := warnedAt.Add(c.delay)
		taskID, err := e.taskIDLocked(ctx, rec.Date)
		if err != nil {
			return err
		}
		if _, err := e.ledger.Update(ctx, func(a *ledger.PendingAlert) bool {
			if a.WarnedAt == nil {
				a.WarnedAt = &warnedAt
			}
			a.Deadline = &deadline
			a.TaskID = taskID
			return true
		}); err != nil {
			return err
		}
		alert.WarnedAt, alert.Deadline, alert.TaskID = &warnedAt, &deadline, taskID

		if unwarned {
			e.fireWarningLocked(ctx, c, rec.Date)
			e.surfaceLocked(Event{
				DateKey:   rec.Date,
				State:     StateAbnormal,
				At:        c.now,
				Deadline:  &deadline,
				Remaining: e.remaining(warnedAt, c),
			}, false)
		}
	}

	if !alert.RemoteArmed {
		e.scheduleRemoteLocked(ctx, c, rec.Date, alert.TaskID, *alert.Deadline)
	}

	if alert.PastDeadline(c.now) && !rec.EscalationSent {
		rec.EscalationSent = true
		if err := e.records.Upsert(ctx, rec); err != nil {
			return err
		}
		e.log.Warn("grace period elapsed without confirmation",
			zap.String("date", rec.Date))
		e.emit(Event{DateKey: rec.Date, State: StateEscalated, At: c.now, Deadline: alert.Deadline})
	}
	return nil
}

// fireWarningLocked makes sure the local warning is shown for an abnormal
// cycle. A trigger armed by this process fires on its own; otherwise it was
// lost with a previous process and is fired now.
func (e *Engine) fireWarningLocked(ctx context.Context, c cycle, dateKey string) {
	if e.triggerID != "" && e.triggerKey == dateKey {
		e.triggerID, e.triggerKey = "", ""
		return
	}
	if _, err := e.trigger.Schedule(ctx, warningTitle, warningBody(c.window, c.delay), 0); err != nil {
		e.log.Warn("could not fire local warning", zap.Error(err))
	}
	e.triggerID, e.triggerKey = "", ""
}

// scheduleRemoteLocked hands the escalation to the remote scheduler. Failure
// is logged and retried on later ticks.
func (e *Engine) scheduleRemoteLocked(ctx context.Context, c cycle, dateKey, taskID string, deadline time.Time) {
	task := escalation.Task{
		TaskID:        taskID,
		Destination:   c.settings.Contact.Destination,
		Channel:       string(c.settings.Contact.Kind),
		Message:       escalation.Message(c.settings.Owner, c.window, dateKey),
		ScheduledTime: deadline,
	}
	err := e.remote.Schedule(ctx, task)
	e.metrics.IncRemoteCall("schedule", err == nil)
	if err != nil {
		e.log.Warn("could not schedule remote escalation, will retry",
			zap.String("task_id", taskID),
			zap.String("error", apperrors.SanitizeError(err)))
		return
	}
	if _, err := e.ledger.Update(ctx, func(a *ledger.PendingAlert) bool {
		if a.DateKey != dateKey || a.RemoteArmed {
			return false
		}
		a.RemoteArmed = true
		return true
	}); err != nil {
		e.log.Warn("could not record remote escalation", zap.Error(err))
	}
}

// cancelTriggerLocked disarms the local warning, if this process armed one.
func (e *Engine) cancelTriggerLocked(ctx context.Context) {
	if e.triggerID == "" {
		return
	}
	if err := e.trigger.Cancel(ctx, e.triggerID); err != nil {
		e.log.Warn("could not cancel local warning", zap.Error(err))
	}
	e.triggerID, e.triggerKey = "", ""
}

// cancelRemoteLocked cancels a remote task. A failed cancel is queued in the
// outbox and retried on every tick until the relay accepts it.
func (e *Engine) cancelRemoteLocked(ctx context.Context, taskID string) {
	if taskID == "" {
		return
	}
	err := e.remote.Cancel(ctx, taskID)
	e.metrics.IncRemoteCall("cancel", err == nil)
	if err == nil {
		return
	}
	e.log.Warn("could not cancel remote escalation, queued for retry",
		zap.String("task_id", taskID),
		zap.String("error", apperrors.SanitizeError(err)))
	if err := e.outbox.Add(ctx, taskID); err != nil {
		e.metrics.IncStoreError("outbox")
		e.log.Error("could not queue remote cancellation", zap.String("task_id", taskID), zap.Error(err))
	}
}

func (e *Engine) flushOutboxLocked(ctx context.Context) {
	ids, err := e.outbox.List(ctx)
	if err != nil {
		e.metrics.IncStoreError("outbox")
		e.log.Warn("could not read cancellation outbox", zap.Error(err))
		return
	}
	for _, id := range ids {
		err := e.remote.Cancel(ctx, id)
		e.metrics.IncRemoteCall("cancel", err == nil)
		if err != nil {
			e.log.Debug("queued cancellation still failing", zap.String("task_id", id), zap.Error(err))
			continue
		}
		if err := e.outbox.Remove(ctx, id); err != nil {
			e.log.Warn("could not dequeue cancellation", zap.String("task_id", id), zap.Error(err))
		}
	}
}

func (e *Engine) taskIDLocked(ctx context.Context, dateKey string) (string, error) {
	if e.installID == "" {
		id, err := ledger.InstallID(ctx, e.store)
		if err != nil {
			return "", err
		}
		e.installID = id
	}
	return escalation.TaskID(e.installID, dateKey), nil
}

func (e *Engine) remaining(warnedAt time.Time, c cycle) time.Duration {
	return ledger.Remaining(warnedAt, c.now, c.delay)
}

// emit records a transition and runs the matching callback.
func (e *Engine) emit(ev Event) {
	e.metrics.IncTransition(string(ev.State))
	switch ev.State {
	case StateArmed:
		e.callbacks.call(onArmed, ev)
	case StateCheckedIn:
		e.callbacks.call(onCheckIn, ev)
	case StateAbnormal:
		e.callbacks.call(onAbnormal, ev)
	case StateConfirmed:
		e.callbacks.call(onConfirmed, ev)
	case StateEscalated:
		e.callbacks.call(onEscalated, ev)
	case StateReset:
		e.callbacks.call(onReset, ev)
	}
}

// surfaceLocked asks the UI to show the escalation dialog, once per cycle
// per process. transition marks a state change that is also counted.
func (e *Engine) surfaceLocked(ev Event, transition bool) {
	if transition {
		e.emit(ev)
	}
	if e.surfaced == ev.DateKey {
		return
	}
	e.surfaced = ev.DateKey
	if e.onAbnormal != nil {
		e.onAbnormal(ev)
	}
}
