package engine

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/lcrostarosa/vigil/internal/errors"
	"github.com/lcrostarosa/vigil/internal/ledger"
	"github.com/lcrostarosa/vigil/internal/records"
)

// CheckPendingEscalation reconciles durable state after the process was not
// running to observe it, and reports whether the escalation dialog must be
// shown. It keeps returning true until the alert is acknowledged through
// ConfirmSafe or DismissEscalationDialog, and never arms a second
// escalation for the same cycle.
func (e *Engine) CheckPendingEscalation(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.checkPendingLocked(ctx)
}

func (e *Engine) checkPendingLocked(ctx context.Context) (bool, error) {
	c, err := e.loadCycleLocked(ctx)
	if errors.Is(err, apperrors.ErrNotConfigured) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	due, err := e.ledger.IsDue(ctx, c.now, c.key)
	if err != nil {
		return false, err
	}
	rec, ok, err := e.records.Get(ctx, c.key)
	if err != nil {
		return false, err
	}

	if due {
		// The armed warning time passed while nobody was watching.
		if ok && rec.Resolved() {
			return false, nil
		}
		if !ok {
			rec = records.New(c.key, c.window, c.now)
			if err := e.records.Upsert(ctx, rec); err != nil {
				return false, err
			}
		}
		if err := e.pendLocked(ctx, c, rec); err != nil {
			return false, err
		}
		return true, nil
	}

	if !ok || rec.Resolved() {
		return false, nil
	}
	alert, has, err := e.ledger.Current(ctx, c.key)
	if err != nil {
		return false, err
	}
	if has && alert.Handled() {
		return false, nil
	}

	end, err := rec.WindowEndAt(c.now.Location())
	if err != nil {
		return false, err
	}
	if c.now.Before(end) && !rec.IsAbnormal {
		return false, nil
	}
	if err := e.pendLocked(ctx, c, rec); err != nil {
		return false, err
	}
	return true, nil
}

// pendLocked brings an unresolved, ended cycle into the abnormal state and
// surfaces the dialog.
func (e *Engine) pendLocked(ctx context.Context, c cycle, rec records.DayRecord) error {
	alert, has, err := e.ledger.Current(ctx, rec.Date)
	if err != nil {
		return err
	}
	if !rec.IsAbnormal {
		return e.enterAbnormalLocked(ctx, c, rec, alert, has)
	}
	if err := e.maintainAbnormalLocked(ctx, c, rec, alert, has); err != nil {
		return err
	}
	warnedAt, err := e.ensureWarnedAtLocked(ctx, c)
	if err != nil {
		return err
	}

	cur, _, err := e.ledger.Peek(ctx)
	if err != nil {
		return err
	}
	e.surfaceLocked(Event{
		DateKey:   rec.Date,
		State:     StateAbnormal,
		At:        c.now,
		Deadline:  cur.Deadline,
		Remaining: e.remaining(warnedAt, c),
	}, false)
	return nil
}

// ensureWarnedAtLocked resolves the moment the local warning fired and
// persists it the first time it becomes known. Nothing is written before
// the warning is due.
func (e *Engine) ensureWarnedAtLocked(ctx context.Context, c cycle) (time.Time, error) {
	var warnedAt time.Time
	_, err := e.ledger.Update(ctx, func(a *ledger.PendingAlert) bool {
		t, persisted := a.WarningTime(c.now, e.tolerance(c))
		warnedAt = t
		if persisted || a.ScheduledAt.After(c.now) {
			return false
		}
		a.WarnedAt = &t
		return true
	})
	if err != nil {
		return time.Time{}, err
	}
	if warnedAt.IsZero() {
		warnedAt = c.now
	}
	return warnedAt, nil
}

// Foreground handles the device returning to the foreground: reconcile
// first, then count the return as activity only when nothing is pending.
func (e *Engine) Foreground(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pending, err := e.checkPendingLocked(ctx)
	if err != nil {
		return false, err
	}
	if pending {
		return true, nil
	}
	if _, err := e.recordCheckInLocked(ctx); err != nil {
		return false, err
	}
	return false, nil
}

// RemainingGraceSeconds returns the seconds left before the escalation is
// final, counted from the persisted warning moment. Without an alert the
// full delay is returned; an acknowledged alert has none left. Store errors
// fall back to the full delay.
func (e *Engine) RemainingGraceSeconds(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, err := e.loadCycleLocked(ctx)
	if errors.Is(err, apperrors.ErrNotConfigured) {
		return int(defaultDelay().Seconds()), nil
	}
	if err != nil {
		return 0, err
	}
	full := int(c.delay.Seconds())

	alert, has, err := e.ledger.Current(ctx, c.key)
	if err != nil {
		e.metrics.IncStoreError("grace")
		e.log.Warn("could not read pending alert, showing full grace period", zap.Error(err))
		return full, nil
	}
	if !has {
		return full, nil
	}
	if alert.Handled() {
		e.metrics.SetGraceRemaining(0)
		return 0, nil
	}
	if alert.WarnedAt == nil && !alert.Due(c.now) {
		// Still inside the window; the countdown has not started.
		return full, nil
	}

	warnedAt, err := e.ensureWarnedAtLocked(ctx, c)
	if err != nil {
		e.metrics.IncStoreError("grace")
		e.log.Warn("could not persist warning time", zap.Error(err))
		warnedAt, _ = alert.WarningTime(c.now, e.tolerance(c))
	}
	left := e.remaining(warnedAt, c)
	e.metrics.SetGraceRemaining(left.Seconds())
	return int(math.Ceil(left.Seconds())), nil
}

// WarningFired is called by the local warning sink when the trigger fires.
// due is the time the warning was armed for; the first report fixes the
// warning moment under the same tolerance rule as reconciliation, and the
// cycle is evaluated immediately.
func (e *Engine) WarningFired(ctx context.Context, due time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, err := e.loadCycleLocked(ctx)
	if errors.Is(err, apperrors.ErrNotConfigured) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := e.ledger.Update(ctx, func(a *ledger.PendingAlert) bool {
		if a.DateKey != c.key || a.Handled() || a.WarnedAt != nil {
			return false
		}
		est := *a
		if !due.IsZero() {
			est.ScheduledAt = due
		}
		at, _ := est.WarningTime(c.now, e.tolerance(c))
		a.WarnedAt = &at
		return true
	}); err != nil {
		return err
	}
	return e.tickLocked(ctx)
}
