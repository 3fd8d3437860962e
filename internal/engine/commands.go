package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/lcrostarosa/vigil/internal/errors"
	"github.com/lcrostarosa/vigil/internal/records"
	"github.com/lcrostarosa/vigil/internal/settings"
	"github.com/lcrostarosa/vigil/internal/window"
)

func defaultDelay() time.Duration {
	return settings.DefaultEscalationDelaySeconds * time.Second
}

// RecordCheckIn records device activity. It reports whether the activity
// counted: only activity inside the window does, and it disarms any warning
// prepared for that window.
func (e *Engine) RecordCheckIn(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recordCheckInLocked(ctx)
}

func (e *Engine) recordCheckInLocked(ctx context.Context) (bool, error) {
	c, err := e.loadCycleLocked(ctx)
	if errors.Is(err, apperrors.ErrNotConfigured) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !c.window.Contains(c.now) {
		e.metrics.IncCheckIn(false)
		e.log.Debug("activity outside window ignored", zap.Time("at", c.now))
		return false, nil
	}

	rec, ok, err := e.records.Get(ctx, c.key)
	if err != nil {
		return false, err
	}
	if !ok {
		rec = records.New(c.key, c.window, c.now)
	}
	first := !rec.HasCheckIn
	rec.MarkCheckIn(c.now)
	if err := e.records.Upsert(ctx, rec); err != nil {
		return false, err
	}
	e.metrics.IncCheckIn(true)
	if !first {
		return true, nil
	}

	e.cancelTriggerLocked(ctx)
	alert, has, err := e.ledger.Current(ctx, c.key)
	if err != nil {
		return true, err
	}
	if has {
		if alert.TaskID != "" {
			e.cancelRemoteLocked(ctx, alert.TaskID)
		}
		if err := e.ledger.Clear(ctx); err != nil {
			return true, err
		}
	}
	e.log.Info("check-in recorded", zap.String("date", c.key))
	e.emit(Event{DateKey: c.key, State: StateCheckedIn, At: c.now})
	return true, nil
}

// ConfirmSafe acknowledges the escalation dialog: the remote escalation is
// cancelled, the alert is handled and the cycle can no longer escalate.
func (e *Engine) ConfirmSafe(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, err := e.loadCycleLocked(ctx)
	if err != nil {
		return err
	}

	rec, ok, err := e.records.Get(ctx, c.key)
	if err != nil {
		return err
	}
	if !ok {
		rec = records.New(c.key, c.window, c.now)
	}
	wasAbnormal := rec.IsAbnormal
	rec.Confirm()
	if err := e.records.Upsert(ctx, rec); err != nil {
		return err
	}

	taskID := ""
	alert, has, err := e.ledger.Current(ctx, c.key)
	if err != nil {
		return err
	}
	if has {
		taskID = alert.TaskID
	}
	if taskID == "" && wasAbnormal {
		if taskID, err = e.taskIDLocked(ctx, c.key); err != nil {
			return err
		}
	}
	e.cancelRemoteLocked(ctx, taskID)
	e.cancelTriggerLocked(ctx)
	if err := e.ledger.MarkHandled(ctx); err != nil {
		return err
	}

	// Synthetic check-in. Outside the window it does not count, the
	// confirmation alone resolves the cycle.
	if _, err := e.recordCheckInLocked(ctx); err != nil {
		return err
	}

	e.surfaced = ""
	e.log.Info("user confirmed safe", zap.String("date", c.key))
	e.emit(Event{DateKey: c.key, State: StateConfirmed, At: c.now})
	return nil
}

// DismissEscalationDialog closes the dialog without confirming. The remote
// escalation stays armed; the alert is marked handled so it is not shown again.
func (e *Engine) DismissEscalationDialog(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, err := e.loadCycleLocked(ctx)
	if err != nil {
		return err
	}
	alert, has, err := e.ledger.Current(ctx, c.key)
	if err != nil {
		return err
	}
	if has && alert.PastDeadline(c.now) {
		rec, ok, err := e.records.Get(ctx, c.key)
		if err != nil {
			return err
		}
		if ok && rec.IsAbnormal && !rec.EscalationSent {
			rec.EscalationSent = true
			if err := e.records.Upsert(ctx, rec); err != nil {
				return err
			}
			e.emit(Event{DateKey: c.key, State: StateEscalated, At: c.now, Deadline: alert.Deadline})
		}
	}
	if err := e.ledger.MarkHandled(ctx); err != nil {
		return err
	}
	e.surfaced = ""
	e.log.Info("escalation dialog dismissed", zap.String("date", c.key))
	return nil
}

// Settings returns the stored settings.
func (e *Engine) Settings(ctx context.Context) (settings.Settings, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok, err := e.settings.Load(ctx)
	if err != nil {
		return settings.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	if !ok {
		return settings.Settings{}, apperrors.ErrNotConfigured
	}
	return s, nil
}

// UpdateSettings replaces the settings wholesale. Any in-flight escalation
// is cancelled and the current cycle starts over. The returned Validation
// carries advice for unusual windows.
func (e *Engine) UpdateSettings(ctx context.Context, s settings.Settings) (window.Validation, error) {
	v, err := s.Validate()
	if err != nil {
		return v, err
	}
	newWindow, err := s.Window()
	if err != nil {
		return v, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	keys := []string{newWindow.CycleKey(now)}
	if old, err := e.loadCycleLocked(ctx); err == nil {
		keys = append(keys, old.key)
	} else if !errors.Is(err, apperrors.ErrNotConfigured) {
		return v, err
	}

	if err := e.resetLocked(ctx, keys...); err != nil {
		return v, err
	}
	s.UpdatedAt = now
	if err := e.settings.Save(ctx, s); err != nil {
		return v, fmt.Errorf("save settings: %w", err)
	}
	e.log.Info("settings updated",
		zap.String("window", newWindow.String()),
		zap.Int("delay_seconds", s.EscalationDelaySeconds),
		zap.String("contact", s.Contact.String()))
	return v, nil
}

// Reset cancels any in-flight escalation and forgets the current cycle.
func (e *Engine) Reset(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, err := e.loadCycleLocked(ctx)
	if err != nil {
		return err
	}
	return e.resetLocked(ctx, c.key)
}

// resetLocked cancels what may be armed and removes the records of keys.
func (e *Engine) resetLocked(ctx context.Context, keys ...string) error {
	e.cancelTriggerLocked(ctx)

	alert, has, err := e.ledger.Peek(ctx)
	if err != nil {
		return err
	}
	if has && alert.TaskID != "" {
		e.cancelRemoteLocked(ctx, alert.TaskID)
	}
	for _, key := range keys {
		rec, ok, err := e.records.Get(ctx, key)
		if err != nil {
			return err
		}
		if ok && rec.IsAbnormal && (!has || alert.DateKey != key) {
			if id, err := e.taskIDLocked(ctx, key); err == nil {
				e.cancelRemoteLocked(ctx, id)
			}
		}
		if err := e.records.Reset(ctx, key); err != nil {
			return err
		}
	}
	if err := e.ledger.Clear(ctx); err != nil {
		return err
	}

	e.surfaced = ""
	e.emit(Event{State: StateReset, At: e.clock.Now()})
	return nil
}

// ClearAll wipes every record and the pending alert. Settings are removed
// too when includeSettings is set. Queued cancellations are kept so they
// still reach the relay.
func (e *Engine) ClearAll(ctx context.Context, includeSettings bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.resetLocked(ctx); err != nil {
		return err
	}
	if err := e.records.Clear(ctx); err != nil {
		return err
	}
	if includeSettings {
		if err := e.settings.Delete(ctx); err != nil {
			return fmt.Errorf("delete settings: %w", err)
		}
	}
	e.log.Info("all monitoring data cleared", zap.Bool("settings", includeSettings))
	return nil
}

// History returns up to limit records, newest first. limit <= 0 returns all.
func (e *Engine) History(ctx context.Context, limit int) ([]records.DayRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	list, err := e.records.List(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}
