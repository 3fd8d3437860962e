package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/lcrostarosa/vigil/internal/kv"
	"github.com/lcrostarosa/vigil/internal/logging"
)

// AlertKey is the store key of the pending alert.
const AlertKey = "pending_alert"

// Ledger manages the single pending alert.
type Ledger struct {
	doc   *kv.Doc[PendingAlert]
	clock clockwork.Clock
}

// New creates a ledger on s.
func New(s kv.Store, clock clockwork.Clock) *Ledger {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Ledger{doc: kv.NewDoc[PendingAlert](s, AlertKey), clock: clock}
}

// Arm persists a fresh armed alert for dateKey, replacing any other alert.
// Re-arming with the same day and time keeps the stored alert untouched.
func (l *Ledger) Arm(ctx context.Context, scheduledAt time.Time, dateKey string) (PendingAlert, error) {
	cur, ok, err := l.doc.Load(ctx)
	if err != nil {
		return PendingAlert{}, fmt.Errorf("load pending alert: %w", err)
	}
	if ok && cur.DateKey == dateKey && cur.ScheduledAt.Equal(scheduledAt) && !cur.Handled() {
		return cur, nil
	}

	a := PendingAlert{
		State:       StateArmed,
		DateKey:     dateKey,
		ScheduledAt: scheduledAt,
		ArmedAt:     l.clock.Now(),
	}
	if err := l.doc.Save(ctx, a); err != nil {
		return PendingAlert{}, fmt.Errorf("save pending alert: %w", err)
	}
	return a, nil
}

// Peek returns the stored alert, if any, without side effects.
func (l *Ledger) Peek(ctx context.Context) (PendingAlert, bool, error) {
	a, ok, err := l.doc.Load(ctx)
	if err != nil {
		return PendingAlert{}, false, fmt.Errorf("load pending alert: %w", err)
	}
	return a, ok, nil
}

// Current returns the alert for today. An alert for any other day is
// deleted as a side effect and reported absent.
func (l *Ledger) Current(ctx context.Context, today string) (PendingAlert, bool, error) {
	a, ok, err := l.Peek(ctx)
	if err != nil || !ok {
		return PendingAlert{}, false, err
	}
	if a.DateKey != today {
		logging.Debug("clearing stale pending alert",
			logging.String("date", a.DateKey),
			logging.String("today", today))
		if err := l.Clear(ctx); err != nil {
			return PendingAlert{}, false, err
		}
		return PendingAlert{}, false, nil
	}
	return a, true, nil
}

// IsDue reports whether an unhandled alert for today has reached its
// scheduled time.
func (l *Ledger) IsDue(ctx context.Context, now time.Time, today string) (bool, error) {
	a, ok, err := l.Current(ctx, today)
	if err != nil || !ok {
		return false, err
	}
	return a.Due(now), nil
}

// Update applies fn to the stored alert and saves it when fn returns true.
// It reports whether an alert existed.
func (l *Ledger) Update(ctx context.Context, fn func(*PendingAlert) bool) (bool, error) {
	a, ok, err := l.Peek(ctx)
	if err != nil || !ok {
		return false, err
	}
	if !fn(&a) {
		return true, nil
	}
	if err := l.doc.Save(ctx, a); err != nil {
		return true, fmt.Errorf("save pending alert: %w", err)
	}
	return true, nil
}

// MarkHandled records acknowledgment of the stored alert.
func (l *Ledger) MarkHandled(ctx context.Context) error {
	_, err := l.Update(ctx, func(a *PendingAlert) bool {
		if a.Handled() {
			return false
		}
		a.State = StateHandled
		return true
	})
	return err
}

// Clear removes the stored alert.
func (l *Ledger) Clear(ctx context.Context) error {
	if err := l.doc.Delete(ctx); err != nil {
		return fmt.Errorf("clear pending alert: %w", err)
	}
	return nil
}
