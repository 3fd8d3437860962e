package engine

import (
	"context"
	"errors"
	"math"
	"time"

	apperrors "github.com/lcrostarosa/vigil/internal/errors"
	"github.com/lcrostarosa/vigil/internal/ledger"
	"github.com/lcrostarosa/vigil/internal/records"
	"github.com/lcrostarosa/vigil/internal/settings"
	"github.com/lcrostarosa/vigil/internal/window"
)

// Status is a read-only snapshot of the watchdog
type Status struct {
	Configured       bool                 `json:"configured"`
	Running          bool                 `json:"running"`
	Settings         *settings.Settings   `json:"settings,omitempty"`
	Validation       window.Validation    `json:"validation"`
	Now              time.Time            `json:"now"`
	CycleKey         string               `json:"cycle_key,omitempty"`
	InWindow         bool                 `json:"in_window"`
	NextWindowEnd    *time.Time           `json:"next_window_end,omitempty"`
	State            State                `json:"state"`
	Record           *records.DayRecord   `json:"record,omitempty"`
	Alert            *ledger.PendingAlert `json:"alert,omitempty"`
	RemainingSeconds int                  `json:"remaining_seconds"`
	QueuedCancels    int                  `json:"queued_cancels"`
}

// Status returns the current snapshot without changing any state.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := Status{Running: e.Running(), Now: e.clock.Now(), State: StateIdle}

	ids, err := e.outbox.List(ctx)
	if err != nil {
		return st, err
	}
	st.QueuedCancels = len(ids)

	c, err := e.loadCycleLocked(ctx)
	if errors.Is(err, apperrors.ErrNotConfigured) {
		return st, nil
	}
	if err != nil {
		return st, err
	}

	st.Configured = true
	st.Settings = &c.settings
	st.Validation = c.window.Validate()
	st.Now = c.now
	st.CycleKey = c.key
	st.InWindow = c.window.Contains(c.now)
	end := c.window.NextEnd(c.now)
	st.NextWindowEnd = &end

	rec, ok, err := e.records.Get(ctx, c.key)
	if err != nil {
		return st, err
	}
	st.State = stateOf(rec, ok)
	if ok {
		st.Record = &rec
	}

	alert, has, err := e.ledger.Peek(ctx)
	if err != nil {
		return st, err
	}
	if has && alert.DateKey == c.key {
		st.Alert = &alert
		if !alert.Handled() && alert.WarnedAt != nil {
			left := ledger.Remaining(*alert.WarnedAt, c.now, c.delay)
			st.RemainingSeconds = int(math.Ceil(left.Seconds()))
		}
	}
	return st, nil
}
