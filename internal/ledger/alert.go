// Package ledger persists the pending alert: the durable proof that an
// escalation was armed for a cycle, and whether it has been acknowledged.
// It is the only state the engine trusts after a restart.
package ledger

import "time"

// State is the tag of a PendingAlert
type State string

const (
	StateArmed   State = "armed"
	StateHandled State = "handled"
)

// PendingAlert records one armed escalation cycle.
type PendingAlert struct {
	State   State  `json:"state"`
	DateKey string `json:"date_key"`
	// ScheduledAt is when the local warning is due.
	ScheduledAt time.Time `json:"scheduled_at"`
	// Deadline is when the remote escalation becomes final. Unset until the
	// window end has been observed.
	Deadline *time.Time `json:"deadline,omitempty"`
	// WarnedAt is the true moment the local warning fired. Written once.
	WarnedAt    *time.Time `json:"warned_at,omitempty"`
	TaskID      string     `json:"task_id,omitempty"`
	RemoteArmed bool       `json:"remote_armed"`
	ArmedAt     time.Time  `json:"armed_at"`
}

// Handled reports whether the alert was acknowledged.
func (a PendingAlert) Handled() bool {
	return a.State == StateHandled
}

// Due reports whether the warning time has been reached for an unhandled alert.
func (a PendingAlert) Due(now time.Time) bool {
	return !a.Handled() && !now.Before(a.ScheduledAt)
}

// PastDeadline reports whether the remote escalation is final.
func (a PendingAlert) PastDeadline(now time.Time) bool {
	return a.Deadline != nil && !now.Before(*a.Deadline)
}

// WarningTime resolves the moment the local warning fired. A persisted value
// is returned as is. Otherwise the scheduled time is used when it lies in the
// past by less than tolerance, and now in every other case. persisted reports
// whether the value came from the record.
func (a PendingAlert) WarningTime(now time.Time, tolerance time.Duration) (t time.Time, persisted bool) {
	if a.WarnedAt != nil {
		return *a.WarnedAt, true
	}
	if !a.ScheduledAt.IsZero() && !a.ScheduledAt.After(now) && now.Sub(a.ScheduledAt) < tolerance {
		return a.ScheduledAt, false
	}
	return now, false
}

// Remaining returns the grace time left, counted from the warning moment and
// clamped to [0, delay]. A warning moment in the future counts as no time
// elapsed.
func Remaining(warnedAt, now time.Time, delay time.Duration) time.Duration {
	elapsed := now.Sub(warnedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	left := delay - elapsed
	if left < 0 {
		return 0
	}
	return left
}
