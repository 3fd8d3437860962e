// Package records stores one DayRecord per window cycle.
package records

import (
	"time"

	"github.com/lcrostarosa/vigil/internal/window"
)

// Status summarises a record for display
type Status string

const (
	StatusMonitoring Status = "monitoring"
	StatusCheckedIn  Status = "checked_in"
	StatusAbnormal   Status = "abnormal"
	StatusConfirmed  Status = "confirmed"
	StatusEscalated  Status = "escalated"
)

// DayRecord is the outcome of one window cycle. The window is a snapshot of
// the settings at creation; later edits do not rewrite it.
type DayRecord struct {
	Date           string     `json:"date"`
	WindowStart    string     `json:"window_start"`
	WindowEnd      string     `json:"window_end"`
	HasCheckIn     bool       `json:"has_check_in"`
	LastCheckInAt  *time.Time `json:"last_check_in_at,omitempty"`
	IsAbnormal     bool       `json:"is_abnormal"`
	UserConfirmed  bool       `json:"user_confirmed"`
	EscalationSent bool       `json:"escalation_sent"`
	CreatedAt      time.Time  `json:"created_at"`
}

// New creates a fresh record for the cycle keyed by dateKey.
func New(dateKey string, w window.Window, now time.Time) DayRecord {
	return DayRecord{
		Date:        dateKey,
		WindowStart: w.Start.String(),
		WindowEnd:   w.End.String(),
		CreatedAt:   now,
	}
}

// Window returns the window snapshot.
func (r DayRecord) Window() (window.Window, error) {
	return window.New(r.WindowStart, r.WindowEnd)
}

// WindowEndAt returns the end instant of the record's cycle in loc.
func (r DayRecord) WindowEndAt(loc *time.Location) (time.Time, error) {
	w, err := r.Window()
	if err != nil {
		return time.Time{}, err
	}
	return w.EndFor(r.Date, loc)
}

// MarkCheckIn records activity at the given moment.
func (r *DayRecord) MarkCheckIn(at time.Time) {
	r.HasCheckIn = true
	r.LastCheckInAt = &at
}

// MarkAbnormal sets the abnormal flag unless the record is already abnormal
// or already explained by a check-in or a confirmation. It reports whether
// the flag changed.
func (r *DayRecord) MarkAbnormal() bool {
	if r.IsAbnormal || r.HasCheckIn || r.UserConfirmed {
		return false
	}
	r.IsAbnormal = true
	return true
}

// Confirm records that the user acknowledged they are safe.
func (r *DayRecord) Confirm() {
	r.UserConfirmed = true
	r.IsAbnormal = false
}

// Resolved reports whether nothing further can happen for this cycle.
func (r DayRecord) Resolved() bool {
	return r.HasCheckIn || r.UserConfirmed
}

// Status returns the display status.
func (r DayRecord) Status() Status {
	switch {
	case r.UserConfirmed:
		return StatusConfirmed
	case r.HasCheckIn:
		return StatusCheckedIn
	case r.EscalationSent:
		return StatusEscalated
	case r.IsAbnormal:
		return StatusAbnormal
	default:
		return StatusMonitoring
	}
}
