// Package escalation talks to the relay that delivers the final message to
// the contact. The relay is always on; this process may not be, so every
// task carries an absolute delivery time and a caller-chosen id.
package escalation

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/lcrostarosa/vigil/internal/errors"
	"github.com/lcrostarosa/vigil/internal/logging"
	"github.com/lcrostarosa/vigil/internal/window"
)

// Task is a message to deliver at ScheduledTime.
type Task struct {
	TaskID        string    `json:"taskId"`
	Destination   string    `json:"destination"`
	Channel       string    `json:"channel,omitempty"`
	Message       string    `json:"message"`
	ScheduledTime time.Time `json:"scheduledTime"`
}

// Validate checks the fields the relay requires.
func (t Task) Validate() error {
	switch {
	case t.TaskID == "":
		return fmt.Errorf("taskId is required")
	case t.Destination == "":
		return fmt.Errorf("destination is required")
	case t.Message == "":
		return fmt.Errorf("message is required")
	case t.ScheduledTime.IsZero():
		return fmt.Errorf("scheduledTime is required")
	}
	return nil
}

// Scheduler is the remote side of an escalation. Schedule replaces any task
// with the same id; Cancel succeeds for unknown or already delivered tasks.
type Scheduler interface {
	Schedule(ctx context.Context, t Task) error
	Cancel(ctx context.Context, taskID string) error
}

// TaskID derives the remote task id for one cycle of one installation.
func TaskID(installID, dateKey string) string {
	return "vigil-" + installID + "-" + dateKey
}

// Message renders the text sent to the contact.
func Message(owner string, w window.Window, dateKey string) string {
	if owner == "" {
		owner = "The person you watch over"
	}
	return fmt.Sprintf("%s showed no device activity during the %s window on %s and did not answer the safety check. Please try to contact them.",
		owner, w, dateKey)
}

// LogScheduler stands in when no relay is configured. It records what would
// have been sent and delivers nothing.
type LogScheduler struct{}

func (LogScheduler) Schedule(ctx context.Context, t Task) error {
	logging.Warn("no relay configured, escalation will not leave this machine",
		logging.String("task_id", t.TaskID),
		logging.String("destination", apperrors.MaskDestination(t.Destination)),
		logging.Time("scheduled_time", t.ScheduledTime))
	return nil
}

func (LogScheduler) Cancel(ctx context.Context, taskID string) error {
	return nil
}
