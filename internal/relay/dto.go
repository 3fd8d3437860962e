package relay

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/lcrostarosa/vigil/internal/errors"
	"github.com/lcrostarosa/vigil/internal/escalation"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusDelivered, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// ScheduleRequest is the body of POST /v1/schedule
type ScheduleRequest struct {
	TaskID        string    `json:"taskId"`
	Destination   string    `json:"destination"`
	Channel       string    `json:"channel,omitempty"`
	Message       string    `json:"message"`
	ScheduledTime time.Time `json:"scheduledTime"`
}

// MaxMessageLength bounds the delivered text
const MaxMessageLength = 2000

var knownChannels = map[string]bool{"": true, "email": true, "sms": true, "webhook": true}

// Validate checks the request
func (r *ScheduleRequest) Validate() error {
	r.TaskID = strings.TrimSpace(r.TaskID)
	r.Destination = strings.TrimSpace(r.Destination)
	if err := required("taskId", r.TaskID); err != nil {
		return err
	}
	if len(r.TaskID) > 128 {
		return ValidationError{Field: "taskId", Message: "taskId must be at most 128 characters"}
	}
	if err := required("destination", r.Destination); err != nil {
		return err
	}
	if err := required("message", r.Message); err != nil {
		return err
	}
	if len(r.Message) > MaxMessageLength {
		return ValidationError{Field: "message", Message: fmt.Sprintf("message must be at most %d characters", MaxMessageLength)}
	}
	if !knownChannels[r.Channel] {
		return ValidationError{Field: "channel", Message: "unknown channel " + r.Channel}
	}
	if r.ScheduledTime.IsZero() {
		return ValidationError{Field: "scheduledTime", Message: "scheduledTime is required"}
	}
	return nil
}

// Task converts the request
func (r ScheduleRequest) Task() escalation.Task {
	return escalation.Task{
		TaskID:        r.TaskID,
		Destination:   r.Destination,
		Channel:       r.Channel,
		Message:       r.Message,
		ScheduledTime: r.ScheduledTime,
	}
}

// CancelRequest is the body of POST /v1/cancel
type CancelRequest struct {
	TaskID string `json:"taskId"`
}

// Validate checks the request
func (r *CancelRequest) Validate() error {
	r.TaskID = strings.TrimSpace(r.TaskID)
	return required("taskId", r.TaskID)
}

// ToTaskStatus converts a record for the wire. Destinations are masked.
func ToTaskStatus(rec Record) escalation.TaskStatus {
	at := rec.ScheduledTime
	return escalation.TaskStatus{
		Success:       true,
		Exists:        true,
		TaskID:        rec.TaskID,
		Status:        string(rec.Status),
		Channel:       rec.Channel,
		Destination:   apperrors.MaskDestination(rec.Destination),
		ScheduledTime: &at,
		DeliveredAt:   rec.DeliveredAt,
		Attempts:      rec.Attempts,
		LastError:     apperrors.SanitizeString(rec.LastError),
	}
}
