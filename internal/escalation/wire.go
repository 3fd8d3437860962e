package escalation

import "time"

// ScheduleResponse is the relay's answer to a schedule request.
type ScheduleResponse struct {
	Success       bool       `json:"success"`
	TaskID        string     `json:"taskId"`
	ScheduledTime *time.Time `json:"scheduledTime,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// CancelRequest asks the relay to drop a task.
type CancelRequest struct {
	TaskID string `json:"taskId"`
}

// CancelResponse is the relay's answer to a cancel request.
type CancelResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// TaskStatus describes one relay task.
type TaskStatus struct {
	Success       bool       `json:"success"`
	Exists        bool       `json:"exists"`
	TaskID        string     `json:"taskId"`
	Status        string     `json:"status,omitempty"`
	Channel       string     `json:"channel,omitempty"`
	Destination   string     `json:"destination,omitempty"`
	ScheduledTime *time.Time `json:"scheduledTime,omitempty"`
	DeliveredAt   *time.Time `json:"deliveredAt,omitempty"`
	Attempts      int        `json:"attempts,omitempty"`
	LastError     string     `json:"lastError,omitempty"`
}

// TaskList is the relay's task listing.
type TaskList struct {
	Success bool         `json:"success"`
	Count   int          `json:"count"`
	Tasks   []TaskStatus `json:"tasks"`
}
