package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/lcrostarosa/vigil/internal/errors"
	"github.com/lcrostarosa/vigil/internal/escalation"
	"github.com/lcrostarosa/vigil/internal/logging"
)

// Sender delivers a task to its destination.
type Sender interface {
	Send(ctx context.Context, t escalation.Task) error
}

// SenderFunc adapts a function to Sender
type SenderFunc func(ctx context.Context, t escalation.Task) error

func (f SenderFunc) Send(ctx context.Context, t escalation.Task) error {
	return f(ctx, t)
}

// LogSender writes deliveries to the log. It is the default when no gateway
// is configured.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, t escalation.Task) error {
	logging.Warn("escalation delivered",
		logging.String("task_id", t.TaskID),
		logging.String("channel", t.Channel),
		logging.String("destination", apperrors.MaskDestination(t.Destination)),
		logging.String("message", t.Message))
	return nil
}

// WebhookSender posts deliveries as JSON. Tasks on the webhook channel go to
// their own destination; everything else goes to Gateway, which is expected
// to turn them into email or SMS.
type WebhookSender struct {
	Gateway string
	Client  *http.Client
}

// NewWebhookSender creates a sender posting to gateway
func NewWebhookSender(gateway string, timeout time.Duration) *WebhookSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSender{Gateway: gateway, Client: &http.Client{Timeout: timeout}}
}

// Delivery is the body posted by WebhookSender
type Delivery struct {
	TaskID        string    `json:"taskId"`
	Channel       string    `json:"channel"`
	Destination   string    `json:"destination"`
	Message       string    `json:"message"`
	ScheduledTime time.Time `json:"scheduledTime"`
}

func (w *WebhookSender) Send(ctx context.Context, t escalation.Task) error {
	target := w.Gateway
	if t.Channel == "webhook" {
		target = t.Destination
	}
	if target == "" {
		return fmt.Errorf("no gateway for channel %q", t.Channel)
	}

	body, err := json.Marshal(Delivery{
		TaskID:        t.TaskID,
		Channel:       t.Channel,
		Destination:   t.Destination,
		Message:       t.Message,
		ScheduledTime: t.ScheduledTime,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", t.TaskID)

	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post delivery: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("gateway returned %d", resp.StatusCode)
	}
	return nil
}
