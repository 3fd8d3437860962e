// Package notify delivers the local warning. Trigger arms a one-shot job that
// hands a Notification to a Sink when due.
package notify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/lcrostarosa/vigil/internal/logging"
	"github.com/lcrostarosa/vigil/internal/scheduler"
)

// Notification is a local warning shown to the monitored user.
type Notification struct {
	Title   string
	Body    string
	DueAt   time.Time
	FiredAt time.Time
}

// Sink receives notifications as they fire.
type Sink interface {
	Notify(ctx context.Context, n Notification) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, n Notification) error

func (f SinkFunc) Notify(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// Trigger schedules local warnings on a scheduler. Armed warnings are held
// in memory and vanish with the process.
type Trigger struct {
	sched *scheduler.Scheduler
	sink  Sink
	clock clockwork.Clock
}

// NewTrigger creates a trigger firing into sink.
func NewTrigger(sched *scheduler.Scheduler, sink Sink, clock clockwork.Clock) *Trigger {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Trigger{sched: sched, sink: sink, clock: clock}
}

// Schedule arms a warning delay from now and returns its id.
func (t *Trigger) Schedule(ctx context.Context, title, body string, delay time.Duration) (string, error) {
	if delay < 0 {
		delay = 0
	}
	due := t.clock.Now().Add(delay)

	id, err := t.sched.At("warning", due, func(ctx context.Context) error {
		n := Notification{Title: title, Body: body, DueAt: due, FiredAt: t.clock.Now()}
		if err := t.sink.Notify(ctx, n); err != nil {
			logging.Warn("local warning delivery failed", logging.Err(err))
			return err
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Cancel disarms a warning. Unknown ids are ignored.
func (t *Trigger) Cancel(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return t.sched.Cancel(id)
}

// LogSink writes notifications to the log.
type LogSink struct{}

func (LogSink) Notify(ctx context.Context, n Notification) error {
	logging.Named("notify").Warn(n.Title,
		logging.String("body", n.Body),
		logging.Time("due_at", n.DueAt),
		logging.Time("fired_at", n.FiredAt))
	return nil
}

// CommandSink runs an external program for each notification, for example
// "notify-send". Title and body are passed as the last two arguments and in
// VIGIL_TITLE and VIGIL_BODY.
type CommandSink struct {
	Command string
	Timeout time.Duration
}

func (c CommandSink) Notify(ctx context.Context, n Notification) error {
	fields := strings.Fields(c.Command)
	if len(fields) == 0 {
		return nil
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(fields[1:], n.Title, n.Body)
	cmd := exec.CommandContext(ctx, fields[0], args...)
	cmd.Env = append(os.Environ(), "VIGIL_TITLE="+n.Title, "VIGIL_BODY="+n.Body)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("notify command %s: %w: %s", fields[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

// MultiSink delivers to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
