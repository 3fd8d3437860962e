package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lcrostarosa/vigil/internal/escalation"
)

// ErrInjected is returned by doubles configured to fail
var ErrInjected = errors.New("injected failure")

// ScheduledWarning is one call to FakeTrigger.Schedule
type ScheduledWarning struct {
	ID    string
	Title string
	Body  string
	Delay time.Duration
}

// FakeTrigger records local warnings instead of firing them
type FakeTrigger struct {
	mu        sync.Mutex
	next      int
	Scheduled []ScheduledWarning
	Cancelled []string
	Fail      bool
}

// NewFakeTrigger creates an empty FakeTrigger
func NewFakeTrigger() *FakeTrigger {
	return &FakeTrigger{}
}

func (f *FakeTrigger) Schedule(ctx context.Context, title, body string, delay time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail {
		return "", ErrInjected
	}
	f.next++
	id := fmt.Sprintf("warning-%d", f.next)
	f.Scheduled = append(f.Scheduled, ScheduledWarning{ID: id, Title: title, Body: body, Delay: delay})
	return id, nil
}

func (f *FakeTrigger) Cancel(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Cancelled = append(f.Cancelled, id)
	return nil
}

// ScheduleCount returns the number of armed warnings
func (f *FakeTrigger) ScheduleCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Scheduled)
}

// Immediate returns the warnings armed to fire at once
func (f *FakeTrigger) Immediate() []ScheduledWarning {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ScheduledWarning
	for _, w := range f.Scheduled {
		if w.Delay == 0 {
			out = append(out, w)
		}
	}
	return out
}

// CancelCount returns the number of cancel calls
func (f *FakeTrigger) CancelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Cancelled)
}

// FakeEscalator is an in-memory escalation.Scheduler
type FakeEscalator struct {
	mu            sync.Mutex
	Tasks         map[string]escalation.Task
	ScheduleCalls []escalation.Task
	CancelCalls   []string
	FailSchedule  bool
	FailCancel    bool
}

var _ escalation.Scheduler = (*FakeEscalator)(nil)

// NewFakeEscalator creates an empty FakeEscalator
func NewFakeEscalator() *FakeEscalator {
	return &FakeEscalator{Tasks: make(map[string]escalation.Task)}
}

func (f *FakeEscalator) Schedule(ctx context.Context, t escalation.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ScheduleCalls = append(f.ScheduleCalls, t)
	if f.FailSchedule {
		return ErrInjected
	}
	f.Tasks[t.TaskID] = t
	return nil
}

func (f *FakeEscalator) Cancel(ctx context.Context, taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CancelCalls = append(f.CancelCalls, taskID)
	if f.FailCancel {
		return ErrInjected
	}
	delete(f.Tasks, taskID)
	return nil
}

// Armed returns the live tasks
func (f *FakeEscalator) Armed() []escalation.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]escalation.Task, 0, len(f.Tasks))
	for _, t := range f.Tasks {
		out = append(out, t)
	}
	return out
}

// ScheduleCount returns the number of schedule attempts
func (f *FakeEscalator) ScheduleCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ScheduleCalls)
}

// SetFailSchedule toggles schedule failures
func (f *FakeEscalator) SetFailSchedule(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FailSchedule = fail
}

// SetFailCancel toggles cancel failures
func (f *FakeEscalator) SetFailCancel(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FailCancel = fail
}
