package testutil

import (
	"sync"

	"github.com/lcrostarosa/vigil/internal/engine"
)

// EventLog collects engine transitions
type EventLog struct {
	mu     sync.Mutex
	events []engine.Event
}

// Callbacks returns engine callbacks appending to the log
func (l *EventLog) Callbacks() *engine.Callbacks {
	add := func(ev engine.Event) {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.events = append(l.events, ev)
	}
	return &engine.Callbacks{
		OnArmed:     add,
		OnCheckIn:   add,
		OnAbnormal:  add,
		OnConfirmed: add,
		OnEscalated: add,
		OnReset:     add,
	}
}

// States returns the recorded states in order
func (l *EventLog) States() []engine.State {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]engine.State, len(l.events))
	for i, ev := range l.events {
		out[i] = ev.State
	}
	return out
}

// Count returns how many times state was entered
func (l *EventLog) Count(state engine.State) int {
	n := 0
	for _, s := range l.States() {
		if s == state {
			n++
		}
	}
	return n
}
