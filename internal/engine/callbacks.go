package engine

import "time"

// Event describes a state transition of the current cycle.
type Event struct {
	DateKey   string
	State     State
	At        time.Time
	Deadline  *time.Time
	Remaining time.Duration
}

// Callbacks provides hooks for watchdog transitions.
// All callbacks are optional - nil callbacks are simply not called.
// They run while the engine holds its lock and must not call back into it.
type Callbacks struct {
	// OnArmed is called when monitoring for a cycle starts
	OnArmed func(Event)

	// OnCheckIn is called when activity inside the window is recorded
	OnCheckIn func(Event)

	// OnAbnormal is called when the escalation dialog should be shown
	OnAbnormal func(Event)

	// OnConfirmed is called when the user confirms they are safe
	OnConfirmed func(Event)

	// OnEscalated is called when the grace period has run out
	OnEscalated func(Event)

	// OnReset is called after a settings change or explicit reset
	OnReset func(Event)
}

func (c *Callbacks) call(fn func(*Callbacks) func(Event), ev Event) {
	if c == nil {
		return
	}
	if f := fn(c); f != nil {
		f(ev)
	}
}

func onArmed(c *Callbacks) func(Event)     { return c.OnArmed }
func onCheckIn(c *Callbacks) func(Event)   { return c.OnCheckIn }
func onAbnormal(c *Callbacks) func(Event)  { return c.OnAbnormal }
func onConfirmed(c *Callbacks) func(Event) { return c.OnConfirmed }
func onEscalated(c *Callbacks) func(Event) { return c.OnEscalated }
func onReset(c *Callbacks) func(Event)     { return c.OnReset }

// LoggingCallbacks returns callbacks that log transitions
func LoggingCallbacks(logf func(format string, args ...interface{})) *Callbacks {
	return &Callbacks{
		OnArmed: func(ev Event) {
			logf("Monitoring started for %s", ev.DateKey)
		},
		OnCheckIn: func(ev Event) {
			logf("Check-in recorded for %s", ev.DateKey)
		},
		OnAbnormal: func(ev Event) {
			logf("No check-in for %s, %v left to confirm", ev.DateKey, ev.Remaining)
		},
		OnConfirmed: func(ev Event) {
			logf("User confirmed safe for %s", ev.DateKey)
		},
		OnEscalated: func(ev Event) {
			logf("Escalation for %s is final", ev.DateKey)
		},
		OnReset: func(ev Event) {
			logf("Monitoring reset")
		},
	}
}

// ChainCallbacks combines multiple callback handlers
func ChainCallbacks(callbacks ...*Callbacks) *Callbacks {
	fan := func(pick func(*Callbacks) func(Event)) func(Event) {
		return func(ev Event) {
			for _, c := range callbacks {
				c.call(pick, ev)
			}
		}
	}
	return &Callbacks{
		OnArmed:     fan(onArmed),
		OnCheckIn:   fan(onCheckIn),
		OnAbnormal:  fan(onAbnormal),
		OnConfirmed: fan(onConfirmed),
		OnEscalated: fan(onEscalated),
		OnReset:     fan(onReset),
	}
}
