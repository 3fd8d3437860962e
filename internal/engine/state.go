package engine

import "github.com/lcrostarosa/vigil/internal/records"

// State is the watchdog state of the current cycle
type State string

const (
	StateIdle      State = "idle"
	StateArmed     State = "armed"
	StateCheckedIn State = "checked_in"
	StateAbnormal  State = "abnormal"
	StateConfirmed State = "confirmed"
	StateEscalated State = "escalated"
	StateReset     State = "reset"
)

// stateOf derives the state of a cycle from its record.
func stateOf(rec records.DayRecord, ok bool) State {
	if !ok {
		return StateIdle
	}
	switch rec.Status() {
	case records.StatusConfirmed:
		return StateConfirmed
	case records.StatusCheckedIn:
		return StateCheckedIn
	case records.StatusEscalated:
		return StateEscalated
	case records.StatusAbnormal:
		return StateAbnormal
	default:
		return StateArmed
	}
}
