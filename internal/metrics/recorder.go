// Package metrics records watchdog and relay activity. The engine and the
// relay accept a Recorder; NoopRecorder is the default.
package metrics

import "time"

// Recorder defines observability hooks for the engine and the relay.
type Recorder interface {
	IncTransition(to string)
	IncCheckIn(counted bool)
	IncStoreError(op string)
	IncRemoteCall(op string, ok bool)
	ObserveTick(d time.Duration)
	IncTickSkipped()
	SetGraceRemaining(seconds float64)

	IncRelayTask(event string)
	ObserveDeliveryLateness(d time.Duration)
	SetRelayPending(n int)
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) IncTransition(string)                  {}
func (NoopRecorder) IncCheckIn(bool)                       {}
func (NoopRecorder) IncStoreError(string)                  {}
func (NoopRecorder) IncRemoteCall(string, bool)            {}
func (NoopRecorder) ObserveTick(time.Duration)             {}
func (NoopRecorder) IncTickSkipped()                       {}
func (NoopRecorder) SetGraceRemaining(float64)             {}
func (NoopRecorder) IncRelayTask(string)                   {}
func (NoopRecorder) ObserveDeliveryLateness(time.Duration) {}
func (NoopRecorder) SetRelayPending(int)                   {}
