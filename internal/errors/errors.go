// Package errors provides sentinel errors for the vigil application.
package errors

import "errors"

// Configuration errors
var (
	// ErrNotInitialized is returned when vigil has not been initialized.
	ErrNotInitialized = errors.New("vigil not initialized")

	// ErrAlreadyInitialized is returned by init when a config already exists.
	ErrAlreadyInitialized = errors.New("vigil already initialized")

	// ErrUnknownStoreDriver is returned when the configured store driver is not supported.
	ErrUnknownStoreDriver = errors.New("unknown store driver")
)

// Store errors
var (
	// ErrNotFound is returned when a key is absent from the durable store.
	ErrNotFound = errors.New("key not found")

	// ErrStoreClosed is returned when the store has been closed.
	ErrStoreClosed = errors.New("store closed")
)

// Settings errors
var (
	// ErrInvalidTimeOfDay is returned when a time is not a 24-hour HH:MM value.
	ErrInvalidTimeOfDay = errors.New("time must be HH:MM in 24-hour form")

	// ErrEmptyWindow is returned when start and end of the window are equal.
	ErrEmptyWindow = errors.New("window start and end must differ")

	// ErrInvalidDelay is returned when the escalation delay is not positive.
	ErrInvalidDelay = errors.New("escalation delay must be positive")

	// ErrNoContact is returned when no contact destination is configured.
	ErrNoContact = errors.New("contact destination required")

	// ErrInvalidContact is returned when the destination does not match its kind.
	ErrInvalidContact = errors.New("invalid contact destination")

	// ErrNotConfigured is returned when monitoring settings have not been saved yet.
	ErrNotConfigured = errors.New("monitoring settings not configured")
)

// Engine errors
var (
	// ErrNotRunning is returned when an operation requires the monitoring loop.
	ErrNotRunning = errors.New("monitoring not running")

	// ErrAlreadyRunning is returned when monitoring is started twice.
	ErrAlreadyRunning = errors.New("monitoring already running")
)

// Escalation errors
var (
	// ErrRelayUnavailable is returned when the relay cannot be reached.
	ErrRelayUnavailable = errors.New("relay unavailable")

	// ErrRelayRejected is returned when the relay answers with success=false.
	ErrRelayRejected = errors.New("relay rejected request")

	// ErrTaskNotFound is returned when a relay task does not exist.
	ErrTaskNotFound = errors.New("task not found")

	// ErrNoRelay is returned when no relay URL is configured.
	ErrNoRelay = errors.New("no relay configured")
)

// Daemon errors
var (
	// ErrDaemonUnreachable is returned when the control plane cannot be reached.
	ErrDaemonUnreachable = errors.New("vigil daemon not reachable")

	// ErrUnauthorized is returned when the control plane rejects the API key.
	ErrUnauthorized = errors.New("unauthorized")
)
