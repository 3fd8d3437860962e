// Package runner provides an interceptor-based command execution framework for CLI commands.
// It mirrors the pattern used by Connect-RPC interceptors, providing consistent middleware
// semantics for CLI command handlers.
package runner

import "errors"

// Standard errors returned by interceptors
var (
	// ErrNotInitialized is returned when vigil is not initialized
	ErrNotInitialized = errors.New("vigil not initialized - run 'vigil init' first")

	// ErrNoRelay is returned when a command needs a relay but none is configured
	ErrNoRelay = errors.New("no relay configured - set relay.url or VIGIL_RELAY_URL")

	// ErrDaemonDown is returned when a command needs the daemon but it is not running
	ErrDaemonDown = errors.New("vigil daemon is not running - start it with 'vigil run'")
)
