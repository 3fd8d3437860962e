package runner

import (
	"errors"

	"github.com/spf13/cobra"

	apperrors "github.com/lcrostarosa/vigil/internal/errors"
	"github.com/lcrostarosa/vigil/internal/logging"
)

// Interceptor is a function that wraps command execution.
// It mirrors the Connect-RPC interceptor pattern for CLI commands.
type Interceptor func(ctx *CommandContext, cmd *cobra.Command, args []string, next func() error) error

// RequireConfig ensures the configuration is loaded before executing the command.
func RequireConfig() Interceptor {
	return func(ctx *CommandContext, cmd *cobra.Command, args []string, next func() error) error {
		if ctx.ConfigErr != nil {
			if errors.Is(ctx.ConfigErr, apperrors.ErrNotInitialized) {
				return ErrNotInitialized
			}
			return ctx.ConfigErr
		}
		if ctx.Config == nil {
			return ErrNotInitialized
		}
		return next()
	}
}

// RequireRelay ensures a relay URL is configured.
// Implicitly requires config to be loaded.
func RequireRelay() Interceptor {
	return func(ctx *CommandContext, cmd *cobra.Command, args []string, next func() error) error {
		if !ctx.HasConfig() {
			return ErrNotInitialized
		}
		if !ctx.HasRelay() {
			return ErrNoRelay
		}
		return next()
	}
}

// RequireDaemon checks the daemon answers before executing the command.
// Implicitly requires config to be loaded.
func RequireDaemon() Interceptor {
	return func(ctx *CommandContext, cmd *cobra.Command, args []string, next func() error) error {
		if !ctx.HasConfig() {
			return ErrNotInitialized
		}
		d := ctx.Daemon()
		if d == nil {
			return ErrDaemonDown
		}
		if err := d.Health(ctx.Ctx); err != nil {
			if errors.Is(err, apperrors.ErrDaemonUnreachable) {
				return ErrDaemonDown
			}
			return err
		}
		return next()
	}
}

// RecordActivity counts a successful interactive command as a check-in.
// Outside the window the daemon ignores it; an unreachable daemon is only logged.
func RecordActivity() Interceptor {
	return func(ctx *CommandContext, cmd *cobra.Command, args []string, next func() error) error {
		err := next()
		if err != nil {
			return err
		}
		d := ctx.Daemon()
		if d == nil {
			return nil
		}
		counted, cerr := d.CheckIn(ctx.Ctx)
		if cerr != nil {
			logging.Debug("activity not recorded", logging.String("cmd", cmd.Name()), logging.Err(cerr))
			return nil
		}
		logging.Debug("activity recorded", logging.String("cmd", cmd.Name()), logging.Bool("counted", counted))
		return nil
	}
}

// WithLogging logs command execution, mirroring the RPC loggingInterceptor.
func WithLogging() Interceptor {
	return func(ctx *CommandContext, cmd *cobra.Command, args []string, next func() error) error {
		logging.Debug("CLI command", logging.String("cmd", cmd.Name()))
		err := next()
		if err != nil {
			logging.Debug("CLI error", logging.String("cmd", cmd.Name()), logging.Err(err))
		}
		return err
	}
}

// AllowUninitialized marks that this command can run without initialization.
// This is a no-op interceptor that documents intent.
func AllowUninitialized() Interceptor {
	return func(ctx *CommandContext, cmd *cobra.Command, args []string, next func() error) error {
		return next()
	}
}
