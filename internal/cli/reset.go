package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/lcrostarosa/vigil/internal/cli/runner"
	"github.com/lcrostarosa/vigil/internal/engine"
	apperrors "github.com/lcrostarosa/vigil/internal/errors"
	"github.com/lcrostarosa/vigil/internal/rpc"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget today's monitoring",
	Long: `Reset monitoring for the current window.

Without flags only today's record is dropped and any warning or
escalation for it is cancelled. --all wipes every record; --settings
also removes the stored settings.`,
	RunE: runners.Config().Wrap(runReset),
}

func init() {
	f := resetCmd.Flags()
	f.Bool("all", false, "Clear all history")
	f.Bool("settings", false, "Also delete the monitoring settings (implies --all)")
	rootCmd.AddCommand(resetCmd)
}

func runReset(ctx *runner.CommandContext, cmd *cobra.Command, args []string) error {
	flags := runner.Flags(cmd)
	req := rpc.ResetRequest{
		All:             flags.Bool("all"),
		IncludeSettings: flags.Bool("settings"),
	}
	if err := flags.Err(); err != nil {
		return err
	}

	err := ctx.Daemon().Reset(ctx.Ctx, req)
	if errors.Is(err, apperrors.ErrDaemonUnreachable) {
		err = withLocalEngine(ctx.Ctx, ctx.Config, func(e *engine.Engine) error {
			if req.All || req.IncludeSettings {
				return e.ClearAll(ctx.Ctx, req.IncludeSettings)
			}
			return e.Reset(ctx.Ctx)
		})
	}
	if err != nil {
		return err
	}

	switch {
	case req.IncludeSettings:
		PrintSuccess("All data and settings cleared")
	case req.All:
		PrintSuccess("All history cleared")
	default:
		PrintSuccess("Today's monitoring reset")
	}
	return nil
}
