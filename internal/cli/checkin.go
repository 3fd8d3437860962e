package cli

import (
	"github.com/spf13/cobra"

	"github.com/lcrostarosa/vigil/internal/cli/runner"
)

var checkinCmd = &cobra.Command{
	Use:   "checkin",
	Short: "Record activity now",
	Long: `Tell the daemon you are active.

Activity only counts while the monitored window is open; outside it
the command succeeds but nothing is recorded.`,
	RunE: runners.Daemon().Wrap(runCheckIn),
}

func init() {
	rootCmd.AddCommand(checkinCmd)
}

func runCheckIn(ctx *runner.CommandContext, cmd *cobra.Command, args []string) error {
	counted, err := ctx.Daemon().CheckIn(ctx.Ctx)
	if err != nil {
		return err
	}
	if counted {
		PrintSuccess("Check-in recorded")
	} else {
		PrintInfo("Outside the monitored window; nothing recorded")
	}
	return nil
}
