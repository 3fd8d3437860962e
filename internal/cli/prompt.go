package cli

import (
	"github.com/spf13/cobra"

	"github.com/lcrostarosa/vigil/internal/cli/runner"
)

// --- Escalation prompt commands ---

var confirmCmd = &cobra.Command{
	Use:   "confirm",
	Short: "Confirm you are safe",
	Long: `Answer the safety check.

Cancels the pending escalation for today's window and marks the day
as confirmed.`,
	RunE: runners.Daemon().Wrap(runConfirm),
}

var dismissCmd = &cobra.Command{
	Use:   "dismiss",
	Short: "Hide the safety check without answering",
	Long: `Dismiss the safety check.

The prompt stops resurfacing, but the escalation stays armed: your
contact is still notified when the grace period runs out.`,
	RunE: runners.Daemon().Wrap(runDismiss),
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Report that you are back at the device",
	Long: `Report a return to the foreground.

The daemon re-evaluates the window. When nothing is pending this
counts as activity; otherwise the pending safety check is shown.`,
	RunE: runners.Daemon().Wrap(runResume),
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Show whether a safety check is waiting",
	RunE:  runners.Daemon().Wrap(runPending),
}

func init() {
	rootCmd.AddCommand(confirmCmd, dismissCmd, resumeCmd, pendingCmd)
}

func runConfirm(ctx *runner.CommandContext, cmd *cobra.Command, args []string) error {
	if err := ctx.Daemon().ConfirmSafe(ctx.Ctx); err != nil {
		return err
	}
	PrintSuccess("Confirmed safe; escalation cancelled")
	return nil
}

func runDismiss(ctx *runner.CommandContext, cmd *cobra.Command, args []string) error {
	if err := ctx.Daemon().Dismiss(ctx.Ctx); err != nil {
		return err
	}
	PrintWarning("Prompt dismissed; the escalation is still armed")
	return nil
}

func runResume(ctx *runner.CommandContext, cmd *cobra.Command, args []string) error {
	resp, err := ctx.Daemon().Resume(ctx.Ctx)
	if err != nil {
		return err
	}
	printPending(resp.Pending, resp.RemainingSeconds)
	return nil
}

func runPending(ctx *runner.CommandContext, cmd *cobra.Command, args []string) error {
	resp, err := ctx.Daemon().CheckPending(ctx.Ctx)
	if err != nil {
		return err
	}
	printPending(resp.Pending, resp.RemainingSeconds)
	return nil
}

func printPending(pending bool, remaining int) {
	if !pending {
		PrintSuccess("Nothing pending")
		return
	}
	PrintWarning("A safety check is waiting")
	if remaining > 0 {
		PrintInfo("Your contact will be notified in %s", formatSeconds(remaining))
	}
	PrintInfo("Run 'vigil confirm' if you are safe.")
}
