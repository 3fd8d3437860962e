package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/lcrostarosa/vigil/internal/cli/runner"
	"github.com/lcrostarosa/vigil/internal/notify"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Manage the local warning",
}

var notifyTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a test warning through the configured notify command",
	RunE:  runners.Config().Wrap(runNotifyTest),
}

func init() {
	notifyCmd.AddCommand(notifyTestCmd)
	rootCmd.AddCommand(notifyCmd)
}

func runNotifyTest(ctx *runner.CommandContext, cmd *cobra.Command, args []string) error {
	sinks := notify.MultiSink{notify.LogSink{}}
	if ctx.Config.Notify.Command != "" {
		sinks = append(sinks, notify.CommandSink{
			Command: ctx.Config.Notify.Command,
			Timeout: ctx.Config.NotifyTimeout(),
		})
	} else {
		PrintWarning("No notify command configured; the warning is only logged")
	}

	now := time.Now()
	err := sinks.Notify(ctx.Ctx, notify.Notification{
		Title:   "vigil test",
		Body:    "This is what the safety check looks like.",
		DueAt:   now,
		FiredAt: now,
	})
	if err != nil {
		return err
	}
	PrintSuccess("Test warning sent")
	return nil
}
