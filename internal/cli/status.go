package cli

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"github.com/lcrostarosa/vigil/internal/cli/runner"
	"github.com/lcrostarosa/vigil/internal/engine"
	apperrors "github.com/lcrostarosa/vigil/internal/errors"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show status",
	Long:  `Display the daemon's view of the current cycle.`,
	RunE:  runners.Config().Wrap(runStatus),
}

func init() {
	statusCmd.Flags().Bool("json", false, "Print the raw status as JSON")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(ctx *runner.CommandContext, cmd *cobra.Command, args []string) error {
	asJSON := runner.Flags(cmd).Bool("json")

	st, err := ctx.Daemon().Status(ctx.Ctx)
	if errors.Is(err, apperrors.ErrDaemonUnreachable) {
		PrintWarning("Daemon is not running (start it with 'vigil run')")
		return nil
	}
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	showStatus(st)
	return nil
}

func showStatus(st engine.Status) {
	PrintHeader("Vigil Status")
	if !st.Configured {
		PrintInfo("Not configured. Set a window with:")
		PrintInfo("  vigil settings set --window 23:00-08:00 --contact <destination>")
		return
	}

	tbl := newTable()
	tbl.AddRow("Window:", st.Settings.WindowStart+"-"+st.Settings.WindowEnd)
	tbl.AddRow("Grace:", st.Settings.EscalationDelay().String())
	tbl.AddRow("Contact:", st.Settings.Contact.String())
	tbl.AddRow("Cycle:", st.CycleKey)
	tbl.AddRow("In window:", yesNo(st.InWindow))
	tbl.AddRow("Window ends:", formatTime(st.NextWindowEnd))
	tbl.AddRow("State:", stateLabel(st.State))
	if st.Record != nil {
		tbl.AddRow("Last activity:", formatTime(st.Record.LastCheckInAt))
	}
	if st.Alert != nil {
		tbl.AddRow("Warning due:", formatTime(&st.Alert.ScheduledAt))
		tbl.AddRow("Escalation at:", formatTime(st.Alert.Deadline))
		tbl.AddRow("Remote armed:", yesNo(st.Alert.RemoteArmed))
	}
	if st.RemainingSeconds > 0 {
		tbl.AddRow("Remaining:", formatSeconds(st.RemainingSeconds))
	}
	if st.QueuedCancels > 0 {
		tbl.AddRow("Queued cancels:", st.QueuedCancels)
	}
	printTable(tbl)

	if st.Validation.Warning != "" {
		PrintInfo("")
		PrintWarning("%s", st.Validation.Warning)
	}
}

func stateLabel(s engine.State) string {
	switch s {
	case engine.StateAbnormal:
		return red.Sprint(s)
	case engine.StateEscalated:
		return red.Sprint(s)
	case engine.StateCheckedIn, engine.StateConfirmed:
		return green.Sprint(s)
	case engine.StateArmed:
		return yellow.Sprint(s)
	default:
		return string(s)
	}
}
