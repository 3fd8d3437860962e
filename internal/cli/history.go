package cli

import (
	"github.com/spf13/cobra"

	"github.com/lcrostarosa/vigil/internal/cli/runner"
	"github.com/lcrostarosa/vigil/internal/records"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past days",
	Long:  `List the stored day records, newest first.`,
	RunE:  runners.DaemonWithActivity().Wrap(runHistory),
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 14, "Number of days to show (0 for all)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(ctx *runner.CommandContext, cmd *cobra.Command, args []string) error {
	flags := runner.Flags(cmd)
	limit := flags.Int("limit")
	if err := flags.Err(); err != nil {
		return err
	}

	recs, err := ctx.Daemon().History(ctx.Ctx, limit)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		PrintInfo("No history yet")
		return nil
	}
	printHistory(recs)
	return nil
}

func printHistory(recs []records.DayRecord) {
	tbl := newTable()
	tbl.AddRow(bold.Sprint("DATE"), bold.Sprint("WINDOW"), bold.Sprint("STATUS"), bold.Sprint("LAST ACTIVITY"))
	for _, r := range recs {
		tbl.AddRow(r.Date, r.WindowStart+"-"+r.WindowEnd, statusLabel(r.Status()), formatTime(r.LastCheckInAt))
	}
	printTable(tbl)
}

func statusLabel(s records.Status) string {
	switch s {
	case records.StatusAbnormal, records.StatusEscalated:
		return red.Sprint(s)
	case records.StatusCheckedIn, records.StatusConfirmed:
		return green.Sprint(s)
	default:
		return string(s)
	}
}
