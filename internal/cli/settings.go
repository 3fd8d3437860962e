package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/lcrostarosa/vigil/internal/cli/runner"
	apperrors "github.com/lcrostarosa/vigil/internal/errors"
	"github.com/lcrostarosa/vigil/internal/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change the monitoring settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the monitoring settings",
	RunE:  runners.Config().Wrap(runSettingsShow),
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change the monitoring settings",
	Long: `Change the monitoring settings.

Only the flags given are changed. Any monitoring already armed for the
current window is reset, so the new window is evaluated from scratch.`,
	Example: `  vigil settings set --window 22:30-07:30
  vigil settings set --delay 15m --contact https://hooks.example.com/vigil`,
	RunE: runners.Config().Wrap(runSettingsSet),
}

func init() {
	f := settingsSetCmd.Flags()
	f.String("window", "", "Monitored window as HH:MM-HH:MM")
	f.Duration("delay", 0, "Grace period after the warning")
	f.String("contact", "", "Emergency contact (email, phone number or webhook URL)")
	f.String("contact-name", "", "Contact's name")
	f.String("owner", "", "Your name as it appears in the escalation message")

	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(ctx *runner.CommandContext, cmd *cobra.Command, args []string) error {
	s, err := currentSettings(ctx.Ctx, ctx.Config)
	if errors.Is(err, apperrors.ErrNotConfigured) {
		PrintInfo("No settings stored. Set them with 'vigil settings set'.")
		return nil
	}
	if err != nil {
		return err
	}
	printSettings(s)
	return nil
}

func runSettingsSet(ctx *runner.CommandContext, cmd *cobra.Command, args []string) error {
	flags := runner.Flags(cmd)
	start, end := flags.Window("window")
	delay := flags.Duration("delay")
	contact := flags.String("contact")
	contactName := flags.String("contact-name")
	owner := flags.String("owner")
	if err := flags.Err(); err != nil {
		return err
	}

	s, err := currentSettings(ctx.Ctx, ctx.Config)
	if errors.Is(err, apperrors.ErrNotConfigured) {
		s = settings.Default()
	} else if err != nil {
		return err
	}

	if flags.Changed("window") {
		s.WindowStart, s.WindowEnd = start, end
	}
	if flags.Changed("delay") {
		s.EscalationDelaySeconds = int(delay / time.Second)
	}
	if flags.Changed("contact") {
		s.Contact = settings.ParseContact(contact)
	}
	if flags.Changed("contact-name") {
		s.Contact.Name = contactName
	}
	if flags.Changed("owner") {
		s.Owner = owner
	}

	v, err := applySettings(ctx.Ctx, ctx.Config, s)
	if err != nil {
		return err
	}
	PrintSuccess("Settings saved")
	printValidation(v)
	printSettings(s)
	return nil
}

func printSettings(s settings.Settings) {
	tbl := newTable()
	tbl.AddRow("Window:", s.WindowStart+"-"+s.WindowEnd)
	tbl.AddRow("Grace:", s.EscalationDelay().String())
	tbl.AddRow("Contact:", s.Contact.String())
	if s.Owner != "" {
		tbl.AddRow("Owner:", s.Owner)
	}
	if !s.UpdatedAt.IsZero() {
		tbl.AddRow("Updated:", formatTime(&s.UpdatedAt))
	}
	printTable(tbl)
}
