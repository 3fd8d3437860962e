package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/lcrostarosa/vigil/internal/cli/runner"
	"github.com/lcrostarosa/vigil/internal/config"
	"github.com/lcrostarosa/vigil/internal/kv"
	"github.com/lcrostarosa/vigil/internal/logging"
	"github.com/lcrostarosa/vigil/internal/settings"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the config and set the monitored window",
	Long: `Initialize vigil.

This writes config.json with a fresh control plane key and stores the
monitoring settings. The window is the daily period in which some
activity is expected; it may cross midnight.`,
	Example: `  # Overnight window, 10 minute grace period
  vigil init --window 23:00-08:00 --delay 10m --contact alex@example.com

  # With a relay and the SQLite store
  vigil init --window 22:00-07:00 --contact +15551234567 \
    --relay https://relay.example.com --relay-key s3cret --store sqlite`,
	RunE: runners.Uninitialized().Wrap(runInit),
}

func init() {
	f := initCmd.Flags()

	f.String("window", "", "Monitored window as HH:MM-HH:MM")
	f.Duration("delay", settings.DefaultEscalationDelaySeconds*time.Second, "Grace period after the warning")
	f.String("contact", "", "Emergency contact (email, phone number or webhook URL)")
	f.String("owner", "", "Your name as it appears in the escalation message")
	_ = initCmd.MarkFlagRequired("window")
	_ = initCmd.MarkFlagRequired("contact")

	f.String("relay", "", "Relay URL")
	f.String("relay-key", "", "Relay API key")
	f.String("store", string(kv.DriverFile), "State store driver (file, diskv, sqlite)")
	f.Bool("force", false, "Overwrite an existing config")

	rootCmd.AddCommand(initCmd)
}

func runInit(ctx *runner.CommandContext, cmd *cobra.Command, args []string) error {
	flags := runner.Flags(cmd)
	start, end := flags.Window("window")
	delay := flags.Duration("delay")
	contact := flags.String("contact")
	owner := flags.String("owner")
	relayURL := flags.String("relay")
	relayKey := flags.String("relay-key")
	driver := kv.Driver(flags.String("store"))
	force := flags.Bool("force")
	if err := flags.Err(); err != nil {
		return err
	}

	if ctx.HasConfig() && !force {
		return fmt.Errorf("vigil is already initialized in %s (use --force to overwrite)", ctx.Config.ConfigDir)
	}

	s := settings.Default()
	s.Owner = owner
	s.WindowStart, s.WindowEnd = start, end
	s.EscalationDelaySeconds = int(delay / time.Second)
	s.Contact = settings.ParseContact(contact)
	if _, err := s.Validate(); err != nil {
		return err
	}

	c := config.Default(resolvedConfigDir())
	if ctx.Config != nil {
		c.APIKey = ctx.Config.APIKey
	}
	c.Relay.URL = relayURL
	c.Relay.APIKey = relayKey
	if err := setStore(c, driver); err != nil {
		return err
	}
	if err := c.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	logging.Info("config written", logging.String("dir", c.ConfigDir))

	v, err := applySettings(ctx.Ctx, c, s)
	if err != nil {
		return fmt.Errorf("failed to store settings: %w", err)
	}

	PrintSuccess("vigil initialized in %s", c.ConfigDir)
	printValidation(v)
	PrintInfo("")
	PrintInfo("Window:  %s-%s", s.WindowStart, s.WindowEnd)
	PrintInfo("Grace:   %s", s.EscalationDelay())
	PrintInfo("Contact: %s", s.Contact)
	if !c.HasRelay() {
		PrintWarning("No relay configured; escalations will only be logged")
	}
	PrintInfo("")
	PrintInfo("Start the daemon with: vigil run")
	return nil
}

func setStore(c *config.Config, driver kv.Driver) error {
	switch driver {
	case kv.DriverFile, "":
		c.Store = kv.DefaultOptions(c.ConfigDir)
	case kv.DriverDiskv:
		c.Store = kv.Options{Driver: kv.DriverDiskv, Path: filepath.Join(c.ConfigDir, "diskv")}
	case kv.DriverSQLite:
		c.Store = kv.Options{Driver: kv.DriverSQLite, Path: filepath.Join(c.ConfigDir, "state.db")}
	default:
		return fmt.Errorf("unsupported store driver %q", driver)
	}
	return nil
}
