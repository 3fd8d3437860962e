package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lcrostarosa/vigil/internal/cli/runner"
	"github.com/lcrostarosa/vigil/internal/config"
	"github.com/lcrostarosa/vigil/internal/logging"
	"github.com/lcrostarosa/vigil/internal/rpc"
)

var (
	// Version is set at build time
	Version = "0.1.0"

	// Global flags
	configDir string
	verbose   bool

	// App state
	cfg    *config.Config
	cfgErr error

	runners = runner.NewBuilder(loadedConfig, dialDaemon)
)

// rootCmd is the base command
var rootCmd = &cobra.Command{
	Use:   "vigil",
	Short: "Dead man's switch for a daily quiet window",
	Long: `Vigil watches for device activity inside a daily time window.

When a window passes without any activity you are asked whether you
are safe. If nobody answers before the grace period runs out, a relay
sends a message to your emergency contact.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	_ = logging.Sync()
	if err != nil {
		PrintError("%v", err)
		os.Exit(1)
	}
}

// SetVersion sets the version string
func SetVersion(v string) {
	Version = v
	rootCmd.Version = v
}

func init() {
	cobra.OnInitialize(initConfig, initLogging)
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configDir, "config-dir", "", "Config directory (default $VIGIL_HOME or ~/.vigil)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func initConfig() {
	cfg, cfgErr = config.Load(configDir)
}

func initLogging() {
	lc := logging.DefaultConfig()
	if cfg != nil {
		if cfg.Log.Level != "" {
			lc.Level = cfg.Log.Level
		}
		lc.JSON = cfg.Log.JSON
	} else if lvl := os.Getenv(config.EnvLogLevel); lvl != "" {
		lc.Level = lvl
	}
	if verbose {
		lc.Level = "debug"
		lc.Development = true
	}
	if err := logging.Init(lc); err != nil {
		logging.InitDefault()
	}
}

func loadedConfig() (*config.Config, error) {
	return cfg, cfgErr
}

func dialDaemon(c *config.Config) runner.Daemon {
	return rpc.NewClient(c.ListenAddr, c.APIKey, 0)
}

// resolvedConfigDir is the directory init writes to
func resolvedConfigDir() string {
	if configDir != "" {
		return configDir
	}
	return config.DefaultConfigDir()
}
