package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/lcrostarosa/vigil/internal/cli/runner"
	"github.com/lcrostarosa/vigil/internal/config"
	"github.com/lcrostarosa/vigil/internal/escalation"
	"github.com/lcrostarosa/vigil/internal/logging"
	"github.com/lcrostarosa/vigil/internal/metrics"
	"github.com/lcrostarosa/vigil/internal/middleware"
	"github.com/lcrostarosa/vigil/internal/relay"
	"github.com/lcrostarosa/vigil/internal/server"
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run or inspect the escalation relay",
	Long: `The relay is the always-on service that holds escalation tasks and
delivers them when their time comes, even if the watched device is off.`,
}

var relayServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay server",
	Example: `  # Serve with a key, delivering through a webhook gateway
  vigil relay serve --addr :7467 --key s3cret --webhook https://gateway.example.com/send`,
	RunE: runners.Base().Wrap(runRelayServe),
}

var relayTasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List the tasks the configured relay holds",
	RunE:  runners.Relay().Wrap(runRelayTasks),
}

func init() {
	f := relayServeCmd.Flags()
	f.StringP("addr", "a", "", "Listen address (default :7467)")
	f.String("db", "", "Task database path (default <config-dir>/relay.db)")
	f.String("key", "", "API key clients must present")
	f.Bool("open", false, "Serve without a key (development only)")
	f.String("webhook", "", "Gateway URL email and sms deliveries are posted to")

	relayCmd.AddCommand(relayServeCmd, relayTasksCmd)
	rootCmd.AddCommand(relayCmd)
}

func runRelayServe(ctx *runner.CommandContext, cmd *cobra.Command, args []string) error {
	c := ctx.Config
	if c == nil {
		c = config.Default(resolvedConfigDir())
		c.ApplyEnv()
	}
	rc := c.RelayServer

	flags := runner.Flags(cmd)
	if v := flags.String("addr"); v != "" {
		rc.ListenAddr = v
	}
	if v := flags.String("db"); v != "" {
		rc.DBPath = v
	}
	if v := flags.String("key"); v != "" {
		rc.APIKey = v
	}
	if flags.Bool("open") {
		rc.Open = true
	}
	if v := flags.String("webhook"); v != "" {
		rc.WebhookURL = v
	}
	if err := flags.Err(); err != nil {
		return err
	}
	if rc.ListenAddr == "" {
		rc.ListenAddr = config.DefaultRelayListenAddr
	}
	if rc.DBPath == "" {
		rc.DBPath = filepath.Join(c.ConfigDir, "relay.db")
	}
	if rc.APIKey == "" && !rc.Open {
		return fmt.Errorf("relay needs an API key (--key) or --open")
	}

	store, err := relay.OpenTaskStore(rc.DBPath)
	if err != nil {
		return fmt.Errorf("open task store: %w", err)
	}
	defer func() { _ = store.Close() }()

	reg := prometheus.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(reg)

	var sender relay.Sender = relay.LogSender{}
	if rc.WebhookURL != "" {
		sender = relay.NewWebhookSender(rc.WebhookURL, 10*time.Second)
	}

	dispatcher, err := relay.NewDispatcher(store, sender, relay.WithDispatchMetrics(recorder))
	if err != nil {
		return err
	}
	n, err := dispatcher.Start(ctx.Ctx)
	if err != nil {
		return err
	}
	if err := dispatcher.PruneEvery(time.Hour, c.PruneAfter()); err != nil {
		return err
	}

	limits := middleware.DefaultRateLimitConfig()
	if rc.RequestsPerSecond > 0 {
		limits.RequestsPerSecond = rc.RequestsPerSecond
	}
	if rc.Burst > 0 {
		limits.BurstSize = rc.Burst
	}
	srv := relay.NewServer(relay.ServerConfig{
		Addr:      rc.ListenAddr,
		APIKey:    rc.APIKey,
		Open:      rc.Open,
		RateLimit: limits,
		Metrics:   metrics.HTTPHandler(reg),
	}, dispatcher)

	gs := server.NewGracefulServer("relay", srv.HTTPServer(), &server.GracefulServerOptions{
		BeforeStop: func() {
			if err := dispatcher.Stop(); err != nil {
				logging.Warn("dispatcher stop", logging.Err(err))
			}
		},
		ShutdownHook: func() { _ = srv.Shutdown(context.Background()) },
	})

	PrintHeader("vigil relay")
	PrintInfo("Listen:   %s", rc.ListenAddr)
	PrintInfo("Database: %s", rc.DBPath)
	PrintInfo("Pending:  %d", n)
	if rc.WebhookURL == "" {
		PrintWarning("No webhook gateway; deliveries are only logged")
	}
	if rc.Open && rc.APIKey == "" {
		PrintWarning("Serving without authentication")
	}
	PrintInfo("")

	return gs.Serve(ctx.Ctx)
}

func runRelayTasks(ctx *runner.CommandContext, cmd *cobra.Command, args []string) error {
	client, err := escalation.NewClient(escalation.ClientConfig{
		URL:     ctx.Config.Relay.URL,
		APIKey:  ctx.Config.Relay.APIKey,
		Timeout: ctx.Config.RelayTimeout(),
	})
	if err != nil {
		return err
	}
	tasks, err := client.List(ctx.Ctx)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		PrintInfo("The relay holds no tasks")
		return nil
	}

	tbl := newTable()
	tbl.AddRow(bold.Sprint("TASK"), bold.Sprint("STATUS"), bold.Sprint("DESTINATION"), bold.Sprint("SCHEDULED"), bold.Sprint("ATTEMPTS"), bold.Sprint("ERROR"))
	for _, t := range tasks {
		tbl.AddRow(t.TaskID, t.Status, t.Destination, formatTime(t.ScheduledTime), t.Attempts, t.LastError)
	}
	printTable(tbl)
	return nil
}
