package cli

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lcrostarosa/vigil/internal/activity"
	"github.com/lcrostarosa/vigil/internal/cli/runner"
	"github.com/lcrostarosa/vigil/internal/config"
	"github.com/lcrostarosa/vigil/internal/engine"
	"github.com/lcrostarosa/vigil/internal/filelock"
	"github.com/lcrostarosa/vigil/internal/kv"
	"github.com/lcrostarosa/vigil/internal/logging"
	"github.com/lcrostarosa/vigil/internal/metrics"
	"github.com/lcrostarosa/vigil/internal/notify"
	"github.com/lcrostarosa/vigil/internal/rpc"
	"github.com/lcrostarosa/vigil/internal/scheduler"
	"github.com/lcrostarosa/vigil/internal/server"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the watchdog daemon",
	Long: `Run the watchdog in the foreground.

The daemon evaluates the monitored window, fires the local warning,
arms and cancels the remote escalation and serves the control plane
that the other commands talk to. Only one daemon may run per config
directory.`,
	Example: `  # Run with the configured listen address
  vigil run

  # Count writes to a notes directory as activity
  vigil run --watch ~/notes --metrics`,
	RunE: runners.Config().Wrap(runDaemon),
}

func init() {
	f := runCmd.Flags()
	f.StringP("addr", "a", "", "Control plane listen address (default from config or VIGIL_ADDR)")
	f.Bool("metrics", false, "Serve Prometheus metrics at /metrics")
	f.StringSlice("watch", nil, "Extra paths whose writes count as activity")
	f.Bool("dev", false, "Serve the control plane without authentication")
	rootCmd.AddCommand(runCmd)
}

func runDaemon(ctx *runner.CommandContext, cmd *cobra.Command, args []string) error {
	c := ctx.Config
	flags := runner.Flags(cmd)
	if addr := flags.String("addr"); addr != "" {
		c.ListenAddr = addr
	}
	if flags.Bool("metrics") {
		c.Metrics = true
	}
	c.Activity.Paths = append(c.Activity.Paths, flags.StringSlice("watch")...)
	dev := flags.Bool("dev")
	if err := flags.Err(); err != nil {
		return err
	}

	lock := filelock.New(c.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock state: %w", err)
	}
	if !ok {
		pid, _ := lock.Holder()
		return fmt.Errorf("another vigil daemon is running (pid %d)", pid)
	}
	defer func() { _ = lock.Unlock() }()

	d, err := newDaemon(c, dev)
	if err != nil {
		return err
	}
	defer d.close()

	printDaemonInfo(c)
	return d.run(ctx.Ctx)
}

// daemon holds the long lived parts of `vigil run`
type daemon struct {
	cfg      *config.Config
	store    kv.Store
	sched    *scheduler.Scheduler
	engine   *engine.Engine
	registry *prometheus.Registry
	server   *server.GracefulServer
	watcher  *activity.Watcher
}

func newDaemon(c *config.Config, dev bool) (*daemon, error) {
	log := logging.Named("daemon")

	store, err := kv.Open(c.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	d := &daemon{cfg: c, store: store}

	d.registry = prometheus.NewRegistry()
	d.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewPrometheusRecorder(d.registry)

	remote, err := newRemote(c)
	if err != nil {
		d.close()
		return nil, err
	}

	// A missed warning is caught by the next tick, so the trigger never retries.
	d.sched, err = scheduler.New(
		scheduler.WithRetry(scheduler.NoRetry()),
		scheduler.WithCallbacks(scheduler.LoggingCallbacks(log.Sugar().Debugf)),
	)
	if err != nil {
		d.close()
		return nil, err
	}

	sinks := notify.MultiSink{notify.LogSink{}}
	if c.Notify.Command != "" {
		sinks = append(sinks, notify.CommandSink{Command: c.Notify.Command, Timeout: c.NotifyTimeout()})
	}
	sinks = append(sinks, notify.SinkFunc(func(ctx context.Context, n notify.Notification) error {
		return d.engine.WarningFired(ctx, n.DueAt)
	}))
	trig := notify.NewTrigger(d.sched, sinks, clockwork.NewRealClock())

	d.engine = engine.New(store, trig, remote,
		engine.WithMetrics(recorder),
		engine.WithPollInterval(c.PollInterval()),
		engine.WithGraceSlack(c.GraceSlack()),
		engine.WithCallbacks(engine.LoggingCallbacks(log.Sugar().Infof)),
	)

	mux := http.NewServeMux()
	rpc.NewServer(d.engine, rpc.AuthConfig{APIKey: c.APIKey, DevMode: dev}).RegisterHandlers(mux)
	if c.Metrics {
		mux.Handle("/metrics", metrics.HTTPHandler(d.registry))
	}
	d.server = server.NewGracefulServer("control", &http.Server{
		Addr:              c.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}, nil)

	if len(c.Activity.Paths) > 0 {
		d.watcher, err = activity.NewWatcher(c.Activity.Paths, d.engine.RecordCheckIn,
			activity.WithMinInterval(c.ActivityInterval()))
		if err != nil {
			d.close()
			return nil, err
		}
	}
	return d, nil
}

// run blocks until ctx is cancelled or a component fails.
func (d *daemon) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	d.sched.Start()
	if err := d.engine.Start(gctx, showPrompt); err != nil {
		return err
	}
	g.Go(func() error {
		<-gctx.Done()
		return d.engine.Stop()
	})

	g.Go(func() error {
		return d.server.Serve(gctx)
	})

	if d.watcher != nil {
		g.Go(func() error {
			return d.watcher.Run(gctx)
		})
	}

	err := g.Wait()
	logging.Info("daemon stopped")
	return err
}

func (d *daemon) close() {
	if d.sched != nil {
		if err := d.sched.Stop(); err != nil {
			logging.Debug("scheduler stop", logging.Err(err))
		}
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			logging.Warn("failed to close store", logging.Err(err))
		}
	}
}

// showPrompt is the daemon's stand-in for the escalation dialog. The user
// answers with `vigil confirm` or `vigil dismiss`.
func showPrompt(ev engine.Event) {
	PrintDivider()
	PrintWarning("No activity was seen during the window of %s.", ev.DateKey)
	if ev.Deadline != nil {
		PrintInfo("Your contact will be notified at %s unless you answer.", ev.Deadline.Local().Format("15:04:05"))
	}
	PrintInfo("Run 'vigil confirm' if you are safe.")
	PrintDivider()
}

func printDaemonInfo(c *config.Config) {
	PrintHeader("vigil daemon")
	PrintInfo("Config:   %s", c.ConfigDir)
	PrintInfo("Control:  %s", c.ListenAddr)
	PrintInfo("Store:    %s (%s)", c.Store.Driver, c.Store.Path)
	if c.HasRelay() {
		PrintInfo("Relay:    %s", c.Relay.URL)
	} else {
		PrintWarning("No relay configured; escalations will only be logged")
	}
	if c.Metrics {
		PrintInfo("Metrics:  http://%s/metrics", c.ListenAddr)
	}
	for _, p := range c.Activity.Paths {
		PrintInfo("Watching: %s", p)
	}
	PrintInfo("")
}
