package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcrostarosa/vigil/internal/config"
	"github.com/lcrostarosa/vigil/internal/engine"
	"github.com/lcrostarosa/vigil/internal/rpc"
	"github.com/lcrostarosa/vigil/internal/testutil"
)

const testKey = "cli-test-key"

func day(hour, min int) time.Time {
	return testutil.At(2026, time.March, 17, hour, min)
}

// resetFlags puts every flag back to its default so commands do not see
// values from an earlier run.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// execute runs the root command and returns what it printed.
func execute(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true

	var buf bytes.Buffer
	prev := out
	out = &buf
	t.Cleanup(func() { out = prev })

	resetFlags(rootCmd)
	rootCmd.SetArgs(append([]string{"--config-dir", dir}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func writeConfig(t *testing.T, addr string) string {
	t.Helper()
	dir := t.TempDir()
	c := config.Default(dir)
	c.ListenAddr = addr
	c.APIKey = testKey
	require.NoError(t, c.Save())
	return dir
}

// serveDaemon exposes a fixture engine as the control plane and returns a
// config dir pointing at it.
func serveDaemon(t *testing.T, f *testutil.EngineFixture) string {
	t.Helper()
	ts := httptest.NewServer(rpc.NewServer(f.Engine, rpc.AuthConfig{APIKey: testKey}).Handler())
	t.Cleanup(ts.Close)
	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	return writeConfig(t, u.Host)
}

// deadAddr returns an address nothing listens on.
func deadAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func shortWindow(t *testing.T) *testutil.EngineFixture {
	t.Helper()
	s := testutil.NewSettingsFixture().WithWindow("22:00", "22:10").WithDelay(5 * time.Minute).Build()
	return testutil.NewEngineFixture(t).At(day(21, 50)).WithSettings(s).Build()
}

func TestCheckInCommand(t *testing.T) {
	f := shortWindow(t)
	dir := serveDaemon(t, f)

	output, err := execute(t, dir, "checkin")
	require.NoError(t, err)
	assert.Contains(t, output, "Outside the monitored window")

	f.Set(t, day(22, 5))
	output, err = execute(t, dir, "checkin")
	require.NoError(t, err)
	assert.Contains(t, output, "Check-in recorded")

	st, err := f.Engine.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, engine.StateCheckedIn, st.State)
}

func TestCommandsNeedConfig(t *testing.T) {
	_, err := execute(t, t.TempDir(), "checkin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vigil init")
}

func TestDaemonCommandsNeedDaemon(t *testing.T) {
	dir := writeConfig(t, deadAddr(t))

	_, err := execute(t, dir, "confirm")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vigil run")
}

func TestStatusCommand(t *testing.T) {
	t.Run("daemon down", func(t *testing.T) {
		output, err := execute(t, writeConfig(t, deadAddr(t)), "status")
		require.NoError(t, err)
		assert.Contains(t, output, "Daemon is not running")
	})

	t.Run("table", func(t *testing.T) {
		f := shortWindow(t)
		f.Set(t, day(22, 5))
		output, err := execute(t, serveDaemon(t, f), "status")
		require.NoError(t, err)
		assert.Contains(t, output, "22:00-22:10")
		assert.Contains(t, output, "2026-03-17")
	})

	t.Run("json", func(t *testing.T) {
		f := shortWindow(t)
		output, err := execute(t, serveDaemon(t, f), "status", "--json")
		require.NoError(t, err)

		var st engine.Status
		require.NoError(t, json.Unmarshal([]byte(output), &st))
		assert.True(t, st.Configured)
		assert.False(t, st.InWindow)
	})
}

func TestPromptCommands(t *testing.T) {
	f := shortWindow(t)
	dir := serveDaemon(t, f)
	ctx := context.Background()

	// A silent window ends.
	f.Set(t, day(22, 5))
	f.Engine.Tick(ctx)
	f.Set(t, day(22, 10))
	f.Engine.Tick(ctx)
	f.Set(t, day(22, 12))

	output, err := execute(t, dir, "pending")
	require.NoError(t, err)
	assert.Contains(t, output, "A safety check is waiting")
	assert.Contains(t, output, "3m0s")

	output, err = execute(t, dir, "dismiss")
	require.NoError(t, err)
	assert.Contains(t, output, "still armed")
	assert.Len(t, f.Escalator.Armed(), 1)

	output, err = execute(t, dir, "confirm")
	require.NoError(t, err)
	assert.Contains(t, output, "Confirmed safe")
	assert.Empty(t, f.Escalator.Armed())

	output, err = execute(t, dir, "pending")
	require.NoError(t, err)
	assert.Contains(t, output, "Nothing pending")
}

func TestHistoryCommand(t *testing.T) {
	f := shortWindow(t)
	dir := serveDaemon(t, f)

	output, err := execute(t, dir, "history")
	require.NoError(t, err)
	assert.Contains(t, output, "No history yet")

	f.Set(t, day(22, 5))
	_, err = f.Engine.RecordCheckIn(context.Background())
	require.NoError(t, err)

	output, err = execute(t, dir, "history")
	require.NoError(t, err)
	assert.Contains(t, output, "2026-03-17")
	assert.Contains(t, output, "checked_in")
}

func TestSettingsOffline(t *testing.T) {
	dir := writeConfig(t, deadAddr(t))

	output, err := execute(t, dir, "settings", "show")
	require.NoError(t, err)
	assert.Contains(t, output, "No settings stored")

	output, err = execute(t, dir, "settings", "set", "--window", "22:00-06:00", "--contact", "alex@example.com", "--delay", "10m")
	require.NoError(t, err)
	assert.Contains(t, output, "Settings saved")

	_, err = execute(t, dir, "settings", "set", "--owner", "Sam")
	require.NoError(t, err)

	output, err = execute(t, dir, "settings", "show")
	require.NoError(t, err)
	assert.Contains(t, output, "22:00-06:00")
	assert.Contains(t, output, "10m0s")
	assert.Contains(t, output, "Sam")
	assert.Contains(t, output, "al***@example.com")
}

func TestSettingsSetRejectsInvalid(t *testing.T) {
	f := shortWindow(t)
	dir := serveDaemon(t, f)

	tests := []struct {
		name string
		args []string
	}{
		{"malformed window", []string{"--window", "22:00"}},
		{"bad time", []string{"--window", "25:00-06:00"}},
		{"empty window", []string{"--window", "06:00-06:00"}},
		{"bad contact", []string{"--contact", "not-an-address"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, dir, append([]string{"settings", "set"}, tt.args...)...)
			require.Error(t, err)
		})
	}

	s, err := f.Engine.Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "22:00", s.WindowStart)
}

func TestResetCommand(t *testing.T) {
	f := shortWindow(t)
	dir := serveDaemon(t, f)
	ctx := context.Background()

	f.Set(t, day(22, 5))
	_, err := f.Engine.RecordCheckIn(ctx)
	require.NoError(t, err)

	output, err := execute(t, dir, "reset", "--all")
	require.NoError(t, err)
	assert.Contains(t, output, "All history cleared")

	recs, err := f.Engine.History(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, recs)

	_, err = f.Engine.Settings(ctx)
	require.NoError(t, err, "settings survive --all")
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()

	output, err := execute(t, dir, "init", "--window", "23:00-07:00", "--contact", "alex@example.com", "--delay", "15m")
	require.NoError(t, err)
	assert.Contains(t, output, "vigil initialized")
	assert.True(t, config.Exists(dir))

	c, err := config.Load(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, c.APIKey)

	s, err := currentSettings(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, "23:00", s.WindowStart)
	assert.Equal(t, 900, s.EscalationDelaySeconds)

	_, err = execute(t, dir, "init", "--window", "23:00-07:00", "--contact", "alex@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already initialized")

	_, err = execute(t, dir, "init", "--window", "23:00-07:00", "--contact", "alex@example.com", "--force")
	require.NoError(t, err)
	again, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, c.APIKey, again.APIKey, "--force keeps the control plane key")
}

func TestInitRejectsInvalidSettings(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, dir, "init", "--window", "08:00-08:00", "--contact", "alex@example.com")
	require.Error(t, err)
	assert.False(t, config.Exists(dir), "nothing is written for invalid settings")
}

func TestVersionCommand(t *testing.T) {
	output, err := execute(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Contains(t, output, "vigil "+Version)
}
