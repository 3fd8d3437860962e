// Package e2e runs the watchdog against a real relay: engine, HTTP client,
// relay server, SQLite task store and dispatcher.
package e2e

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/lcrostarosa/vigil/internal/engine"
	"github.com/lcrostarosa/vigil/internal/escalation"
	"github.com/lcrostarosa/vigil/internal/kv"
	"github.com/lcrostarosa/vigil/internal/relay"
	"github.com/lcrostarosa/vigil/internal/scheduler"
	"github.com/lcrostarosa/vigil/internal/settings"
	"github.com/lcrostarosa/vigil/internal/testutil"
)

const relayKey = "e2e-relay-key"

var ctx = context.Background()

// recordingSender collects deliveries
type recordingSender struct {
	mu   sync.Mutex
	sent []escalation.Task
}

func (r *recordingSender) Send(ctx context.Context, t escalation.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, t)
	return nil
}

func (r *recordingSender) tasks() []escalation.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]escalation.Task(nil), r.sent...)
}

// relayNode is one running relay process
type relayNode struct {
	store      *relay.TaskStore
	dispatcher *relay.Dispatcher
	server     *httptest.Server
	sender     *recordingSender
	pending    int
	down       atomic.Bool
	stopped    bool
}

func startRelay(t *testing.T, dbPath string) *relayNode {
	t.Helper()
	store, err := relay.OpenTaskStore(dbPath)
	require.NoError(t, err)

	n := &relayNode{store: store, sender: &recordingSender{}}
	n.dispatcher, err = relay.NewDispatcher(store, n.sender, relay.WithDispatchRetry(scheduler.NoRetry()))
	require.NoError(t, err)
	n.pending, err = n.dispatcher.Start(ctx)
	require.NoError(t, err)

	h := relay.NewServer(relay.ServerConfig{APIKey: relayKey}, n.dispatcher).Handler()
	n.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if n.down.Load() {
			http.Error(w, "relay unavailable", http.StatusServiceUnavailable)
			return
		}
		h.ServeHTTP(w, r)
	}))
	t.Cleanup(n.stop)
	return n
}

func (n *relayNode) stop() {
	if n.stopped {
		return
	}
	n.stopped = true
	n.server.Close()
	_ = n.dispatcher.Stop()
	_ = n.store.Close()
}

func (n *relayNode) client(t *testing.T) *escalation.Client {
	t.Helper()
	c, err := escalation.NewClient(escalation.ClientConfig{
		URL:     n.server.URL,
		APIKey:  relayKey,
		Timeout: 2 * time.Second,
		Retry:   scheduler.NoRetry(),
	})
	require.NoError(t, err)
	return c
}

func (n *relayNode) status(t *testing.T, id string) string {
	t.Helper()
	st, err := n.client(t).Status(ctx, id)
	require.NoError(t, err)
	require.True(t, st.Exists, "relay does not know %s", id)
	return st.Status
}

// device is the watched machine: an engine on a durable store and a fake clock
type device struct {
	clock   *clockwork.FakeClock
	store   *kv.MemoryStore
	remote  escalation.Scheduler
	trigger *testutil.FakeTrigger
	engine  *engine.Engine
}

func newDevice(t *testing.T, now time.Time, remote escalation.Scheduler, s settings.Settings) *device {
	t.Helper()
	d := &device{clock: clockwork.NewFakeClockAt(now), store: kv.NewMemoryStore(), remote: remote}
	d.boot()
	_, err := d.engine.UpdateSettings(ctx, s)
	require.NoError(t, err)
	return d
}

// boot starts a fresh engine process on the same store, as after a crash.
func (d *device) boot() {
	d.trigger = testutil.NewFakeTrigger()
	d.engine = engine.New(d.store, d.trigger, d.remote, engine.WithClock(d.clock))
}

func (d *device) set(t *testing.T, now time.Time) {
	t.Helper()
	delta := now.Sub(d.clock.Now())
	require.GreaterOrEqual(t, delta, time.Duration(0))
	d.clock.Advance(delta)
}

func (d *device) status(t *testing.T) engine.Status {
	t.Helper()
	st, err := d.engine.Status(ctx)
	require.NoError(t, err)
	return st
}

// taskID is the relay task of the current cycle
func (d *device) taskID(t *testing.T) string {
	t.Helper()
	st := d.status(t)
	require.NotNil(t, st.Alert, "no alert for %s", st.CycleKey)
	require.NotEmpty(t, st.Alert.TaskID)
	return st.Alert.TaskID
}

// missWindow runs the engine through a window of 22:00-22:10 without any
// activity and stops just after it ends.
func (d *device) missWindow(t *testing.T, on time.Time) {
	t.Helper()
	d.set(t, at(on, 22, 5))
	d.engine.Tick(ctx)
	d.set(t, at(on, 22, 10))
	d.engine.Tick(ctx)
}

func shortWindow() settings.Settings {
	return testutil.NewSettingsFixture().WithWindow("22:00", "22:10").WithDelay(5 * time.Minute).Build()
}

func at(day time.Time, hour, min int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, min, 0, 0, time.Local)
}

// future is a day whose escalations the relay holds instead of sending
func future() time.Time {
	return time.Now().AddDate(0, 0, 2)
}

// past is a day whose escalations are already due on the relay's clock
func past() time.Time {
	return time.Now().AddDate(0, 0, -2)
}

func dbPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "relay.db")
}
