package e2e

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcrostarosa/vigil/internal/engine"
	"github.com/lcrostarosa/vigil/internal/relay"
)

func TestE2E_MissedWindowIsDelivered(t *testing.T) {
	r := startRelay(t, dbPath(t))
	day := past()
	d := newDevice(t, at(day, 21, 50), r.client(t), shortWindow())

	d.missWindow(t, day)
	assert.Equal(t, engine.StateAbnormal, d.status(t).State)
	id := d.taskID(t)

	require.Eventually(t, func() bool { return len(r.sender.tasks()) == 1 }, 5*time.Second, 10*time.Millisecond)
	sent := r.sender.tasks()[0]
	assert.Equal(t, id, sent.TaskID)
	assert.Equal(t, "alex@example.com", sent.Destination)
	assert.Contains(t, sent.Message, "Sam")
	assert.True(t, sent.ScheduledTime.Equal(at(day, 22, 15)), "due at window end plus delay")

	require.Eventually(t, func() bool { return r.status(t, id) == string(relay.StatusDelivered) }, 5*time.Second, 10*time.Millisecond)
}

func TestE2E_ConfirmCancelsRelayTask(t *testing.T) {
	r := startRelay(t, dbPath(t))
	day := future()
	d := newDevice(t, at(day, 21, 50), r.client(t), shortWindow())

	d.missWindow(t, day)
	id := d.taskID(t)
	assert.Equal(t, string(relay.StatusPending), r.status(t, id))

	d.set(t, at(day, 22, 12))
	require.NoError(t, d.engine.ConfirmSafe(ctx))

	assert.Equal(t, string(relay.StatusCancelled), r.status(t, id))
	assert.Equal(t, engine.StateConfirmed, d.status(t).State)
	assert.Empty(t, r.sender.tasks())
}

func TestE2E_CheckInKeepsRelayQuiet(t *testing.T) {
	r := startRelay(t, dbPath(t))
	day := future()
	d := newDevice(t, at(day, 21, 50), r.client(t), shortWindow())

	d.set(t, at(day, 22, 5))
	counted, err := d.engine.RecordCheckIn(ctx)
	require.NoError(t, err)
	assert.True(t, counted)

	d.set(t, at(day, 22, 30))
	d.engine.Tick(ctx)

	tasks, err := r.client(t).List(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.Equal(t, engine.StateCheckedIn, d.status(t).State)
}

func TestE2E_CrashAndResumeKeepsOneTask(t *testing.T) {
	r := startRelay(t, dbPath(t))
	day := future()
	d := newDevice(t, at(day, 21, 50), r.client(t), shortWindow())

	// Armed, then the process dies before the window ends.
	d.set(t, at(day, 22, 5))
	d.engine.Tick(ctx)
	d.boot()

	d.set(t, at(day, 22, 11))
	pending, err := d.engine.CheckPendingEscalation(ctx)
	require.NoError(t, err)
	assert.True(t, pending)

	// And again, with the escalation already armed.
	d.boot()
	pending, err = d.engine.CheckPendingEscalation(ctx)
	require.NoError(t, err)
	assert.True(t, pending)

	tasks, err := r.client(t).List(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1, "one task per cycle across restarts")
	assert.True(t, strings.HasSuffix(tasks[0].TaskID, "-"+at(day, 0, 0).Format("2006-01-02")))
	require.NotNil(t, tasks[0].ScheduledTime)
	assert.True(t, tasks[0].ScheduledTime.Equal(at(day, 22, 16)))

	require.NoError(t, d.engine.ConfirmSafe(ctx))
	assert.Equal(t, string(relay.StatusCancelled), r.status(t, tasks[0].TaskID))
}

func TestE2E_RelayRestartReArmsTasks(t *testing.T) {
	path := dbPath(t)
	r := startRelay(t, path)
	day := future()
	d := newDevice(t, at(day, 21, 50), r.client(t), shortWindow())

	d.missWindow(t, day)
	id := d.taskID(t)
	r.stop()

	r2 := startRelay(t, path)
	assert.Equal(t, 1, r2.pending)
	assert.Equal(t, string(relay.StatusPending), r2.status(t, id))

	// A device that restarts against the new relay can still cancel.
	d.remote = r2.client(t)
	d.boot()
	require.NoError(t, d.engine.ConfirmSafe(ctx))
	assert.Equal(t, string(relay.StatusCancelled), r2.status(t, id))
}

func TestE2E_CancelQueuedWhileRelayDown(t *testing.T) {
	r := startRelay(t, dbPath(t))
	day := future()
	d := newDevice(t, at(day, 21, 50), r.client(t), shortWindow())

	d.missWindow(t, day)
	id := d.taskID(t)

	r.down.Store(true)
	d.set(t, at(day, 22, 11))
	require.NoError(t, d.engine.ConfirmSafe(ctx))
	assert.Equal(t, 1, d.status(t).QueuedCancels)

	r.down.Store(false)
	assert.Equal(t, string(relay.StatusPending), r.status(t, id), "cancel never reached the relay")

	d.set(t, at(day, 22, 12))
	d.engine.Tick(ctx)
	assert.Zero(t, d.status(t).QueuedCancels)
	assert.Equal(t, string(relay.StatusCancelled), r.status(t, id))
}

func TestE2E_SettingsEditCancelsRelayTask(t *testing.T) {
	r := startRelay(t, dbPath(t))
	day := future()
	d := newDevice(t, at(day, 21, 50), r.client(t), shortWindow())

	d.missWindow(t, day)
	id := d.taskID(t)

	s := shortWindow()
	s.WindowStart, s.WindowEnd = "23:00", "23:30"
	_, err := d.engine.UpdateSettings(ctx, s)
	require.NoError(t, err)

	assert.Equal(t, string(relay.StatusCancelled), r.status(t, id))
}
