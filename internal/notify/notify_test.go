package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcrostarosa/vigil/internal/scheduler"
)

type recordingSink struct {
	mu  sync.Mutex
	got []Notification
}

func (r *recordingSink) Notify(ctx context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func newTrigger(t *testing.T, sink Sink) *Trigger {
	t.Helper()
	sched, err := scheduler.New()
	require.NoError(t, err)
	sched.Start()
	t.Cleanup(func() { _ = sched.Stop() })
	return NewTrigger(sched, sink, nil)
}

func TestTriggerFires(t *testing.T) {
	sink := &recordingSink{}
	trig := newTrigger(t, sink)

	id, err := trig.Schedule(context.Background(), "Safety check", "Are you OK?", 50*time.Millisecond)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.Eventually(t, func() bool { return sink.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	sink.mu.Lock()
	n := sink.got[0]
	sink.mu.Unlock()
	assert.Equal(t, "Safety check", n.Title)
	assert.Equal(t, "Are you OK?", n.Body)
	assert.False(t, n.FiredAt.Before(n.DueAt.Add(-time.Millisecond)))
}

func TestTriggerCancel(t *testing.T) {
	sink := &recordingSink{}
	trig := newTrigger(t, sink)

	id, err := trig.Schedule(context.Background(), "t", "b", 200*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, trig.Cancel(context.Background(), id))
	require.NoError(t, trig.Cancel(context.Background(), ""))

	time.Sleep(350 * time.Millisecond)
	assert.Equal(t, 0, sink.count())
}

func TestMultiSinkJoinsErrors(t *testing.T) {
	rec := &recordingSink{}
	failing := SinkFunc(func(ctx context.Context, n Notification) error { return errors.New("no display") })

	err := MultiSink{rec, nil, failing}.Notify(context.Background(), Notification{Title: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no display")
	assert.Equal(t, 1, rec.count())
}

func TestCommandSink(t *testing.T) {
	assert.NoError(t, CommandSink{}.Notify(context.Background(), Notification{}))
	assert.NoError(t, CommandSink{Command: "true"}.Notify(context.Background(), Notification{Title: "a", Body: "b"}))
	assert.Error(t, CommandSink{Command: "false"}.Notify(context.Background(), Notification{Title: "a", Body: "b"}))
}

func TestLogSink(t *testing.T) {
	assert.NoError(t, LogSink{}.Notify(context.Background(), Notification{Title: "Safety check"}))
}
