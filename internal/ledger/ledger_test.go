package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcrostarosa/vigil/internal/kv"
)

var windowEnd = time.Date(2026, 10, 17, 22, 10, 0, 0, time.UTC)

func newTestLedger() (*Ledger, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(windowEnd.Add(-5 * time.Minute))
	return New(kv.NewMemoryStore(), clock), clock
}

func TestArmIsIdempotent(t *testing.T) {
	ctx := context.Background()
	l, clock := newTestLedger()

	first, err := l.Arm(ctx, windowEnd, "2026-10-17")
	require.NoError(t, err)
	assert.Equal(t, StateArmed, first.State)

	require.NoError(t, setWarned(ctx, l, windowEnd))

	clock.Advance(30 * time.Second)
	again, err := l.Arm(ctx, windowEnd, "2026-10-17")
	require.NoError(t, err)
	assert.True(t, first.ArmedAt.Equal(again.ArmedAt))
	require.NotNil(t, again.WarnedAt, "re-arming with the same end keeps the stored alert")
}

func TestArmOverwritesOtherCycle(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger()

	_, err := l.Arm(ctx, windowEnd, "2026-10-17")
	require.NoError(t, err)
	require.NoError(t, l.MarkHandled(ctx))

	next := windowEnd.Add(24 * time.Hour)
	a, err := l.Arm(ctx, next, "2026-10-18")
	require.NoError(t, err)
	assert.False(t, a.Handled())
	assert.Equal(t, "2026-10-18", a.DateKey)

	got, ok, err := l.Peek(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, next.Equal(got.ScheduledAt))
}

func TestIsDue(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger()

	due, err := l.IsDue(ctx, windowEnd, "2026-10-17")
	require.NoError(t, err)
	assert.False(t, due, "no alert")

	_, err = l.Arm(ctx, windowEnd, "2026-10-17")
	require.NoError(t, err)

	due, err = l.IsDue(ctx, windowEnd.Add(-time.Second), "2026-10-17")
	require.NoError(t, err)
	assert.False(t, due, "before scheduled time")

	due, err = l.IsDue(ctx, windowEnd, "2026-10-17")
	require.NoError(t, err)
	assert.True(t, due, "at scheduled time")

	require.NoError(t, l.MarkHandled(ctx))
	due, err = l.IsDue(ctx, windowEnd.Add(time.Hour), "2026-10-17")
	require.NoError(t, err)
	assert.False(t, due, "handled")
}

func TestIsDueClearsStaleAlert(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger()

	_, err := l.Arm(ctx, windowEnd, "2026-10-16")
	require.NoError(t, err)

	due, err := l.IsDue(ctx, windowEnd, "2026-10-17")
	require.NoError(t, err)
	assert.False(t, due)

	_, ok, err := l.Peek(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "stale alert removed when observed")
}

func TestUpdateAndClear(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger()

	found, err := l.Update(ctx, func(a *PendingAlert) bool { return true })
	require.NoError(t, err)
	assert.False(t, found)

	_, err = l.Arm(ctx, windowEnd, "2026-10-17")
	require.NoError(t, err)

	deadline := windowEnd.Add(5 * time.Minute)
	found, err = l.Update(ctx, func(a *PendingAlert) bool {
		a.Deadline = &deadline
		a.TaskID = "vigil-abc-2026-10-17"
		return true
	})
	require.NoError(t, err)
	assert.True(t, found)

	got, _, err := l.Peek(ctx)
	require.NoError(t, err)
	assert.Equal(t, "vigil-abc-2026-10-17", got.TaskID)
	assert.True(t, got.PastDeadline(deadline))
	assert.False(t, got.PastDeadline(deadline.Add(-time.Second)))

	require.NoError(t, l.Clear(ctx))
	_, ok, err := l.Peek(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func setWarned(ctx context.Context, l *Ledger, at time.Time) error {
	_, err := l.Update(ctx, func(a *PendingAlert) bool {
		a.WarnedAt = &at
		return true
	})
	return err
}
