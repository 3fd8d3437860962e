package records

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcrostarosa/vigil/internal/kv"
	"github.com/lcrostarosa/vigil/internal/window"
)

func newTestStore(t *testing.T, now time.Time) (*Store, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(now)
	return NewStore(kv.NewMemoryStore(), clock), clock
}

func TestGetTodayAbsentIsDistinct(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, time.Date(2026, 10, 17, 23, 30, 0, 0, time.Local))

	_, ok, err := s.GetToday(ctx, window.MustNew("23:00", "08:00"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpsertAndGetToday(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 18, 2, 0, 0, 0, time.Local)
	s, _ := newTestStore(t, now)
	w := window.MustNew("23:00", "08:00")

	rec := New(w.CycleKey(now), w, now)
	require.NoError(t, s.Upsert(ctx, rec))

	got, ok, err := s.GetToday(ctx, w)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2026-10-17", got.Date)
	assert.Equal(t, "23:00", got.WindowStart)
	assert.Equal(t, "08:00", got.WindowEnd)
	assert.Equal(t, StatusMonitoring, got.Status())
}

func TestUpsertNeverClearsCheckIn(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 17, 23, 30, 0, 0, time.Local)
	s, _ := newTestStore(t, now)
	w := window.MustNew("23:00", "08:00")

	rec := New("2026-10-17", w, now)
	rec.MarkCheckIn(now)
	require.NoError(t, s.Upsert(ctx, rec))

	stale := New("2026-10-17", w, now)
	require.NoError(t, s.Upsert(ctx, stale))

	got, _, err := s.Get(ctx, "2026-10-17")
	require.NoError(t, err)
	assert.True(t, got.HasCheckIn)
	require.NotNil(t, got.LastCheckInAt)
	assert.True(t, now.Equal(*got.LastCheckInAt))
}

func TestUpsertConfirmedIsNeverAbnormal(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 17, 23, 30, 0, 0, time.Local)
	s, _ := newTestStore(t, now)

	rec := New("2026-10-17", window.MustNew("23:00", "08:00"), now)
	rec.IsAbnormal = true
	rec.UserConfirmed = true
	require.NoError(t, s.Upsert(ctx, rec))

	got, _, err := s.Get(ctx, "2026-10-17")
	require.NoError(t, err)
	assert.False(t, got.IsAbnormal)
	assert.Equal(t, StatusConfirmed, got.Status())
}

func TestUpsertPrunesOldRecords(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.Local)
	s, clock := newTestStore(t, now)
	w := window.MustNew("23:00", "08:00")

	require.NoError(t, s.Upsert(ctx, New("2026-09-16", w, now)))
	require.NoError(t, s.Upsert(ctx, New("2026-09-17", w, now)))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1, "a record 31 days old is pruned on write")
	assert.Equal(t, "2026-09-17", list[0].Date)

	clock.Advance(24 * time.Hour)
	require.NoError(t, s.Upsert(ctx, New("2026-10-18", w, clock.Now())))

	list, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "2026-10-18", list[0].Date)
}

func TestResetAndClear(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 17, 23, 30, 0, 0, time.Local)
	s, _ := newTestStore(t, now)
	w := window.MustNew("23:00", "08:00")

	require.NoError(t, s.Upsert(ctx, New("2026-10-16", w, now)))
	require.NoError(t, s.Upsert(ctx, New("2026-10-17", w, now)))

	require.NoError(t, s.Reset(ctx, "2026-10-17"))
	require.NoError(t, s.Reset(ctx, "2026-10-17"))
	_, ok, err := s.Get(ctx, "2026-10-17")
	require.NoError(t, err)
	assert.False(t, ok)

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.Clear(ctx))
	list, err = s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestListNewestFirst(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 17, 23, 30, 0, 0, time.Local)
	s, _ := newTestStore(t, now)
	w := window.MustNew("23:00", "08:00")

	for _, d := range []string{"2026-10-15", "2026-10-17", "2026-10-16"} {
		require.NoError(t, s.Upsert(ctx, New(d, w, now)))
	}

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"2026-10-17", "2026-10-16", "2026-10-15"},
		[]string{list[0].Date, list[1].Date, list[2].Date})
}

func TestMarkAbnormalIsGuarded(t *testing.T) {
	now := time.Date(2026, 10, 17, 23, 30, 0, 0, time.Local)
	rec := New("2026-10-17", window.MustNew("23:00", "08:00"), now)

	assert.True(t, rec.MarkAbnormal())
	assert.False(t, rec.MarkAbnormal(), "second call is a no-op")

	rec.Confirm()
	assert.False(t, rec.IsAbnormal)
	assert.False(t, rec.MarkAbnormal(), "confirmed record is not re-flagged")

	checked := New("2026-10-17", window.MustNew("23:00", "08:00"), now)
	checked.MarkCheckIn(now)
	assert.False(t, checked.MarkAbnormal())
}

func TestWindowEndAt(t *testing.T) {
	rec := New("2026-10-17", window.MustNew("23:00", "08:00"), time.Now())
	end, err := rec.WindowEndAt(time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC), end)
}
