package activity

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct{ n atomic.Int32 }

func (c *counter) checkIn(context.Context) (bool, error) {
	c.n.Add(1)
	return true, nil
}

func start(t *testing.T, w *Watcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func write(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(time.Now().String()), 0o600))
}

func TestWatcher_DirectoryActivity(t *testing.T) {
	dir := t.TempDir()
	clock := clockwork.NewFakeClock()
	c := &counter{}

	w, err := NewWatcher([]string{dir}, c.checkIn, WithClock(clock))
	require.NoError(t, err)
	start(t, w)

	write(t, filepath.Join(dir, "notes.txt"))
	require.Eventually(t, func() bool { return c.n.Load() == 1 }, 5*time.Second, 10*time.Millisecond)

	// Throttled until the interval passes
	write(t, filepath.Join(dir, "notes.txt"))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), c.n.Load())

	clock.Advance(DefaultMinInterval)
	write(t, filepath.Join(dir, "other.txt"))
	require.Eventually(t, func() bool { return c.n.Load() == 2 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, w.Count())
}

func TestWatcher_FileFilter(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "journal.md")
	write(t, target)
	c := &counter{}

	w, err := NewWatcher([]string{target}, c.checkIn, WithMinInterval(0))
	require.NoError(t, err)
	start(t, w)

	write(t, filepath.Join(dir, "unrelated.md"))
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, c.n.Load())

	write(t, target)
	require.Eventually(t, func() bool { return c.n.Load() >= 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestWatcher_MissingDirectory(t *testing.T) {
	_, err := NewWatcher([]string{filepath.Join(t.TempDir(), "gone", "file")}, (&counter{}).checkIn)
	assert.Error(t, err)
}
