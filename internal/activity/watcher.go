// Package activity turns file system writes into check-ins. A user who is
// saving files is awake, so configured paths double as a passive probe.
package activity

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/lcrostarosa/vigil/internal/logging"
)

// DefaultMinInterval is how often activity may count as a check-in
const DefaultMinInterval = time.Minute

// CheckInFunc records a check-in. It reports whether the check-in counted.
type CheckInFunc func(ctx context.Context) (bool, error)

// Watcher monitors paths and reports activity through a CheckInFunc. The
// first event counts at once; later events within MinInterval are dropped.
type Watcher struct {
	checkIn     CheckInFunc
	watcher     *fsnotify.Watcher
	clock       clockwork.Clock
	minInterval time.Duration
	log         *zap.Logger

	// files maps a watched directory to the file names of interest in it.
	// A nil set means every entry counts.
	files map[string]map[string]bool

	mu   sync.Mutex
	last time.Time
	hits int
}

// Option configures a Watcher
type Option func(*Watcher)

// WithClock sets the clock used for throttling
func WithClock(c clockwork.Clock) Option {
	return func(w *Watcher) { w.clock = c }
}

// WithMinInterval sets the minimum gap between counted events
func WithMinInterval(d time.Duration) Option {
	return func(w *Watcher) { w.minInterval = d }
}

// NewWatcher watches paths. A file is watched through its directory, which
// survives editors that replace the file on save.
func NewWatcher(paths []string, checkIn CheckInFunc, opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w := &Watcher{
		checkIn:     checkIn,
		watcher:     fw,
		clock:       clockwork.NewRealClock(),
		minInterval: DefaultMinInterval,
		log:         logging.Named("activity"),
		files:       make(map[string]map[string]bool),
	}
	for _, o := range opts {
		o(w)
	}

	for _, p := range paths {
		if err := w.add(p); err != nil {
			fw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	dir, name := abs, ""
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		dir, name = filepath.Dir(abs), filepath.Base(abs)
	}

	set, seen := w.files[dir]
	switch {
	case name == "":
		w.files[dir] = nil
	case !seen:
		w.files[dir] = map[string]bool{name: true}
	case set != nil:
		set[name] = true
	}
	if seen {
		return nil
	}
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	return nil
}

// Paths returns the watched directories
func (w *Watcher) Paths() []string {
	return w.watcher.WatchList()
}

// Count returns how many events were counted as check-ins
func (w *Watcher) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.hits
}

// Run processes events until ctx is cancelled, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	w.log.Info("watching for activity", zap.Strings("dirs", w.Paths()))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.observe(ctx, event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
		return false
	}
	set, ok := w.files[filepath.Dir(event.Name)]
	if !ok {
		return false
	}
	return set == nil || set[filepath.Base(event.Name)]
}

func (w *Watcher) observe(ctx context.Context, name string) {
	now := w.clock.Now()
	w.mu.Lock()
	if !w.last.IsZero() && now.Sub(w.last) < w.minInterval {
		w.mu.Unlock()
		return
	}
	w.last = now
	w.hits++
	w.mu.Unlock()

	counted, err := w.checkIn(ctx)
	if err != nil {
		w.log.Warn("activity check-in failed", zap.String("file", name), zap.Error(err))
		return
	}
	w.log.Debug("activity", zap.String("file", name), zap.Bool("counted", counted))
}
