// Package filelock provides advisory file locks that serialize writers across
// processes: the store drivers take one around every write and the daemon holds
// one for its whole lifetime so a single engine owns the state.
package filelock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// ErrLocked is returned by TryLock callers that require the lock immediately.
var ErrLocked = errors.New("lock held by another process")

// FileLock represents a file-based lock
type FileLock struct {
	path string
	file *os.File
}

// New creates a new file lock for the given path
// The lock file will be created at path + ".lock"
func New(path string) *FileLock {
	return &FileLock{
		path: path + ".lock",
	}
}

// NewForDir creates a new file lock for operations on a directory
// The lock file will be created at dir/.lock
func NewForDir(dir string) *FileLock {
	return &FileLock{
		path: filepath.Join(dir, ".lock"),
	}
}

// Path returns the lock file location.
func (fl *FileLock) Path() string {
	return fl.path
}

func (fl *FileLock) open() (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(fl.path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	f, err := os.OpenFile(fl.path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}
	return f, nil
}

// TryLock attempts to acquire an exclusive lock without blocking.
// Returns true if the lock was acquired, false if another holder has it.
// The holder's pid is written into the lock file.
func (fl *FileLock) TryLock() (bool, error) {
	f, err := fl.open()
	if err != nil {
		return false, err
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return false, nil
		}
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}

	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())), 0)
	}
	fl.file = f
	return true, nil
}

// Lock blocks until the lock is acquired or ctx is done.
func (fl *FileLock) Lock(ctx context.Context) error {
	retry := 5 * time.Millisecond
	for {
		acquired, err := fl.TryLock()
		if err != nil {
			return err
		}
		if acquired {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for lock on %s: %w", fl.path, ctx.Err())
		case <-time.After(retry):
		}
		if retry < 100*time.Millisecond {
			retry *= 2
		}
	}
}

// Unlock releases the lock
func (fl *FileLock) Unlock() error {
	if fl.file == nil {
		return nil
	}

	err := syscall.Flock(int(fl.file.Fd()), syscall.LOCK_UN)
	closeErr := fl.file.Close()
	fl.file = nil

	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close lock file: %w", closeErr)
	}

	return nil
}

// WithLock executes fn while holding the lock
func (fl *FileLock) WithLock(ctx context.Context, fn func() error) error {
	if err := fl.Lock(ctx); err != nil {
		return err
	}
	defer fl.Unlock()
	return fn()
}

// Holder returns the pid recorded by the last process to take the lock.
func (fl *FileLock) Holder() (int, error) {
	data, err := os.ReadFile(fl.path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}
