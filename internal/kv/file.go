package kv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	apperrors "github.com/lcrostarosa/vigil/internal/errors"
	"github.com/lcrostarosa/vigil/internal/filelock"
)

var errClosed = apperrors.ErrStoreClosed

// lockTimeout bounds how long a write waits for another process.
const lockTimeout = 5 * time.Second

// FileStore keeps one JSON file per key in a directory. Writes go through a
// temp file and rename while holding the directory lock, so a reader never
// sees a torn value and two processes never interleave writes.
type FileStore struct {
	dir  string
	lock *filelock.FileLock
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("file store: empty path")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("file store: %w", err)
	}
	return &FileStore{dir: dir, lock: filelock.NewForDir(dir)}, nil
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.dir, key+".json")
}

func (f *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (f *FileStore) Set(ctx context.Context, key string, value []byte) error {
	ctx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	return f.lock.WithLock(ctx, func() error {
		tmp, err := os.CreateTemp(f.dir, "."+key+".*.tmp")
		if err != nil {
			return err
		}
		defer os.Remove(tmp.Name())

		if _, err := tmp.Write(value); err != nil {
			tmp.Close()
			return err
		}
		if err := tmp.Sync(); err != nil {
			tmp.Close()
			return err
		}
		if err := tmp.Close(); err != nil {
			return err
		}
		if err := os.Chmod(tmp.Name(), 0600); err != nil {
			return err
		}
		return os.Rename(tmp.Name(), f.path(key))
	})
}

func (f *FileStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	return f.lock.WithLock(ctx, func() error {
		err := os.Remove(f.path(key))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	})
}

func (f *FileStore) Close() error {
	return nil
}
