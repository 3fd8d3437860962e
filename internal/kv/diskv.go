package kv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/peterbourgon/diskv/v3"
)

// DiskvStore is a cached disk store. Keys containing "/" are laid out as
// nested directories.
type DiskvStore struct {
	d *diskv.Diskv
}

// NewDiskvStore opens a diskv tree rooted at dir.
func NewDiskvStore(dir string) (*DiskvStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("diskv store: empty path")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("diskv store: %w", err)
	}
	d := diskv.New(diskv.Options{
		BasePath:          dir,
		AdvancedTransform: keyToPath,
		InverseTransform:  pathToKey,
		CacheSizeMax:      1024 * 1024, // 1MB
		TempDir:           dir + ".tmp",
		FilePerm:          0600,
		PathPerm:          0700,
	})
	return &DiskvStore{d: d}, nil
}

func keyToPath(key string) *diskv.PathKey {
	parts := strings.Split(key, "/")
	return &diskv.PathKey{
		Path:     parts[:len(parts)-1],
		FileName: parts[len(parts)-1] + ".json",
	}
}

func pathToKey(pk *diskv.PathKey) string {
	name := strings.TrimSuffix(pk.FileName, ".json")
	return strings.Join(append(append([]string{}, pk.Path...), name), "/")
}

func (s *DiskvStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.d.Read(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

func (s *DiskvStore) Set(ctx context.Context, key string, value []byte) error {
	return s.d.Write(key, value)
}

func (s *DiskvStore) Delete(ctx context.Context, key string) error {
	if !s.d.Has(key) {
		return nil
	}
	err := s.d.Erase(key)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Keys lists stored keys until ctx is done.
func (s *DiskvStore) Keys(ctx context.Context) []string {
	var keys []string
	for k := range s.d.Keys(ctx.Done()) {
		keys = append(keys, k)
	}
	return keys
}

func (s *DiskvStore) Close() error {
	return nil
}
