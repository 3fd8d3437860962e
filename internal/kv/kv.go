// Package kv is the durable key/value store behind the engine's state.
// Values are JSON documents; writes are last-write-wins with no transactions,
// so every caller does read-check-write against a single key.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	apperrors "github.com/lcrostarosa/vigil/internal/errors"
)

// ErrNotFound is returned by Get for an absent key.
var ErrNotFound = apperrors.ErrNotFound

// Store is a durable key to JSON mapping.
type Store interface {
	// Get returns the raw value or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set replaces the value under key.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting an absent key succeeds.
	Delete(ctx context.Context, key string) error
	Close() error
}

// Driver names a Store implementation
type Driver string

const (
	DriverFile   Driver = "file"
	DriverDiskv  Driver = "diskv"
	DriverSQLite Driver = "sqlite"
	DriverMemory Driver = "memory"
)

// Options selects and locates a store.
type Options struct {
	Driver Driver `json:"driver"`
	// Path is a directory for file and diskv, a database file for sqlite.
	Path string `json:"path"`
}

// DefaultOptions returns a file store inside dir.
func DefaultOptions(dir string) Options {
	return Options{Driver: DriverFile, Path: filepath.Join(dir, "state")}
}

// Open creates the store described by opts.
func Open(opts Options) (Store, error) {
	switch opts.Driver {
	case DriverFile, "":
		return NewFileStore(opts.Path)
	case DriverDiskv:
		return NewDiskvStore(opts.Path)
	case DriverSQLite:
		return NewSQLiteStore(opts.Path)
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%q: %w", opts.Driver, apperrors.ErrUnknownStoreDriver)
	}
}

// GetJSON decodes the value under key into v.
func GetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, data)
}

// Doc is a typed view of a single key.
type Doc[T any] struct {
	store Store
	key   string
}

// NewDoc returns a typed accessor for key.
func NewDoc[T any](s Store, key string) *Doc[T] {
	return &Doc[T]{store: s, key: key}
}

// Key returns the underlying key.
func (d *Doc[T]) Key() string {
	return d.key
}

// Load returns the value and whether it exists.
func (d *Doc[T]) Load(ctx context.Context) (T, bool, error) {
	var v T
	err := GetJSON(ctx, d.store, d.key, &v)
	if errors.Is(err, ErrNotFound) {
		var zero T
		return zero, false, nil
	}
	if err != nil {
		var zero T
		return zero, false, err
	}
	return v, true, nil
}

// Save replaces the value.
func (d *Doc[T]) Save(ctx context.Context, v T) error {
	return SetJSON(ctx, d.store, d.key, v)
}

// Delete removes the value.
func (d *Doc[T]) Delete(ctx context.Context) error {
	return d.store.Delete(ctx, d.key)
}
