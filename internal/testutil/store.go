package testutil

import (
	"context"
	"sync"

	"github.com/lcrostarosa/vigil/internal/kv"
)

// FlakyStore wraps a kv.Store and fails or blocks chosen operations.
type FlakyStore struct {
	kv.Store

	mu       sync.Mutex
	failGet  map[string]int
	failSet  map[string]int
	holds    map[string]*hold
	setCalls map[string]int
}

type hold struct {
	entered chan struct{}
	release chan struct{}
}

var _ kv.Store = (*FlakyStore)(nil)

// NewFlakyStore wraps inner, or a fresh memory store when inner is nil.
func NewFlakyStore(inner kv.Store) *FlakyStore {
	if inner == nil {
		inner = kv.NewMemoryStore()
	}
	return &FlakyStore{
		Store:    inner,
		failGet:  make(map[string]int),
		failSet:  make(map[string]int),
		holds:    make(map[string]*hold),
		setCalls: make(map[string]int),
	}
}

// FailGet makes the next n reads of key fail with ErrInjected.
func (f *FlakyStore) FailGet(key string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failGet[key] = n
}

// FailSet makes the next n writes of key fail with ErrInjected.
func (f *FlakyStore) FailSet(key string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSet[key] = n
}

// Hold blocks the next read of key until release is called. entered is
// closed once that read is waiting.
func (f *FlakyStore) Hold(key string) (entered <-chan struct{}, release func()) {
	h := &hold{entered: make(chan struct{}), release: make(chan struct{})}
	f.mu.Lock()
	f.holds[key] = h
	f.mu.Unlock()

	var once sync.Once
	return h.entered, func() { once.Do(func() { close(h.release) }) }
}

// SetCalls returns the number of writes attempted on key.
func (f *FlakyStore) SetCalls(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.setCalls[key]
}

func (f *FlakyStore) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	h := f.holds[key]
	delete(f.holds, key)
	fail := f.failGet[key] > 0
	if fail {
		f.failGet[key]--
	}
	f.mu.Unlock()

	if h != nil {
		close(h.entered)
		select {
		case <-h.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, ErrInjected
	}
	return f.Store.Get(ctx, key)
}

func (f *FlakyStore) Set(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	f.setCalls[key]++
	fail := f.failSet[key] > 0
	if fail {
		f.failSet[key]--
	}
	f.mu.Unlock()

	if fail {
		return ErrInjected
	}
	return f.Store.Set(ctx, key, value)
}
