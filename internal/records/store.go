package records

import (
	"context"
	"fmt"
	"sort"

	"github.com/jonboulle/clockwork"

	"github.com/lcrostarosa/vigil/internal/kv"
	"github.com/lcrostarosa/vigil/internal/window"
)

// Key is the store key holding every record.
const Key = "day_records"

// RetentionDays is how long records are kept.
const RetentionDays = 30

// Store is CRUD over day records. All records live under one key so every
// mutation is a single read-check-write.
type Store struct {
	doc   *kv.Doc[map[string]DayRecord]
	clock clockwork.Clock
}

// NewStore creates a record store on s.
func NewStore(s kv.Store, clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{doc: kv.NewDoc[map[string]DayRecord](s, Key), clock: clock}
}

func (s *Store) load(ctx context.Context) (map[string]DayRecord, error) {
	all, _, err := s.doc.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	if all == nil {
		all = make(map[string]DayRecord)
	}
	return all, nil
}

// Get returns the record for dateKey and whether it exists.
func (s *Store) Get(ctx context.Context, dateKey string) (DayRecord, bool, error) {
	all, err := s.load(ctx)
	if err != nil {
		return DayRecord{}, false, err
	}
	r, ok := all[dateKey]
	return r, ok, nil
}

// GetToday returns the record of the current cycle of w.
func (s *Store) GetToday(ctx context.Context, w window.Window) (DayRecord, bool, error) {
	return s.Get(ctx, w.CycleKey(s.clock.Now()))
}

// Upsert writes r under its date and prunes records past retention.
// A stored check-in is never cleared and a confirmed record is never abnormal.
func (s *Store) Upsert(ctx context.Context, r DayRecord) error {
	all, err := s.load(ctx)
	if err != nil {
		return err
	}

	if prev, ok := all[r.Date]; ok && prev.HasCheckIn && !r.HasCheckIn {
		r.HasCheckIn = true
		if r.LastCheckInAt == nil {
			r.LastCheckInAt = prev.LastCheckInAt
		}
	}
	if r.UserConfirmed {
		r.IsAbnormal = false
	}
	all[r.Date] = r

	s.prune(all)
	if err := s.doc.Save(ctx, all); err != nil {
		return fmt.Errorf("save records: %w", err)
	}
	return nil
}

func (s *Store) prune(all map[string]DayRecord) {
	cutoff := window.DateKey(s.clock.Now().AddDate(0, 0, -RetentionDays))
	for key := range all {
		if key < cutoff {
			delete(all, key)
		}
	}
}

// Reset deletes the record for dateKey. Absence means monitoring for that
// cycle has not started.
func (s *Store) Reset(ctx context.Context, dateKey string) error {
	all, err := s.load(ctx)
	if err != nil {
		return err
	}
	if _, ok := all[dateKey]; !ok {
		return nil
	}
	delete(all, dateKey)
	if err := s.doc.Save(ctx, all); err != nil {
		return fmt.Errorf("save records: %w", err)
	}
	return nil
}

// List returns stored records newest first.
func (s *Store) List(ctx context.Context) ([]DayRecord, error) {
	all, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]DayRecord, 0, len(all))
	for _, r := range all {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out, nil
}

// Clear removes every record.
func (s *Store) Clear(ctx context.Context) error {
	return s.doc.Delete(ctx)
}
