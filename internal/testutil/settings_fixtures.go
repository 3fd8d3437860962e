package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/lcrostarosa/vigil/internal/engine"
	"github.com/lcrostarosa/vigil/internal/kv"
	"github.com/lcrostarosa/vigil/internal/settings"
)

// SettingsFixtureBuilder constructs monitoring settings
type SettingsFixtureBuilder struct {
	s settings.Settings
}

// NewSettingsFixture starts from an overnight window with a 5 minute grace
// period and an email contact
func NewSettingsFixture() *SettingsFixtureBuilder {
	s := settings.Default()
	s.Owner = "Sam"
	s.Contact = settings.Contact{Kind: settings.ContactEmail, Destination: "alex@example.com", Name: "Alex"}
	return &SettingsFixtureBuilder{s: s}
}

// WithWindow sets the window bounds
func (b *SettingsFixtureBuilder) WithWindow(start, end string) *SettingsFixtureBuilder {
	b.s.WindowStart, b.s.WindowEnd = start, end
	return b
}

// WithDelay sets the grace period
func (b *SettingsFixtureBuilder) WithDelay(d time.Duration) *SettingsFixtureBuilder {
	b.s.EscalationDelaySeconds = int(d / time.Second)
	return b
}

// WithContact sets the contact destination
func (b *SettingsFixtureBuilder) WithContact(dest string) *SettingsFixtureBuilder {
	b.s.Contact = settings.ParseContact(dest)
	return b
}

// Build returns the settings
func (b *SettingsFixtureBuilder) Build() settings.Settings {
	return b.s
}

// EngineFixture is an engine wired to doubles
type EngineFixture struct {
	Engine    *engine.Engine
	Store     kv.Store
	Clock     *clockwork.FakeClock
	Trigger   *FakeTrigger
	Escalator *FakeEscalator
	Settings  settings.Settings
	Events    *EventLog
}

// EngineFixtureBuilder constructs engine fixtures
type EngineFixtureBuilder struct {
	t        *testing.T
	now      time.Time
	store    kv.Store
	settings *settings.Settings
	opts     []engine.Option
}

// NewEngineFixture starts building an engine fixture
func NewEngineFixture(t *testing.T) *EngineFixtureBuilder {
	return &EngineFixtureBuilder{
		t:   t,
		now: At(2026, time.March, 17, 12, 0),
	}
}

// At sets the starting time of the fake clock
func (b *EngineFixtureBuilder) At(now time.Time) *EngineFixtureBuilder {
	b.now = now
	return b
}

// WithStore reuses a store, simulating a process restart
func (b *EngineFixtureBuilder) WithStore(s kv.Store) *EngineFixtureBuilder {
	b.store = s
	return b
}

// WithSettings saves s through the engine before returning
func (b *EngineFixtureBuilder) WithSettings(s settings.Settings) *EngineFixtureBuilder {
	b.settings = &s
	return b
}

// WithOptions adds engine options
func (b *EngineFixtureBuilder) WithOptions(opts ...engine.Option) *EngineFixtureBuilder {
	b.opts = append(b.opts, opts...)
	return b
}

// Build wires the engine
func (b *EngineFixtureBuilder) Build() *EngineFixture {
	b.t.Helper()

	var store kv.Store = kv.NewMemoryStore()
	if b.store != nil {
		store = b.store
	}
	f := &EngineFixture{
		Store:     store,
		Clock:     clockwork.NewFakeClockAt(b.now),
		Trigger:   NewFakeTrigger(),
		Escalator: NewFakeEscalator(),
		Events:    &EventLog{},
	}
	opts := append([]engine.Option{
		engine.WithClock(f.Clock),
		engine.WithCallbacks(f.Events.Callbacks()),
	}, b.opts...)
	f.Engine = engine.New(store, f.Trigger, f.Escalator, opts...)

	if b.settings != nil {
		_, err := f.Engine.UpdateSettings(context.Background(), *b.settings)
		require.NoError(b.t, err)
		f.Settings = *b.settings
	}
	return f
}

// Restart builds a fresh engine on the same store and clock, with new
// doubles for the process-local trigger.
func (f *EngineFixture) Restart(t *testing.T) *EngineFixture {
	t.Helper()
	g := &EngineFixture{
		Store:     f.Store,
		Clock:     f.Clock,
		Trigger:   NewFakeTrigger(),
		Escalator: f.Escalator,
		Settings:  f.Settings,
		Events:    &EventLog{},
	}
	g.Engine = engine.New(f.Store, g.Trigger, g.Escalator,
		engine.WithClock(f.Clock),
		engine.WithCallbacks(g.Events.Callbacks()))
	return g
}

// Set moves the fake clock to now. It fails the test for moves backwards.
func (f *EngineFixture) Set(t *testing.T, now time.Time) {
	t.Helper()
	d := now.Sub(f.Clock.Now())
	require.GreaterOrEqual(t, d, time.Duration(0), "clock cannot move backwards")
	f.Clock.Advance(d)
}
