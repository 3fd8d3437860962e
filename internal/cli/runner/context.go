package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/lcrostarosa/vigil/internal/config"
	"github.com/lcrostarosa/vigil/internal/engine"
	"github.com/lcrostarosa/vigil/internal/records"
	"github.com/lcrostarosa/vigil/internal/rpc"
	"github.com/lcrostarosa/vigil/internal/settings"
)

// Daemon is the control plane of a running vigil daemon. *rpc.Client
// implements it.
type Daemon interface {
	Health(ctx context.Context) error
	Status(ctx context.Context) (engine.Status, error)
	CheckIn(ctx context.Context) (bool, error)
	ConfirmSafe(ctx context.Context) error
	Dismiss(ctx context.Context) error
	Resume(ctx context.Context) (rpc.PendingResponse, error)
	CheckPending(ctx context.Context) (rpc.PendingResponse, error)
	Settings(ctx context.Context) (rpc.SettingsResponse, error)
	UpdateSettings(ctx context.Context, s settings.Settings) (rpc.SettingsResponse, error)
	Reset(ctx context.Context, req rpc.ResetRequest) error
	History(ctx context.Context, limit int) ([]records.DayRecord, error)
}

// DaemonFactory builds a Daemon for a loaded config
type DaemonFactory func(cfg *config.Config) Daemon

// CommandContext provides shared dependencies to command handlers.
// Dependencies are lazily initialized on first access to avoid unnecessary work.
type CommandContext struct {
	// Ctx is the command's context (cancelled on SIGINT)
	Ctx context.Context

	// Config is the loaded configuration (may be nil if not initialized)
	Config *config.Config

	// ConfigErr is the error from loading config, if any
	ConfigErr error

	factory    DaemonFactory
	daemon     Daemon
	daemonOnce sync.Once
}

// NewContext creates a new CommandContext with the given config.
func NewContext(ctx context.Context, cfg *config.Config, cfgErr error, factory DaemonFactory) *CommandContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &CommandContext{
		Ctx:       ctx,
		Config:    cfg,
		ConfigErr: cfgErr,
		factory:   factory,
	}
}

// Daemon returns a lazily-created control plane client.
// Returns nil if config is not loaded.
func (c *CommandContext) Daemon() Daemon {
	c.daemonOnce.Do(func() {
		if c.Config != nil && c.factory != nil {
			c.daemon = c.factory(c.Config)
		}
	})
	return c.daemon
}

// SaveConfig saves the configuration with standardized error wrapping.
func (c *CommandContext) SaveConfig() error {
	if c.Config == nil {
		return ErrNotInitialized
	}
	if err := c.Config.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// HasConfig returns true if config is loaded successfully.
func (c *CommandContext) HasConfig() bool {
	return c.Config != nil && c.ConfigErr == nil
}

// HasRelay returns true if a relay URL is configured.
func (c *CommandContext) HasRelay() bool {
	return c.Config != nil && c.Config.HasRelay()
}
