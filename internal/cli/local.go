package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lcrostarosa/vigil/internal/config"
	"github.com/lcrostarosa/vigil/internal/engine"
	apperrors "github.com/lcrostarosa/vigil/internal/errors"
	"github.com/lcrostarosa/vigil/internal/escalation"
	"github.com/lcrostarosa/vigil/internal/filelock"
	"github.com/lcrostarosa/vigil/internal/kv"
	"github.com/lcrostarosa/vigil/internal/logging"
	"github.com/lcrostarosa/vigil/internal/rpc"
	"github.com/lcrostarosa/vigil/internal/scheduler"
	"github.com/lcrostarosa/vigil/internal/settings"
	"github.com/lcrostarosa/vigil/internal/window"
)

// newRemote returns the relay client, or a LogScheduler when no relay is
// configured.
func newRemote(c *config.Config) (escalation.Scheduler, error) {
	if !c.HasRelay() {
		return escalation.LogScheduler{}, nil
	}
	var retry *scheduler.RetryStrategy
	if c.Relay.MaxRetries > 0 {
		retry = &scheduler.RetryStrategy{
			MaxRetries:    c.Relay.MaxRetries,
			InitialDelay:  500 * time.Millisecond,
			MaxDelay:      5 * time.Second,
			BackoffFactor: 2.0,
		}
	}
	return escalation.NewClient(escalation.ClientConfig{
		URL:     c.Relay.URL,
		APIKey:  c.Relay.APIKey,
		Timeout: c.RelayTimeout(),
		Retry:   retry,
	})
}

// withLocalEngine runs fn against an engine opened straight on the store.
// It is used when no daemon is running; the daemon lock guards against one
// starting halfway through.
func withLocalEngine(ctx context.Context, c *config.Config, fn func(*engine.Engine) error) error {
	lock := filelock.New(c.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock state: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: the daemon holds the state lock but is not answering", apperrors.ErrDaemonUnreachable)
	}
	defer func() { _ = lock.Unlock() }()

	store, err := kv.Open(c.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = store.Close() }()

	remote, err := newRemote(c)
	if err != nil {
		return err
	}
	return fn(engine.New(store, nil, remote, engine.WithGraceSlack(c.GraceSlack())))
}

// applySettings hands s to the daemon, or edits the store directly when the
// daemon is not running.
func applySettings(ctx context.Context, c *config.Config, s settings.Settings) (window.Validation, error) {
	resp, err := rpc.NewClient(c.ListenAddr, c.APIKey, 0).UpdateSettings(ctx, s)
	if err == nil {
		return resp.Validation, nil
	}
	if !errors.Is(err, apperrors.ErrDaemonUnreachable) {
		return window.Validation{}, err
	}

	logging.Debug("daemon not running, writing settings to the store")
	var v window.Validation
	err = withLocalEngine(ctx, c, func(e *engine.Engine) error {
		var uerr error
		v, uerr = e.UpdateSettings(ctx, s)
		return uerr
	})
	return v, err
}

// currentSettings reads settings from the daemon or, failing that, the store.
func currentSettings(ctx context.Context, c *config.Config) (settings.Settings, error) {
	resp, err := rpc.NewClient(c.ListenAddr, c.APIKey, 0).Settings(ctx)
	if err == nil {
		return resp.Settings, nil
	}
	if !errors.Is(err, apperrors.ErrDaemonUnreachable) {
		return settings.Settings{}, err
	}
	var s settings.Settings
	err = withLocalEngine(ctx, c, func(e *engine.Engine) error {
		var gerr error
		s, gerr = e.Settings(ctx)
		return gerr
	})
	return s, err
}

func printValidation(v window.Validation) {
	if v.Warning != "" {
		PrintWarning("%s", v.Warning)
	}
}
