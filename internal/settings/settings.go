// Package settings holds the monitoring settings singleton owned by the engine.
package settings

import (
	"fmt"
	"time"

	apperrors "github.com/lcrostarosa/vigil/internal/errors"
	"github.com/lcrostarosa/vigil/internal/window"
)

// DefaultEscalationDelaySeconds is the grace period after the local warning.
const DefaultEscalationDelaySeconds = 300

// Settings defines the monitored window and who is told when it is missed
type Settings struct {
	// Owner identifies the monitored person in the escalation message.
	Owner                  string    `json:"owner,omitempty"`
	WindowStart            string    `json:"window_start"`
	WindowEnd              string    `json:"window_end"`
	EscalationDelaySeconds int       `json:"escalation_delay_seconds"`
	Contact                Contact   `json:"contact"`
	UpdatedAt              time.Time `json:"updated_at,omitempty"`
}

// Default returns an overnight window with the default grace period and no contact.
func Default() Settings {
	return Settings{
		WindowStart:            "23:00",
		WindowEnd:              "08:00",
		EscalationDelaySeconds: DefaultEscalationDelaySeconds,
	}
}

// IsConfigured returns true if settings have been saved (nil-safe)
func (s *Settings) IsConfigured() bool {
	return s != nil && s.WindowStart != "" && s.WindowEnd != ""
}

// Window parses the configured window (nil-safe)
func (s *Settings) Window() (window.Window, error) {
	if !s.IsConfigured() {
		return window.Window{}, apperrors.ErrNotConfigured
	}
	return window.New(s.WindowStart, s.WindowEnd)
}

// EscalationDelay returns the grace period as a duration (nil-safe)
func (s *Settings) EscalationDelay() time.Duration {
	if s == nil || s.EscalationDelaySeconds <= 0 {
		return DefaultEscalationDelaySeconds * time.Second
	}
	return time.Duration(s.EscalationDelaySeconds) * time.Second
}

// Validate checks the settings structurally. Short and daytime-only windows
// are accepted; the returned Validation carries advice for them.
func (s Settings) Validate() (window.Validation, error) {
	w, err := window.New(s.WindowStart, s.WindowEnd)
	if err != nil {
		return window.Validation{}, err
	}
	if w.Start == w.End {
		return window.Validation{}, fmt.Errorf("%s: %w", w, apperrors.ErrEmptyWindow)
	}
	if s.EscalationDelaySeconds <= 0 {
		return window.Validation{}, apperrors.ErrInvalidDelay
	}
	if err := s.Contact.Validate(); err != nil {
		return window.Validation{}, err
	}
	return w.Validate(), nil
}
