package settings

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/lcrostarosa/vigil/internal/errors"
)

func validSettings() Settings {
	s := Default()
	s.Contact = ParseContact("alice@example.com")
	return s
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr error
		warn    bool
	}{
		{"overnight", func(s *Settings) {}, nil, false},
		{"short daytime window is accepted", func(s *Settings) { s.WindowStart, s.WindowEnd = "22:00", "22:10" }, nil, true},
		{"malformed start", func(s *Settings) { s.WindowStart = "9:00" }, apperrors.ErrInvalidTimeOfDay, false},
		{"malformed end", func(s *Settings) { s.WindowEnd = "08:61" }, apperrors.ErrInvalidTimeOfDay, false},
		{"zero length", func(s *Settings) { s.WindowEnd = s.WindowStart }, apperrors.ErrEmptyWindow, false},
		{"zero delay", func(s *Settings) { s.EscalationDelaySeconds = 0 }, apperrors.ErrInvalidDelay, false},
		{"no contact", func(s *Settings) { s.Contact = Contact{} }, apperrors.ErrNoContact, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			tt.mutate(&s)

			v, err := s.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, v.Valid)
			assert.Equal(t, tt.warn, v.Warning != "")
		})
	}
}

func TestNilSafeAccessors(t *testing.T) {
	var s *Settings
	assert.False(t, s.IsConfigured())
	assert.Equal(t, 300*time.Second, s.EscalationDelay())

	_, err := s.Window()
	assert.ErrorIs(t, err, apperrors.ErrNotConfigured)

	cfg := validSettings()
	cfg.EscalationDelaySeconds = 30
	assert.Equal(t, 30*time.Second, cfg.EscalationDelay())

	w, err := cfg.Window()
	require.NoError(t, err)
	assert.True(t, w.CrossesMidnight())
}

func TestParseContact(t *testing.T) {
	assert.Equal(t, ContactEmail, ParseContact("bob@example.org").Kind)
	assert.Equal(t, ContactSMS, ParseContact("+15551234567").Kind)
	assert.Equal(t, ContactWebhook, ParseContact("https://hooks.example.org/x").Kind)
}

func TestContactValidate(t *testing.T) {
	assert.NoError(t, ParseContact("+1 555-123-4567").Validate())
	assert.Error(t, ParseContact("12345").Validate())
	assert.Error(t, ParseContact("bob@localhost").Validate())
	assert.Error(t, Contact{Kind: "pager", Destination: "x"}.Validate())
	assert.Error(t, Contact{Kind: ContactWebhook, Destination: "notaurl"}.Validate())
}

func TestContactString(t *testing.T) {
	c := ParseContact("alice@example.com")
	c.Name = "Alice"
	assert.Equal(t, "Alice <email:al***@example.com>", c.String())
}
