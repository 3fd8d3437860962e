package settings

import (
	"fmt"
	"net/url"
	"strings"

	apperrors "github.com/lcrostarosa/vigil/internal/errors"
)

// ContactKind is the delivery channel for the escalation message
type ContactKind string

const (
	ContactEmail   ContactKind = "email"
	ContactSMS     ContactKind = "sms"
	ContactWebhook ContactKind = "webhook"
)

// Contact is the third party told when a window is missed
type Contact struct {
	Kind        ContactKind `json:"kind"`
	Destination string      `json:"destination"`
	Name        string      `json:"name,omitempty"`
}

// ParseContact infers the channel from the destination's shape.
func ParseContact(dest string) Contact {
	dest = strings.TrimSpace(dest)
	switch {
	case strings.HasPrefix(dest, "http://"), strings.HasPrefix(dest, "https://"):
		return Contact{Kind: ContactWebhook, Destination: dest}
	case strings.Contains(dest, "@"):
		return Contact{Kind: ContactEmail, Destination: dest}
	default:
		return Contact{Kind: ContactSMS, Destination: dest}
	}
}

// IsSet returns true if a destination is present (nil-safe)
func (c *Contact) IsSet() bool {
	return c != nil && c.Destination != ""
}

// Validate checks the destination matches its kind.
func (c Contact) Validate() error {
	if c.Destination == "" {
		return apperrors.ErrNoContact
	}
	switch c.Kind {
	case ContactEmail:
		at := strings.LastIndex(c.Destination, "@")
		if at < 1 || !strings.Contains(c.Destination[at:], ".") {
			return fmt.Errorf("%w: not an email address", apperrors.ErrInvalidContact)
		}
	case ContactSMS:
		digits := 0
		for i, r := range c.Destination {
			switch {
			case r >= '0' && r <= '9':
				digits++
			case r == '+' && i == 0, r == ' ', r == '-':
			default:
				return fmt.Errorf("%w: not a phone number", apperrors.ErrInvalidContact)
			}
		}
		if digits < 6 {
			return fmt.Errorf("%w: not a phone number", apperrors.ErrInvalidContact)
		}
	case ContactWebhook:
		u, err := url.Parse(c.Destination)
		if err != nil || u.Host == "" {
			return fmt.Errorf("%w: not a webhook url", apperrors.ErrInvalidContact)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", apperrors.ErrInvalidContact, c.Kind)
	}
	return nil
}

// String renders the contact for display, with the destination masked.
func (c Contact) String() string {
	masked := apperrors.MaskDestination(c.Destination)
	if c.Name != "" {
		return fmt.Sprintf("%s <%s:%s>", c.Name, c.Kind, masked)
	}
	return fmt.Sprintf("%s:%s", c.Kind, masked)
}
