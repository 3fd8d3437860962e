package errors

import (
	"regexp"
	"strings"
)

// Patterns that should be redacted from messages leaving the process
var sensitivePatterns = []*regexp.Regexp{
	// File paths (Unix and Windows)
	regexp.MustCompile(`(?i)(/home/[^\s:]+|/Users/[^\s:]+|/root/[^\s:]+|/etc/[^\s:]+|/var/[^\s:]+)`),
	regexp.MustCompile(`(?i)([A-Z]:\\[^\s:]+)`),

	// API keys and bearer tokens
	regexp.MustCompile(`(?i)(api[_-]?key|token|bearer|secret)[=:]\s*["']?[^\s"'&]+`),

	// Email addresses
	regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),

	// Phone numbers in E.164 or loose national form
	regexp.MustCompile(`\+?\d[\d\s().-]{7,}\d`),
}

// SanitizeError removes contact destinations, paths and keys from an error
// message. Internal logging at debug level may use the original error.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error())
}

// SanitizeString removes sensitive information from a string
func SanitizeString(s string) string {
	result := s
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllString(result, "[REDACTED]")
	}
	return result
}

// MaskDestination keeps just enough of a contact destination to recognise it
// in logs: "alice@example.com" becomes "al***@example.com" and
// "+15551234567" becomes "+1********67".
func MaskDestination(dest string) string {
	dest = strings.TrimSpace(dest)
	if dest == "" {
		return ""
	}
	if at := strings.LastIndex(dest, "@"); at > 0 {
		local := dest[:at]
		keep := 2
		if len(local) <= keep {
			keep = 1
		}
		return local[:keep] + "***" + dest[at:]
	}
	if len(dest) <= 4 {
		return strings.Repeat("*", len(dest))
	}
	return dest[:2] + strings.Repeat("*", len(dest)-4) + dest[len(dest)-2:]
}

// SafeError wraps an error with a sanitized message for client-facing use
// while preserving the original error for internal logging
type SafeError struct {
	// Original is the full error (for logging)
	Original error
	// Message is the sanitized message (for clients)
	Message string
}

func (e *SafeError) Error() string {
	return e.Message
}

func (e *SafeError) Unwrap() error {
	return e.Original
}

// NewSafeError creates a client-safe error from an internal error
func NewSafeError(err error) *SafeError {
	if err == nil {
		return nil
	}
	return &SafeError{
		Original: err,
		Message:  SanitizeString(err.Error()),
	}
}
