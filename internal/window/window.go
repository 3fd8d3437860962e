// Package window computes membership and boundaries of the daily monitoring
// window. A window is left-closed and right-open and may cross midnight.
// All arithmetic happens in the location of the time passed in.
package window

import (
	"fmt"
	"time"

	apperrors "github.com/lcrostarosa/vigil/internal/errors"
)

const minutesPerDay = 24 * 60

// DateLayout is the layout of day keys.
const DateLayout = "2006-01-02"

// TimeOfDay is a wall-clock time with minute precision.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses a strict 24-hour "HH:MM" value.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	if len(s) != 5 || s[2] != ':' {
		return TimeOfDay{}, fmt.Errorf("%q: %w", s, apperrors.ErrInvalidTimeOfDay)
	}
	h, okH := twoDigits(s[0:2])
	m, okM := twoDigits(s[3:5])
	if !okH || !okM || h > 23 || m > 59 {
		return TimeOfDay{}, fmt.Errorf("%q: %w", s, apperrors.ErrInvalidTimeOfDay)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

func twoDigits(s string) (int, bool) {
	if s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' {
		return 0, false
	}
	return int(s[0]-'0')*10 + int(s[1]-'0'), true
}

// Minutes returns minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// On returns the instant at this time of day on the calendar day of d,
// offset by the given number of days.
func (t TimeOfDay) On(d time.Time, days int) time.Time {
	y, mo, day := d.Date()
	return time.Date(y, mo, day+days, t.Hour, t.Minute, 0, 0, d.Location())
}

// MarshalText implements encoding.TextMarshaler.
func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TimeOfDay) UnmarshalText(b []byte) error {
	parsed, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Window is the configured daily interval [Start, End).
type Window struct {
	Start TimeOfDay
	End   TimeOfDay
}

// New parses a window from two "HH:MM" values.
func New(start, end string) (Window, error) {
	s, err := ParseTimeOfDay(start)
	if err != nil {
		return Window{}, fmt.Errorf("window start: %w", err)
	}
	e, err := ParseTimeOfDay(end)
	if err != nil {
		return Window{}, fmt.Errorf("window end: %w", err)
	}
	return Window{Start: s, End: e}, nil
}

// MustNew is New for literals in tests and defaults.
func MustNew(start, end string) Window {
	w, err := New(start, end)
	if err != nil {
		panic(err)
	}
	return w
}

func (w Window) String() string {
	return w.Start.String() + "-" + w.End.String()
}

// CrossesMidnight reports whether the window spans local midnight.
func (w Window) CrossesMidnight() bool {
	return w.Start.Minutes() > w.End.Minutes()
}

// Contains reports whether now falls inside the window. The start minute is
// inside, the end minute is not.
func (w Window) Contains(now time.Time) bool {
	cur := now.Hour()*60 + now.Minute()
	start, end := w.Start.Minutes(), w.End.Minutes()
	if start > end {
		return cur >= start || cur < end
	}
	return cur >= start && cur < end
}

// NextEnd returns the first window end strictly after now.
func (w Window) NextEnd(now time.Time) time.Time {
	end := w.End.On(now, 0)
	if !end.After(now) {
		end = w.End.On(now, 1)
	}
	return end
}

// CycleKey returns the day key of the window cycle now belongs to: the
// calendar date on which the most recent window start at or before now fell.
// A 23:00-08:00 window observed at 07:00 on the 18th belongs to the 17th.
func (w Window) CycleKey(now time.Time) string {
	start := w.Start.On(now, 0)
	if start.After(now) {
		start = w.Start.On(now, -1)
	}
	return DateKey(start)
}

// StartFor returns the window start instant of the cycle keyed by dateKey.
func (w Window) StartFor(dateKey string, loc *time.Location) (time.Time, error) {
	day, err := ParseDateKey(dateKey, loc)
	if err != nil {
		return time.Time{}, err
	}
	return w.Start.On(day, 0), nil
}

// EndFor returns the window end instant of the cycle keyed by dateKey.
func (w Window) EndFor(dateKey string, loc *time.Location) (time.Time, error) {
	day, err := ParseDateKey(dateKey, loc)
	if err != nil {
		return time.Time{}, err
	}
	if w.End.Minutes() <= w.Start.Minutes() {
		return w.End.On(day, 1), nil
	}
	return w.End.On(day, 0), nil
}

// Duration returns the length of the window.
func (w Window) Duration() time.Duration {
	mins := w.End.Minutes() - w.Start.Minutes()
	if mins <= 0 {
		mins += minutesPerDay
	}
	return time.Duration(mins) * time.Minute
}

// DateKey formats t as a local "YYYY-MM-DD" day key.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDateKey parses a day key at midnight in loc.
func ParseDateKey(key string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateLayout, key, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date key %q: %w", key, err)
	}
	return t, nil
}

// IsWithinWindow parses start and end and reports whether now is inside.
func IsWithinWindow(now time.Time, start, end string) (bool, error) {
	w, err := New(start, end)
	if err != nil {
		return false, err
	}
	return w.Contains(now), nil
}

// NextWindowEnd parses start and end and returns the next end after now.
func NextWindowEnd(now time.Time, start, end string) (time.Time, error) {
	w, err := New(start, end)
	if err != nil {
		return time.Time{}, err
	}
	return w.NextEnd(now), nil
}
