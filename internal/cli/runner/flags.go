package runner

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// FlagSet reads a command's flags and collects lookup errors, so a command
// can read everything it needs and check Err once.
type FlagSet struct {
	flags *pflag.FlagSet
	errs  []error
}

// Flags wraps the flags of cmd.
func Flags(cmd *cobra.Command) *FlagSet {
	return &FlagSet{flags: cmd.Flags()}
}

func get[T any](f *FlagSet, name string, fn func(string) (T, error)) T {
	val, err := fn(name)
	if err != nil {
		f.errs = append(f.errs, fmt.Errorf("flag %s: %w", name, err))
	}
	return val
}

func (f *FlagSet) String(name string) string {
	return get(f, name, f.flags.GetString)
}

func (f *FlagSet) StringSlice(name string) []string {
	return get(f, name, f.flags.GetStringSlice)
}

func (f *FlagSet) Int(name string) int {
	return get(f, name, f.flags.GetInt)
}

func (f *FlagSet) Bool(name string) bool {
	return get(f, name, f.flags.GetBool)
}

func (f *FlagSet) Duration(name string) time.Duration {
	return get(f, name, f.flags.GetDuration)
}

// Window reads a "HH:MM-HH:MM" flag as start and end. An unset flag yields
// empty strings.
func (f *FlagSet) Window(name string) (start, end string) {
	val := f.String(name)
	if val == "" {
		return "", ""
	}
	start, end, ok := strings.Cut(val, "-")
	if !ok {
		f.errs = append(f.errs, fmt.Errorf("flag %s: want HH:MM-HH:MM, got %q", name, val))
		return "", ""
	}
	return strings.TrimSpace(start), strings.TrimSpace(end)
}

// Changed reports whether the flag was set on the command line.
func (f *FlagSet) Changed(name string) bool {
	return f.flags.Changed(name)
}

// Err returns the collected errors joined, or nil.
func (f *FlagSet) Err() error {
	return errors.Join(f.errs...)
}
