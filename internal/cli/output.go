package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
)

var (
	bold    = color.New(color.Bold)
	faint   = color.New(color.Faint)
	green   = color.New(color.FgGreen)
	yellow  = color.New(color.FgYellow)
	red     = color.New(color.FgRed, color.Bold)
	heading = color.New(color.Bold, color.Underline)

	// out is where command output goes; tests swap it
	out io.Writer = color.Output
)

// PrintError prints an error message to stderr
func PrintError(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(color.Error, "%s "+format+"\n", append([]interface{}{red.Sprint("Error:")}, args...)...)
}

// PrintSuccess prints a success message
func PrintSuccess(format string, args ...interface{}) {
	_, _ = fmt.Fprintln(out, green.Sprintf("✅ "+format, args...))
}

// PrintWarning prints a warning message
func PrintWarning(format string, args ...interface{}) {
	_, _ = fmt.Fprintln(out, yellow.Sprintf("⚠️  "+format, args...))
}

// PrintInfo prints an info message
func PrintInfo(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(out, format+"\n", args...)
}

// PrintHeader prints a section header
func PrintHeader(title string) {
	_, _ = fmt.Fprintln(out, heading.Sprint(title))
}

// PrintDivider prints a visual divider
func PrintDivider() {
	_, _ = fmt.Fprintln(out, faint.Sprint(strings.Repeat("-", 70)))
}

// newTable returns a two column key/value table
func newTable() *uitable.Table {
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.MaxColWidth = 80
	tbl.Wrap = true
	return tbl
}

func printTable(tbl *uitable.Table) {
	_, _ = fmt.Fprintln(out, tbl)
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return faint.Sprint("-")
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatSeconds(s int) string {
	return (time.Duration(s) * time.Second).String()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
