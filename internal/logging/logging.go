// Package logging builds the structured loggers used across falconctl and
// scrubs credentials from anything that may reach a log.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"
)

// Options selects the logger's level and output format.
type Options struct {
	Level  string // trace, debug, info, warn, error; default info
	Format string // text (default) or json
	Writer io.Writer
}

// New returns a pterm logger configured from opts.
func New(opts Options) (*pterm.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	l := pterm.DefaultLogger.WithLevel(level)
	if opts.Writer != nil {
		l = l.WithWriter(opts.Writer)
	}
	switch strings.ToLower(opts.Format) {
	case "", "text":
	case "json":
		l = l.WithFormatter(pterm.LogFormatterJSON)
	default:
		return nil, fmt.Errorf("unknown log format %q (want text or json)", opts.Format)
	}
	return l, nil
}

// ParseLevel maps a level name to a pterm level.
func ParseLevel(s string) (pterm.LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return pterm.LogLevelInfo, nil
	case "trace":
		return pterm.LogLevelTrace, nil
	case "debug":
		return pterm.LogLevelDebug, nil
	case "warn", "warning":
		return pterm.LogLevelWarn, nil
	case "error":
		return pterm.LogLevelError, nil
	case "off", "disabled":
		return pterm.LogLevelDisabled, nil
	}
	return pterm.LogLevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Discard returns a logger that drops everything.
func Discard() *pterm.Logger {
	return pterm.DefaultLogger.WithLevel(pterm.LogLevelDisabled).WithWriter(io.Discard)
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *pterm.Logger) *pterm.Logger {
	if l == nil {
		return Discard()
	}
	return l
}
