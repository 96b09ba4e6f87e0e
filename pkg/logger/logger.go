// Package logger is the process-wide logger. It keeps a printf-style API
// over a zerolog backend so call sites stay one-liners.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// Level is a cdt log level. Notice sits between warning and info and is the
// default.
type Level int

const (
	LevelError Level = iota
	LevelWarning
	LevelNotice
	LevelInfo
	LevelDebug
)

var levelNames = []string{"error", "warning", "notice", "info", "debug"}

func (l Level) String() string {
	if l < 0 || int(l) >= len(levelNames) {
		return "unknown"
	}
	return levelNames[l]
}

// ParseLevel accepts error, warning, notice, info or debug.
func ParseLevel(s string) (Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range levelNames {
		if s == name {
			return Level(i), nil
		}
	}
	return LevelNotice, fmt.Errorf("unknown log level %q (want one of %s)", s, strings.Join(levelNames, ", "))
}

// zerolog has no notice level, so every cdt level shifts down by one.
func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelError:
		return zerolog.ErrorLevel
	case LevelWarning:
		return zerolog.WarnLevel
	case LevelNotice:
		return zerolog.InfoLevel
	case LevelInfo:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}

// Target selects where log lines go.
type Target int

const (
	TargetStderr Target = iota
	TargetStdout
	TargetSyslog
)

var targetNames = []string{"stderr", "stdout", "syslog"}

func (t Target) String() string {
	if t < 0 || int(t) >= len(targetNames) {
		return "unknown"
	}
	return targetNames[t]
}

// ParseTarget accepts stderr, stdout or syslog.
func ParseTarget(s string) (Target, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range targetNames {
		if s == name {
			return Target(i), nil
		}
	}
	return TargetStderr, fmt.Errorf("unknown log target %q (want one of %s)", s, strings.Join(targetNames, ", "))
}

// Options configures Init.
type Options struct {
	Level  Level
	Target Target

	// NoColor forces plain console output even on a terminal.
	NoColor bool

	// Out overrides the stdout/stderr writer. Tests use it.
	Out io.Writer
}

var (
	globalLogger = zerolog.Nop()
	closer       io.Closer
	runID        string
	mu           sync.Mutex
)

// Init installs the global logger. It may be called again to reconfigure.
func Init(opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	closeLocked()

	var w io.Writer
	switch opts.Target {
	case TargetSyslog:
		sw, c, err := newSyslogWriter()
		if err != nil {
			return fmt.Errorf("failed to open syslog: %w", err)
		}
		w = sw
		closer = c
	case TargetStdout, TargetStderr:
		out := opts.Out
		if out == nil {
			out = os.Stderr
			if opts.Target == TargetStdout {
				out = os.Stdout
			}
		}
		w = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			NoColor:    opts.NoColor || !isTerminal(out),
		}
	default:
		return fmt.Errorf("unknown log target %d", opts.Target)
	}

	// Debug maps to zerolog's trace level, which the global floor hides.
	zerolog.SetGlobalLevel(zerolog.TraceLevel)

	runID = uuid.NewString()[:8]
	globalLogger = zerolog.New(w).
		Level(opts.Level.zerolog()).
		With().
		Timestamp().
		Str("run", runID).
		Logger()

	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Close releases the syslog connection, if any, and silences logging.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	closeLocked()
	globalLogger = zerolog.Nop()
}

func closeLocked() {
	if closer != nil {
		closer.Close()
		closer = nil
	}
}

// L returns the structured logger for call sites that attach fields.
func L() zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return globalLogger
}

// RunID identifies this process's log lines.
func RunID() string {
	mu.Lock()
	defer mu.Unlock()
	return runID
}

// Enabled reports whether messages at level l are written.
func Enabled(l Level) bool {
	mu.Lock()
	defer mu.Unlock()
	return globalLogger.GetLevel() <= l.zerolog()
}

func logf(l Level, format string, v ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	globalLogger.WithLevel(l.zerolog()).Msgf(format, v...)
}

// Error logs an error message.
func Error(format string, v ...interface{}) {
	logf(LevelError, format, v...)
}

// Warn logs a warning message.
func Warn(format string, v ...interface{}) {
	logf(LevelWarning, format, v...)
}

// Notice logs a notice message.
func Notice(format string, v ...interface{}) {
	logf(LevelNotice, format, v...)
}

// Info logs an info message.
func Info(format string, v ...interface{}) {
	logf(LevelInfo, format, v...)
}

// Debug logs a debug message.
func Debug(format string, v ...interface{}) {
	logf(LevelDebug, format, v...)
}
