// Package logger builds the process logger: zerolog to the console and,
// when configured, to a size-rotated file.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger so packages share one type.
type Logger struct {
	zerolog.Logger
	closer io.Closer
}

// Options configures New.
type Options struct {
	Level      string
	File       string // empty disables the file sink
	MaxSizeMB  int64
	MaxBackups int
	Console    io.Writer // defaults to os.Stderr
}

// ParseLevel maps a config string to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// New creates a logger writing to the console and optionally a rotating file.
// If the file cannot be opened the logger falls back to the console only.
func New(opts Options) *Logger {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	var out io.Writer = zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339}

	l := &Logger{}
	var fileErr error
	if opts.File != "" {
		rf, err := OpenRotatingFile(opts.File, opts.MaxSizeMB, opts.MaxBackups)
		if err != nil {
			fileErr = err
		} else {
			out = zerolog.MultiLevelWriter(out, rf)
			l.closer = rf
		}
	}

	l.Logger = zerolog.New(out).Level(ParseLevel(opts.Level)).With().Timestamp().Logger()
	if fileErr != nil {
		l.Warn().Err(fileErr).Str("file", opts.File).Msg("log file unavailable, console only")
	}
	return l
}

// NewWithOutput writes JSON lines to w. Used by tests.
func NewWithOutput(level string, w io.Writer) *Logger {
	return &Logger{Logger: zerolog.New(w).Level(ParseLevel(level)).With().Timestamp().Logger()}
}

// NewSilent discards everything.
func NewSilent() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// Close releases the file sink, if any.
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
