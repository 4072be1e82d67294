// Package logging provides structured logging for csvrows using zerolog.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Log formats accepted by ParseFormat.
const (
	FormatAuto  = "auto"
	FormatJSON  = "json"
	FormatHuman = "human"
)

var (
	logger *zerolog.Logger
	pretty atomic.Bool
)

func init() {
	// JSON on stderr at info level until InitWriter is called.
	l := zerolog.New(os.Stderr).With().Timestamp().Logger()
	logger = &l
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// InitWriter configures the global logger to write to w.
// If debug is true, sets log level to Debug.
// If human is true, uses a human-friendly console writer.
func InitWriter(w io.Writer, debug bool, human bool) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	pretty.Store(human)

	var output zerolog.LevelWriter
	if human {
		output = zerolog.LevelWriterAdapter{Writer: zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
			NoColor:    !isTerminal(w),
		}}
	} else {
		output = zerolog.LevelWriterAdapter{Writer: w}
	}

	l := zerolog.New(output).With().Timestamp().Logger()
	logger = &l
}

// ParseFormat resolves a --log-format value to whether human output should
// be used on w. "auto" picks human output when w is a terminal.
func ParseFormat(format string, w io.Writer) (human bool, err error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatAuto, "":
		return isTerminal(w), nil
	case FormatJSON:
		return false, nil
	case FormatHuman, "text", "console":
		return true, nil
	default:
		return false, fmt.Errorf("unknown log format %q (want auto, json or human)", format)
	}
}

// IsPrettyMode reports whether the logger was configured for humans. Events
// add "*_h" companion fields in this mode.
func IsPrettyMode() bool {
	return pretty.Load()
}

// WithPhase returns a logger with the phase field set.
func WithPhase(phase string) zerolog.Logger {
	return logger.With().Str("phase", phase).Logger()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
