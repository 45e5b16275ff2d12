// Package logging sets up the slog logger shared by the command line tools.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

const timeFormat = "06-01-02 15:04:05.000"

// ParseLevel parses a level name: debug, info, warn (or warning), error.
// An empty name selects info.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level: %q", name)
	}
}

// New returns a tint-backed logger writing to w. Colour is only used when w
// is a terminal.
func New(w io.Writer, level slog.Leveler) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		AddSource:  level.Level() <= slog.LevelDebug,
		Level:      level,
		TimeFormat: timeFormat,
		NoColor:    !isTerminal(w),
	}))
}

// Setup creates a stderr logger at the named level and installs it as the
// slog default.
func Setup(levelName string) (*slog.Logger, error) {
	level, err := ParseLevel(levelName)
	if err != nil {
		return nil, err
	}
	logger := New(os.Stderr, level)
	slog.SetDefault(logger)
	return logger, nil
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// Since is a convenience attribute for elapsed time.
func Since(start time.Time) slog.Attr {
	return slog.Duration("elapsed", time.Since(start))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
