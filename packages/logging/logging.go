// Package logging builds the slog logger used for diagnostics. Reports go
// to stdout; logs always go to the writer given here, normally stderr.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

type Options struct {
	Level   slog.Level
	Format  string
	NoColor bool
}

// ParseLevel accepts debug, info, warn or error in any case.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q (want debug, info, warn or error)", s)
	}
	return level, nil
}

// VerbosityLevel maps -v counts to a level, starting from base.
func VerbosityLevel(base slog.Level, verbose int) slog.Level {
	if verbose > 0 && base > slog.LevelDebug {
		return slog.LevelDebug
	}
	return base
}

func New(w io.Writer, opts Options) (*slog.Logger, error) {
	switch strings.ToLower(opts.Format) {
	case "", FormatText:
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      opts.Level,
			TimeFormat: time.Kitchen,
			NoColor:    opts.NoColor,
		})), nil
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: opts.Level})), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (want %s or %s)", opts.Format, FormatText, FormatJSON)
	}
}
