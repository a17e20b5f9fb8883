// Package logging configures structured logging for log/slog.
//
// Usage:
//
//	logging.Setup()                                 // from LOG_LEVEL / LOG_FORMAT env
//	logging.SetupWith(slog.LevelDebug, logging.JSON) // explicit override
//
// Environment variables:
//
//	LOG_LEVEL:  debug, info, warn, error (default: info)
//	LOG_FORMAT: text (colored, default) or json
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Format selects the handler used for log output.
type Format string

const (
	Text Format = "text"
	JSON Format = "json"
)

// Setup configures logging from the LOG_LEVEL and LOG_FORMAT env vars.
func Setup() {
	SetupWith(ParseLevel(os.Getenv("LOG_LEVEL")), ParseFormat(os.Getenv("LOG_FORMAT")))
}

// SetupWith installs a default logger at the given level and format.
func SetupWith(level slog.Level, format Format) {
	slog.SetDefault(slog.New(NewHandler(os.Stderr, level, format)))
}

// NewHandler builds the handler for format writing to w.
func NewHandler(w io.Writer, level slog.Level, format Format) slog.Handler {
	if format == JSON {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}
	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		AddSource:  true,
	})
}

// ParseLevel maps a level name to a slog level, defaulting to INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseFormat maps a format name to a Format, defaulting to Text.
func ParseFormat(s string) Format {
	if strings.EqualFold(s, string(JSON)) {
		return JSON
	}
	return Text
}
