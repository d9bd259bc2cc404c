package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New returns logger writing to w. Level is taken from LOG_LEVEL, then fallback, then info.
// LOG_FORMAT=text switches from JSON to the text handler.
func New(w io.Writer, fallback string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: Level(fallback)}
	var h slog.Handler
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h)
}

// Level resolves the effective level: LOG_LEVEL wins over fallback.
func Level(fallback string) slog.Level {
	level := slog.LevelInfo
	for _, v := range []string{fallback, os.Getenv("LOG_LEVEL")} {
		if v == "" {
			continue
		}
		var parsed slog.Level
		if err := parsed.UnmarshalText([]byte(v)); err == nil {
			level = parsed
		}
	}
	return level
}

// Discard returns logger that drops everything; handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
