// Package logging is the engine's structured-logging backend: a thin
// zerolog wrapper that internal/metadata's Recorder writes through.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New builds a zerolog.Logger writing to w (os.Stdout in production, a
// bytes.Buffer in tests) at the given level ("debug", "info", "warn",
// "error"; unrecognized values fall back to "info").
func New(w io.Writer, level string) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}

	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		parsed = zerolog.InfoLevel
	}

	return zerolog.New(w).Level(parsed).With().Timestamp().Logger()
}

// Nop returns a logger that discards everything, for call sites that have
// no injected logger (e.g. package-level defaults and tests).
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
