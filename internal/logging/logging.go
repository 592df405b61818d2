// Package logging builds the zerolog loggers used by the gateway and the
// terminal client.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New returns a timestamped logger. Development output is human readable;
// everything else is JSON. An unknown level falls back to info.
func New(level string, development bool, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}
	if development {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(out).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

// SetGlobal makes logger the package-level zerolog logger, which packages
// without an injected logger write through.
func SetGlobal(logger zerolog.Logger) {
	log.Logger = logger
}
