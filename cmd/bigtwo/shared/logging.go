// Package shared holds the glue the bigtwo subcommands have in common:
// logger construction and signal-driven shutdown.
package shared

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the process logger. Console output is for humans;
// structured switches to JSON lines with RFC3339Nano timestamps for
// log shippers. Debug widens the level.
func NewLogger(debug, structured bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}
	if structured {
		zerolog.TimeFieldFormat = time.RFC3339Nano
		out = os.Stderr
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Logger()
}
