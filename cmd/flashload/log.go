package main

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/moffa90/go-stmflash/link"
)

const (
	formatConsole = "console"
	formatJSON    = "json"
)

// newLogger builds the command line logger. Console output is the default;
// json writes one object per line.
func newLogger(w io.Writer, format string, debug bool) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	switch format {
	case formatConsole, "":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	case formatJSON:
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q: use %s or %s", format, formatConsole, formatJSON)
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}

// zerologAdapter exposes a zerolog logger as a link.Logger. Key-value pairs
// become event fields.
type zerologAdapter struct {
	log zerolog.Logger
}

var _ link.Logger = zerologAdapter{}

func (l zerologAdapter) Debug(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l zerologAdapter) Info(msg string, keysAndValues ...interface{}) {
	l.log.Info().Fields(keysAndValues).Msg(msg)
}

func (l zerologAdapter) Error(msg string, keysAndValues ...interface{}) {
	l.log.Error().Fields(keysAndValues).Msg(msg)
}
