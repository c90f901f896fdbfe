package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ParseLevel maps a config string onto a zerolog level, defaulting to info.
func ParseLevel(raw string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// Init configures the global logger. Pretty output goes to stderr through
// the console writer, otherwise JSON lines are written.
func Init(level string, pretty bool) {
	var out io.Writer = os.Stderr
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	log.Logger = New(out, level)
}

// New builds a timestamped logger writing to out.
func New(out io.Writer, level string) zerolog.Logger {
	return zerolog.New(out).Level(ParseLevel(level)).With().Timestamp().Logger()
}
