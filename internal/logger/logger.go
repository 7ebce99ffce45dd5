package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var zlog = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Init configures the global structured logger. Development environments get a
// human-readable console writer, everything else gets JSON lines.
func Init(development bool) {
	var w io.Writer = os.Stdout
	if development {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	zerolog.TimeFieldFormat = time.RFC3339
	zlog = zerolog.New(w).With().
		Timestamp().
		Str("service", "folio").
		Logger()
}

// SetOutput redirects the global logger, mainly for tests.
func SetOutput(w io.Writer) {
	zlog = zerolog.New(w).With().Timestamp().Logger()
}

// Get returns the global logger.
func Get() *zerolog.Logger {
	return &zlog
}

// Component returns a child logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return zlog.With().Str("component", name).Logger()
}

// WithRequestID returns a logger carrying the request id.
func WithRequestID(requestID string) zerolog.Logger {
	return zlog.With().Str("request_id", requestID).Logger()
}
