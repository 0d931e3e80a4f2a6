package infra

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the logger for one genstudio process. The api and worker
// services log JSON at info level so executor lines can be filtered by
// job_id and execution_id. APP_ENV=development switches to a debug console
// on stdout; the operator CLIs pass "cli" and get a console on stderr so
// their stdout stays machine readable.
func NewLogger(appEnv, service string) zerolog.Logger {
	return newLogger(appEnv, service, os.Stdout, os.Stderr)
}

func newLogger(appEnv, service string, stdout, stderr io.Writer) zerolog.Logger {
	var out io.Writer = stdout
	level := zerolog.InfoLevel
	switch appEnv {
	case "development":
		out = zerolog.ConsoleWriter{Out: stdout, TimeFormat: time.RFC3339}
		level = zerolog.DebugLevel
	case "cli":
		out = zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.Kitchen}
	}
	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", service).
		Logger()
}
