package infra

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLogger(t *testing.T) {
	cases := []struct {
		env      string
		level    zerolog.Level
		toStderr bool
		wantJSON bool
	}{
		{env: "production", level: zerolog.InfoLevel, wantJSON: true},
		{env: "development", level: zerolog.DebugLevel},
		{env: "cli", level: zerolog.InfoLevel, toStderr: true},
	}
	for _, tc := range cases {
		t.Run(tc.env, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			logger := newLogger(tc.env, "worker", &stdout, &stderr)
			if logger.GetLevel() != tc.level {
				t.Fatalf("level = %s, want %s", logger.GetLevel(), tc.level)
			}
			logger.Info().Str("job_id", "job-1").Msg("executor: finished")

			written, silent := stdout.String(), stderr.String()
			if tc.toStderr {
				written, silent = silent, written
			}
			if silent != "" || !strings.Contains(written, "job-1") {
				t.Fatalf("stdout=%q stderr=%q", stdout.String(), stderr.String())
			}
			if tc.wantJSON && !strings.Contains(written, `"service":"worker"`) {
				t.Fatalf("json line = %q", written)
			}
		})
	}
}
