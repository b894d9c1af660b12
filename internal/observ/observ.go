// Package observ provides the structured logging and run correlation
// cmd/atlas uses for its own diagnostics; neither engine takes a logger.
// There is no teacher analogue for
// structured logging in kristofer-smog (it logs via bare fmt.Printf), so
// this is adopted from the rest of the example pack's zerolog/uuid usage
// rather than grounded on the teacher itself.
package observ

import (
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Logger wraps a zerolog.Logger tagged with a run ID, so every log line
// from one execution (interpreter run, VM run, or parity check) can be
// correlated across a multi-line CLI invocation.
type Logger struct {
	zerolog.Logger
	RunID string
}

// New builds a Logger writing to w at level, stamping every entry with a
// fresh run ID and timestamp. Pass os.Stderr for CLI use; tests typically
// pass io.Discard or a strings.Builder to inspect output.
func New(w io.Writer, level zerolog.Level) Logger {
	runID := uuid.NewString()
	base := zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("run_id", runID).
		Logger()
	return Logger{Logger: base, RunID: runID}
}

// Default builds a Logger at info level writing to stderr. cmd/atlas does
// not use it: it calls New with the level from runtimeconfig or --log-level.
func Default() Logger {
	return New(os.Stderr, zerolog.InfoLevel)
}

// ParseLevel adapts a CLI/config verbosity name ("debug", "info", "warn",
// "error", "disabled", or any other zerolog level name) to a
// zerolog.Level, defaulting to InfoLevel on an
// unrecognized name rather than failing the whole run over a logging
// preference.
func ParseLevel(name string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(name)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// WithStageTimer logs stage's duration at debug level once done is
// called. cmd/atlas's run command uses it around the "run" stage (parse,
// compile and execution together).
func (l Logger) WithStageTimer(stage string) (done func()) {
	start := time.Now()
	return func() {
		l.Debug().Str("stage", stage).Dur("elapsed", time.Since(start)).Msg("stage complete")
	}
}
