// Package diarylog configures the process-wide zerolog logger used across
// the pipeline. It mirrors the host's convention of a single configured
// logger initialized from settings rather than per-package ad hoc setup.
package diarylog

import (
	"os"

	"github.com/rs/zerolog"
)

// New builds a zerolog.Logger writing JSON to stdout at the given level.
// An unrecognized level falls back to info, matching config/settings.py's
// permissive LOG_LEVEL handling.
func New(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
}
