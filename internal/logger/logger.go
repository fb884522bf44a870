// Package logger constructs the process-wide zerolog logger.
package logger

import (
	"os"

	"github.com/rs/zerolog"
)

// New returns a logger writing JSON to stdout, or human-readable console
// output when env is "dev".
func New(env string) zerolog.Logger {
	var log zerolog.Logger
	if env == "dev" {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
	return log.Level(zerolog.InfoLevel)
}
