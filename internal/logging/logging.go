// Package logging configures the single process-wide logrus logger, built
// once at boot and passed down explicitly rather than mutated as a package
// global, so every component stays independently testable.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a logrus.Logger writing text-formatted, full-timestamp lines
// to stderr at the given level. An unrecognized level falls back to Info.
func New(level string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)

	return log
}
