// Package applog centralizes structured logging setup. Grounded on the
// logrus.WithFields(...).Info/Warn/Error style used throughout
// opd-ai-toxcore's net and friend packages, adapted to this program's
// endpoint/page/component vocabulary.
package applog

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Init configures the package-wide logrus logger: JSON output to stderr
// (so stdout stays free for a subcommand's own data output), level from
// levelName ("debug", "info", "warn", "error"; empty defaults to info).
func Init(levelName string) {
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

// Component returns a logger pre-tagged with "component", mirroring the
// per-package field convention in the toxcore net/friend packages.
func Component(name string) *logrus.Entry {
	return logrus.WithField("component", name)
}
