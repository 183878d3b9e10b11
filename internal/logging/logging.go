package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds the process-wide JSON logger. Unparseable levels fall back to
// info rather than failing startup.
func New(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)
	return log
}
