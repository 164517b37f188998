package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// New returns the JSON logger shared by every component.  LOG_LEVEL
// accepts any logrus level name and defaults to info.
func New() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	log.SetLevel(logrus.InfoLevel)
	if lvl, err := logrus.ParseLevel(strings.TrimSpace(os.Getenv("LOG_LEVEL"))); err == nil {
		log.SetLevel(lvl)
	}
	return log
}
