package logger

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	log  *logrus.Logger
	once sync.Once
)

// New builds a JSON logger at the given level, falling back to info.
func New(level string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
	})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return l
}

// Init sets up the process logger only once
func Init(level string) *logrus.Logger {
	once.Do(func() {
		log = New(level)
	})
	return log
}

// GetLogger returns the process logger, initialising it from LOG_LEVEL if needed
func GetLogger() *logrus.Logger {
	return Init(os.Getenv("LOG_LEVEL"))
}
