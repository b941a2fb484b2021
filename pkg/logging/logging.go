package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

type Config struct {
	Level  string
	Debug  bool
	JSON   bool
	Output io.Writer
}

// Logger wraps a logrus entry so components can carry their own fields.
type Logger struct {
	entry *logrus.Entry
}

// New creates a logger. Debug overrides Level; an unparseable level falls back to info.
func New(cfg Config) *Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	if cfg.Output != nil {
		l.SetOutput(cfg.Output)
	}
	if cfg.JSON {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	}

	lvl, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	if cfg.Debug {
		lvl = logrus.DebugLevel
	}
	l.SetLevel(lvl)
	return &Logger{entry: logrus.NewEntry(l)}
}

// NewTestLog returns a debug logger that discards its output.
func NewTestLog() *Logger {
	return New(Config{Debug: true, Output: io.Discard})
}

// Debugf prints messages only at debug level
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.entry.Warnf(format, args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}

func (l *Logger) WithField(k string, v interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(k, v)}
}

func (l *Logger) IsDebug() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.DebugLevel)
}
