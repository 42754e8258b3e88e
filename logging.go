package lavakit

import "github.com/sirupsen/logrus"

// Logger is the structured-logging surface lavakit writes through. The
// logrus types do not satisfy it directly (WithField/WithFields return a
// Logger); NewLogger wraps a *logrus.Entry into one. Callers inject one on
// Manager/Node construction; when nil,
// a default entry off logrus' standard logger is used.
type Logger interface {
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
}

type logrusLogger struct {
	entry *logrus.Entry
}

// NewLogger wraps a *logrus.Entry as a Logger. A nil entry falls back to
// logrus' standard logger.
func NewLogger(entry *logrus.Entry) Logger {
	if entry == nil {
		entry = logrus.NewEntry(logrus.StandardLogger())
	}
	return logrusLogger{entry: entry}
}

func defaultLogger() Logger {
	return NewLogger(nil)
}

func (l logrusLogger) WithField(key string, value interface{}) Logger {
	return logrusLogger{entry: l.entry.WithField(key, value)}
}

func (l logrusLogger) WithFields(fields map[string]interface{}) Logger {
	return logrusLogger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

func (l logrusLogger) Debug(args ...interface{}) { l.entry.Debug(args...) }
func (l logrusLogger) Info(args ...interface{})  { l.entry.Info(args...) }
func (l logrusLogger) Warn(args ...interface{})  { l.entry.Warn(args...) }
func (l logrusLogger) Error(args ...interface{}) { l.entry.Error(args...) }
