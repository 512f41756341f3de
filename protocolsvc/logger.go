package protocolsvc

import "github.com/sirupsen/logrus"

// Logger is the minimal logging surface System depends on, satisfied by
// *logrus.Logger or *logrus.Entry. Callers who don't want logging can pass
// NopLogger{}.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// NopLogger discards everything. Useful in tests that don't care about log
// output.
type NopLogger struct{}

func (NopLogger) Infof(string, ...interface{})  {}
func (NopLogger) Errorf(string, ...interface{}) {}
func (NopLogger) Warnf(string, ...interface{})  {}

// NewLogrusLogger wraps a *logrus.Logger (or any *logrus.Entry, via
// logrus.NewEntry) so it satisfies Logger.
func NewLogrusLogger(l *logrus.Logger) Logger {
	return logrus.NewEntry(l)
}
