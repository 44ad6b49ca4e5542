// Package bmlog provides the structured logging convention shared by
// the daemon and its components: a LoggerFactory-based scoped logger,
// nil-safe when no factory is configured (grounded on
// pkg/discovery.Advertiser's LoggerFactory/LeveledLogger field pair).
package bmlog

import "github.com/pion/logging"

// Logger wraps a logging.LeveledLogger so callers don't need a nil
// check at every call site when no LoggerFactory was configured.
type Logger struct {
	leveled logging.LeveledLogger
}

// New returns a scoped Logger for scope, or a no-op Logger if factory
// is nil.
func New(factory logging.LoggerFactory, scope string) Logger {
	if factory == nil {
		return Logger{}
	}
	return Logger{leveled: factory.NewLogger(scope)}
}

func (l Logger) Debugf(format string, args ...interface{}) {
	if l.leveled != nil {
		l.leveled.Debugf(format, args...)
	}
}

func (l Logger) Tracef(format string, args ...interface{}) {
	if l.leveled != nil {
		l.leveled.Tracef(format, args...)
	}
}

func (l Logger) Infof(format string, args ...interface{}) {
	if l.leveled != nil {
		l.leveled.Infof(format, args...)
	}
}

func (l Logger) Warnf(format string, args ...interface{}) {
	if l.leveled != nil {
		l.leveled.Warnf(format, args...)
	}
}

func (l Logger) Errorf(format string, args ...interface{}) {
	if l.leveled != nil {
		l.leveled.Errorf(format, args...)
	}
}
