package cron

import (
	"fmt"
	"strings"
	"time"
)

// LogLevel controls how much of robfig/cron's own logging reaches the Logger.
type LogLevel int

const (
	LogLevelSilent LogLevel = iota
	LogLevelError
	LogLevelInfo
	LogLevelDebug
)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLocation evaluates schedules in loc; nil keeps the local zone.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithLogger routes scheduler logs and recovered job panics to logger.
func WithLogger(logger Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

func WithLogLevel(level LogLevel) Option {
	return func(s *Scheduler) {
		s.logLevel = level
	}
}

// WithErrorHandler receives every failed run, named after its report.
func WithErrorHandler(handler func(error)) Option {
	return func(s *Scheduler) {
		if handler != nil {
			s.onError = handler
		}
	}
}

// loggerAdapter feeds robfig/cron's key/value logging into Logger.
type loggerAdapter struct {
	logger Logger
	level  LogLevel
}

func (l *loggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	if l.level >= LogLevelInfo {
		l.logger.Info("%s", formatKeysAndValues(msg, keysAndValues))
	}
}

func (l *loggerAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	if l.level >= LogLevelError {
		line := formatKeysAndValues(msg, keysAndValues)
		if err != nil {
			line = fmt.Sprintf("%s: %v", line, err)
		}
		l.logger.Error("%s", line)
	}
}

func formatKeysAndValues(msg string, keysAndValues []interface{}) string {
	var sb strings.Builder
	sb.WriteString(msg)
	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 < len(keysAndValues) {
			fmt.Fprintf(&sb, " %v=%v", keysAndValues[i], keysAndValues[i+1])
		} else {
			fmt.Fprintf(&sb, " %v", keysAndValues[i])
		}
	}
	return sb.String()
}
