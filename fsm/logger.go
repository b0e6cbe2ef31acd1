package fsm

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	orderfsm "github.com/goliatone/go-orderfsm"
)

// Field keys attached to engine log lines.
const (
	FieldMachineID = "machine_id"
	FieldState     = "state"
	FieldEvent     = "event"
	FieldKind      = "kind"
)

// Logger is the engine logging contract. The binary adapts go-logger to it.
type Logger interface {
	Trace(msg string, args ...any)
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Fatal(msg string, args ...any)
	WithContext(ctx context.Context) Logger
}

// FieldsLogger is implemented by loggers that carry structured fields.
type FieldsLogger interface {
	WithFields(map[string]any) Logger
}

// LogFields are structured values for one line. Machine, state, event and kind
// render first, in that order; anything else follows sorted by key.
type LogFields map[string]any

var leadingFields = []string{FieldMachineID, FieldState, FieldEvent, FieldKind}

// sendFields are the fields attached while a machine handles an event.
func sendFields(state orderfsm.OrderState, event orderfsm.OrderEvent) LogFields {
	return LogFields{FieldState: state.String(), FieldEvent: event.String()}
}

func (f LogFields) with(other map[string]any) LogFields {
	if len(f) == 0 && len(other) == 0 {
		return nil
	}
	out := make(LogFields, len(f)+len(other))
	for k, v := range f {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

func (f LogFields) String() string {
	if len(f) == 0 {
		return ""
	}
	parts := make([]string, 0, len(f))
	for _, k := range leadingFields {
		if v, ok := f[k]; ok && v != "" {
			parts = append(parts, fmt.Sprintf("%s=%v", k, v))
		}
	}
	rest := make([]string, 0, len(f))
	for k := range f {
		if !isLeadingField(k) {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		parts = append(parts, fmt.Sprintf("%s=%v", k, f[k]))
	}
	return strings.Join(parts, " ")
}

func isLeadingField(key string) bool {
	for _, k := range leadingFields {
		if k == key {
			return true
		}
	}
	return false
}

// FmtLogger writes "<time> <LEVEL> <message> <fields>" lines. It is the fallback
// when no logger is configured. Copies made by WithFields share one write lock,
// so lines from concurrent machines never interleave.
type FmtLogger struct {
	mu     *sync.Mutex
	out    io.Writer
	fields LogFields
}

// NewFmtLogger writes to out, or stdout when out is nil.
func NewFmtLogger(out io.Writer) *FmtLogger {
	if out == nil {
		out = os.Stdout
	}
	return &FmtLogger{mu: &sync.Mutex{}, out: out}
}

func (l *FmtLogger) Trace(msg string, args ...any) { l.write("TRACE", msg, args) }
func (l *FmtLogger) Debug(msg string, args ...any) { l.write("DEBUG", msg, args) }
func (l *FmtLogger) Info(msg string, args ...any)  { l.write("INFO", msg, args) }
func (l *FmtLogger) Warn(msg string, args ...any)  { l.write("WARN", msg, args) }
func (l *FmtLogger) Error(msg string, args ...any) { l.write("ERROR", msg, args) }
func (l *FmtLogger) Fatal(msg string, args ...any) { l.write("FATAL", msg, args) }

// WithContext returns l; FmtLogger does not read request context.
func (l *FmtLogger) WithContext(context.Context) Logger {
	if l == nil {
		return NewFmtLogger(nil)
	}
	return l
}

// WithFields returns a copy carrying the merged fields.
func (l *FmtLogger) WithFields(fields map[string]any) Logger {
	if l == nil {
		l = NewFmtLogger(nil)
	}
	cp := *l
	cp.fields = l.fields.with(fields)
	return &cp
}

func (l *FmtLogger) write(level, msg string, args []any) {
	if l == nil {
		l = NewFmtLogger(nil)
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	line := fmt.Sprintf("%s %-5s %s", time.Now().UTC().Format(time.RFC3339Nano), level, strings.TrimSpace(msg))
	if fields := l.fields.String(); fields != "" {
		line += " " + fields
	}
	if l.mu != nil {
		l.mu.Lock()
		defer l.mu.Unlock()
	}
	fmt.Fprintln(l.out, line)
}

type nopLogger struct{}

// NopLogger returns a logger that drops every line.
func NopLogger() Logger { return nopLogger{} }

func (nopLogger) Trace(string, ...any)                 {}
func (nopLogger) Debug(string, ...any)                 {}
func (nopLogger) Info(string, ...any)                  {}
func (nopLogger) Warn(string, ...any)                  {}
func (nopLogger) Error(string, ...any)                 {}
func (nopLogger) Fatal(string, ...any)                 {}
func (n nopLogger) WithContext(context.Context) Logger { return n }

func normalizeLogger(logger Logger) Logger {
	if logger == nil {
		return NewFmtLogger(nil)
	}
	return logger
}

// WithLoggerFields attaches fields when the logger supports them.
func WithLoggerFields(logger Logger, fields map[string]any) Logger {
	logger = normalizeLogger(logger)
	if fl, ok := logger.(FieldsLogger); ok {
		return fl.WithFields(fields)
	}
	return logger
}
