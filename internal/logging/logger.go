package logging

import (
	"fmt"
	"reflect"

	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/observability"
)

// Logger is the printf-style logging facade used by pipeline components.
// It keeps generators and renderers decoupled from the structured logger.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop returns a logger that discards everything.
func Nop() Logger { return nopLogger{} }

// IsNil reports whether the logger is nil, including typed nil pointers
// hiding behind the interface.
func IsNil(logger Logger) bool {
	if logger == nil {
		return true
	}
	v := reflect.ValueOf(logger)
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	default:
		return false
	}
}

// OrNop returns the logger unchanged, or a nop logger when it is nil.
func OrNop(logger Logger) Logger {
	if IsNil(logger) {
		return Nop()
	}
	return logger
}

type observabilityLogger struct {
	base *observability.Logger
}

func (l *observabilityLogger) Debug(format string, args ...any) {
	l.base.Debug(fmt.Sprintf(format, args...))
}

func (l *observabilityLogger) Info(format string, args ...any) {
	l.base.Info(fmt.Sprintf(format, args...))
}

func (l *observabilityLogger) Warn(format string, args ...any) {
	l.base.Warn(fmt.Sprintf(format, args...))
}

func (l *observabilityLogger) Error(format string, args ...any) {
	l.base.Error(fmt.Sprintf(format, args...))
}

// FromObservability adapts the structured logger to the printf facade.
func FromObservability(base *observability.Logger) Logger {
	if base == nil {
		return Nop()
	}
	return &observabilityLogger{base: base}
}

// FromObservabilityWithComponent adapts the structured logger and tags every
// line with a component attribute.
func FromObservabilityWithComponent(base *observability.Logger, component string) Logger {
	if base == nil {
		return Nop()
	}
	if component == "" {
		return &observabilityLogger{base: base}
	}
	return &observabilityLogger{base: base.With("component", component)}
}

type multiLogger struct {
	loggers []Logger
}

func (m *multiLogger) Debug(format string, args ...any) {
	for _, l := range m.loggers {
		l.Debug(format, args...)
	}
}

func (m *multiLogger) Info(format string, args ...any) {
	for _, l := range m.loggers {
		l.Info(format, args...)
	}
}

func (m *multiLogger) Warn(format string, args ...any) {
	for _, l := range m.loggers {
		l.Warn(format, args...)
	}
}

func (m *multiLogger) Error(format string, args ...any) {
	for _, l := range m.loggers {
		l.Error(format, args...)
	}
}

// Multi fans log lines out to every non-nil logger. Nested multi loggers
// are flattened.
func Multi(loggers ...Logger) Logger {
	flattened := make([]Logger, 0, len(loggers))
	for _, l := range loggers {
		if IsNil(l) {
			continue
		}
		if m, ok := l.(*multiLogger); ok {
			flattened = append(flattened, m.loggers...)
			continue
		}
		flattened = append(flattened, l)
	}
	switch len(flattened) {
	case 0:
		return Nop()
	case 1:
		return flattened[0]
	default:
		return &multiLogger{loggers: flattened}
	}
}
