package app

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity level of a log message.
type LogLevel int

const (
	// LogLevelDebug is for detailed debugging information.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is for general informational messages.
	LogLevelInfo
	// LogLevelWarn is for warning messages.
	LogLevelWarn
	// LogLevelError is for error messages.
	LogLevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LevelOff is the logging.level name that silences the logger.
const LevelOff = "off"

// ParseLogLevel parses a string into a LogLevel. Unknown names yield info.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return LogLevelDebug
	case "info":
		return LogLevelInfo
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// logCore is the state shared by a logger and everything derived from it.
type logCore struct {
	mu       sync.Mutex
	level    LogLevel
	output   io.Writer
	disabled bool
	now      func() time.Time
}

// Logger provides leveled logging with printf-style messages and key=value
// fields. Loggers derived with WithField share the level and output of their
// parent, so SetLevel on any of them applies to all.
type Logger struct {
	core   *logCore
	prefix string
	fields map[string]any
}

// LoggerConfig configures the logger.
type LoggerConfig struct {
	// Level is the minimum log level to output.
	Level LogLevel
	// Output is where logs are written. Defaults to os.Stderr.
	Output io.Writer
	// Prefix is prepended to all log messages.
	Prefix string
}

// DefaultLoggerConfig returns the default logger configuration.
func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		Level:  LogLevelInfo,
		Output: os.Stderr,
		Prefix: "lsesample",
	}
}

// NewLogger creates a new logger with the given configuration.
func NewLogger(cfg LoggerConfig) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	return &Logger{
		core: &logCore{
			level:  cfg.Level,
			output: cfg.Output,
			now:    time.Now,
		},
		prefix: cfg.Prefix,
	}
}

// WithField returns a new logger with the given field added.
func (l *Logger) WithField(key string, value any) *Logger {
	return l.WithFields(map[string]any{key: value})
}

// WithFields returns a new logger with the given fields added.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	newFields := make(map[string]any, len(l.fields)+len(fields))
	for k, v := range l.fields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}

	return &Logger{
		core:   l.core,
		prefix: l.prefix,
		fields: newFields,
	}
}

// WithComponent returns a new logger with the component field set.
func (l *Logger) WithComponent(component string) *Logger {
	return l.WithField("component", component)
}

// Level returns the minimum log level.
func (l *Logger) Level() LogLevel {
	l.core.mu.Lock()
	defer l.core.mu.Unlock()
	return l.core.level
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level LogLevel) {
	l.core.mu.Lock()
	defer l.core.mu.Unlock()
	l.core.level = level
}

// SetOutput sets the output writer.
func (l *Logger) SetOutput(w io.Writer) {
	l.core.mu.Lock()
	defer l.core.mu.Unlock()
	l.core.output = w
}

// Disable disables all logging.
func (l *Logger) Disable() {
	l.core.mu.Lock()
	defer l.core.mu.Unlock()
	l.core.disabled = true
}

// Enable enables logging.
func (l *Logger) Enable() {
	l.core.mu.Lock()
	defer l.core.mu.Unlock()
	l.core.disabled = false
}

// ApplyLevel sets the level from its config name. LevelOff disables the
// logger; any other name enables it at that level.
func (l *Logger) ApplyLevel(name string) {
	if strings.EqualFold(name, LevelOff) {
		l.Disable()
		return
	}
	l.SetLevel(ParseLogLevel(name))
	l.Enable()
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, args ...any) {
	l.log(LogLevelDebug, msg, args...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, args ...any) {
	l.log(LogLevelInfo, msg, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, args ...any) {
	l.log(LogLevelWarn, msg, args...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, args ...any) {
	l.log(LogLevelError, msg, args...)
}

// log writes a log message if the level is enabled.
func (l *Logger) log(level LogLevel, msg string, args ...any) {
	c := l.core
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disabled || level < c.level {
		return
	}

	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}

	var b strings.Builder
	b.WriteString(c.now().Format("2006-01-02T15:04:05.000"))
	b.WriteString(" [")
	b.WriteString(level.String())
	b.WriteString("] ")
	if l.prefix != "" {
		b.WriteString(l.prefix)
		b.WriteString(": ")
	}
	b.WriteString(msg)

	if len(l.fields) > 0 {
		keys := make([]string, 0, len(l.fields))
		for k := range l.fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteString(" {")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%v", k, l.fields[k])
		}
		b.WriteString("}")
	}
	b.WriteByte('\n')

	_, _ = io.WriteString(c.output, b.String())
}
