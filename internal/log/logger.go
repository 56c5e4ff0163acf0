// Package log provides structured logging for namefix: a plain,
// allocation-light logger (no external logging library) with a
// field-carrying API (F, With, LogWithFields) every call site across the
// core uses instead of fmt.Println.
package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	nferrors "namefix/internal/errors"
)

var (
	isDebug = false
	logger  = NewLogger()
)

// Field is one structured key/value pair attached to a log line.
type Field struct {
	Key   string
	Value interface{}
}

// F builds a Field. Short name to keep call sites terse.
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Logger writes leveled, optionally JSON-encoded, field-carrying log lines.
type Logger struct {
	out    io.Writer
	file   *os.File
	json   bool
	fields []Field
	mu     *sync.Mutex
}

// Option configures a Logger at construction time.
type Option func(*Logger)

// WithOutput directs log output at w instead of stdout.
func WithOutput(w io.Writer) Option {
	return func(l *Logger) { l.out = w }
}

// WithJSON switches the logger to one-JSON-object-per-line output.
func WithJSON() Option {
	return func(l *Logger) { l.json = true }
}

// WithFile tees output to the named file in addition to the current
// output writer.
func WithFile(path string) Option {
	return func(l *Logger) {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log: cannot open %s: %v\n", path, err)
			return
		}
		l.file = f
		l.out = io.MultiWriter(l.out, f)
	}
}

// NewLogger builds a Logger writing to stdout by default.
func NewLogger(opts ...Option) *Logger {
	l := &Logger{out: os.Stdout, mu: &sync.Mutex{}}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Configure replaces the package-level default logger.
func Configure(opts ...Option) {
	logger = NewLogger(opts...)
}

// SetDebug toggles whether Debug/Debugf calls produce output.
func SetDebug(debug bool) {
	isDebug = debug
}

// With returns a copy of l carrying the given additional fields on every
// subsequent call. The receiver is left untouched.
func (l *Logger) With(fields ...Field) *Logger {
	merged := make([]Field, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &Logger{out: l.out, file: l.file, json: l.json, fields: merged, mu: l.mu}
}

// WithContext is a placeholder for future context-aware logging (trace IDs,
// request-scoped fields); it currently returns l unchanged.
func (l *Logger) WithContext(ctx interface{}) *Logger {
	return l
}

func callerInfo() string {
	_, file, line, ok := runtime.Caller(3)
	if !ok {
		return "unknown"
	}
	short := file
	for i := len(file) - 1; i > 0; i-- {
		if file[i] == '/' {
			short = file[i+1:]
			break
		}
	}
	return fmt.Sprintf("%s:%d", short, line)
}

func (l *Logger) log(level, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	ts := time.Now().Format("2006-01-02 15:04:05")
	caller := callerInfo()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.json {
		entry := make(map[string]interface{}, len(l.fields)+4)
		entry["timestamp"] = ts
		entry["level"] = level
		entry["message"] = msg
		entry["caller"] = caller
		for _, f := range l.fields {
			entry[f.Key] = f.Value
		}
		b, err := json.Marshal(entry)
		if err != nil {
			fmt.Fprintf(l.out, "[%s] %s: %s (json encode failed: %v)\n", ts, level, msg, err)
			return
		}
		l.out.Write(append(b, '\n'))
		return
	}

	line := fmt.Sprintf("[%s] %s: %s", ts, level, msg)
	for _, f := range l.fields {
		line += fmt.Sprintf(" %s=%v", f.Key, f.Value)
	}
	line += fmt.Sprintf(" caller=%s\n", caller)
	fmt.Fprint(l.out, line)
}

func (l *Logger) Info(format string, args ...interface{})  { l.log("INFO", format, args...) }
func (l *Logger) Infof(format string, args ...interface{}) { l.log("INFO", format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.log("WARN", format, args...) }
func (l *Logger) Warnf(format string, args ...interface{}) { l.log("WARN", format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.log("ERROR", format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log("ERROR", format, args...)
}

func (l *Logger) Debug(format string, args ...interface{}) {
	if isDebug {
		l.log("DEBUG", format, args...)
	}
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	if isDebug {
		l.log("DEBUG", format, args...)
	}
}

// Package-level convenience functions operate on the default logger.

func Info(format string, args ...interface{})  { logger.Info(format, args...) }
func Infof(format string, args ...interface{}) { logger.Infof(format, args...) }
func Warn(format string, args ...interface{})  { logger.Warn(format, args...) }
func Warnf(format string, args ...interface{}) { logger.Warnf(format, args...) }
func Error(format string, args ...interface{}) { logger.Error(format, args...) }
func Errorf(format string, args ...interface{}) {
	logger.Errorf(format, args...)
}
func Debug(format string, args ...interface{})  { logger.Debug(format, args...) }
func Debugf(format string, args ...interface{}) { logger.Debugf(format, args...) }

// LogWithFields returns a logger scoped with fields, for one chained call:
// log.LogWithFields(log.F("dir", dir)).Info("watching directory").
func LogWithFields(fields ...Field) *Logger {
	return logger.With(fields...)
}

// LogWithError returns a logger scoped with fields extracted from err: the
// error text, its ErrorKind, and any of path/param/profile_id the concrete
// error type carries.
func LogWithError(err error) *Logger {
	if err == nil {
		return logger.With(F("error", "<nil>"))
	}

	fields := []Field{F("error", err.Error()), F("error_kind", int(nferrors.Kind(err)))}

	var fe *nferrors.FileError
	if nferrors.As(err, &fe) {
		fields = append(fields, F("path", fe.Path()))
	}
	var ce *nferrors.ConfigError
	if nferrors.As(err, &ce) {
		fields = append(fields, F("param", ce.Param()))
	}
	var pe *nferrors.ProfileError
	if nferrors.As(err, &pe) {
		fields = append(fields, F("profile_id", pe.ProfileID()))
	}

	return logger.With(fields...)
}

// LogError is shorthand for LogWithError(err).Error(format, args...).
func LogError(err error, format string, args ...interface{}) {
	LogWithError(err).Error(format, args...)
}
