// Package log provides structured logging with session context.
//
// Two logger variants are available:
//   - Logger: Non-sugared zap.Logger for the bridge core (structured fields)
//   - SugaredLogger: Printf-style logging for CLI surfaces
//
// Output is JSON on stderr by default so stdout stays free for frames.
package log

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// SessionMeta identifies one bridge session. Every entry carries it.
type SessionMeta struct {
	SessionID string
	Namespace string
}

// NewSessionMeta returns session metadata with a fresh session ID.
func NewSessionMeta(namespace string) *SessionMeta {
	return &SessionMeta{SessionID: uuid.NewString(), Namespace: namespace}
}

// Logger provides structured logging with session context.
type Logger struct {
	zap   *zap.Logger
	level zap.AtomicLevel
	meta  *SessionMeta
}

// SugaredLogger provides printf-style logging for CLI surfaces.
type SugaredLogger struct {
	sugar *zap.SugaredLogger
}

// Option configures a Logger.
type Option func(*options)

type options struct {
	writer io.Writer
	level  zapcore.Level
}

// WithWriter directs output to w instead of stderr.
func WithWriter(w io.Writer) Option {
	return func(o *options) { o.writer = w }
}

// WithLevel sets the minimum level.
func WithLevel(level zapcore.Level) Option {
	return func(o *options) { o.level = level }
}

// ParseLevel parses "debug", "info", "warn" or "error".
func ParseLevel(s string) (zapcore.Level, error) {
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	level, err := zapcore.ParseLevel(s)
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// NewLogger creates a logger with session context.
func NewLogger(meta *SessionMeta, opts ...Option) *Logger {
	o := options{writer: os.Stderr, level: zapcore.InfoLevel}
	for _, opt := range opts {
		opt(&o)
	}
	if meta == nil {
		meta = &SessionMeta{}
	}

	level := zap.NewAtomicLevelAt(o.level)
	zapLogger := zap.New(newCore(o.writer, level).With(sessionFields(meta)))
	return &Logger{zap: zapLogger, level: level, meta: meta}
}

func sessionFields(meta *SessionMeta) []zap.Field {
	return []zap.Field{
		zap.String("session_id", meta.SessionID),
		zap.String("namespace", meta.Namespace),
	}
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{zap: zap.NewNop(), level: zap.NewAtomicLevel(), meta: &SessionMeta{}}
}

func newCore(w io.Writer, level zap.AtomicLevel) zapcore.Core {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		NameKey:     "component",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}
	return zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(w),
		level,
	)
}

// WithOutput returns a new logger with a different output writer.
// Session fields are carried over.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	core := newCore(w, l.level).With(sessionFields(l.meta))
	return &Logger{
		zap:   l.zap.WithOptions(zap.WrapCore(func(zapcore.Core) zapcore.Core { return core })),
		level: l.level,
		meta:  l.meta,
	}
}

// Named returns a child logger tagged with a component name.
func (l *Logger) Named(component string) *Logger {
	return &Logger{zap: l.zap.Named(component), level: l.level, meta: l.meta}
}

// Meta returns the session metadata.
func (l *Logger) Meta() *SessionMeta {
	return l.meta
}

// SetLevel changes the minimum level of this logger and every logger
// derived from it.
func (l *Logger) SetLevel(level zapcore.Level) {
	l.level.SetLevel(level)
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, fields map[string]any) {
	l.zap.Debug(message, zap.Any("fields", fields))
}

// Info logs an info message.
func (l *Logger) Info(message string, fields map[string]any) {
	l.zap.Info(message, zap.Any("fields", fields))
}

// Warn logs a warning message.
func (l *Logger) Warn(message string, fields map[string]any) {
	l.zap.Warn(message, zap.Any("fields", fields))
}

// Error logs an error message.
func (l *Logger) Error(message string, fields map[string]any) {
	l.zap.Error(message, zap.Any("fields", fields))
}

// Sugar returns a SugaredLogger for printf-style logging.
func (l *Logger) Sugar() *SugaredLogger {
	return &SugaredLogger{sugar: l.zap.Sugar()}
}

// Debugf logs a debug message with printf-style formatting.
func (s *SugaredLogger) Debugf(template string, args ...any) {
	s.sugar.Debugf(template, args...)
}

// Infof logs an info message with printf-style formatting.
func (s *SugaredLogger) Infof(template string, args ...any) {
	s.sugar.Infof(template, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (s *SugaredLogger) Warnf(template string, args ...any) {
	s.sugar.Warnf(template, args...)
}

// Errorf logs an error message with printf-style formatting.
func (s *SugaredLogger) Errorf(template string, args ...any) {
	s.sugar.Errorf(template, args...)
}

// With returns a SugaredLogger with additional context fields.
func (s *SugaredLogger) With(args ...any) *SugaredLogger {
	return &SugaredLogger{sugar: s.sugar.With(args...)}
}
