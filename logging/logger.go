// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// HandlerType selects the output format.
type HandlerType string

const (
	// JSONHandler outputs one JSON object per line.
	JSONHandler HandlerType = "json"
	// TextHandler outputs key=value text.
	TextHandler HandlerType = "text"
	// ConsoleHandler outputs colored, human-readable lines.
	ConsoleHandler HandlerType = "console"
)

// Level is a log level.
type Level = slog.Level

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError

	// LevelFatal marks failures the request pipeline could not classify:
	// programming errors, broken configuration, failed error builders.
	// Logging at this level never exits the process.
	LevelFatal = slog.Level(12)
)

// redactedKeys are attribute keys whose values never reach the output.
var redactedKeys = map[string]struct{}{
	"password":      {},
	"token":         {},
	"secret":        {},
	"api_key":       {},
	"authorization": {},
	"cookie":        {},
}

const redacted = "***REDACTED***"

// LevelName returns the display name of a level, including FATAL.
func LevelName(level Level) string {
	if level >= LevelFatal {
		return "FATAL"
	}
	return level.String()
}

// ParseLevel parses "debug", "info", "warn", "error" or "fatal",
// case-insensitively.
func ParseLevel(s string) (Level, error) {
	if strings.EqualFold(s, "fatal") {
		return LevelFatal, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
	}
	return l, nil
}

// Logger is the structured logger shared by the request pipeline and the
// application. All methods are safe for concurrent use.
type Logger struct {
	handlerType HandlerType
	output      io.Writer
	level       slog.LevelVar

	serviceName    string
	serviceVersion string
	environment    string

	addSource      bool
	replaceAttr    func(groups []string, a slog.Attr) slog.Attr
	customLogger   *slog.Logger
	useCustom      bool
	registerGlobal bool

	slogger        atomic.Pointer[slog.Logger]
	mu             sync.Mutex
	isShuttingDown atomic.Bool
}

// Option configures a [Logger].
type Option func(*Logger)

func defaultLogger() *Logger {
	l := &Logger{
		handlerType: JSONHandler,
		output:      os.Stdout,
	}
	l.level.Set(LevelInfo)
	return l
}

// New creates a Logger. It does not replace the global slog default
// unless [WithGlobalLogger] is given.
//
// Errors:
//   - [ErrNilOutput] when the output writer is nil
//   - [ErrNilLogger] when [WithCustomLogger] received nil
//   - [ErrInvalidHandler] for an unknown [HandlerType]
func New(opts ...Option) (*Logger, error) {
	l := defaultLogger()
	for _, opt := range opts {
		opt(l)
	}
	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logging configuration: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.initializeHandler(); err != nil {
		return nil, err
	}
	return l, nil
}

// MustNew is like [New] but panics on error.
func MustNew(opts ...Option) *Logger {
	l, err := New(opts...)
	if err != nil {
		panic("logging initialization failed: " + err.Error())
	}
	return l
}

// Discard returns a Logger that drops every entry.
func Discard() *Logger {
	return MustNew(WithOutput(io.Discard))
}

// Validate checks the configuration.
func (l *Logger) Validate() error {
	if l.useCustom {
		if l.customLogger == nil {
			return ErrNilLogger
		}
		return nil
	}
	if l.output == nil {
		return ErrNilOutput
	}
	switch l.handlerType {
	case JSONHandler, TextHandler, ConsoleHandler:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrInvalidHandler, l.handlerType)
	}
}

// initializeHandler builds the slog logger. Must be called with mu held.
func (l *Logger) initializeHandler() error {
	if l.useCustom {
		l.slogger.Store(l.customLogger)
		if l.registerGlobal {
			slog.SetDefault(l.customLogger)
		}
		return nil
	}

	opts := &slog.HandlerOptions{
		Level:       &l.level,
		AddSource:   l.addSource,
		ReplaceAttr: l.buildReplaceAttr(),
	}

	var handler slog.Handler
	switch l.handlerType {
	case JSONHandler:
		handler = slog.NewJSONHandler(l.output, opts)
	case TextHandler:
		handler = slog.NewTextHandler(l.output, opts)
	case ConsoleHandler:
		handler = newConsoleHandler(l.output, opts)
	default:
		return fmt.Errorf("%w: %s", ErrInvalidHandler, l.handlerType)
	}

	sl := slog.New(handler)
	var attrs []any
	if l.serviceName != "" {
		attrs = append(attrs, "service", l.serviceName)
	}
	if l.serviceVersion != "" {
		attrs = append(attrs, "version", l.serviceVersion)
	}
	if l.environment != "" {
		attrs = append(attrs, "env", l.environment)
	}
	if len(attrs) > 0 {
		sl = sl.With(attrs...)
	}

	l.slogger.Store(sl)
	if l.registerGlobal {
		slog.SetDefault(sl)
	}
	return nil
}

func (l *Logger) buildReplaceAttr() func(groups []string, a slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) == 0 && a.Key == slog.LevelKey {
			if lvl, ok := a.Value.Any().(slog.Level); ok {
				a = slog.String(slog.LevelKey, LevelName(lvl))
			}
		}
		if _, ok := redactedKeys[a.Key]; ok {
			a = slog.String(a.Key, redacted)
		}
		if l.replaceAttr != nil {
			return l.replaceAttr(groups, a)
		}
		return a
	}
}

// Logger returns the underlying [slog.Logger].
func (l *Logger) Logger() *slog.Logger {
	return l.slogger.Load()
}

// With returns a [slog.Logger] carrying extra attributes.
func (l *Logger) With(args ...any) *slog.Logger {
	return l.Logger().With(args...)
}

func (l *Logger) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	if l.isShuttingDown.Load() {
		return
	}
	sl := l.Logger()
	if !sl.Enabled(ctx, level) {
		return
	}
	sl.Log(ctx, level, msg, args...)
}

// Debug logs at [LevelDebug].
func (l *Logger) Debug(msg string, args ...any) {
	l.log(context.Background(), LevelDebug, msg, args...)
}

// Info logs at [LevelInfo].
func (l *Logger) Info(msg string, args ...any) {
	l.log(context.Background(), LevelInfo, msg, args...)
}

// Warn logs at [LevelWarn].
func (l *Logger) Warn(msg string, args ...any) {
	l.log(context.Background(), LevelWarn, msg, args...)
}

// Error logs at [LevelError].
func (l *Logger) Error(msg string, args ...any) {
	l.log(context.Background(), LevelError, msg, args...)
}

// Fatal logs at [LevelFatal]. The process keeps running.
func (l *Logger) Fatal(msg string, args ...any) {
	l.log(context.Background(), LevelFatal, msg, args...)
}

// LogContext logs at an arbitrary level with a context, so handlers that
// read trace information from it see the active span.
func (l *Logger) LogContext(ctx context.Context, level Level, msg string, args ...any) {
	l.log(ctx, level, msg, args...)
}

// SetLevel changes the minimum level at runtime.
//
// Errors:
//   - [ErrCannotChangeLevel] for loggers built with [WithCustomLogger]
func (l *Logger) SetLevel(level Level) error {
	if l.useCustom {
		return ErrCannotChangeLevel
	}
	l.level.Set(level)
	return nil
}

// Level returns the minimum level.
func (l *Logger) Level() Level {
	return l.level.Level()
}

// ServiceName returns the configured service name.
func (l *Logger) ServiceName() string { return l.serviceName }

// IsEnabled reports whether the logger still accepts entries.
func (l *Logger) IsEnabled() bool {
	return !l.isShuttingDown.Load()
}

// Shutdown stops accepting entries and flushes the handler when it
// supports flushing. Calling it twice returns [ErrLoggerShutdown].
func (l *Logger) Shutdown(_ context.Context) error {
	if l.isShuttingDown.Swap(true) {
		return ErrLoggerShutdown
	}
	if sl := l.Logger(); sl != nil {
		if f, ok := sl.Handler().(interface{ Flush() error }); ok {
			return f.Flush()
		}
	}
	return nil
}

// ErrorAttr groups an error's message and concrete type under "error".
func ErrorAttr(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Group("error",
		slog.String("message", err.Error()),
		slog.String("type", fmt.Sprintf("%T", err)),
	)
}
