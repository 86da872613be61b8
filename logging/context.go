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
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel/trace"
)

const (
	fieldTraceID   = "trace_id"
	fieldSpanID    = "span_id"
	fieldRequestID = "request_id"
)

// ContextLogger logs with the trace and span ids of the span active in its
// context, plus any request-scoped attributes. It is created per request.
type ContextLogger struct {
	logger  *Logger
	sl      *slog.Logger
	ctx     context.Context
	args    []any
	traceID string
	spanID  string
}

// NewContextLogger binds logger to ctx. When ctx carries a valid
// OpenTelemetry span, every entry gets trace_id and span_id.
func NewContextLogger(ctx context.Context, logger *Logger) *ContextLogger {
	cl := &ContextLogger{logger: logger, sl: logger.Logger(), ctx: ctx}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		cl.traceID = sc.TraceID().String()
		cl.spanID = sc.SpanID().String()
		cl.sl = cl.sl.With(fieldTraceID, cl.traceID, fieldSpanID, cl.spanID)
	}
	return cl
}

// WithContext rebinds the logger to ctx, keeping the attributes added
// through With and WithRequestID. Stages that start a span use it so later
// entries carry the new span id.
func (cl *ContextLogger) WithContext(ctx context.Context) *ContextLogger {
	next := NewContextLogger(ctx, cl.logger)
	if len(cl.args) > 0 {
		next.args = cl.args
		next.sl = next.sl.With(cl.args...)
	}
	return next
}

// WithRequestID returns a copy that also logs request_id.
func (cl *ContextLogger) WithRequestID(id string) *ContextLogger {
	if id == "" {
		return cl
	}
	return cl.With(fieldRequestID, id)
}

// With returns a copy carrying extra attributes.
func (cl *ContextLogger) With(args ...any) *ContextLogger {
	next := *cl
	next.args = append(slices.Clip(cl.args), args...)
	next.sl = cl.sl.With(args...)
	return &next
}

// Context returns the bound context.
func (cl *ContextLogger) Context() context.Context { return cl.ctx }

// Logger returns the underlying [slog.Logger].
func (cl *ContextLogger) Logger() *slog.Logger { return cl.sl }

// TraceID returns the trace id, or "" outside a span.
func (cl *ContextLogger) TraceID() string { return cl.traceID }

// SpanID returns the span id, or "" outside a span.
func (cl *ContextLogger) SpanID() string { return cl.spanID }

func (cl *ContextLogger) log(level slog.Level, msg string, args ...any) {
	if !cl.logger.IsEnabled() || !cl.sl.Enabled(cl.ctx, level) {
		return
	}
	cl.sl.Log(cl.ctx, level, msg, args...)
}

// Debug logs at [LevelDebug].
func (cl *ContextLogger) Debug(msg string, args ...any) { cl.log(LevelDebug, msg, args...) }

// Info logs at [LevelInfo].
func (cl *ContextLogger) Info(msg string, args ...any) { cl.log(LevelInfo, msg, args...) }

// Warn logs at [LevelWarn].
func (cl *ContextLogger) Warn(msg string, args ...any) { cl.log(LevelWarn, msg, args...) }

// Error logs at [LevelError].
func (cl *ContextLogger) Error(msg string, args ...any) { cl.log(LevelError, msg, args...) }

// Fatal logs at [LevelFatal].
func (cl *ContextLogger) Fatal(msg string, args ...any) { cl.log(LevelFatal, msg, args...) }
