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

package tracing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"

	"rivaas.dev/rest/logging"
	"rivaas.dev/rest/pipeline"
	"rivaas.dev/rest/response"
)

const tracerName = "rivaas.dev/rest/tracing"

// Protocol selects the OTLP transport.
type Protocol string

// OTLP transports.
const (
	ProtocolGRPC Protocol = "grpc"
	ProtocolHTTP Protocol = "http"
)

// Tracer starts request spans.
type Tracer struct {
	provider       *sdktrace.TracerProvider
	customProvider bool
	registerGlobal bool
	tracer         trace.Tracer
	propagator     propagation.TextMapPropagator
	stdout         io.Writer
	otlpProtocol   Protocol
	otlpEndpoint   string
	otlpInsecure   bool
	serviceName    string
	serviceVersion string
	sampleRate     float64
	logger         *logging.Logger

	shutdown atomic.Bool
}

// Option configures a [Tracer].
type Option func(*Tracer)

// WithTracerProvider uses provider instead of creating one. The caller
// owns its lifecycle.
func WithTracerProvider(provider *sdktrace.TracerProvider) Option {
	return func(t *Tracer) {
		t.provider = provider
		t.customProvider = true
	}
}

// WithStdout exports spans as JSON to w.
func WithStdout(w io.Writer) Option {
	return func(t *Tracer) { t.stdout = w }
}

// WithOTLP exports spans to an OTLP collector. An empty endpoint uses the
// exporter default (localhost:4317 for gRPC, localhost:4318 for HTTP) or
// OTEL_EXPORTER_OTLP_ENDPOINT.
//
// Example:
//
//	tracing.New(tracing.WithOTLP(tracing.ProtocolHTTP, "collector:4318", true))
func WithOTLP(protocol Protocol, endpoint string, insecure bool) Option {
	return func(t *Tracer) {
		t.otlpProtocol = protocol
		t.otlpEndpoint = endpoint
		t.otlpInsecure = insecure
	}
}

// WithServiceName sets the service.name resource attribute. Default: "rest".
func WithServiceName(name string) Option {
	return func(t *Tracer) { t.serviceName = name }
}

// WithServiceVersion sets the service.version resource attribute.
func WithServiceVersion(version string) Option {
	return func(t *Tracer) { t.serviceVersion = version }
}

// WithSampleRate samples the given fraction of root spans, in [0, 1].
// Child spans follow their parent. Default: 1.
func WithSampleRate(rate float64) Option {
	return func(t *Tracer) { t.sampleRate = rate }
}

// WithPropagator sets the propagator used to extract the caller's trace
// context. Default: W3C trace context and baggage.
func WithPropagator(p propagation.TextMapPropagator) Option {
	return func(t *Tracer) { t.propagator = p }
}

// WithGlobalTracerProvider registers the provider with
// otel.SetTracerProvider.
func WithGlobalTracerProvider() Option {
	return func(t *Tracer) { t.registerGlobal = true }
}

// WithLogger sets the logger for lifecycle events.
func WithLogger(logger *logging.Logger) Option {
	return func(t *Tracer) { t.logger = logger }
}

// New creates a Tracer. Without [WithStdout], [WithOTLP] or
// [WithTracerProvider] spans are created and propagated but not exported.
func New(opts ...Option) (*Tracer, error) {
	t := &Tracer{
		serviceName: "rest",
		sampleRate:  1,
		propagator:  propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}),
		logger:      logging.Discard(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.sampleRate < 0 || t.sampleRate > 1 {
		return nil, fmt.Errorf("tracing: sample rate %v out of range [0, 1]", t.sampleRate)
	}
	if t.customProvider && t.provider == nil {
		return nil, errors.New("tracing: custom tracer provider is nil")
	}
	if t.serviceName == "" {
		return nil, errors.New("tracing: service name is required")
	}

	if !t.customProvider {
		popts := []sdktrace.TracerProviderOption{
			sdktrace.WithResource(sdkresource.NewWithAttributes(
				semconv.SchemaURL,
				semconv.ServiceName(t.serviceName),
				semconv.ServiceVersion(t.serviceVersion),
			)),
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(t.sampleRate))),
		}
		if t.stdout != nil {
			exporter, err := stdouttrace.New(stdouttrace.WithWriter(t.stdout))
			if err != nil {
				return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
			}
			popts = append(popts, sdktrace.WithBatcher(exporter))
		}
		if t.otlpProtocol != "" {
			exporter, err := t.newOTLPExporter()
			if err != nil {
				return nil, err
			}
			popts = append(popts, sdktrace.WithBatcher(exporter))
		}
		t.provider = sdktrace.NewTracerProvider(popts...)
	}
	if t.registerGlobal {
		otel.SetTracerProvider(t.provider)
	}
	t.tracer = t.provider.Tracer(tracerName)
	t.logger.Debug("tracer ready",
		"service", t.serviceName,
		"stdout", t.stdout != nil,
		"otlp", string(t.otlpProtocol),
		"endpoint", t.otlpEndpoint,
	)
	return t, nil
}

// newOTLPExporter creates the exporter without dialing; both clients
// connect on the first export.
func (t *Tracer) newOTLPExporter() (sdktrace.SpanExporter, error) {
	ctx := context.Background()
	switch t.otlpProtocol {
	case ProtocolGRPC:
		var opts []otlptracegrpc.Option
		if t.otlpEndpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(t.otlpEndpoint))
		}
		if t.otlpInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP gRPC exporter: %w", err)
		}
		return exporter, nil
	case ProtocolHTTP:
		var opts []otlptracehttp.Option
		if t.otlpEndpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(t.otlpEndpoint))
		}
		if t.otlpInsecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exporter, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP HTTP exporter: %w", err)
		}
		return exporter, nil
	default:
		return nil, fmt.Errorf("tracing: unsupported OTLP protocol %q", t.otlpProtocol)
	}
}

// MustNew is like [New] but panics on error.
func MustNew(opts ...Option) *Tracer {
	t, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// Stage starts a server span around the rest of the chain.
func (t *Tracer) Stage() pipeline.Stage {
	return pipeline.StageFunc(func(x *pipeline.Exchange, next pipeline.Handler) (*response.Response, error) {
		req := x.Request
		ctx := t.propagator.Extract(req.Context(), propagation.HeaderCarrier(req.Header))
		ctx, span := t.tracer.Start(ctx, req.Method+" "+req.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", req.Method),
				attribute.String("http.target", req.URL.Path),
				attribute.String("rest.request_id", x.Context.RequestID()),
			),
		)
		defer span.End()

		downstream := x.WithRequest(req.WithContext(ctx))
		downstream.Logger = x.Logger.WithContext(ctx)

		resp, err := next.Handle(downstream)
		t.finish(span, x, resp, err)
		return resp, err
	})
}

func (t *Tracer) finish(span trace.Span, x *pipeline.Exchange, resp *response.Response, err error) {
	if d := x.Context.Descriptor(); d != nil {
		span.SetName(d.Path())
		span.SetAttributes(
			attribute.String("rest.resource", d.Type()),
			attribute.String("rest.method", d.Name()),
		)
	}

	status := http.StatusOK
	switch {
	case err != nil:
		status = pipeline.StatusFor(err)
		outcome := pipeline.OutcomeOf(err)
		span.SetAttributes(attribute.String("rest.outcome", outcome.String()))
		if outcome == pipeline.OutcomeUnclassifiedFailure {
			span.RecordError(err)
		}
	case resp != nil:
		status = resp.StatusCode()
	}
	span.SetAttributes(attribute.Int("http.status_code", status))
	if status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(status))
	} else {
		span.SetStatus(codes.Ok, "")
	}
}

// Shutdown flushes and stops an owned provider. It is idempotent.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if !t.shutdown.CompareAndSwap(false, true) || t.customProvider {
		return nil
	}
	if err := t.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down tracer provider: %w", err)
	}
	return nil
}
