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

package metrics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"rivaas.dev/rest/logging"
	"rivaas.dev/rest/pipeline"
	"rivaas.dev/rest/resource"
	"rivaas.dev/rest/response"
)

// Default histogram boundaries.
var (
	// DefaultDurationBuckets cover 5ms to 10s.
	DefaultDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	// DefaultSizeBuckets cover 100B to 10MB.
	DefaultSizeBuckets = []float64{100, 1000, 10000, 100000, 1000000, 10000000}
)

// DefaultExportInterval is how often push exporters send.
const DefaultExportInterval = 30 * time.Second

// ErrNoHandler is returned by [Recorder.Handler] when the recorder writes
// to a caller-provided meter provider.
var ErrNoHandler = errors.New("metrics: no Prometheus handler for a custom meter provider")

const meterName = "rivaas.dev/rest/metrics"

// Recorder holds the request instruments. All methods are safe for
// concurrent use.
type Recorder struct {
	meterProvider       metric.MeterProvider
	customMeterProvider bool
	registerGlobal      bool
	registry            *promclient.Registry
	handler             http.Handler
	logger              *logging.Logger

	stdout         io.Writer
	otlpEndpoint   string
	otlpInsecure   bool
	otlpEnabled    bool
	exportInterval time.Duration

	serviceName     string
	serviceVersion  string
	durationBuckets []float64
	sizeBuckets     []float64
	serviceAttrs    []attribute.KeyValue

	requestDuration metric.Float64Histogram
	requestCount    metric.Int64Counter
	activeRequests  metric.Int64UpDownCounter
	responseSize    metric.Int64Histogram
	failureCount    metric.Int64Counter

	shutdown atomic.Bool
}

// New creates a Recorder.
//
// Errors:
//   - invalid histogram buckets
//   - exporter or instrument creation failures
func New(opts ...Option) (*Recorder, error) {
	r := &Recorder{
		serviceName:     "rest",
		durationBuckets: DefaultDurationBuckets,
		sizeBuckets:     DefaultSizeBuckets,
		logger:          logging.Discard(),
		exportInterval:  DefaultExportInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	if !validBuckets(r.durationBuckets) || !validBuckets(r.sizeBuckets) {
		return nil, errBuckets
	}
	if r.customMeterProvider && r.meterProvider == nil {
		return nil, errors.New("metrics: custom meter provider is nil")
	}

	if !r.customMeterProvider {
		r.registry = promclient.NewRegistry()
		exporter, err := prometheus.New(prometheus.WithRegisterer(r.registry))
		if err != nil {
			return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}
		mopts := []sdkmetric.Option{sdkmetric.WithReader(exporter)}
		readers, err := r.pushReaders()
		if err != nil {
			return nil, err
		}
		for _, reader := range readers {
			mopts = append(mopts, sdkmetric.WithReader(reader))
		}
		r.meterProvider = sdkmetric.NewMeterProvider(mopts...)
		r.handler = promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
	}
	if r.registerGlobal {
		otel.SetMeterProvider(r.meterProvider)
	}

	r.serviceAttrs = []attribute.KeyValue{attribute.String("service.name", r.serviceName)}
	if r.serviceVersion != "" {
		r.serviceAttrs = append(r.serviceAttrs, attribute.String("service.version", r.serviceVersion))
	}
	if err := r.initInstruments(r.meterProvider.Meter(meterName)); err != nil {
		return nil, err
	}
	r.logger.Debug("metrics recorder ready",
		"service", r.serviceName,
		"custom_provider", r.customMeterProvider,
		"stdout", r.stdout != nil,
		"otlp", r.otlpEnabled,
	)
	return r, nil
}

// pushReaders builds periodic readers for the stdout and OTLP exporters.
// Both run next to the Prometheus pull reader.
func (r *Recorder) pushReaders() ([]sdkmetric.Reader, error) {
	if r.exportInterval <= 0 {
		return nil, errors.New("metrics: export interval must be positive")
	}
	var readers []sdkmetric.Reader
	if r.stdout != nil {
		exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(r.stdout))
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(r.exportInterval)))
	}
	if r.otlpEnabled {
		var opts []otlpmetrichttp.Option
		if r.otlpEndpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(r.otlpEndpoint))
		}
		if r.otlpInsecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		exporter, err := otlpmetrichttp.New(context.Background(), opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP HTTP exporter: %w", err)
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(r.exportInterval)))
	}
	return readers, nil
}

// MustNew is like [New] but panics on error.
func MustNew(opts ...Option) *Recorder {
	r, err := New(opts...)
	if err != nil {
		panic(fmt.Sprintf("metrics: %v", err))
	}
	return r
}

func (r *Recorder) initInstruments(meter metric.Meter) error {
	var err error
	if r.requestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("Duration of requests in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(r.durationBuckets...),
	); err != nil {
		return fmt.Errorf("failed to create request duration histogram: %w", err)
	}
	if r.requestCount, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of finalized requests"),
	); err != nil {
		return fmt.Errorf("failed to create request counter: %w", err)
	}
	if r.activeRequests, err = meter.Int64UpDownCounter(
		"http_requests_active",
		metric.WithDescription("Number of requests in flight"),
	); err != nil {
		return fmt.Errorf("failed to create active requests counter: %w", err)
	}
	if r.responseSize, err = meter.Int64Histogram(
		"http_response_size_bytes",
		metric.WithDescription("Declared size of response bodies in bytes"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(r.sizeBuckets...),
	); err != nil {
		return fmt.Errorf("failed to create response size histogram: %w", err)
	}
	if r.failureCount, err = meter.Int64Counter(
		"rest_failures_total",
		metric.WithDescription("Requests that ended in an application error or unclassified failure"),
	); err != nil {
		return fmt.Errorf("failed to create failure counter: %w", err)
	}
	return nil
}

// Handler returns the Prometheus scrape handler.
func (r *Recorder) Handler() (http.Handler, error) {
	if r.handler == nil {
		return nil, ErrNoHandler
	}
	return r.handler, nil
}

// Stage counts the request as active until the rest of the chain returns.
func (r *Recorder) Stage() pipeline.Stage {
	return pipeline.StageFunc(func(x *pipeline.Exchange, next pipeline.Handler) (*response.Response, error) {
		ctx := x.Request.Context()
		attrs := metric.WithAttributes(r.serviceAttrs...)
		r.activeRequests.Add(ctx, 1, attrs)
		defer r.activeRequests.Add(ctx, -1, attrs)
		return next.Handle(x)
	})
}

// Finisher records the finalized response. The duration is measured from
// the creation of the request context.
func (r *Recorder) Finisher() pipeline.Finisher {
	return pipeline.FinisherFunc(func(req *http.Request, resp *response.Response, rc *resource.RequestContext) {
		r.Record(req.Context(), resp, rc)
	})
}

// Record records one finalized exchange.
func (r *Recorder) Record(ctx context.Context, resp *response.Response, rc *resource.RequestContext) {
	if r.shutdown.Load() {
		return
	}
	outcome := pipeline.OutcomeOf(rc.Err())
	status := resp.StatusCode()
	attrs := make([]attribute.KeyValue, 0, len(r.serviceAttrs)+5)
	attrs = append(attrs, r.serviceAttrs...)
	attrs = append(attrs,
		attribute.String("rest.resource", rc.HandlerType()),
		attribute.String("rest.method", rc.HandlerMethod()),
		attribute.Int("http.status_code", status),
		attribute.String("http.status_class", statusClass(status)),
		attribute.String("rest.outcome", outcome.String()),
	)
	set := metric.WithAttributes(attrs...)

	r.requestDuration.Record(ctx, rc.Elapsed().Seconds(), set)
	r.requestCount.Add(ctx, 1, set)
	if outcome != pipeline.OutcomeSuccess {
		r.failureCount.Add(ctx, 1, set)
	}
	if n := resp.ContentLength(); n > 0 {
		r.responseSize.Record(ctx, n, set)
	}
}

// Shutdown flushes and stops the owned meter provider. It is idempotent
// and leaves caller-provided providers running.
func (r *Recorder) Shutdown(ctx context.Context) error {
	if !r.shutdown.CompareAndSwap(false, true) || r.customMeterProvider {
		return nil
	}
	mp, ok := r.meterProvider.(*sdkmetric.MeterProvider)
	if !ok {
		return nil
	}
	if err := mp.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down meter provider: %w", err)
	}
	r.logger.Debug("metrics recorder shut down")
	return nil
}

func statusClass(code int) string {
	switch code / 100 {
	case 1:
		return "1xx"
	case 2:
		return "2xx"
	case 3:
		return "3xx"
	case 4:
		return "4xx"
	case 5:
		return "5xx"
	default:
		return "unknown"
	}
}
