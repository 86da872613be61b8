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
	"errors"
	"io"
	"slices"
	"time"

	"go.opentelemetry.io/otel/metric"

	"rivaas.dev/rest/logging"
)

// Option configures a [Recorder].
type Option func(*Recorder)

// WithMeterProvider records into provider instead of a private Prometheus
// registry. The provider is not shut down by [Recorder.Shutdown].
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(r *Recorder) {
		r.meterProvider = provider
		r.customMeterProvider = true
	}
}

// WithGlobalMeterProvider registers the recorder's provider with
// otel.SetMeterProvider.
func WithGlobalMeterProvider() Option {
	return func(r *Recorder) { r.registerGlobal = true }
}

// WithServiceName sets the service.name attribute. Default: "rest".
func WithServiceName(name string) Option {
	return func(r *Recorder) { r.serviceName = name }
}

// WithServiceVersion sets the service.version attribute.
func WithServiceVersion(version string) Option {
	return func(r *Recorder) { r.serviceVersion = version }
}

// WithDurationBuckets sets the duration histogram boundaries in seconds.
// They must be strictly increasing.
func WithDurationBuckets(buckets ...float64) Option {
	return func(r *Recorder) { r.durationBuckets = slices.Clone(buckets) }
}

// WithSizeBuckets sets the response size histogram boundaries in bytes.
func WithSizeBuckets(buckets ...float64) Option {
	return func(r *Recorder) { r.sizeBuckets = slices.Clone(buckets) }
}

// WithStdout also pushes metrics as JSON to w every export interval.
// Ignored with [WithMeterProvider].
func WithStdout(w io.Writer) Option {
	return func(r *Recorder) { r.stdout = w }
}

// WithOTLP also pushes metrics to an OTLP/HTTP collector. An empty
// endpoint uses the exporter default or OTEL_EXPORTER_OTLP_ENDPOINT.
// Ignored with [WithMeterProvider].
func WithOTLP(endpoint string, insecure bool) Option {
	return func(r *Recorder) {
		r.otlpEnabled = true
		r.otlpEndpoint = endpoint
		r.otlpInsecure = insecure
	}
}

// WithExportInterval sets the push interval. Default: 30s.
func WithExportInterval(d time.Duration) Option {
	return func(r *Recorder) { r.exportInterval = d }
}

// WithLogger sets the logger for lifecycle events.
func WithLogger(logger *logging.Logger) Option {
	return func(r *Recorder) { r.logger = logger }
}

var errBuckets = errors.New("histogram buckets must be non-empty and strictly increasing")

func validBuckets(b []float64) bool {
	if len(b) == 0 {
		return false
	}
	for i := 1; i < len(b); i++ {
		if b[i] <= b[i-1] {
			return false
		}
	}
	return true
}
