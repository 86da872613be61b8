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
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	rerrors "rivaas.dev/rest/errors"
	"rivaas.dev/rest/pipeline"
	"rivaas.dev/rest/resource"
)

type order struct {
	ID string `json:"id"`
}

func newOrders(t *testing.T) *resource.Resource {
	t.Helper()
	orders := resource.New("Orders")
	require.NoError(t, resource.RequestFunc(orders, "Get", func(_ context.Context, r *http.Request) (*order, error) {
		if r.URL.Query().Get("missing") != "" {
			return nil, rerrors.WithStatus(errors.New("order not found"), http.StatusNotFound)
		}
		return &order{ID: "1"}, nil
	}, resource.Produces("application/json")))
	require.NoError(t, resource.RequestFunc(orders, "Fail", func(context.Context, *http.Request) (*order, error) {
		return nil, errors.New("boom")
	}, resource.Produces("application/json")))
	return orders
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumBy(t *testing.T, m metricdata.Metrics, key attribute.Key, value string) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "%s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		if v, found := dp.Attributes.Value(key); found && v.AsString() == value {
			total += dp.Value
		}
	}
	return total
}

func serve(p *pipeline.Pipeline, res *resource.Resource, method, target string) {
	p.Endpoint(res, method).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, target, nil))
}

func TestRecorder_RecordsOutcomes(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	rec := MustNew(WithMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))), WithServiceName("orders"))
	p := pipeline.MustNew(pipeline.WithStages(rec.Stage()), pipeline.WithFinishers(rec.Finisher()))
	orders := newOrders(t)

	serve(p, orders, "Get", "/orders/1")
	serve(p, orders, "Get", "/orders/1?missing=1")
	serve(p, orders, "Fail", "/orders/1")

	got := collect(t, reader)
	requests := got["http_requests_total"]
	assert.Equal(t, int64(1), sumBy(t, requests, "rest.outcome", "success"))
	assert.Equal(t, int64(1), sumBy(t, requests, "rest.outcome", "application_error"))
	assert.Equal(t, int64(1), sumBy(t, requests, "rest.outcome", "unclassified_failure"))
	assert.Equal(t, int64(2), sumBy(t, requests, "rest.method", "Get"))
	assert.Equal(t, int64(3), sumBy(t, requests, "rest.resource", "Orders"))
	assert.Equal(t, int64(3), sumBy(t, requests, "service.name", "orders"))

	assert.Equal(t, int64(2), sumBy(t, got["rest_failures_total"], "service.name", "orders"))
	assert.Equal(t, int64(1), sumBy(t, got["rest_failures_total"], "http.status_class", "5xx"))
	assert.Equal(t, int64(0), sumBy(t, got["http_requests_active"], "service.name", "orders"))

	hist, ok := got["http_request_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(3), count)
}

func TestRecorder_ActiveDuringDispatch(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	rec := MustNew(WithMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))))
	p := pipeline.MustNew(pipeline.WithStages(rec.Stage()))

	var during int64
	res := resource.New("Probe")
	require.NoError(t, resource.RequestFunc(res, "Get", func(context.Context, *http.Request) (string, error) {
		during = sumBy(t, collect(t, reader)["http_requests_active"], "service.name", "rest")
		return "ok", nil
	}, resource.Produces("application/json")))

	serve(p, res, "Get", "/")
	assert.Equal(t, int64(1), during)
	assert.Equal(t, int64(0), sumBy(t, collect(t, reader)["http_requests_active"], "service.name", "rest"))
}

func TestRecorder_PrometheusHandler(t *testing.T) {
	t.Parallel()

	rec := MustNew(WithServiceVersion("1.2.3"))
	t.Cleanup(func() { _ = rec.Shutdown(context.Background()) })
	p := pipeline.MustNew(pipeline.WithFinishers(rec.Finisher()))
	serve(p, newOrders(t), "Get", "/orders/1")

	h, err := rec.Handler()
	require.NoError(t, err)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(w.Result().Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(body), "http_requests_total")
	assert.Contains(t, string(body), "http_request_duration_seconds")
	assert.Contains(t, string(body), `rest_method="Get"`)
}

func TestRecorder_PushExporters(t *testing.T) {
	t.Parallel()

	paths := make(chan string, 4)
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.Path
		w.Header().Set("Content-Type", "application/x-protobuf")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(collector.Close)

	var stdout bytes.Buffer
	rec := MustNew(
		WithStdout(&stdout),
		WithOTLP(strings.TrimPrefix(collector.URL, "http://"), true),
		WithExportInterval(time.Hour),
	)
	p := pipeline.MustNew(pipeline.WithFinishers(rec.Finisher()))
	serve(p, newOrders(t), "Get", "/orders/1")
	require.NoError(t, rec.Shutdown(context.Background()))

	assert.Contains(t, stdout.String(), "http_requests_total")
	select {
	case path := <-paths:
		assert.Equal(t, "/v1/metrics", path)
	case <-time.After(5 * time.Second):
		t.Fatal("collector received nothing")
	}
}

func TestRecorder_CustomProviderHasNoHandler(t *testing.T) {
	t.Parallel()

	mp := sdkmetric.NewMeterProvider()
	rec := MustNew(WithMeterProvider(mp))
	_, err := rec.Handler()
	require.ErrorIs(t, err, ErrNoHandler)

	require.NoError(t, rec.Shutdown(context.Background()))
	require.NoError(t, mp.ForceFlush(context.Background()), "custom providers stay open")
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := New(WithDurationBuckets(1, 0.5))
	require.ErrorIs(t, err, errBuckets)
	_, err = New(WithSizeBuckets())
	require.ErrorIs(t, err, errBuckets)
	_, err = New(WithMeterProvider(nil))
	require.Error(t, err)
	_, err = New(WithStdout(io.Discard), WithExportInterval(0))
	require.Error(t, err)
	assert.Panics(t, func() { MustNew(WithDurationBuckets()) })
}

func TestShutdown_StopsRecording(t *testing.T) {
	t.Parallel()

	rec := MustNew()
	require.NoError(t, rec.Shutdown(context.Background()))
	require.NoError(t, rec.Shutdown(context.Background()))

	p := pipeline.MustNew(pipeline.WithFinishers(rec.Finisher()))
	assert.NotPanics(t, func() { serve(p, newOrders(t), "Get", "/orders/1") })
}

func TestStatusClass(t *testing.T) {
	t.Parallel()

	for code, want := range map[int]string{101: "1xx", 204: "2xx", 304: "3xx", 415: "4xx", 503: "5xx", 0: "unknown"} {
		assert.Equal(t, want, statusClass(code), "status %d", code)
	}
}
