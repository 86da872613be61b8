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

package accesslog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rerrors "rivaas.dev/rest/errors"
	"rivaas.dev/rest/logging"
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
		if d := r.URL.Query().Get("sleep"); d != "" {
			ms, _ := strconv.Atoi(d)
			time.Sleep(time.Duration(ms) * time.Millisecond)
		}
		return &order{ID: "1"}, nil
	}, resource.Produces("application/json")))
	require.NoError(t, resource.RequestFunc(orders, "Fail", func(context.Context, *http.Request) (*order, error) {
		return nil, errors.New("boom")
	}, resource.Produces("application/json")))
	return orders
}

func serve(t *testing.T, f *Finisher, id, method, target string) {
	t.Helper()
	p := pipeline.MustNew(
		pipeline.WithLogger(logging.Discard()),
		pipeline.WithFinishers(f),
		pipeline.WithRequestIDGenerator(func() string { return id }),
	)
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("User-Agent", "probe/1.0")
	req.RemoteAddr = "203.0.113.9:51000"
	p.Endpoint(newOrders(t), method).ServeHTTP(httptest.NewRecorder(), req)
}

func TestFinisher_LogsSuccess(t *testing.T) {
	t.Parallel()

	th := logging.NewTestHelper(t)
	serve(t, New(WithLogger(th.Logger)), "r-1", "Get", "/orders/1")

	th.AssertLog(t, "INFO", "access", map[string]any{
		"method":     "GET",
		"path":       "/orders/1",
		"status":     200,
		"resource":   "Orders.Get",
		"client_ip":  "203.0.113.9",
		"user_agent": "probe/1.0",
		"request_id": "r-1",
		"outcome":    "success",
	})
}

func TestFinisher_Levels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		method  string
		target  string
		level   string
		status  int
		outcome string
	}{
		{"client error", "Get", "/orders/1?missing=1", "WARN", http.StatusNotFound, "application_error"},
		{"server error", "Fail", "/orders/1", "ERROR", http.StatusInternalServerError, "unclassified_failure"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			th := logging.NewTestHelper(t)
			serve(t, New(WithLogger(th.Logger)), "r-2", tt.method, tt.target)
			th.AssertLog(t, tt.level, "access", map[string]any{"status": tt.status, "outcome": tt.outcome})
		})
	}
}

func TestFinisher_Exclusions(t *testing.T) {
	t.Parallel()

	th := logging.NewTestHelper(t)
	f := New(WithLogger(th.Logger), WithExcludePaths("/orders/1"), WithExcludePrefixes("/internal/"))
	serve(t, f, "r-3", "Get", "/orders/1")
	serve(t, f, "r-4", "Get", "/internal/orders")
	assert.False(t, th.ContainsLog("access"))

	serve(t, f, "r-5", "Get", "/orders/2")
	assert.True(t, th.ContainsLog("access"))
}

func TestFinisher_ErrorsOnly(t *testing.T) {
	t.Parallel()

	th := logging.NewTestHelper(t)
	f := New(WithLogger(th.Logger), WithErrorsOnly())
	serve(t, f, "r-6", "Get", "/orders/1")
	assert.False(t, th.ContainsLog("access"))

	serve(t, f, "r-7", "Get", "/orders/1?missing=1")
	th.AssertLog(t, "WARN", "access", map[string]any{"request_id": "r-7"})
}

func TestFinisher_SlowBypassesFilters(t *testing.T) {
	t.Parallel()

	th := logging.NewTestHelper(t)
	f := New(WithLogger(th.Logger), WithSampleRate(0), WithSlowThreshold(5*time.Millisecond))
	serve(t, f, "r-8", "Get", "/orders/1")
	assert.False(t, th.ContainsLog("access"))

	serve(t, f, "r-9", "Get", "/orders/1?sleep=20")
	th.AssertLog(t, "WARN", "access", map[string]any{"slow": true, "request_id": "r-9"})
}

func TestFinisher_NoLogger(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() { serve(t, New(), "r-10", "Get", "/orders/1") })
}

func TestSampleByHash(t *testing.T) {
	t.Parallel()

	assert.True(t, sampleByHash("", 0))
	assert.True(t, sampleByHash("abc", 1))
	assert.False(t, sampleByHash("abc", 0))
	for i := range 50 {
		id := "req-" + strconv.Itoa(i)
		assert.Equal(t, sampleByHash(id, 0.3), sampleByHash(id, 0.3), "decision must be stable for %s", id)
	}

	for i := range 2000 {
		id := "req-" + strconv.Itoa(i)
		require.True(t, sampleByHash(id, 1), "rate 1 keeps %s", id)
		require.False(t, sampleByHash(id, 0), "rate 0 drops %s", id)
	}

	kept := 0
	for i := range 2000 {
		if sampleByHash("req-"+strconv.Itoa(i), 0.5) {
			kept++
		}
	}
	assert.InDelta(t, 1000, kept, 150)
}

func TestWithSampleRateClamps(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1.0, New(WithSampleRate(3)).sampleRate)
	assert.Equal(t, 0.0, New(WithSampleRate(-1)).sampleRate)
}
