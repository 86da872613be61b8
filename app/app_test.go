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

package app

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rivaas.dev/rest/config"
	"rivaas.dev/rest/internal/orders"
	"rivaas.dev/rest/logging"
	"rivaas.dev/rest/resource"
)

const testOrigin = "https://shop.example"

func testSettings(t *testing.T, yaml string) *Settings {
	t.Helper()
	s := &Settings{}
	c := config.MustNew(
		config.WithContent([]byte("cors:\n  allow_origins: \""+testOrigin+"\"\n"), config.FormatYAML),
		config.WithContent([]byte(yaml), config.FormatYAML),
		config.WithBinding(s),
	)
	require.NoError(t, c.Load(context.Background()))
	return s
}

type testApp struct {
	*App
	logs   *logging.TestHelper
	store  *orders.Store
	server *httptest.Server
}

func newTestApp(t *testing.T, yaml string) *testApp {
	t.Helper()
	logs := logging.NewTestHelper(t)
	a, err := New(testSettings(t, yaml), WithLogger(logs.Logger), WithBannerOutput(nil))
	require.NoError(t, err)

	store := orders.NewStore()
	res, err := orders.Resource(store)
	require.NoError(t, err)
	for _, r := range orders.Routes {
		a.Mount(r.Method, r.Path, res, r.Name)
	}
	server := httptest.NewServer(a.Handler())
	t.Cleanup(server.Close)
	return &testApp{App: a, logs: logs, store: store, server: server}
}

func (ta *testApp) do(t *testing.T, method, path, body string, header map[string]string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, ta.server.URL+path, r)
	require.NoError(t, err)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := ta.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestDefaultSettings(t *testing.T) {
	t.Parallel()

	s := DefaultSettings()
	assert.Equal(t, "restd", s.Service.Name)
	assert.Equal(t, ":8080", s.Server.Addr)
	assert.Equal(t, 30*time.Second, s.Server.ShutdownTimeout)
	assert.Equal(t, "uuid", s.RequestIDs)
	assert.True(t, s.CORS.AllowCredentials)
	assert.Equal(t, -1, s.CORS.MaxAge)
	assert.Equal(t, []string{"X-Request-Id"}, s.CORS.ExposeHeaders)
	assert.True(t, s.Metrics.Enabled)
	assert.False(t, s.RateLimit.Enabled)
	require.NoError(t, s.Validate())
}

func TestLoadSettings_EnvironmentWins(t *testing.T) {
	t.Setenv("RESTD_SERVER__ADDR", ":9999")
	t.Setenv("RESTD_CORS__ALLOW_ORIGINS", "https://a.example,https://b.example")

	s, err := LoadSettings(context.Background(),
		config.WithContent([]byte("server:\n  addr: \":7000\"\nservice:\n  name: orders\n"), config.FormatYAML))
	require.NoError(t, err)
	assert.Equal(t, ":9999", s.Server.Addr)
	assert.Equal(t, "orders", s.Service.Name)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, s.CORS.AllowOrigins)
}

func TestLoadSettings_Invalid(t *testing.T) {
	t.Parallel()

	_, err := LoadSettings(context.Background(),
		config.WithContent([]byte("request_ids: sequence\n"), config.FormatYAML))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request_ids")
}

func TestSettingsValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Settings)
		want   string
	}{
		{"environment", func(s *Settings) { s.Service.Environment = "staging" }, "service.environment"},
		{"level", func(s *Settings) { s.Logging.Level = "loud" }, "logging.level"},
		{"format", func(s *Settings) { s.Logging.Format = "xml" }, "logging.format"},
		{"errors", func(s *Settings) { s.Errors.Format = "html" }, "errors.format"},
		{"chunk size", func(s *Settings) { s.Server.ChunkSize = 0 }, "chunk_size"},
		{"rate limit", func(s *Settings) { s.RateLimit.Enabled = true; s.RateLimit.Burst = 0 }, "rate_limit"},
		{"sample rate", func(s *Settings) { s.Tracing.SampleRate = 2 }, "tracing.sample_rate"},
		{"access log", func(s *Settings) { s.AccessLog.SampleRate = -0.5 }, "access_log.sample_rate"},
		{"name", func(s *Settings) { s.Service.Name = "" }, "service.name"},
		{"otlp protocol", func(s *Settings) { s.Tracing.OTLPProtocol = "udp" }, "tracing.otlp_protocol"},
		{"export interval", func(s *Settings) { s.Metrics.ExportInterval = 0 }, "metrics.export_interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := DefaultSettings()
			tt.mutate(s)
			err := s.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)

			_, err = New(s)
			require.Error(t, err)
		})
	}
}

func TestApp_OrdersLifecycle(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t, "")

	resp, body := ta.do(t, http.MethodPost, "/orders", `{"sku":"A1","quantity":2}`,
		map[string]string{"Content-Type": "application/json"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created orders.Order
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, "/orders/"+created.ID, resp.Header.Get("Location"))
	assert.NotEmpty(t, resp.Header.Get(resource.HeaderRequestID))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "SAMEORIGIN", resp.Header.Get("X-Frame-Options"))
	ta.logs.AssertLog(t, "INFO", "access", map[string]any{
		"resource":   "Orders.Create",
		"status":     http.StatusCreated,
		"request_id": resp.Header.Get(resource.HeaderRequestID),
	})

	resp, body = ta.do(t, http.MethodGet, "/orders/"+created.ID, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"sku":"A1"`)

	resp, _ = ta.do(t, http.MethodDelete, "/orders/"+created.ID, "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = ta.do(t, http.MethodGet, "/orders/"+created.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Empty(t, body)
}

func TestApp_ValidationAndMediaTypes(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t, "")

	resp, _ := ta.do(t, http.MethodPost, "/orders", `{"sku":"A1","quantity":0}`,
		map[string]string{"Content-Type": "application/json"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ta.do(t, http.MethodPost, "/orders", `sku: A1`,
		map[string]string{"Content-Type": "application/yaml"})
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
	assert.Equal(t, 0, ta.store.Len())
}

func TestApp_ProblemDetails(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t, "errors:\n  format: rfc9457\n  type_base: https://errors.example\n")
	resp, body := ta.do(t, http.MethodGet, "/orders/nope", "", nil)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "application/problem+json"))
	assert.Contains(t, string(body), `"status":404`)
}

func TestApp_CORS(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t, "")

	resp, body := ta.do(t, http.MethodOptions, "/orders/42", "", map[string]string{
		"Origin":                        testOrigin,
		"Access-Control-Request-Method": http.MethodDelete,
	})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, body)
	assert.Equal(t, testOrigin, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))

	resp, _ = ta.do(t, http.MethodGet, "/orders", "", map[string]string{"Origin": testOrigin})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, testOrigin, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "X-Request-Id", resp.Header.Get("Access-Control-Expose-Headers"))

	resp, _ = ta.do(t, http.MethodGet, "/orders", "", map[string]string{"Origin": "https://other.example"})
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestApp_Compression(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t, "compression:\n  min_size: 64\n  brotli: false\n")
	for range 5 {
		_, err := ta.store.Create(context.Background(), &orders.Order{SKU: "LONGSKU", Quantity: 10})
		require.NoError(t, err)
	}

	resp, body := ta.do(t, http.MethodGet, "/orders", "", map[string]string{"Accept-Encoding": "gzip"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
	assert.Contains(t, resp.Header.Values("Vary"), "Accept-Encoding")

	zr, err := gzip.NewReader(bytes.NewReader(body))
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, 5, strings.Count(string(plain), "LONGSKU"))
}

func TestApp_RateLimit(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t, "rate_limit:\n  enabled: true\n  requests_per_second: 0.001\n  burst: 1\n")

	resp, _ := ta.do(t, http.MethodGet, "/orders", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = ta.do(t, http.MethodGet, "/orders", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestApp_MetricsAndHealth(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t, "")
	ta.do(t, http.MethodGet, "/orders", "", nil)

	resp, body := ta.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "http_requests_total")
	assert.Contains(t, string(body), `rest_method="List"`)

	resp, _ = ta.do(t, http.MethodGet, LivezPath, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = ta.do(t, http.MethodGet, ReadyzPath, "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, "not serving yet")
}

func TestApp_MetricsDisabled(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t, "metrics:\n  enabled: false\ncors:\n  enabled: false\n")
	resp, _ := ta.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = ta.do(t, http.MethodOptions, "/orders", "", map[string]string{
		"Origin":                        testOrigin,
		"Access-Control-Request-Method": http.MethodPost,
	})
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestApp_ServeAndShutdown(t *testing.T) {
	t.Parallel()

	logs := logging.NewTestHelper(t)
	s := testSettings(t, "server:\n  shutdown_timeout: 2s\ntracing:\n  enabled: true\n")
	a, err := New(s, WithLogger(logs.Logger), WithBannerOutput(nil))
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, ln) }()

	require.Eventually(t, a.Ready, time.Second, 10*time.Millisecond)
	resp, err := http.Get("http://" + ln.Addr().String() + ReadyzPath)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	assert.False(t, a.Ready())
	logs.AssertLog(t, "INFO", "server starting", map[string]any{"tracing_enabled": true})
	logs.AssertLog(t, "INFO", "server exited", nil)
}

func TestApp_ServeTwice(t *testing.T) {
	t.Parallel()

	a := MustNew(testSettings(t, ""), WithLogger(logging.Discard()), WithBannerOutput(nil))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ln1, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = a.Serve(ctx, ln1) }()
	require.Eventually(t, a.Ready, time.Second, 10*time.Millisecond)

	ln2, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.ErrorIs(t, a.Serve(ctx, ln2), errAlreadyServing)
}

func TestBannerAndRoutes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	a := MustNew(testSettings(t, "service:\n  name: shop\n  version: 1.4.0\n"), WithLogger(logging.Discard()), WithBannerOutput(&buf))
	res, err := orders.Resource(orders.NewStore())
	require.NoError(t, err)
	for _, r := range orders.Routes {
		a.Mount(r.Method, r.Path, res, r.Name)
	}

	a.printStartupBanner("[::]:8080")
	out := buf.String()
	assert.Contains(t, out, "http://0.0.0.0:8080")
	assert.Contains(t, out, "1.4.0")
	assert.Contains(t, out, "/orders/{id}")
	assert.Contains(t, out, "Orders.Delete")
	assert.Contains(t, out, testOrigin)
	assert.Contains(t, out, "10 MiB")
	assert.Contains(t, out, "from 1.0 KiB")

	var routes bytes.Buffer
	a.PrintRoutes(&routes)
	assert.Contains(t, routes.String(), "Orders.Create")
	assert.Len(t, a.Routes(), len(orders.Routes))
}
