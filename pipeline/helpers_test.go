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

package pipeline

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"rivaas.dev/rest/converter"
	"rivaas.dev/rest/logging"
	"rivaas.dev/rest/resource"
	"rivaas.dev/rest/response"
)

// recordingTransport records the order of transport calls.
type recordingTransport struct {
	events   []string
	status   int
	header   http.Header
	body     bytes.Buffer
	writes   []int
	writeErr error
}

func newRecordingTransport() *recordingTransport {
	return &recordingTransport{header: http.Header{}}
}

func (t *recordingTransport) SetStatus(code int) {
	t.status = code
	t.events = append(t.events, "status")
}

func (t *recordingTransport) SetHeader(key string, values []string) {
	t.header[key] = values
	t.events = append(t.events, "header:"+key)
}

func (t *recordingTransport) Write(p []byte) (int, error) {
	if t.writeErr != nil {
		return 0, t.writeErr
	}
	t.writes = append(t.writes, len(p))
	t.events = append(t.events, "body")
	return t.body.Write(p)
}

func (t *recordingTransport) Commit() error {
	t.events = append(t.events, "commit")
	return nil
}

// spyConverter handles one media type and counts its calls.
type spyConverter struct {
	mediaType string

	mu      sync.Mutex
	reads   int
	writes  int
	written []any
}

func (s *spyConverter) Supports(mediaType string) bool {
	return converter.Matches(mediaType, s.mediaType)
}

func (s *spyConverter) Read(r *http.Request, _ reflect.Type) (any, error) {
	s.mu.Lock()
	s.reads++
	s.mu.Unlock()
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (s *spyConverter) Write(v any, mediaType string) (*response.Response, error) {
	s.mu.Lock()
	s.writes++
	s.written = append(s.written, v)
	s.mu.Unlock()
	return converter.Encoded(mediaType, []byte(fmt.Sprint(v))), nil
}

func (s *spyConverter) counts() (reads, writes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads, s.writes
}

// closeTracker is a response body that records Close.
type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

type harness struct {
	pipeline *Pipeline
	logs     *logging.TestHelper
	spy      *spyConverter
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	logs := logging.NewTestHelper(t)
	spy := &spyConverter{mediaType: "text/x-spy"}
	base := []Option{
		WithLogger(logs.Logger),
		WithRegistry(converter.Default().With(spy)),
	}
	p, err := New(append(base, opts...)...)
	require.NoError(t, err)
	return &harness{pipeline: p, logs: logs, spy: spy}
}

func (h *harness) serve(res *resource.Resource, method string, req *http.Request) (*response.Response, *recordingTransport) {
	tr := newRecordingTransport()
	x := h.pipeline.NewExchange(req)
	resp := h.pipeline.Serve(x, h.pipeline.Handler(res, method), tr)
	return resp, tr
}

func request(method, target, contentType, body string) *http.Request {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if contentType != "" {
		req.Header.Set(response.HeaderContentType, contentType)
	}
	return req
}

type order struct {
	XMLName xml.Name `json:"-" xml:"order"`
	ID      string   `json:"id" xml:"id"`
	Qty     int      `json:"qty" xml:"qty" validate:"gte=1"`
	Note    string   `json:"note,omitempty" xml:"note,omitempty" validate_create:"required"`
}

var errBoom = errors.New("boom")

func returning(v any, err error) func(context.Context, *http.Request) (any, error) {
	return func(context.Context, *http.Request) (any, error) { return v, err }
}
