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
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rerrors "rivaas.dev/rest/errors"
	"rivaas.dev/rest/resource"
	"rivaas.dev/rest/response"
)

func answering(resp *response.Response, err error) Handler {
	return HandlerFunc(func(*Exchange) (*response.Response, error) { return resp, err })
}

func finalize(h *harness, next Handler) (*response.Response, *recordingTransport) {
	tr := newRecordingTransport()
	x := h.pipeline.NewExchange(request(http.MethodGet, "/things", "", ""))
	return h.pipeline.Serve(x, next, tr), tr
}

func TestFinalize_WriteOrder(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	resp := textResponse("text/plain", "hello")
	resp.Header().Set("X-B", "b")
	resp.Header().Set("X-A", "a")

	_, tr := finalize(h, answering(resp, nil))

	assert.Equal(t, []string{
		"status",
		"header:Content-Length",
		"header:Content-Type",
		"header:X-A",
		"header:X-B",
		"header:X-Request-Id",
		"body",
		"commit",
	}, tr.events)
	assert.Equal(t, "5", tr.header.Get("Content-Length"))
	assert.Equal(t, "hello", tr.body.String())
}

func TestFinalize_UnknownLengthOmitsContentLength(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	resp := response.New()
	resp.SetBody(strings.NewReader("streamed"), -1)

	_, tr := finalize(h, answering(resp, nil))

	assert.NotContains(t, tr.events, "header:Content-Length")
	assert.Equal(t, "streamed", tr.body.String())
}

func TestFinalize_Chunks(t *testing.T) {
	t.Parallel()

	h := newHarness(t, WithChunkSize(3))
	_, tr := finalize(h, answering(textResponse("text/plain", "abcdefgh"), nil))

	assert.Equal(t, []int{3, 3, 2}, tr.writes)
	assert.Equal(t, "abcdefgh", tr.body.String())
}

func TestFinalize_DefaultChunkSize(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	payload := strings.Repeat("x", DefaultChunkSize+10)
	_, tr := finalize(h, answering(textResponse("text/plain", payload), nil))

	assert.Equal(t, []int{DefaultChunkSize, 10}, tr.writes)
}

func TestFinalize_BodyClosed(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	body := &closeTracker{Reader: strings.NewReader("data")}
	resp := response.New()
	resp.SetBody(body, 4)

	finalize(h, answering(resp, nil))
	assert.True(t, body.closed)
}

func TestFinalize_WriteFailureKeepsOutcome(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	body := &closeTracker{Reader: strings.NewReader("data")}
	resp := response.WithStatus(http.StatusCreated)
	resp.SetBody(body, 4)

	tr := newRecordingTransport()
	tr.writeErr = errors.New("connection reset")
	x := h.pipeline.NewExchange(request(http.MethodGet, "/", "", ""))
	got := h.pipeline.Serve(x, answering(resp, nil), tr)

	assert.Same(t, resp, got)
	assert.Equal(t, http.StatusCreated, got.StatusCode())
	assert.True(t, body.closed)
	h.logs.AssertLog(t, "WARN", "writing response failed", map[string]any{
		"status":        201,
		"error.message": "connection reset",
	})
}

func TestFinalize_NilResponse(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	resp, _ := finalize(h, answering(nil, nil))

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode())
	assert.Equal(t, 1, h.logs.CountLevel("FATAL"))
}

func TestFinalize_StagePanicRecovered(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	resp, tr := finalize(h, HandlerFunc(func(*Exchange) (*response.Response, error) {
		panic("stage exploded")
	}))

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode())
	assert.Equal(t, http.StatusInternalServerError, tr.status)
	assert.True(t, h.logs.ContainsLog("request failed"))
}

func TestFinalize_BuilderPanics(t *testing.T) {
	t.Parallel()

	h := newHarness(t, WithErrorResponseBuilder(ErrorResponseBuilderFunc(
		func(*http.Request, *resource.RequestContext, error) *response.Response {
			panic("builder bug")
		})))

	resp, tr := finalize(h, answering(nil, rerrors.NewApplicationError("bad")))

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode())
	assert.Zero(t, tr.body.Len())
	h.logs.AssertLog(t, "WARN", "error response builder failed", map[string]any{
		"builder":       "pipeline.ErrorResponseBuilderFunc",
		"panic":         "builder bug",
		"error.message": "bad",
	})
}

func TestFinalize_BuilderReturnsNil(t *testing.T) {
	t.Parallel()

	h := newHarness(t, WithErrorResponseBuilder(ErrorResponseBuilderFunc(
		func(*http.Request, *resource.RequestContext, error) *response.Response { return nil })))

	resp, _ := finalize(h, answering(nil, errBoom))

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode())
	h.logs.AssertLog(t, "WARN", "error response builder returned no response", map[string]any{
		"builder": "pipeline.ErrorResponseBuilderFunc",
	})
}

func TestFinalize_LogWriterPanics(t *testing.T) {
	t.Parallel()

	h := newHarness(t, WithErrorLogWriter(ErrorLogWriterFunc(
		func(*http.Request, *response.Response, *resource.RequestContext, error) {
			panic("writer bug")
		})))

	resp, _ := finalize(h, answering(nil, errBoom))

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode())
	h.logs.AssertLog(t, "FATAL", "error log writer failed", map[string]any{
		"writer":        "pipeline.ErrorLogWriterFunc",
		"panic":         "writer bug",
		"error.message": "boom",
	})
}

func TestFinalize_CustomBuilderGetsOriginalError(t *testing.T) {
	t.Parallel()

	var got error
	h := newHarness(t, WithErrorResponseBuilder(ErrorResponseBuilderFunc(
		func(_ *http.Request, _ *resource.RequestContext, err error) *response.Response {
			got = err
			return response.WithStatus(http.StatusServiceUnavailable)
		})))

	resp, _ := finalize(h, answering(nil, errBoom))

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode())
	assert.ErrorIs(t, got, errBoom)
}

func TestFinalize_FinishersRunInOrder(t *testing.T) {
	t.Parallel()

	var trail []string
	finisher := func(name string) Finisher {
		return FinisherFunc(func(_ *http.Request, resp *response.Response, rc *resource.RequestContext) {
			trail = append(trail, name)
			assert.NotEmpty(t, resp.Header().Get(resource.HeaderRequestID))
			resp.Header().Add("X-Trail", name)
		})
	}
	h := newHarness(t, WithFinishers(finisher("first"), finisher("second")))

	_, tr := finalize(h, answering(response.NoContent(), nil))

	assert.Equal(t, []string{"first", "second"}, trail)
	assert.Equal(t, []string{"first", "second"}, tr.header.Values("X-Trail"))
}

func TestFinalize_FinishersSeeErrorOutcome(t *testing.T) {
	t.Parallel()

	var outcome Outcome
	h := newHarness(t, WithFinishers(FinisherFunc(func(_ *http.Request, _ *response.Response, rc *resource.RequestContext) {
		outcome = OutcomeOf(rc.Err())
	})))

	finalize(h, answering(nil, &rerrors.NotFoundError{Resource: "Orders", Method: "x"}))
	assert.Equal(t, OutcomeApplicationError, outcome)

	finalize(h, answering(nil, errBoom))
	assert.Equal(t, OutcomeUnclassifiedFailure, outcome)

	finalize(h, answering(response.NoContent(), nil))
	assert.Equal(t, OutcomeSuccess, outcome)
}

func TestOutcomeString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "success", OutcomeSuccess.String())
	assert.Equal(t, "application_error", OutcomeApplicationError.String())
	assert.Equal(t, "unclassified_failure", OutcomeUnclassifiedFailure.String())
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"application", rerrors.NewApplicationError("bad"), http.StatusBadRequest},
		{"not found", &rerrors.NotFoundError{}, http.StatusNotFound},
		{"unsupported media type", &rerrors.UnsupportedMediaTypeError{}, http.StatusUnsupportedMediaType},
		{"declared status", rerrors.WithStatus(errBoom, http.StatusConflict), http.StatusConflict},
		{"conflict", &rerrors.ConfigurationConflictError{}, http.StatusInternalServerError},
		{"plain", errBoom, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestFormattingErrorResponseBuilder(t *testing.T) {
	t.Parallel()

	h := newHarness(t, WithErrorResponseBuilder(FormattingErrorResponseBuilder{
		Formatter: &rerrors.Simple{HideUnclassified: true},
	}))

	_, tr := finalize(h, answering(nil, rerrors.NewApplicationError("out of stock").WithCode("stock")))
	assert.Equal(t, http.StatusBadRequest, tr.status)
	var body map[string]any
	require.NoError(t, json.Unmarshal(tr.body.Bytes(), &body))
	assert.Equal(t, "stock", body["code"])

	_, tr = finalize(h, answering(nil, errBoom))
	require.NoError(t, json.Unmarshal(tr.body.Bytes(), &body))
	assert.Equal(t, http.StatusText(http.StatusInternalServerError), body["error"])
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	t.Run("echoes incoming", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		req := request(http.MethodGet, "/", "", "")
		req.Header.Set(resource.HeaderRequestID, "req-42")
		tr := newRecordingTransport()
		h.pipeline.Serve(h.pipeline.NewExchange(req), answering(response.NoContent(), nil), tr)

		assert.Equal(t, "req-42", tr.header.Get(resource.HeaderRequestID))
	})

	t.Run("ulid", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, WithULIDRequestIDs())
		_, tr := finalize(h, answering(response.NoContent(), nil))

		_, err := ulid.ParseStrict(tr.header.Get(resource.HeaderRequestID))
		require.NoError(t, err)
	})

	t.Run("ulids increase", func(t *testing.T) {
		t.Parallel()

		a, b := NewULID(), NewULID()
		assert.Less(t, a, b)
	})

	t.Run("request id in logs", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, WithRequestIDGenerator(func() string { return "fixed" }))
		finalize(h, answering(nil, errBoom))
		h.logs.AssertLog(t, "FATAL", "request failed", map[string]any{"request_id": "fixed"})
	})
}

func TestEndpoint_HTTPTransport(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	res := resource.New("Orders")
	require.NoError(t, resource.RequestFunc(res, "Get", func(context.Context, *http.Request) (map[string]string, error) {
		return map[string]string{"id": "o-1"}, nil
	}, resource.Produces("application/json")))
	require.NoError(t, resource.RequestFunc(res, "Delete", returning(nil, nil)))

	rec := httptest.NewRecorder()
	h.pipeline.Endpoint(res, "Get").ServeHTTP(rec, request(http.MethodGet, "/orders/o-1", "", ""))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assert.JSONEq(t, `{"id":"o-1"}`, rec.Body.String())
	assert.Equal(t, rec.Header().Get("Content-Length"), strconv.Itoa(rec.Body.Len()))

	rec = httptest.NewRecorder()
	h.pipeline.Endpoint(res, "Delete").ServeHTTP(rec, request(http.MethodDelete, "/orders/o-1", "", ""))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Length"))
}

func TestHTTPTransport_StatusOnce(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	tr := NewHTTPTransport(rec)
	tr.SetStatus(http.StatusAccepted)
	tr.SetHeader("x-one", []string{"1"})
	_, err := tr.Write([]byte("a"))
	require.NoError(t, err)
	tr.SetStatus(http.StatusTeapot)
	require.NoError(t, tr.Commit())

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, http.StatusAccepted, tr.Status())
	assert.Equal(t, "1", rec.Header().Get("X-One"))
	assert.Same(t, rec, tr.Unwrap())
}

func TestNew_NilRegistry(t *testing.T) {
	t.Parallel()

	_, err := New(WithRegistry(nil))
	require.ErrorIs(t, err, ErrNilRegistry)
	assert.Panics(t, func() { MustNew(WithRegistry(nil)) })
}

func textResponse(contentType, body string) *response.Response {
	resp := response.New()
	resp.SetContentType(contentType)
	resp.SetBodyBytes([]byte(body))
	return resp
}
