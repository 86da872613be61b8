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
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"runtime/debug"
	"slices"
	"sync"

	rerrors "rivaas.dev/rest/errors"
	"rivaas.dev/rest/logging"
	"rivaas.dev/rest/resource"
	"rivaas.dev/rest/response"
)

// DefaultChunkSize is the size of the body chunks written to the transport.
const DefaultChunkSize = 4 << 10

var errNoResponse = errors.New("handler returned neither a response nor an error")

// Finisher post-processes a response after the outcome is decided and
// before it is written. Finishers may change headers and must not fail.
type Finisher interface {
	Finish(req *http.Request, resp *response.Response, rc *resource.RequestContext)
}

// FinisherFunc adapts a function to [Finisher].
type FinisherFunc func(req *http.Request, resp *response.Response, rc *resource.RequestContext)

// Finish implements [Finisher].
func (f FinisherFunc) Finish(req *http.Request, resp *response.Response, rc *resource.RequestContext) {
	f(req, resp, rc)
}

// Outcome is how an exchange ended.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeApplicationError
	OutcomeUnclassifiedFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeApplicationError:
		return "application_error"
	default:
		return "unclassified_failure"
	}
}

// OutcomeOf classifies a recorded request error.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case rerrors.Classify(err) == rerrors.KindRecoverable:
		return OutcomeApplicationError
	default:
		return OutcomeUnclassifiedFailure
	}
}

// ResponseFinalizer is the single place where every exchange gets a
// response. It runs the chain, turns errors into responses, logs them,
// runs the finishers in order and writes the result:
//
//	dispatching -> success | application error | unclassified failure
//	            -> finishing -> writing -> done
//
// A panicking or nil-returning [ErrorResponseBuilder] is replaced by a
// bodyless 500 and a warning naming the builder type. A panicking
// [ErrorLogWriter] is reported at FATAL together with the original error.
// Transport write failures are logged as warnings and do not change the
// returned response. The response body is always closed.
type ResponseFinalizer struct {
	Builder   ErrorResponseBuilder
	Writer    ErrorLogWriter
	Finishers []Finisher
	Logger    *logging.Logger
	ChunkSize int

	pool sync.Pool
}

// Finalize runs next for x and writes the outcome to t.
func (f *ResponseFinalizer) Finalize(x *Exchange, next Handler, t Transport) *response.Response {
	resp, err := f.dispatch(x, next)
	if err == nil && resp == nil {
		err = rerrors.NewInternalError("dispatch", errNoResponse)
	}
	if err != nil {
		x.Context.RecordError(err)
		resp = f.build(x, err)
		f.logError(x, resp, err)
	}
	defer f.close(x, resp)

	for _, fin := range f.Finishers {
		fin.Finish(x.Request, resp, x.Context)
	}

	if werr := f.write(resp, t); werr != nil {
		x.Logger.Warn("writing response failed",
			"status", resp.StatusCode(),
			logging.ErrorAttr(werr),
		)
	}
	return resp
}

func (f *ResponseFinalizer) dispatch(x *Exchange, next Handler) (resp *response.Response, err error) {
	defer func() {
		if p := recover(); p != nil {
			resp = nil
			err = rerrors.NewPanicError("dispatch", p, debug.Stack())
		}
	}()
	return next.Handle(x)
}

func (f *ResponseFinalizer) build(x *Exchange, err error) (resp *response.Response) {
	builder := f.builder()
	defer func() {
		if p := recover(); p != nil {
			x.Logger.Warn("error response builder failed",
				"builder", fmt.Sprintf("%T", builder),
				"panic", fmt.Sprint(p),
				logging.ErrorAttr(err),
			)
			resp = response.WithStatus(http.StatusInternalServerError)
		}
	}()
	resp = builder.Build(x.Request, x.Context, err)
	if resp == nil {
		x.Logger.Warn("error response builder returned no response",
			"builder", fmt.Sprintf("%T", builder),
			logging.ErrorAttr(err),
		)
		resp = response.WithStatus(http.StatusInternalServerError)
	}
	return resp
}

func (f *ResponseFinalizer) logError(x *Exchange, resp *response.Response, err error) {
	writer := f.writer()
	defer func() {
		if p := recover(); p != nil {
			x.Logger.Fatal("error log writer failed",
				"writer", fmt.Sprintf("%T", writer),
				"panic", fmt.Sprint(p),
				"status", resp.StatusCode(),
				logging.ErrorAttr(err),
			)
		}
	}()
	writer.Write(x.Request, resp, x.Context, err)
}

// write sends status, Content-Length, Content-Type, the remaining headers
// in key order and then the body in chunks.
func (f *ResponseFinalizer) write(resp *response.Response, t Transport) error {
	status := resp.StatusCode()
	t.SetStatus(status)

	if n, ok := resp.ContentLengthHeader(); ok && bodyAllowed(status) {
		t.SetHeader(response.HeaderContentLength, []string{n})
	}
	if ct := resp.ContentType(); ct != "" {
		t.SetHeader(response.HeaderContentType, []string{ct})
	}
	header := resp.Header()
	for _, key := range slices.Sorted(maps.Keys(header)) {
		if key == response.HeaderContentType || key == response.HeaderContentLength {
			continue
		}
		t.SetHeader(key, slices.Clone(header[key]))
	}

	body := resp.Body()
	if body == nil || !bodyAllowed(status) {
		return t.Commit()
	}

	buf := f.buffer()
	defer f.pool.Put(buf)
	for {
		n, rerr := body.Read(*buf)
		if n > 0 {
			if _, werr := t.Write((*buf)[:n]); werr != nil {
				return werr
			}
		}
		if rerr == io.EOF {
			return t.Commit()
		}
		if rerr != nil {
			return rerr
		}
	}
}

func (f *ResponseFinalizer) close(x *Exchange, resp *response.Response) {
	if err := resp.Close(); err != nil {
		x.Logger.Warn("closing response body failed", logging.ErrorAttr(err))
	}
}

func (f *ResponseFinalizer) buffer() *[]byte {
	if b, ok := f.pool.Get().(*[]byte); ok {
		return b
	}
	size := f.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	b := make([]byte, size)
	return &b
}

func (f *ResponseFinalizer) builder() ErrorResponseBuilder {
	if f.Builder == nil {
		return DefaultErrorResponseBuilder{}
	}
	return f.Builder
}

func (f *ResponseFinalizer) writer() ErrorLogWriter {
	if f.Writer == nil {
		return DefaultErrorLogWriter{Logger: f.logger()}
	}
	return f.Writer
}

func (f *ResponseFinalizer) logger() *logging.Logger {
	if f.Logger == nil {
		return logging.Discard()
	}
	return f.Logger
}

// bodyAllowed reports whether status permits a body and Content-Length.
func bodyAllowed(status int) bool {
	switch {
	case status >= 100 && status < 200:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}
