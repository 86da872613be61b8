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
	"encoding/json"
	"errors"
	"net/http"

	rerrors "rivaas.dev/rest/errors"
	"rivaas.dev/rest/logging"
	"rivaas.dev/rest/resource"
	"rivaas.dev/rest/response"
)

// ErrorResponseBuilder turns a failed exchange into a response. It is the
// single extension point for refining the recoverable/unclassified split.
type ErrorResponseBuilder interface {
	Build(req *http.Request, rc *resource.RequestContext, err error) *response.Response
}

// ErrorResponseBuilderFunc adapts a function to [ErrorResponseBuilder].
type ErrorResponseBuilderFunc func(req *http.Request, rc *resource.RequestContext, err error) *response.Response

// Build implements [ErrorResponseBuilder].
func (f ErrorResponseBuilderFunc) Build(req *http.Request, rc *resource.RequestContext, err error) *response.Response {
	return f(req, rc, err)
}

// DefaultErrorResponseBuilder answers with bodyless responses: the status
// the error declares, otherwise 400 for recoverable errors and 500 for
// everything else.
type DefaultErrorResponseBuilder struct{}

// Build implements [ErrorResponseBuilder].
func (DefaultErrorResponseBuilder) Build(_ *http.Request, _ *resource.RequestContext, err error) *response.Response {
	return response.WithStatus(StatusFor(err))
}

// StatusFor returns the status the default builder uses for err.
func StatusFor(err error) int {
	if rerrors.IsConfigurationError(err) {
		return http.StatusInternalServerError
	}
	if status, ok := rerrors.StatusOf(err); ok {
		return status
	}
	if rerrors.Classify(err) == rerrors.KindRecoverable {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// FormattingErrorResponseBuilder writes structured error bodies using a
// [rerrors.Formatter], such as RFC 9457 problem details:
//
//	pipeline.WithErrorResponseBuilder(pipeline.FormattingErrorResponseBuilder{
//	    Formatter: rerrors.NewRFC9457("https://errors.example.com"),
//	})
//
// Unclassified errors keep their details out of the body when the
// formatter is configured to hide them.
type FormattingErrorResponseBuilder struct {
	Formatter rerrors.Formatter
}

// Build implements [ErrorResponseBuilder]. It panics when the formatted
// body cannot be marshaled, which the finalizer turns into a plain 500.
func (b FormattingErrorResponseBuilder) Build(req *http.Request, _ *resource.RequestContext, err error) *response.Response {
	f := b.Formatter.Format(req, err)
	body, mErr := json.Marshal(f.Body)
	if mErr != nil {
		panic(mErr)
	}
	resp := response.WithStatus(f.Status)
	for key, values := range f.Headers {
		for _, v := range values {
			resp.Header().Add(key, v)
		}
	}
	resp.SetContentType(f.ContentType)
	resp.SetBodyBytes(body)
	return resp
}

// ErrorLogWriter logs a failed exchange after its response was built.
type ErrorLogWriter interface {
	Write(req *http.Request, resp *response.Response, rc *resource.RequestContext, err error)
}

// ErrorLogWriterFunc adapts a function to [ErrorLogWriter].
type ErrorLogWriterFunc func(req *http.Request, resp *response.Response, rc *resource.RequestContext, err error)

// Write implements [ErrorLogWriter].
func (f ErrorLogWriterFunc) Write(req *http.Request, resp *response.Response, rc *resource.RequestContext, err error) {
	f(req, resp, rc, err)
}

// ApplicationErrorHook receives recoverable application errors. The default
// does nothing: they are expected business outcomes, not defects.
type ApplicationErrorHook func(req *http.Request, resp *response.Response, rc *resource.RequestContext, err error)

// DefaultErrorLogWriter routes recoverable errors to an
// [ApplicationErrorHook] and logs unclassified failures at FATAL.
type DefaultErrorLogWriter struct {
	Logger      *logging.Logger
	Application ApplicationErrorHook
}

// Write implements [ErrorLogWriter].
func (w DefaultErrorLogWriter) Write(req *http.Request, resp *response.Response, rc *resource.RequestContext, err error) {
	if rerrors.Classify(err) == rerrors.KindRecoverable {
		if w.Application != nil {
			w.Application(req, resp, rc, err)
		}
		return
	}
	logFailure(w.Logger, req, resp, rc, err)
}

// logFailure writes the FATAL entry for an unclassified failure.
func logFailure(l *logging.Logger, req *http.Request, resp *response.Response, rc *resource.RequestContext, err error) {
	cl := logging.NewContextLogger(req.Context(), l).WithRequestID(rc.RequestID())
	args := []any{
		"http_method", req.Method,
		"uri", req.URL.RequestURI(),
		"status", resp.StatusCode(),
		"elapsed", rc.Elapsed(),
		logging.ErrorAttr(err),
	}
	if rc.HandlerType() != "" {
		args = append(args, "handler_type", rc.HandlerType(), "handler_method", rc.HandlerMethod())
	}
	var internal *rerrors.InternalError
	if errors.As(err, &internal) && len(internal.Stack) > 0 {
		args = append(args, "stack", string(internal.Stack))
	}
	cl.Fatal("request failed", args...)
}
