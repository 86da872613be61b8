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

package resource

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// HeaderRequestID carries the request id in requests and responses.
const HeaderRequestID = "X-Request-Id"

// maxRequestIDLength bounds client supplied request ids.
const maxRequestIDLength = 128

// ErrBodyAlreadySet is returned when the decoded body is set twice.
var ErrBodyAlreadySet = errors.New("resource: decoded body already set")

// RequestContext is the per-request state shared by the pipeline stages.
// It belongs to a single request and is not safe for concurrent use.
type RequestContext struct {
	method    *Method
	body      any
	bodySet   bool
	start     time.Time
	requestID string

	handlerType   string
	handlerMethod string

	err error
}

// IDGenerator produces request ids.
type IDGenerator func() string

// NewUUID generates time-ordered UUIDv7 request ids.
func NewUUID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NewRequestContext creates the context for req. The request id is taken
// from the X-Request-Id header when it is a short token, and
// generated with [NewUUID] otherwise.
func NewRequestContext(req *http.Request) *RequestContext {
	return NewRequestContextWithID(req, NewUUID)
}

// NewRequestContextWithID is like [NewRequestContext] but generates missing
// request ids with generate.
func NewRequestContextWithID(req *http.Request, generate IDGenerator) *RequestContext {
	rc := &RequestContext{start: time.Now()}
	if req != nil {
		if id := strings.TrimSpace(req.Header.Get(HeaderRequestID)); validRequestID(id) {
			rc.requestID = id
		}
	}
	if rc.requestID == "" {
		if generate == nil {
			generate = NewUUID
		}
		rc.requestID = generate()
	}
	return rc
}

// validRequestID accepts ids of at most maxRequestIDLength bytes made of
// letters, digits and the punctuation '-', '_', '.', ':'.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		switch c := id[i]; {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.', c == ':':
		default:
			return false
		}
	}
	return true
}

// Bind records the resolved method and the handler slot reported in logs.
func (rc *RequestContext) Bind(m *Method) {
	rc.method = m
	if m != nil {
		rc.handlerType = m.desc.Type()
		rc.handlerMethod = m.desc.Name()
	}
}

// Method returns the resolved method, or nil before binding.
func (rc *RequestContext) Method() *Method { return rc.method }

// Descriptor returns the resolved method descriptor, or nil before binding.
func (rc *RequestContext) Descriptor() *MethodDescriptor {
	if rc.method == nil {
		return nil
	}
	return rc.method.desc
}

// SetBody stores the decoded body. It may be called once.
func (rc *RequestContext) SetBody(v any) error {
	if rc.bodySet {
		return ErrBodyAlreadySet
	}
	rc.body = v
	rc.bodySet = true
	return nil
}

// Body returns the decoded body and whether one was set.
func (rc *RequestContext) Body() (any, bool) { return rc.body, rc.bodySet }

// StartTime returns when the request entered the pipeline.
func (rc *RequestContext) StartTime() time.Time { return rc.start }

// Elapsed returns the time since the request entered the pipeline.
func (rc *RequestContext) Elapsed() time.Duration { return time.Since(rc.start) }

// RequestID returns the request id.
func (rc *RequestContext) RequestID() string { return rc.requestID }

// HandlerType returns the resource that handled the request, or "".
func (rc *RequestContext) HandlerType() string { return rc.handlerType }

// HandlerMethod returns the method that handled the request, or "".
func (rc *RequestContext) HandlerMethod() string { return rc.handlerMethod }

// RecordError keeps the error the request failed with, so finishers and log
// writers can still see it after it was turned into a response.
func (rc *RequestContext) RecordError(err error) { rc.err = err }

// Err returns the recorded error, or nil for successful requests.
func (rc *RequestContext) Err() error { return rc.err }

type contextKey struct{}

// NewContext returns a copy of ctx carrying rc.
func NewContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, contextKey{}, rc)
}

// FromContext returns the RequestContext stored in ctx, if any.
func FromContext(ctx context.Context) (*RequestContext, bool) {
	rc, ok := ctx.Value(contextKey{}).(*RequestContext)
	return rc, ok
}
