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
	"net/http"

	"rivaas.dev/rest/logging"
	"rivaas.dev/rest/resource"
	"rivaas.dev/rest/response"
)

// Exchange is the state of one request as it moves through the stages.
// It is passed explicitly to every stage and never shared between requests.
type Exchange struct {
	// Request is the incoming request. Its context carries Context.
	Request *http.Request
	// Context is the per-request state: bound method, decoded body, id.
	Context *resource.RequestContext
	// Logger logs with the request id and the active trace ids.
	Logger *logging.ContextLogger
}

// WithRequest returns a shallow copy using r. Stages that derive a new
// request context (a tracing span, a deadline) pass the copy downstream.
func (x *Exchange) WithRequest(r *http.Request) *Exchange {
	next := *x
	next.Request = r
	return &next
}

// Handler produces the response for an exchange, or an error that the
// finalizer turns into one.
type Handler interface {
	Handle(x *Exchange) (*response.Response, error)
}

// HandlerFunc adapts a function to [Handler].
type HandlerFunc func(x *Exchange) (*response.Response, error)

// Handle implements [Handler].
func (f HandlerFunc) Handle(x *Exchange) (*response.Response, error) { return f(x) }

// Stage wraps the rest of the chain. A stage may answer by itself without
// calling next, as the CORS preflight stage does.
type Stage interface {
	Handle(x *Exchange, next Handler) (*response.Response, error)
}

// StageFunc adapts a function to [Stage].
type StageFunc func(x *Exchange, next Handler) (*response.Response, error)

// Handle implements [Stage].
func (f StageFunc) Handle(x *Exchange, next Handler) (*response.Response, error) { return f(x, next) }

// Invoker calls the bound resource method and returns its raw result.
type Invoker interface {
	Invoke(x *Exchange) (any, error)
}

// InvokerFunc adapts a function to [Invoker].
type InvokerFunc func(x *Exchange) (any, error)

// Invoke implements [Invoker].
func (f InvokerFunc) Invoke(x *Exchange) (any, error) { return f(x) }

// InvokerMiddleware decorates an [Invoker].
type InvokerMiddleware func(next Invoker) Invoker

// Chain composes stages around terminal. The first stage runs first.
func Chain(terminal Handler, stages ...Stage) Handler {
	h := terminal
	for i := len(stages) - 1; i >= 0; i-- {
		h = bind(stages[i], h)
	}
	return h
}

func bind(s Stage, next Handler) Handler {
	return HandlerFunc(func(x *Exchange) (*response.Response, error) {
		return s.Handle(x, next)
	})
}
