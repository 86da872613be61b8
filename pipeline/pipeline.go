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
	"net/http"

	"rivaas.dev/rest/converter"
	"rivaas.dev/rest/logging"
	"rivaas.dev/rest/resource"
	"rivaas.dev/rest/response"
	"rivaas.dev/rest/validation"
)

// ErrNilRegistry is returned by [New] when [WithRegistry] received nil.
var ErrNilRegistry = errors.New("pipeline: converter registry is nil")

// Pipeline assembles the request processing chain:
//
//	stages (CORS preflight, tracing, ...) -> method binding ->
//	content negotiation -> invoker middleware -> method invocation
//
// wrapped by a [ResponseFinalizer]. A Pipeline is immutable after [New]
// and safe for concurrent use.
type Pipeline struct {
	registry    *converter.Registry
	stages      []Stage
	middleware  []InvokerMiddleware
	validator   *validation.Validator
	noValidator bool
	builder     ErrorResponseBuilder
	writer      ErrorLogWriter
	appHook     ApplicationErrorHook
	finishers   []Finisher
	logger      *logging.Logger
	chunkSize   int
	generateID  resource.IDGenerator

	finalizer *ResponseFinalizer
	invoker   Invoker
}

// Option configures a [Pipeline].
type Option func(*Pipeline)

// WithRegistry sets the converter registry. Defaults to
// [converter.Default].
func WithRegistry(r *converter.Registry) Option {
	return func(p *Pipeline) { p.registry = r }
}

// WithStages appends stages. Stages run in the order added, before the
// method is bound.
func WithStages(stages ...Stage) Option {
	return func(p *Pipeline) { p.stages = append(p.stages, stages...) }
}

// WithInvokerMiddleware wraps method invocation. The first middleware is
// the outermost; body validation always runs inside all of them.
func WithInvokerMiddleware(mw ...InvokerMiddleware) Option {
	return func(p *Pipeline) { p.middleware = append(p.middleware, mw...) }
}

// WithValidator sets the validator for methods carrying the validate
// marker. Passing nil disables validation.
func WithValidator(v *validation.Validator) Option {
	return func(p *Pipeline) {
		p.validator = v
		p.noValidator = v == nil
	}
}

// WithErrorResponseBuilder replaces [DefaultErrorResponseBuilder].
func WithErrorResponseBuilder(b ErrorResponseBuilder) Option {
	return func(p *Pipeline) { p.builder = b }
}

// WithErrorLogWriter replaces [DefaultErrorLogWriter].
func WithErrorLogWriter(w ErrorLogWriter) Option {
	return func(p *Pipeline) { p.writer = w }
}

// WithApplicationErrorHook sets the hook the default log writer calls for
// recoverable errors.
func WithApplicationErrorHook(h ApplicationErrorHook) Option {
	return func(p *Pipeline) { p.appHook = h }
}

// WithFinishers appends finishers. They run in the order added, after the
// built-in request id finisher.
func WithFinishers(fs ...Finisher) Option {
	return func(p *Pipeline) { p.finishers = append(p.finishers, fs...) }
}

// WithLogger sets the logger. Defaults to a logger that discards output.
func WithLogger(l *logging.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithChunkSize sets the body write chunk size. Defaults to
// [DefaultChunkSize].
func WithChunkSize(n int) Option {
	return func(p *Pipeline) { p.chunkSize = n }
}

// WithRequestIDGenerator sets how missing request ids are generated.
// Defaults to [resource.NewUUID].
func WithRequestIDGenerator(gen resource.IDGenerator) Option {
	return func(p *Pipeline) { p.generateID = gen }
}

// WithULIDRequestIDs generates request ids with [NewULID].
func WithULIDRequestIDs() Option {
	return WithRequestIDGenerator(NewULID)
}

// New builds a Pipeline.
//
// Errors:
//   - [ErrNilRegistry] when [WithRegistry] received nil
//   - validator construction errors when no validator was given
func New(opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		registry:   converter.Default(),
		generateID: resource.NewUUID,
		chunkSize:  DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.registry == nil {
		return nil, ErrNilRegistry
	}
	if p.logger == nil {
		p.logger = logging.Discard()
	}
	if p.validator == nil && !p.noValidator {
		v, err := validation.New()
		if err != nil {
			return nil, fmt.Errorf("pipeline: default validator: %w", err)
		}
		p.validator = v
	}

	var invoker Invoker = MethodInvoker{}
	if p.validator != nil {
		invoker = BodyValidation(p.validator)(invoker)
	}
	for i := len(p.middleware) - 1; i >= 0; i-- {
		invoker = p.middleware[i](invoker)
	}
	p.invoker = invoker

	writer := p.writer
	if writer == nil {
		writer = DefaultErrorLogWriter{Logger: p.logger, Application: p.appHook}
	}
	p.finalizer = &ResponseFinalizer{
		Builder:   p.builder,
		Writer:    writer,
		Finishers: append([]Finisher{requestIDFinisher{}}, p.finishers...),
		Logger:    p.logger,
		ChunkSize: p.chunkSize,
	}
	return p, nil
}

// MustNew is like [New] but panics on error.
func MustNew(opts ...Option) *Pipeline {
	p, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// Registry returns the converter registry.
func (p *Pipeline) Registry() *converter.Registry { return p.registry }

// Logger returns the pipeline logger.
func (p *Pipeline) Logger() *logging.Logger { return p.logger }

// Handler returns the chain for one resource method, without the
// finalizer. Errors are returned as they are.
func (p *Pipeline) Handler(res *resource.Resource, method string) Handler {
	terminal := &ContentNegotiator{Registry: p.registry, Invoker: p.invoker}
	stages := append(append([]Stage(nil), p.stages...), MethodBinder{Resource: res, Method: method})
	return Chain(terminal, stages...)
}

// NewExchange prepares the exchange for r: a fresh request context,
// attached to the request's context, and a request-scoped logger.
func (p *Pipeline) NewExchange(r *http.Request) *Exchange {
	rc := resource.NewRequestContextWithID(r, p.generateID)
	r = r.WithContext(resource.NewContext(r.Context(), rc))
	return &Exchange{
		Request: r,
		Context: rc,
		Logger:  logging.NewContextLogger(r.Context(), p.logger).WithRequestID(rc.RequestID()),
	}
}

// Dispatch serves r with the named method of res and writes the response
// to w. It returns the response that was written, or would have been
// written had the transport not failed.
func (p *Pipeline) Dispatch(w http.ResponseWriter, r *http.Request, res *resource.Resource, method string) *response.Response {
	return p.finalizer.Finalize(p.NewExchange(r), p.Handler(res, method), NewHTTPTransport(w))
}

// Serve finalizes an already prepared exchange onto t.
func (p *Pipeline) Serve(x *Exchange, h Handler, t Transport) *response.Response {
	return p.finalizer.Finalize(x, h, t)
}

// Endpoint returns an [http.Handler] serving the named method of res.
// The method is looked up per request, so methods may be registered after
// the endpoint is created.
//
// Example:
//
//	orders := resource.New("Orders")
//	resource.Func(orders, "Create", svc.Create,
//	    resource.Consumes("application/json"),
//	    resource.Produces("application/json"),
//	    resource.Validate(),
//	)
//	mux.Handle("POST /orders", p.Endpoint(orders, "Create"))
func (p *Pipeline) Endpoint(res *resource.Resource, method string) http.Handler {
	h := p.Handler(res, method)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.finalizer.Finalize(p.NewExchange(r), h, NewHTTPTransport(w))
	})
}
