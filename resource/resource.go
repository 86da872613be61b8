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
	"fmt"
	"net/http"
	"reflect"
	"sync"

	rerrors "rivaas.dev/rest/errors"
)

// Resource is a named dispatch table mapping method names to resource
// methods.
//
// Registration normally happens at startup; lookups are safe for concurrent
// use with registration.
type Resource struct {
	name    string
	mu      sync.RWMutex
	methods map[string][]*Method
}

// New creates an empty resource. name is reported in logs and errors.
func New(name string) *Resource {
	return &Resource{name: name, methods: make(map[string][]*Method)}
}

// Name returns the resource name.
func (r *Resource) Name() string { return r.name }

// Handle registers fn under name.
//
// Errors:
//   - [rerrors.InvalidSignatureError]: fn is not a function, has duplicate
//     parameter kinds, or has an unsupported result shape
func (r *Resource) Handle(name string, fn any, opts ...MethodOption) error {
	m, err := newMethod(r.name, name, fn, opts)
	if err != nil {
		return err
	}
	r.add(name, m)
	return nil
}

// MustHandle is like [Resource.Handle] but panics on error.
func (r *Resource) MustHandle(name string, fn any, opts ...MethodOption) *Resource {
	if err := r.Handle(name, fn, opts...); err != nil {
		panic(err)
	}
	return r
}

// Func registers a typed method taking the context and a decoded body of
// type B. The call path does not use reflection.
//
// Example:
//
//	resource.Func(orders, "create", func(ctx context.Context, in CreateOrder) (*Order, error) {
//	    ...
//	}, resource.Consumes("application/json"), resource.Produces("application/json"))
func Func[B, R any](r *Resource, name string, fn func(context.Context, B) (R, error), opts ...MethodOption) error {
	if fn == nil {
		return &rerrors.InvalidSignatureError{Method: r.name + "." + name, Reason: "function is nil"}
	}
	desc := &MethodDescriptor{
		typeName: r.name,
		name:     name,
		params:   []ParamKind{ParamContext, ParamBody},
		bodyType: reflect.TypeFor[B](),
	}
	for _, opt := range opts {
		opt(desc)
	}
	call := func(ctx context.Context, _ *http.Request, body any) (any, error) {
		var in B
		if body != nil {
			typed, ok := body.(B)
			if !ok {
				return nil, rerrors.NewInternalError("invoke "+desc.Path(),
					fmt.Errorf("decoded body of type %T is not %s", body, desc.bodyType))
			}
			in = typed
		}
		out, err := fn(ctx, in)
		if err != nil {
			return nil, err
		}
		return valueOf(reflect.ValueOf(&out).Elem()), nil
	}
	r.add(name, &Method{desc: desc, call: call})
	return nil
}

// RequestFunc registers a typed bodyless method taking the context and the
// raw request.
func RequestFunc[R any](r *Resource, name string, fn func(context.Context, *http.Request) (R, error), opts ...MethodOption) error {
	if fn == nil {
		return &rerrors.InvalidSignatureError{Method: r.name + "." + name, Reason: "function is nil"}
	}
	desc := &MethodDescriptor{
		typeName: r.name,
		name:     name,
		params:   []ParamKind{ParamContext, ParamRequest},
	}
	for _, opt := range opts {
		opt(desc)
	}
	call := func(ctx context.Context, req *http.Request, _ any) (any, error) {
		out, err := fn(ctx, req)
		if err != nil {
			return nil, err
		}
		return valueOf(reflect.ValueOf(&out).Elem()), nil
	}
	r.add(name, &Method{desc: desc, call: call})
	return nil
}

// FromDelegate builds a resource from every exported method of delegate.
// The method names are the Go method names; opts supplies per-method
// options keyed by those names. If name is empty, the delegate's type name
// is used.
//
// Errors:
//   - [rerrors.InvalidSignatureError]: an exported method cannot be bound
func FromDelegate(name string, delegate any, opts map[string][]MethodOption) (*Resource, error) {
	if delegate == nil {
		return nil, &rerrors.InvalidSignatureError{Method: name, Reason: "delegate is nil"}
	}
	v := reflect.ValueOf(delegate)
	t := v.Type()
	if name == "" {
		base := t
		for base.Kind() == reflect.Pointer {
			base = base.Elem()
		}
		name = base.Name()
	}

	r := New(name)
	for i := range t.NumMethod() {
		method := t.Method(i)
		if err := r.Handle(method.Name, v.Method(i).Interface(), opts[method.Name]...); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Lookup returns the single method registered under name.
//
// Errors:
//   - [rerrors.NotFoundError]: nothing is registered under name
//   - [rerrors.AmbiguousMethodError]: more than one method is
func (r *Resource) Lookup(name string) (*Method, error) {
	r.mu.RLock()
	candidates := r.methods[name]
	r.mu.RUnlock()

	switch len(candidates) {
	case 0:
		return nil, &rerrors.NotFoundError{Resource: r.name, Method: name}
	case 1:
		return candidates[0], nil
	default:
		return nil, &rerrors.AmbiguousMethodError{Resource: r.name, Method: name, Count: len(candidates)}
	}
}

// Names returns the registered method names.
func (r *Resource) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.methods))
	for name := range r.methods {
		names = append(names, name)
	}
	return names
}

func (r *Resource) add(name string, m *Method) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.methods[name] = append(r.methods[name], m)
}
