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
	"runtime/debug"

	rerrors "rivaas.dev/rest/errors"
)

var (
	requestType = reflect.TypeFor[*http.Request]()
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
)

// callFunc invokes a bound resource method.
type callFunc func(ctx context.Context, req *http.Request, body any) (any, error)

// Method is a resource method bound to its descriptor.
type Method struct {
	desc *MethodDescriptor
	call callFunc
}

// Descriptor returns the method descriptor.
func (m *Method) Descriptor() *MethodDescriptor { return m.desc }

// Invoke calls the method. Arguments are built from the parameter kinds
// fixed at registration: req for [ParamRequest], ctx for [ParamContext] and
// body for [ParamBody].
//
// Errors returned by the method are passed through unchanged. A panic is
// recovered into an [rerrors.InternalError] carrying the stack.
func (m *Method) Invoke(ctx context.Context, req *http.Request, body any) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			result = nil
			err = rerrors.NewPanicError("invoke "+m.desc.Path(), p, debug.Stack())
		}
	}()
	return m.call(ctx, req, body)
}

// newMethod classifies fn and builds its call function.
func newMethod(typeName, name string, fn any, opts []MethodOption) (*Method, error) {
	desc := &MethodDescriptor{typeName: typeName, name: name}
	invalid := func(format string, args ...any) error {
		return &rerrors.InvalidSignatureError{Method: desc.Path(), Reason: fmt.Sprintf(format, args...)}
	}

	v := reflect.ValueOf(fn)
	if fn == nil || v.Kind() != reflect.Func {
		return nil, invalid("expected a function, got %T", fn)
	}
	if v.IsNil() {
		return nil, invalid("function is nil")
	}
	t := v.Type()
	if t.IsVariadic() {
		return nil, invalid("variadic parameters are not supported")
	}

	seen := make(map[ParamKind]int, 3)
	for i := range t.NumIn() {
		in := t.In(i)
		kind := classify(in)
		if prev, dup := seen[kind]; dup {
			return nil, invalid("parameters %d and %d are both %s", prev+1, i+1, kind)
		}
		seen[kind] = i
		desc.params = append(desc.params, kind)
		if kind == ParamBody {
			desc.bodyType = in
		}
	}

	resultOf, err := resultExtractor(t)
	if err != nil {
		return nil, invalid("%v", err)
	}

	for _, opt := range opts {
		opt(desc)
	}

	bodyType := desc.bodyType
	params := desc.params
	call := func(ctx context.Context, req *http.Request, body any) (any, error) {
		args := make([]reflect.Value, len(params))
		for i, kind := range params {
			switch kind {
			case ParamRequest:
				args[i] = reflect.ValueOf(req)
			case ParamContext:
				if ctx == nil {
					ctx = context.Background()
				}
				args[i] = reflect.ValueOf(&ctx).Elem()
			case ParamBody:
				arg, err := bodyArg(bodyType, body)
				if err != nil {
					return nil, rerrors.NewInternalError("invoke "+desc.Path(), err)
				}
				args[i] = arg
			}
		}
		return resultOf(v.Call(args))
	}

	return &Method{desc: desc, call: call}, nil
}

func classify(t reflect.Type) ParamKind {
	switch t {
	case requestType:
		return ParamRequest
	case contextType:
		return ParamContext
	default:
		return ParamBody
	}
}

func bodyArg(t reflect.Type, body any) (reflect.Value, error) {
	if body == nil {
		return reflect.Zero(t), nil
	}
	v := reflect.ValueOf(body)
	if !v.Type().AssignableTo(t) {
		return reflect.Value{}, fmt.Errorf("decoded body of type %s is not assignable to %s", v.Type(), t)
	}
	return v, nil
}

// resultExtractor checks the result shape of t and returns a function
// mapping call results to (result, error).
func resultExtractor(t reflect.Type) (func([]reflect.Value) (any, error), error) {
	switch t.NumOut() {
	case 0:
		return func([]reflect.Value) (any, error) { return nil, nil }, nil
	case 1:
		if t.Out(0) == errorType {
			return func(out []reflect.Value) (any, error) { return nil, errorOf(out[0]) }, nil
		}
		return func(out []reflect.Value) (any, error) { return valueOf(out[0]), nil }, nil
	case 2:
		if t.Out(1) != errorType {
			return nil, fmt.Errorf("second result must be error, got %s", t.Out(1))
		}
		return func(out []reflect.Value) (any, error) {
			if err := errorOf(out[1]); err != nil {
				return nil, err
			}
			return valueOf(out[0]), nil
		}, nil
	default:
		return nil, fmt.Errorf("at most two results are supported, got %d", t.NumOut())
	}
}

func errorOf(v reflect.Value) error {
	if v.IsNil() {
		return nil
	}
	err, _ := v.Interface().(error)
	return err
}

// valueOf unwraps v, reporting nil pointers, maps, slices and interfaces as
// an untyped nil.
func valueOf(v reflect.Value) any {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if v.IsNil() {
			return nil
		}
	}
	return v.Interface()
}
