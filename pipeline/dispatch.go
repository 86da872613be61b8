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

	rerrors "rivaas.dev/rest/errors"
	"rivaas.dev/rest/resource"
	"rivaas.dev/rest/response"
	"rivaas.dev/rest/validation"
)

// MethodBinder resolves a method name on a resource and binds it to the
// request context before the rest of the chain runs.
//
// Lookup failures end the exchange: an unknown name is a 404, two methods
// sharing a name is an [rerrors.AmbiguousMethodError].
type MethodBinder struct {
	Resource *resource.Resource
	Method   string
}

// Handle implements [Stage].
func (b MethodBinder) Handle(x *Exchange, next Handler) (*response.Response, error) {
	m, err := b.Resource.Lookup(b.Method)
	if err != nil {
		return nil, err
	}
	x.Context.Bind(m)
	x.Logger = x.Logger.With("handler", m.Descriptor().Path())
	return next.Handle(x)
}

// MethodInvoker invokes the bound method with the request, the request
// scoped context and the decoded body.
type MethodInvoker struct{}

// Invoke implements [Invoker].
func (MethodInvoker) Invoke(x *Exchange) (any, error) {
	m := x.Context.Method()
	if m == nil {
		return nil, rerrors.NewInternalError("invoke", errNoMethod)
	}
	body, _ := x.Context.Body()
	return m.Invoke(x.Request.Context(), x.Request, body)
}

// BodyValidation validates the decoded body before invocation when the
// method carries the validate marker. The method's group conversion, if
// any, is applied to its groups first. Validation failures are recoverable
// application errors.
func BodyValidation(v *validation.Validator) InvokerMiddleware {
	return func(next Invoker) Invoker {
		return InvokerFunc(func(x *Exchange) (any, error) {
			desc := x.Context.Descriptor()
			if desc == nil || !desc.Validated() {
				return next.Invoke(x)
			}
			groups := desc.Groups()
			if conv, ok := desc.GroupConversion(); ok {
				groups = validation.ConvertGroups(groups, conv.From, conv.To)
			}
			body, _ := x.Context.Body()
			if err := v.Validate(validationContext(x), body, groups...); err != nil {
				return nil, err
			}
			return next.Invoke(x)
		})
	}
}

func validationContext(x *Exchange) context.Context {
	if x.Request != nil {
		return x.Request.Context()
	}
	return context.Background()
}
