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

// Package resource turns Go functions into resource methods the pipeline can
// dispatch by name.
//
// Registration classifies each parameter once. A parameter of type
// [*http.Request] receives the raw request, a [context.Context] receives the
// request-scoped context, and any other parameter receives the decoded body:
//
//	orders := resource.New("Orders")
//	orders.MustHandle("create",
//	    func(ctx context.Context, in *CreateOrder) (*Order, error) { ... },
//	    resource.Consumes("application/json"),
//	    resource.Produces("application/json"),
//	    resource.Validate(),
//	)
//
// Each kind may appear at most once; a method taking two bodies cannot be
// satisfied from one decoded value and fails registration with an
// [errors.InvalidSignatureError].
//
// Results may be (), (error), (R) or (R, error). A nil R is reported as a
// nil result, which the pipeline answers with 204 when the method produces
// nothing.
//
// # Dispatch
//
// Names are matched exactly. [Resource.Lookup] fails with
// [errors.NotFoundError] when nothing is registered under a name and with
// [errors.AmbiguousMethodError] when more than one method is.
//
// # Request context
//
// A [RequestContext] carries the resolved method, the decoded body and the
// handler that ran. The pipeline threads it through every stage explicitly;
// resource code can reach it with [FromContext].
package resource
