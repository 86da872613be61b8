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
	"reflect"
	"slices"
)

// ParamKind classifies a resource method parameter by where its argument
// comes from.
type ParamKind int

const (
	// ParamRequest receives the raw [*http.Request].
	ParamRequest ParamKind = iota
	// ParamContext receives the request-scoped [context.Context].
	ParamContext
	// ParamBody receives the decoded request body.
	ParamBody
)

// String returns the name of the kind.
func (k ParamKind) String() string {
	switch k {
	case ParamRequest:
		return "raw-request"
	case ParamContext:
		return "request-context"
	case ParamBody:
		return "decoded-body"
	default:
		return "unknown"
	}
}

// GroupConversion replaces validation group From with To when the body is
// validated.
type GroupConversion struct {
	From string
	To   string
}

// MethodDescriptor describes a resolved resource method. It is immutable.
type MethodDescriptor struct {
	typeName string
	name     string
	params   []ParamKind
	bodyType reflect.Type
	consumes string
	produces string
	validate bool
	groups   []string
	convert  *GroupConversion
}

// Type returns the name of the declaring resource.
func (d *MethodDescriptor) Type() string { return d.typeName }

// Name returns the method name.
func (d *MethodDescriptor) Name() string { return d.name }

// Path returns "Type.Name", used in logs and error messages.
func (d *MethodDescriptor) Path() string { return d.typeName + "." + d.name }

// Params returns the parameter kinds in declaration order.
func (d *MethodDescriptor) Params() []ParamKind { return slices.Clone(d.params) }

// BodyType returns the type of the body parameter, or nil if the method
// takes no body.
func (d *MethodDescriptor) BodyType() reflect.Type { return d.bodyType }

// Consumes returns the declared request media type, or "".
func (d *MethodDescriptor) Consumes() string { return d.consumes }

// Produces returns the declared response media type, or "".
func (d *MethodDescriptor) Produces() string { return d.produces }

// Validated reports whether the body must be validated before invocation.
func (d *MethodDescriptor) Validated() bool { return d.validate }

// Groups returns the validation groups the body is validated against.
// Empty means the default group.
func (d *MethodDescriptor) Groups() []string { return slices.Clone(d.groups) }

// GroupConversion returns the declared group conversion, if any.
func (d *MethodDescriptor) GroupConversion() (GroupConversion, bool) {
	if d.convert == nil {
		return GroupConversion{}, false
	}
	return *d.convert, true
}

// MethodOption configures a resource method at registration.
type MethodOption func(*MethodDescriptor)

// Consumes declares the request media type. The first declared type wins;
// later declarations are ignored.
func Consumes(mediaTypes ...string) MethodOption {
	return func(d *MethodDescriptor) {
		if d.consumes == "" {
			d.consumes = firstNonEmpty(mediaTypes)
		}
	}
}

// Produces declares the response media type. The first declared type wins;
// later declarations are ignored.
func Produces(mediaTypes ...string) MethodOption {
	return func(d *MethodDescriptor) {
		if d.produces == "" {
			d.produces = firstNonEmpty(mediaTypes)
		}
	}
}

// Validate marks the body for validation, optionally against groups.
func Validate(groups ...string) MethodOption {
	return func(d *MethodDescriptor) {
		d.validate = true
		d.groups = append(d.groups, groups...)
	}
}

// ConvertGroup validates group to wherever group from would apply.
func ConvertGroup(from, to string) MethodOption {
	return func(d *MethodDescriptor) {
		d.convert = &GroupConversion{From: from, To: to}
	}
}

func firstNonEmpty(values []string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
