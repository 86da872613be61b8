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

package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors for [errors.Is] checks. Each typed error below matches
// exactly one of them.
var (
	ErrUnsupportedMediaType  = errors.New("unsupported media type")
	ErrNotFound              = errors.New("resource method not found")
	ErrAmbiguousMethod       = errors.New("ambiguous resource method")
	ErrInvalidSignature      = errors.New("invalid resource method signature")
	ErrConfigurationConflict = errors.New("configuration conflict")
	ErrUnsupportedOperation  = errors.New("unsupported operation")
	ErrApplication           = errors.New("application error")
	ErrInternal              = errors.New("internal error")
)

// UnsupportedMediaTypeError reports a request whose media type does not match
// what the resource method consumes, or a media type no converter handles.
type UnsupportedMediaTypeError struct {
	// Method is the resource method path, e.g. "Orders.Create". May be empty.
	Method string
	// ContentType is the observed or requested media type.
	ContentType string
	// Consumes is the declared consumes media type, if any.
	Consumes string
}

func (e *UnsupportedMediaTypeError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("unsupported media type %q", e.ContentType)
	}
	return fmt.Sprintf("unsupported media type %q for %s (consumes %q)", e.ContentType, e.Method, e.Consumes)
}

func (e *UnsupportedMediaTypeError) Is(target error) bool { return target == ErrUnsupportedMediaType }

// HTTPStatus returns 415.
func (e *UnsupportedMediaTypeError) HTTPStatus() int { return http.StatusUnsupportedMediaType }

// NotFoundError reports a method name that does not exist on a resource.
type NotFoundError struct {
	Resource string
	Method   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("method %q not found on %s", e.Method, e.Resource)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// HTTPStatus returns 404.
func (e *NotFoundError) HTTPStatus() int { return http.StatusNotFound }

// AmbiguousMethodError reports more than one method registered under a name.
// Dispatch is by name, so overloading is a configuration error.
type AmbiguousMethodError struct {
	Resource string
	Method   string
	Count    int
}

func (e *AmbiguousMethodError) Error() string {
	return fmt.Sprintf("%s has %d methods named %q; method names must be unique", e.Resource, e.Count, e.Method)
}

func (e *AmbiguousMethodError) Is(target error) bool { return target == ErrAmbiguousMethod }

// InvalidSignatureError reports a resource method whose parameters or results
// cannot be bound.
type InvalidSignatureError struct {
	Method string
	Reason string
}

func (e *InvalidSignatureError) Error() string {
	return fmt.Sprintf("invalid signature for %s: %s", e.Method, e.Reason)
}

func (e *InvalidSignatureError) Is(target error) bool { return target == ErrInvalidSignature }

// ConfigurationConflictError reports response metadata coming from two
// sources of truth, such as an entity Content-Type on a method that also
// declares a produces media type.
type ConfigurationConflictError struct {
	Method string
	Reason string
}

func (e *ConfigurationConflictError) Error() string {
	return fmt.Sprintf("illegal state in %s: %s", e.Method, e.Reason)
}

func (e *ConfigurationConflictError) Is(target error) bool { return target == ErrConfigurationConflict }

// UnsupportedOperationError reports a converter asked to do something it
// deliberately does not do, such as writing a multipart response.
type UnsupportedOperationError struct {
	Op        string
	MediaType string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("%s is not supported for %s", e.Op, e.MediaType)
}

func (e *UnsupportedOperationError) Is(target error) bool { return target == ErrUnsupportedOperation }

// FieldError describes one invalid field of a request body.
type FieldError struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (f FieldError) Error() string {
	if f.Path == "" {
		return f.Message
	}
	return f.Path + ": " + f.Message
}

// ApplicationError is a recoverable business error, such as a failed
// validation. It maps to 400 unless a builder decides otherwise.
type ApplicationError struct {
	Message string
	Fields  []FieldError
	code    string
	cause   error
}

// NewApplicationError creates an application error with a message and
// optional field errors.
func NewApplicationError(message string, fields ...FieldError) *ApplicationError {
	return &ApplicationError{Message: message, Fields: fields}
}

// WrapApplicationError marks cause as a recoverable application error.
func WrapApplicationError(message string, cause error) *ApplicationError {
	return &ApplicationError{Message: message, cause: cause}
}

// WithCode sets a machine-readable code.
func (e *ApplicationError) WithCode(code string) *ApplicationError {
	e.code = code
	return e
}

func (e *ApplicationError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	for i, f := range e.Fields {
		if i == 0 {
			b.WriteString(" (")
		} else {
			b.WriteString("; ")
		}
		b.WriteString(f.Error())
		if i == len(e.Fields)-1 {
			b.WriteString(")")
		}
	}
	return b.String()
}

func (e *ApplicationError) Unwrap() error { return e.cause }

func (e *ApplicationError) Is(target error) bool { return target == ErrApplication }

// HTTPStatus returns 400.
func (e *ApplicationError) HTTPStatus() int { return http.StatusBadRequest }

// Details returns the field errors, if any.
func (e *ApplicationError) Details() any {
	if len(e.Fields) == 0 {
		return nil
	}
	return e.Fields
}

// Code returns the machine-readable code, defaulting to "application_error".
func (e *ApplicationError) Code() string {
	if e.code == "" {
		return "application_error"
	}
	return e.code
}

// InternalError wraps failures that never originate from application code,
// such as recovered panics or unreachable reflective calls.
type InternalError struct {
	Op    string
	Value any
	Stack []byte
	cause error
}

// NewInternalError wraps cause as an internal error raised during op.
func NewInternalError(op string, cause error) *InternalError {
	return &InternalError{Op: op, cause: cause}
}

// NewPanicError records a recovered panic value and its stack.
func NewPanicError(op string, value any, stack []byte) *InternalError {
	e := &InternalError{Op: op, Value: value, Stack: stack}
	if err, ok := value.(error); ok {
		e.cause = err
	}
	return e
}

func (e *InternalError) Error() string {
	switch {
	case e.cause != nil:
		return fmt.Sprintf("internal error during %s: %v", e.Op, e.cause)
	case e.Value != nil:
		return fmt.Sprintf("panic during %s: %v", e.Op, e.Value)
	default:
		return "internal error during " + e.Op
	}
}

func (e *InternalError) Unwrap() error { return e.cause }

func (e *InternalError) Is(target error) bool { return target == ErrInternal }
