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
	"net/http"
)

// Formatter turns an error into the components of a structured error response.
//
// Example:
//
//	formatter := errors.NewSimple()
//	formatted := formatter.Format(req, err)
//	// formatted.Status, formatted.ContentType, formatted.Body
type Formatter interface {
	// Format converts err into a status code, content type and body.
	// req is used for request-specific fields such as the RFC 9457 instance.
	Format(req *http.Request, err error) Response
}

// Response is a formatted error response.
type Response struct {
	// Status is the HTTP status code.
	Status int

	// ContentType is the Content-Type header value.
	ContentType string

	// Body is the response body, marshaled as JSON by the caller.
	Body any

	// Headers contains additional headers to set (optional).
	Headers http.Header
}

// ErrorType lets an error declare its own HTTP status code.
//
// Example:
//
//	type QuotaError struct{}
//
//	func (QuotaError) Error() string   { return "quota exceeded" }
//	func (QuotaError) HTTPStatus() int { return http.StatusTooManyRequests }
type ErrorType interface {
	error
	// HTTPStatus returns the HTTP status code for this error.
	HTTPStatus() int
}

// ErrorDetails lets an error expose structured details, such as field errors.
type ErrorDetails interface {
	error
	// Details returns structured information about the error.
	Details() any
}

// ErrorCode lets an error expose a machine-readable code.
type ErrorCode interface {
	error
	// Code returns a machine-readable error code.
	Code() string
}

// NewRFC9457 creates a new RFC9457 formatter.
// The baseURL parameter is prepended to problem type slugs to create full URIs.
func NewRFC9457(baseURL string) *RFC9457 {
	return &RFC9457{
		BaseURL: baseURL,
	}
}

// NewSimple creates a new Simple formatter.
func NewSimple() *Simple {
	return &Simple{}
}

// WithStatus wraps an error with an explicit HTTP status code.
// If err is nil, the status text is used as the error message.
//
// Example:
//
//	return nil, errors.WithStatus(err, http.StatusConflict)
func WithStatus(err error, status int) error {
	return &statusError{err: err, status: status}
}

// StatusOf returns the HTTP status declared by err through [ErrorType].
func StatusOf(err error) (int, bool) {
	var typed ErrorType
	if errors.As(err, &typed) {
		return typed.HTTPStatus(), true
	}
	return 0, false
}

type statusError struct {
	err    error
	status int
}

func (e *statusError) Error() string {
	if e.err == nil {
		return http.StatusText(e.status)
	}
	return e.err.Error()
}

func (e *statusError) Unwrap() error {
	return e.err
}

func (e *statusError) HTTPStatus() int {
	return e.status
}

// determineStatus resolves the status for a formatter: the custom resolver,
// then a declared status, then 500.
func determineStatus(resolver func(error) int, err error) int {
	if resolver != nil {
		return resolver(err)
	}
	if status, ok := StatusOf(err); ok {
		return status
	}
	return http.StatusInternalServerError
}
