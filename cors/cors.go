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

package cors

import (
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"rivaas.dev/rest/response"
)

// Header names.
const (
	HeaderOrigin                        = "Origin"
	HeaderVary                          = response.HeaderVary
	HeaderAccessControlRequestMethod    = "Access-Control-Request-Method"
	HeaderAccessControlRequestHeaders   = "Access-Control-Request-Headers"
	HeaderAccessControlAllowOrigin      = "Access-Control-Allow-Origin"
	HeaderAccessControlAllowMethods     = "Access-Control-Allow-Methods"
	HeaderAccessControlAllowHeaders     = "Access-Control-Allow-Headers"
	HeaderAccessControlAllowCredentials = "Access-Control-Allow-Credentials"
	HeaderAccessControlMaxAge           = "Access-Control-Max-Age"
	HeaderAccessControlExposeHeaders    = "Access-Control-Expose-Headers"
)

// Defaults of [Basic].
const (
	DefaultAllowMethods = "OPTIONS, GET, POST, PUT, DELETE, PATCH"
	DefaultAllowHeaders = "Content-Type, X-CSRF-TOKEN"
	DefaultMaxAge       = -1
)

// ErrAllowOriginsRequired is returned when a policy without allowed origins
// is used. Policies can be built without origins; the error surfaces on
// the first request that needs them.
var ErrAllowOriginsRequired = errors.New("cors: allowed origins are required")

// Policy decides how cross-origin requests are answered. Replacing the
// policy replaces all three operations together.
type Policy interface {
	// IsPreflightRequest reports whether r is a CORS preflight probe.
	IsPreflightRequest(r *http.Request) bool
	// CreatePreflightResponse answers a preflight probe.
	CreatePreflightResponse(r *http.Request) (*response.Response, error)
	// PostProcess adds origin and credentials headers to resp.
	PostProcess(r *http.Request, resp *response.Response) error
}

// Basic is the allow-list [Policy].
type Basic struct {
	allowOrigins     []string
	allowMethods     string
	allowHeaders     string
	exposeHeaders    string
	maxAge           int
	allowCredentials bool
}

// Option configures [Basic].
type Option func(*Basic)

// New creates a Basic policy.
//
// Example:
//
//	policy := cors.New(
//	    cors.WithAllowOrigins("https://app.example.com"),
//	    cors.WithMaxAge(600),
//	)
func New(opts ...Option) *Basic {
	b := &Basic{
		allowMethods:     DefaultAllowMethods,
		allowHeaders:     DefaultAllowHeaders,
		maxAge:           DefaultMaxAge,
		allowCredentials: true,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// WithAllowOrigins sets the exact origins that may make cross-origin
// requests. Required.
func WithAllowOrigins(origins ...string) Option {
	return func(b *Basic) { b.allowOrigins = slices.Clone(origins) }
}

// WithAllowMethods sets Access-Control-Allow-Methods.
// Default: "OPTIONS, GET, POST, PUT, DELETE, PATCH".
func WithAllowMethods(methods ...string) Option {
	return func(b *Basic) { b.allowMethods = strings.Join(methods, ", ") }
}

// WithAllowHeaders sets Access-Control-Allow-Headers.
// Default: "Content-Type, X-CSRF-TOKEN".
func WithAllowHeaders(headers ...string) Option {
	return func(b *Basic) { b.allowHeaders = strings.Join(headers, ", ") }
}

// WithExposeHeaders sets Access-Control-Expose-Headers on actual
// responses. Not set by default.
func WithExposeHeaders(headers ...string) Option {
	return func(b *Basic) { b.exposeHeaders = strings.Join(headers, ", ") }
}

// WithMaxAge sets Access-Control-Max-Age in seconds. Default: -1.
func WithMaxAge(seconds int) Option {
	return func(b *Basic) { b.maxAge = seconds }
}

// WithAllowCredentials controls Access-Control-Allow-Credentials. When
// false the header is omitted, never sent as "false". Default: true.
func WithAllowCredentials(allow bool) Option {
	return func(b *Basic) { b.allowCredentials = allow }
}

// AllowOrigins returns the configured origins.
func (b *Basic) AllowOrigins() []string { return slices.Clone(b.allowOrigins) }

// IsPreflightRequest implements [Policy]: the method is OPTIONS and both
// Origin and Access-Control-Request-Method are present.
func (b *Basic) IsPreflightRequest(r *http.Request) bool {
	return r.Method == http.MethodOptions &&
		len(r.Header.Values(HeaderOrigin)) > 0 &&
		len(r.Header.Values(HeaderAccessControlRequestMethod)) > 0
}

// CreatePreflightResponse implements [Policy] with a 204 carrying the
// allowed methods, headers and max age plus the origin headers.
func (b *Basic) CreatePreflightResponse(r *http.Request) (*response.Response, error) {
	resp := response.NoContent()
	h := resp.Header()
	h.Set(HeaderAccessControlAllowMethods, b.allowMethods)
	h.Set(HeaderAccessControlAllowHeaders, b.allowHeaders)
	h.Set(HeaderAccessControlMaxAge, strconv.Itoa(b.maxAge))
	if err := b.PostProcess(r, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// PostProcess implements [Policy]. Headers are set by key, so running it
// twice leaves the response unchanged.
func (b *Basic) PostProcess(r *http.Request, resp *response.Response) error {
	if len(b.allowOrigins) == 0 {
		return ErrAllowOriginsRequired
	}
	h := resp.Header()
	origin := r.Header.Get(HeaderOrigin)
	if origin != "" && slices.Contains(b.allowOrigins, origin) {
		h.Set(HeaderAccessControlAllowOrigin, origin)
		response.AddVary(h, HeaderOrigin)
		if b.exposeHeaders != "" && !b.IsPreflightRequest(r) {
			h.Set(HeaderAccessControlExposeHeaders, b.exposeHeaders)
		}
	}
	if b.allowCredentials {
		h.Set(HeaderAccessControlAllowCredentials, "true")
	}
	return nil
}
