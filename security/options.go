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

package security

// Option configures [Headers].
type Option func(*Headers)

// WithFrameOptions sets X-Frame-Options. Empty omits it. Default: "DENY".
func WithFrameOptions(value string) Option {
	return func(h *Headers) { h.frameOptions = value }
}

// WithContentTypeNosniff controls X-Content-Type-Options: nosniff.
// Default: true.
func WithContentTypeNosniff(enabled bool) Option {
	return func(h *Headers) { h.nosniff = enabled }
}

// WithHSTS configures Strict-Transport-Security. A maxAge of zero
// disables it.
func WithHSTS(maxAge int, includeSubdomains, preload bool) Option {
	return func(h *Headers) {
		h.hstsMaxAge = maxAge
		h.hstsIncludeSubdomains = includeSubdomains
		h.hstsPreload = preload
	}
}

// WithContentSecurityPolicy sets Content-Security-Policy. Empty omits it.
func WithContentSecurityPolicy(policy string) Option {
	return func(h *Headers) { h.csp = policy }
}

// WithReferrerPolicy sets Referrer-Policy. Empty omits it.
func WithReferrerPolicy(policy string) Option {
	return func(h *Headers) { h.referrerPolicy = policy }
}

// WithPermissionsPolicy sets Permissions-Policy. Not set by default.
//
// Example:
//
//	security.WithPermissionsPolicy("geolocation=(), camera=()")
func WithPermissionsPolicy(policy string) Option {
	return func(h *Headers) { h.permissionsPolicy = policy }
}

// WithCustomHeader adds a header written alongside the others.
func WithCustomHeader(name, value string) Option {
	return func(h *Headers) { h.custom[name] = value }
}

// NoSecurityHeaders clears every header, leaving only custom ones added
// by later options.
func NoSecurityHeaders() Option {
	return func(h *Headers) { *h = Headers{custom: make(map[string]string)} }
}

// DevelopmentPreset relaxes framing and drops HSTS.
func DevelopmentPreset() Option {
	return func(h *Headers) {
		h.frameOptions = "SAMEORIGIN"
		h.nosniff = true
		h.csp = "default-src 'self'"
		h.referrerPolicy = "no-referrer-when-downgrade"
		h.hstsMaxAge = 0
		h.hstsIncludeSubdomains = false
		h.hstsPreload = false
	}
}

// ProductionPreset is the defaults plus HSTS preload and a restrictive
// Permissions-Policy.
func ProductionPreset() Option {
	return func(h *Headers) {
		h.frameOptions = "DENY"
		h.nosniff = true
		h.csp = DefaultContentSecurityPolicy
		h.referrerPolicy = "no-referrer"
		h.hstsMaxAge = DefaultHSTSMaxAge
		h.hstsIncludeSubdomains = true
		h.hstsPreload = true
		h.permissionsPolicy = "geolocation=(), microphone=(), camera=()"
	}
}
