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

import (
	"net/http"
	"strconv"

	"rivaas.dev/rest/pipeline"
	"rivaas.dev/rest/resource"
	"rivaas.dev/rest/response"
)

// Defaults of [Headers].
const (
	DefaultContentSecurityPolicy = "default-src 'none'; frame-ancestors 'none'"
	DefaultHSTSMaxAge            = 31536000
)

// Headers is a [pipeline.Finisher] writing security headers.
type Headers struct {
	frameOptions          string
	nosniff               bool
	hstsMaxAge            int
	hstsIncludeSubdomains bool
	hstsPreload           bool
	csp                   string
	referrerPolicy        string
	permissionsPolicy     string
	custom                map[string]string

	hsts string
}

var _ pipeline.Finisher = (*Headers)(nil)

// New creates the finisher with secure defaults.
func New(opts ...Option) *Headers {
	h := &Headers{
		frameOptions:          "DENY",
		nosniff:               true,
		hstsMaxAge:            DefaultHSTSMaxAge,
		hstsIncludeSubdomains: true,
		csp:                   DefaultContentSecurityPolicy,
		referrerPolicy:        "no-referrer",
		custom:                make(map[string]string),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.hstsMaxAge > 0 {
		h.hsts = "max-age=" + strconv.Itoa(h.hstsMaxAge)
		if h.hstsIncludeSubdomains {
			h.hsts += "; includeSubDomains"
		}
		if h.hstsPreload {
			h.hsts += "; preload"
		}
	}
	return h
}

// Finish implements [pipeline.Finisher].
func (h *Headers) Finish(req *http.Request, resp *response.Response, _ *resource.RequestContext) {
	header := resp.Header()
	setIfAbsent(header, "X-Frame-Options", h.frameOptions)
	if h.nosniff {
		setIfAbsent(header, "X-Content-Type-Options", "nosniff")
	}
	if req.TLS != nil {
		setIfAbsent(header, "Strict-Transport-Security", h.hsts)
	}
	setIfAbsent(header, "Content-Security-Policy", h.csp)
	setIfAbsent(header, "Referrer-Policy", h.referrerPolicy)
	setIfAbsent(header, "Permissions-Policy", h.permissionsPolicy)
	for name, value := range h.custom {
		setIfAbsent(header, name, value)
	}
}

func setIfAbsent(h http.Header, name, value string) {
	if value == "" || h.Get(name) != "" {
		return
	}
	h.Set(name, value)
}
