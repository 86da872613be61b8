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

package response

import (
	"net/http"
	"strings"
)

// Entity is a resource method result that carries a payload to be encoded
// together with response metadata (status and headers).
//
// Example:
//
//	func (r *Orders) Create(ctx context.Context, in *Order) (*response.Entity, error) {
//	    saved, err := r.store.Save(ctx, in)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return response.NewEntity(saved).
//	        WithStatus(http.StatusCreated).
//	        WithHeader("Location", "/orders/"+saved.ID), nil
//	}
type Entity struct {
	Value  any
	status Status
	header http.Header
}

// NewEntity wraps v as an entity response with no explicit status.
func NewEntity(v any) *Entity {
	return &Entity{
		Value:  v,
		header: make(http.Header),
	}
}

// WithStatus explicitly sets the status to use for the encoded response.
func (e *Entity) WithStatus(code int) *Entity {
	e.status = StatusOf(code)
	return e
}

// WithHeader adds a header value.
func (e *Entity) WithHeader(key, value string) *Entity {
	e.header.Add(key, value)
	return e
}

// WithContentType sets the Content-Type of the entity. A resource method that
// sets it must not also declare a produces media type.
func (e *Entity) WithContentType(mediaType string) *Entity {
	e.header.Set(HeaderContentType, mediaType)
	return e
}

// Status returns the status and whether it was explicitly set.
func (e *Entity) Status() (int, bool) {
	return e.status.Code()
}

// Header returns the entity's header map. Keys written directly into it
// are matched case-insensitively.
func (e *Entity) Header() http.Header {
	return e.header
}

// ContentType returns the entity's own Content-Type, if any.
func (e *Entity) ContentType() string {
	if ct := e.header.Get(HeaderContentType); ct != "" {
		return ct
	}
	for key, values := range e.header {
		if strings.EqualFold(key, HeaderContentType) && len(values) > 0 && values[0] != "" {
			return values[0]
		}
	}
	return ""
}

// HasContentType reports whether the entity carries its own Content-Type.
func (e *Entity) HasContentType() bool {
	return e.ContentType() != ""
}

// MergeInto copies the entity metadata into an encoded response.
// Headers are copied only for keys the response does not already carry,
// and the status is copied only if the entity set one explicitly.
func (e *Entity) MergeInto(r *Response) {
	merged := make(http.Header, len(e.header))
	for key, values := range e.header {
		canonical := http.CanonicalHeaderKey(key)
		merged[canonical] = append(merged[canonical], values...)
	}
	for key, values := range merged {
		if len(r.header.Values(key)) > 0 {
			continue
		}
		r.header[key] = values
	}
	if code, ok := e.status.Code(); ok {
		r.SetStatus(code)
	}
}
