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

package converter

import (
	"slices"

	rerrors "rivaas.dev/rest/errors"
)

// Registry is an ordered list of converters. The first converter that
// supports a media type wins, so registration order is priority.
//
// A Registry is immutable after construction and safe for concurrent use.
type Registry struct {
	converters []Converter
}

// NewRegistry creates a registry from converters in priority order.
// Nil converters are skipped.
func NewRegistry(converters ...Converter) *Registry {
	r := &Registry{converters: make([]Converter, 0, len(converters))}
	for _, c := range converters {
		if c != nil {
			r.converters = append(r.converters, c)
		}
	}
	return r
}

// Default returns a registry with the JSON, XML, form and multipart
// converters, in that order.
func Default(opts ...Option) *Registry {
	return NewRegistry(
		NewJSON(opts...),
		NewXML(opts...),
		NewForm(opts...),
		NewMultipart(opts...),
	)
}

// With returns a new registry with extra converters appended after the
// existing ones.
func (r *Registry) With(converters ...Converter) *Registry {
	return NewRegistry(append(slices.Clone(r.converters), converters...)...)
}

// Find returns the first converter supporting mediaType.
//
// Errors:
//   - [rerrors.UnsupportedMediaTypeError]: no converter supports mediaType
func (r *Registry) Find(mediaType string) (Converter, error) {
	for _, c := range r.converters {
		if c.Supports(mediaType) {
			return c, nil
		}
	}
	return nil, &rerrors.UnsupportedMediaTypeError{ContentType: mediaType}
}

// Converters returns a copy of the registered converters in order.
func (r *Registry) Converters() []Converter {
	return slices.Clone(r.converters)
}
