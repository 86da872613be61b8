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

// Package msgpack provides a MessagePack converter using
// github.com/vmihailenco/msgpack/v5.
package msgpack

import (
	"bytes"
	"net/http"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"

	"rivaas.dev/rest/converter"
	"rivaas.dev/rest/response"
)

// MediaType is the MessagePack media type.
const MediaType = "application/msgpack"

// Option configures the MessagePack converter.
type Option func(*Converter)

// WithJSONTag names fields by their json tag when they carry no msgpack
// tag. A msgpack tag still wins where both are present.
func WithJSONTag() Option {
	return func(c *Converter) {
		c.tag = "json"
	}
}

// WithSettings applies shared converter options.
func WithSettings(opts ...converter.Option) Option {
	return func(c *Converter) {
		c.settings = converter.NewSettings(opts...)
	}
}

// Converter converts "application/msgpack" and "application/x-msgpack".
type Converter struct {
	settings converter.Settings
	tag      string
}

// New creates a MessagePack converter.
func New(opts ...Option) *Converter {
	c := &Converter{settings: converter.NewSettings()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Supports implements [converter.Converter].
func (c *Converter) Supports(mediaType string) bool {
	return converter.Matches(mediaType, MediaType, "application/x-msgpack", "application/vnd.msgpack")
}

// Read implements [converter.Converter].
func (c *Converter) Read(r *http.Request, target reflect.Type) (any, error) {
	body, err := c.settings.ReadBody(r)
	if err != nil {
		return nil, err
	}

	dst, result := converter.Allocate(target)
	dec := msgpack.NewDecoder(bytes.NewReader(body))
	if c.tag != "" {
		dec.SetCustomStructTag(c.tag)
	}
	dec.DisallowUnknownFields(c.settings.Strict)
	if err := dec.Decode(dst); err != nil {
		return nil, converter.DecodeError(MediaType, err)
	}
	return result(), nil
}

// Write implements [converter.Converter].
func (c *Converter) Write(v any, mediaType string) (*response.Response, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if c.tag != "" {
		enc.SetCustomStructTag(c.tag)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return converter.Encoded(mediaType, buf.Bytes()), nil
}
