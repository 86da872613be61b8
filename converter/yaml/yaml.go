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

// Package yaml provides a YAML converter using gopkg.in/yaml.v3.
//
// Example:
//
//	reg := converter.Default().With(yaml.New())
package yaml

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"reflect"

	"gopkg.in/yaml.v3"

	"rivaas.dev/rest/converter"
	"rivaas.dev/rest/response"
)

// MediaType is the YAML media type written by default.
const MediaType = "application/yaml"

// Converter converts "application/yaml", "application/x-yaml", "text/yaml"
// and "+yaml" media types. [converter.WithStrict] rejects unknown fields.
type Converter struct {
	settings converter.Settings
}

// New creates a YAML converter.
func New(opts ...converter.Option) *Converter {
	return &Converter{settings: converter.NewSettings(opts...)}
}

// Supports implements [converter.Converter].
func (c *Converter) Supports(mediaType string) bool {
	return converter.Matches(mediaType, MediaType, "application/x-yaml", "text/yaml", "+yaml")
}

// Read implements [converter.Converter].
func (c *Converter) Read(r *http.Request, target reflect.Type) (any, error) {
	if err := converter.CheckCharset(r.Header.Get(response.HeaderContentType)); err != nil {
		return nil, err
	}
	body, err := c.settings.ReadBody(r)
	if err != nil {
		return nil, err
	}

	dst, result := converter.Allocate(target)
	dec := yaml.NewDecoder(bytes.NewReader(body))
	dec.KnownFields(c.settings.Strict)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, converter.DecodeError(MediaType, err)
	}
	return result(), nil
}

// Write implements [converter.Converter].
func (c *Converter) Write(v any, mediaType string) (*response.Response, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return converter.Encoded(mediaType, buf.Bytes()), nil
}
